package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrypkg/quarry/pkg/pkgdb"
	"github.com/quarrypkg/quarry/pkg/policy"
)

func newAutoremoveCommand() *cobra.Command {
	var (
		dryRun bool
		holds  []string
	)

	cmd := &cobra.Command{
		Use:   "autoremove",
		Short: "Remove orphaned packages",
		Long: `Find orphaned packages, evaluate removal policies over them and
unregister the ones no policy blocks.

Built-in policies keep base-system packages, operator-held packages and
packages that are not fully installed. Holds come from the config file
and can be extended with --hold.`,
		Example: `  # Show what would be removed
  quarry autoremove --dry-run

  # Remove orphans, keeping libfoo
  quarry autoremove --hold libfoo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			found, err := app.engine.FindOrphanPackages(ctx)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Println("No orphaned packages.")
				return nil
			}

			removable := found
			var result *policy.Result
			if app.cfg.Policy.Enabled {
				polEngine, err := app.policyEngine(ctx)
				if err != nil {
					return err
				}

				result, err = polEngine.EvaluateRemoval(ctx, found, &policy.Context{
					Holds:  append(append([]string{}, app.cfg.Policy.Holds...), holds...),
					DryRun: dryRun,
				})
				if err != nil {
					return err
				}

				removable = filterAllowed(found, result)
			}

			if jsonOutput {
				return printJSON(struct {
					Orphans []pkgdb.PackageRecord `json:"orphans"`
					Policy  *policy.Result        `json:"policy,omitempty"`
					DryRun  bool                  `json:"dry_run"`
				}{found, result, dryRun})
			}

			if result != nil {
				for _, v := range result.Violations {
					if v.Severity == policy.SeverityError || v.Severity == policy.SeverityCritical {
						fmt.Printf("keeping %s: %s\n", v.Package, v.Message)
					}
				}
			}

			if len(removable) == 0 {
				fmt.Println("Nothing to remove.")
				return nil
			}

			if dryRun {
				fmt.Printf("Would remove %d package(s):\n", len(removable))
				printPackageTable(removable)
				return nil
			}

			for _, rec := range removable {
				if err := app.store.Unregister(ctx, rec.Name); err != nil {
					return fmt.Errorf("failed to remove %s: %w", rec.Name, err)
				}
				fmt.Printf("removed %s\n", rec.PkgVer())
			}
			fmt.Printf("Removed %d package(s).\n", len(removable))

			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show what would be removed without removing")
	cmd.Flags().StringSliceVar(&holds, "hold", nil, "additional package names to keep")

	return cmd
}

// filterAllowed keeps the orphans the policy result allows, in scan order.
func filterAllowed(found []pkgdb.PackageRecord, result *policy.Result) []pkgdb.PackageRecord {
	allowed := make(map[string]bool, len(result.Allowed))
	for _, name := range result.Allowed {
		allowed[name] = true
	}

	out := make([]pkgdb.PackageRecord, 0, len(result.Allowed))
	for _, rec := range found {
		if allowed[rec.Name] {
			out = append(out, rec)
		}
	}
	return out
}
