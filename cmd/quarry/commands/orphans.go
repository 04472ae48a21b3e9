package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quarrypkg/quarry/pkg/pkgdb"
)

func newOrphansCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List orphaned packages",
		Long: `List packages that were installed automatically as dependencies and
that no installed package requires any longer.

Packages are listed most recently installed first. The listing is
read-only; use 'quarry autoremove' to remove them.`,
		Example: `  # List orphans as a table
  quarry orphans

  # List orphans as JSON
  quarry orphans --json`,
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

			if jsonOutput {
				return printJSON(found)
			}

			if len(found) == 0 {
				fmt.Println("No orphaned packages.")
				return nil
			}

			printPackageTable(found)
			return nil
		},
	}

	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPackageTable(records []pkgdb.PackageRecord) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Package", "Version", "State", "Automatic", "Installed"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, rec := range records {
		automatic := "no"
		if rec.Automatic {
			automatic = "yes"
		}
		table.Append([]string{
			rec.Name,
			fmt.Sprintf("%s_%s", rec.Version, rec.Revision),
			string(rec.State),
			automatic,
			rec.InstalledAt.Format("2006-01-02 15:04"),
		})
	}

	table.Render()
}
