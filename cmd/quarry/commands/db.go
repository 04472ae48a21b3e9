package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrypkg/quarry/pkg/pkgdb"
	"github.com/quarrypkg/quarry/pkg/pkgexpr"
)

func newDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect and modify the package database",
		Long: `Low-level operations on the installed-package database.

These commands are normally driven by the package installer; they are
exposed for scripting and repair.`,
	}

	cmd.AddCommand(newDBListCommand())
	cmd.AddCommand(newDBRegisterCommand())
	cmd.AddCommand(newDBUnregisterCommand())
	cmd.AddCommand(newDBShowCommand())
	cmd.AddCommand(newDBSetAutomaticCommand())
	cmd.AddCommand(newDBDependentsCommand())

	return cmd
}

func newDBListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all package records in install order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			records, err := app.store.List(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(records)
			}

			values := make([]pkgdb.PackageRecord, len(records))
			for i, rec := range records {
				values[i] = *rec
			}
			printPackageTable(values)
			return nil
		},
	}
}

func newDBRegisterCommand() *cobra.Command {
	var (
		automatic  bool
		state      string
		requiredBy []string
	)

	cmd := &cobra.Command{
		Use:   "register <name-version_revision>",
		Short: "Register an installed package",
		Example: `  # Register an explicitly installed package
  quarry db register vim-9.1_2

  # Register a dependency with its dependents
  quarry db register libx-1.0_1 --automatic --required-by app-2.0_1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			name, version, err := pkgexpr.Parse(args[0])
			if err != nil {
				return err
			}
			ver, rev, err := pkgexpr.SplitVersion(version)
			if err != nil {
				return err
			}

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			rec := &pkgdb.PackageRecord{
				Name:      name,
				Version:   ver,
				Revision:  rev,
				State:     pkgdb.PkgState(state),
				Automatic: automatic,
			}
			if requiredBy != nil {
				raw, err := json.Marshal(requiredBy)
				if err != nil {
					return err
				}
				rec.RequiredBy = raw
			}

			if err := app.store.Register(ctx, rec); err != nil {
				return err
			}

			fmt.Printf("registered %s (install id %d)\n", rec.PkgVer(), rec.InstallID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&automatic, "automatic", false, "mark as automatically installed")
	cmd.Flags().StringVar(&state, "state", string(pkgdb.StateInstalled), "installation state")
	cmd.Flags().StringSliceVar(&requiredBy, "required-by", nil, "dependent package tokens")

	return cmd
}

func newDBUnregisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <name>",
		Short: "Remove a package record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if err := app.store.Unregister(ctx, args[0]); err != nil {
				return err
			}

			fmt.Printf("unregistered %s\n", args[0])
			return nil
		},
	}
}

func newDBShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a package record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			rec, err := app.store.Get(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(rec)
			}

			tokens, err := rec.DecodeRequiredBy()
			if err != nil {
				return err
			}

			fmt.Printf("Package:    %s\n", rec.PkgVer())
			fmt.Printf("State:      %s\n", rec.State)
			fmt.Printf("Automatic:  %v\n", rec.Automatic)
			fmt.Printf("Installed:  %s\n", rec.InstalledAt.Format("2006-01-02 15:04:05"))
			if rec.RequiredBy == nil {
				fmt.Println("RequiredBy: (never recorded)")
			} else {
				fmt.Printf("RequiredBy: %v\n", tokens)
			}
			return nil
		},
	}
}

func newDBSetAutomaticCommand() *cobra.Command {
	var manual bool

	cmd := &cobra.Command{
		Use:   "set-automatic <name>",
		Short: "Change a package's install reason",
		Long: `Mark a package as automatically installed, making it eligible for
orphan detection, or with --manual as explicitly installed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if err := app.store.SetAutomatic(ctx, args[0], !manual); err != nil {
				return err
			}

			reason := "automatic"
			if manual {
				reason = "manual"
			}
			fmt.Printf("%s is now %s\n", args[0], reason)
			return nil
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "mark as explicitly installed instead")

	return cmd
}

func newDBDependentsCommand() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "dependents <name> <dependent-token>",
		Short: "Add or remove a dependent of a package",
		Example: `  # Record that app-2.0_1 depends on libx
  quarry db dependents libx app-2.0_1

  # Remove the record again
  quarry db dependents libx app-2.0_1 --remove`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// The token must parse, or later scans would fail on it.
			if _, err := pkgexpr.ParseName(args[1]); err != nil {
				return err
			}

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if remove {
				if err := app.store.RemoveDependent(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("removed dependent %s from %s\n", args[1], args[0])
				return nil
			}

			if err := app.store.AddDependent(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("added dependent %s to %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "remove the dependent instead of adding it")

	return cmd
}
