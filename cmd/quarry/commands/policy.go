package commands

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect removal policies",
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyShowCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded removal policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			polEngine, err := app.policyEngine(ctx)
			if err != nil {
				return err
			}

			policies := polEngine.ListPolicies()
			if jsonOutput {
				return printJSON(policies)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Policy", "Severity", "Enabled", "Description"})
			table.SetBorder(false)
			table.SetAutoWrapText(false)

			for _, p := range policies {
				enabled := "no"
				if p.Enabled {
					enabled = "yes"
				}
				table.Append([]string{p.Name, string(p.Severity), enabled, p.Description})
			}

			table.Render()
			return nil
		},
	}
}

func newPolicyShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a policy's Rego source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			polEngine, err := app.policyEngine(ctx)
			if err != nil {
				return err
			}

			p, err := polEngine.GetPolicy(args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(p)
			}

			fmt.Printf("# %s (%s)\n# %s\n\n%s\n", p.Name, p.Severity, p.Description, p.Rego)
			return nil
		},
	}
}
