package cli

import (
	"github.com/spf13/cobra"
)

func newAccountCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show account information",
	}

	balance := &cobra.Command{
		Use:   "balance",
		Short: "Show the account balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			b, err := client.GetBalance(cmd.Context())
			if err != nil {
				return err
			}
			return app.printer.Balance(b)
		},
	}

	info := &cobra.Command{
		Use:   "info",
		Short: "Show account details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			a, err := client.GetAccount(cmd.Context())
			if err != nil {
				return err
			}
			return app.printer.Account(a)
		},
	}

	cmd.AddCommand(balance, info)
	return cmd
}
