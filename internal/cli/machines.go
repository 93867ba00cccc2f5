package cli

import (
	"github.com/spf13/cobra"
)

func newMachinesCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "machines",
		Aliases: []string{"machine"},
		Short:   "Browse available GPU capacity",
	}

	var gpu string
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List available machines",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			machines, err := client.ListMachines(cmd.Context(), gpu)
			if err != nil {
				return err
			}
			return app.printer.Machines(machines)
		},
	}
	list.Flags().StringVar(&gpu, "gpu", "", "filter by GPU type, e.g. RTX4090 or A100")

	cmd.AddCommand(list)
	return cmd
}
