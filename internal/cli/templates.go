package cli

import (
	"github.com/spf13/cobra"
)

func newTemplatesCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "Browse pod templates",
	}

	var category string
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List templates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			templates, err := client.ListTemplates(cmd.Context(), category)
			if err != nil {
				return err
			}
			return app.printer.Templates(templates)
		},
	}
	list.Flags().StringVarP(&category, "category", "c", "", "filter by category")

	get := &cobra.Command{
		Use:   "get <template-id>",
		Short: "Show a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			t, err := client.GetTemplate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return app.printer.Template(t)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}
