package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSSHKeysCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ssh-keys",
		Aliases: []string{"ssh-key", "keys"},
		Short:   "Manage SSH keys",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List SSH keys",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			keys, err := client.ListSSHKeys(cmd.Context())
			if err != nil {
				return err
			}
			return app.printer.SSHKeys(keys)
		},
	}

	var key, file string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (key == "") == (file == "") {
				return usageError("key", "pass exactly one of --key or --file")
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read public key: %w", err)
				}
				key = strings.TrimSpace(string(data))
			}
			client, err := app.Client()
			if err != nil {
				return err
			}
			k, err := client.AddSSHKey(cmd.Context(), args[0], key)
			if err != nil {
				return err
			}
			return app.printer.SSHKey(k)
		},
	}
	add.Flags().StringVar(&key, "key", "", "public key text")
	add.Flags().StringVarP(&file, "file", "f", "", "path to a public key file")

	del := &cobra.Command{
		Use:     "delete <key-id>",
		Aliases: []string{"rm"},
		Short:   "Remove an SSH key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			if err := client.DeleteSSHKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			return app.printer.Success("ssh key deleted", map[string]any{"id": args[0]})
		},
	}

	cmd.AddCommand(list, add, del)
	return cmd
}
