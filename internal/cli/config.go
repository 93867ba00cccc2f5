package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	volt "github.com/voltagegpu/volt-go"
)

var configKeys = []string{"api_key", "base_url"}

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write the credential file",
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value (api_key, base_url)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.updateConfig(args[0], strings.TrimSpace(args[1]))
		},
	}

	unset := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.updateConfig(args[0], "")
		},
	}

	var reveal bool
	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := volt.ReadConfigFile(app.configFile())
			if err != nil {
				return err
			}
			var value string
			switch args[0] {
			case "api_key":
				value = cfg.API.APIKey
				if !reveal {
					value = maskKey(value)
				}
			case "base_url":
				value = cfg.API.BaseURL
			default:
				return unknownKey(args[0])
			}
			if app.jsonOut {
				return app.printer.JSON(map[string]string{args[0]: value})
			}
			_, err = fmt.Fprintln(app.Out, value)
			return err
		},
	}
	get.Flags().BoolVar(&reveal, "reveal", false, "print the API key unmasked")

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.jsonOut {
				return app.printer.JSON(map[string]string{"path": app.configFile()})
			}
			_, err := fmt.Fprintln(app.Out, app.configFile())
			return err
		},
	}

	cmd.AddCommand(set, unset, get, path)
	return cmd
}

func (a *App) updateConfig(key, value string) error {
	path := a.configFile()
	cfg, err := volt.ReadConfigFile(path)
	if err != nil {
		return err
	}
	switch key {
	case "api_key":
		cfg.API.APIKey = value
	case "base_url":
		cfg.API.BaseURL = value
	default:
		return unknownKey(key)
	}
	if err := volt.WriteConfigFile(path, cfg); err != nil {
		return err
	}
	msg := fmt.Sprintf("%s updated in %s", key, path)
	if value == "" {
		msg = fmt.Sprintf("%s removed from %s", key, path)
	}
	return a.printer.Success(msg, map[string]any{"key": key, "path": path})
}

func unknownKey(key string) error {
	return usageError("key", "unknown config key %q (valid keys: %s)", key, strings.Join(configKeys, ", "))
}

// maskKey keeps the first and last four characters of an API key.
func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
