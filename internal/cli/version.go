package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	volt "github.com/voltagegpu/volt-go"
)

type versionInfo struct {
	Version         string `json:"version"`
	APIVersion      string `json:"apiVersion"`
	SupportedRange  string `json:"supportedRange"`
	ServerVersion   string `json:"serverVersion,omitempty"`
	ServerSupported *bool  `json:"serverSupported,omitempty"`
}

func newVersionCommand(app *App) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{
				Version:        volt.Version,
				APIVersion:     volt.APIVersion,
				SupportedRange: volt.APIVersionRange,
			}
			var res volt.CompatibilityResult
			if server != "" {
				res = volt.CheckCompatibility(server)
				ok := res.IsCompatible()
				info.ServerVersion = server
				info.ServerSupported = &ok
			}
			if app.jsonOut {
				return app.printer.JSON(info)
			}
			fmt.Fprintf(app.Out, "volt %s (API %s, supports %s)\n", info.Version, info.APIVersion, info.SupportedRange)
			if server != "" {
				fmt.Fprintln(app.Out, res.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "check", "", "check compatibility with a server API version")
	return cmd
}
