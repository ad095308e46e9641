package cmd

import (
	"argus/bootstrap"

	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' subcommand
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the rule management API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap.NewApp(configFile)
			if err != nil {
				return err
			}
			app.Start()
			err = app.WaitForShutdown()
			app.Shutdown()
			return err
		},
	}
}
