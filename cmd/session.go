package cmd

import (
	staterender "github.com/bnema/fungame/internal/adapters/render/state"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect game sessions",
	}

	cmd.AddCommand(newSessionListCmd(app))
	return cmd
}

func newSessionListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every session with its status and latest version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := app.service.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, sessions)
			}
			rendered, err := app.sessionsRender(sessions, staterender.RenderOptions{Now: app.now()})
			return writeRendered(cmd, rendered, err)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
