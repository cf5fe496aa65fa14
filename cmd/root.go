package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

func Execute() error {
	rootCmd, a := newRootCmd()
	err := rootCmd.Execute()
	return errors.Join(err, a.close())
}

// newRootCmd returns the command tree and the app it wires lazily. Callers close
// the app once the command has run.
func newRootCmd() (*cobra.Command, *app) {
	var configPath string
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "fungame",
		Short:         "fungame: a chat-hosted text adventure game master",
		Long:          "fungame runs a text adventure in a chat channel. It filters chatter from game actions, arbitrates simultaneous actions into one turn at a time, narrates the outcome and keeps a versioned history of the world.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			wired, err := wireApp(configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			*a = *wired
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.fungame/fungame.toml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newPlayCmd(a),
		newServeCmd(a),
		newStateCmd(a),
		newSessionCmd(a),
		newSecretCmd(a),
		newBackendCmd(a),
	)

	return rootCmd, a
}
