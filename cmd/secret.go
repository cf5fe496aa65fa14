package cmd

import (
	"fmt"

	"github.com/bnema/fungame/internal/application"
	"github.com/spf13/cobra"
)

func newSecretCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage backend credentials",
		Long:  "Manage backend credentials. Reads check FUNGAME_* environment variables first, then the secrets file.",
	}

	cmd.AddCommand(
		newSecretSetCmd(app),
		newSecretDeleteCmd(app),
	)
	return cmd
}

func newSecretSetCmd(app *app) *cobra.Command {
	var (
		value    string
		previous string
	)

	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret, e.g. gemini/api_key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.service.SetSecret(cmd.Context(), application.SetSecretCommand{
				Key:      args[0],
				Value:    value,
				Previous: previous,
			}); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "stored secret %s\n", args[0])
			return err
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Secret value")
	cmd.Flags().StringVar(&previous, "rotate-from", "", "Key to delete once the new secret is stored")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newSecretDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.service.DeleteSecret(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted secret %s\n", args[0])
			return err
		},
	}
}
