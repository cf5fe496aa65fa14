package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/fungame/internal/domain"
	"github.com/spf13/cobra"
)

func newBackendCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Inspect the classifier and narrator backend",
	}

	cmd.AddCommand(newBackendCheckCmd(app))
	return cmd
}

func newBackendCheckCmd(app *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "check [message]",
		Short: "Classify and narrate one message against the starting world",
		Long:  "Classify and narrate one message against the starting world. Nothing is committed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := "I look around"
			if len(args) == 1 {
				text = args[0]
			}

			backend, err := app.backend(cmd.Context())
			if err != nil {
				return err
			}

			var (
				judgment  domain.Judgment
				narration domain.Narration
			)
			gate := app.cfg.Gate()
			start := app.cfg.Controller().Start
			steps := []checkStep{
				{name: "classify", run: func(ctx context.Context) (err error) {
					judgment, err = backend.Classify(ctx, domain.ClassifyRequest{Text: text, Examples: gate.Examples, Default: gate.Default})
					return err
				}},
				{name: "narrate", run: func(ctx context.Context) (err error) {
					narration, err = backend.Narrate(ctx, domain.NarrationRequest{
						State:  domain.NewGameState("check#1", start.World, start.Inventories),
						Action: domain.Bid{Player: "check", Text: text, Verdict: domain.VerdictAdmit},
						Rules:  app.cfg.Rules(),
					})
					return err
				}},
			}

			kind := app.cfg.Backend.Kind
			results, err := runChecks(cmd.Context(), cmd.ErrOrStderr(), kind, quiet, steps)
			if err != nil {
				return fmt.Errorf("backend %s: %w", kind, err)
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "backend: %s\nadmit: %t (confidence %.2f)\nnarration: %s\n", kind, judgment.Admit, judgment.Confidence, narration.Response); err != nil {
				return err
			}
			for _, result := range results {
				if _, err := fmt.Fprintf(out, "latency %s: %s\n", result.name, roundLatency(result.elapsed)); err != nil {
					return err
				}
			}
			for fact, add := range narration.Delta.World {
				sign := "+"
				if !add {
					sign = "-"
				}
				if _, err := fmt.Fprintf(out, "world %s %s\n", sign, fact); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "Skip the progress spinner")
	return cmd
}
