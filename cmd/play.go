package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/bnema/fungame/internal/adapters/frontend/console"
	"github.com/bnema/fungame/internal/application"
	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPlayCmd(app *app) *cobra.Command {
	var (
		player       string
		styled       bool
		drainTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the configured channel from the terminal",
		Long: `Play the configured channel from the terminal. Each input line is "player: text",
or plain text spoken by --player. Lines starting with # are ignored. At end of
input every open window is resolved before the command exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var controller *application.SessionController
			term := console.New(console.Config{
				Channel:       domain.ChannelID(app.cfg.Channel.ID),
				DefaultPlayer: domain.PlayerID(player),
				Styled:        styled,
			}, cmd.InOrStdin(), cmd.OutOrStdout(), func(ctx context.Context, msg domain.InboundMessage) error {
				return controller.HandleMessage(ctx, msg)
			}, ports.SystemClock{}, app.logger.Named("console"))

			controller, err := app.controller(ctx, term, nil)
			if err != nil {
				return err
			}

			return runConsole(ctx, term, controller, drainTimeout, app.logger)
		},
	}

	cmd.Flags().StringVar(&player, "player", "player", "Speaker for lines without a \"name:\" prefix")
	cmd.Flags().BoolVar(&styled, "styled", false, "Color message labels")
	cmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 2*time.Minute, "How long to wait for pending turns at end of input")
	return cmd
}

// runConsole plays until input ends, then resolves pending turns and persists sessions.
func runConsole(ctx context.Context, term *console.Console, controller *application.SessionController, drainTimeout time.Duration, logger *zap.Logger) error {
	runErr := term.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if ctx.Err() == nil {
		if err := controller.Drain(drainCtx); err != nil {
			logger.Warn("pending turns not resolved", zap.Error(err))
			errs = append(errs, fmt.Errorf("drain sessions: %w", err))
		}
	}
	if err := controller.Shutdown(drainCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown sessions: %w", err))
	}

	return errors.Join(errs...)
}
