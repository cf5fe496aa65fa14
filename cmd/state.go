package cmd

import (
	"fmt"

	staterender "github.com/bnema/fungame/internal/adapters/render/state"
	"github.com/bnema/fungame/internal/application"
	"github.com/bnema/fungame/internal/domain"
	"github.com/spf13/cobra"
)

func newStateCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and edit game state",
	}

	cmd.AddCommand(
		newStateShowCmd(app),
		newStateHistoryCmd(app),
		newStatePatchCmd(app),
	)

	return cmd
}

func newStateShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [session-or-channel]",
		Short: "Show the latest state of a session",
		Long:  "Show the latest state of a session. The argument is a session id such as tavern#2 or a channel id, which selects its latest session. It defaults to the configured channel.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := app.service.Current(cmd.Context(), stateRef(app, args))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, view)
			}
			rendered, err := app.stateRenderer(view, staterender.RenderOptions{Now: app.now()})
			return writeRendered(cmd, rendered, err)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newStateHistoryCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [session-or-channel]",
		Short: "List every committed version of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, history, err := app.service.History(cmd.Context(), stateRef(app, args))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, history)
			}
			rendered, err := app.historyRender(session, history, staterender.RenderOptions{Now: app.now()})
			return writeRendered(cmd, rendered, err)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newStatePatchCmd(app *app) *cobra.Command {
	var (
		addFacts    []string
		removeFacts []string
		player      string
		items       map[string]int
		gameOver    bool
		expect      int64
	)

	cmd := &cobra.Command{
		Use:   "patch [session-or-channel]",
		Short: "Commit an operator edit as a new state version",
		Long:  "Commit an operator edit as a new state version. A running game sees the edit as a concurrent commit and re-narrates its pending turn on top of it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := application.PatchStateCommand{
				Ref:         stateRef(app, args),
				AddFacts:    addFacts,
				RemoveFacts: removeFacts,
				Player:      domain.PlayerID(player),
				Items:       items,
				GameOver:    gameOver,
			}
			if cmd.Flags().Changed("expect-version") {
				if expect < 0 {
					return fmt.Errorf("--expect-version must not be negative")
				}
				version := uint64(expect)
				patch.ExpectedVersion = &version
			}

			version, err := app.service.Patch(cmd.Context(), patch)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "committed version %d\n", version)
			return err
		},
	}

	cmd.Flags().StringArrayVar(&addFacts, "add-fact", nil, "World fact to add (repeatable)")
	cmd.Flags().StringArrayVar(&removeFacts, "remove-fact", nil, "World fact to remove (repeatable)")
	cmd.Flags().StringVar(&player, "player", "", "Player whose inventory --item edits")
	cmd.Flags().StringToIntVar(&items, "item", nil, "Inventory change as item=delta, e.g. lantern=1,coin=-2")
	cmd.Flags().BoolVar(&gameOver, "game-over", false, "Mark the game as over")
	cmd.Flags().Int64Var(&expect, "expect-version", 0, "Fail unless the latest version is this one")
	return cmd
}

func stateRef(app *app, args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return app.cfg.Channel.ID
}
