package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/fungame/internal/domain"
	"go.uber.org/zap"
)

var ErrNotOperator = errors.New("command requires an operator")

type chatCommand struct {
	name string
	args []string
}

func (c *SessionController) parseCommand(text string) (chatCommand, bool) {
	if !strings.HasPrefix(text, c.cfg.CommandPrefix) {
		return chatCommand{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, c.cfg.CommandPrefix))
	if len(fields) == 0 {
		return chatCommand{}, false
	}
	return chatCommand{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

func (c *SessionController) runCommand(ctx context.Context, live *liveSession, msg domain.InboundMessage, cmd chatCommand) error {
	session := live.snapshot()
	reply := func(text string) {
		c.publish(ctx, domain.Whisper(session, msg.Player, domain.OutboundInfo, text))
	}

	switch cmd.name {
	case "show":
		what := "world"
		if len(cmd.args) > 0 {
			what = strings.ToLower(cmd.args[0])
		}
		state, err := c.store.Read(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("read state: %w", err)
		}
		if what == "rules" {
			reply(FormatRules(session.PublicRules(), false))
			return nil
		}
		switch what {
		case "world":
			reply(FormatWorld(state))
		case "inventory", "inv":
			reply(FormatInventory(state.InventoryOf(msg.Player)))
		default:
			reply(fmt.Sprintf("Unknown view %q. Try world, inventory or rules.", what))
		}
		return nil

	case "status":
		snapshot := live.arb.Snapshot()
		reply(fmt.Sprintf("session %s | version %d | %s | players %d",
			session.ID, session.Version, snapshot.Phase, len(session.Players)))
		return nil

	case "resolve", "end", "recover", "rule":
		if !c.isOperator(msg.Player) {
			reply("Only an operator can do that.")
			return ErrNotOperator
		}
	default:
		reply(fmt.Sprintf("Unknown command %q.", cmd.name))
		return nil
	}

	switch cmd.name {
	case "resolve":
		if err := live.arb.ForceResolve(ctx); err != nil {
			reply("There is no open turn to resolve.")
			return err
		}
		return nil

	case "rule":
		return c.runRuleCommand(ctx, live, msg, cmd.args, reply)

	case "end":
		reason := strings.Join(cmd.args, " ")
		if reason == "" {
			reason = fmt.Sprintf("ended by %s", msg.Player)
		}
		return c.EndSession(ctx, session.Channel, reason)

	default:
		if !live.arb.Recover() {
			reply("This session is not degraded.")
			return nil
		}
		live.mu.Lock()
		live.session.Status = domain.SessionActive
		live.session.DegradedReason = ""
		recovered := live.session
		live.mu.Unlock()
		if err := c.sessions.Save(ctx, recovered); err != nil {
			return fmt.Errorf("save recovered session: %w", err)
		}
		c.logger.Info("session recovered",
			zap.String("session", string(recovered.ID)),
			zap.String("operator", string(msg.Player)),
		)
		c.publish(ctx, domain.Broadcast(recovered, domain.OutboundInfo, "[game master] The world is steady again. Play on."))
		return nil
	}
}

func (c *SessionController) runRuleCommand(ctx context.Context, live *liveSession, msg domain.InboundMessage, args []string, reply func(string)) error {
	action := "list"
	if len(args) > 0 {
		action = strings.ToLower(args[0])
		args = args[1:]
	}

	switch action {
	case "list":
		reply(FormatRules(live.snapshot().Rules, true))
		return nil

	case "add":
		rule := domain.CustomRule{AddedBy: msg.Player, AddedAt: c.clock.Now()}
		if len(args) > 0 && args[0] == "--secret" {
			rule.Secret = true
			args = args[1:]
		}
		rule.Text = strings.Join(args, " ")

		live.mu.Lock()
		number, err := live.session.AddRule(rule)
		session := live.session
		live.mu.Unlock()
		if err != nil {
			reply("Usage: rule add [--secret] <text>")
			return err
		}
		if err := c.sessions.Save(ctx, session); err != nil {
			return fmt.Errorf("save session rules: %w", err)
		}
		c.logger.Info("custom rule added",
			zap.String("session", string(session.ID)),
			zap.String("operator", string(msg.Player)),
			zap.Int("rule", number),
			zap.Bool("secret", rule.Secret),
		)
		reply(fmt.Sprintf("Rule %d added.", number))
		return nil

	case "remove", "rm":
		if len(args) != 1 {
			reply("Usage: rule remove <number>")
			return fmt.Errorf("%w: rule number is required", domain.ErrRuleNotFound)
		}
		number, err := strconv.Atoi(args[0])
		if err != nil {
			reply("Usage: rule remove <number>")
			return fmt.Errorf("%w: %q is not a number", domain.ErrRuleNotFound, args[0])
		}

		live.mu.Lock()
		removed, err := live.session.RemoveRule(number)
		session := live.session
		live.mu.Unlock()
		if err != nil {
			reply(fmt.Sprintf("There is no rule %d.", number))
			return err
		}
		if err := c.sessions.Save(ctx, session); err != nil {
			return fmt.Errorf("save session rules: %w", err)
		}
		c.logger.Info("custom rule removed",
			zap.String("session", string(session.ID)),
			zap.String("operator", string(msg.Player)),
			zap.Int("rule", number),
		)
		reply(fmt.Sprintf("Rule %d removed: %s", number, removed.Text))
		return nil

	default:
		reply(fmt.Sprintf("Unknown rule action %q. Try add, remove or list.", action))
		return nil
	}
}

// FormatRules numbers rules from 1. Secret rules are marked when showSecret is set.
func FormatRules(rules []domain.CustomRule, showSecret bool) string {
	if len(rules) == 0 {
		return "No custom rules."
	}
	var b strings.Builder
	b.WriteString("Custom rules:")
	for i, rule := range rules {
		fmt.Fprintf(&b, "\n%d. %s", i+1, rule.Text)
		if showSecret && rule.Secret {
			b.WriteString(" (secret)")
		}
	}
	return b.String()
}

// FormatWorld renders world facts one per line.
func FormatWorld(state domain.GameState) string {
	if len(state.World) == 0 {
		return "The world is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "World (version %d):", state.Version)
	for _, fact := range state.World {
		b.WriteString("\n- ")
		b.WriteString(fact)
	}
	if state.GameOver {
		b.WriteString("\nThe game is over.")
	}
	return b.String()
}

func FormatInventory(inventory domain.Inventory) string {
	items := inventory.Items()
	if len(items) == 0 {
		return "You carry nothing."
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", item, inventory[item]))
	}
	return "You carry: " + strings.Join(parts, ", ")
}
