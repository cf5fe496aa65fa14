package state

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bnema/fungame/internal/application"
	"github.com/bnema/fungame/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
}

func RenderState(view application.StateView, opts RenderOptions) (string, error) {
	return render(func(s styles) string { return stateView(view, opts, s) })
}

func RenderHistory(session domain.Session, history []domain.GameState, opts RenderOptions) (string, error) {
	return render(func(s styles) string { return historyView(session, history, opts, s) })
}

func RenderSessions(sessions []application.SessionSummary, opts RenderOptions) (string, error) {
	return render(func(s styles) string { return sessionsView(sessions, opts, s) })
}

func stateView(view application.StateView, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("Session %s", view.Session.ID)),
		sessionHeader(view.Session, view.State.Version, opts, s),
	}
	if view.Session.Degraded() {
		lines = append(lines, s.warning.Render("degraded: "+view.Session.DegradedReason))
	}
	if view.State.GameOver {
		lines = append(lines, s.warning.Render("game over"))
	}

	lines = append(lines,
		s.section.Render(worldBlock(view.State.World, s)),
		s.section.Render(inventoriesBlock(view.State.Inventories, s)),
	)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func historyView(session domain.Session, history []domain.GameState, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("History of %s", session.ID)),
		s.header.Render(fmt.Sprintf("versions: %d", len(history))),
	}
	if len(history) == 0 {
		lines = append(lines, s.empty.Render("No committed states."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, state := range history {
		lines = append(lines, s.section.Render(versionBlock(state, opts, s)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func sessionsView(sessions []application.SessionSummary, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Game Sessions"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(sessions))),
	}
	if len(sessions) == 0 {
		lines = append(lines, s.empty.Render("No sessions yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, summary := range sessions {
		status := statusStyle(summary.Status, s).Render(string(summary.Status))
		line := lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.player.Render(string(summary.ID)),
			" ",
			status,
			" ",
			s.label.Render(fmt.Sprintf("v%d players %d", summary.Version, summary.Players)),
			" ",
			s.header.Render(formatActivity(summary.LastActivityAt, opts.Now)),
		)
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func sessionHeader(session domain.Session, version uint64, opts RenderOptions, s styles) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.version.Render(fmt.Sprintf("version %d", version)),
		" ",
		statusStyle(session.Status, s).Render(string(session.Status)),
		" ",
		s.header.Render(fmt.Sprintf("turns %d | %s", session.TurnCounter, formatActivity(session.LastActivityAt, opts.Now))),
	)
}

func versionBlock(state domain.GameState, opts RenderOptions, s styles) string {
	trigger := "initial state"
	switch {
	case state.OperatorEdit():
		trigger = "operator edit"
	case state.Version > 0:
		trigger = "turn by " + string(state.TriggerPlayer)
	}
	header := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.version.Render(fmt.Sprintf("v%d", state.Version)),
		" ",
		s.label.Render(trigger),
		" ",
		s.header.Render(formatActivity(state.CommittedAt, opts.Now)),
	)

	parts := []string{header}
	if state.Action != "" {
		parts = append(parts, s.player.Render("  > "+state.Action))
	}
	if state.Response != "" {
		parts = append(parts, s.item.Render("  < "+state.Response))
	}
	for _, fact := range state.World {
		parts = append(parts, s.fact.Render("  - "+fact))
	}
	if state.GameOver {
		parts = append(parts, s.warning.Render("  game over"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func worldBlock(world []string, s styles) string {
	parts := []string{s.label.Render("World")}
	if len(world) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, append(parts, s.empty.Render("  nothing is known yet"))...)
	}
	for _, fact := range world {
		parts = append(parts, s.fact.Render("  - "+fact))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func inventoriesBlock(inventories map[domain.PlayerID]domain.Inventory, s styles) string {
	parts := []string{s.label.Render("Inventories")}
	if len(inventories) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, append(parts, s.empty.Render("  nobody carries anything"))...)
	}

	players := make([]string, 0, len(inventories))
	for player := range inventories {
		players = append(players, string(player))
	}
	sort.Strings(players)

	for _, player := range players {
		parts = append(parts, "  "+s.player.Render(player)+" "+s.item.Render(inventoryLine(inventories[domain.PlayerID(player)])))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func inventoryLine(inventory domain.Inventory) string {
	items := make([]string, 0, len(inventory))
	for item := range inventory {
		items = append(items, item)
	}
	sort.Strings(items)

	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("%s x%d", item, inventory[item]))
	}
	return strings.Join(out, ", ")
}

func statusStyle(status domain.SessionStatus, s styles) lipgloss.Style {
	switch status {
	case domain.SessionDegraded:
		return s.warning
	case domain.SessionArchived:
		return s.archived
	default:
		return s.version
	}
}

func formatActivity(at, now time.Time) string {
	if at.IsZero() {
		return "never"
	}
	if now.IsZero() {
		return at.UTC().Format(time.RFC3339)
	}

	ago := now.Sub(at)
	switch {
	case ago < time.Minute:
		return "just now"
	case ago < time.Hour:
		return fmt.Sprintf("%dm ago", int(ago.Minutes()))
	case ago < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(ago.Hours()))
	default:
		return at.UTC().Format("02 Jan 15:04")
	}
}
