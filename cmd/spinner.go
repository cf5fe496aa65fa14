package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// checkStep is one backend call of a check run.
type checkStep struct {
	name string
	run  func(context.Context) error
}

type stepResult struct {
	name    string
	elapsed time.Duration
	err     error
}

type stepDoneMsg stepResult

var (
	stepDoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	stepFailedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	stepActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
)

// checkModel runs steps in order and stops at the first failure.
type checkModel struct {
	ctx     context.Context
	spinner spinner.Model
	backend string
	steps   []checkStep
	results []stepResult
}

func newCheckModel(ctx context.Context, backend string, steps []checkStep) checkModel {
	return checkModel{
		ctx:     ctx,
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(stepActiveStyle)),
		backend: backend,
		steps:   steps,
	}
}

func (m checkModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runNext())
}

func (m checkModel) runNext() tea.Cmd {
	if len(m.results) >= len(m.steps) {
		return tea.Quit
	}
	step := m.steps[len(m.results)]
	ctx := m.ctx
	return func() tea.Msg {
		return stepDoneMsg(timeStep(ctx, step))
	}
}

func (m checkModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case stepDoneMsg:
		m.results = append(m.results, stepResult(msg))
		if msg.err != nil {
			return m, tea.Quit
		}
		return m, m.runNext()
	default:
		return m, nil
	}
}

func (m checkModel) View() string {
	var b strings.Builder
	for _, result := range m.results {
		if result.err != nil {
			fmt.Fprintf(&b, "%s %s failed after %s\n", stepFailedStyle.Render("x"), result.name, roundLatency(result.elapsed))
			continue
		}
		fmt.Fprintf(&b, "%s %s %s\n", stepDoneStyle.Render("ok"), result.name, roundLatency(result.elapsed))
	}
	if next := len(m.results); next < len(m.steps) && !m.failed() {
		fmt.Fprintf(&b, "%s %s via %s backend...", m.spinner.View(), m.steps[next].name, m.backend)
	}
	return b.String()
}

func (m checkModel) failed() bool {
	return len(m.results) > 0 && m.results[len(m.results)-1].err != nil
}

func timeStep(ctx context.Context, step checkStep) stepResult {
	started := time.Now()
	err := step.run(ctx)
	return stepResult{name: step.name, elapsed: time.Since(started), err: err}
}

// runChecks runs steps in order, drawing progress on output unless quiet.
func runChecks(ctx context.Context, output io.Writer, backend string, quiet bool, steps []checkStep) ([]stepResult, error) {
	if quiet {
		var results []stepResult
		for _, step := range steps {
			result := timeStep(ctx, step)
			results = append(results, result)
			if result.err != nil {
				return results, result.err
			}
		}
		return results, nil
	}

	p := tea.NewProgram(
		newCheckModel(ctx, backend, steps),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	final, ok := finalModel.(checkModel)
	if !ok {
		return nil, fmt.Errorf("unexpected final check model type %T", finalModel)
	}
	if final.failed() {
		return final.results, final.results[len(final.results)-1].err
	}
	return final.results, nil
}

func roundLatency(d time.Duration) time.Duration {
	if d < time.Millisecond {
		return d.Round(time.Microsecond)
	}
	return d.Round(time.Millisecond)
}
