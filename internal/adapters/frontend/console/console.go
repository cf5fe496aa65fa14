package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

var _ ports.Publisher = (*Console)(nil)

var speakerPattern = regexp.MustCompile(`^([A-Za-z0-9_.-]+):\s*(.*)$`)

type HandleFunc func(ctx context.Context, msg domain.InboundMessage) error

type Config struct {
	Channel       domain.ChannelID
	DefaultPlayer domain.PlayerID
	Styled        bool
}

// Console plays one channel over a line stream. Each line is "player: text",
// or plain text spoken by the default player.
type Console struct {
	cfg    Config
	in     io.Reader
	out    io.Writer
	handle HandleFunc
	clock  ports.Clock
	logger *zap.Logger

	mu sync.Mutex
}

func New(cfg Config, in io.Reader, out io.Writer, handle HandleFunc, clock ports.Clock, logger *zap.Logger) *Console {
	if cfg.Channel == "" {
		cfg.Channel = "console"
	}
	if cfg.DefaultPlayer == "" {
		cfg.DefaultPlayer = "player"
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{cfg: cfg, in: in, out: out, handle: handle, clock: clock, logger: logger}
}

// ParseLine splits a console line into speaker and text.
func ParseLine(line string, fallback domain.PlayerID) (domain.PlayerID, string) {
	line = strings.TrimSpace(line)
	if match := speakerPattern.FindStringSubmatch(line); match != nil {
		return domain.PlayerID(strings.ToLower(match[1])), strings.TrimSpace(match[2])
	}
	return fallback, line
}

// Run feeds input lines to the handler until EOF or ctx ends.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read console input: %w", err)
					}
				default:
				}
				return nil
			}
			c.play(ctx, line)
		}
	}
}

func (c *Console) play(ctx context.Context, line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return
	}

	player, text := ParseLine(trimmed, c.cfg.DefaultPlayer)
	err := c.handle(ctx, domain.InboundMessage{
		Channel:   c.cfg.Channel,
		Player:    player,
		Text:      text,
		Timestamp: c.clock.Now(),
	})
	switch {
	case err == nil, errors.Is(err, domain.ErrSessionDegraded):
	case errors.Is(err, domain.ErrInvalidBid):
		c.writeLine("[error] " + err.Error())
	default:
		c.logger.Warn("console message failed", zap.String("player", string(player)), zap.Error(err))
		c.writeLine("[error] " + err.Error())
	}
}

func (c *Console) Publish(_ context.Context, msg domain.Outbound) error {
	if msg.Channel != "" && msg.Channel != c.cfg.Channel {
		return nil
	}
	c.writeLine(c.format(msg))
	return nil
}

func (c *Console) format(msg domain.Outbound) string {
	label := "[" + string(msg.Kind) + "]"
	if msg.Audience == domain.AudienceWhisper {
		label = "[to " + string(msg.Player) + "]"
	}
	if c.cfg.Styled {
		label = labelStyle(msg).Render(label)
	}
	return label + " " + msg.Text
}

func (c *Console) writeLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, line)
}

func labelStyle(msg domain.Outbound) lipgloss.Style {
	switch {
	case msg.Audience == domain.AudienceWhisper:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	case msg.Kind == domain.OutboundNarration:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	case msg.Kind == domain.OutboundFatal, msg.Kind == domain.OutboundTransient:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	}
}
