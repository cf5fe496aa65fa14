package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var _ ports.Publisher = (*Hub)(nil)

const writeTimeout = 5 * time.Second

// Frame is the JSON message exchanged with clients.
type Frame struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Session  string `json:"session,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Audience string `json:"audience,omitempty"`
	Player   string `json:"player,omitempty"`
}

type InboundFunc func(ctx context.Context, msg domain.InboundMessage)

type client struct {
	conn    *websocket.Conn
	channel domain.ChannelID
	player  domain.PlayerID
	mu      sync.Mutex
}

func (c *client) send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(frame)
}

// Hub accepts player connections and fans game master output out to them.
// Clients join with /ws?channel=<id>&player=<id>.
type Hub struct {
	upgrader websocket.Upgrader
	inbound  InboundFunc
	clock    ports.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(inbound InboundFunc, clock ports.Clock, logger *zap.Logger) *Hub {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		inbound:  inbound,
		clock:    clock,
		logger:   logger,
		clients:  map[*client]struct{}{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": h.Clients()})
	})
	return mux
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Publish(_ context.Context, msg domain.Outbound) error {
	frame := Frame{
		Type:     string(msg.Kind),
		Text:     msg.Text,
		Session:  string(msg.Session),
		Channel:  string(msg.Channel),
		Audience: string(msg.Audience),
		Player:   string(msg.Player),
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.channel != msg.Channel {
			continue
		}
		if msg.Audience == domain.AudienceWhisper && c.player != msg.Player {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(frame); err != nil {
			h.logger.Debug("websocket write failed", zap.String("player", string(c.player)), zap.Error(err))
			h.drop(c)
		}
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	clients := h.clients
	h.clients = map[*client]struct{}{}
	h.mu.Unlock()

	for c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	player := strings.TrimSpace(r.URL.Query().Get("player"))
	if channel == "" || player == "" {
		http.Error(w, `{"error":"channel and player are required"}`, http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, channel: domain.ChannelID(channel), player: domain.PlayerID(player)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("player connected", zap.String("channel", channel), zap.String("player", player))
	_ = c.send(Frame{Type: "welcome", Channel: channel, Player: player, Text: "Connected. Send {\"type\":\"say\",\"text\":\"...\"}."})

	go h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.drop(c)
		h.logger.Info("player disconnected", zap.String("channel", string(c.channel)), zap.String("player", string(c.player)))
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("player", string(c.player)), zap.Error(err))
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = c.send(Frame{Type: "error", Text: "invalid JSON frame"})
			continue
		}
		if frame.Type != "say" {
			_ = c.send(Frame{Type: "error", Text: "unknown frame type " + frame.Type})
			continue
		}

		h.inbound(h.ctx, domain.InboundMessage{
			Channel:   c.channel,
			Player:    c.player,
			Text:      frame.Text,
			Timestamp: h.clock.Now(),
		})
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}
