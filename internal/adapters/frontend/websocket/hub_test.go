package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubForwardsSayFrames(t *testing.T) {
	t.Parallel()

	inbox := &inbox{}
	hub, server := newTestHub(t, inbox)

	conn := dial(t, server, "tavern", "alice")
	require.Equal(t, "welcome", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Frame{Type: "say", Text: "I open the door"}))
	require.Eventually(t, func() bool { return len(inbox.all()) == 1 }, 2*time.Second, 5*time.Millisecond)

	msg := inbox.all()[0]
	assert.Equal(t, domain.ChannelID("tavern"), msg.Channel)
	assert.Equal(t, domain.PlayerID("alice"), msg.Player)
	assert.Equal(t, "I open the door", msg.Text)
	assert.False(t, msg.Timestamp.IsZero())
	assert.Equal(t, 1, hub.Clients())
}

func TestHubRejectsUnknownFrames(t *testing.T) {
	t.Parallel()

	_, server := newTestHub(t, &inbox{})
	conn := dial(t, server, "tavern", "alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "error", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Frame{Type: "shout"}))
	assert.Contains(t, readFrame(t, conn).Text, "unknown frame type")
}

func TestHubPublishRoutesBroadcastsAndWhispers(t *testing.T) {
	t.Parallel()

	hub, server := newTestHub(t, &inbox{})
	alice := dial(t, server, "tavern", "alice")
	bob := dial(t, server, "tavern", "bob")
	elsewhere := dial(t, server, "cellar", "carol")
	for _, conn := range []*websocket.Conn{alice, bob, elsewhere} {
		readFrame(t, conn)
	}
	require.Eventually(t, func() bool { return hub.Clients() == 3 }, 2*time.Second, 5*time.Millisecond)

	session := domain.Session{ID: "tavern#1", Channel: "tavern"}
	require.NoError(t, hub.Publish(context.Background(), domain.Whisper(session, "bob", domain.OutboundWithhold, "too slow")))
	require.NoError(t, hub.Publish(context.Background(), domain.Broadcast(session, domain.OutboundNarration, "The door creaks open.")))

	first := readFrame(t, bob)
	assert.Equal(t, "withhold", first.Type)
	assert.Equal(t, "whisper", first.Audience)
	assert.Equal(t, "The door creaks open.", readFrame(t, bob).Text)

	narration := readFrame(t, alice)
	assert.Equal(t, "narration", narration.Type)
	assert.Equal(t, "tavern#1", narration.Session)

	require.NoError(t, elsewhere.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := elsewhere.ReadMessage()
	assert.Error(t, err, "other channels receive nothing")
}

func TestHubRequiresChannelAndPlayer(t *testing.T) {
	t.Parallel()

	_, server := newTestHub(t, &inbox{})
	resp, err := http.Get(server.URL + "/ws?channel=tavern")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	health, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	t.Parallel()

	hub, server := newTestHub(t, &inbox{})
	conn := dial(t, server, "tavern", "alice")
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func newTestHub(t *testing.T, inbox *inbox) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(inbox.receive, nil, nil)
	server := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, channel, player string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?channel=" + channel + "&player=" + player
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

type inbox struct {
	mu       sync.Mutex
	messages []domain.InboundMessage
}

func (i *inbox) receive(_ context.Context, msg domain.InboundMessage) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.messages = append(i.messages, msg)
}

func (i *inbox) all() []domain.InboundMessage {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]domain.InboundMessage(nil), i.messages...)
}
