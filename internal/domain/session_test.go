package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := NewSessionID("guild-42:general", 3)
	assert.Equal(t, SessionID("guild-42:general#3"), id)

	channel, generation, err := ParseSessionID(id)
	require.NoError(t, err)
	assert.Equal(t, ChannelID("guild-42:general"), channel)
	assert.Equal(t, 3, generation)
}

func TestParseSessionIDRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []SessionID{"", "general", "general#", "#1", "general#zero", "general#0"} {
		_, _, err := ParseSessionID(raw)
		assert.Error(t, err, raw)
	}
}

func TestSessionValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		session Session
		wantErr string
	}{
		{name: "valid", session: Session{ID: "c#1", Channel: "c", Generation: 1, Status: SessionActive}},
		{name: "missing id", session: Session{Channel: "c", Generation: 1, Status: SessionActive}, wantErr: "id is required"},
		{name: "missing channel", session: Session{ID: "c#1", Generation: 1, Status: SessionActive}, wantErr: "channel is required"},
		{name: "zero generation", session: Session{ID: "c#1", Channel: "c", Status: SessionActive}, wantErr: "generation must be positive"},
		{name: "unknown status", session: Session{ID: "c#1", Channel: "c", Generation: 1, Status: "paused"}, wantErr: "unsupported status"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.session.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestSessionRecordWinnerKeepsNewest(t *testing.T) {
	t.Parallel()

	var s Session
	for _, player := range []PlayerID{"a", "b", "c", "d"} {
		s.RecordWinner(player, 2)
	}
	assert.Equal(t, []PlayerID{"c", "d"}, s.RecentWinners)

	s.RecordWinner("e", 0)
	assert.Empty(t, s.RecentWinners)
}

func TestSessionIdleSince(t *testing.T) {
	t.Parallel()

	s := Session{LastActivityAt: t0}
	assert.False(t, s.IdleSince(t0.Add(time.Minute), time.Hour))
	assert.True(t, s.IdleSince(t0.Add(time.Hour), time.Hour))
	assert.False(t, s.IdleSince(t0.Add(48*time.Hour), 0))
	assert.False(t, Session{}.IdleSince(t0, time.Second))
}

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	v, err := ParseVerdict("accept")
	require.NoError(t, err)
	assert.Equal(t, VerdictAdmit, v)

	v, err = ParseVerdict(" Reject ")
	require.NoError(t, err)
	assert.Equal(t, VerdictReject, v)

	_, err = ParseVerdict("maybe")
	assert.Error(t, err)
}

func TestSessionCustomRules(t *testing.T) {
	t.Parallel()

	var s Session
	_, err := s.AddRule(CustomRule{Text: "   "})
	require.Error(t, err)

	n, err := s.AddRule(CustomRule{Text: "dragons are shy", AddedBy: "gm"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.AddRule(CustomRule{Text: "the innkeeper is the villain", Secret: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = s.AddRule(CustomRule{Text: "it always rains"})
	require.NoError(t, err)

	public := s.PublicRules()
	require.Len(t, public, 2)
	assert.Equal(t, "dragons are shy", public[0].Text)

	removed, err := s.RemoveRule(1)
	require.NoError(t, err)
	assert.Equal(t, "dragons are shy", removed.Text)
	require.Len(t, s.Rules, 2)
	assert.Equal(t, "the innkeeper is the villain", s.Rules[0].Text)

	_, err = s.RemoveRule(3)
	assert.ErrorIs(t, err, ErrRuleNotFound)

	rules := Rules{Do: []string{"be kind"}}.WithCustom(s.Rules)
	assert.Equal(t, []string{"the innkeeper is the villain", "it always rains"}, rules.Custom)
}
