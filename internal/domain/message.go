package domain

import "time"

type InboundMessage struct {
	Channel   ChannelID
	Player    PlayerID
	Text      string
	Timestamp time.Time
}

type Audience string

const (
	AudienceBroadcast Audience = "broadcast"
	AudienceWhisper   Audience = "whisper"
)

type OutboundKind string

const (
	OutboundNarration OutboundKind = "narration"
	OutboundWithhold  OutboundKind = "withhold"
	OutboundRefusal   OutboundKind = "refusal"
	OutboundTransient OutboundKind = "transient"
	OutboundDropped   OutboundKind = "dropped"
	OutboundFatal     OutboundKind = "fatal"
	OutboundInfo      OutboundKind = "info"
	OutboundEnded     OutboundKind = "ended"
)

// Outbound is a message for the chat adapter. Player is set for whispers.
type Outbound struct {
	Session  SessionID
	Channel  ChannelID
	Audience Audience
	Player   PlayerID
	Kind     OutboundKind
	Text     string
}

func Broadcast(session Session, kind OutboundKind, text string) Outbound {
	return Outbound{Session: session.ID, Channel: session.Channel, Audience: AudienceBroadcast, Kind: kind, Text: text}
}

func Whisper(session Session, player PlayerID, kind OutboundKind, text string) Outbound {
	return Outbound{Session: session.ID, Channel: session.Channel, Audience: AudienceWhisper, Player: player, Kind: kind, Text: text}
}
