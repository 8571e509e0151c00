package domain

import (
	"fmt"
	"time"
)

// SignalType enumerates every signal the router understands. Dispatch is an
// exhaustive switch over these constants; anything else is rejected at the
// decode boundary by ParseSignalType.
type SignalType string

const (
	SignalInitiate SignalType = "call.initiate"
	SignalAccepted SignalType = "call.accepted"
	SignalDeclined SignalType = "call.declined"
	SignalOffer    SignalType = "call.offer"
	SignalAnswer   SignalType = "call.answer"
	SignalICE      SignalType = "call.ice"
	SignalEnd      SignalType = "call.end"
	SignalTyping   SignalType = "chat.typing"
	SignalPing     SignalType = "presence.ping"

	// Outbound only.
	SignalBusy            SignalType = "call.busy"
	SignalPresenceChanged SignalType = "presence.changed"
)

func ParseSignalType(s string) (SignalType, error) {
	switch t := SignalType(s); t {
	case SignalInitiate, SignalAccepted, SignalDeclined,
		SignalOffer, SignalAnswer, SignalICE, SignalEnd,
		SignalTyping, SignalPing:
		return t, nil
	}
	return "", fmt.Errorf("unknown signal type %q", s)
}

// Envelope is one inbound frame from a connected user. SDP and ICE fields are
// opaque carriers; the router never looks inside them.
type Envelope struct {
	TargetUserID  UserID   `json:"targetUserId"`
	Type          string   `json:"type"`
	CallType      CallType `json:"callType,omitempty"`
	CallID        CallID   `json:"callId,omitempty"`
	SDP           string   `json:"sdp,omitempty"`
	Candidate     string   `json:"candidate,omitempty"`
	SDPMid        string   `json:"sdpMid,omitempty"`
	SDPMLineIndex *int     `json:"sdpMLineIndex,omitempty"`
}

// Event is one outbound frame, addressed to a single user's connection.
type Event struct {
	Type          SignalType `json:"type"`
	CallID        CallID     `json:"callId,omitempty"`
	CallType      CallType   `json:"callType,omitempty"`
	FromUserID    UserID     `json:"fromUserId"`
	FromUserName  string     `json:"fromUserName,omitempty"`
	FromAvatarURL string     `json:"fromAvatarUrl,omitempty"`
	SDP           string     `json:"sdp,omitempty"`
	Candidate     string     `json:"candidate,omitempty"`
	SDPMid        string     `json:"sdpMid,omitempty"`
	SDPMLineIndex *int       `json:"sdpMLineIndex,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}
