package domain

import "time"

type CallID string

type CallType string

const (
	CallVoice CallType = "VOICE"
	CallVideo CallType = "VIDEO"
)

type CallStatus string

const (
	CallMissed   CallStatus = "MISSED"
	CallAnswered CallStatus = "ANSWERED"
	CallDeclined CallStatus = "DECLINED"
	CallEnded    CallStatus = "ENDED"
)

// CallLogEntry is the append-only record of one finished (or missed) call.
type CallLogEntry struct {
	ID         string     `json:"id"`
	CallerID   UserID     `json:"callerId"`
	ReceiverID UserID     `json:"receiverId"`
	Type       CallType   `json:"type"`
	Status     CallStatus `json:"status"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	Duration   int        `json:"duration"`
	CreatedAt  time.Time  `json:"createdAt"`
}
