package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/whiskr/backend/internal/core"
	"github.com/whiskr/backend/internal/domain"
)

// SessionBridge ties transport connect/disconnect events to presence and
// the persisted user status. Status-store failures are logged, never
// surfaced: the TTL presence record stays authoritative.
type SessionBridge struct {
	Presence *Presence
	Registry *CallRegistry
	Relay    *Relay
	Status   core.UserStatusStore

	now func() time.Time
}

func NewSessionBridge(presence *Presence, registry *CallRegistry, relay *Relay, status core.UserStatusStore) *SessionBridge {
	return &SessionBridge{
		Presence: presence,
		Registry: registry,
		Relay:    relay,
		Status:   status,
		now:      time.Now,
	}
}

func (b *SessionBridge) Connected(ctx context.Context, id domain.UserID, conn core.SignalConnection) {
	b.Relay.Bind(id, conn)
	if err := b.Presence.MarkOnline(ctx, id); err != nil {
		log.Error().Err(err).Str("module", "app.bridge").Str("user_id", string(id)).Msg("mark online failed")
	}
	if err := b.Status.SetStatus(ctx, id, domain.StatusOnline, nil); err != nil {
		log.Error().Err(err).Str("module", "app.bridge").Str("user_id", string(id)).Msg("persist online status failed")
	}
	log.Info().Str("module", "app.bridge").Str("user_id", string(id)).Msg("user connected")
}

func (b *SessionBridge) Disconnected(ctx context.Context, id domain.UserID, conn core.SignalConnection) {
	b.Relay.Unbind(id, conn)
	if err := b.Presence.MarkOffline(ctx, id); err != nil {
		log.Error().Err(err).Str("module", "app.bridge").Str("user_id", string(id)).Msg("mark offline failed")
	}
	lastSeen := b.now()
	if err := b.Status.SetStatus(ctx, id, domain.StatusOffline, &lastSeen); err != nil {
		log.Error().Err(err).Str("module", "app.bridge").Str("user_id", string(id)).Msg("persist offline status failed")
	}

	// If the user was mid-call, the peer learns about the drop right away
	// instead of waiting out the TTL. Best-effort, same drop semantics as
	// any relay.
	if entry, ok, err := b.Registry.Get(ctx, id); err == nil && ok {
		b.Relay.Deliver(entry.PeerID, struct {
			Type      domain.SignalType `json:"type"`
			UserID    domain.UserID     `json:"userId"`
			Status    domain.UserStatus `json:"status"`
			LastSeen  time.Time         `json:"lastSeen"`
			Timestamp time.Time         `json:"timestamp"`
		}{
			Type:      domain.SignalPresenceChanged,
			UserID:    id,
			Status:    domain.StatusOffline,
			LastSeen:  lastSeen,
			Timestamp: lastSeen,
		})
	}

	log.Info().Str("module", "app.bridge").Str("user_id", string(id)).Msg("user disconnected")
}
