package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/whiskr/backend/internal/core"
	"github.com/whiskr/backend/internal/domain"
)

const presenceKeyPrefix = "presence:"

// Presence is the TTL-based liveness registry. A non-expired key means
// online; there is no explicit heartbeat protocol, any observed activity
// refreshes the window.
type Presence struct {
	kv  core.KV
	ttl time.Duration
}

func NewPresence(kv core.KV, ttl time.Duration) *Presence {
	return &Presence{kv: kv, ttl: ttl}
}

func presenceKey(id domain.UserID) string {
	return presenceKeyPrefix + string(id)
}

func (p *Presence) MarkOnline(ctx context.Context, id domain.UserID) error {
	return p.kv.Set(ctx, presenceKey(id), string(domain.StatusOnline), p.ttl)
}

func (p *Presence) MarkOffline(ctx context.Context, id domain.UserID) error {
	return p.kv.Del(ctx, presenceKey(id))
}

// IsOnline treats store failure as offline: a push sent to a reachable user
// is cheaper than a ring that never arrives.
func (p *Presence) IsOnline(ctx context.Context, id domain.UserID) bool {
	ok, err := p.kv.Exists(ctx, presenceKey(id))
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Str("user_id", string(id)).Msg("presence lookup failed")
		return false
	}
	return ok
}

// Refresh extends the liveness window without touching the value. A no-op
// for users with no record; only MarkOnline creates one.
func (p *Presence) Refresh(ctx context.Context, id domain.UserID) {
	if _, err := p.kv.Expire(ctx, presenceKey(id), p.ttl); err != nil {
		log.Error().Err(err).Str("module", "app.presence").Str("user_id", string(id)).Msg("presence refresh failed")
	}
}
