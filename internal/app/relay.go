package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/whiskr/backend/internal/core"
	"github.com/whiskr/backend/internal/domain"
)

// Relay maps each user to their single live connection and delivers events
// best-effort: no queue, no retry. Stale signaling data is worthless, so a
// drop beats a buffer.
type Relay struct {
	mu    sync.RWMutex
	conns map[domain.UserID]core.SignalConnection
}

func NewRelay() *Relay {
	return &Relay{conns: make(map[domain.UserID]core.SignalConnection)}
}

// Bind replaces any previous connection for the user (one session assumed).
func (r *Relay) Bind(id domain.UserID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = conn
	log.Info().Str("module", "app.relay").Str("user_id", string(id)).Msg("bound connection")
}

// Unbind removes the mapping only if conn is still the current one, so a
// reconnect racing a stale disconnect does not lose the fresh binding.
func (r *Relay) Unbind(id domain.UserID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[id] == conn {
		delete(r.conns, id)
		log.Info().Str("module", "app.relay").Str("user_id", string(id)).Msg("unbound connection")
	}
}

// Deliver sends v to the target's live connection, dropping silently when
// the target is absent or backpressured. Returns whether the frame was
// handed to a connection.
func (r *Relay) Deliver(id domain.UserID, v any) bool {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		log.Debug().Str("module", "app.relay").Str("user_id", string(id)).Msg("no live connection, dropping")
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal event")
		return false
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("user_id", string(id)).Msg("send dropped")
		return false
	}
	return true
}
