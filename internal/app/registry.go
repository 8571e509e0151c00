package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/whiskr/backend/internal/core"
	"github.com/whiskr/backend/internal/domain"
)

const callKeyPrefix = "call:"

var ErrCallConflict = errors.New("user already in a call")

// CallEntry is the registry value for one participant of an active call.
// AcceptedAt is stamped when the receiver picks up, so call.end can compute
// the real elapsed duration instead of guessing.
type CallEntry struct {
	CallID     domain.CallID   `json:"call_id"`
	CallType   domain.CallType `json:"call_type"`
	PeerID     domain.UserID   `json:"peer_id"`
	Caller     bool            `json:"caller"`
	StartedAt  time.Time       `json:"started_at"`
	AcceptedAt *time.Time      `json:"accepted_at,omitempty"`
}

// CallRegistry holds at most one active-call entry per user, each with the
// liveness TTL so abandoned calls clean themselves up.
type CallRegistry struct {
	kv  core.KV
	ttl time.Duration
	now func() time.Time
}

func NewCallRegistry(kv core.KV, ttl time.Duration) *CallRegistry {
	return &CallRegistry{kv: kv, ttl: ttl, now: time.Now}
}

func callKey(id domain.UserID) string {
	return callKeyPrefix + string(id)
}

// TryStart registers entry for userID unless a non-expired entry already
// exists. Admission is a single SETNX, so two racing callers cannot both be
// admitted for the same user.
func (r *CallRegistry) TryStart(ctx context.Context, userID domain.UserID, entry CallEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal call entry: %w", err)
	}
	ok, err := r.kv.SetNX(ctx, callKey(userID), string(raw), r.ttl)
	if err != nil {
		return fmt.Errorf("register call for %s: %w", userID, err)
	}
	if !ok {
		return ErrCallConflict
	}
	return nil
}

// RegisterPair admits a two-party call: caller first, then receiver. If the
// receiver side loses the admission race the caller registration is rolled
// back, so a failed initiate leaves no state behind.
func (r *CallRegistry) RegisterPair(ctx context.Context, caller, receiver domain.UserID, callID domain.CallID, callType domain.CallType) error {
	started := r.now()
	err := r.TryStart(ctx, caller, CallEntry{
		CallID:    callID,
		CallType:  callType,
		PeerID:    receiver,
		Caller:    true,
		StartedAt: started,
	})
	if err != nil {
		return err
	}
	err = r.TryStart(ctx, receiver, CallEntry{
		CallID:    callID,
		CallType:  callType,
		PeerID:    caller,
		StartedAt: started,
	})
	if err != nil {
		if derr := r.End(ctx, caller); derr != nil {
			log.Error().Err(derr).Str("module", "app.registry").Str("user_id", string(caller)).Msg("compensating deregister failed")
		}
		return err
	}
	return nil
}

// Get returns the entry for userID, or ok=false when none exists.
func (r *CallRegistry) Get(ctx context.Context, userID domain.UserID) (CallEntry, bool, error) {
	raw, err := r.kv.Get(ctx, callKey(userID))
	if errors.Is(err, core.ErrKeyNotFound) {
		return CallEntry{}, false, nil
	}
	if err != nil {
		return CallEntry{}, false, fmt.Errorf("get call for %s: %w", userID, err)
	}
	var entry CallEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return CallEntry{}, false, fmt.Errorf("decode call entry for %s: %w", userID, err)
	}
	return entry, true, nil
}

// GetCallID is a convenience read for busy checks and tests.
func (r *CallRegistry) GetCallID(ctx context.Context, userID domain.UserID) (domain.CallID, bool) {
	entry, ok, err := r.Get(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("user_id", string(userID)).Msg("call lookup failed")
		return "", false
	}
	if !ok {
		return "", false
	}
	return entry.CallID, true
}

// Refresh extends the TTL; called on every signal that keeps a call alive.
func (r *CallRegistry) Refresh(ctx context.Context, userID domain.UserID) {
	if _, err := r.kv.Expire(ctx, callKey(userID), r.ttl); err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("user_id", string(userID)).Msg("call refresh failed")
	}
}

// MarkAccepted stamps the accept time into the entry and resets the full
// TTL. Missing entries (already expired) are left alone.
func (r *CallRegistry) MarkAccepted(ctx context.Context, userID domain.UserID) {
	entry, ok, err := r.Get(ctx, userID)
	if err != nil || !ok {
		if err != nil {
			log.Error().Err(err).Str("module", "app.registry").Str("user_id", string(userID)).Msg("mark accepted failed")
		}
		return
	}
	if entry.AcceptedAt == nil {
		t := r.now()
		entry.AcceptedAt = &t
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("mark accepted marshal")
		return
	}
	if err := r.kv.Set(ctx, callKey(userID), string(raw), r.ttl); err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("user_id", string(userID)).Msg("mark accepted write failed")
	}
}

// End deletes the entry unconditionally.
func (r *CallRegistry) End(ctx context.Context, userID domain.UserID) error {
	return r.kv.Del(ctx, callKey(userID))
}

// EndPair clears both participants; each delete is independent and a failure
// on one side does not stop the other.
func (r *CallRegistry) EndPair(ctx context.Context, a, b domain.UserID) {
	for _, id := range []domain.UserID{a, b} {
		if err := r.End(ctx, id); err != nil {
			log.Error().Err(err).Str("module", "app.registry").Str("user_id", string(id)).Msg("end call failed")
		}
	}
}
