// Package core declares the narrow interfaces the signaling logic depends on.
// Adapters own the concrete transports and stores; app code only sees these.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/whiskr/backend/internal/domain"
)

// Frame is a raw serialized payload headed for one connection.
type Frame []byte

var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrUserNotFound = errors.New("user not found")
	ErrBackpressure = errors.New("backpressure")
)

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// KV is the per-key store backing presence and the active-call registry.
// No cross-key transactions; SetNX is the only atomic admission primitive.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// UserDirectory resolves user identity for signal attribution.
type UserDirectory interface {
	Find(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// UserStatusStore persists the coarse ONLINE/OFFLINE status shown in chat
// lists. Distinct from the TTL presence record, which is authoritative.
type UserStatusStore interface {
	SetStatus(ctx context.Context, id domain.UserID, status domain.UserStatus, lastSeen *time.Time) error
}

// CallLogStore appends terminal call outcomes and lists them per user.
type CallLogStore interface {
	Append(ctx context.Context, entry *domain.CallLogEntry) error
	History(ctx context.Context, userID domain.UserID) ([]domain.CallLogEntry, error)
}

// NotificationDispatcher pushes to a device when the target has no live
// connection. Delivery mechanics live entirely behind this interface.
type NotificationDispatcher interface {
	SendCallPush(ctx context.Context, to domain.UserID, callerName, callerAvatar string, callType domain.CallType, callID domain.CallID) error
	SendMissedCallPush(ctx context.Context, to domain.UserID, callerName string, callType domain.CallType) error
}
