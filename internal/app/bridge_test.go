package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/whiskr/backend/internal/domain"
)

type statusWrite struct {
	status   domain.UserStatus
	lastSeen *time.Time
}

type fakeStatusStore struct {
	mu     sync.Mutex
	writes map[domain.UserID][]statusWrite
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{writes: make(map[domain.UserID][]statusWrite)}
}

func (s *fakeStatusStore) SetStatus(_ context.Context, id domain.UserID, status domain.UserStatus, lastSeen *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[id] = append(s.writes[id], statusWrite{status: status, lastSeen: lastSeen})
	return nil
}

func (s *fakeStatusStore) last(id domain.UserID) (statusWrite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.writes[id]
	if len(w) == 0 {
		return statusWrite{}, false
	}
	return w[len(w)-1], true
}

func TestBridgeConnectMarksOnline(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemKV(clock)
	presence := NewPresence(store, 2*time.Minute)
	registry := NewCallRegistry(store, 2*time.Minute)
	relay := NewRelay()
	status := newFakeStatusStore()
	b := NewSessionBridge(presence, registry, relay, status)
	b.now = clock.Now

	conn := &fakeConn{}
	b.Connected(ctx, "alice", conn)

	if !presence.IsOnline(ctx, "alice") {
		t.Fatal("connected user must be online")
	}
	if w, ok := status.last("alice"); !ok || w.status != domain.StatusOnline || w.lastSeen != nil {
		t.Fatalf("persisted status wrong: %+v ok=%v", w, ok)
	}
	if !relay.Deliver("alice", map[string]string{"type": "x"}) {
		t.Fatal("connection must be bound in the relay")
	}
}

func TestBridgeDisconnectMarksOfflineAndNotifiesPeer(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemKV(clock)
	presence := NewPresence(store, 2*time.Minute)
	registry := NewCallRegistry(store, 2*time.Minute)
	registry.now = clock.Now
	relay := NewRelay()
	status := newFakeStatusStore()
	b := NewSessionBridge(presence, registry, relay, status)
	b.now = clock.Now

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	b.Connected(ctx, "alice", aliceConn)
	b.Connected(ctx, "bob", bobConn)

	if err := registry.RegisterPair(ctx, "alice", "bob", "c1", domain.CallVoice); err != nil {
		t.Fatalf("seed call: %v", err)
	}

	clock.Advance(30 * time.Second)
	b.Disconnected(ctx, "alice", aliceConn)

	if presence.IsOnline(ctx, "alice") {
		t.Fatal("disconnected user must be offline")
	}
	w, ok := status.last("alice")
	if !ok || w.status != domain.StatusOffline {
		t.Fatalf("persisted status wrong: %+v", w)
	}
	if w.lastSeen == nil || !w.lastSeen.Equal(clock.Now()) {
		t.Fatalf("lastSeen must be the disconnect time, got %v", w.lastSeen)
	}

	// The call peer hears about the drop.
	frames := bobConn.events(t)
	if len(frames) != 1 || frames[0].Type != domain.SignalPresenceChanged {
		t.Fatalf("peer must get a presence.changed event, got %+v", frames)
	}
	var raw struct {
		UserID domain.UserID     `json:"userId"`
		Status domain.UserStatus `json:"status"`
	}
	bobConn.mu.Lock()
	frame := bobConn.frames[0]
	bobConn.mu.Unlock()
	if err := json.Unmarshal(frame, &raw); err != nil {
		t.Fatalf("bad presence frame: %v", err)
	}
	if raw.UserID != "alice" || raw.Status != domain.StatusOffline {
		t.Fatalf("wrong presence payload: %+v", raw)
	}
}

func TestBridgeStaleDisconnectKeepsFreshBinding(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemKV(clock)
	presence := NewPresence(store, 2*time.Minute)
	registry := NewCallRegistry(store, 2*time.Minute)
	relay := NewRelay()
	b := NewSessionBridge(presence, registry, relay, newFakeStatusStore())
	b.now = clock.Now

	oldConn := &fakeConn{}
	newConn := &fakeConn{}
	b.Connected(ctx, "alice", oldConn)
	b.Connected(ctx, "alice", newConn)

	// The old connection's teardown arrives late.
	b.Disconnected(ctx, "alice", oldConn)

	if !relay.Deliver("alice", map[string]string{"type": "x"}) {
		t.Fatal("fresh binding must survive a stale disconnect")
	}
}
