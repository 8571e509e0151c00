package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/whiskr/backend/internal/core"
	"github.com/whiskr/backend/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	u := &domain.User{ID: "alice", Name: "Alice", AvatarURL: "https://cdn/a.png"}
	if err := db.UpsertUser(ctx, u); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.Find(ctx, "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "Alice" || got.AvatarURL != "https://cdn/a.png" || got.Status != domain.StatusOffline {
		t.Fatalf("wrong user: %+v", got)
	}

	_, err = db.Find(ctx, "nobody")
	if !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.UpsertUser(ctx, &domain.User{ID: "alice", Name: "Alice"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := db.SetStatus(ctx, "alice", domain.StatusOnline, nil); err != nil {
		t.Fatalf("set online: %v", err)
	}
	got, _ := db.Find(ctx, "alice")
	if got.Status != domain.StatusOnline || got.LastSeen != nil {
		t.Fatalf("wrong online state: %+v", got)
	}

	seen := time.Now().Truncate(time.Second)
	if err := db.SetStatus(ctx, "alice", domain.StatusOffline, &seen); err != nil {
		t.Fatalf("set offline: %v", err)
	}
	got, _ = db.Find(ctx, "alice")
	if got.Status != domain.StatusOffline || got.LastSeen == nil || !got.LastSeen.Equal(seen) {
		t.Fatalf("wrong offline state: %+v", got)
	}

	err := db.SetStatus(ctx, "nobody", domain.StatusOnline, nil)
	if !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCallLogHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Now().Truncate(time.Second)
	entries := []domain.CallLogEntry{
		{ID: "l1", CallerID: "alice", ReceiverID: "bob", Type: domain.CallVoice, Status: domain.CallMissed, CreatedAt: base.Add(-2 * time.Hour)},
		{ID: "l2", CallerID: "bob", ReceiverID: "alice", Type: domain.CallVideo, Status: domain.CallEnded, Duration: 42, CreatedAt: base.Add(-time.Hour)},
		{ID: "l3", CallerID: "carol", ReceiverID: "dave", Type: domain.CallVoice, Status: domain.CallEnded, CreatedAt: base},
	}
	for i := range entries {
		if err := db.Append(ctx, &entries[i]); err != nil {
			t.Fatalf("append %s: %v", entries[i].ID, err)
		}
	}

	got, err := db.History(ctx, "alice")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("alice must see 2 entries, got %d", len(got))
	}
	if got[0].ID != "l2" || got[1].ID != "l1" {
		t.Fatalf("history must be newest first, got %s then %s", got[0].ID, got[1].ID)
	}
	if got[0].Duration != 42 || got[0].Type != domain.CallVideo {
		t.Fatalf("entry fields lost: %+v", got[0])
	}
}

func TestCallLogKeepsTimestamps(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	ended := started.Add(42 * time.Second)
	entry := domain.CallLogEntry{
		ID: "l1", CallerID: "alice", ReceiverID: "bob",
		Type: domain.CallVoice, Status: domain.CallEnded,
		StartedAt: &started, EndedAt: &ended, Duration: 42,
		CreatedAt: ended,
	}
	if err := db.Append(ctx, &entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := db.History(ctx, "bob")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one entry, got %d", len(got))
	}
	if got[0].StartedAt == nil || !got[0].StartedAt.Equal(started) {
		t.Fatalf("startedAt lost: %+v", got[0].StartedAt)
	}
	if got[0].EndedAt == nil || !got[0].EndedAt.Equal(ended) {
		t.Fatalf("endedAt lost: %+v", got[0].EndedAt)
	}
}
