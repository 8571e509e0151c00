package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/whiskr/backend/internal/core"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memItem struct {
	value     string
	expiresAt time.Time
}

// memKV implements core.KV against the fake clock, honoring TTL expiry the
// way a real key-value store would.
type memKV struct {
	clock *fakeClock

	mu    sync.Mutex
	items map[string]memItem
}

func newMemKV(clock *fakeClock) *memKV {
	return &memKV{clock: clock, items: make(map[string]memItem)}
}

func (m *memKV) live(key string) (memItem, bool) {
	item, ok := m.items[key]
	if !ok {
		return memItem{}, false
	}
	if !item.expiresAt.IsZero() && !m.clock.Now().Before(item.expiresAt) {
		delete(m.items, key)
		return memItem{}, false
	}
	return item, true
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.live(key)
	if !ok {
		return "", core.ErrKeyNotFound
	}
	return item.value, nil
}

func (m *memKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memItem{value: value, expiresAt: m.clock.Now().Add(ttl)}
	return nil
}

func (m *memKV) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.items[key] = memItem{value: value, expiresAt: m.clock.Now().Add(ttl)}
	return true, nil
}

func (m *memKV) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.live(key)
	if !ok {
		return false, nil
	}
	item.expiresAt = m.clock.Now().Add(ttl)
	m.items[key] = item
	return true, nil
}

func (m *memKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok, nil
}

var errStoreDown = errors.New("store down")

// downKV fails every operation, for fail-closed behavior tests.
type downKV struct{}

func (downKV) Get(context.Context, string) (string, error) { return "", errStoreDown }

func (downKV) Set(context.Context, string, string, time.Duration) error {
	return errStoreDown
}

func (downKV) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, errStoreDown
}

func (downKV) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, errStoreDown
}

func (downKV) Del(context.Context, string) error { return errStoreDown }

func (downKV) Exists(context.Context, string) (bool, error) { return false, errStoreDown }
