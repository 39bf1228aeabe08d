package testutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quantsignal/forecast-api/internal/core"
)

// FakeClock is a manually advanced clock safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock starts the clock at t.
func NewFakeClock(t time.Time) *FakeClock { return &FakeClock{now: t} }

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeEntry struct {
	value     string
	expiresAt time.Time
}

// FakeCounterStore is an in-memory core.CounterStore whose expiry follows a FakeClock.
type FakeCounterStore struct {
	mu          sync.Mutex
	clock       *FakeClock
	entries     map[string]fakeEntry
	unavailable bool
	calls       int
}

var _ core.CounterStore = (*FakeCounterStore)(nil)

// NewFakeCounterStore returns an empty store driven by clock.
func NewFakeCounterStore(clock *FakeClock) *FakeCounterStore {
	return &FakeCounterStore{clock: clock, entries: make(map[string]fakeEntry)}
}

// SetUnavailable makes every call fail with core.ErrStoreUnavailable.
func (s *FakeCounterStore) SetUnavailable(v bool) {
	s.mu.Lock()
	s.unavailable = v
	s.mu.Unlock()
}

// Calls reports how many operations were attempted.
func (s *FakeCounterStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Value returns the raw value of key for assertions.
func (s *FakeCounterStore) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	return e.value, ok
}

// begin must be called with mu held.
func (s *FakeCounterStore) begin() error {
	s.calls++
	if s.unavailable {
		return core.ErrStoreUnavailable
	}
	return nil
}

// live must be called with mu held.
func (s *FakeCounterStore) live(key string) (fakeEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return fakeEntry{}, false
	}
	if !e.expiresAt.IsZero() && !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		return fakeEntry{}, false
	}
	return e, true
}

func (s *FakeCounterStore) incr(key string) (int64, error) {
	e, _ := s.live(key)
	var n int64
	if e.value != "" {
		v, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %s is not an integer", key)
		}
		n = v
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	s.entries[key] = e
	return n, nil
}

func (s *FakeCounterStore) Increment(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return 0, err
	}
	return s.incr(key)
}

func (s *FakeCounterStore) IncrementWindow(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return 0, err
	}
	n, err := s.incr(key)
	if err != nil {
		return 0, err
	}
	if n == 1 {
		e := s.entries[key]
		e.expiresAt = s.clock.Now().Add(window)
		s.entries[key] = e
	}
	return n, nil
}

func (s *FakeCounterStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	if e, ok := s.live(key); ok {
		e.expiresAt = s.clock.Now().Add(ttl)
		s.entries[key] = e
	}
	return nil
}

func (s *FakeCounterStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return "", false, err
	}
	e, ok := s.live(key)
	return e.value, ok, nil
}

func (s *FakeCounterStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	e := fakeEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.clock.Now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *FakeCounterStore) Delete(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return 0, err
	}
	var n int64
	for _, k := range keys {
		if _, ok := s.live(k); ok {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *FakeCounterStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return 0, err
	}
	e, ok := s.live(key)
	if !ok || e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(s.clock.Now()), nil
}

func (s *FakeCounterStore) Scan(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return nil, err
	}
	var keys []string
	for k := range s.entries {
		if _, ok := s.live(k); ok && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
