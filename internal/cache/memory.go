package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Policy bounds what a Memory cache keeps.
type Policy struct {
	TTL        time.Duration // 0 = entries never expire
	MaxEntries int           // <= 0 = unlimited
}

// Key identifies a memoized call: the function and its normalized arguments.
type Key struct {
	Func string
	Args string
}

// KeyOf builds a Key. Strings are trimmed and times rendered in UTC so that
// equivalent arguments share an entry.
func KeyOf(fn string, args ...any) Key {
	parts := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			parts[i] = strings.TrimSpace(v)
		case time.Time:
			parts[i] = v.UTC().Format(time.RFC3339)
		case fmt.Stringer:
			parts[i] = v.String()
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return Key{Func: fn, Args: strings.Join(parts, "|")}
}

func (k Key) String() string {
	return k.Func + "(" + k.Args + ")"
}

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Memory is a concurrency-safe in-memory cache with TTL expiry and a
// bound on the number of entries (oldest insertion evicted first).
type Memory[V any] struct {
	mu sync.RWMutex

	entries map[Key]entry[V]
	policy  Policy
	now     func() time.Time
}

// NewMemory creates a cache applying policy.
func NewMemory[V any](policy Policy) *Memory[V] {
	return &Memory[V]{
		entries: make(map[Key]entry[V]),
		policy:  policy,
		now:     time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (m *Memory[V]) WithClock(now func() time.Time) *Memory[V] {
	m.now = now
	return m
}

// Get returns the live value stored under key.
func (m *Memory[V]) Get(key Key) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key and enforces the entry bound.
func (m *Memory[V]) Set(key Key, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry[V]{value: value, insertedAt: m.now()}

	if m.policy.MaxEntries <= 0 {
		return
	}
	for len(m.entries) > m.policy.MaxEntries {
		var (
			oldestKey Key
			oldest    time.Time
			first     = true
		)
		for k, e := range m.entries {
			if first || e.insertedAt.Before(oldest) {
				oldestKey, oldest, first = k, e.insertedAt, false
			}
		}
		delete(m.entries, oldestKey)
	}
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors are returned as is and never cached.
func (m *Memory[V]) GetOrLoad(key Key, load func() (V, error)) (V, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	m.Set(key, v)
	return v, nil
}

// PurgeExpired drops expired entries and returns how many were removed.
func (m *Memory[V]) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[Key]entry[V])
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory[V]) expired(e entry[V]) bool {
	if m.policy.TTL <= 0 {
		return false
	}
	return m.now().Sub(e.insertedAt) >= m.policy.TTL
}
