package cache

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestKeyOfNormalizesArguments(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("no tz database: %v", err)
	}
	at := time.Date(2024, 2, 4, 5, 0, 0, 0, time.UTC)

	a := KeyOf("weather.Live", " 76540009 ", at)
	b := KeyOf("weather.Live", "76540009", at.In(paris))
	if a != b {
		t.Fatalf("expected equal keys, got %s and %s", a, b)
	}
	if KeyOf("weather.History", "76540009", at) == a {
		t.Fatalf("different functions must not share keys")
	}
}

func TestMemoryTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory[int](Policy{TTL: 20 * time.Minute}).WithClock(clock.now)
	key := KeyOf("f", 1)

	m.Set(key, 42)
	if v, ok := m.Get(key); !ok || v != 42 {
		t.Fatalf("expected cached 42, got %v %v", v, ok)
	}

	clock.advance(19 * time.Minute)
	if _, ok := m.Get(key); !ok {
		t.Fatalf("entry should still be live")
	}

	clock.advance(time.Minute)
	if _, ok := m.Get(key); ok {
		t.Fatalf("entry should have expired")
	}
	if m.Len() != 1 {
		t.Fatalf("expired entries stay until purged")
	}
	if removed := m.PurgeExpired(); removed != 1 || m.Len() != 0 {
		t.Fatalf("expected one purged entry, got %d (len %d)", removed, m.Len())
	}
}

func TestMemoryMaxEntriesEvictsOldest(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory[string](Policy{MaxEntries: 2}).WithClock(clock.now)

	m.Set(KeyOf("f", "a"), "a")
	clock.advance(time.Second)
	m.Set(KeyOf("f", "b"), "b")
	clock.advance(time.Second)
	m.Set(KeyOf("f", "c"), "c")

	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
	if _, ok := m.Get(KeyOf("f", "a")); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
	for _, k := range []string{"b", "c"} {
		if _, ok := m.Get(KeyOf("f", k)); !ok {
			t.Fatalf("entry %s should be cached", k)
		}
	}
}

func TestGetOrLoad(t *testing.T) {
	m := NewMemory[int](Policy{TTL: time.Hour})
	key := KeyOf("f")
	calls := 0

	load := func() (int, error) {
		calls++
		return 7, nil
	}
	for i := 0; i < 3; i++ {
		v, err := m.GetOrLoad(key, load)
		if err != nil || v != 7 {
			t.Fatalf("unexpected result %d %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single load, got %d", calls)
	}

	boom := errors.New("boom")
	failing := KeyOf("g")
	if _, err := m.GetOrLoad(failing, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if _, ok := m.Get(failing); ok {
		t.Fatalf("failed loads must not be cached")
	}

	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("expected empty cache after Clear")
	}
}
