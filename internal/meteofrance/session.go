package meteofrance

import (
	"context"
	"sync"
	"time"
)

// Session holds the active bearer token. One Session may be shared by
// several clients; refreshes are serialized so only one exchange runs at a
// time and callers that lost the race reuse the winner's token.
type Session struct {
	source TokenSource

	mu         sync.Mutex
	token      string
	obtainedAt time.Time
	generation uint64
}

func NewSession(source TokenSource) *Session {
	return &Session{source: source}
}

// Token returns the current token, obtaining one first if the session is
// empty. The returned generation identifies the token for a later Refresh.
func (s *Session) Token(ctx context.Context) (string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, s.generation, nil
	}
	if err := s.obtainLocked(ctx); err != nil {
		return "", 0, err
	}
	return s.token, s.generation, nil
}

// Refresh replaces the token identified by stale. If another caller already
// replaced it, the newer token is returned without a second exchange.
func (s *Session) Refresh(ctx context.Context, stale uint64) (string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.generation != stale {
		return s.token, s.generation, nil
	}
	if err := s.obtainLocked(ctx); err != nil {
		return "", 0, err
	}
	return s.token, s.generation, nil
}

// ObtainedAt reports when the current token was issued (zero if none).
func (s *Session) ObtainedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obtainedAt
}

func (s *Session) obtainLocked(ctx context.Context) error {
	token, err := s.source.Obtain(ctx)
	if err != nil {
		return err
	}
	s.token = token
	s.obtainedAt = time.Now().UTC()
	s.generation++
	return nil
}
