package meteofrance

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// countingTokens hands out "token-1", "token-2", ... and counts calls.
type countingTokens struct {
	calls atomic.Int32
	err   error
}

func (c *countingTokens) Obtain(context.Context) (string, error) {
	n := c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return "token-" + string(rune('0'+n)), nil
}

// scriptedServer replies with the given handlers in order and repeats the last one.
type scriptedServer struct {
	*httptest.Server

	mu       sync.Mutex
	steps    []http.HandlerFunc
	requests []*http.Request
}

func newScriptedServer(t *testing.T, steps ...http.HandlerFunc) *scriptedServer {
	t.Helper()
	s := &scriptedServer{steps: steps}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		i := len(s.requests)
		s.requests = append(s.requests, r.Clone(context.Background()))
		if i >= len(s.steps) {
			i = len(s.steps) - 1
		}
		step := s.steps[i]
		s.mu.Unlock()
		step(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *scriptedServer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedServer) request(i int) *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}
}

func body(code int, contentType, payload string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(code)
		_, _ = io.WriteString(w, payload)
	}
}

const expiredBody = `{"code":"900901","message":"Invalid Credentials","description":"Invalid JWT token. Make sure you have obtained a valid token."}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(tokens TokenSource, urls URLs, poll PollConfig) *Client {
	return NewClient(http.DefaultClient, NewSession(tokens), urls, WithPollConfig(poll), WithLogger(quietLogger()))
}
