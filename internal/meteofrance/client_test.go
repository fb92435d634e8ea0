package meteofrance

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRequestAttachesBearerToken(t *testing.T) {
	srv := newScriptedServer(t, body(http.StatusOK, "application/json", `[]`))
	tokens := &countingTokens{}
	c := newTestClient(tokens, URLs{}, DefaultPollConfig())

	resp, err := c.Request(context.Background(), http.MethodGet, srv.URL+"/obs", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != `[]` {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
	if got := srv.request(0).Header.Get("Authorization"); got != "Bearer token-1" {
		t.Fatalf("unexpected Authorization header %q", got)
	}

	// The token obtained for the first request is reused.
	if _, err := c.Request(context.Background(), http.MethodGet, srv.URL+"/obs", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := tokens.calls.Load(); n != 1 {
		t.Fatalf("expected a single token exchange, got %d", n)
	}
}

func TestRequestRefreshesOnceOnExpiredToken(t *testing.T) {
	srv := newScriptedServer(t,
		body(http.StatusUnauthorized, "application/json", expiredBody),
		body(http.StatusOK, "application/json", `{"ok":true}`),
	)
	tokens := &countingTokens{}
	c := newTestClient(tokens, URLs{}, DefaultPollConfig())

	resp, err := c.Request(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected the retried response, got %d", resp.StatusCode)
	}
	if n := tokens.calls.Load(); n != 2 {
		t.Fatalf("expected 2 token calls, got %d", n)
	}
	if n := srv.calls(); n != 2 {
		t.Fatalf("expected 2 dispatches, got %d", n)
	}
	if got := srv.request(1).Header.Get("Authorization"); got != "Bearer token-2" {
		t.Fatalf("retry should carry the refreshed token, got %q", got)
	}
}

func TestRequestDoesNotLoopOnSecondExpiry(t *testing.T) {
	srv := newScriptedServer(t, body(http.StatusUnauthorized, "application/json; charset=utf-8", expiredBody))
	tokens := &countingTokens{}
	c := newTestClient(tokens, URLs{}, DefaultPollConfig())

	resp, err := c.Request(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("second 401 should be returned as is, got %d", resp.StatusCode)
	}
	if n := tokens.calls.Load(); n != 2 {
		t.Fatalf("expected exactly 2 token calls, got %d", n)
	}
	if n := srv.calls(); n != 2 {
		t.Fatalf("expected exactly 2 dispatches, got %d", n)
	}
}

func TestRequestIgnoresOtherUnauthorized(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"plain text", body(http.StatusUnauthorized, "text/plain", "Invalid JWT token")},
		{"json without marker", body(http.StatusUnauthorized, "application/json", `{"description":"subscription required"}`)},
		{"unparsable json", body(http.StatusUnauthorized, "application/json", `Invalid JWT token`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newScriptedServer(t, tc.handler)
			tokens := &countingTokens{}
			c := newTestClient(tokens, URLs{}, DefaultPollConfig())

			resp, err := c.Request(context.Background(), http.MethodGet, srv.URL, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
			if tokens.calls.Load() != 1 || srv.calls() != 1 {
				t.Fatalf("no refresh expected: tokens=%d dispatches=%d", tokens.calls.Load(), srv.calls())
			}
		})
	}
}

func TestRequestSurfacesAuthenticationError(t *testing.T) {
	srv := newScriptedServer(t, status(http.StatusOK))
	tokens := &countingTokens{err: &AuthenticationError{StatusCode: http.StatusUnauthorized, Reason: "Unauthorized"}}
	c := newTestClient(tokens, URLs{}, DefaultPollConfig())

	_, err := c.Request(context.Background(), http.MethodGet, srv.URL, nil)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if srv.calls() != 0 {
		t.Fatalf("nothing should be dispatched without a token")
	}
}

func TestRequestTransportFailure(t *testing.T) {
	c := newTestClient(&countingTokens{}, URLs{}, DefaultPollConfig())

	_, err := c.Request(context.Background(), http.MethodGet, "http://127.0.0.1:1/unreachable", nil)
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if tErr.StatusCode != 0 {
		t.Fatalf("transport failures carry no status, got %d", tErr.StatusCode)
	}
}

func TestObservationRequest(t *testing.T) {
	srv := newScriptedServer(t, body(http.StatusOK, "application/json", `[{"geo_id_insee":"76540009","t":281.15}]`))
	c := newTestClient(&countingTokens{}, URLs{Observation: srv.URL + "/station/horaire"}, DefaultPollConfig())

	at := time.Date(2024, 2, 4, 5, 0, 0, 0, time.UTC)
	raw, err := c.Observation(context.Background(), "76540009", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(raw), "281.15") {
		t.Fatalf("unexpected body %q", raw)
	}

	q := srv.request(0).URL.Query()
	if q.Get("id_station") != "76540009" || q.Get("date") != "2024-02-04T05:00:00Z" || q.Get("format") != "json" {
		t.Fatalf("unexpected query %v", q)
	}

	if _, err := c.Observation(context.Background(), "76540009", time.Time{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q := srv.request(1).URL.Query(); !q.Has("date") || q.Get("date") != "" {
		t.Fatalf("latest observation should send an empty date, got %v", q)
	}
}

func TestObservationNon2xxIsTransportError(t *testing.T) {
	srv := newScriptedServer(t, body(http.StatusNotFound, "application/json", `{"description":"unknown station"}`))
	c := newTestClient(&countingTokens{}, URLs{Observation: srv.URL}, DefaultPollConfig())

	_, err := c.Observation(context.Background(), "0", time.Time{})
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if tErr.StatusCode != http.StatusNotFound || tErr.Reason != "Not Found" {
		t.Fatalf("unexpected status/reason %d %q", tErr.StatusCode, tErr.Reason)
	}
}

func TestBuildRequestPerEndpoint(t *testing.T) {
	urls := URLs{Observation: "obs", OrderHourly: "hourly", OrderDaily: "daily"}
	start := time.Date(2024, 2, 4, 4, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	cases := []struct {
		endpoint Endpoint
		wantURL  string
		wantKeys []string
	}{
		{LiveObservation, "obs", []string{"id_station", "date", "format"}},
		{HourlyClimatology, "hourly", []string{"id-station", "date-deb-periode", "date-fin-periode"}},
		{DailyClimatology, "daily", []string{"id-station", "date-deb-periode", "date-fin-periode"}},
	}
	for _, tc := range cases {
		t.Run(tc.endpoint.String(), func(t *testing.T) {
			u, params, err := urls.buildRequest(tc.endpoint, Query{StationID: "76540009", Start: start, End: end})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u != tc.wantURL {
				t.Fatalf("expected url %q, got %q", tc.wantURL, u)
			}
			for _, k := range tc.wantKeys {
				if !params.Has(k) {
					t.Fatalf("missing parameter %q in %v", k, params)
				}
			}
		})
	}

	if _, _, err := urls.buildRequest(HourlyClimatology, Query{StationID: "1", Start: end, End: start}); err == nil {
		t.Fatalf("expected an error for an inverted period")
	}
	if _, _, err := urls.buildRequest(LiveObservation, Query{}); !errors.Is(err, errMissingStation) {
		t.Fatalf("expected missing station error, got %v", err)
	}
}
