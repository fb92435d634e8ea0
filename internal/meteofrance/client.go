package meteofrance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/meteoviz/internal/common"
)

// expiredTokenMarkers are matched case-insensitively against the decoded 401 body.
var expiredTokenMarkers = []string{"invalid jwt token", "invalid token", "expired"}

var errUnexpectedResult = errors.New("unexpected result type from circuit breaker")

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Reason returns the reason phrase of the status line.
func (r *Response) Reason() string {
	return reasonPhrase(r.StatusCode, r.Status)
}

// Client talks to the Météo-France public APIs. Every request carries the
// session's bearer token; a request rejected because that token expired is
// refreshed and dispatched exactly once more.
type Client struct {
	httpClient *http.Client
	session    *Session
	urls       URLs
	poll       PollConfig
	circuit    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

type Option func(*Client)

func WithPollConfig(p PollConfig) Option {
	return func(c *Client) { c.poll = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client. The session may be shared with other clients.
func NewClient(httpClient *http.Client, session *Session, urls URLs, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// Only transport failures count against the breaker; HTTP statuses are
	// returned to the caller untouched.
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "meteofrance",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	c := &Client{
		httpClient: httpClient,
		session:    session,
		urls:       urls,
		poll:       DefaultPollConfig(),
		circuit:    cb,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.poll.Attempts < 1 {
		c.poll.Attempts = 1
	}
	return c
}

// Request sends an authenticated request and returns the last response
// received. The only failure recovered here is a single expired-token 401;
// a second 401 is returned as is.
func (c *Client) Request(ctx context.Context, method, rawURL string, params url.Values) (*Response, error) {
	token, generation, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.dispatch(ctx, method, rawURL, params, token)
	if err != nil {
		return nil, err
	}
	if !tokenExpired(resp) {
		return resp, nil
	}

	c.logger.Info("bearer token expired, refreshing", "method", method, "url", rawURL)
	token, _, err = c.session.Refresh(ctx, generation)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, method, rawURL, params, token)
}

// Fetch builds the request for endpoint e, sends it and requires a 2xx answer.
func (c *Client) Fetch(ctx context.Context, e Endpoint, q Query) ([]byte, error) {
	rawURL, params, err := c.urls.buildRequest(e, q)
	if err != nil {
		return nil, err
	}
	resp, err := c.Request(ctx, http.MethodGet, rawURL, params)
	if err != nil {
		return nil, err
	}
	if err := expectSuccess(http.MethodGet, rawURL, resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Observation returns the raw JSON array of hourly observations of a station.
// A zero at asks for the latest record.
func (c *Client) Observation(ctx context.Context, stationID string, at time.Time) ([]byte, error) {
	return c.Fetch(ctx, LiveObservation, Query{StationID: stationID, At: at})
}

// StationList downloads the station reference list as delimited text.
func (c *Client) StationList(ctx context.Context) ([]byte, error) {
	resp, err := c.Request(ctx, http.MethodGet, c.urls.StationList, nil)
	if err != nil {
		return nil, err
	}
	if err := expectSuccess(http.MethodGet, c.urls.StationList, resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) dispatch(ctx context.Context, method, rawURL string, params url.Values, token string) (*Response, error) {
	target := rawURL
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, &TransportError{Method: method, URL: rawURL, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, execErr := c.httpClient.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		return &Response{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Body:       body,
		}, nil
	})
	if err != nil {
		return nil, &TransportError{Method: method, URL: rawURL, Err: err}
	}

	resp, ok := result.(*Response)
	if !ok {
		return nil, &TransportError{Method: method, URL: rawURL, Err: errUnexpectedResult}
	}
	c.logger.Debug("meteofrance request", "method", method, "url", rawURL, "status", resp.StatusCode)
	return resp, nil
}

// tokenExpired reports whether resp is a 401 whose JSON body names an
// invalid or expired token.
func tokenExpired(resp *Response) bool {
	if resp.StatusCode != http.StatusUnauthorized {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasSuffix(mediaType, "json") {
		return false
	}

	var body struct {
		Description string `json:"description"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return false
	}
	for _, text := range []string{body.Description, body.Message} {
		if common.HasAny(strings.ToLower(text), expiredTokenMarkers...) {
			return true
		}
	}
	return false
}

func expectSuccess(method, rawURL string, resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &TransportError{
		Method:     method,
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Reason:     resp.Reason(),
	}
}
