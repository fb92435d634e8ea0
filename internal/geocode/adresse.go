package geocode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
)

var errEmptyQuery = errors.New("search query is empty")

// Place is a geocoding result of the national address service.
type Place struct {
	Label     string  `json:"label"`
	Name      string  `json:"name"`
	City      string  `json:"city"`
	CityCode  string  `json:"citycode,omitempty"`
	Postcode  string  `json:"postcode,omitempty"`
	Context   string  `json:"context,omitempty"`
	Type      string  `json:"type,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator resolves a free-text place when the address service cannot.
type Locator interface {
	Locate(ctx context.Context, query string) (Place, error)
}

// Client queries api-adresse.data.gouv.fr.
type Client struct {
	searchURL  string
	reverseURL string
	httpCfg    HTTPClientConfig
	circuit    *gobreaker.CircuitBreaker
	fallback   Locator
	logger     *slog.Logger
}

type Option func(*Client)

// WithFallback sets the locator used when a search returns nothing or fails.
func WithFallback(l Locator) Option {
	return func(c *Client) { c.fallback = l }
}

func WithBackoff(b BackoffConfig) Option {
	return func(c *Client) { c.httpCfg.Backoff = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(client *http.Client, searchURL, reverseURL string, opts ...Option) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	c := &Client{
		searchURL:  searchURL,
		reverseURL: reverseURL,
		httpCfg:    defaultHTTPConfig(client),
		circuit:    newCircuitBreaker("api-adresse"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type featureCollection struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label    string  `json:"label"`
			Name     string  `json:"name"`
			City     string  `json:"city"`
			CityCode string  `json:"citycode"`
			Postcode string  `json:"postcode"`
			Context  string  `json:"context"`
			Type     string  `json:"type"`
			Score    float64 `json:"score"`
		} `json:"properties"`
	} `json:"features"`
}

func (fc featureCollection) places() []Place {
	out := make([]Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		p := Place{
			Label:    f.Properties.Label,
			Name:     f.Properties.Name,
			City:     f.Properties.City,
			CityCode: f.Properties.CityCode,
			Postcode: f.Properties.Postcode,
			Context:  f.Properties.Context,
			Type:     f.Properties.Type,
			Score:    f.Properties.Score,
		}
		// GeoJSON positions are [lon, lat].
		if len(f.Geometry.Coordinates) >= 2 {
			p.Longitude = f.Geometry.Coordinates[0]
			p.Latitude = f.Geometry.Coordinates[1]
		}
		out = append(out, p)
	}
	return out
}

// Search looks up municipalities matching q.
func (c *Client) Search(ctx context.Context, q string, limit int) ([]Place, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, errEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("autocomplete", "0")
	params.Set("type", "municipality")

	var fc featureCollection
	err := getJSON(ctx, c.httpCfg, c.circuit, c.searchURL, params, &fc)
	if err == nil && len(fc.Features) > 0 {
		return fc.places(), nil
	}
	if c.fallback == nil {
		if err != nil {
			return nil, err
		}
		return []Place{}, nil
	}

	c.logger.Info("address search fell back", "query", q, "err", err)
	p, fbErr := c.fallback.Locate(ctx, q)
	if fbErr != nil {
		if err != nil {
			return nil, errors.Join(err, fbErr)
		}
		return nil, fbErr
	}
	return []Place{p}, nil
}

// Reverse finds the street closest to (lat, lon). When nothing matches, the
// latitude is truncated one decimal digit at a time and the lookup repeated,
// once per digit; an empty result means no digit produced a match.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) ([]Place, error) {
	latText := strconv.FormatFloat(lat, 'f', -1, 64)
	digits := 0
	if i := strings.IndexByte(latText, '.'); i >= 0 {
		digits = len(latText) - i - 1
	}

	params := url.Values{}
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("limit", "1")
	params.Set("type", "street")

	for ; digits > 0; digits-- {
		params.Set("lat", latText)

		var fc featureCollection
		if err := getJSON(ctx, c.httpCfg, c.circuit, c.reverseURL, params, &fc); err != nil {
			return nil, err
		}
		if len(fc.Features) > 0 {
			return fc.places(), nil
		}
		latText = latText[:len(latText)-1]
	}
	return []Place{}, nil
}
