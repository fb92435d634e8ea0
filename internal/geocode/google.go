package geocode

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
)

// The geocoder package keeps its API key in a package variable.
var googleMu sync.Mutex

// GoogleLocator resolves places with the Google Geocoding API.
type GoogleLocator struct {
	apiKey  string
	country string
	lookup  func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleLocator restricts lookups to country (e.g. "France").
func NewGoogleLocator(apiKey, country string) *GoogleLocator {
	return &GoogleLocator{apiKey: apiKey, country: country, lookup: geocoder.Geocoding}
}

// Locate geocodes a city name.
func (g *GoogleLocator) Locate(ctx context.Context, query string) (Place, error) {
	if err := ctx.Err(); err != nil {
		return Place{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return Place{}, errEmptyQuery
	}
	if g.apiKey == "" {
		return Place{}, errors.New("google geocoder api key not configured")
	}

	googleMu.Lock()
	geocoder.ApiKey = g.apiKey
	loc, err := g.lookup(geocoder.Address{City: query, Country: g.country})
	googleMu.Unlock()
	if err != nil {
		return Place{}, err
	}

	return Place{
		Label:     query,
		Name:      query,
		City:      query,
		Type:      "municipality",
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}, nil
}
