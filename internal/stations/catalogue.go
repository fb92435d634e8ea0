package stations

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNotFound is returned when no station has the requested id.
var ErrNotFound = errors.New("station not found")

const earthRadiusKm = 6371.0088

// Station is an observation station of the reference list.
type Station struct {
	ID          string    `json:"id"`
	WMOID       string    `json:"wmoId,omitempty"`
	Name        string    `json:"name"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Altitude    float64   `json:"altitude"`
	OpeningDate time.Time `json:"openingDate"`
	Pack        string    `json:"pack,omitempty"`
}

// Nearby is a station with its distance to a point.
type Nearby struct {
	Station
	DistanceKm float64 `json:"distanceKm"`
}

// Catalogue is the concurrency-safe, in-memory station list.
type Catalogue struct {
	mu       sync.RWMutex
	stations []Station
	byID     map[string]int
}

// Lister downloads the station list (implemented by *meteofrance.Client).
type Lister interface {
	StationList(ctx context.Context) ([]byte, error)
}

var requiredColumns = []string{"id_station", "nom_usuel", "latitude", "longitude"}

// Parse reads a ';'-separated station list. Header names are matched
// case-insensitively and station names are title-cased.
func Parse(r io.Reader) (*Catalogue, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read station header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("station list has no %s column", col)
		}
	}

	title := cases.Title(language.French)
	field := func(rec []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var list []Station
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("station list line %d: %w", line, err)
		}

		st := Station{
			ID:    field(rec, "id_station"),
			WMOID: field(rec, "id_omm"),
			Name:  title.String(field(rec, "nom_usuel")),
			Pack:  field(rec, "pack"),
		}
		if st.ID == "" {
			continue
		}
		if st.Latitude, err = parseFloat(field(rec, "latitude")); err != nil {
			return nil, fmt.Errorf("station list line %d latitude: %w", line, err)
		}
		if st.Longitude, err = parseFloat(field(rec, "longitude")); err != nil {
			return nil, fmt.Errorf("station list line %d longitude: %w", line, err)
		}
		if alt := field(rec, "altitude"); alt != "" {
			if st.Altitude, err = parseFloat(alt); err != nil {
				return nil, fmt.Errorf("station list line %d altitude: %w", line, err)
			}
		}
		if opened := field(rec, "date_ouverture"); opened != "" {
			if st.OpeningDate, err = parseDate(opened); err != nil {
				return nil, fmt.Errorf("station list line %d opening date: %w", line, err)
			}
		}
		list = append(list, st)
	}

	c := &Catalogue{}
	c.set(list)
	return c, nil
}

// Load parses the station list stored at path.
func Load(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Download fetches a fresh list, checks that it parses and writes it to path.
func Download(ctx context.Context, src Lister, path string) (*Catalogue, error) {
	raw, err := src.StationList(ctx)
	if err != nil {
		return nil, err
	}
	c, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".stations-*.csv")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace swaps the content of c for the content of other.
func (c *Catalogue) Replace(other *Catalogue) {
	other.mu.RLock()
	list := append([]Station(nil), other.stations...)
	other.mu.RUnlock()
	c.set(list)
}

func (c *Catalogue) set(list []Station) {
	byID := make(map[string]int, len(list))
	for i, st := range list {
		byID[st.ID] = i
	}
	c.mu.Lock()
	c.stations = list
	c.byID = byID
	c.mu.Unlock()
}

// Len returns the number of stations.
func (c *Catalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stations)
}

// Get returns the station with the given id.
func (c *Catalogue) Get(id string) (Station, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Station{}, ErrNotFound
	}
	return c.stations[i], nil
}

// Nearest returns up to n stations ordered by great-circle distance to (lat, lon).
func (c *Catalogue) Nearest(lat, lon float64, n int) []Nearby {
	c.mu.RLock()
	out := make([]Nearby, 0, len(c.stations))
	for _, st := range c.stations {
		out = append(out, Nearby{Station: st, DistanceKm: Distance(lat, lon, st.Latitude, st.Longitude)})
	}
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Distance returns the haversine distance in kilometres.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "20060102"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
