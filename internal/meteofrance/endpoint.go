package meteofrance

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// WireTimeFormat is the UTC timestamp layout used by every Météo-France endpoint.
const WireTimeFormat = "2006-01-02T15:04:05Z"

// FormatWireTime renders t in WireTimeFormat.
func FormatWireTime(t time.Time) string {
	return t.UTC().Format(WireTimeFormat)
}

// Endpoint selects one of the data services behind the shared request builder.
type Endpoint int

const (
	LiveObservation Endpoint = iota
	HourlyClimatology
	DailyClimatology
)

func (e Endpoint) String() string {
	switch e {
	case LiveObservation:
		return "live-observation"
	case HourlyClimatology:
		return "hourly-climatology"
	case DailyClimatology:
		return "daily-climatology"
	default:
		return fmt.Sprintf("endpoint(%d)", int(e))
	}
}

// Granularity is the aggregation step of climatological records.
type Granularity string

const (
	Hourly Granularity = "hourly"
	Daily  Granularity = "daily"
)

// ParseGranularity accepts "hourly" or "daily".
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case Hourly, Daily:
		return Granularity(s), nil
	default:
		return "", fmt.Errorf("invalid granularity %q (allowed: hourly, daily)", s)
	}
}

// Endpoint returns the ordering endpoint serving g.
func (g Granularity) Endpoint() (Endpoint, error) {
	switch g {
	case Hourly:
		return HourlyClimatology, nil
	case Daily:
		return DailyClimatology, nil
	default:
		return 0, fmt.Errorf("invalid granularity %q", g)
	}
}

// URLs lists the Météo-France endpoints used by the client.
type URLs struct {
	Observation string
	OrderHourly string
	OrderDaily  string
	Recovery    string
	StationList string
}

// Query carries the arguments of any endpoint. Live observations use At
// (zero means "latest"); climatology orders use Start and End.
type Query struct {
	StationID string
	At        time.Time
	Start     time.Time
	End       time.Time
}

var errMissingStation = errors.New("station id is required")

// buildRequest resolves the URL and query parameters for endpoint e.
func (u URLs) buildRequest(e Endpoint, q Query) (string, url.Values, error) {
	if q.StationID == "" {
		return "", nil, errMissingStation
	}

	params := url.Values{}
	switch e {
	case LiveObservation:
		date := ""
		if !q.At.IsZero() {
			date = FormatWireTime(q.At)
		}
		params.Set("id_station", q.StationID)
		params.Set("date", date)
		params.Set("format", "json")
		return u.Observation, params, nil

	case HourlyClimatology, DailyClimatology:
		if q.Start.IsZero() || q.End.IsZero() {
			return "", nil, errors.New("order period start and end are required")
		}
		if q.End.Before(q.Start) {
			return "", nil, fmt.Errorf("order period ends (%s) before it starts (%s)",
				FormatWireTime(q.End), FormatWireTime(q.Start))
		}
		params.Set("id-station", q.StationID)
		params.Set("date-deb-periode", FormatWireTime(q.Start))
		params.Set("date-fin-periode", FormatWireTime(q.End))
		if e == HourlyClimatology {
			return u.OrderHourly, params, nil
		}
		return u.OrderDaily, params, nil
	}
	return "", nil, fmt.Errorf("unknown endpoint %s", e)
}
