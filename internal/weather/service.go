package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/i474232898/meteoviz/internal/cache"
	"github.com/i474232898/meteoviz/internal/meteofrance"
)

// ErrInvalidPeriod is returned for a year or range outside what the station can serve.
var ErrInvalidPeriod = errors.New("invalid period")

// Service is the request API of the dashboard: live pairs, past
// observations and climatology series, memoized through explicit caches.
type Service struct {
	source   Source
	live     *cache.Memory[Instant]
	tables   *cache.Memory[Table]
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

// WithLiveCache sets the policy of the live observation cache.
func WithLiveCache(p cache.Policy) Option {
	return func(s *Service) { s.live = cache.NewMemory[Instant](p) }
}

// WithClimatologyCache sets the policy of the climatology cache.
func WithClimatologyCache(p cache.Policy) Option {
	return func(s *Service) { s.tables = cache.NewMemory[Table](p) }
}

// WithLocation sets the time zone results are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service. Without options the caches keep live pairs
// for 20 minutes and climatology for a day.
func NewService(source Source, opts ...Option) *Service {
	s := &Service{
		source:   source,
		live:     cache.NewMemory[Instant](cache.Policy{TTL: 20 * time.Minute, MaxEntries: 256}),
		tables:   cache.NewMemory[Table](cache.Policy{TTL: 24 * time.Hour, MaxEntries: 256}),
		location: time.UTC,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Live returns the latest observation of a station next to the one an hour before.
func (s *Service) Live(ctx context.Context, stationID string) (Instant, error) {
	return s.live.GetOrLoad(cache.KeyOf("weather.Live", stationID), func() (Instant, error) {
		raw, err := s.source.Observation(ctx, stationID, time.Time{})
		if err != nil {
			return Instant{}, fmt.Errorf("latest observation: %w", err)
		}
		current, err := ParseObservation(raw, ObservationParameters, stationID, s.location)
		if err != nil {
			return Instant{}, err
		}

		raw, err = s.source.Observation(ctx, stationID, current.Time.Add(-time.Hour))
		if err != nil {
			return Instant{}, fmt.Errorf("previous observation: %w", err)
		}
		previous, err := ParseObservation(raw, ObservationParameters, stationID, s.location)
		if err != nil {
			return Instant{}, err
		}

		pair := Pair(ObservationParameters, previous, current)
		s.logger.Debug("live observation loaded", "station", stationID, "time", current.Time)
		return NewInstant(stationID, ObservationParameters, pair), nil
	})
}

// AtDate returns the hourly climatology record at at next to the one an hour before.
func (s *Service) AtDate(ctx context.Context, stationID string, at time.Time) (Instant, error) {
	at = at.UTC().Truncate(time.Hour)
	t, err := s.History(ctx, stationID, at.Add(-time.Hour), at, meteofrance.Hourly)
	if err != nil {
		return Instant{}, err
	}
	pair, err := PairFromTable(HourlyParameters, t)
	if err != nil {
		return Instant{}, err
	}
	return NewInstant(stationID, HourlyParameters, pair), nil
}

// History orders the climatology of a station over [from, to].
func (s *Service) History(ctx context.Context, stationID string, from, to time.Time, g meteofrance.Granularity) (Table, error) {
	if to.Before(from) {
		return Table{}, fmt.Errorf("%w: %s is before %s", ErrInvalidPeriod, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	set := ParametersFor(g)

	key := cache.KeyOf("weather.History", stationID, from, to, string(g))
	t, err := s.tables.GetOrLoad(key, func() (Table, error) {
		raw, err := s.source.FetchClimatology(ctx, meteofrance.OrderRequest{
			StationID:   stationID,
			Start:       from,
			End:         to,
			Granularity: g,
		})
		if err != nil {
			return Table{}, err
		}
		return ParseDelimited(raw, set)
	})
	if err != nil {
		return Table{}, err
	}
	return t.In(s.location), nil
}

// Year orders the daily climatology of one calendar year.
func (s *Service) Year(ctx context.Context, stationID string, opened time.Time, year int) (Table, error) {
	start, end, err := YearWindow(year, opened, s.now())
	if err != nil {
		return Table{}, err
	}
	return s.History(ctx, stationID, start, end, meteofrance.Daily)
}

// YearWindow bounds a yearly request: it starts at the station opening date
// during the opening year and ends two days ago during the current year,
// the latest day the daily files cover.
func YearWindow(year int, opened, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	if !opened.IsZero() {
		opened = opened.UTC()
		if year < opened.Year() {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: station opened in %d", ErrInvalidPeriod, opened.Year())
		}
		if year == opened.Year() {
			start = time.Date(year, opened.Month(), opened.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	if year > now.Year() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %d is in the future", ErrInvalidPeriod, year)
	}
	if year == now.Year() {
		d := now.AddDate(0, 0, -2)
		end = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: no complete day in %d yet", ErrInvalidPeriod, year)
	}
	return start, end, nil
}

// PurgeExpired drops expired cache entries and returns how many were removed.
func (s *Service) PurgeExpired() int {
	return s.live.PurgeExpired() + s.tables.PurgeExpired()
}

// ClearCache drops every cached result.
func (s *Service) ClearCache() {
	s.live.Clear()
	s.tables.Clear()
}
