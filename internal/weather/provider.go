package weather

import (
	"context"
	"time"

	"github.com/i474232898/meteoviz/internal/meteofrance"
)

// Source abstracts the Météo-France data services (implemented by *meteofrance.Client).
type Source interface {
	// Observation returns the raw observation array of a station; a zero at means latest.
	Observation(ctx context.Context, stationID string, at time.Time) ([]byte, error)
	// FetchClimatology orders a climatology file and waits for it.
	FetchClimatology(ctx context.Context, req meteofrance.OrderRequest) ([]byte, error)
}
