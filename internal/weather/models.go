package weather

import (
	"time"
)

// Row labels of an instantaneous pair.
const (
	LabelPrevious = "previous"
	LabelCurrent  = "current"
)

// Row is one station reading. A nil value means the parameter was not measured.
type Row struct {
	Label  string              `json:"label,omitempty"`
	Time   time.Time           `json:"time"`
	Values map[string]*float64 `json:"values"`
}

// Value returns the value of code, or nil.
func (r Row) Value(code string) *float64 {
	return r.Values[code]
}

// Table is a normalized set of readings. Columns are in descriptor order and
// every row has an entry for every column.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

func (t Table) Len() int { return len(t.Rows) }

// Column returns the values of code across rows.
func (t Table) Column(code string) []*float64 {
	out := make([]*float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[code]
	}
	return out
}

// HasColumn reports whether code survived normalization.
func (t Table) HasColumn(code string) bool {
	for _, c := range t.Columns {
		if c == code {
			return true
		}
	}
	return false
}

// In returns a copy of t with row times expressed in loc.
func (t Table) In(loc *time.Location) Table {
	if loc == nil {
		return t
	}
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		r.Time = r.Time.In(loc)
		rows[i] = r
	}
	return Table{Columns: t.Columns, Rows: rows}
}

// Metric is one parameter of an instantaneous pair, ready for display.
type Metric struct {
	Code     string   `json:"code"`
	Category string   `json:"category"`
	Label    string   `json:"label"`
	Unit     string   `json:"unit"`
	Value    *float64 `json:"value"`
	Previous *float64 `json:"previous"`
	// Delta is nil when either value is missing or both are equal.
	Delta *float64 `json:"delta"`
}

// Instant is the current reading of a station next to the reading one hour before.
type Instant struct {
	StationID string    `json:"stationId"`
	Time      time.Time `json:"time"`
	Table     Table     `json:"table"`
	Metrics   []Metric  `json:"metrics"`
}
