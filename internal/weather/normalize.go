package weather

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/meteoviz/internal/meteofrance"
)

var (
	errNoHeader     = errors.New("payload has no header")
	errNoTimeColumn = errors.New("payload has no time column")
	errNoRecord     = errors.New("payload has no record for the station")
)

// ParseDelimited normalizes a ';'-separated climatology file. The DATE
// column is read as YYYYMMDDHH (hourly) or YYYYMMDD (daily) in UTC; rows
// come back in ascending time order.
func ParseDelimited(raw []byte, set ParameterSet) (Table, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return Table{}, decodeErr(set, errNoHeader)
	}
	if err != nil {
		return Table{}, decodeErr(set, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	timeIdx, ok := index[set.TimeColumn]
	if !ok {
		return Table{}, decodeErr(set, errNoTimeColumn)
	}
	params := presentParameters(set, func(code string) bool { _, ok := index[code]; return ok })

	var rows []Row
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, decodeErr(set, err)
		}
		if timeIdx >= len(record) {
			return Table{}, decodeErr(set, fmt.Errorf("line %d: missing %s", line, set.TimeColumn))
		}

		ts, err := parseClimatologyDate(record[timeIdx])
		if err != nil {
			return Table{}, decodeErr(set, fmt.Errorf("line %d: %w", line, err))
		}

		row := Row{Time: ts, Values: make(map[string]*float64, len(params))}
		for _, p := range params {
			cell := ""
			if i := index[p.Code]; i < len(record) {
				cell = record[i]
			}
			v, err := parseNumber(cell)
			if err != nil {
				return Table{}, decodeErr(set, fmt.Errorf("line %d column %s: %w", line, p.Code, err))
			}
			row.Values[p.Code] = v
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })
	return finish(params, rows), nil
}

// ParseObservations normalizes the JSON array returned by the observation
// service. Records of other stations are skipped when the payload tags them
// with geo_id_insee; times are expressed in loc.
func ParseObservations(raw []byte, set ParameterSet, stationID string, loc *time.Location) (Table, error) {
	params, rows, err := observationRows(raw, set, stationID, loc)
	if err != nil {
		return Table{}, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })
	return finish(params, rows), nil
}

// ParseObservation returns the first record of the station, the one the
// observation service answers a single-date query with. Null parameters
// are kept as nil so that Pair can prune them over both rows.
func ParseObservation(raw []byte, set ParameterSet, stationID string, loc *time.Location) (Row, error) {
	params, rows, err := observationRows(raw, set, stationID, loc)
	if err != nil {
		return Row{}, err
	}
	if len(rows) == 0 {
		return Row{}, decodeErr(set, errNoRecord)
	}
	row := rows[0]
	convertRow(params, row)
	return row, nil
}

func observationRows(raw []byte, set ParameterSet, stationID string, loc *time.Location) ([]Parameter, []Row, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, nil, decodeErr(set, err)
	}

	params := presentParameters(set, func(code string) bool {
		for _, rec := range records {
			if _, ok := rec[code]; ok {
				return true
			}
		}
		return false
	})

	var rows []Row
	for i, rec := range records {
		if id, ok := rec["geo_id_insee"]; ok && stationID != "" && fmt.Sprint(id) != stationID {
			continue
		}

		rawTime, _ := rec[set.TimeColumn].(string)
		ts, err := time.Parse(time.RFC3339, rawTime)
		if err != nil {
			return nil, nil, decodeErr(set, fmt.Errorf("record %d: %s: %w", i, set.TimeColumn, err))
		}
		if loc != nil {
			ts = ts.In(loc)
		}

		row := Row{Time: ts, Values: make(map[string]*float64, len(params))}
		for _, p := range params {
			v, err := jsonNumber(rec[p.Code])
			if err != nil {
				return nil, nil, decodeErr(set, fmt.Errorf("record %d field %s: %w", i, p.Code, err))
			}
			row.Values[p.Code] = v
		}
		rows = append(rows, row)
	}
	return params, rows, nil
}

// Pair builds the instantaneous two-row table labelled previous/current.
func Pair(set ParameterSet, previous, current Row) Table {
	previous.Label = LabelPrevious
	current.Label = LabelCurrent

	params := presentParameters(set, func(code string) bool {
		_, p := previous.Values[code]
		_, c := current.Values[code]
		return p || c
	})
	rows := []Row{previous, current}
	for i := range rows {
		values := make(map[string]*float64, len(params))
		for _, p := range params {
			values[p.Code] = rows[i].Values[p.Code]
		}
		rows[i].Values = values
	}
	return prune(params, rows)
}

// PairFromTable labels a two-row range table as previous/current.
func PairFromTable(set ParameterSet, t Table) (Table, error) {
	if t.Len() != 2 {
		return Table{}, decodeErr(set, fmt.Errorf("expected 2 records, got %d", t.Len()))
	}
	return Pair(set, t.Rows[0], t.Rows[1]), nil
}

// FilterCategory keeps the columns of t that belong to category.
func FilterCategory(t Table, set ParameterSet, category string) Table {
	var cols []string
	for _, c := range t.Columns {
		if p, ok := set.Lookup(c); ok && strings.EqualFold(p.Category, category) {
			cols = append(cols, c)
		}
	}
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		values := make(map[string]*float64, len(cols))
		for _, c := range cols {
			values[c] = r.Values[c]
		}
		rows[i] = Row{Label: r.Label, Time: r.Time, Values: values}
	}
	return Table{Columns: cols, Rows: rows}
}

// presentParameters returns the descriptors of set whose code is present,
// in descriptor order.
func presentParameters(set ParameterSet, present func(code string) bool) []Parameter {
	var out []Parameter
	for _, p := range set.Parameters {
		if p.Code != set.TimeColumn && present(p.Code) {
			out = append(out, p)
		}
	}
	return out
}

// finish converts units and drops all-null columns.
func finish(params []Parameter, rows []Row) Table {
	for _, r := range rows {
		convertRow(params, r)
	}
	return prune(params, rows)
}

func convertRow(params []Parameter, r Row) {
	for _, p := range params {
		if v := r.Values[p.Code]; v != nil {
			converted := p.convert(*v)
			r.Values[p.Code] = &converted
		}
	}
}

func prune(params []Parameter, rows []Row) Table {
	cols := make([]string, 0, len(params))
	for _, p := range params {
		for _, r := range rows {
			if r.Values[p.Code] != nil {
				cols = append(cols, p.Code)
				break
			}
		}
	}
	if len(cols) != len(params) {
		keep := make(map[string]bool, len(cols))
		for _, c := range cols {
			keep[c] = true
		}
		for _, r := range rows {
			for code := range r.Values {
				if !keep[code] {
					delete(r.Values, code)
				}
			}
		}
	}
	if rows == nil {
		rows = []Row{}
	}
	return Table{Columns: cols, Rows: rows}
}

func parseClimatologyDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case len("2006010215"):
		return time.ParseInLocation("2006010215", s, time.UTC)
	case len("20060102"):
		return time.ParseInLocation("20060102", s, time.UTC)
	case len("200601021504"):
		return time.ParseInLocation("200601021504", s, time.UTC)
	default:
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
}

// parseNumber reads a decimal-comma or decimal-point number; blank is nil.
func parseNumber(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func jsonNumber(v any) (*float64, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return &f, nil
	case string:
		return parseNumber(x)
	default:
		return nil, fmt.Errorf("unexpected value %v", v)
	}
}

func decodeErr(set ParameterSet, err error) error {
	return &meteofrance.DecodeError{Source: set.Name + " payload", Err: err}
}
