package weather

import "github.com/i474232898/meteoviz/internal/common"

// NewInstant turns a previous/current pair table into display metrics.
func NewInstant(stationID string, set ParameterSet, pair Table) Instant {
	inst := Instant{StationID: stationID, Table: pair}
	if pair.Len() != 2 {
		return inst
	}

	previous, current := pair.Rows[0], pair.Rows[1]
	inst.Time = current.Time
	for _, code := range pair.Columns {
		p, _ := set.Lookup(code)
		m := Metric{
			Code:     code,
			Category: p.Category,
			Label:    p.Label,
			Unit:     p.Unit,
			Value:    current.Value(code),
			Previous: previous.Value(code),
		}
		if d := Delta(m.Value, m.Previous, 0); d != nil {
			if r := common.Round(*d, 1); r != 0 {
				m.Delta = common.Ptr(r)
			}
		}
		inst.Metrics = append(inst.Metrics, m)
	}
	return inst
}
