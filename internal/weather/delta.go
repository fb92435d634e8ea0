package weather

import "math"

// Delta returns current-previous for display, or nil when either value is
// missing or the two are close: |a-b| <= relTol*max(|a|,|b|).
func Delta(current, previous *float64, relTol float64) *float64 {
	if current == nil || previous == nil {
		return nil
	}
	a, b := *current, *previous
	if math.Abs(a-b) <= relTol*math.Max(math.Abs(a), math.Abs(b)) {
		return nil
	}
	d := a - b
	return &d
}
