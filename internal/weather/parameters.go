package weather

import (
	"github.com/i474232898/meteoviz/internal/common"
	"github.com/i474232898/meteoviz/internal/meteofrance"
)

// PlotType is the preferred chart for a parameter.
type PlotType string

const (
	PlotLine PlotType = "line"
	PlotBar  PlotType = "bar"
)

// Parameter categories.
const (
	CategoryTemperature   = "Température"
	CategoryHumidity      = "Humidité"
	CategoryWind          = "Vent"
	CategoryPrecipitation = "Précipitations"
	CategoryVisibility    = "Visibilité"
	CategorySnow          = "Neige"
	CategorySun           = "Soleil"
	CategoryPressure      = "Pression"
)

// Parameter describes one weather variable.
type Parameter struct {
	Code        string   `json:"code"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Label       string   `json:"label"`
	Unit        string   `json:"unit"`
	Plot        PlotType `json:"plotType"`

	// Convert maps the source unit to Unit. Nil means identity.
	Convert func(float64) float64 `json:"-"`
}

func (p Parameter) convert(x float64) float64 {
	if p.Convert == nil {
		return x
	}
	return p.Convert(x)
}

// ParameterSet is the descriptor table of one data source.
type ParameterSet struct {
	Name       string      `json:"name"`
	TimeColumn string      `json:"timeColumn"`
	Parameters []Parameter `json:"parameters"`
}

// Lookup returns the descriptor of code.
func (s ParameterSet) Lookup(code string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Code == code {
			return p, true
		}
	}
	return Parameter{}, false
}

// Categories lists the categories of the set in descriptor order, without duplicates.
func (s ParameterSet) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range s.Parameters {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

func kelvinToCelsius(x float64) float64 { return common.Round(x-273, 1) }
func msToKmh(x float64) float64         { return common.Round(x*3.6, 0) }
func metersToKm(x float64) float64      { return common.Round(x/1000, 1) }
func metersToCm(x float64) float64      { return common.Round(x*100, 0) }
func paToHpa(x float64) float64         { return common.Round(x/100, 1) }

// ObservationParameters describes the live observation service (SI units on the wire).
var ObservationParameters = ParameterSet{
	Name:       "observation",
	TimeColumn: "validity_time",
	Parameters: []Parameter{
		{Code: "t", Category: CategoryTemperature, Description: "Température de l'air à 2 mètres au-dessus du sol", Label: "T", Unit: "°C", Plot: PlotLine, Convert: kelvinToCelsius},
		{Code: "u", Category: CategoryHumidity, Description: "Humidité relative à 2 mètres au-dessus du sol", Label: "HR", Unit: "%", Plot: PlotLine},
		{Code: "ff", Category: CategoryWind, Description: "Vitesse moyenne du vent à 10 mètres au-dessus du sol", Label: "Vmoy", Unit: "km/h", Plot: PlotLine, Convert: msToKmh},
		{Code: "rr_per", Category: CategoryPrecipitation, Description: "Précipitations cumulées", Label: "Hauteur", Unit: "mm", Plot: PlotBar},
		{Code: "rr1", Category: CategoryPrecipitation, Description: "Précipitations cumulées", Label: "Hauteur", Unit: "mm", Plot: PlotBar},
		{Code: "vv", Category: CategoryVisibility, Description: "Visibilité horizontale", Label: "Distance", Unit: "km", Plot: PlotLine, Convert: metersToKm},
		{Code: "sss", Category: CategorySnow, Description: "Hauteur totale de la couverture de neige", Label: "Hauteur", Unit: "cm", Plot: PlotBar, Convert: metersToCm},
		{Code: "insolh", Category: CategorySun, Description: "Durée d'ensoleillement", Label: "Durée", Unit: "min", Plot: PlotBar},
		{Code: "pmer", Category: CategoryPressure, Description: "Pression atmosphérique au niveau de la mer", Label: "Pmer", Unit: "hPa", Plot: PlotLine, Convert: paToHpa},
	},
}

// HourlyParameters describes hourly climatology files. Temperature and
// pressure already arrive in °C and hPa; wind and visibility do not.
var HourlyParameters = ParameterSet{
	Name:       "hourly",
	TimeColumn: "DATE",
	Parameters: []Parameter{
		{Code: "T", Category: CategoryTemperature, Description: "Température sous abri horaire", Label: "T", Unit: "°C", Plot: PlotLine},
		{Code: "U", Category: CategoryHumidity, Description: "Humidité relative horaire", Label: "HR", Unit: "%", Plot: PlotLine},
		{Code: "FF", Category: CategoryWind, Description: "Vitesse du vent horaire", Label: "Vmoy", Unit: "km/h", Plot: PlotLine, Convert: msToKmh},
		{Code: "RR1", Category: CategoryPrecipitation, Description: "Hauteur de précipitations horaire", Label: "Hauteur", Unit: "mm", Plot: PlotBar},
		{Code: "VV", Category: CategoryVisibility, Description: "Visibilité horaire", Label: "Distance", Unit: "km", Plot: PlotLine, Convert: metersToKm},
		{Code: "INS", Category: CategorySun, Description: "Durée d'insolation horaire", Label: "Durée", Unit: "min", Plot: PlotBar},
		{Code: "PMER", Category: CategoryPressure, Description: "Pression mer horaire", Label: "Pmer", Unit: "hPa", Plot: PlotLine},
	},
}

// DailyParameters describes daily climatology files.
var DailyParameters = ParameterSet{
	Name:       "daily",
	TimeColumn: "DATE",
	Parameters: []Parameter{
		{Code: "TM", Category: CategoryTemperature, Description: "Température moyenne sous abri quotidienne", Label: "T", Unit: "°C", Plot: PlotLine},
		{Code: "UM", Category: CategoryHumidity, Description: "Humidité relative moyenne quotidienne", Label: "HR", Unit: "%", Plot: PlotLine},
		{Code: "FFM", Category: CategoryWind, Description: "Moyenne des vitesses du vent quotidienne", Label: "Vmoy", Unit: "km/h", Plot: PlotLine, Convert: msToKmh},
		{Code: "RR", Category: CategoryPrecipitation, Description: "Hauteur de précipitations quotidienne", Label: "Hauteur", Unit: "mm", Plot: PlotBar},
		{Code: "INST", Category: CategorySun, Description: "Durée d'insolation quotidienne", Label: "Durée", Unit: "min", Plot: PlotBar},
		{Code: "PMERM", Category: CategoryPressure, Description: "Pression mer moyenne quotidienne", Label: "Pmer", Unit: "hPa", Plot: PlotLine},
	},
}

// ParameterSetByName returns the set called name ("observation", "hourly" or "daily").
func ParameterSetByName(name string) (ParameterSet, bool) {
	for _, s := range []ParameterSet{ObservationParameters, HourlyParameters, DailyParameters} {
		if s.Name == name {
			return s, true
		}
	}
	return ParameterSet{}, false
}

// ParametersFor returns the climatology set matching g.
func ParametersFor(g meteofrance.Granularity) ParameterSet {
	if g == meteofrance.Daily {
		return DailyParameters
	}
	return HourlyParameters
}
