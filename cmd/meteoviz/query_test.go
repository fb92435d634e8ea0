package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/meteoviz/internal/weather"
)

func f(v float64) *float64 { return &v }

func TestPrintInstant(t *testing.T) {
	inst := weather.Instant{
		StationID: "75114001",
		Time:      time.Date(2024, 2, 4, 10, 0, 0, 0, time.UTC),
		Metrics: []weather.Metric{
			{Code: "t", Category: weather.CategoryTemperature, Label: "Température", Unit: "°C", Value: f(9.2), Previous: f(9.7), Delta: f(-0.5)},
			{Code: "u", Category: weather.CategoryHumidity, Label: "Humidité", Unit: "%", Value: nil},
		},
	}

	var buf bytes.Buffer
	if err := printInstant(&buf, inst); err != nil {
		t.Fatalf("printInstant: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"75114001", "9.2 °C", "-0.5", "- %"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintTableIncludesStats(t *testing.T) {
	table := weather.Table{
		Columns: []string{"T"},
		Rows: []weather.Row{
			{Time: time.Date(2024, 2, 4, 4, 0, 0, 0, time.UTC), Values: map[string]*float64{"T": f(5)}},
			{Time: time.Date(2024, 2, 4, 5, 0, 0, 0, time.UTC), Values: map[string]*float64{"T": nil}},
			{Time: time.Date(2024, 2, 4, 6, 0, 0, 0, time.UTC), Values: map[string]*float64{"T": f(7)}},
		},
	}

	var buf bytes.Buffer
	if err := printTable(&buf, weather.HourlyParameters, table); err != nil {
		t.Fatalf("printTable: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "2024-02-04 05:00") {
		t.Errorf("missing row:\n%s", out)
	}
	if !strings.Contains(out, "6.0") {
		t.Errorf("missing mean:\n%s", out)
	}
}

func TestWantJSON(t *testing.T) {
	tests := []struct {
		value   string
		want    bool
		wantErr bool
	}{
		{"text", false, false},
		{"json", true, false},
		{"yaml", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cmd := &cobra.Command{}
			outputFlag(cmd)
			if err := cmd.Flags().Set("output", tt.value); err != nil {
				t.Fatal(err)
			}
			got, err := wantJSON(cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
