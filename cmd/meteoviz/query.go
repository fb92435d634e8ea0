package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/meteoviz/internal/meteofrance"
	"github.com/i474232898/meteoviz/internal/stations"
	"github.com/i474232898/meteoviz/internal/weather"
)

func outputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", "Output format (text, json)")
}

func wantJSON(cmd *cobra.Command) (bool, error) {
	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "text":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("invalid output %q (allowed: text, json)", output)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSearchCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <municipality>",
		Short: "Search a French municipality",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := wantJSON(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			places, err := get().places.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), places)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tPOSTCODE\tCONTEXT\tLAT\tLON")
			for _, p := range places {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\n", p.Label, p.Postcode, p.Context, p.Latitude, p.Longitude)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntP("limit", "l", 5, "Maximum number of results")
	outputFlag(cmd)
	return cmd
}

func newNearestCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "List the stations closest to a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := wantJSON(cmd)
			if err != nil {
				return err
			}
			lat, _ := cmd.Flags().GetFloat64("lat")
			lon, _ := cmd.Flags().GetFloat64("lon")
			n, _ := cmd.Flags().GetInt("count")

			a := get()
			if a.stations.Len() == 0 {
				return fmt.Errorf("station list is empty; run `meteoviz stations download` first")
			}
			nearby := a.stations.Nearest(lat, lon, n)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), nearby)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tALTITUDE\tOPENED\tDISTANCE")
			for _, s := range nearby {
				fmt.Fprintf(tw, "%s\t%s\t%.0f m\t%s\t%.1f km\n", s.ID, s.Name, s.Altitude, s.OpeningDate.Format("2006-01-02"), s.DistanceKm)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64("lat", 0, "Latitude (WGS-84)")
	cmd.Flags().Float64("lon", 0, "Longitude (WGS-84)")
	cmd.Flags().IntP("count", "n", 5, "Number of stations")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	outputFlag(cmd)
	return cmd
}

func newObserveCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "observe <station>",
		Short: "Show the latest observation of a station, or the one at --at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := wantJSON(cmd)
			if err != nil {
				return err
			}
			atStr, _ := cmd.Flags().GetString("at")

			a := get()
			var inst weather.Instant
			if atStr == "" {
				inst, err = a.weather.Live(cmd.Context(), args[0])
			} else {
				at, perr := time.Parse(time.RFC3339, atStr)
				if perr != nil {
					return fmt.Errorf("invalid --at: %w", perr)
				}
				ctx, cancel := orderContext(cmd.Context(), a)
				defer cancel()
				inst, err = a.weather.AtDate(ctx, args[0], at)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), inst)
			}
			return printInstant(cmd.OutOrStdout(), inst)
		},
	}
	cmd.Flags().String("at", "", "Past date and time (RFC3339)")
	outputFlag(cmd)
	return cmd
}

func newHistoryCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <station>",
		Short: "Order climatological records of a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := wantJSON(cmd)
			if err != nil {
				return err
			}
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			granStr, _ := cmd.Flags().GetString("granularity")
			category, _ := cmd.Flags().GetString("category")

			from, err := time.Parse(time.RFC3339, fromStr)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			to, err := time.Parse(time.RFC3339, toStr)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			g, err := meteofrance.ParseGranularity(granStr)
			if err != nil {
				return err
			}

			a := get()
			ctx, cancel := orderContext(cmd.Context(), a)
			defer cancel()

			table, err := a.weather.History(ctx, args[0], from, to, g)
			if err != nil {
				return err
			}
			set := weather.ParametersFor(g)
			if category != "" {
				table = weather.FilterCategory(table, set, category)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"table": table,
					"stats": weather.Describe(table),
				})
			}
			return printTable(cmd.OutOrStdout(), set, table)
		},
	}
	cmd.Flags().String("from", "", "Start of the period (RFC3339)")
	cmd.Flags().String("to", "", "End of the period (RFC3339)")
	cmd.Flags().StringP("granularity", "g", string(meteofrance.Hourly), "hourly or daily")
	cmd.Flags().StringP("category", "c", "", "Only show one category (e.g. Vent)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	outputFlag(cmd)
	return cmd
}

func newStationsCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stations",
		Short: "Manage the station reference list",
	}
	download := &cobra.Command{
		Use:   "download",
		Short: "Download the station list from Météo-France",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			path, _ := cmd.Flags().GetString("path")
			if path == "" {
				path = a.cfg.StationsCSV
			}
			c, err := stations.Download(cmd.Context(), a.client, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d stations written to %s\n", c.Len(), path)
			return nil
		},
	}
	download.Flags().String("path", "", "Destination file (defaults to STATIONS_CSV)")
	cmd.AddCommand(download)
	return cmd
}

// orderContext bounds a command waiting on a climatology order.
func orderContext(parent context.Context, a *app) (context.Context, context.CancelFunc) {
	budget := time.Duration(a.cfg.MeteoFrance.PollAttempts)*(a.cfg.MeteoFrance.PollDelay+a.cfg.HTTPTimeout) + a.cfg.HTTPTimeout
	return context.WithTimeout(parent, budget)
}

func printInstant(w io.Writer, inst weather.Instant) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Station %s at %s\n", inst.StationID, inst.Time.Format("2006-01-02 15:04 MST"))
	for _, m := range inst.Metrics {
		delta := ""
		if m.Delta != nil {
			delta = fmt.Sprintf("%+.1f", *m.Delta)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\n", m.Category, m.Label, formatValue(m.Value), m.Unit, delta)
	}
	return tw.Flush()
}

func printTable(w io.Writer, set weather.ParameterSet, t weather.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"TIME"}
	for _, c := range t.Columns {
		p, _ := set.Lookup(c)
		header = append(header, fmt.Sprintf("%s (%s)", c, p.Unit))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range t.Rows {
		cells := []string{r.Time.Format("2006-01-02 15:04")}
		for _, c := range t.Columns {
			cells = append(cells, formatValue(r.Values[c]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	stats := weather.Describe(t)
	codes := make([]string, 0, len(stats))
	for c := range stats {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "PARAMETER\tMIN\tMAX\tMEAN\tMEDIAN")
	for _, c := range codes {
		s := stats[c]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c, formatValue(s.Min), formatValue(s.Max), formatValue(s.Mean), formatValue(s.Median))
	}
	return tw.Flush()
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
