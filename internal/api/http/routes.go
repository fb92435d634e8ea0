package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/meteoviz/internal/geocode"
	"github.com/i474232898/meteoviz/internal/meteofrance"
	"github.com/i474232898/meteoviz/internal/stations"
	"github.com/i474232898/meteoviz/internal/weather"
)

var validate = validator.New()

// WeatherService is the part of *weather.Service the API serves.
type WeatherService interface {
	Live(ctx context.Context, stationID string) (weather.Instant, error)
	AtDate(ctx context.Context, stationID string, at time.Time) (weather.Instant, error)
	History(ctx context.Context, stationID string, from, to time.Time, g meteofrance.Granularity) (weather.Table, error)
	Year(ctx context.Context, stationID string, opened time.Time, year int) (weather.Table, error)
}

// Geocoder is the part of *geocode.Client the API serves.
type Geocoder interface {
	Search(ctx context.Context, q string, limit int) ([]geocode.Place, error)
	Reverse(ctx context.Context, lat, lon float64) ([]geocode.Place, error)
}

// Deps are the collaborators of the routes.
type Deps struct {
	Weather  WeatherService
	Stations *stations.Catalogue
	Places   Geocoder
	Logger   *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := &handlers{Deps: deps}
	if h.Logger == nil {
		h.Logger = slog.Default()
	}

	v1 := app.Group("/api/v1")

	v1.Get("/places", h.searchPlaces)
	v1.Get("/places/reverse", h.reversePlace)
	v1.Get("/parameters", h.parameters)

	v1.Get("/stations/nearest", h.nearestStations)
	v1.Get("/stations/:id", h.station)
	v1.Get("/stations/:id/live", h.live)
	v1.Get("/stations/:id/observation", h.observation)
	v1.Get("/stations/:id/history", h.history)
	v1.Get("/stations/:id/climatology/:year", h.climatology)
}

type handlers struct {
	Deps
}

// placesQuery holds query parameters of the municipality search.
type placesQuery struct {
	Q     string `validate:"required,min=3,max=200"`
	Limit int    `validate:"min=1,max=20"`
}

func (h *handlers) searchPlaces(c *fiber.Ctx) error {
	q := placesQuery{Q: strings.TrimSpace(c.Query("q")), Limit: c.QueryInt("limit", 5)}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	places, err := h.Places.Search(c.UserContext(), q.Q, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"query": q.Q, "places": places})
}

// coordinatesQuery holds a WGS-84 point.
type coordinatesQuery struct {
	Lat float64 `validate:"min=-90,max=90"`
	Lon float64 `validate:"min=-180,max=180"`
}

func parseCoordinates(c *fiber.Ctx) (coordinatesQuery, error) {
	var q coordinatesQuery
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return q, errors.New("lat and lon query parameters are required")
	}

	var err error
	if q.Lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return q, errors.New("lat must be a number")
	}
	if q.Lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return q, errors.New("lon must be a number")
	}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func (h *handlers) reversePlace(c *fiber.Ctx) error {
	q, err := parseCoordinates(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	places, err := h.Places.Reverse(c.UserContext(), q.Lat, q.Lon)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"places": places})
}

func (h *handlers) parameters(c *fiber.Ctx) error {
	name := c.Query("set", "observation")
	set, ok := weather.ParameterSetByName(name)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "unknown parameter set "+strconv.Quote(name))
	}
	return c.JSON(fiber.Map{"set": set, "categories": set.Categories()})
}

func (h *handlers) nearestStations(c *fiber.Ctx) error {
	q, err := parseCoordinates(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	n := c.QueryInt("n", 5)
	if n < 1 || n > 50 {
		return fiber.NewError(fiber.StatusBadRequest, "n must be between 1 and 50")
	}

	nearby := h.Stations.Nearest(q.Lat, q.Lon, n)
	resp := fiber.Map{"stations": nearby}

	// Name the place of the closest station; a failed lookup only drops it.
	if len(nearby) > 0 && h.Places != nil {
		places, err := h.Places.Reverse(c.UserContext(), nearby[0].Latitude, nearby[0].Longitude)
		if err != nil {
			h.Logger.Warn("reverse lookup of nearest station failed", "station", nearby[0].ID, "err", err)
		} else if len(places) > 0 {
			resp["place"] = places[0]
		}
	}
	return c.JSON(resp)
}

// lookupStation resolves the :id parameter. An empty catalogue accepts any id.
func (h *handlers) lookupStation(c *fiber.Ctx) (stations.Station, error) {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return stations.Station{}, fiber.NewError(fiber.StatusBadRequest, "station id is required")
	}
	if h.Stations == nil || h.Stations.Len() == 0 {
		return stations.Station{ID: id}, nil
	}
	return h.Stations.Get(id)
}

func (h *handlers) station(c *fiber.Ctx) error {
	st, err := h.lookupStation(c)
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (h *handlers) live(c *fiber.Ctx) error {
	st, err := h.lookupStation(c)
	if err != nil {
		return err
	}
	inst, err := h.Weather.Live(c.UserContext(), st.ID)
	if err != nil {
		return err
	}
	return c.JSON(inst)
}

func (h *handlers) observation(c *fiber.Ctx) error {
	st, err := h.lookupStation(c)
	if err != nil {
		return err
	}
	atStr := c.Query("at")
	if atStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "at query parameter is required")
	}
	at, err := parseTime(atStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	inst, err := h.Weather.AtDate(c.UserContext(), st.ID, at)
	if err != nil {
		return err
	}
	return c.JSON(inst)
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From        time.Time `validate:"required"`
	To          time.Time `validate:"required,gtefield=From"`
	Granularity string    `validate:"oneof=hourly daily"`
	Category    string
}

func (q *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to
	q.Granularity = c.Query("granularity", string(meteofrance.Hourly))
	q.Category = c.Query("category")
	return validate.Struct(q)
}

func (h *handlers) history(c *fiber.Ctx) error {
	st, err := h.lookupStation(c)
	if err != nil {
		return err
	}
	var q historyQuery
	if err := q.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	g := meteofrance.Granularity(q.Granularity)
	table, err := h.Weather.History(c.UserContext(), st.ID, q.From, q.To, g)
	if err != nil {
		return err
	}
	set := weather.ParametersFor(g)
	if q.Category != "" {
		table = weather.FilterCategory(table, set, q.Category)
	}

	return c.JSON(fiber.Map{
		"station":     st,
		"from":        q.From,
		"to":          q.To,
		"granularity": g,
		"table":       table,
		"stats":       weather.Describe(table),
	})
}

func (h *handlers) climatology(c *fiber.Ctx) error {
	st, err := h.lookupStation(c)
	if err != nil {
		return err
	}
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil || year < 1800 {
		return fiber.NewError(fiber.StatusBadRequest, "year must be a four-digit number")
	}

	table, err := h.Weather.Year(c.UserContext(), st.ID, st.OpeningDate, year)
	if err != nil {
		return err
	}
	if cat := c.Query("category"); cat != "" {
		table = weather.FilterCategory(table, weather.DailyParameters, cat)
	}

	return c.JSON(fiber.Map{
		"station": st,
		"year":    year,
		"table":   table,
		"stats":   weather.Describe(table),
	})
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
