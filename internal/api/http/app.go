package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/i474232898/meteoviz/internal/geocode"
	"github.com/i474232898/meteoviz/internal/meteofrance"
	"github.com/i474232898/meteoviz/internal/stations"
	"github.com/i474232898/meteoviz/internal/weather"
)

const appName = "meteoviz"

// NewApp builds the Fiber application with middleware, health check and API routes.
func NewApp(deps Deps) *fiber.App {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Climatology requests wait for their order to be ready.
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := statusFor(err)
			if code >= fiber.StatusInternalServerError {
				log.Error("request failed",
					"method", c.Method(),
					"path", c.Path(),
					"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
					"status", code,
					"err", err,
				)
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		resp := fiber.Map{
			"status":  "ok",
			"service": appName,
		}
		if deps.Stations != nil {
			resp["stations"] = deps.Stations.Len()
		}
		return c.JSON(resp)
	})

	RegisterRoutes(app, deps)
	return app
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	var (
		fiberErr  *fiber.Error
		authErr   *meteofrance.AuthenticationError
		transErr  *meteofrance.TransportError
		subErr    *meteofrance.OrderSubmissionError
		recErr    *meteofrance.OrderRecoveryError
		decErr    *meteofrance.DecodeError
		statusErr *geocode.StatusError
	)
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, stations.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, weather.ErrInvalidPeriod):
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.As(err, &recErr):
		if recErr.TimedOut {
			return fiber.StatusGatewayTimeout
		}
		return fiber.StatusBadGateway
	case errors.As(err, &transErr) && transErr.StatusCode == fiber.StatusNotFound:
		return fiber.StatusNotFound
	case errors.As(err, &authErr), errors.As(err, &transErr), errors.As(err, &subErr),
		errors.As(err, &decErr), errors.As(err, &statusErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
