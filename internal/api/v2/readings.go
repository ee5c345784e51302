package api

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mhews/mhews/internal/engine"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
)

// maxSensorPayload bounds a single sensor-data body.
const maxSensorPayload = 64 << 10

// SensorDataResponse is returned for an accepted reading.
type SensorDataResponse struct {
	Status     string                  `json:"status"`
	Risk       hazard.RiskLabel        `json:"risk"`
	Timestamp  time.Time               `json:"timestamp"`
	Dispatches []engine.HazardDispatch `json:"dispatches,omitempty"`
}

func (c *Controller) initReadingRoutes(g *echo.Group) {
	g.POST("/sensor-data", c.PostSensorData)
	g.GET("/latest-data", c.GetLatestData)
}

// PostSensorData classifies and stores one reading and dispatches any
// hazard notifications it triggers.
func (c *Controller) PostSensorData(ctx echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxSensorPayload))
	if err != nil {
		return c.HandleError(ctx, err, "Could not read request body", http.StatusBadRequest)
	}

	in, err := engine.DecodeSensorJSON(body)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid sensor payload", http.StatusBadRequest)
	}

	out, err := c.Engine.ProcessReading(ctx.Request().Context(), in)
	if err != nil {
		return c.handleServiceError(ctx, err, "Internal Server Error")
	}

	return ctx.JSON(http.StatusOK, SensorDataResponse{
		Status:     "success",
		Risk:       out.Risk,
		Timestamp:  out.Timestamp,
		Dispatches: out.Dispatches,
	})
}

// GetLatestData returns the most recent reading, or an empty object when
// nothing has been stored yet.
func (c *Controller) GetLatestData(ctx echo.Context) error {
	r, err := c.DS.LatestReading(ctx.Request().Context())
	switch {
	case errors.IsNotFound(err):
		return ctx.JSON(http.StatusOK, map[string]any{})
	case err != nil:
		return c.handleServiceError(ctx, err, "Could not fetch latest data")
	}
	return ctx.JSON(http.StatusOK, r)
}
