package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mhews/mhews/internal/alerts"
	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/errors"
)

const alertNotFound = "Alert not found"

// ResolveResponse confirms a resolved alert.
type ResolveResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

func (c *Controller) initAlertRoutes(g *echo.Group) {
	g.GET("/alerts", c.ListAlerts)
	g.POST("/alerts", c.CreateAlert)
	g.PATCH("/alerts/:id/resolve", c.ResolveAlert)
	g.DELETE("/alerts/:id", c.DeleteAlert)
}

// ListAlerts returns recent alerts, active first, then by severity.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	list, err := c.Alerts.List(ctx.Request().Context())
	if err != nil {
		return c.handleServiceError(ctx, err, "Could not fetch alerts")
	}
	if list == nil {
		list = []datastore.AlertRecord{}
	}
	return ctx.JSON(http.StatusOK, list)
}

// CreateAlert raises an operator alert, sending it by SMS when requested.
func (c *Controller) CreateAlert(ctx echo.Context) error {
	var in alerts.Input
	if err := ctx.Bind(&in); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	alert, err := c.Alerts.Create(ctx.Request().Context(), in)
	if err != nil {
		return c.handleServiceError(ctx, err, "Could not create alert")
	}
	return ctx.JSON(http.StatusCreated, alert)
}

// ResolveAlert marks an alert resolved.
func (c *Controller) ResolveAlert(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := c.Alerts.Resolve(ctx.Request().Context(), id); err != nil {
		return c.alertError(ctx, err, "Could not resolve alert")
	}
	return ctx.JSON(http.StatusOK, ResolveResponse{Success: true, ID: id})
}

// DeleteAlert removes an alert.
func (c *Controller) DeleteAlert(ctx echo.Context) error {
	if err := c.Alerts.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return c.alertError(ctx, err, "Could not delete alert")
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (c *Controller) alertError(ctx echo.Context, err error, message string) error {
	if errors.IsNotFound(err) {
		return c.handleServiceError(ctx, err, alertNotFound)
	}
	return c.handleServiceError(ctx, err, message)
}
