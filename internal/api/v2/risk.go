package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (c *Controller) initRiskRoutes(g *echo.Group) {
	g.GET("/weekly-risk", c.GetWeeklyRisk)
}

// GetWeeklyRisk returns seven day summaries, oldest first.
func (c *Controller) GetWeeklyRisk(ctx echo.Context) error {
	days, err := c.Weekly.Weekly(ctx.Request().Context())
	if err != nil {
		return c.handleServiceError(ctx, err, "Could not fetch weekly risk data")
	}
	return ctx.JSON(http.StatusOK, days)
}
