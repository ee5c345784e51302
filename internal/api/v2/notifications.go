package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mhews/mhews/internal/datastore"
)

// SMSLogLimit is the number of notification records returned by /sms-log.
const SMSLogLimit = 50

// SendSMSRequest is an operator broadcast. Without recipients the
// configured defaults are used.
type SendSMSRequest struct {
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

func (c *Controller) initNotificationRoutes(g *echo.Group) {
	g.POST("/send-sms", c.SendSMS)
	g.GET("/sms-log", c.GetSMSLog)
}

// SendSMS dispatches a MANUAL notification. Manual sends have no cooldown.
func (c *Controller) SendSMS(ctx echo.Context) error {
	var req SendSMSRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	result, err := c.Engine.ManualSend(ctx.Request().Context(), req.Message, req.Recipients)
	if err != nil {
		return c.handleServiceError(ctx, err, "Could not send SMS")
	}
	return ctx.JSON(http.StatusOK, result)
}

// GetSMSLog returns the latest notification records, newest first.
func (c *Controller) GetSMSLog(ctx echo.Context) error {
	records, err := c.DS.RecentNotifications(ctx.Request().Context(), SMSLogLimit)
	if err != nil {
		return c.handleServiceError(ctx, err, "Could not fetch SMS log")
	}
	if records == nil {
		records = []datastore.NotificationRecord{}
	}
	return ctx.JSON(http.StatusOK, records)
}
