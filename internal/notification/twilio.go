package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/httpclient"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioGateway sends SMS through the Twilio Messages REST resource.
type TwilioGateway struct {
	client     *httpclient.Client
	baseURL    string
	accountSID string
	authToken  string
}

// twilioMessage covers both the success and the error body.
type twilioMessage struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewTwilioGateway creates a gateway. A nil client gets a default one.
func NewTwilioGateway(settings *conf.TwilioSettings, client *httpclient.Client, timeout time.Duration) *TwilioGateway {
	if client == nil {
		client = httpclient.New(&httpclient.Config{DefaultTimeout: timeout})
	}
	base := strings.TrimRight(settings.BaseURL, "/")
	if base == "" {
		base = defaultTwilioBaseURL
	}
	return &TwilioGateway{
		client:     client,
		baseURL:    base,
		accountSID: settings.AccountSID,
		authToken:  settings.AuthToken,
	}
}

// Name implements Gateway.
func (g *TwilioGateway) Name() string { return "twilio" }

func (g *TwilioGateway) messagesURL() string {
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", g.baseURL, url.PathEscape(g.accountSID))
}

// Send implements Gateway.
func (g *TwilioGateway) Send(ctx context.Context, from, to, body string) (Receipt, error) {
	if g.accountSID == "" || g.authToken == "" {
		return Receipt{}, errors.Newf("twilio credentials are not configured").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := g.messagesURL()
	start := time.Now()
	resp, err := g.client.PostForm(ctx, endpoint, form, httpclient.WithBasicAuth(g.accountSID, g.authToken))
	if err != nil {
		return Receipt{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var msg twilioMessage
	decodeErr := json.NewDecoder(resp.Body).Decode(&msg)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		text := msg.Message
		if decodeErr != nil || text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return Receipt{}, errors.Newf("twilio: %s", text).
			Component("notification").
			Category(errors.CategoryIntegration).
			Context("status_code", resp.StatusCode).
			Context("twilio_code", msg.Code).
			Timing("twilio_send", time.Since(start)).
			Build()
	}
	if decodeErr != nil {
		return Receipt{}, errors.New(decodeErr).
			Component("notification").
			Category(errors.CategoryIntegration).
			Context("operation", "decode_twilio_response").
			Build()
	}

	return Receipt{SID: msg.SID, Status: msg.Status}, nil
}
