package notification

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/httpclient"
)

const twilioMessagesURL = "https://api.twilio.com/2010-04-01/Accounts/AC123/Messages.json"

func newMockedTwilio(t *testing.T) *TwilioGateway {
	t.Helper()
	client := httpclient.New(nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return NewTwilioGateway(&conf.TwilioSettings{
		AccountSID: "AC123",
		AuthToken:  "token",
	}, client, 5*time.Second)
}

func TestTwilioSend_Success(t *testing.T) {
	gw := newMockedTwilio(t)

	httpmock.RegisterResponder(http.MethodPost, twilioMessagesURL,
		func(req *http.Request) (*http.Response, error) {
			user, pass, ok := req.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "AC123", user)
			assert.Equal(t, "token", pass)

			require.NoError(t, req.ParseForm())
			assert.Equal(t, "+15551111111", req.PostForm.Get("To"))
			assert.Equal(t, "+15550000000", req.PostForm.Get("From"))
			assert.Equal(t, "FLOOD CRITICAL", req.PostForm.Get("Body"))

			return httpmock.NewStringResponse(http.StatusCreated,
				`{"sid":"SMabc","status":"queued","to":"+15551111111"}`), nil
		})

	receipt, err := gw.Send(context.Background(), "+15550000000", "+15551111111", "FLOOD CRITICAL")
	require.NoError(t, err)
	assert.Equal(t, Receipt{SID: "SMabc", Status: "queued"}, receipt)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestTwilioSend_ErrorCarriesTwilioMessage(t *testing.T) {
	gw := newMockedTwilio(t)

	httpmock.RegisterResponder(http.MethodPost, twilioMessagesURL,
		httpmock.NewStringResponder(http.StatusBadRequest,
			`{"code":21211,"message":"The 'To' number 12 is not a valid phone number.","status":400}`))

	_, err := gw.Send(context.Background(), "+15550000000", "12", "hi")
	require.Error(t, err)
	assert.Equal(t, "twilio: The 'To' number 12 is not a valid phone number.", err.Error())
	assert.True(t, errors.IsCategory(err, errors.CategoryIntegration))
}

func TestTwilioSend_NonJSONError(t *testing.T) {
	gw := newMockedTwilio(t)

	httpmock.RegisterResponder(http.MethodPost, twilioMessagesURL,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "<html>down</html>"))

	_, err := gw.Send(context.Background(), "+15550000000", "+15551111111", "hi")
	require.Error(t, err)
	assert.Equal(t, "twilio: Service Unavailable", err.Error())
}

func TestTwilioSend_TransportError(t *testing.T) {
	gw := newMockedTwilio(t)

	httpmock.RegisterResponder(http.MethodPost, twilioMessagesURL,
		httpmock.NewErrorResponder(errors.NewStd("connection reset by peer")))

	_, err := gw.Send(context.Background(), "+15550000000", "+15551111111", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}

func TestTwilioSend_MissingCredentials(t *testing.T) {
	gw := NewTwilioGateway(&conf.TwilioSettings{}, httpclient.New(nil), time.Second)
	_, err := gw.Send(context.Background(), "+15550000000", "+15551111111", "hi")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestTwilioGateway_CustomBaseURL(t *testing.T) {
	gw := NewTwilioGateway(&conf.TwilioSettings{AccountSID: "AC9", BaseURL: "http://localhost:4010/"}, httpclient.New(nil), time.Second)
	assert.Equal(t, "http://localhost:4010/2010-04-01/Accounts/AC9/Messages.json", gw.messagesURL())
}
