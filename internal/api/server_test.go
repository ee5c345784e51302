package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mhews/mhews/internal/alerts"
	"github.com/mhews/mhews/internal/conf"
	mock_datastore "github.com/mhews/mhews/internal/datastore/mocks"
	"github.com/mhews/mhews/internal/engine"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
	"github.com/mhews/mhews/internal/notification"
	"github.com/mhews/mhews/internal/risk"
)

type nopClassifier struct{}

func (nopClassifier) Classify(context.Context, hazard.Reading) hazard.RiskLabel { return hazard.LabelLow }

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, hazard.Type, string, []string) notification.DispatchResult {
	return notification.DispatchResult{Sent: true, Count: 1}
}

func newTestServer(t *testing.T, origins []string) *Server {
	t.Helper()
	ds := &mock_datastore.MockInterface{}
	ds.On("LatestReading", mock.Anything).Return(nil,
		errors.Newf("sensor reading not found").Category(errors.CategoryNotFound).Build())

	settings := &conf.Settings{}
	settings.WebServer.CORSOrigins = origins

	s, err := New(settings, Dependencies{
		Store:  ds,
		Engine: engine.New(nopClassifier{}, hazard.NewEvaluator(nil), nopDispatcher{}, ds),
		Alerts: alerts.NewService(ds, nopDispatcher{}, nil),
		Weekly: risk.NewAggregator(ds),
	})
	require.NoError(t, err)
	return s
}

func TestNew_MissingDependency(t *testing.T) {
	_, err := New(&conf.Settings{}, Dependencies{Store: &mock_datastore.MockInterface{}})
	require.Error(t, err)
}

func TestServer_RequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/health", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := uuid.Parse(rec.Header().Get(echo.HeaderXRequestID))
	assert.NoError(t, err)
}

func TestServer_CORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		allowed string
	}{
		{"default allows all", nil, "https://anywhere.example", "*"},
		{"configured origin", []string{"https://dash.example"}, "https://dash.example", "https://dash.example"},
		{"other origin", []string{"https://dash.example"}, "https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.origins)

			req := httptest.NewRequest(http.MethodOptions, "/api/v2/alerts", http.NoBody)
			req.Header.Set(echo.HeaderOrigin, tt.origin)
			req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPatch)
			rec := httptest.NewRecorder()
			s.Echo().ServeHTTP(rec, req)

			assert.Equal(t, tt.allowed, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		})
	}
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	s := newTestServer(t, nil)
	assert.NoError(t, s.Shutdown(context.Background()))
}
