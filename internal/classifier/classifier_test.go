package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
	"github.com/mhews/mhews/internal/httpclient"
	"github.com/mhews/mhews/internal/observability/metrics"
)

func TestFeatures(t *testing.T) {
	t.Parallel()
	r := hazard.Reading{Signals: map[hazard.Signal]float64{
		hazard.Temperature:  30,
		hazard.Humidity:     50,
		hazard.SoilMoisture: 40,
		hazard.RainLevel:    60,
		hazard.AirQuality:   120,
		hazard.Distance:     80,
	}}

	got := Features(r, 12)
	require.Len(t, got, 12)
	want := []float32{30, 50, 40, 60, 120, 80, 50, 48, 52, 35, 0, 0}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "feature %d", i)
	}
}

func TestFeatures_MissingSignalsAreZero(t *testing.T) {
	t.Parallel()
	got := Features(hazard.Reading{}, 0)
	require.Len(t, got, BaseFeatureCount)
	assert.InDelta(t, 100, got[8], 1e-6, "dryness index of an empty reading")
	assert.Zero(t, got[5], "distance is zero for the model even though evaluation treats it as safe")
}

func TestFeatures_Truncates(t *testing.T) {
	t.Parallel()
	assert.Len(t, Features(hazard.Reading{}, 4), 4)
}

func TestLabelForClass(t *testing.T) {
	t.Parallel()
	assert.Equal(t, hazard.LabelLow, LabelForClass(0))
	assert.Equal(t, hazard.LabelMedium, LabelForClass(1))
	assert.Equal(t, hazard.LabelHigh, LabelForClass(2))
	assert.Equal(t, hazard.LabelUnknown, LabelForClass(3))
	assert.Equal(t, hazard.LabelUnknown, LabelForClass(-1))
}

func TestClassFromScores(t *testing.T) {
	t.Parallel()
	c, err := classFromScores([]float32{0.1, 0.2, 0.7})
	require.NoError(t, err)
	assert.Equal(t, 2, c)

	c, err = classFromScores([]float32{0.9})
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	_, err = classFromScores(nil)
	assert.Error(t, err)
}

type stubPredictor struct {
	class int
	err   error
	panic bool
	seen  []float32
}

func (s *stubPredictor) Name() string    { return "stub" }
func (s *stubPredictor) InputWidth() int { return 11 }
func (s *stubPredictor) Close() error    { return nil }
func (s *stubPredictor) Predict(_ context.Context, f []float32) (int, error) {
	s.seen = f
	if s.panic {
		panic("tensor shape mismatch")
	}
	return s.class, s.err
}

func TestService_Classify(t *testing.T) {
	t.Parallel()
	p := &stubPredictor{class: 2}
	svc := NewService(p, time.Second, nil)

	assert.Equal(t, hazard.LabelHigh, svc.Classify(context.Background(), hazard.Reading{}))
	assert.Len(t, p.seen, 11, "features are padded to the predictor width")
}

func TestService_DegradesToUnknown(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		p    *stubPredictor
	}{
		{"error", &stubPredictor{err: errors.NewStd("invoke failed")}},
		{"panic", &stubPredictor{panic: true}},
		{"out of range", &stubPredictor{class: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := NewService(tt.p, 0, nil)
			assert.Equal(t, hazard.LabelUnknown, svc.Classify(context.Background(), hazard.Reading{}))
		})
	}
}

func TestService_RecordsMetrics(t *testing.T) {
	t.Parallel()
	m, err := metrics.NewEngineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	svc := NewService(&stubPredictor{err: errors.NewStd("boom")}, 0, m)
	svc.Classify(context.Background(), hazard.Reading{})
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ClassificationErrors), 0)
}

func TestService_Disabled(t *testing.T) {
	t.Parallel()
	svc, err := NewFromSettings(&conf.ClassifierSettings{Type: "none"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "none", svc.Backend())
	assert.Equal(t, hazard.LabelUnknown, svc.Classify(context.Background(), hazard.Reading{}))
}

func TestNewFromSettings_Errors(t *testing.T) {
	t.Parallel()
	_, err := NewFromSettings(&conf.ClassifierSettings{Type: "onnx"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = NewFromSettings(&conf.ClassifierSettings{
		Type:      "tflite",
		ModelPath: filepath.Join(t.TempDir(), "missing.tflite"),
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

const inferURL = "http://inference.local/predict"

func newMockedHTTPPredictor(t *testing.T) *HTTPPredictor {
	t.Helper()
	client := httpclient.New(nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewHTTPPredictor(inferURL, 0, client)
}

func TestHTTPPredictor_Predict(t *testing.T) {
	p := newMockedHTTPPredictor(t)

	httpmock.RegisterResponder(http.MethodPost, inferURL,
		func(req *http.Request) (*http.Response, error) {
			var body predictRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			assert.Len(t, body.Features, BaseFeatureCount)
			return httpmock.NewJsonResponse(http.StatusOK, map[string]int{"prediction": 1})
		})

	svc := NewService(p, time.Second, nil)
	assert.Equal(t, hazard.LabelMedium, svc.Classify(context.Background(), hazard.Reading{}))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestHTTPPredictor_Failures(t *testing.T) {
	p := newMockedHTTPPredictor(t)

	httpmock.RegisterResponder(http.MethodPost, inferURL,
		httpmock.NewStringResponder(http.StatusInternalServerError, "model not loaded"))
	_, err := p.Predict(context.Background(), make([]float32, 10))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryClassification))

	httpmock.RegisterResponder(http.MethodPost, inferURL,
		httpmock.NewStringResponder(http.StatusOK, `{"label":"HIGH"}`))
	_, err = p.Predict(context.Background(), make([]float32, 10))
	require.Error(t, err, "response without prediction is rejected")

	svc := NewService(p, time.Second, nil)
	assert.Equal(t, hazard.LabelUnknown, svc.Classify(context.Background(), hazard.Reading{}))
}
