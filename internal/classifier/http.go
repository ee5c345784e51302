package classifier

import (
	"context"

	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/httpclient"
)

// HTTPPredictor calls a remote inference service.
//
// Request:  {"features": [f0, f1, ...]}
// Response: {"prediction": 0|1|2}
type HTTPPredictor struct {
	endpoint string
	width    int
	client   *httpclient.Client
}

type predictRequest struct {
	Features []float32 `json:"features"`
}

type predictResponse struct {
	Prediction *int `json:"prediction"`
}

// NewHTTPPredictor creates a remote predictor. width <= 0 means the base
// feature count.
func NewHTTPPredictor(endpoint string, width int, client *httpclient.Client) *HTTPPredictor {
	if width <= 0 {
		width = BaseFeatureCount
	}
	if client == nil {
		client = httpclient.New(nil)
	}
	return &HTTPPredictor{endpoint: endpoint, width: width, client: client}
}

func (p *HTTPPredictor) Name() string    { return "http" }
func (p *HTTPPredictor) InputWidth() int { return p.width }

func (p *HTTPPredictor) Close() error {
	p.client.Close()
	return nil
}

// Predict implements Predictor.
func (p *HTTPPredictor) Predict(ctx context.Context, features []float32) (int, error) {
	var resp predictResponse
	if err := p.client.PostJSON(ctx, p.endpoint, predictRequest{Features: features}, &resp); err != nil {
		return -1, errors.New(err).
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("endpoint", p.endpoint).
			Build()
	}
	if resp.Prediction == nil {
		return -1, errors.Newf("inference response has no prediction").
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("endpoint", p.endpoint).
			Build()
	}
	return *resp.Prediction, nil
}
