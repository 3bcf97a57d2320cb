package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ews",
		Subsystem: "scoring_client",
		Name:      "request_duration_seconds",
		Help:      "Duration of model service requests",
	}, []string{"endpoint"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ews",
		Subsystem: "scoring_client",
		Name:      "request_failures_total",
		Help:      "Number of failed model service requests",
	}, []string{"endpoint"})
)

// Config defines connection options for the model scoring service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Prediction is the combined output of the upstream models for one subject.
type Prediction struct {
	DropoutProbability  float64  `json:"dropout_probability"`
	BaselineProbability *float64 `json:"baseline_probability,omitempty"`
	AnomalyLabel        string   `json:"anomaly_label"`
	AnomalyScore        *float64 `json:"anomaly_score,omitempty"`
}

// Client talks to the feature extraction and model scoring HTTP service.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// New builds a scoring client from the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scoring service base url is required")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		tracer:  otel.Tracer("github.com/univpredict/early-warning-api/pkg/scoring"),
		logger:  cfg.Logger.With().Str("component", "scoring_client").Logger(),
	}, nil
}

// FetchFeatures retrieves the engagement feature vector for one subject.
func (c *Client) FetchFeatures(parent context.Context, subjectID uint) (map[string]float64, error) {
	ctx, span := c.tracer.Start(parent, "scoring.fetch_features", trace.WithAttributes(
		attribute.Int64("subject_id", int64(subjectID)),
	))
	defer span.End()

	var payload struct {
		Features map[string]float64 `json:"features"`
	}

	url := fmt.Sprintf("%s/features/%d", c.baseURL, subjectID)
	if err := c.do(ctx, http.MethodGet, url, "features", nil, &payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return payload.Features, nil
}

// Predict runs the upstream models over a feature vector.
func (c *Client) Predict(parent context.Context, subjectID uint, features map[string]float64) (Prediction, error) {
	ctx, span := c.tracer.Start(parent, "scoring.predict", trace.WithAttributes(
		attribute.Int64("subject_id", int64(subjectID)),
	))
	defer span.End()

	request := struct {
		SubjectID uint               `json:"subject_id"`
		Features  map[string]float64 `json:"features"`
	}{SubjectID: subjectID, Features: features}

	var prediction Prediction
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/predict", "predict", request, &prediction); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Prediction{}, err
	}

	return prediction, nil
}

func (c *Client) do(ctx context.Context, method, url, endpoint string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		requestFailures.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("scoring service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		requestFailures.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("scoring service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		requestFailures.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
