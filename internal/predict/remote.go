package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stuntlytics/stuntlytics/internal/domain"
)

// ErrUnavailable indicates the remote scoring service is unreachable or
// returned an unusable response.
var ErrUnavailable = errors.New("scoring service unavailable")

const defaultRemoteTimeout = 30 * time.Second

// RemoteScorer is an HTTP client for an external risk-scoring endpoint. It
// posts the raw record and reads back {risk_score, risk_label}. Attempt-once.
type RemoteScorer struct {
	url    string
	client *http.Client
}

// NewRemoteScorer creates a scorer for the given endpoint URL. A zero
// timeout falls back to the default.
func NewRemoteScorer(url string, timeout time.Duration) *RemoteScorer {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &RemoteScorer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Score posts the record for scoring. Any transport, status or decode
// failure wraps ErrUnavailable so callers can degrade to the fallback.
func (s *RemoteScorer) Score(ctx context.Context, rec *domain.PredictionRecord) (*domain.PredictionResult, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnavailable, s.url, resp.StatusCode)
	}

	var body struct {
		RiskScore *float64 `json:"risk_score"`
		RiskLabel string   `json:"risk_label"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	if body.RiskScore == nil {
		return nil, fmt.Errorf("%w: response has no risk_score", ErrUnavailable)
	}

	return &domain.PredictionResult{
		Probability: *body.RiskScore,
		Label:       body.RiskLabel,
		Source:      "remote",
	}, nil
}
