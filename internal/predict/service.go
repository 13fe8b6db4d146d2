package predict

import (
	"context"

	"github.com/stuntlytics/stuntlytics/internal/domain"
	"github.com/stuntlytics/stuntlytics/internal/logger"
)

// Service routes a prediction request through the configured scoring paths:
// a local artifact when loaded, otherwise the remote service, degrading to
// the heuristic when the remote fails. Validation and artifact errors are
// surfaced, never papered over by the fallback.
type Service struct {
	adapter *Adapter
	remote  *RemoteScorer
	logger  logger.Logger
}

// NewService wires the scoring paths. adapter and remote may each be nil.
func NewService(adapter *Adapter, remote *RemoteScorer, log logger.Logger) *Service {
	return &Service{adapter: adapter, remote: remote, logger: log}
}

// Predict scores one record. Every result carries the recommendation list
// derived from the raw indicators, whichever path produced the score.
func (s *Service) Predict(ctx context.Context, rec *domain.PredictionRecord) (*domain.PredictionResult, error) {
	// Encoding is validated up front on every path, so a bad categorical
	// value is reported even when the remote service would have accepted it.
	if _, err := EncodeFeatures(rec); err != nil {
		return nil, err
	}

	result, err := s.score(ctx, rec)
	if err != nil {
		return nil, err
	}
	result.Recommendations = Recommendations(rec)
	return result, nil
}

func (s *Service) score(ctx context.Context, rec *domain.PredictionRecord) (*domain.PredictionResult, error) {
	if s.adapter != nil {
		return s.adapter.Predict(ctx, rec)
	}

	if s.remote != nil {
		result, err := s.remote.Score(ctx, rec)
		if err == nil {
			return result, nil
		}
		s.logger.Warn("remote scoring failed, using heuristic fallback", logger.Error(err))
	}

	score := HeuristicScore(rec)
	return &domain.PredictionResult{
		Probability: score,
		Label:       HeuristicLabel(score),
		Source:      "heuristic",
	}, nil
}
