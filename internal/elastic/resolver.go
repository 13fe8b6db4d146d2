package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/stuntlytics/stuntlytics/internal/domain"
	"github.com/stuntlytics/stuntlytics/internal/logger"
)

// Resolver probes ordered physical-field candidates for a logical attribute
// and returns the first one that yields data. Document field names drift
// across dataset revisions; this keeps the drift out of every call site.
type Resolver struct {
	searcher Searcher
	qb       *QueryBuilder
	index    string
	size     int
	logger   logger.Logger
}

// NewResolver creates a field resolver against the given index.
func NewResolver(searcher Searcher, qb *QueryBuilder, index string, termsSize int, log logger.Logger) *Resolver {
	return &Resolver{
		searcher: searcher,
		qb:       qb,
		index:    index,
		size:     termsSize,
		logger:   log,
	}
}

// Resolve issues one terms aggregation per candidate, scoped by the current
// filters, and returns the first candidate with at least one bucket along
// with its sorted distinct values. All candidates exhausted without data
// returns ("", nil, nil); callers fall back to a static default list.
// Transport errors propagate — they are not swallowed per candidate.
func (r *Resolver) Resolve(ctx context.Context, candidates []string, f *domain.FilterSet) (string, []string, error) {
	for _, field := range candidates {
		values, err := r.distinctValues(ctx, field, f)
		if err != nil {
			return "", nil, fmt.Errorf("resolve field %q: %w", field, err)
		}
		if len(values) > 0 {
			r.logger.Debug("Resolved field candidate",
				logger.String("field", field),
				logger.Int("distinct_values", len(values)),
			)
			return field, values, nil
		}
	}

	r.logger.Warn("No field candidate yielded data",
		logger.Strings("candidates", candidates),
	)
	return "", nil, nil
}

// distinctValues fetches up to r.size distinct terms for one field.
func (r *Resolver) distinctValues(ctx context.Context, field string, f *domain.FilterSet) ([]string, error) {
	body := r.qb.Build(f)
	body["size"] = 0
	body["aggs"] = map[string]any{
		"opts": map[string]any{
			"terms": map[string]any{
				"field": field,
				"size":  r.size,
			},
		},
	}

	rc, err := r.searcher.Search(ctx, r.index, body)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()

	var resp struct {
		Aggregations struct {
			Opts struct {
				Buckets []struct {
					Key any `json:"key"`
				} `json:"buckets"`
			} `json:"opts"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(rc).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode terms response: %w", err)
	}

	values := make([]string, 0, len(resp.Aggregations.Opts.Buckets))
	for _, b := range resp.Aggregations.Opts.Buckets {
		values = append(values, fmt.Sprint(b.Key))
	}
	sort.Strings(values)
	return values, nil
}
