package elastic_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuntlytics/stuntlytics/internal/domain"
	"github.com/stuntlytics/stuntlytics/internal/elastic"
	"github.com/stuntlytics/stuntlytics/internal/logger"
)

// fakeSearcher returns canned JSON bodies in call order, or a fixed error.
type fakeSearcher struct {
	responses []string
	err       error
	calls     int
	bodies    []map[string]any
	indices   []string
}

func (f *fakeSearcher) Search(_ context.Context, index string, body map[string]any) (io.ReadCloser, error) {
	f.indices = append(f.indices, index)
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.responses) {
		return nil, fmt.Errorf("unexpected call %d", f.calls)
	}
	resp := f.responses[f.calls]
	f.calls++
	return io.NopCloser(strings.NewReader(resp)), nil
}

func termsResponse(keys ...string) string {
	var b strings.Builder
	b.WriteString(`{"aggregations":{"opts":{"buckets":[`)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"key":%q,"doc_count":1}`, k)
	}
	b.WriteString(`]}}}`)
	return b.String()
}

func newTestResolver(searcher *fakeSearcher) *elastic.Resolver {
	cfg := getTestESConfig()
	qb := elastic.NewQueryBuilder(cfg)
	return elastic.NewResolver(searcher, qb, cfg.StuntingIndex, cfg.ResolverTermsSize, logger.NewNop())
}

func TestResolver_FirstCandidateWithDataWins(t *testing.T) {
	searcher := &fakeSearcher{responses: []string{
		termsResponse(), // "a" is empty
		termsResponse("GARUT", "BANDUNG"),
	}}
	r := newTestResolver(searcher)

	field, values, err := r.Resolve(context.Background(), []string{"a", "b"}, &domain.FilterSet{})
	require.NoError(t, err)
	assert.Equal(t, "b", field)
	assert.Equal(t, []string{"BANDUNG", "GARUT"}, values, "values must come back sorted")
	assert.Equal(t, 2, searcher.calls, "one remote call per candidate until success")
}

func TestResolver_StopsAtFirstHit(t *testing.T) {
	searcher := &fakeSearcher{responses: []string{
		termsResponse("Kecamatan A"),
	}}
	r := newTestResolver(searcher)

	field, _, err := r.Resolve(context.Background(), []string{"Kecamatan", "kecamatan"}, &domain.FilterSet{})
	require.NoError(t, err)
	assert.Equal(t, "Kecamatan", field)
	assert.Equal(t, 1, searcher.calls)
}

func TestResolver_AllExhausted(t *testing.T) {
	searcher := &fakeSearcher{responses: []string{
		termsResponse(),
		termsResponse(),
	}}
	r := newTestResolver(searcher)

	field, values, err := r.Resolve(context.Background(), []string{"a", "b"}, &domain.FilterSet{})
	require.NoError(t, err, "exhausted candidates are not an error; caller falls back")
	assert.Empty(t, field)
	assert.Empty(t, values)
}

func TestResolver_TransportErrorPropagates(t *testing.T) {
	connErr := &elastic.ConnError{Endpoint: "http://localhost:9200", Op: "search", Err: errors.New("refused")}
	searcher := &fakeSearcher{err: connErr}
	r := newTestResolver(searcher)

	_, _, err := r.Resolve(context.Background(), []string{"a", "b"}, &domain.FilterSet{})
	require.Error(t, err)

	var ce *elastic.ConnError
	assert.ErrorAs(t, err, &ce, "transport failures must surface as ConnError, not be swallowed")
	assert.Equal(t, 1, len(searcher.indices), "no further candidates are probed after a transport failure")
}

func TestResolver_ScopesRequestByFilters(t *testing.T) {
	searcher := &fakeSearcher{responses: []string{termsResponse("X")}}
	r := newTestResolver(searcher)

	filters := &domain.FilterSet{
		RegencyField: "nama_kabupaten_kota",
		Regencies:    []string{"GARUT"},
	}
	_, _, err := r.Resolve(context.Background(), []string{"Kecamatan"}, filters)
	require.NoError(t, err)

	body := searcher.bodies[0]
	assert.Equal(t, 0, body["size"], "resolver requests must not fetch hits")
	queryField := body["query"].(map[string]any)
	_, hasBool := queryField["bool"]
	assert.True(t, hasBool, "resolver request must be scoped by the active filters")
}
