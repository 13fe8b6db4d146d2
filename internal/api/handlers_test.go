package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuntlytics/stuntlytics/internal/cache"
	"github.com/stuntlytics/stuntlytics/internal/config"
	"github.com/stuntlytics/stuntlytics/internal/elastic"
	"github.com/stuntlytics/stuntlytics/internal/insight"
	"github.com/stuntlytics/stuntlytics/internal/logger"
	"github.com/stuntlytics/stuntlytics/internal/predict"
	"github.com/stuntlytics/stuntlytics/internal/rules"
	"github.com/stuntlytics/stuntlytics/internal/service"
)

type stubSearcher struct {
	responses []string
	err       error
	calls     int
}

func (s *stubSearcher) Search(context.Context, string, map[string]any) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.calls >= len(s.responses) {
		return nil, &elastic.ConnError{Endpoint: "stub", Op: "search", Err: io.EOF}
	}
	body := s.responses[s.calls]
	s.calls++
	return io.NopCloser(strings.NewReader(body)), nil
}

type stubHealth struct {
	err error
}

func (s *stubHealth) HealthCheck(context.Context) error { return s.err }

func (s *stubHealth) Info(context.Context) (string, error) { return "8.19.3", s.err }

func newTestRouter(searcher *stubSearcher, health *stubHealth) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Service.Version = "test"
	cfg.Service.MaxExport = 100
	cfg.Elasticsearch.StuntingIndex = "stunting-data"
	cfg.Elasticsearch.NutritionIndex = "jabar-tenaga-gizi"
	cfg.Elasticsearch.DateField = "Tanggal"
	cfg.Elasticsearch.RegencyFieldCandidates = []string{"nama_kabupaten_kota"}
	cfg.Elasticsearch.DistrictFieldCandidates = []string{"Kecamatan"}
	cfg.Elasticsearch.ResolverTermsSize = 500

	log := logger.NewNop()
	qb := elastic.NewQueryBuilder(&cfg.Elasticsearch)
	dashboard := service.NewDashboard(
		elastic.NewSummarizer(searcher, qb, &cfg.Elasticsearch, log),
		elastic.NewResolver(searcher, qb, cfg.Elasticsearch.StuntingIndex, cfg.Elasticsearch.ResolverTermsSize, log),
		health,
		cache.NewMemoryStore(),
		nil,
		rules.NewEngine(rules.DefaultRules(), log),
		cfg,
		log,
	)
	predictor := predict.NewService(nil, nil, log)
	insights := insight.NewGenerator(&config.InsightConfig{}, log)

	handler := NewHandler(dashboard, predictor, insights, log)
	metrics := NewMetrics()
	router := gin.New()
	router.Use(RequestIDMiddleware(), RecoveryMiddleware(log), metrics.Middleware())
	SetupRoutes(router, handler, metrics)
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, &stubHealth{})

	w := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealthEndpoint_Unhealthy(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, &stubHealth{err: io.ErrUnexpectedEOF})

	w := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSummary_DatastoreDownReturns503(t *testing.T) {
	searcher := &stubSearcher{err: &elastic.ConnError{Endpoint: "http://es:9200", Op: "search stunting-data", Err: io.EOF}}
	router := newTestRouter(searcher, &stubHealth{})

	w := doRequest(router, http.MethodGet, "/api/v1/summary", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "DATASTORE_UNAVAILABLE")
	assert.Contains(t, w.Body.String(), "http://es:9200", "connectivity errors must name the attempted endpoint")
}

func TestSummary_InvalidDateRejected(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, &stubHealth{})

	w := doRequest(router, http.MethodGet, "/api/v1/summary?from_date=01-06-2024", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestSummary_InvertedDateRangeRejected(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, &stubHealth{})

	w := doRequest(router, http.MethodGet, "/api/v1/summary?from_date=2024-06-01&to_date=2024-01-01", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestSummary_PostAcceptsQueryDateFormat(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, &stubHealth{})

	// Same yyyy-mm-dd format as the query string; the inverted range must
	// reach validation rather than fail JSON binding.
	w := doRequest(router, http.MethodPost, "/api/v1/summary", `{"date_from":"2024-06-01","date_to":"2024-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestPredict_HeuristicPath(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, &stubHealth{})

	body := `{
		"jenis_kelamin_anak": "Perempuan",
		"jenis_pekerjaan_orang_tua": "Buruh",
		"pendidikan_ibu": "SD",
		"jumlah_anak": 3,
		"akses_air_bersih": "Tidak Layak",
		"status_imunisasi_anak": "Tidak Lengkap",
		"berat_lahir_gram": 2300,
		"asi_eksklusif": "Tidak",
		"usia_anak_bulan": 24,
		"tinggi_badan_ibu_cm": 150,
		"lila_saat_hamil_cm": 22,
		"bmi_pra_hamil": 18,
		"hb_g_dl": 10.2,
		"kenaikan_bb_hamil_kg": 7,
		"usia_ibu_saat_hamil_tahun": 22,
		"jarak_kehamilan_sebelumnya_bulan": 14,
		"kunjungan_anc_x": 2,
		"kepatuhan_ttd": "Kurang",
		"kepesertaan_program_bantuan": "PKH"
	}`
	w := doRequest(router, http.MethodPost, "/api/v1/predict", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"source":"heuristic"`)
	assert.Contains(t, w.Body.String(), `"risk_label":"Tinggi"`)
	assert.Contains(t, w.Body.String(), "Lengkapi imunisasi dasar")
}

func TestPredict_UnmappedCategoryReturns400(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, &stubHealth{})

	body := `{"jenis_kelamin_anak": "laki", "jenis_pekerjaan_orang_tua": "Buruh",
		"pendidikan_ibu": "SD", "akses_air_bersih": "Layak",
		"status_imunisasi_anak": "Lengkap", "asi_eksklusif": "Ya",
		"kepatuhan_ttd": "Baik", "kepesertaan_program_bantuan": "PKH"}`
	w := doRequest(router, http.MethodPost, "/api/v1/predict", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	assert.Contains(t, w.Body.String(), "jenis_kelamin_anak")
}

func TestInsight_FallbackWithoutAPIKey(t *testing.T) {
	mainSummary := `{
		"hits": {"total": {"value": 500}},
		"aggregations": {
			"stunting_count": {"doc_count": 60},
			"imunisasi_lengkap": {"doc_count": 300},
			"total_imunisasi_field": {"value": 500},
			"air_bersih_dist": {"buckets": [{"key": "Layak", "doc_count": 250}, {"key": "Tidak Layak", "doc_count": 250}]},
			"imunisasi_trend": {"buckets": []}
		}
	}`
	nutrition := `{"aggregations": {"total_nakes": {"value": 10}, "nakes_by_region": {"buckets": []}}}`
	highRisk := `{"hits": {"total": {"value": 500}}, "aggregations": {"high_risk": {"doc_count": 100}}}`
	riskFactors := `{"hits": {"total": {"value": 500}}, "aggregations": {
		"risk_0": {"doc_count": 50}, "risk_1": {"doc_count": 10}, "risk_2": {"doc_count": 10},
		"risk_3": {"doc_count": 10}, "risk_4": {"doc_count": 10}}}`

	searcher := &stubSearcher{responses: []string{mainSummary, nutrition, highRisk, riskFactors}}
	router := newTestRouter(searcher, &stubHealth{})

	w := doRequest(router, http.MethodPost, "/api/v1/insight", `{"context": "Cakupan imunisasi rendah"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"source":"fallback"`)
	assert.Contains(t, w.Body.String(), "PAMSIMAS")
	assert.Contains(t, w.Body.String(), "sweeping imunisasi")
}

func TestChoropleth_InvalidLevelRejected(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, &stubHealth{})

	w := doRequest(router, http.MethodGet, "/api/v1/choropleth?level=desa", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, &stubHealth{})

	doRequest(router, http.MethodGet, "/health", "")
	w := doRequest(router, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stuntlytics_http_requests_total")
}
