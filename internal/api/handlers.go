package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stuntlytics/stuntlytics/internal/domain"
	"github.com/stuntlytics/stuntlytics/internal/export"
	"github.com/stuntlytics/stuntlytics/internal/insight"
	"github.com/stuntlytics/stuntlytics/internal/logger"
	"github.com/stuntlytics/stuntlytics/internal/predict"
	"github.com/stuntlytics/stuntlytics/internal/service"
)

// Handler holds HTTP request handlers.
type Handler struct {
	dashboard *service.Dashboard
	predictor *predict.Service
	insights  *insight.Generator
	logger    logger.Logger
}

// NewHandler creates a new handler instance.
func NewHandler(dashboard *service.Dashboard, predictor *predict.Service, insights *insight.Generator, log logger.Logger) *Handler {
	return &Handler{
		dashboard: dashboard,
		predictor: predictor,
		insights:  insights,
		logger:    log,
	}
}

// filters extracts the filter set from the request: query parameters on GET,
// a JSON body on POST.
func (h *Handler) filters(c *gin.Context) (*domain.FilterSet, bool) {
	f := &domain.FilterSet{}

	if c.Request.Method == http.MethodPost && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(f); err != nil {
			h.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
			return nil, false
		}
		return f, true
	}

	if from := c.Query("from_date"); from != "" {
		t, err := domain.ParseDate(from)
		if err != nil {
			h.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "from_date must be yyyy-mm-dd")
			return nil, false
		}
		f.DateFrom = t
	}
	if to := c.Query("to_date"); to != "" {
		t, err := domain.ParseDate(to)
		if err != nil {
			h.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "to_date must be yyyy-mm-dd")
			return nil, false
		}
		f.DateTo = t
	}
	if v := c.Query("regencies"); v != "" {
		f.Regencies = strings.Split(v, ",")
	}
	if v := c.Query("districts"); v != "" {
		f.Districts = strings.Split(v, ",")
	}
	return f, true
}

// Summary returns the KPI tiles, worker sums, immunization trend and water
// distribution for the active filters.
func (h *Handler) Summary(c *gin.Context) {
	f, ok := h.filters(c)
	if !ok {
		return
	}
	summary, err := h.dashboard.Summary(c.Request.Context(), f)
	if err != nil {
		h.respondServiceError(c, "summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Trend returns the monthly stunting percentage series.
func (h *Handler) Trend(c *gin.Context) {
	f, ok := h.filters(c)
	if !ok {
		return
	}
	points, err := h.dashboard.Trend(c.Request.Context(), f)
	if err != nil {
		h.respondServiceError(c, "trend", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

// RiskFactors returns the threshold-exceedance breakdown.
func (h *Handler) RiskFactors(c *gin.Context) {
	f, ok := h.filters(c)
	if !ok {
		return
	}
	factors, err := h.dashboard.RiskFactors(c.Request.Context(), f)
	if err != nil {
		h.respondServiceError(c, "risk factors", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"factors": factors})
}

// TopRegions returns the ranked regional record counts.
func (h *Handler) TopRegions(c *gin.Context) {
	f, ok := h.filters(c)
	if !ok {
		return
	}
	top, err := h.dashboard.TopRegions(c.Request.Context(), f)
	if err != nil {
		h.respondServiceError(c, "top regions", err)
		return
	}
	c.JSON(http.StatusOK, top)
}

// Choropleth returns enriched boundary features with a fitted viewport.
func (h *Handler) Choropleth(c *gin.Context) {
	f, ok := h.filters(c)
	if !ok {
		return
	}
	level := c.DefaultQuery("level", "kabupaten")
	if level != "kabupaten" && level != "kecamatan" {
		h.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "level must be kabupaten or kecamatan")
		return
	}
	out, err := h.dashboard.Choropleth(c.Request.Context(), f, level)
	if err != nil {
		h.respondServiceError(c, "choropleth", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// FilterOptions returns the resolved region fields and their values.
func (h *Handler) FilterOptions(c *gin.Context) {
	f, ok := h.filters(c)
	if !ok {
		return
	}
	opts, err := h.dashboard.FilterOptions(c.Request.Context(), f)
	if err != nil {
		h.respondServiceError(c, "filter options", err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

// Predict scores a family record.
func (h *Handler) Predict(c *gin.Context) {
	var rec domain.PredictionRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		h.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return
	}

	result, err := h.predictor.Predict(c.Request.Context(), &rec)
	if err != nil {
		h.respondServiceError(c, "predict", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// insightRequest carries the regional context for the insight panel.
type insightRequest struct {
	Context string            `json:"context"`
	Filters *domain.FilterSet `json:"filters"`
}

// Insight generates intervention recommendations for the filtered region.
func (h *Handler) Insight(c *gin.Context) {
	var req insightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return
	}
	if req.Filters == nil {
		req.Filters = &domain.FilterSet{}
	}

	metrics, err := h.dashboard.InsightMetrics(c.Request.Context(), req.Filters)
	if err != nil {
		h.respondServiceError(c, "insight metrics", err)
		return
	}

	result := h.insights.Generate(c.Request.Context(), req.Context, metrics)
	advisories, err := h.dashboard.Advisories(c.Request.Context(), req.Filters, metrics)
	if err != nil {
		h.logger.Warn("advisory evaluation failed", logger.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"recommendations": result.Recommendations,
		"source":          result.Source,
		"advisories":      advisories,
		"metrics":         metrics,
	})
}

// ExportCSV streams the filtered rows as CSV.
func (h *Handler) ExportCSV(c *gin.Context) {
	f, ok := h.filters(c)
	if !ok {
		return
	}
	rows, err := h.dashboard.SampleRows(c.Request.Context(), f, h.exportSize(c))
	if err != nil {
		h.respondServiceError(c, "export csv", err)
		return
	}

	out, err := export.CSV(rows, nil)
	if err != nil {
		h.respondServiceError(c, "export csv", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="stuntlytics_filtered.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
}

// ExportXLSX streams the filtered rows and KPI snapshot as a workbook.
func (h *Handler) ExportXLSX(c *gin.Context) {
	f, ok := h.filters(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	rows, err := h.dashboard.SampleRows(ctx, f, h.exportSize(c))
	if err != nil {
		h.respondServiceError(c, "export xlsx", err)
		return
	}
	summary, err := h.dashboard.Summary(ctx, f)
	if err != nil {
		h.respondServiceError(c, "export xlsx", err)
		return
	}

	out, err := export.XLSX(rows, nil, summary.KPI)
	if err != nil {
		h.respondServiceError(c, "export xlsx", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="stuntlytics_filtered.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", out)
}

// ExportReport returns the KPI snapshot with the filters that produced it.
func (h *Handler) ExportReport(c *gin.Context) {
	f, ok := h.filters(c)
	if !ok {
		return
	}
	summary, err := h.dashboard.Summary(c.Request.Context(), f)
	if err != nil {
		h.respondServiceError(c, "export report", err)
		return
	}

	report := export.BuildReport(f, summary.KPI, int(summary.KPI.TotalBirths), time.Now())
	raw, err := export.ReportJSON(report)
	if err != nil {
		h.respondServiceError(c, "export report", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="stuntlytics_report.json"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (h *Handler) exportSize(c *gin.Context) int {
	if v := c.Query("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// HealthCheck handles health check requests.
func (h *Handler) HealthCheck(c *gin.Context) {
	status := h.dashboard.HealthCheck(c.Request.Context())
	if status.Status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ReadinessCheck handles readiness check requests.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	h.HealthCheck(c)
}
