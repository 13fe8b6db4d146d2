package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stuntlytics/stuntlytics/internal/domain"
	"github.com/stuntlytics/stuntlytics/internal/elastic"
	"github.com/stuntlytics/stuntlytics/internal/logger"
	"github.com/stuntlytics/stuntlytics/internal/predict"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	})
}

// respondServiceError maps a service error onto the HTTP surface. Datastore
// connectivity reports the attempted endpoint; schema and encoding problems
// report the offending field; an empty dataset is an explicit state, not a
// failure.
func (h *Handler) respondServiceError(c *gin.Context, op string, err error) {
	h.logger.Error("request failed",
		logger.String("operation", op),
		logger.Error(err),
	)

	var connErr *elastic.ConnError
	if errors.As(err, &connErr) {
		h.respondError(c, http.StatusServiceUnavailable, "DATASTORE_UNAVAILABLE", connErr.Error())
		return
	}

	var schemaErr *elastic.SchemaError
	if errors.As(err, &schemaErr) {
		h.respondError(c, http.StatusUnprocessableEntity, "SCHEMA_MISMATCH", schemaErr.Error())
		return
	}

	var encErr *predict.EncodingError
	if errors.As(err, &encErr) {
		h.respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", encErr.Error())
		return
	}

	var artErr *predict.ArtifactError
	if errors.As(err, &artErr) {
		h.respondError(c, http.StatusInternalServerError, "ARTIFACT_ERROR", artErr.Error())
		return
	}

	if errors.Is(err, domain.ErrNoData) {
		h.respondError(c, http.StatusNotFound, "NO_DATA", domain.ErrNoData.Error())
		return
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		h.respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", valErr.Error())
		return
	}
	h.respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}
