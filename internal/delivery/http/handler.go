package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/foodscan/matcher/internal/domain"
	"github.com/gin-gonic/gin"
)

// Matcher is the matching use case served over HTTP
type Matcher interface {
	Match(ctx context.Context, query string, limit int, threshold float64) ([]domain.MatchResult, error)
	Reload(ctx context.Context) (domain.IndexStatus, error)
	Status() domain.IndexStatus
}

// HandlerConfig holds request defaults for the handlers
type HandlerConfig struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultThreshold float64
	RequestTimeout   time.Duration
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	matcher Matcher
	config  HandlerConfig
}

// NewHandler creates a new HTTP handler. A nil matcher makes the match
// endpoints report that the service is not configured.
func NewHandler(matcher Matcher, config HandlerConfig) *Handler {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 5
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 10
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	return &Handler{matcher: matcher, config: config}
}

// HealthCheck reports whether an index snapshot is being served
func (h *Handler) HealthCheck(c *gin.Context) {
	if h.matcher == nil {
		c.JSON(http.StatusOK, gin.H{"status": "loading", "records": 0})
		return
	}

	status := h.matcher.Status()
	state := "loading"
	if status.Ready {
		state = "ok"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  state,
		"records": status.Records,
	})
}

// Match handles food match requests
func (h *Handler) Match(c *gin.Context) {
	if h.matcher == nil {
		respondError(c, http.StatusServiceUnavailable, "matcher not configured", "NOT_CONFIGURED")
		return
	}

	var request domain.MatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error(), "INVALID_INPUT")
		return
	}

	limit := h.config.DefaultLimit
	if request.Limit != nil {
		limit = *request.Limit
	}
	threshold := h.config.DefaultThreshold
	if request.Threshold != nil {
		threshold = *request.Threshold
	}

	if limit < 1 || limit > h.config.MaxLimit {
		respondError(c, http.StatusBadRequest,
			fmt.Sprintf("limit must be between 1 and %d", h.config.MaxLimit), "INVALID_INPUT")
		return
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		respondError(c, http.StatusBadRequest, "threshold must be between 0 and 1", "INVALID_INPUT")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.RequestTimeout)
	defer cancel()

	matches, err := h.matcher.Match(ctx, request.Query, limit, threshold)
	if err != nil {
		writeError(c, err)
		return
	}

	if matches == nil {
		matches = []domain.MatchResult{}
	}
	c.JSON(http.StatusOK, domain.MatchResponse{Matches: matches})
}

// ReloadIndex rebuilds the index snapshot from the store
func (h *Handler) ReloadIndex(c *gin.Context) {
	if h.matcher == nil {
		respondError(c, http.StatusServiceUnavailable, "matcher not configured", "NOT_CONFIGURED")
		return
	}

	status, err := h.matcher.Reload(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"records": status.Records,
	})
}

// IndexStatus describes the published snapshot
func (h *Handler) IndexStatus(c *gin.Context) {
	if h.matcher == nil {
		c.JSON(http.StatusOK, domain.IndexStatus{})
		return
	}
	c.JSON(http.StatusOK, h.matcher.Status())
}

// writeError maps use case errors onto HTTP status codes
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case errors.Is(err, domain.ErrNotReady):
		respondError(c, http.StatusServiceUnavailable, err.Error(), "NOT_READY")
	case errors.Is(err, domain.ErrEmptyCatalog):
		respondError(c, http.StatusServiceUnavailable, err.Error(), "EMPTY_CATALOG")
	case errors.Is(err, domain.ErrProviderFailure):
		log.Printf("[MATCH] Provider failure: %v", err)
		respondError(c, http.StatusBadGateway, "embedding provider unavailable", "PROVIDER_FAILURE")
	case errors.Is(err, domain.ErrStoreFailure), errors.Is(err, domain.ErrCorruptIndex):
		log.Printf("[LOAD] Store failure: %v", err)
		respondError(c, http.StatusServiceUnavailable, "catalog store unavailable", "STORE_FAILURE")
	default:
		log.Printf("[MATCH] Unexpected error: %v", err)
		respondError(c, http.StatusInternalServerError, "internal server error", "INTERNAL")
	}
}

func respondError(c *gin.Context, status int, message, code string) {
	c.JSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}
