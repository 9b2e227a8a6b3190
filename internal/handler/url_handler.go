package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SergeiKhy/shorty/internal/models"
	"github.com/SergeiKhy/shorty/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 90
)

type URLHandler struct {
	service service.URLService
	baseURL string
	logger  *zap.Logger
}

func NewURLHandler(service service.URLService, baseURL string, logger *zap.Logger) *URLHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URLHandler{
		service: service,
		baseURL: baseURL,
		logger:  logger,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// URLResponse запись вместе с полной короткой ссылкой
type URLResponse struct {
	models.URLRecord
	ShortURL string `json:"short_url"`
}

func (h *URLHandler) toResponse(record *models.URLRecord) URLResponse {
	return URLResponse{
		URLRecord: *record,
		ShortURL:  h.baseURL + "/" + record.ShortCode,
	}
}

func (h *URLHandler) toResponses(records []*models.URLRecord) []URLResponse {
	responses := make([]URLResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, h.toResponse(record))
	}
	return responses
}

// writeError ошибки сервиса в HTTP статус
func (h *URLHandler) writeError(c *gin.Context, err error, code string) {
	switch {
	case errors.Is(err, service.ErrSlugInUse):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "slug_in_use",
			Message: "Custom slug is already in use",
		})
	case errors.Is(err, service.ErrInvalidSlug):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_slug",
			Message: "Custom slug must be 3-32 characters: letters, digits, '-' or '_'",
		})
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_url",
			Message: "Invalid URL format",
		})
	case errors.Is(err, service.ErrURLNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Short URL not found or expired",
		})
	default:
		h.logger.Error("Request failed", zap.String("code", code), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal server error",
		})
	}
}

// CreateURL POST /api/v1/urls
func (h *URLHandler) CreateURL(c *gin.Context) {
	var input models.CreateURLInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	record, err := h.service.Create(c.Request.Context(), &input)
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(record))
}

// Redirect GET /:code
func (h *URLHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	record, err := h.service.Lookup(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err, code)
		return
	}

	if err := h.service.RecordVisit(c.Request.Context(), code, visitorFromRequest(c)); err != nil {
		h.writeError(c, err, code)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, record.OriginalURL)
}

// GetURL GET /api/v1/urls/:code/stats
func (h *URLHandler) GetURL(c *gin.Context) {
	code := c.Param("code")

	record, err := h.service.Lookup(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err, code)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(record))
}

// GetAnalytics GET /api/v1/urls/:code/analytics
func (h *URLHandler) GetAnalytics(c *gin.Context) {
	code := c.Param("code")

	analytics, err := h.service.Analytics(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err, code)
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// GetDailyStats GET /api/v1/urls/:code/stats/daily?days=N
func (h *URLHandler) GetDailyStats(c *gin.Context) {
	code := c.Param("code")

	days := defaultStatsDays
	if d, err := strconv.Atoi(c.Query("days")); err == nil && d >= 1 && d <= maxStatsDays {
		days = d
	}

	stats, err := h.service.DailyStats(c.Request.Context(), code, days)
	if err != nil {
		h.writeError(c, err, code)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"short_code": code,
		"days":       days,
		"stats":      stats,
	})
}

// ListURLs GET /api/v1/urls
func (h *URLHandler) ListURLs(c *gin.Context) {
	records, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, h.toResponses(records))
}

// ListRecent GET /api/v1/urls/recent, только содержимое кэша
func (h *URLHandler) ListRecent(c *gin.Context) {
	c.JSON(http.StatusOK, h.toResponses(h.service.RecentFromCache()))
}

// DeleteURL DELETE /api/v1/urls/:code
func (h *URLHandler) DeleteURL(c *gin.Context) {
	code := c.Param("code")

	if err := h.service.Remove(c.Request.Context(), code); err != nil {
		h.writeError(c, err, code)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Short URL deleted successfully"})
}

// ClearAll DELETE /api/v1/urls
func (h *URLHandler) ClearAll(c *gin.Context) {
	if err := h.service.ClearAll(c.Request.Context()); err != nil {
		h.writeError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All short URLs deleted"})
}

// CacheStatus GET /api/v1/cache/status
func (h *URLHandler) CacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"caches": h.service.CacheStatus()})
}
