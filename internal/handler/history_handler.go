package handler

import (
	"errors"
	"net/http"
	"time"

	"fatoora/internal/middleware"
	"fatoora/internal/service"
	"fatoora/pkg/pagination"
	"fatoora/pkg/response"

	"github.com/gin-gonic/gin"
)

type HistoryHandler struct {
	historyService service.HistoryService
	secret         []byte
}

func NewHistoryHandler(historyService service.HistoryService, secret []byte) *HistoryHandler {
	return &HistoryHandler{historyService: historyService, secret: secret}
}

func (h *HistoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/exports")
	group.Use(middleware.RequireAuth(h.secret))
	{
		group.GET("", h.ListExports)
		group.GET("/stats", h.GetStatistics)
	}
}

// ListExports returns the caller's export history
// @Summary      Export history
// @Description  Paginated list of the caller's exports, newest first
// @Tags         exports
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      401    {object}  response.Response
// @Router       /api/exports [get]
func (h *HistoryHandler) ListExports(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
		return
	}

	p := pagination.Parse(c)
	exports, total, err := h.historyService.ListExports(c.Request.Context(), *userID, p.Offset, p.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve export history"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"exports":    exports,
		"pagination": p.NewMeta(total),
	}))
}

// GetStatistics summarizes the caller's exports
// @Summary      Export statistics
// @Description  Export counts per kind and invoice totals per currency within a date range
// @Tags         exports
// @Security     BearerAuth
// @Produce      json
// @Param        start_date  query     string  false  "Start date (RFC3339, default first day of the current month)"
// @Param        end_date    query     string  false  "End date (RFC3339, default now)"
// @Success      200         {object}  response.Response{data=model.ExportStatistics}
// @Failure      400         {object}  response.Response
// @Failure      401         {object}  response.Response
// @Router       /api/exports/stats [get]
func (h *HistoryHandler) GetStatistics(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
		return
	}

	now := time.Now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	endDate := now

	if v := c.Query("start_date"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, "InvalidDate", "Invalid start_date format. Use RFC3339"))
			return
		}
		startDate = parsed
	}
	if v := c.Query("end_date"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, "InvalidDate", "Invalid end_date format. Use RFC3339"))
			return
		}
		endDate = parsed
	}

	stats, err := h.historyService.Statistics(c.Request.Context(), *userID, startDate, endDate)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, "InvalidDate", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve export statistics"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
