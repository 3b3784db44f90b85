package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "toolsite/backend/internal/errors"
	"toolsite/backend/internal/middleware"
	"toolsite/backend/internal/service"
	"toolsite/backend/internal/session"
)

type PomodoroHandler struct {
	pomodoroService *service.PomodoroService
}

func NewPomodoroHandler(pomodoroService *service.PomodoroService) *PomodoroHandler {
	return &PomodoroHandler{pomodoroService: pomodoroService}
}

func (h *PomodoroHandler) GetState(c *gin.Context) {
	state, apiErr := h.pomodoroService.GetState(c.Request.Context(), middleware.UserID(c))
	respondState(c, state, apiErr)
}

func (h *PomodoroHandler) Start(c *gin.Context) {
	h.command(c, h.pomodoroService.Start)
}

func (h *PomodoroHandler) Pause(c *gin.Context) {
	h.command(c, h.pomodoroService.Pause)
}

func (h *PomodoroHandler) Reset(c *gin.Context) {
	h.command(c, h.pomodoroService.Reset)
}

func (h *PomodoroHandler) UpdateSettings(c *gin.Context) {
	var req session.Settings
	if !bindJSON(c, &req) {
		return
	}

	state, apiErr := h.pomodoroService.UpdateSettings(c.Request.Context(), middleware.UserID(c), req)
	respondState(c, state, apiErr)
}

func (h *PomodoroHandler) GetRecords(c *gin.Context) {
	records, apiErr := h.pomodoroService.GetRecords(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *PomodoroHandler) ClearRecords(c *gin.Context) {
	h.command(c, h.pomodoroService.ClearRecords)
}

func (h *PomodoroHandler) GetHistory(c *gin.Context) {
	limit := 0
	if rawLimit := c.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			writeError(c, apperrors.BadRequest("invalid_limit", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	sessions, apiErr := h.pomodoroService.GetHistory(c.Request.Context(), middleware.UserID(c), limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *PomodoroHandler) command(
	c *gin.Context,
	fn func(context.Context, string) (*service.StateView, *apperrors.APIError),
) {
	state, apiErr := fn(c.Request.Context(), middleware.UserID(c))
	respondState(c, state, apiErr)
}

func respondState(c *gin.Context, state *service.StateView, apiErr *apperrors.APIError) {
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
