package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "toolsite/backend/internal/errors"
	"toolsite/backend/internal/jwttool"
)

const maxExpireLaterDays = 3650

// ToolsHandler serves the stateless developer tools.
type ToolsHandler struct {
	location *time.Location
	now      func() time.Time
}

type decodeRequest struct {
	Token string `json:"token"`
}

type expireLaterRequest struct {
	Token  string `json:"token"`
	Secret string `json:"secret"`
	Days   int    `json:"days"`
}

func NewToolsHandler(location *time.Location) *ToolsHandler {
	if location == nil {
		location = time.UTC
	}
	return &ToolsHandler{location: location, now: time.Now}
}

func (h *ToolsHandler) DecodeJWT(c *gin.Context) {
	var req decodeRequest
	if !bindJSON(c, &req) {
		return
	}

	decoded, err := jwttool.Decode(req.Token, h.location)
	if err != nil {
		writeError(c, toolError(err))
		return
	}
	c.JSON(http.StatusOK, decoded)
}

func (h *ToolsHandler) ExpireLater(c *gin.Context) {
	var req expireLaterRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Days <= 0 || req.Days > maxExpireLaterDays {
		writeError(c, apperrors.BadRequest("invalid_days", "days must be between 1 and 3650"))
		return
	}

	token, err := jwttool.ExpireLater(req.Token, req.Secret, req.Days, h.now())
	if err != nil {
		writeError(c, toolError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func toolError(err error) *apperrors.APIError {
	switch {
	case errors.Is(err, jwttool.ErrMalformedToken):
		return apperrors.BadRequest("invalid_token", err.Error())
	case errors.Is(err, jwttool.ErrMissingSecret):
		return apperrors.BadRequest("invalid_secret", err.Error())
	default:
		return apperrors.Internal("")
	}
}
