package handler

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "toolsite/backend/internal/errors"
	"toolsite/backend/internal/middleware"
	"toolsite/backend/internal/service"
)

const (
	streamBuffer = 8
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxInbound   = 512
)

// StreamHandler pushes state snapshots to browsers over SSE or a websocket.
type StreamHandler struct {
	pomodoroService *service.PomodoroService
	upgrader        websocket.Upgrader
}

type streamMessage struct {
	Type  string              `json:"type"`
	State *service.StateView  `json:"state,omitempty"`
	Error *apperrors.APIError `json:"error,omitempty"`
}

type streamCommand struct {
	Action string `json:"action"`
}

func NewStreamHandler(pomodoroService *service.PomodoroService, allowedOrigins []string) *StreamHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimSpace(origin)] = struct{}{}
	}

	return &StreamHandler{
		pomodoroService: pomodoroService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed["*"]; ok {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Events streams snapshots as server-sent events named "state".
func (h *StreamHandler) Events(c *gin.Context) {
	updates, cancel, apiErr := h.pomodoroService.Subscribe(middleware.UserID(c), streamBuffer)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(io.Writer) bool {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("state", service.NewStateView(snapshot))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// WebSocket streams snapshots and accepts {"action": "start"|"pause"|"reset"}
// commands from the client.
func (h *StreamHandler) WebSocket(c *gin.Context) {
	userID := middleware.UserID(c)
	updates, cancel, apiErr := h.pomodoroService.Subscribe(userID, streamBuffer)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, stop := context.WithCancel(c.Request.Context())
	defer stop()
	replies := make(chan *apperrors.APIError, 1)
	go h.readCommands(ctx, stop, conn, userID, replies)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		var msg streamMessage
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait),
				)
				return
			}
			msg = streamMessage{Type: "state", State: service.NewStateView(snapshot)}
		case apiErr := <-replies:
			msg = streamMessage{Type: "error", Error: apiErr}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (h *StreamHandler) readCommands(
	ctx context.Context,
	stop context.CancelFunc,
	conn *websocket.Conn,
	userID string,
	replies chan<- *apperrors.APIError,
) {
	defer stop()

	conn.SetReadLimit(maxInbound)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd streamCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var apiErr *apperrors.APIError
		switch cmd.Action {
		case "start":
			_, apiErr = h.pomodoroService.Start(ctx, userID)
		case "pause":
			_, apiErr = h.pomodoroService.Pause(ctx, userID)
		case "reset":
			_, apiErr = h.pomodoroService.Reset(ctx, userID)
		default:
			apiErr = apperrors.BadRequest("invalid_action", "action must be start, pause or reset")
		}
		if apiErr == nil {
			continue
		}
		select {
		case replies <- apiErr:
		case <-ctx.Done():
			return
		}
	}
}
