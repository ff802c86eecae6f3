package handlers

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/export"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/services"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 2 * wsPingPeriod
)

// Stream message events.
const (
	StreamEventLeaderboard = "leaderboard"
	StreamEventError       = "error"
)

// StreamMessage is one frame of the leaderboard stream.
type StreamMessage struct {
	Event string              `json:"event"`
	Data  *models.Leaderboard `json:"data,omitempty"`
	Error string              `json:"error,omitempty"`
}

type LeaderboardHandler struct {
	BaseHandler
	rankingService services.RankingService
	upgrader       websocket.Upgrader
}

func NewLeaderboardHandler(rankingService services.RankingService, logger utils.Logger, allowedOrigins []string) *LeaderboardHandler {
	return &LeaderboardHandler{
		BaseHandler:    NewBaseHandler(logger),
		rankingService: rankingService,
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// buildUpgrader accepts the configured origins. An empty list or "*" accepts any.
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

func (h *LeaderboardHandler) parseScope(c *gin.Context) (models.RankScope, bool) {
	scope, err := models.ParseRankScope(c.Param("scope"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, CodeValidation, "Invalid scope", err.Error())
		return models.RankScope{}, false
	}
	return scope, true
}

// GetLeaderboard returns the current board of a scope
// @Summary Get leaderboard
// @Description Boards are eventually consistent and may trail recent submissions by the debounce window
// @Tags leaderboards
// @Produce json
// @Param scope path string true "exam:<id>, department:<id>, college:<id> or global"
// @Success 200 {object} models.Leaderboard
// @Router /leaderboards/{scope} [get]
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	scope, ok := h.parseScope(c)
	if !ok {
		return
	}

	board, err := h.rankingService.GetLeaderboard(c.Request.Context(), scope)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// GetMyRank returns the caller's position in a scope
// @Summary Get my rank
// @Tags leaderboards
// @Produce json
// @Param scope path string true "Scope"
// @Success 200 {object} models.StudentRankResponse
// @Router /leaderboards/{scope}/me [get]
func (h *LeaderboardHandler) GetMyRank(c *gin.Context) {
	scope, ok := h.parseScope(c)
	if !ok {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	rank, err := h.rankingService.GetStudentRank(c.Request.Context(), scope, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rank)
}

// ExportLeaderboard downloads the board as an xlsx workbook
// @Summary Export leaderboard
// @Tags leaderboards
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param scope path string true "Scope"
// @Success 200 {file} file
// @Router /leaderboards/{scope}/export [get]
func (h *LeaderboardHandler) ExportLeaderboard(c *gin.Context) {
	scope, ok := h.parseScope(c)
	if !ok {
		return
	}

	board, err := h.rankingService.GetLeaderboard(c.Request.Context(), scope)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteLeaderboard(&buf, board); err != nil {
		h.LogError(c, err, "Failed to render leaderboard workbook", "scope", scope.String())
		h.respondError(c, http.StatusInternalServerError, CodeInternal, "Failed to export leaderboard", nil)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(board)+`"`)
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}

// StreamLeaderboard pushes the board of a scope over a WebSocket: the
// current board on connect, then every recomputed one.
// WS /ws/v1/leaderboards/:scope
func (h *LeaderboardHandler) StreamLeaderboard(c *gin.Context) {
	scope, ok := h.parseScope(c)
	if !ok {
		return
	}
	logger := utils.GetLogger(c, h.logger).With("scope", scope.String())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.rankingService.Subscribe(scope)
	defer cancel()

	ctx := c.Request.Context()
	current, err := h.rankingService.GetLeaderboard(ctx, scope)
	if err != nil {
		logger.Error("Failed to load leaderboard for stream", "error", err)
		writeFrame(conn, StreamMessage{Event: StreamEventError, Error: "failed to load leaderboard"})
		return
	}
	if err := writeFrame(conn, StreamMessage{Event: StreamEventLeaderboard, Data: current}); err != nil {
		return
	}
	logger.Info("Leaderboard stream opened")

	// the read side only services control frames and notices the close
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("Unexpected close", "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	lastGen := current.Generation
	for {
		select {
		case <-closed:
			logger.Info("Leaderboard stream closed")
			return
		case <-ctx.Done():
			return
		case board, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			if board.Generation <= lastGen {
				continue
			}
			lastGen = board.Generation
			if err := writeFrame(conn, StreamMessage{Event: StreamEventLeaderboard, Data: board}); err != nil {
				logger.Debug("Stream write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
