package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/middleware"
	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/response"
	"github.com/bitlabs/talentstream-proctor/internal/service"
	"github.com/bitlabs/talentstream-proctor/internal/validator"
	ws "github.com/bitlabs/talentstream-proctor/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const outboxSize = 16

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams an attempt to the browser: actions and signals in,
// snapshots (including the 1 Hz countdown) out.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
	pingPeriod     time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		pingPeriod:     ws.PingPeriod,
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream?token=...
// Closing the stream of an unfinished attempt abandons it, the same as a
// page reload.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Subscribing before the upgrade lets unknown attempts fail with a
	// normal HTTP status.
	updates, unsubscribe, err := h.attemptService.Subscribe(claims.ApplicantID, attemptID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("applicant_id", claims.ApplicantID).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Learner connected")

	ctx, cancel := context.WithCancel(context.Background())
	outbox := make(chan any, outboxSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, updates, outbox, wsLog)
		// Unblocks the reader when the writer stops first.
		_ = conn.Close()
	}()

	ws.KeepAlive(conn)
	h.readLoop(ctx, conn, claims.ApplicantID, attemptID, outbox, wsLog)

	cancel()
	<-writerDone

	h.release(claims.ApplicantID, attemptID, wsLog)
}

// writeLoop is the only writer of conn.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, updates <-chan model.Snapshot, outbox <-chan any, log zerolog.Logger) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "attempt closed"),
					time.Now().Add(time.Second))
				return
			}
			if err := ws.WriteTyped(conn, ws.SnapshotEvent{Event: ws.EventSnapshot, Snapshot: snap}); err != nil {
				log.Debug().Err(err).Msg("Snapshot write failed")
				return
			}

		case msg := <-outbox:
			if err := ws.WriteTyped(conn, msg); err != nil {
				log.Debug().Err(err).Msg("Reply write failed")
				return
			}

		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, applicantID int, attemptID uuid.UUID, outbox chan<- any, log zerolog.Logger) {
	send := func(v any) {
		select {
		case outbox <- v:
		case <-ctx.Done():
		}
	}

	for {
		var req ws.Request
		if err := ws.ReadJSON(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			} else {
				log.Debug().Msg("Connection closed")
			}
			return
		}

		if req.Type == ws.ActionPing {
			send(ws.PongResponse{Event: ws.EventPong})
			continue
		}

		if fields := validator.Struct(&req.Action); fields != nil {
			send(ws.ErrorResponse{
				Event:  ws.EventError,
				Ref:    req.Ref,
				Code:   string(response.ErrValidation),
				Error:  response.GetMessage(response.ErrValidation),
				Fields: fields,
			})
			continue
		}

		// The snapshot itself reaches the client through the subscription.
		if _, err := h.attemptService.Act(ctx, applicantID, attemptID, req.Action); err != nil {
			status, code := classify(err)
			if status >= http.StatusInternalServerError {
				log.Error().Err(err).Str("action", string(req.Type)).Msg("Action failed")
			}
			send(ws.ErrorResponse{
				Event: ws.EventError,
				Ref:   req.Ref,
				Code:  string(code),
				Error: response.GetMessage(code),
			})
			continue
		}
		send(ws.AckResponse{Event: ws.EventAck, Ref: req.Ref})
	}
}

// release abandons the attempt if the learner left before it finished.
func (h *WSHandler) release(applicantID int, attemptID uuid.UUID, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := h.attemptService.Snapshot(ctx, applicantID, attemptID)
	if err != nil {
		log.Info().Msg("Learner disconnected")
		return
	}
	if snap.Page.Terminal() {
		log.Info().Str("page", string(snap.Page)).Msg("Learner disconnected after finishing")
		return
	}
	_ = h.attemptService.Abandon(ctx, applicantID, attemptID)
}
