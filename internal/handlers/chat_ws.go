package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/metrics"
	"github.com/AnshRaj112/providerhub-backend/internal/middleware"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
	"github.com/AnshRaj112/providerhub-backend/internal/services"
)

const (
	wsReadLimit    = 16 * 1024
	wsPongWait     = 90 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
	wsOutboxSize   = 32
)

// chatClientFrame is what browsers may send over the socket.
type chatClientFrame struct {
	Type           string    `json:"type"` // "message", "read", "ping"
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content,omitempty"`
}

type chatServerFrame struct {
	Type           string     `json:"type"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Message        any        `json:"message,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	Error          string     `json:"error,omitempty"`
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.AllowedOrigins) == 0 {
				return true
			}
			for _, o := range h.AllowedOrigins {
				if strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ChatWebSocket streams the caller's chat events. Browsers cannot set headers on a
// WebSocket handshake, so the token may also come from ?token=.
func (h *Handler) ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		apperrors.Write(w, apperrors.Unauthorized("authentication required"))
		return
	}
	id, err := h.Tokens.Verify(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	defer conn.Close()

	metrics.WebSocketOpened()
	defer metrics.WebSocketClosed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe := h.Realtime.Subscribe(ctx, id.UserID)
	defer unsubscribe()

	log := h.Log.WithField("user_id", id.UserID)
	log.Debug("Chat socket connected")

	outbox := make(chan any, wsOutboxSize)
	writerDone := make(chan struct{})
	go h.writeLoop(ctx, conn, events, outbox, writerDone)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("Chat socket closed unexpectedly")
			}
			break
		}

		var frame chatClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.reply(outbox, chatServerFrame{Type: "error", Error: "invalid frame"})
			continue
		}
		h.reply(outbox, h.handleFrame(ctx, id, frame, log))
	}

	cancel()
	<-writerDone
}

func (h *Handler) handleFrame(ctx context.Context, id models.Identity, frame chatClientFrame, log *logrus.Entry) chatServerFrame {
	convID := frame.ConversationID
	switch frame.Type {
	case "message":
		if h.MessageLimiter != nil && !h.MessageLimiter.Allow(id.UserID.String()) {
			metrics.RecordRateLimited("chat_messages")
			return errorFrame(convID, middleware.ErrTooManyMessages, log)
		}
		msg, err := h.Chats.Send(ctx, convID, id.UserID, frame.Content)
		if err != nil {
			return errorFrame(convID, err, log)
		}
		return chatServerFrame{Type: "message.ack", ConversationID: &convID, Message: msg}
	case "read":
		readAt, err := h.Chats.MarkRead(ctx, convID, id.UserID)
		if err != nil {
			return errorFrame(convID, err, log)
		}
		return chatServerFrame{Type: "read.ack", ConversationID: &convID, ReadAt: &readAt}
	case "ping":
		return chatServerFrame{Type: "pong"}
	}
	return chatServerFrame{Type: "error", Error: "unknown frame type"}
}

func errorFrame(convID uuid.UUID, err error, log *logrus.Entry) chatServerFrame {
	msg := "internal server error"
	if appErr, ok := apperrors.As(err); ok {
		msg = appErr.Message
	} else {
		log.WithError(err).Error("Chat socket operation failed")
	}
	return chatServerFrame{Type: "error", ConversationID: &convID, Error: msg}
}

// reply drops the frame when the client is not reading fast enough.
func (h *Handler) reply(outbox chan<- any, frame chatServerFrame) {
	select {
	case outbox <- frame:
	default:
	}
}

// writeLoop owns all writes to conn. It exits when ctx ends, the event stream
// closes or a write fails, and closes the socket so the read loop returns too.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan services.ChatEvent, outbox <-chan any, done chan<- struct{}) {
	defer close(done)
	defer conn.Close()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				return
			}
		case frame := <-outbox:
			if err := write(frame); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
