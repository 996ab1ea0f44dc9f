package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"nyraAPI/internal/chat"
	"nyraAPI/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10

	exchangeTimeout = 2 * time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type chatService interface {
	History(ctx context.Context, clerkID string, limit int) ([]chat.Turn, error)
	Send(ctx context.Context, clerkID, message string, onFragment func(string) error) (*chat.Exchange, error)
}

type ChatHandler struct {
	chat   chatService
	logger *zap.Logger
}

func NewChatHandler(chat chatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger.Named("chat_handler")}
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	turns, err := h.chat.History(ctx, clerkID, limit)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"messages": turns})
}

// SendMessage streams the reply as server-sent events: one "fragment" event
// per piece of text, then a single "done" event carrying the exchange. Errors
// that happen before the first fragment get a normal JSON error response.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req chat.SendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stream := newSSEWriter(w)
	exchange, err := h.chat.Send(ctx, clerkID, req.Message, func(fragment string) error {
		return stream.send(chat.StreamEvent{Type: "fragment", Content: fragment})
	})
	if err != nil {
		if !stream.started {
			respondWithServiceError(w, h.logger, err)
			return
		}
		_, msg := statusFor(err)
		stream.send(chat.StreamEvent{Type: "error", Error: msg})
		return
	}

	stream.send(chat.StreamEvent{Type: "done", Exchange: exchange})
}

type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	rc := http.NewResponseController(w)
	// the server-wide write timeout is shorter than a streamed reply
	rc.SetWriteDeadline(time.Now().Add(exchangeTimeout + 5*time.Second))
	return &sseWriter{w: w, rc: rc}
}

func (s *sseWriter) send(ev chat.StreamEvent) error {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

// ServeWS upgrades to a WebSocket. Each text frame {"message": "..."} starts
// an exchange whose fragments come back as StreamEvent frames. A frame that
// arrives while an exchange is running is answered with an error frame.
func (h *ChatHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("could not upgrade connection", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &chatConn{
		conn:     conn,
		send:     make(chan chat.StreamEvent, 64),
		requests: make(chan string, 1),
		ctx:      ctx,
		cancel:   cancel,
	}

	go c.writePump(h.logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for message := range c.requests {
			h.runExchange(c, clerkID, message)
		}
	}()

	c.readPump()
	cancel()
	close(c.requests)
	wg.Wait()
	close(c.send)
}

func (h *ChatHandler) runExchange(c *chatConn, clerkID, message string) {
	ctx, cancel := context.WithTimeout(c.ctx, exchangeTimeout)
	defer cancel()

	exchange, err := h.chat.Send(ctx, clerkID, message, func(fragment string) error {
		if !c.push(chat.StreamEvent{Type: "fragment", Content: fragment}) {
			return context.Canceled
		}
		return nil
	})
	if err != nil {
		code, msg := statusFor(err)
		if code >= http.StatusInternalServerError {
			h.logger.Error("websocket exchange failed", zap.Error(err))
		}
		c.push(chat.StreamEvent{Type: "error", Error: msg})
		return
	}
	c.push(chat.StreamEvent{Type: "done", Exchange: exchange})
}

type chatConn struct {
	conn     *websocket.Conn
	send     chan chat.StreamEvent
	requests chan string
	ctx      context.Context
	cancel   context.CancelFunc
}

func (c *chatConn) push(ev chat.StreamEvent) bool {
	select {
	case c.send <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *chatConn) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var req chat.SendRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if badFrame(err) {
				c.push(chat.StreamEvent{Type: "error", Error: "Invalid message frame"})
				continue
			}
			return
		}

		select {
		case c.requests <- req.Message:
		default:
			c.push(chat.StreamEvent{Type: "error", Error: "another message is still being answered"})
		}
	}
}

// badFrame reports a frame that arrived intact but did not decode into a
// SendRequest. The connection itself is still usable.
func badFrame(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func (c *chatConn) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.cancel()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
