package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/ashureev/shsh-autopilot/internal/bot"
	"github.com/ashureev/shsh-autopilot/internal/identity"
)

// TransportWeb names events that arrive over the browser chat.
const TransportWeb = "web"

// ErrNoActiveSession is returned when a reply targets a tab that has gone.
var ErrNoActiveSession = errors.New("no active chat session")

// Frame is the JSON envelope exchanged over the chat socket.
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Frame types.
const (
	FrameMessage = "message"
	FramePing    = "ping"
	FramePong    = "pong"
	FrameError   = "error"
)

// WebSocketHandler serves the browser chat at /ws/chat.
type WebSocketHandler struct {
	handler       Handler
	sm            *SessionManager
	baseCtx       context.Context
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a chat socket handler. Events are processed
// under baseCtx so a run survives a page reload and its report reaches the
// tab's new socket.
func NewWebSocketHandler(baseCtx context.Context, handler Handler, sm *SessionManager, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		handler:       handler,
		sm:            sm,
		baseCtx:       baseCtx,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// sessionSink writes to whichever socket currently serves a user's tab.
type sessionSink struct {
	sm        *SessionManager
	userID    string
	sessionID string
}

func (s sessionSink) Send(ctx context.Context, text string) error {
	conn := s.sm.GetActive(s.userID, s.sessionID)
	if conn == nil {
		return fmt.Errorf("%w: user %s session %s", ErrNoActiveSession, s.userID, s.sessionID)
	}
	return writeJSON(ctx, conn, Frame{Type: FrameMessage, Content: text})
}

func (s sessionSink) MaxMessageLength() int { return 0 }

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	username := identity.UsernameFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if userID == "" {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sm.Register(userID, sessionID, ws)
	defer h.sm.Unregister(userID, sessionID, ws)

	sink := sessionSink{sm: h.sm, userID: userID, sessionID: sessionID}
	h.inputLoop(r.Context(), ws, sink, userID, username)
	slog.Info("Chat session ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, sink sessionSink, userID, username string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			// Plain text frames are treated as chat messages.
			frame = Frame{Type: FrameMessage, Content: string(message)}
		}

		switch frame.Type {
		case FrameMessage:
			h.handler.HandleIncoming(h.baseCtx, bot.Event{
				Transport: TransportWeb,
				UserID:    userID,
				Username:  username,
				Text:      frame.Content,
				Direct:    true,
				Reply:     sink,
				DM:        sink,
			})
		case FramePing:
			if err := writeJSON(ctx, ws, Frame{Type: FramePong}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		default:
			if err := writeJSON(ctx, ws, Frame{Type: FrameError, Content: "unknown frame type"}); err != nil {
				slog.Debug("Failed to send error frame", "error", err)
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
