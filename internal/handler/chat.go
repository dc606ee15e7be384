package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/subdivision/pot-server/internal/apperror"
	"github.com/subdivision/pot-server/internal/auth"
	"github.com/subdivision/pot-server/internal/chat"
	"github.com/subdivision/pot-server/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The token cookie does the real gatekeeping; origin is not checked so
	// local frontends on other ports can connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatHandler serves a pot's chat: the REST history endpoint and the
// websocket room itself.
type ChatHandler struct {
	chats  *service.ChatService
	auths  *service.AuthService
	hub    *chat.Hub
	logger *slog.Logger
}

func NewChatHandler(chats *service.ChatService, auths *service.AuthService, hub *chat.Hub, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, auths: auths, hub: hub, logger: logger}
}

// HandleHistory returns a pot's messages oldest-first. Member-only.
//
// HTTP: GET /api/pots/{id}/chat/history (RequireAuth)
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	msgs, err := h.chats.History(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// inboundMessage is what a connected client sends over the socket.
type inboundMessage struct {
	Message string `json:"message"`
}

// HandleWebSocket attaches a member to the pot's chat room. Each inbound
// frame is persisted and then fanned out to the room as a TALK event.
// Non-members are rejected before the upgrade.
//
// HTTP: GET /ws/pots/{id} (RequireAuth)
func (h *ChatHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	potID := r.PathValue("id")

	member, err := h.chats.CanAccess(r.Context(), potID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !member {
		writeError(w, apperror.NotAMember(potID, userID))
		return
	}

	// Resolve the nickname once; it is stamped on every outgoing event.
	user, err := h.auths.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", "potId", potID, "error", err)
		return
	}
	conn := h.hub.Register(potID, ws)
	defer func() {
		h.hub.Unregister(potID, conn)
		ws.Close()
	}()

	h.logger.Info("Chat client connected", "potId", potID, "userId", userID)

	for {
		var in inboundMessage
		if err := ws.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Chat read error", "potId", potID, "userId", userID, "error", err)
			}
			return
		}

		msg, err := h.chats.SaveMessage(r.Context(), potID, userID, in.Message)
		if err != nil {
			// Blank frames are dropped quietly; losing membership mid-session
			// ends the connection.
			if errors.Is(err, apperror.ErrValidation) {
				continue
			}
			h.logger.Warn("Rejecting chat message", "potId", potID, "userId", userID, "error", err)
			return
		}

		h.hub.Broadcast(potID, chat.Event{
			Type:           chat.EventTalk,
			PotID:          potID,
			SenderID:       userID,
			SenderNickname: user.Nickname,
			Message:        msg.Message,
			SentAt:         msg.SentAt,
		})
	}
}
