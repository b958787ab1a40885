package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/service/messages"
	"github.com/vovakirdan/wirechat-dm/internal/service/readstate"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// MessageHandlers provides HTTP handlers for the direct-message API.
type MessageHandlers struct {
	hub      core.Hub
	relay    *core.Relay
	messages *messages.Service
	tracker  *readstate.Tracker
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(hub core.Hub, relay *core.Relay, msgs *messages.Service, tracker *readstate.Tracker, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		hub:      hub,
		relay:    relay,
		messages: msgs,
		tracker:  tracker,
		log:      logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// MarkReadRequest represents the mark-read request body. RecipientID is the
// reader; SenderID is whose messages were read.
type MarkReadRequest struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
}

// MarkReadResponse acknowledges a mark-read request.
type MarkReadResponse struct {
	Success bool  `json:"success"`
	Updated int64 `json:"updated"`
}

// UnreadCountResponse is one entry of the unread summary.
type UnreadCountResponse struct {
	SenderID string `json:"senderId"`
	Count    int    `json:"count"`
}

// PresenceResponse reports whether a user has a live connection.
type PresenceResponse struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// GetConversation returns both directions of a conversation in creation order.
// GET /conversation/:recipientId?currentUserId=...&markRead=true
func (h *MessageHandlers) GetConversation(c *gin.Context) {
	peerID := c.Param("recipientId")
	userID := c.Query("currentUserId")

	markRead := true
	if raw, ok := c.GetQuery("markRead"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "markRead must be a boolean"})
			return
		}
		markRead = v
	}

	msgs, err := h.messages.Conversation(c.Request.Context(), userID, peerID, markRead)
	if err != nil {
		h.writeError(c, err, "failed to get conversation")
		return
	}

	c.JSON(http.StatusOK, toProtoMessages(msgs))
}

// SendMessage stores a message and relays it to whoever is online.
// POST /message
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	d, err := h.relay.Send(c.Request.Context(), core.Outgoing{
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
	})
	if err != nil {
		h.writeError(c, err, "failed to send message")
		return
	}

	h.log.Debug().
		Str("message_id", d.Message.ID).
		Str("user_id", d.Message.SenderID).
		Str("recipient_id", d.Message.RecipientID).
		Bool("delivered", d.Delivered).
		Msg("message sent over api")
	c.JSON(http.StatusCreated, toProtoMessage(d.Message))
}

// GetUnread lists unread counts per sender for a recipient.
// GET /unread/:userId
func (h *MessageHandlers) GetUnread(c *gin.Context) {
	counts, err := h.tracker.UnreadCounts(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err, "failed to get unread counts")
		return
	}

	resp := make([]UnreadCountResponse, 0, len(counts))
	for _, uc := range counts {
		resp = append(resp, UnreadCountResponse{SenderID: uc.SenderID, Count: uc.Count})
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRead marks every message from senderId to recipientId as read.
// POST /mark-read
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid mark-read request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	n, err := h.relay.MarkAsRead(c.Request.Context(), req.RecipientID, req.SenderID)
	if err != nil {
		h.writeError(c, err, "failed to mark messages read")
		return
	}

	c.JSON(http.StatusOK, MarkReadResponse{Success: true, Updated: n})
}

// GetPresence reports whether a user is online.
// GET /presence/:userId
func (h *MessageHandlers) GetPresence(c *gin.Context) {
	userID := c.Param("userId")
	if err := messages.ValidateUserID("userId", userID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, PresenceResponse{
		UserID: userID,
		Online: h.hub.IsOnline(c.Request.Context(), userID),
	})
}

func (h *MessageHandlers) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, messages.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrUnavailable):
		h.log.Warn().Err(err).Msg(msg)
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "message store unavailable, retry later"})
	default:
		h.log.Error().Err(err).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
