package handler

import (
	"net/http"
	"time"

	"chat-requests/internal/services"
	"chat-requests/internal/transport/httpdto"
	"chat-requests/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	service *services.ChatService
	log     *logger.Logger
}

func NewChatHandler(service *services.ChatService, l *logger.Logger) *ChatHandler {
	return &ChatHandler{service: service, log: l}
}

func (h *ChatHandler) List(c *gin.Context) {
	current, ok := services.UserFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	views, err := h.service.List(c.Request.Context(), current)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	chats := make([]httpdto.ChatDTO, 0, len(views))
	for _, v := range views {
		chats = append(chats, httpdto.ChatDTO{
			ID:               v.Chat.ID,
			SenderID:         v.Chat.SenderID,
			RecipientID:      v.Chat.RecipientID,
			CounterpartEmail: v.CounterpartEmail,
			CreatedAt:        v.Chat.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ChatListResponse{Chats: chats}))
}
