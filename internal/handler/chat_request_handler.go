package handler

import (
	"net/http"
	"time"

	"chat-requests/internal/domain/chatrequest"
	"chat-requests/internal/domain/user"
	"chat-requests/internal/services"
	"chat-requests/internal/transport/httpdto"
	"chat-requests/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChatRequestHandler struct {
	service *services.ChatRequestService
	log     *logger.Logger
}

func NewChatRequestHandler(service *services.ChatRequestService, l *logger.Logger) *ChatRequestHandler {
	return &ChatRequestHandler{service: service, log: l}
}

func (h *ChatRequestHandler) List(c *gin.Context) {
	current, ok := services.UserFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	list, err := h.service.List(c.Request.Context(), current)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	res := httpdto.ChatRequestListResponse{
		Sent:     make([]httpdto.ChatRequestDTO, 0, len(list.Sent)),
		Received: make([]httpdto.ChatRequestDTO, 0, len(list.Received)),
	}
	for _, v := range list.Sent {
		res.Sent = append(res.Sent, toChatRequestDTO(v.Request, v.SenderEmail))
	}
	for _, v := range list.Received {
		res.Received = append(res.Received, toChatRequestDTO(v.Request, v.SenderEmail))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

func (h *ChatRequestHandler) Create(c *gin.Context) {
	current, ok := services.UserFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.CreateChatRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if missingField(err) {
			c.JSON(http.StatusUnprocessableEntity, httpdto.NewErrorResponse("recipient_email: cannot be blank", "VALIDATION_FAILED"))
			return
		}
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request body", "INVALID_REQUEST"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), current, req.RecipientEmail)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toChatRequestDTO(created, current.Email)))
}

func (h *ChatRequestHandler) Accept(c *gin.Context) {
	current, id, ok := h.target(c)
	if !ok {
		return
	}

	created, err := h.service.Accept(c.Request.Context(), current, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.AcceptChatRequestResponse{
		Message: "Request accepted and chat created successfully",
		Chat: httpdto.ChatDTO{
			ID:          created.ID,
			SenderID:    created.SenderID,
			RecipientID: created.RecipientID,
			CreatedAt:   created.CreatedAt.Format(time.RFC3339),
		},
	}))
}

func (h *ChatRequestHandler) Reject(c *gin.Context) {
	current, id, ok := h.target(c)
	if !ok {
		return
	}

	if err := h.service.Reject(c.Request.Context(), current, id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MessageResponse{Message: "Request rejected"}))
}

func (h *ChatRequestHandler) Block(c *gin.Context) {
	current, id, ok := h.target(c)
	if !ok {
		return
	}

	if err := h.service.Block(c.Request.Context(), current, id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MessageResponse{Message: "Request blocked"}))
}

func (h *ChatRequestHandler) Delete(c *gin.Context) {
	current, id, ok := h.target(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), current, id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MessageResponse{Message: "Chat request deleted"}))
}

// target resolves the caller and the :id path parameter. An id that does
// not parse cannot name a request, so it is reported as not found.
func (h *ChatRequestHandler) target(c *gin.Context) (current user.User, id uuid.UUID, ok bool) {
	current, ok = services.UserFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return current, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, h.log, services.ErrChatRequestNotFound)
		return current, uuid.Nil, false
	}
	return current, id, true
}

func toChatRequestDTO(r chatrequest.ChatRequest, senderEmail string) httpdto.ChatRequestDTO {
	return httpdto.ChatRequestDTO{
		ID:             r.UUID,
		SenderID:       r.SenderID,
		SenderEmail:    senderEmail,
		RecipientEmail: r.RecipientEmail,
		Status:         r.Status.String(),
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
	}
}
