package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnm3allim/marketplace/internal/config"
	"github.com/tnm3allim/marketplace/internal/domain/contact"
)

type ContactCreator interface {
	Create(ctx context.Context, req contact.CreateMessageRequest) (contact.Message, error)
}

type ContactHandler struct {
	messages ContactCreator
}

func NewContactHandler(messages ContactCreator) *ContactHandler {
	return &ContactHandler{messages: messages}
}

func (h *ContactHandler) Create(ctx *gin.Context) {
	var req contact.CreateMessageRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	msg, err := h.messages.Create(cctx, req)

	if err != nil {
		RespondInternal(ctx, "Could not send message", err)
		return
	}

	ctx.JSON(http.StatusCreated, msg)
}
