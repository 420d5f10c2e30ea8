// Package http provides HTTP handlers for the subscription registry.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/eventbus/internal/httputil"
	"github.com/allisson/eventbus/internal/subscription/http/dto"
	subscriptionUsecase "github.com/allisson/eventbus/internal/subscription/usecase"
	customValidation "github.com/allisson/eventbus/internal/validation"
)

// SubscriptionHandler handles HTTP requests for webhook subscriptions.
type SubscriptionHandler struct {
	subscriptionUseCase subscriptionUsecase.SubscriptionUseCase
	logger              *slog.Logger
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(
	subscriptionUseCase subscriptionUsecase.SubscriptionUseCase,
	logger *slog.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionUseCase: subscriptionUseCase,
		logger:              logger,
	}
}

// SubscribeHandler registers or updates a webhook subscription.
// POST /api/subscriptions/subscribe
// Returns 201 Created with the stored subscription.
func (h *SubscriptionHandler) SubscribeHandler(c *gin.Context) {
	var req dto.SubscribeRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	sub, err := h.subscriptionUseCase.Subscribe(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapSubscriptionToResponse(sub))
}

// GetHandler returns a subscription with its delivery status.
// GET /api/subscriptions/:id
func (h *SubscriptionHandler) GetHandler(c *gin.Context) {
	id, err := httputil.ParseIDParam(c, "id")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	sub, err := h.subscriptionUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSubscriptionToResponse(sub))
}

// ListHandler returns subscriptions with pagination support.
// GET /api/subscriptions?offset=0&limit=50
func (h *SubscriptionHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	subs, err := h.subscriptionUseCase.List(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSubscriptionsToListResponse(subs))
}

// UnsubscribeHandler deactivates a subscription.
// DELETE /api/subscriptions/:id
// Returns 204 No Content.
func (h *SubscriptionHandler) UnsubscribeHandler(c *gin.Context) {
	id, err := httputil.ParseIDParam(c, "id")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := h.subscriptionUseCase.Unsubscribe(c.Request.Context(), id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
