// Package http provides HTTP handlers for appending events and operating the outbox.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/allisson/eventbus/internal/httputil"
	"github.com/allisson/eventbus/internal/outbox/http/dto"
	outboxUsecase "github.com/allisson/eventbus/internal/outbox/usecase"
	customValidation "github.com/allisson/eventbus/internal/validation"
)

// OutboxHandler handles HTTP requests for the transactional outbox.
type OutboxHandler struct {
	outboxUseCase outboxUsecase.OutboxUseCase
	logger        *slog.Logger
}

// NewOutboxHandler creates a new outbox handler.
func NewOutboxHandler(outboxUseCase outboxUsecase.OutboxUseCase, logger *slog.Logger) *OutboxHandler {
	return &OutboxHandler{
		outboxUseCase: outboxUseCase,
		logger:        logger,
	}
}

// AppendEventHandler appends an event to the outbox.
// POST /api/events
// Returns 201 Created. The correlation id defaults to the request id.
func (h *OutboxHandler) AppendEventHandler(c *gin.Context) {
	var req dto.AppendEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	event, err := h.outboxUseCase.AppendEvent(c.Request.Context(), req.ToInput(requestid.Get(c)))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapOutboxEventToAppendResponse(event))
}

// ListDeadLetterHandler lists events that exhausted their publish attempts.
// GET /api/events/dead-letter?offset=0&limit=50
func (h *OutboxHandler) ListDeadLetterHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	events, err := h.outboxUseCase.ListDeadLettered(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOutboxEventsToListResponse(events))
}

// RequeueHandler resets the publish attempts of an unpublished event.
// POST /api/events/:id/requeue
func (h *OutboxHandler) RequeueHandler(c *gin.Context) {
	id, err := httputil.ParseIDParam(c, "id")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := h.outboxUseCase.Requeue(c.Request.Context(), id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.RequeueEventResponse{Success: true, EventID: id.String()})
}
