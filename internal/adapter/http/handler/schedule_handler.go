package handler

import (
	"mobile-money-gateway/internal/adapter/http/dto"
	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// ScheduleHandler handles recurring transfer endpoints.
type ScheduleHandler struct {
	scheduleSvc ports.ScheduledTransferService
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(scheduleSvc ports.ScheduledTransferService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// Create handles POST /api/v1/scheduled-transfers.
func (h *ScheduleHandler) Create(c *gin.Context) {
	sender, ok := accountID(c)
	if !ok {
		return
	}
	var req dto.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	def, err := h.scheduleSvc.Schedule(c.Request.Context(), ports.ScheduleRequest{
		SenderID:       sender,
		RecipientPhone: req.RecipientPhone,
		Amount:         amount,
		Frequency:      domain.Frequency(req.Frequency),
		StartDate:      *parseDate(req.StartDate),
		EndDate:        parseDate(req.EndDate),
		ExecutionTime:  req.ExecutionTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, def)
}

// List handles GET /api/v1/scheduled-transfers.
func (h *ScheduleHandler) List(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	defs, err := h.scheduleSvc.List(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, defs)
}

// Cancel handles DELETE /api/v1/scheduled-transfers/:id.
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	actor, ok := accountID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Scheduled transfer")
	if !ok {
		return
	}
	def, err := h.scheduleSvc.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, def)
}
