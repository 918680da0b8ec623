package handler

import (
	"mobile-money-gateway/internal/adapter/http/dto"
	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// HistoryHandler handles balance, history and statistics endpoints.
type HistoryHandler struct {
	historySvc ports.HistoryService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(historySvc ports.HistoryService) *HistoryHandler {
	return &HistoryHandler{historySvc: historySvc}
}

// Balance handles GET /api/v1/account/balance.
func (h *HistoryHandler) Balance(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	balance, err := h.historySvc.GetBalance(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{Balance: balance.StringFixed(domain.AmountScale)})
}

// ListTransactions handles GET /api/v1/transactions.
func (h *HistoryHandler) ListTransactions(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var q dto.TransactionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.TransactionListParams{
		AccountID: id,
		Page:      q.Page,
		PageSize:  q.PageSize,
		From:      parseDate(q.From),
		To:        endOfDay(parseDate(q.To)),
	}
	if q.Status != "" {
		status := domain.TransactionStatus(q.Status)
		params.Status = &status
	}
	if q.Type != "" {
		txType := domain.TransactionType(q.Type)
		params.Type = &txType
	}
	if q.MinAmount != "" {
		v := decimal.RequireFromString(q.MinAmount)
		params.MinAmount = &v
	}
	if q.MaxAmount != "" {
		v := decimal.RequireFromString(q.MaxAmount)
		params.MaxAmount = &v
	}

	txns, total, err := h.historySvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, size := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	entries := make([]dto.HistoryEntry, 0, len(txns))
	for _, t := range txns {
		entries = append(entries, dto.HistoryEntry{Transaction: t, Direction: t.DirectionFor(id)})
	}
	response.Page(c, entries, total, page, size)
}

// Stats handles GET /api/v1/transactions/stats.
func (h *HistoryHandler) Stats(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var q dto.StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	stats, err := h.historySvc.GetStats(c.Request.Context(), id, parseDate(q.From), endOfDay(parseDate(q.To)))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
