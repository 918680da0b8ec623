package handler

import (
	"mobile-money-gateway/internal/adapter/http/dto"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransferHandler handles the balance-moving endpoints.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Transfer handles POST /api/v1/transfers.
func (h *TransferHandler) Transfer(c *gin.Context) {
	sender, ok := accountID(c)
	if !ok {
		return
	}
	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.transferSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		SenderID:       sender,
		RecipientPhone: req.RecipientPhone,
		Amount:         amount,
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// MultipleTransfer handles POST /api/v1/transfers/multiple. A batch where
// every leg failed still answers 200 with status "failed".
func (h *TransferHandler) MultipleTransfer(c *gin.Context) {
	sender, ok := accountID(c)
	if !ok {
		return
	}
	var req dto.MultipleTransferRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.transferSvc.MultipleTransfer(c.Request.Context(), ports.MultipleTransferRequest{
		SenderID:        sender,
		RecipientPhones: req.RecipientPhones,
		Amount:          amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Cancel handles POST /api/v1/transfers/:id/cancel.
func (h *TransferHandler) Cancel(c *gin.Context) {
	actor, ok := accountID(c)
	if !ok {
		return
	}
	txID, ok := pathID(c, "Transaction")
	if !ok {
		return
	}
	var req dto.CancelTransferRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.transferSvc.CancelTransfer(c.Request.Context(), ports.CancelRequest{
		AccountID:     actor,
		TransactionID: txID,
		Reason:        req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, txn)
}

// PayMerchant handles POST /api/v1/merchant/pay.
func (h *TransferHandler) PayMerchant(c *gin.Context) {
	sender, ok := accountID(c)
	if !ok {
		return
	}
	var req dto.MerchantPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		response.Error(c, apperror.ErrNotAMerchant())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.transferSvc.PayMerchant(c.Request.Context(), ports.MerchantPaymentRequest{
		SenderID:       sender,
		MerchantID:     merchantID,
		Amount:         amount,
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
