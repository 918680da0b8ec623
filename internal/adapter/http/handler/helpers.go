package handler

import (
	"encoding/json"
	"time"

	"mobile-money-gateway/internal/adapter/http/dto"
	"mobile-money-gateway/internal/adapter/http/middleware"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HeaderIdempotencyKey lets clients retry a transfer safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// bindJSON decodes and validates the body, answering 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

// accountID returns the authenticated account, answering 401 when absent.
func accountID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
	}
	return id, ok
}

// pathID parses the :id route parameter, answering 404 for malformed ids.
func pathID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound(entity))
		return uuid.Nil, false
	}
	return id, true
}

func parseAmount(n json.Number) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, apperror.ErrInvalidAmount()
	}
	return d, nil
}

// parseDate returns nil for an empty string. Validation already checked the
// layout.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(dto.DateLayout, s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

// endOfDay turns an inclusive calendar date into the last instant of that day.
func endOfDay(day *time.Time) *time.Time {
	if day == nil {
		return nil
	}
	end := day.Add(24*time.Hour - time.Nanosecond)
	return &end
}
