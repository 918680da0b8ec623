// Package response writes the JSON envelopes shared by every endpoint.
package response

import (
	"errors"
	"net/http"
	"time"

	"mobile-money-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxRequestID is the gin context key holding the request correlation ID.
const CtxRequestID = "request_id"

type SuccessResponse struct {
	Data      interface{} `json:"data"`
	Meta      *PageMeta   `json:"meta,omitempty"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// PageMeta describes one page of a paginated listing.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data, nil)
}

func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data, nil)
}

// Page answers 200 with one page of items. total_pages is 0 when pageSize is.
func Page(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	meta := &PageMeta{Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		meta.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	success(c, http.StatusOK, items, meta)
}

// Error answers with the AppError carried by err, or SYS_001 for anything
// else. The full error is attached to the gin context for the request log;
// only the code and public message reach the client.
func Error(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}

	appErr := apperror.InternalError(nil)
	errors.As(err, &appErr)

	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		RequestID: RequestID(c),
		Timestamp: timestamp(),
	})
}

// RequestID returns the request's correlation ID, assigning one if the
// RequestID middleware did not run.
func RequestID(c *gin.Context) string {
	if id := c.GetString(CtxRequestID); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Set(CtxRequestID, id)
	return id
}

func success(c *gin.Context, status int, data interface{}, meta *PageMeta) {
	c.JSON(status, SuccessResponse{
		Data:      data,
		Meta:      meta,
		RequestID: RequestID(c),
		Timestamp: timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
