package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"mobile-money-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(requestID string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if requestID != "" {
		c.Set(CtxRequestID, requestID)
	}
	return c, w
}

func TestSuccessEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(c *gin.Context)
		status int
	}{
		{"ok", func(c *gin.Context) { OK(c, gin.H{"balance": "5.00"}) }, http.StatusOK},
		{"created", func(c *gin.Context) { Created(c, gin.H{"balance": "5.00"}) }, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext("req-1")
			tt.write(c)

			assert.Equal(t, tt.status, w.Code)
			var resp SuccessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "req-1", resp.RequestID)
			assert.NotEmpty(t, resp.Timestamp)
			assert.Nil(t, resp.Meta)
			assert.Equal(t, "5.00", resp.Data.(map[string]interface{})["balance"])
		})
	}
}

func TestPage(t *testing.T) {
	tests := []struct {
		total      int64
		pageSize   int
		totalPages int
	}{
		{31, 15, 3},
		{30, 15, 2},
		{0, 15, 0},
		{1, 1, 1},
		{10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.pageSize), func(t *testing.T) {
			c, w := newContext("")
			Page(c, []string{}, tt.total, 2, tt.pageSize)

			var resp SuccessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Meta)
			assert.Equal(t, tt.total, resp.Meta.Total)
			assert.Equal(t, 2, resp.Meta.Page)
			assert.Equal(t, tt.totalPages, resp.Meta.TotalPages)
		})
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"app error", apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, "PAY_001", "Insufficient balance"},
		{"wrapped app error", fmt.Errorf("login: %w", apperror.ErrAccountLocked()), http.StatusTooManyRequests, "AUTH_005", ""},
		{"internal cause hidden", apperror.InternalError(fmt.Errorf("relation accounts does not exist")), http.StatusInternalServerError, "SYS_001", "Internal server error"},
		{"plain error", fmt.Errorf("something unexpected"), http.StatusInternalServerError, "SYS_001", "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext("req-9")
			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "relation accounts")
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.ErrorCode)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Message)
			}
			assert.Equal(t, "req-9", resp.RequestID)

			require.Len(t, c.Errors, 1, "cause kept for the request log")
			assert.ErrorIs(t, c.Errors[0].Err, tt.err)
		})
	}
}

func TestRequestID_AssignedOnce(t *testing.T) {
	c, w := newContext("")
	OK(c, nil)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, RequestID(c))
}
