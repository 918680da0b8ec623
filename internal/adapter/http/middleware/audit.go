package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditRoutes maps "METHOD route-pattern" to the recorded action.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/auth/register":             {domain.AuditActionRegister, "account"},
	"POST /api/v1/auth/login":                {domain.AuditActionLogin, "session"},
	"POST /api/v1/auth/verify-code":          {domain.AuditActionVerifyCode, "session"},
	"POST /api/v1/auth/secret-code":          {domain.AuditActionSetSecretCode, "account"},
	"PUT /api/v1/auth/secret-code":           {domain.AuditActionUpdateSecretCode, "account"},
	"POST /api/v1/auth/logout":               {domain.AuditActionLogout, "session"},
	"POST /api/v1/transfers":                 {domain.AuditActionTransfer, "transaction"},
	"POST /api/v1/transfers/multiple":        {domain.AuditActionMultiTransfer, "transaction"},
	"POST /api/v1/transfers/:id/cancel":      {domain.AuditActionCancelTransfer, "transaction"},
	"POST /api/v1/merchant/pay":              {domain.AuditActionMerchantPayment, "transaction"},
	"POST /api/v1/scheduled-transfers":       {domain.AuditActionSchedule, "scheduled_transfer"},
	"DELETE /api/v1/scheduled-transfers/:id": {domain.AuditActionCancelSchedule, "scheduled_transfer"},
	"POST /api/v1/contacts":                  {domain.AuditActionAddContact, "contact"},
	"POST /api/v1/contacts/:id/favorite":     {domain.AuditActionToggleFavorite, "contact"},
}

// AuditLog records successful write operations after the handler ran.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var accountID *uuid.UUID
		if id, ok := AccountID(c); ok {
			accountID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(response.CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			AccountID:    accountID,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
