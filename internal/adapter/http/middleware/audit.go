package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"coin-tip-ledger/internal/core/domain"
	"coin-tip-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// Actions are mapped from the matched route template, not the raw path.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath())
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"coin":       c.Param("coin"),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(&domain.AuditLog{
			ID:           uuid.New(),
			ClientID:     c.GetString(CtxClientID),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID(c),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(route string) (domain.AuditAction, string) {
	switch route {
	case "/api/v1/coins/:coin/tips":
		return domain.AuditActionTip, "ledger"
	case "/api/v1/coins/:coin/withdrawals":
		return domain.AuditActionWithdraw, "withdrawal"
	case "/api/v1/coins/:coin/users/:user/addresses":
		return domain.AuditActionNewAddress, "ledger"
	case "/api/v1/withdrawals/:id/replay":
		return domain.AuditActionReplayWithdrawal, "withdrawal"
	case "/api/v1/withdrawals/:id/fail":
		return domain.AuditActionFailWithdrawal, "withdrawal"
	}
	return "", ""
}

func resourceID(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Param("user")
}
