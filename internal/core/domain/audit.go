package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionTip              AuditAction = "TIP"
	AuditActionWithdraw         AuditAction = "WITHDRAW"
	AuditActionNewAddress       AuditAction = "NEW_ADDRESS"
	AuditActionReplayWithdrawal AuditAction = "REPLAY_WITHDRAWAL"
	AuditActionFailWithdrawal   AuditAction = "FAIL_WITHDRAWAL"
)

// AuditLog records a single audited API action.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ClientID     string      `json:"client_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
