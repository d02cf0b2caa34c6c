package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionAppend          AuditAction = "RECORD_APPEND"
	AuditActionAutoOnboard     AuditAction = "RECORD_AUTO_ONBOARD"
	AuditActionRetract         AuditAction = "RECORD_RETRACT"
	AuditActionCurrencyCreate  AuditAction = "CURRENCY_CREATE"
	AuditActionCurrencyReprice AuditAction = "CURRENCY_REPRICE"
	AuditActionCurrencyDelete  AuditAction = "CURRENCY_DELETE"
	AuditActionAccountCreate   AuditAction = "ACCOUNT_CREATE"
	AuditActionAccountDelete   AuditAction = "ACCOUNT_DELETE"
	AuditActionWriteRejected   AuditAction = "WRITE_REJECTED"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Actor        string      `json:"actor,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time   `json:"created_at"`
}
