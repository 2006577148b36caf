package model

import (
	"time"
)

const (
	// Action types
	AuditActionRead     = "read"
	AuditActionVerify   = "verify"
	AuditActionCreate   = "create"
	AuditActionDecide   = "decide"
	AuditActionUpdate   = "update"
	AuditActionLogin    = "login"
	AuditActionExternal = "external_call"

	// Entity types
	AuditEntityPolicy      = "policy"
	AuditEntityClaim       = "claim"
	AuditEntityIntegration = "integration"
	AuditEntityOperator    = "operator"
	AuditEntityPatient     = "patient"
)

// AuditEntry is one line in the audit trail.
type AuditEntry struct {
	Actor      string                 `json:"actor"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Outcome    string                 `json:"outcome"`
	RequestID  string                 `json:"request_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}
