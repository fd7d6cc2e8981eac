package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction is the kind of mutation an audit record captures.
type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionBulkCreate AuditAction = "bulk-create"
	AuditActionUpdate     AuditAction = "update"
	AuditActionReassign   AuditAction = "reassign"
	AuditActionDelete     AuditAction = "delete"
)

// ItemKind names the kind of entity an audit record refers to.
type ItemKind string

const (
	ItemKindAsset  ItemKind = "asset"
	ItemKindMember ItemKind = "member"
	ItemKindOffice ItemKind = "office"
	ItemKindTeam   ItemKind = "team"
)

// AuditRecord is an immutable history entry. It is written once and never
// updated or removed.
type AuditRecord struct {
	ID        uuid.UUID   `json:"id"` // UUIDv7
	Action    AuditAction `json:"actionType"`
	ItemKind  ItemKind    `json:"itemType"`
	ActorID   string      `json:"userId"`
	OldData   any         `json:"oldData"`
	NewData   any         `json:"newData"`
	Context   string      `json:"context,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}
