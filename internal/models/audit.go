package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEntry records a destructive action together with what was lost.
type AuditEntry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	EntityType string         `gorm:"type:varchar(64);index:idx_audit_entity;not null" json:"entity_type"`
	EntityKey  string         `gorm:"type:varchar(128);index:idx_audit_entity;not null" json:"entity_key"`
	Action     string         `gorm:"type:varchar(32);not null" json:"action"`
	ActorID    *uint          `json:"actor_id,omitempty"`
	Reason     string         `gorm:"type:text" json:"reason,omitempty"`
	Snapshot   datatypes.JSON `json:"snapshot"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEntry) TableName() string {
	return "audit_log"
}
