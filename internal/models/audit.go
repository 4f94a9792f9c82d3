package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog represents the audit_logs table
// One row per mutation, with the before and after images as JSON
type AuditLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    *uint          `gorm:"index" json:"user_id"`
	Action    string         `gorm:"size:100;not null" json:"action"`
	Table     string         `gorm:"column:table_name;size:64;not null;index:idx_audit_record,priority:1" json:"table_name"`
	RecordID  uint           `gorm:"not null;index:idx_audit_record,priority:2" json:"record_id"`
	OldValue  datatypes.JSON `json:"old_value,omitempty"`
	NewValue  datatypes.JSON `json:"new_value,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName specifies the table name for AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}
