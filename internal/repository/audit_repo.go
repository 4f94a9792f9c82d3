package repository

import (
	"context"

	"inpatient-capacity-backend/internal/models"

	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog creates a new audit log entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// GetAuditLogsByRecord retrieves the audit trail of one row, oldest first
func (r *AuditRepository) GetAuditLogsByRecord(ctx context.Context, table string, recordID uint) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("table_name = ? AND record_id = ?", table, recordID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}
