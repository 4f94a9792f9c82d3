package repository

import (
	"context"

	"inpatient-capacity-backend/internal/models"

	"gorm.io/gorm"
)

// ChargeRepository reads unpaid bill items written by the billing module
type ChargeRepository struct {
	db *gorm.DB
}

func NewChargeRepo(db *gorm.DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

// GetChargesPreview sums unpaid charges for an admission, grouped by category
func (r *ChargeRepository) GetChargesPreview(ctx context.Context, admissionID uint) (*models.ChargesPreview, error) {
	var lines []models.ChargeLine
	err := conn(ctx, r.db).Model(&models.BillItem{}).
		Select("category, SUM(amount) AS amount").
		Where("admission_id = ? AND is_paid = ?", admissionID, false).
		Group("category").
		Order("category ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}

	preview := &models.ChargesPreview{
		AdmissionID: admissionID,
		Breakdown:   lines,
	}
	for _, line := range lines {
		preview.TotalAmount += line.Amount
	}
	if preview.Breakdown == nil {
		preview.Breakdown = []models.ChargeLine{}
	}
	return preview, nil
}
