package repository

import (
	"context"

	"inpatient-capacity-backend/internal/models"

	"gorm.io/gorm"
)

type WardRepository struct {
	db *gorm.DB
}

func NewWardRepo(db *gorm.DB) *WardRepository {
	return &WardRepository{db: db}
}

// WardFilter narrows ward listings
type WardFilter struct {
	Type     models.WardType
	IsActive *bool
}

// GetAllWards retrieves wards ordered by name
func (r *WardRepository) GetAllWards(ctx context.Context, filter WardFilter) ([]models.Ward, error) {
	var wards []models.Ward
	q := conn(ctx, r.db)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	err := q.Order("name ASC").Find(&wards).Error
	return wards, err
}

// GetWardByID retrieves a ward by ID
func (r *WardRepository) GetWardByID(ctx context.Context, id uint) (*models.Ward, error) {
	var ward models.Ward
	if err := conn(ctx, r.db).First(&ward, id).Error; err != nil {
		return nil, notFound(err, "ward not found")
	}
	return &ward, nil
}

// GetWardForUpdate retrieves a ward and locks its row until the transaction ends
func (r *WardRepository) GetWardForUpdate(ctx context.Context, id uint) (*models.Ward, error) {
	var ward models.Ward
	if err := forUpdate(conn(ctx, r.db)).First(&ward, id).Error; err != nil {
		return nil, notFound(err, "ward not found")
	}
	return &ward, nil
}

// NameTaken reports whether another ward already uses name
func (r *WardRepository) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	q := conn(ctx, r.db).Model(&models.Ward{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// CreateWard creates a new ward
func (r *WardRepository) CreateWard(ctx context.Context, ward *models.Ward) error {
	return conn(ctx, r.db).Omit("Beds").Create(ward).Error
}

// UpdateWardFields applies a partial update to a ward
func (r *WardRepository) UpdateWardFields(ctx context.Context, id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return conn(ctx, r.db).Model(&models.Ward{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// IncrementOccupancy adds one to the ward's occupancy counter.
// It reports false when the ward row no longer exists.
func (r *WardRepository) IncrementOccupancy(ctx context.Context, id uint) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Ward{}).
		Where("id = ?", id).
		UpdateColumn("current_occupancy", gorm.Expr("current_occupancy + ?", 1))
	return res.RowsAffected == 1, res.Error
}

// DecrementOccupancy subtracts one from the ward's occupancy counter, never below zero
func (r *WardRepository) DecrementOccupancy(ctx context.Context, id uint) error {
	return conn(ctx, r.db).Model(&models.Ward{}).
		Where("id = ? AND current_occupancy > ?", id, 0).
		UpdateColumn("current_occupancy", gorm.Expr("current_occupancy - ?", 1)).Error
}

// DeleteWard hard deletes a ward row; dependants must already be gone
func (r *WardRepository) DeleteWard(ctx context.Context, id uint) error {
	return conn(ctx, r.db).Delete(&models.Ward{}, id).Error
}
