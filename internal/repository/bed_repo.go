package repository

import (
	"context"

	"inpatient-capacity-backend/internal/models"

	"gorm.io/gorm"
)

type BedRepository struct {
	db *gorm.DB
}

func NewBedRepo(db *gorm.DB) *BedRepository {
	return &BedRepository{db: db}
}

// BedCounts summarises a ward's bed pool
type BedCounts struct {
	Total     int64
	Occupied  int64
	Available int64
	Inactive  int64
}

// GetBedByID retrieves a bed by ID
func (r *BedRepository) GetBedByID(ctx context.Context, id uint) (*models.Bed, error) {
	var bed models.Bed
	if err := conn(ctx, r.db).First(&bed, id).Error; err != nil {
		return nil, notFound(err, "bed not found")
	}
	return &bed, nil
}

// GetBedForUpdate retrieves a bed and locks its row until the transaction ends
func (r *BedRepository) GetBedForUpdate(ctx context.Context, id uint) (*models.Bed, error) {
	var bed models.Bed
	if err := forUpdate(conn(ctx, r.db)).First(&bed, id).Error; err != nil {
		return nil, notFound(err, "bed not found")
	}
	return &bed, nil
}

// GetBedsByWardID retrieves every bed of a ward, active or not
func (r *BedRepository) GetBedsByWardID(ctx context.Context, wardID uint) ([]models.Bed, error) {
	var beds []models.Bed
	err := conn(ctx, r.db).Where("ward_id = ?", wardID).Find(&beds).Error
	if err != nil {
		return nil, err
	}
	models.SortBeds(beds)
	return beds, nil
}

// GetUnoccupiedBedsByWardID retrieves the ward's free beds and locks them.
// Beds still referenced by an ADMITTED admission are never returned.
func (r *BedRepository) GetUnoccupiedBedsByWardID(ctx context.Context, wardID uint) ([]models.Bed, error) {
	var beds []models.Bed
	err := forUpdate(conn(ctx, r.db)).
		Where("ward_id = ? AND is_occupied = ?", wardID, false).
		Where("NOT EXISTS (SELECT 1 FROM admissions WHERE admissions.bed_id = beds.id AND admissions.status = ?)",
			models.AdmissionStatusAdmitted).
		Find(&beds).Error
	return beds, err
}

// GetAvailableBeds retrieves free, active beds with their ward preloaded
func (r *BedRepository) GetAvailableBeds(ctx context.Context, wardID *uint, bedType models.BedType) ([]models.Bed, error) {
	var beds []models.Bed
	q := conn(ctx, r.db).
		Joins("Ward").
		Where("beds.is_occupied = ? AND beds.is_active = ?", false, true)
	if wardID != nil {
		q = q.Where("beds.ward_id = ?", *wardID)
	}
	if bedType != "" {
		q = q.Where("beds.bed_type = ?", bedType)
	}
	if err := q.Find(&beds).Error; err != nil {
		return nil, err
	}
	models.SortBedsByWard(beds)
	return beds, nil
}

// CountBedsByWardID counts every bed in a ward
func (r *BedRepository) CountBedsByWardID(ctx context.Context, wardID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Bed{}).Where("ward_id = ?", wardID).Count(&count).Error
	return count, err
}

// CountBedStates returns total, occupied, available and inactive counts for a ward
func (r *BedRepository) CountBedStates(ctx context.Context, wardID uint) (BedCounts, error) {
	var counts BedCounts
	q := func() *gorm.DB {
		return conn(ctx, r.db).Model(&models.Bed{}).Where("ward_id = ?", wardID)
	}
	if err := q().Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := q().Where("is_occupied = ?", true).Count(&counts.Occupied).Error; err != nil {
		return counts, err
	}
	if err := q().Where("is_occupied = ? AND is_active = ?", false, true).Count(&counts.Available).Error; err != nil {
		return counts, err
	}
	if err := q().Where("is_active = ?", false).Count(&counts.Inactive).Error; err != nil {
		return counts, err
	}
	return counts, nil
}

// GetBedNumbersByWardID lists the bed numbers already used in a ward
func (r *BedRepository) GetBedNumbersByWardID(ctx context.Context, wardID uint) ([]string, error) {
	var numbers []string
	err := conn(ctx, r.db).Model(&models.Bed{}).
		Where("ward_id = ?", wardID).
		Pluck("bed_number", &numbers).Error
	return numbers, err
}

// GetBedIDsByWardID lists the IDs of every bed in a ward
func (r *BedRepository) GetBedIDsByWardID(ctx context.Context, wardID uint) ([]uint, error) {
	var ids []uint
	err := conn(ctx, r.db).Model(&models.Bed{}).
		Where("ward_id = ?", wardID).
		Pluck("id", &ids).Error
	return ids, err
}

// BedNumberTaken reports whether the number is already used in the ward
func (r *BedRepository) BedNumberTaken(ctx context.Context, wardID uint, number string, excludeID uint) (bool, error) {
	var count int64
	q := conn(ctx, r.db).Model(&models.Bed{}).Where("ward_id = ? AND bed_number = ?", wardID, number)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// CreateBed creates a single bed
func (r *BedRepository) CreateBed(ctx context.Context, bed *models.Bed) error {
	return conn(ctx, r.db).Omit("Ward").Create(bed).Error
}

// CreateBeds inserts a batch of beds
func (r *BedRepository) CreateBeds(ctx context.Context, beds []models.Bed) error {
	if len(beds) == 0 {
		return nil
	}
	return conn(ctx, r.db).Omit("Ward").CreateInBatches(beds, 100).Error
}

// UpdateBedFields applies a partial update to a bed
func (r *BedRepository) UpdateBedFields(ctx context.Context, id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return conn(ctx, r.db).Model(&models.Bed{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClaimBed marks a free, active bed occupied. It reports false when another
// writer got there first, so the check and the set are one statement.
func (r *BedRepository) ClaimBed(ctx context.Context, id uint) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Bed{}).
		Where("id = ? AND is_occupied = ? AND is_active = ?", id, false, true).
		Update("is_occupied", true)
	return res.RowsAffected == 1, res.Error
}

// ReleaseBed marks a bed unoccupied
func (r *BedRepository) ReleaseBed(ctx context.Context, id uint) error {
	return conn(ctx, r.db).Model(&models.Bed{}).
		Where("id = ?", id).
		Update("is_occupied", false).Error
}

// DeleteBedsByIDs hard deletes the listed beds
func (r *BedRepository) DeleteBedsByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return conn(ctx, r.db).Where("id IN ?", ids).Delete(&models.Bed{}).Error
}

// DeleteFreeBed hard deletes a bed unless it is occupied. It reports false
// when no unoccupied bed with that id existed.
func (r *BedRepository) DeleteFreeBed(ctx context.Context, id uint) (bool, error) {
	res := conn(ctx, r.db).
		Where("id = ? AND is_occupied = ?", id, false).
		Delete(&models.Bed{})
	return res.RowsAffected == 1, res.Error
}
