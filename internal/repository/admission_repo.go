package repository

import (
	"context"
	"errors"

	"inpatient-capacity-backend/internal/models"

	"gorm.io/gorm"
)

type AdmissionRepository struct {
	db *gorm.DB
}

func NewAdmissionRepo(db *gorm.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

// AdmissionFilter narrows admission listings
type AdmissionFilter struct {
	Status    models.AdmissionStatus
	WardID    uint
	PatientID uint
	Limit     int
	Offset    int
}

// GetAdmissions retrieves admissions, newest first
func (r *AdmissionRepository) GetAdmissions(ctx context.Context, filter AdmissionFilter) ([]models.Admission, int64, error) {
	var admissions []models.Admission
	var total int64

	q := conn(ctx, r.db).Model(&models.Admission{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.WardID != 0 {
		q = q.Where("ward_id = ?", filter.WardID)
	}
	if filter.PatientID != 0 {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	err := q.Order("admission_date DESC, id DESC").Find(&admissions).Error
	return admissions, total, err
}

// GetAdmissionByID retrieves an admission with its ward and bed
func (r *AdmissionRepository) GetAdmissionByID(ctx context.Context, id uint) (*models.Admission, error) {
	var admission models.Admission
	err := conn(ctx, r.db).
		Preload("Ward").
		Preload("Bed").
		First(&admission, id).Error
	if err != nil {
		return nil, notFound(err, "admission not found")
	}
	return &admission, nil
}

// GetAdmissionForUpdate retrieves an admission and locks its row until the transaction ends
func (r *AdmissionRepository) GetAdmissionForUpdate(ctx context.Context, id uint) (*models.Admission, error) {
	var admission models.Admission
	if err := forUpdate(conn(ctx, r.db)).First(&admission, id).Error; err != nil {
		return nil, notFound(err, "admission not found")
	}
	return &admission, nil
}

// GetActiveAdmissionByPatient returns the patient's ADMITTED admission, or nil.
// The read takes no lock; callers serialise on the patient row instead.
func (r *AdmissionRepository) GetActiveAdmissionByPatient(ctx context.Context, patientID uint) (*models.Admission, error) {
	var admission models.Admission
	err := conn(ctx, r.db).
		Where("patient_id = ? AND status = ?", patientID, models.AdmissionStatusAdmitted).
		First(&admission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &admission, nil
}

// CountActiveByWard counts ADMITTED admissions in a ward
func (r *AdmissionRepository) CountActiveByWard(ctx context.Context, wardID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Admission{}).
		Where("ward_id = ? AND status = ?", wardID, models.AdmissionStatusAdmitted).
		Count(&count).Error
	return count, err
}

// CountActiveByBed counts ADMITTED admissions on a bed
func (r *AdmissionRepository) CountActiveByBed(ctx context.Context, bedID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Admission{}).
		Where("bed_id = ? AND status = ?", bedID, models.AdmissionStatusAdmitted).
		Count(&count).Error
	return count, err
}

// GetAdmissionIDsByWard lists every admission of a ward, any status
func (r *AdmissionRepository) GetAdmissionIDsByWard(ctx context.Context, wardID uint) ([]uint, error) {
	var ids []uint
	err := conn(ctx, r.db).Model(&models.Admission{}).
		Where("ward_id = ?", wardID).
		Pluck("id", &ids).Error
	return ids, err
}

// GetActivePatientIDsByWard lists patients currently admitted to a ward
func (r *AdmissionRepository) GetActivePatientIDsByWard(ctx context.Context, wardID uint) ([]uint, error) {
	var ids []uint
	err := conn(ctx, r.db).Model(&models.Admission{}).
		Where("ward_id = ? AND status = ?", wardID, models.AdmissionStatusAdmitted).
		Pluck("patient_id", &ids).Error
	return ids, err
}

// CreateAdmission inserts a new admission
func (r *AdmissionRepository) CreateAdmission(ctx context.Context, admission *models.Admission) error {
	return conn(ctx, r.db).Omit("Ward", "Bed").Create(admission).Error
}

// UpdateAdmissionFields applies a partial update to an admission
func (r *AdmissionRepository) UpdateAdmissionFields(ctx context.Context, id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return conn(ctx, r.db).Model(&models.Admission{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CloseAdmission moves an ADMITTED admission to DISCHARGED. It reports false
// when the admission was no longer ADMITTED.
func (r *AdmissionRepository) CloseAdmission(ctx context.Context, id uint, updates map[string]interface{}) (bool, error) {
	updates["status"] = models.AdmissionStatusDischarged
	res := conn(ctx, r.db).Model(&models.Admission{}).
		Where("id = ? AND status = ?", id, models.AdmissionStatusAdmitted).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// DeleteAdmissionsByIDs hard deletes the listed admissions
func (r *AdmissionRepository) DeleteAdmissionsByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return conn(ctx, r.db).Where("id IN ?", ids).Delete(&models.Admission{}).Error
}
