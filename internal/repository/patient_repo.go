package repository

import (
	"context"

	"inpatient-capacity-backend/internal/models"

	"gorm.io/gorm"
)

// PatientRepository is the directory view of the patient registry
type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepo(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// Exists reports whether the patient is registered
func (r *PatientRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Patient{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// SetPatientType flips the inpatient/outpatient flag
func (r *PatientRepository) SetPatientType(ctx context.Context, id uint, patientType models.PatientType) error {
	return conn(ctx, r.db).Model(&models.Patient{}).
		Where("id = ?", id).
		Update("patient_type", patientType).Error
}

// SetPatientTypes flips the flag for several patients at once
func (r *PatientRepository) SetPatientTypes(ctx context.Context, ids []uint, patientType models.PatientType) error {
	if len(ids) == 0 {
		return nil
	}
	return conn(ctx, r.db).Model(&models.Patient{}).
		Where("id IN ?", ids).
		Update("patient_type", patientType).Error
}
