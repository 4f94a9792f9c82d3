package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inpatient-capacity-backend/internal/metrics"
	"inpatient-capacity-backend/internal/models"
	"inpatient-capacity-backend/internal/repository"
	"inpatient-capacity-backend/pkg/apperrors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxBedNumberLength = 20

type BedService struct {
	tx            *repository.Transactor
	wardRepo      *repository.WardRepository
	bedRepo       *repository.BedRepository
	admissionRepo *repository.AdmissionRepository
	auditor       *Auditor
	metrics       *metrics.Metrics
}

func NewBedService(
	tx *repository.Transactor,
	wardRepo *repository.WardRepository,
	bedRepo *repository.BedRepository,
	admissionRepo *repository.AdmissionRepository,
	auditor *Auditor,
	m *metrics.Metrics,
) *BedService {
	if m == nil {
		m = metrics.New(nil)
	}
	return &BedService{
		tx:            tx,
		wardRepo:      wardRepo,
		bedRepo:       bedRepo,
		admissionRepo: admissionRepo,
		auditor:       auditor,
		metrics:       m,
	}
}

// CreateBedInput describes a bed added outside capacity reconciliation
type CreateBedInput struct {
	WardID    uint           `json:"ward_id" binding:"required"`
	BedNumber string         `json:"bed_number" binding:"required"`
	BedType   models.BedType `json:"bed_type"`
}

// UpdateBedInput is a partial bed update. IsOccupied goes through the manual override path.
type UpdateBedInput struct {
	BedNumber  *string         `json:"bed_number"`
	BedType    *models.BedType `json:"bed_type"`
	IsActive   *bool           `json:"is_active"`
	IsOccupied *bool           `json:"is_occupied"`
	Reason     string          `json:"reason"`
}

// GetBedByID retrieves a bed
func (s *BedService) GetBedByID(ctx context.Context, id uint) (*models.Bed, error) {
	return s.bedRepo.GetBedByID(ctx, id)
}

// GetBedsByWard retrieves a ward's beds ordered by bed number
func (s *BedService) GetBedsByWard(ctx context.Context, wardID uint) ([]models.Bed, error) {
	if _, err := s.wardRepo.GetWardByID(ctx, wardID); err != nil {
		return nil, err
	}
	return s.bedRepo.GetBedsByWardID(ctx, wardID)
}

// GetAvailableBeds retrieves unoccupied, active beds ordered by ward name then bed number
func (s *BedService) GetAvailableBeds(ctx context.Context, wardID *uint, bedType models.BedType) ([]models.Bed, error) {
	if bedType != "" && !bedType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown bed type %q", bedType))
	}
	return s.bedRepo.GetAvailableBeds(ctx, wardID, bedType)
}

// CreateBed adds a single bed to a ward
func (s *BedService) CreateBed(ctx context.Context, input CreateBedInput, actorID uint) (*models.Bed, error) {
	input.BedNumber = strings.TrimSpace(input.BedNumber)
	if err := validateBedNumber(input.BedNumber); err != nil {
		return nil, err
	}
	if input.BedType != "" && !input.BedType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown bed type %q", input.BedType))
	}

	ward, err := s.wardRepo.GetWardByID(ctx, input.WardID)
	if err != nil {
		return nil, err
	}

	taken, err := s.bedRepo.BedNumberTaken(ctx, ward.ID, input.BedNumber, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check bed number: %w", err)
	}
	if taken {
		return nil, duplicateBedNumber(ward.ID, input.BedNumber)
	}

	bedType := input.BedType
	if bedType == "" {
		bedType = ward.Type.BedType()
	}
	bed := &models.Bed{
		WardID:    ward.ID,
		BedNumber: input.BedNumber,
		BedType:   bedType,
		IsActive:  true,
	}
	if err := s.bedRepo.CreateBed(ctx, bed); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, duplicateBedNumber(ward.ID, input.BedNumber)
		}
		return nil, fmt.Errorf("failed to create bed: %w", err)
	}

	s.auditor.Record(ctx, actorID, "bed_create", tableBeds, bed.ID, nil, bed)
	return bed, nil
}

// UpdateBed applies a partial update. A change to IsOccupied is applied as a
// manual override and audited separately.
func (s *BedService) UpdateBed(ctx context.Context, id uint, input UpdateBedInput, actorID uint) (*models.Bed, error) {
	if input.BedNumber != nil {
		trimmed := strings.TrimSpace(*input.BedNumber)
		input.BedNumber = &trimmed
		if err := validateBedNumber(trimmed); err != nil {
			return nil, err
		}
	}
	if input.BedType != nil && !input.BedType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown bed type %q", *input.BedType))
	}

	var before models.Bed
	overridden := false
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		bed, err := s.bedRepo.GetBedForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before = *bed

		updates := map[string]interface{}{}
		if input.BedNumber != nil && *input.BedNumber != bed.BedNumber {
			taken, err := s.bedRepo.BedNumberTaken(ctx, bed.WardID, *input.BedNumber, bed.ID)
			if err != nil {
				return fmt.Errorf("failed to check bed number: %w", err)
			}
			if taken {
				return duplicateBedNumber(bed.WardID, *input.BedNumber)
			}
			updates["bed_number"] = *input.BedNumber
		}
		if input.BedType != nil {
			updates["bed_type"] = *input.BedType
		}
		if input.IsActive != nil {
			updates["is_active"] = *input.IsActive
		}
		if err := s.bedRepo.UpdateBedFields(ctx, id, updates); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicateBedNumber(bed.WardID, *input.BedNumber)
			}
			return fmt.Errorf("failed to update bed: %w", err)
		}

		if input.IsOccupied != nil && *input.IsOccupied != bed.IsOccupied {
			if err := s.bedRepo.UpdateBedFields(ctx, id, map[string]interface{}{"is_occupied": *input.IsOccupied}); err != nil {
				return fmt.Errorf("failed to override bed occupancy: %w", err)
			}
			overridden = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	bed, err := s.bedRepo.GetBedByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, actorID, "bed_update", tableBeds, id, before, bed)
	if overridden {
		s.recordOverride(ctx, &before, bed, input.Reason, actorID)
	}
	return bed, nil
}

// OverrideBedOccupancy sets a bed's occupied flag directly. This bypasses the
// admission ledger, so bed state can disagree with admissions afterwards.
func (s *BedService) OverrideBedOccupancy(ctx context.Context, id uint, occupied bool, reason string, actorID uint) (*models.Bed, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("a reason is required for a manual bed override")
	}

	before, err := s.bedRepo.GetBedByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.IsOccupied == occupied {
		return before, nil
	}

	if err := s.bedRepo.UpdateBedFields(ctx, id, map[string]interface{}{"is_occupied": occupied}); err != nil {
		return nil, fmt.Errorf("failed to override bed occupancy: %w", err)
	}

	bed, err := s.bedRepo.GetBedByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordOverride(ctx, before, bed, reason, actorID)
	return bed, nil
}

func (s *BedService) recordOverride(ctx context.Context, before, after *models.Bed, reason string, actorID uint) {
	s.metrics.BedOverrides.Inc()

	active, err := s.admissionRepo.CountActiveByBed(ctx, after.ID)
	if err != nil {
		active = -1
	}
	log.Warn().
		Uint("bed_id", after.ID).
		Uint("ward_id", after.WardID).
		Bool("is_occupied", after.IsOccupied).
		Int64("active_admissions", active).
		Uint("actor_id", actorID).
		Str("reason", reason).
		Msg("manual bed occupancy override")

	s.auditor.Record(ctx, actorID, "bed_manual_override", tableBeds, after.ID,
		map[string]interface{}{"is_occupied": before.IsOccupied},
		map[string]interface{}{"is_occupied": after.IsOccupied, "reason": reason, "active_admissions": active})
}

// DeleteBed removes a bed that is neither occupied nor referenced by an
// active admission. The check and the delete share one transaction holding
// the bed row, so an admit cannot claim the bed in between.
func (s *BedService) DeleteBed(ctx context.Context, id uint, actorID uint) error {
	var bed *models.Bed
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		bed, err = s.bedRepo.GetBedForUpdate(ctx, id)
		if err != nil {
			return err
		}

		active, err := s.admissionRepo.CountActiveByBed(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count active admissions: %w", err)
		}
		if bed.IsOccupied || active > 0 {
			return bedInUse(id, bed.IsOccupied, active)
		}

		deleted, err := s.bedRepo.DeleteFreeBed(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to delete bed: %w", err)
		}
		if !deleted {
			return bedInUse(id, true, active)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.auditor.Record(ctx, actorID, "bed_delete", tableBeds, id, bed, nil)
	return nil
}

func bedInUse(bedID uint, occupied bool, active int64) error {
	return apperrors.NewConflictError("bed is in use and cannot be deleted").
		WithCode(apperrors.CodeBedOccupied).
		WithDetail("bed_id", bedID).
		WithDetail("is_occupied", occupied).
		WithDetail("active_admissions", active)
}

func validateBedNumber(number string) error {
	if number == "" {
		return apperrors.NewValidationError("bed number is required")
	}
	if len(number) > maxBedNumberLength {
		return apperrors.NewValidationError(fmt.Sprintf("bed number must be at most %d characters", maxBedNumberLength))
	}
	return nil
}

func duplicateBedNumber(wardID uint, number string) error {
	return apperrors.NewConflictError(fmt.Sprintf("bed %q already exists in this ward", number)).
		WithCode(apperrors.CodeDuplicateBed).
		WithDetail("ward_id", wardID).
		WithDetail("bed_number", number)
}
