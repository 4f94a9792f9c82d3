package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"inpatient-capacity-backend/internal/metrics"
	"inpatient-capacity-backend/internal/models"
	"inpatient-capacity-backend/internal/repository"
	"inpatient-capacity-backend/pkg/apperrors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxWardNameLength = 100

type WardService struct {
	tx            *repository.Transactor
	wardRepo      *repository.WardRepository
	bedRepo       *repository.BedRepository
	admissionRepo *repository.AdmissionRepository
	patientRepo   *repository.PatientRepository
	auditor       *Auditor
	metrics       *metrics.Metrics
}

func NewWardService(
	tx *repository.Transactor,
	wardRepo *repository.WardRepository,
	bedRepo *repository.BedRepository,
	admissionRepo *repository.AdmissionRepository,
	patientRepo *repository.PatientRepository,
	auditor *Auditor,
	m *metrics.Metrics,
) *WardService {
	if m == nil {
		m = metrics.New(nil)
	}
	return &WardService{
		tx:            tx,
		wardRepo:      wardRepo,
		bedRepo:       bedRepo,
		admissionRepo: admissionRepo,
		patientRepo:   patientRepo,
		auditor:       auditor,
		metrics:       m,
	}
}

// CreateWardInput describes a new ward
type CreateWardInput struct {
	Name        string          `json:"name" binding:"required"`
	Type        models.WardType `json:"type" binding:"required"`
	Capacity    int             `json:"capacity" binding:"required"`
	Floor       string          `json:"floor"`
	Description string          `json:"description"`
}

// UpdateWardInput is a partial ward update; nil fields are left alone
type UpdateWardInput struct {
	Name        *string          `json:"name"`
	Type        *models.WardType `json:"type"`
	Capacity    *int             `json:"capacity"`
	Floor       *string          `json:"floor"`
	Description *string          `json:"description"`
	IsActive    *bool            `json:"is_active"`
}

// UpdateWardResult carries the updated ward and, when capacity changed, what happened to the bed pool
type UpdateWardResult struct {
	Ward           *models.Ward    `json:"ward"`
	CapacityChange *CapacityChange `json:"capacity_change,omitempty"`
}

// DeleteWardResult reports what an ordered ward deletion removed
type DeleteWardResult struct {
	WardID            uint `json:"ward_id"`
	AdmissionsRemoved int  `json:"admissions_removed"`
	BedsRemoved       int  `json:"beds_removed"`
	PatientsReleased  int  `json:"patients_released"`
}

// GetAllWards retrieves wards matching the filter
func (s *WardService) GetAllWards(ctx context.Context, filter repository.WardFilter) ([]models.Ward, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown ward type %q", filter.Type))
	}
	return s.wardRepo.GetAllWards(ctx, filter)
}

// GetWardByID retrieves a ward together with its bed pool
func (s *WardService) GetWardByID(ctx context.Context, id uint) (*models.Ward, error) {
	ward, err := s.wardRepo.GetWardByID(ctx, id)
	if err != nil {
		return nil, err
	}
	beds, err := s.bedRepo.GetBedsByWardID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load beds: %w", err)
	}
	ward.Beds = beds
	return ward, nil
}

// GetWardOccupancy summarises a ward's beds and active admissions
func (s *WardService) GetWardOccupancy(ctx context.Context, id uint) (*models.WardOccupancy, error) {
	ward, err := s.wardRepo.GetWardByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.bedRepo.CountBedStates(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count beds: %w", err)
	}
	active, err := s.admissionRepo.CountActiveByWard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count admissions: %w", err)
	}

	occupancy := &models.WardOccupancy{
		WardID:           ward.ID,
		WardName:         ward.Name,
		Capacity:         ward.Capacity,
		CurrentOccupancy: ward.CurrentOccupancy,
		ActiveAdmissions: active,
		TotalBeds:        counts.Total,
		OccupiedBeds:     counts.Occupied,
		AvailableBeds:    counts.Available,
		InactiveBeds:     counts.Inactive,
	}
	if ward.Capacity > 0 {
		occupancy.OccupancyRate = float64(ward.CurrentOccupancy) / float64(ward.Capacity)
	}
	return occupancy, nil
}

// CreateWard creates a ward and its full bed pool in one transaction
func (s *WardService) CreateWard(ctx context.Context, input CreateWardInput, actorID uint) (*models.Ward, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateWardName(input.Name); err != nil {
		return nil, err
	}
	if err := validateWardType(input.Type); err != nil {
		return nil, err
	}
	if err := validateCapacity(input.Capacity); err != nil {
		return nil, err
	}

	taken, err := s.wardRepo.NameTaken(ctx, input.Name, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check ward name: %w", err)
	}
	if taken {
		return nil, duplicateWardName(input.Name)
	}

	ward := &models.Ward{
		Name:        input.Name,
		Type:        input.Type,
		Capacity:    input.Capacity,
		Floor:       input.Floor,
		Description: input.Description,
		IsActive:    true,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.wardRepo.CreateWard(ctx, ward); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicateWardName(input.Name)
			}
			return fmt.Errorf("failed to create ward: %w", err)
		}

		bedType := ward.Type.BedType()
		beds := make([]models.Bed, 0, ward.Capacity)
		for i := 1; i <= ward.Capacity; i++ {
			beds = append(beds, models.Bed{
				WardID:    ward.ID,
				BedNumber: strconv.Itoa(i),
				BedType:   bedType,
				IsActive:  true,
			})
		}
		if err := s.bedRepo.CreateBeds(ctx, beds); err != nil {
			return fmt.Errorf("failed to create beds: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("ward_id", ward.ID).
		Str("name", ward.Name).
		Int("beds", ward.Capacity).
		Msg("ward created")
	s.auditor.Record(ctx, actorID, "ward_create", tableWards, ward.ID, nil, ward)

	return ward, nil
}

// UpdateWard applies a partial update; a capacity change resizes the bed pool in the same transaction
func (s *WardService) UpdateWard(ctx context.Context, id uint, input UpdateWardInput, actorID uint) (*UpdateWardResult, error) {
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
		if err := validateWardName(trimmed); err != nil {
			return nil, err
		}
	}
	if input.Type != nil {
		if err := validateWardType(*input.Type); err != nil {
			return nil, err
		}
	}
	if input.Capacity != nil {
		if err := validateCapacity(*input.Capacity); err != nil {
			return nil, err
		}
	}

	var before models.Ward
	result := &UpdateWardResult{}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		ward, err := s.wardRepo.GetWardForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before = *ward

		updates := map[string]interface{}{}
		if input.Name != nil && *input.Name != ward.Name {
			taken, err := s.wardRepo.NameTaken(ctx, *input.Name, id)
			if err != nil {
				return fmt.Errorf("failed to check ward name: %w", err)
			}
			if taken {
				return duplicateWardName(*input.Name)
			}
			updates["name"] = *input.Name
			ward.Name = *input.Name
		}
		if input.Type != nil {
			updates["type"] = *input.Type
			ward.Type = *input.Type
		}
		if input.Capacity != nil {
			updates["capacity"] = *input.Capacity
			ward.Capacity = *input.Capacity
		}
		if input.Floor != nil {
			updates["floor"] = *input.Floor
		}
		if input.Description != nil {
			updates["description"] = *input.Description
		}
		if input.IsActive != nil {
			updates["is_active"] = *input.IsActive
		}

		if err := s.wardRepo.UpdateWardFields(ctx, id, updates); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicateWardName(ward.Name)
			}
			return fmt.Errorf("failed to update ward: %w", err)
		}

		if input.Capacity != nil {
			change, err := s.reconcileCapacity(ctx, ward, *input.Capacity)
			if err != nil {
				return err
			}
			result.CapacityChange = change
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ward, err := s.wardRepo.GetWardByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Ward = ward

	if change := result.CapacityChange; change != nil && change.Shortfall > 0 {
		s.metrics.CapacityShortfall.Add(float64(change.Shortfall))
		log.Warn().
			Uint("ward_id", id).
			Int("requested_capacity", change.RequestedCapacity).
			Int("beds_remaining", change.BedsAfter).
			Int("shortfall", change.Shortfall).
			Msg("capacity reduced partially: not enough unoccupied beds")
	}
	s.auditor.Record(ctx, actorID, "ward_update", tableWards, id, before, ward)

	return result, nil
}

// DeleteWard removes a ward with its admissions and beds. Without force it
// refuses while any patient is still admitted to the ward.
func (s *WardService) DeleteWard(ctx context.Context, id uint, force bool, actorID uint) (*DeleteWardResult, error) {
	ward, err := s.wardRepo.GetWardByID(ctx, id)
	if err != nil {
		return nil, err
	}

	active, err := s.admissionRepo.CountActiveByWard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count active admissions: %w", err)
	}
	if active > 0 && !force {
		return nil, activeAdmissionsConflict(id, active)
	}

	result := &DeleteWardResult{WardID: id}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.wardRepo.GetWardForUpdate(ctx, id); err != nil {
			return err
		}

		// Admissions may have arrived since the pre-check.
		patientIDs, err := s.admissionRepo.GetActivePatientIDsByWard(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list admitted patients: %w", err)
		}
		if len(patientIDs) > 0 && !force {
			return activeAdmissionsConflict(id, int64(len(patientIDs)))
		}

		admissionIDs, err := s.admissionRepo.GetAdmissionIDsByWard(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list admissions: %w", err)
		}
		if err := s.admissionRepo.DeleteAdmissionsByIDs(ctx, admissionIDs); err != nil {
			return fmt.Errorf("failed to delete admissions: %w", err)
		}
		if err := s.patientRepo.SetPatientTypes(ctx, patientIDs, models.PatientTypeOutpatient); err != nil {
			return fmt.Errorf("failed to release patients: %w", err)
		}

		bedIDs, err := s.bedRepo.GetBedIDsByWardID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list beds: %w", err)
		}
		if err := s.bedRepo.DeleteBedsByIDs(ctx, bedIDs); err != nil {
			return fmt.Errorf("failed to delete beds: %w", err)
		}

		if err := s.wardRepo.DeleteWard(ctx, id); err != nil {
			return fmt.Errorf("failed to delete ward: %w", err)
		}

		result.AdmissionsRemoved = len(admissionIDs)
		result.BedsRemoved = len(bedIDs)
		result.PatientsReleased = len(patientIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("ward_id", id).
		Bool("force", force).
		Int("admissions_removed", result.AdmissionsRemoved).
		Int("beds_removed", result.BedsRemoved).
		Msg("ward deleted")
	s.auditor.Record(ctx, actorID, "ward_delete", tableWards, id, ward, result)

	return result, nil
}

func validateWardName(name string) error {
	if name == "" {
		return apperrors.NewValidationError("ward name is required")
	}
	if len(name) > maxWardNameLength {
		return apperrors.NewValidationError(fmt.Sprintf("ward name must be at most %d characters", maxWardNameLength))
	}
	return nil
}

func validateWardType(t models.WardType) error {
	if !t.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown ward type %q", t))
	}
	return nil
}

func validateCapacity(capacity int) error {
	if capacity < models.MinWardCapacity || capacity > models.MaxWardCapacity {
		return apperrors.NewValidationError(fmt.Sprintf("capacity must be between %d and %d",
			models.MinWardCapacity, models.MaxWardCapacity)).
			WithDetail("capacity", capacity)
	}
	return nil
}

func duplicateWardName(name string) error {
	return apperrors.NewConflictError(fmt.Sprintf("a ward named %q already exists", name)).
		WithCode(apperrors.CodeDuplicateName).
		WithDetail("name", name)
}

func activeAdmissionsConflict(wardID uint, active int64) error {
	return apperrors.NewConflictError(fmt.Sprintf(
		"ward has %d active admission(s); discharge or transfer them first, or delete with force=true", active)).
		WithCode(apperrors.CodeActiveAdmissions).
		WithDetail("ward_id", wardID).
		WithDetail("active_admissions", active)
}
