package service

import (
	"context"
	"fmt"
	"time"

	"inpatient-capacity-backend/internal/metrics"
	"inpatient-capacity-backend/internal/models"
	"inpatient-capacity-backend/internal/repository"
	"inpatient-capacity-backend/pkg/apperrors"

	"github.com/rs/zerolog/log"
)

type AdmissionService struct {
	tx            *repository.Transactor
	wardRepo      *repository.WardRepository
	bedRepo       *repository.BedRepository
	admissionRepo *repository.AdmissionRepository
	patients      PatientDirectory
	gate          *DischargeGate
	auditor       *Auditor
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewAdmissionService(
	tx *repository.Transactor,
	wardRepo *repository.WardRepository,
	bedRepo *repository.BedRepository,
	admissionRepo *repository.AdmissionRepository,
	patients PatientDirectory,
	gate *DischargeGate,
	auditor *Auditor,
	m *metrics.Metrics,
) *AdmissionService {
	if m == nil {
		m = metrics.New(nil)
	}
	return &AdmissionService{
		tx:            tx,
		wardRepo:      wardRepo,
		bedRepo:       bedRepo,
		admissionRepo: admissionRepo,
		patients:      patients,
		gate:          gate,
		auditor:       auditor,
		metrics:       m,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// AdmitInput describes a new admission
type AdmitInput struct {
	PatientID     uint                  `json:"patient_id" binding:"required"`
	WardID        uint                  `json:"ward_id" binding:"required"`
	BedID         uint                  `json:"bed_id" binding:"required"`
	AdmissionType models.AdmissionType  `json:"admission_type"`
	AdmissionDate *time.Time            `json:"admission_date"`
	Notes         string                `json:"notes"`
	DayCare       models.DayCareDetails `json:"day_care"`
}

// UpdateAdmissionInput is a partial admission update. Moving ward or bed
// here does not touch occupancy counters; only Admit and Discharge do.
type UpdateAdmissionInput struct {
	WardID        *uint                   `json:"ward_id"`
	BedID         *uint                   `json:"bed_id"`
	AdmissionType *models.AdmissionType   `json:"admission_type"`
	Status        *models.AdmissionStatus `json:"status"`
	Notes         *string                 `json:"notes"`
	DayCare       *models.DayCareDetails  `json:"day_care"`
}

// GetAdmissions retrieves admissions matching the filter, with the total count
func (s *AdmissionService) GetAdmissions(ctx context.Context, filter repository.AdmissionFilter) ([]models.Admission, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperrors.NewValidationError(fmt.Sprintf("unknown admission status %q", filter.Status))
	}
	return s.admissionRepo.GetAdmissions(ctx, filter)
}

// GetAdmissionByID retrieves an admission
func (s *AdmissionService) GetAdmissionByID(ctx context.Context, id uint) (*models.Admission, error) {
	return s.admissionRepo.GetAdmissionByID(ctx, id)
}

// Admit places a patient in a bed. Every precondition is checked before any
// write; the admission, bed, ward counter and patient flag change together.
func (s *AdmissionService) Admit(ctx context.Context, input AdmitInput, actorID uint) (*models.Admission, error) {
	if input.AdmissionType == "" {
		input.AdmissionType = models.AdmissionTypePlanned
	}
	if !input.AdmissionType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown admission type %q", input.AdmissionType))
	}
	if input.PatientID == 0 || input.WardID == 0 || input.BedID == 0 {
		return nil, apperrors.NewValidationError("patient_id, ward_id and bed_id are required")
	}

	if err := s.checkAdmitPreconditions(ctx, input); err != nil {
		s.rejectAdmission(err)
		return nil, err
	}

	admissionDate := s.now()
	if input.AdmissionDate != nil {
		admissionDate = input.AdmissionDate.UTC()
	}
	admission := &models.Admission{
		PatientID:      input.PatientID,
		WardID:         input.WardID,
		BedID:          input.BedID,
		AdmissionDate:  admissionDate,
		Status:         models.AdmissionStatusAdmitted,
		AdmissionType:  input.AdmissionType,
		AdmittedBy:     actorPtr(actorID),
		Notes:          input.Notes,
		ProcedureStart: input.DayCare.ProcedureStart,
		ProcedureEnd:   input.DayCare.ProcedureEnd,
		RecoveryStart:  input.DayCare.RecoveryStart,
		RecoveryEnd:    input.DayCare.RecoveryEnd,
		HomeSupport:    input.DayCare.HomeSupport,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		// Writing the patient row first serialises concurrent admits of the same patient.
		if err := s.patients.SetPatientType(ctx, input.PatientID, models.PatientTypeInpatient); err != nil {
			return fmt.Errorf("failed to update patient type: %w", err)
		}
		existing, err := s.admissionRepo.GetActiveAdmissionByPatient(ctx, input.PatientID)
		if err != nil {
			return fmt.Errorf("failed to check active admissions: %w", err)
		}
		if existing != nil {
			return alreadyAdmitted(input.PatientID, existing.ID)
		}

		bed, err := s.bedRepo.GetBedForUpdate(ctx, input.BedID)
		if err != nil {
			return err
		}
		if bed.WardID != input.WardID {
			return wardMismatch(bed, input.WardID)
		}
		if !bed.IsActive {
			return bedInactive(bed.ID)
		}
		claimed, err := s.bedRepo.ClaimBed(ctx, input.BedID)
		if err != nil {
			return fmt.Errorf("failed to reserve bed: %w", err)
		}
		if !claimed {
			return bedOccupied(input.BedID)
		}

		if err := s.admissionRepo.CreateAdmission(ctx, admission); err != nil {
			return fmt.Errorf("failed to create admission: %w", err)
		}

		found, err := s.wardRepo.IncrementOccupancy(ctx, input.WardID)
		if err != nil {
			return fmt.Errorf("failed to update ward occupancy: %w", err)
		}
		if !found {
			return apperrors.NewNotFoundError("ward not found").WithDetail("ward_id", input.WardID)
		}
		return nil
	})
	if err != nil {
		s.rejectAdmission(err)
		return nil, err
	}

	s.metrics.AdmissionsTotal.Inc()
	log.Info().
		Uint("admission_id", admission.ID).
		Uint("patient_id", admission.PatientID).
		Uint("ward_id", admission.WardID).
		Uint("bed_id", admission.BedID).
		Msg("patient admitted")
	s.auditor.Record(ctx, actorID, "admission_create", tableAdmissions, admission.ID, nil, admission)

	return admission, nil
}

func (s *AdmissionService) checkAdmitPreconditions(ctx context.Context, input AdmitInput) error {
	exists, err := s.patients.Exists(ctx, input.PatientID)
	if err != nil {
		return fmt.Errorf("failed to look up patient: %w", err)
	}
	if !exists {
		return apperrors.NewNotFoundError("patient not found").WithDetail("patient_id", input.PatientID)
	}

	existing, err := s.admissionRepo.GetActiveAdmissionByPatient(ctx, input.PatientID)
	if err != nil {
		return fmt.Errorf("failed to check active admissions: %w", err)
	}
	if existing != nil {
		return alreadyAdmitted(input.PatientID, existing.ID)
	}

	if _, err := s.wardRepo.GetWardByID(ctx, input.WardID); err != nil {
		return err
	}

	bed, err := s.bedRepo.GetBedByID(ctx, input.BedID)
	if err != nil {
		return err
	}
	if bed.WardID != input.WardID {
		return wardMismatch(bed, input.WardID)
	}
	if !bed.IsActive {
		return bedInactive(bed.ID)
	}
	if bed.IsOccupied {
		return bedOccupied(bed.ID)
	}
	return nil
}

func (s *AdmissionService) rejectAdmission(err error) {
	reason := "error"
	if appErr, ok := apperrors.As(err); ok {
		reason = string(appErr.Type)
		if appErr.Code != "" {
			reason = appErr.Code
		}
	}
	s.metrics.AdmissionsRejected.WithLabelValues(reason).Inc()
}

// UpdateAdmission changes ward, bed, type, status, notes or day-care details
func (s *AdmissionService) UpdateAdmission(ctx context.Context, id uint, input UpdateAdmissionInput, actorID uint) (*models.Admission, error) {
	if input.AdmissionType != nil && !input.AdmissionType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown admission type %q", *input.AdmissionType))
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown admission status %q", *input.Status))
	}

	before, err := s.admissionRepo.GetAdmissionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.WardID != nil || input.BedID != nil {
		wardID, bedID := before.WardID, before.BedID
		if input.WardID != nil {
			wardID = *input.WardID
		}
		if input.BedID != nil {
			bedID = *input.BedID
		}
		if _, err := s.wardRepo.GetWardByID(ctx, wardID); err != nil {
			return nil, err
		}
		bed, err := s.bedRepo.GetBedByID(ctx, bedID)
		if err != nil {
			return nil, err
		}
		if bed.WardID != wardID {
			return nil, wardMismatch(bed, wardID)
		}
		updates["ward_id"] = wardID
		updates["bed_id"] = bedID
	}
	if input.AdmissionType != nil {
		updates["admission_type"] = *input.AdmissionType
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if dc := input.DayCare; dc != nil {
		updates["procedure_start"] = dc.ProcedureStart
		updates["procedure_end"] = dc.ProcedureEnd
		updates["recovery_start"] = dc.RecoveryStart
		updates["recovery_end"] = dc.RecoveryEnd
		updates["home_support"] = dc.HomeSupport
	}

	if err := s.admissionRepo.UpdateAdmissionFields(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("failed to update admission: %w", err)
	}

	after, err := s.admissionRepo.GetAdmissionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if after.WardID != before.WardID || after.BedID != before.BedID || after.Status != before.Status {
		log.Warn().
			Uint("admission_id", id).
			Uint("ward_id", after.WardID).
			Uint("bed_id", after.BedID).
			Str("status", string(after.Status)).
			Msg("admission moved or status changed directly; bed and ward occupancy were not adjusted")
	}
	s.auditor.Record(ctx, actorID, "admission_update", tableAdmissions, id, before, after)

	return after, nil
}

// CheckDischarge reports whether the admission could be discharged now, without changing anything
func (s *AdmissionService) CheckDischarge(ctx context.Context, id uint) (*DischargeVerdict, error) {
	if _, err := s.admissionRepo.GetAdmissionByID(ctx, id); err != nil {
		return nil, err
	}
	return s.gate.Evaluate(ctx, id)
}

// Discharge closes an ADMITTED admission once billing reports no pending
// charges. The admission, bed, ward counter and patient flag change together.
func (s *AdmissionService) Discharge(ctx context.Context, id uint, notes string, actorID uint) (*models.Admission, error) {
	admission, err := s.admissionRepo.GetAdmissionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if admission.Status != models.AdmissionStatusAdmitted {
		return nil, notAdmitted(admission)
	}

	if err := s.gate.Check(ctx, id); err != nil {
		if apperrors.HasCode(err, apperrors.CodeDischargeBlocked) {
			s.metrics.DischargesBlocked.Inc()
			log.Info().Uint("admission_id", id).Msg("discharge blocked by pending charges")
		}
		return nil, err
	}

	dischargedAt := s.now()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		locked, err := s.admissionRepo.GetAdmissionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.Status != models.AdmissionStatusAdmitted {
			return notAdmitted(locked)
		}

		closed, err := s.admissionRepo.CloseAdmission(ctx, id, map[string]interface{}{
			"discharge_date":  dischargedAt,
			"discharged_by":   actorPtr(actorID),
			"discharge_notes": notes,
		})
		if err != nil {
			return fmt.Errorf("failed to close admission: %w", err)
		}
		if !closed {
			return notAdmitted(locked)
		}

		if err := s.bedRepo.ReleaseBed(ctx, locked.BedID); err != nil {
			return fmt.Errorf("failed to release bed: %w", err)
		}
		if err := s.wardRepo.DecrementOccupancy(ctx, locked.WardID); err != nil {
			return fmt.Errorf("failed to update ward occupancy: %w", err)
		}
		if err := s.patients.SetPatientType(ctx, locked.PatientID, models.PatientTypeOutpatient); err != nil {
			return fmt.Errorf("failed to update patient type: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	after, err := s.admissionRepo.GetAdmissionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.metrics.DischargesTotal.Inc()
	log.Info().
		Uint("admission_id", id).
		Uint("patient_id", after.PatientID).
		Uint("bed_id", after.BedID).
		Msg("patient discharged")
	s.auditor.Record(ctx, actorID, "admission_discharge", tableAdmissions, id, admission, after)

	return after, nil
}

func alreadyAdmitted(patientID, admissionID uint) error {
	return apperrors.NewConflictError("patient is already admitted").
		WithCode(apperrors.CodeAlreadyAdmitted).
		WithDetail("patient_id", patientID).
		WithDetail("admission_id", admissionID)
}

func bedOccupied(bedID uint) error {
	return apperrors.NewConflictError("bed is already occupied").
		WithCode(apperrors.CodeBedOccupied).
		WithDetail("bed_id", bedID)
}

func bedInactive(bedID uint) error {
	return apperrors.NewConflictError("bed is not active").
		WithCode(apperrors.CodeBedInactive).
		WithDetail("bed_id", bedID)
}

func wardMismatch(bed *models.Bed, wardID uint) error {
	return apperrors.NewIntegrityError("bed does not belong to the requested ward").
		WithCode(apperrors.CodeWardMismatch).
		WithDetail("bed_id", bed.ID).
		WithDetail("bed_ward_id", bed.WardID).
		WithDetail("ward_id", wardID)
}

func notAdmitted(admission *models.Admission) error {
	return apperrors.NewConflictError("patient is not currently admitted").
		WithCode(apperrors.CodeNotAdmitted).
		WithDetail("admission_id", admission.ID).
		WithDetail("status", admission.Status)
}
