package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"inpatient-capacity-backend/internal/dbtest"
	"inpatient-capacity-backend/internal/models"
	"inpatient-capacity-backend/internal/repository"
	"inpatient-capacity-backend/internal/service"
	"inpatient-capacity-backend/pkg/apperrors"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAdmitAndDischarge_BlockedUntilChargesSettle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ward := h.createWard(t, "ICU-1", models.WardTypeICU, 2)
	p1 := h.seedPatient(t, "P1")
	bed := h.bed(t, ward.ID, "1")

	admission, err := h.admissions.Admit(ctx, service.AdmitInput{
		PatientID:     p1.ID,
		WardID:        ward.ID,
		BedID:         bed.ID,
		AdmissionType: models.AdmissionTypeEmergency,
		Notes:         "chest pain",
	}, staffID)
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionStatusAdmitted, admission.Status)
	assert.Equal(t, models.AdmissionTypeEmergency, admission.AdmissionType)
	require.NotNil(t, admission.AdmittedBy)
	assert.Equal(t, staffID, *admission.AdmittedBy)

	assert.Equal(t, 1, h.ward(t, ward.ID).CurrentOccupancy)
	assert.True(t, h.bed(t, ward.ID, "1").IsOccupied)
	assert.Equal(t, models.PatientTypeInpatient, h.patient(t, p1.ID).PatientType)
	h.assertInvariants(t)

	dbtest.SeedCharge(t, h.db, admission.ID, "pharmacy", 30)
	dbtest.SeedCharge(t, h.db, admission.ID, "lab", 20)
	before := h.snapshot(t)

	verdict, err := h.admissions.CheckDischarge(ctx, admission.ID)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, 50.0, verdict.Charges.TotalAmount)

	_, err = h.admissions.Discharge(ctx, admission.ID, "going home", staffID)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeConflict, appErr.Type)
	assert.Equal(t, apperrors.CodeDischargeBlocked, appErr.Code)
	assert.Equal(t, 50.0, appErr.Details["total_amount"])
	assert.Equal(t, []models.ChargeLine{{Category: "lab", Amount: 20}, {Category: "pharmacy", Amount: 30}},
		appErr.Details["breakdown"])
	assert.Equal(t, before, h.snapshot(t))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.DischargesBlocked))

	dbtest.SettleCharges(t, h.db, admission.ID)

	discharged, err := h.admissions.Discharge(ctx, admission.ID, "going home", staffID)
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionStatusDischarged, discharged.Status)
	require.NotNil(t, discharged.DischargeDate)
	require.NotNil(t, discharged.DischargedBy)
	assert.Equal(t, staffID, *discharged.DischargedBy)
	assert.Equal(t, "going home", discharged.DischargeNotes)

	assert.Equal(t, 0, h.ward(t, ward.ID).CurrentOccupancy)
	assert.False(t, h.bed(t, ward.ID, "1").IsOccupied)
	assert.Equal(t, models.PatientTypeOutpatient, h.patient(t, p1.ID).PatientType)
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.DischargesTotal))
	h.assertInvariants(t)

	logs, err := h.audit.GetAuditLogsByRecord(ctx, "admissions", admission.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "admission_create", logs[0].Action)
	assert.Equal(t, "admission_discharge", logs[1].Action)
}

func TestDischarge_IsTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ward := h.createWard(t, "General", models.WardTypeGeneral, 2)
	p := h.seedPatient(t, "P1")
	admission := h.admit(t, p.ID, h.bed(t, ward.ID, "1"))

	_, err := h.admissions.Discharge(ctx, admission.ID, "", staffID)
	require.NoError(t, err)

	_, err = h.admissions.Discharge(ctx, admission.ID, "", staffID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotAdmitted))

	_, err = h.admissions.Discharge(ctx, 12345, "", staffID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	// Readmission is a new record.
	again := h.admit(t, p.ID, h.bed(t, ward.ID, "2"))
	assert.NotEqual(t, admission.ID, again.ID)
	assert.Equal(t, 1, h.ward(t, ward.ID).CurrentOccupancy)
	h.assertInvariants(t)
}

func TestAdmit_PreconditionFailuresLeaveNoTrace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ward := h.createWard(t, "Ward A", models.WardTypeGeneral, 3)
	otherWard := h.createWard(t, "Ward B", models.WardTypeGeneral, 1)

	admitted := h.seedPatient(t, "already in")
	h.admit(t, admitted.ID, h.bed(t, ward.ID, "1"))
	free := h.seedPatient(t, "free")

	inactive := false
	inactiveBed := h.bed(t, ward.ID, "3")
	_, err := h.beds.UpdateBed(ctx, inactiveBed.ID, service.UpdateBedInput{IsActive: &inactive}, staffID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   service.AdmitInput
		errType apperrors.ErrorType
		code    string
	}{
		{
			name:    "unknown patient",
			input:   service.AdmitInput{PatientID: 999, WardID: ward.ID, BedID: h.bed(t, ward.ID, "2").ID},
			errType: apperrors.ErrorTypeNotFound,
		},
		{
			name:    "patient already admitted",
			input:   service.AdmitInput{PatientID: admitted.ID, WardID: ward.ID, BedID: h.bed(t, ward.ID, "2").ID},
			errType: apperrors.ErrorTypeConflict,
			code:    apperrors.CodeAlreadyAdmitted,
		},
		{
			name:    "unknown ward",
			input:   service.AdmitInput{PatientID: free.ID, WardID: 999, BedID: h.bed(t, ward.ID, "2").ID},
			errType: apperrors.ErrorTypeNotFound,
		},
		{
			name:    "unknown bed",
			input:   service.AdmitInput{PatientID: free.ID, WardID: ward.ID, BedID: 999},
			errType: apperrors.ErrorTypeNotFound,
		},
		{
			name:    "bed in another ward",
			input:   service.AdmitInput{PatientID: free.ID, WardID: ward.ID, BedID: h.bed(t, otherWard.ID, "1").ID},
			errType: apperrors.ErrorTypeIntegrity,
			code:    apperrors.CodeWardMismatch,
		},
		{
			name:    "inactive bed",
			input:   service.AdmitInput{PatientID: free.ID, WardID: ward.ID, BedID: inactiveBed.ID},
			errType: apperrors.ErrorTypeConflict,
			code:    apperrors.CodeBedInactive,
		},
		{
			name:    "occupied bed",
			input:   service.AdmitInput{PatientID: free.ID, WardID: ward.ID, BedID: h.bed(t, ward.ID, "1").ID},
			errType: apperrors.ErrorTypeConflict,
			code:    apperrors.CodeBedOccupied,
		},
		{
			name:    "unknown admission type",
			input:   service.AdmitInput{PatientID: free.ID, WardID: ward.ID, BedID: h.bed(t, ward.ID, "2").ID, AdmissionType: "WALK_IN"},
			errType: apperrors.ErrorTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.snapshot(t)

			_, err := h.admissions.Admit(ctx, tt.input, staffID)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.errType), "got %v", err)
			if tt.code != "" {
				assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
			}
			assert.Equal(t, before, h.snapshot(t))
		})
	}

	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.AdmissionsRejected.WithLabelValues(apperrors.CodeBedOccupied)))
	assert.Equal(t, 3.0, promtest.ToFloat64(h.metrics.AdmissionsRejected.WithLabelValues(string(apperrors.ErrorTypeNotFound))))
	h.assertInvariants(t)
}

func TestAdmit_ConcurrentSameBed(t *testing.T) {
	h := newHarness(t)
	ward := h.createWard(t, "ICU", models.WardTypeICU, 1)
	bed := h.bed(t, ward.ID, "1")

	const callers = 4
	patients := make([]*models.Patient, callers)
	for i := range patients {
		patients[i] = h.seedPatient(t, "P")
	}

	var wg sync.WaitGroup
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = h.admissions.Admit(context.Background(), service.AdmitInput{
				PatientID: patients[i].ID,
				WardID:    ward.ID,
				BedID:     bed.ID,
			}, staffID)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeBedOccupied), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	require.NoError(t, h.db.Model(&models.Admission{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 1, h.ward(t, ward.ID).CurrentOccupancy)
	h.assertInvariants(t)
}

func TestAdmit_RacingDeleteBed(t *testing.T) {
	h := newHarness(t)
	const beds = 6
	ward := h.createWard(t, "General", models.WardTypeGeneral, beds)

	admitErrs := make([]error, beds)
	deleteErrs := make([]error, beds)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < beds; i++ {
		bed := h.bed(t, ward.ID, strconv.Itoa(i+1))
		patient := h.seedPatient(t, "P")

		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			<-start
			_, admitErrs[i] = h.admissions.Admit(context.Background(), service.AdmitInput{
				PatientID: patient.ID,
				WardID:    ward.ID,
				BedID:     bed.ID,
			}, staffID)
		}(i)
		go func(i int) {
			defer wg.Done()
			<-start
			deleteErrs[i] = h.beds.DeleteBed(context.Background(), bed.ID, staffID)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < beds; i++ {
		if admitErrs[i] == nil {
			assert.True(t, apperrors.HasCode(deleteErrs[i], apperrors.CodeBedOccupied), "bed %d: got %v", i+1, deleteErrs[i])
			continue
		}
		assert.NoError(t, deleteErrs[i], "bed %d", i+1)
		assert.True(t, apperrors.IsType(admitErrs[i], apperrors.ErrorTypeNotFound), "bed %d: got %v", i+1, admitErrs[i])
	}
	h.assertInvariants(t)
}

func TestAdmit_BedDeactivatedAfterChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ward := h.createWard(t, "Cardiac", models.WardTypeCardiac, 1)
	bed := h.bed(t, ward.ID, "1")
	patient := h.seedPatient(t, "P1")

	// The patient row is the first write of an admit.
	h.interleave(t, "update", "patients", func(ctx context.Context, pool gorm.ConnPool) error {
		_, err := pool.ExecContext(ctx, "UPDATE beds SET is_active = ? WHERE id = ?", false, bed.ID)
		return err
	})
	before := h.snapshot(t)

	_, err := h.admissions.Admit(ctx, service.AdmitInput{PatientID: patient.ID, WardID: ward.ID, BedID: bed.ID}, staffID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBedInactive), "got %v", err)
	assert.Equal(t, before, h.snapshot(t))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.AdmissionsRejected.WithLabelValues(apperrors.CodeBedInactive)))
	assert.Zero(t, promtest.ToFloat64(h.metrics.AdmissionsRejected.WithLabelValues(apperrors.CodeBedOccupied)))
}

func TestAdmit_LocksOnlyTheBedRow(t *testing.T) {
	h := newHarness(t)
	ward := h.createWard(t, "Pediatric", models.WardTypePediatric, 1)
	patient := h.seedPatient(t, "P1")

	var locked []string
	require.NoError(t, h.db.Callback().Query().Before("gorm:query").Register("test:locks", func(db *gorm.DB) {
		if _, ok := db.Statement.Clauses["FOR"]; ok {
			locked = append(locked, db.Statement.Table)
		}
	}))

	h.admit(t, patient.ID, h.bed(t, ward.ID, "1"))
	assert.Equal(t, []string{"beds"}, locked)
}

func TestAdmit_ConcurrentSamePatient(t *testing.T) {
	h := newHarness(t)
	ward := h.createWard(t, "General", models.WardTypeGeneral, 3)
	p := h.seedPatient(t, "P1")

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, number := range []string{"1", "2", "3"} {
		bed := h.bed(t, ward.ID, number)
		wg.Add(1)
		go func(i int, bed *models.Bed) {
			defer wg.Done()
			_, errs[i] = h.admissions.Admit(context.Background(), service.AdmitInput{
				PatientID: p.ID,
				WardID:    ward.ID,
				BedID:     bed.ID,
			}, staffID)
		}(i, bed)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyAdmitted), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	h.assertInvariants(t)
}

func TestDischarge_BillingUnavailable(t *testing.T) {
	billing := &mockBilling{}
	h := newHarness(t, billing)
	ctx := context.Background()
	ward := h.createWard(t, "General", models.WardTypeGeneral, 1)
	p := h.seedPatient(t, "P1")
	admission := h.admit(t, p.ID, h.bed(t, ward.ID, "1"))

	billing.On("GetChargesPreview", mock.Anything, admission.ID).
		Return(nil, errors.New("connection refused")).Once()
	before := h.snapshot(t)

	_, err := h.admissions.Discharge(ctx, admission.ID, "", staffID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBillingUnavailable))
	assert.Equal(t, before, h.snapshot(t))
	assert.Zero(t, promtest.ToFloat64(h.metrics.DischargesBlocked))

	billing.On("GetChargesPreview", mock.Anything, admission.ID).
		Return(&models.ChargesPreview{AdmissionID: admission.ID, TotalAmount: 0}, nil).Once()

	discharged, err := h.admissions.Discharge(ctx, admission.ID, "", staffID)
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionStatusDischarged, discharged.Status)
	billing.AssertExpectations(t)
	h.assertInvariants(t)
}

func TestCheckDischarge_ReadOnly(t *testing.T) {
	billing := &mockBilling{}
	h := newHarness(t, billing)
	ctx := context.Background()
	ward := h.createWard(t, "General", models.WardTypeGeneral, 1)
	p := h.seedPatient(t, "P1")
	admission := h.admit(t, p.ID, h.bed(t, ward.ID, "1"))

	billing.On("GetChargesPreview", mock.Anything, admission.ID).Return(&models.ChargesPreview{
		AdmissionID: admission.ID,
		TotalAmount: 0,
	}, nil)
	before := h.snapshot(t)

	verdict, err := h.admissions.CheckDischarge(ctx, admission.ID)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, before, h.snapshot(t))

	_, err = h.admissions.CheckDischarge(ctx, 404)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	billing.AssertNumberOfCalls(t, "GetChargesPreview", 1)
}

func TestUpdateAdmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ward := h.createWard(t, "Ward A", models.WardTypeGeneral, 2)
	other := h.createWard(t, "Ward B", models.WardTypeGeneral, 1)
	p := h.seedPatient(t, "P1")
	admission := h.admit(t, p.ID, h.bed(t, ward.ID, "1"))

	notes := "moved to window"
	dayCare := models.AdmissionTypeDayCare
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	updated, err := h.admissions.UpdateAdmission(ctx, admission.ID, service.UpdateAdmissionInput{
		Notes:         &notes,
		AdmissionType: &dayCare,
		DayCare:       &models.DayCareDetails{ProcedureStart: &start, HomeSupport: true},
	}, staffID)
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, models.AdmissionTypeDayCare, updated.AdmissionType)
	require.NotNil(t, updated.ProcedureStart)
	assert.True(t, start.Equal(*updated.ProcedureStart))
	assert.True(t, updated.HomeSupport)

	// A bed that is not in the requested ward is rejected.
	otherBed := h.bed(t, other.ID, "1").ID
	_, err = h.admissions.UpdateAdmission(ctx, admission.ID, service.UpdateAdmissionInput{BedID: &otherBed}, staffID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeWardMismatch))

	badStatus := models.AdmissionStatus("LOST")
	_, err = h.admissions.UpdateAdmission(ctx, admission.ID, service.UpdateAdmissionInput{Status: &badStatus}, staffID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	// Moving beds here is a record change only; counters and flags stay put.
	bed2 := h.bed(t, ward.ID, "2").ID
	moved, err := h.admissions.UpdateAdmission(ctx, admission.ID, service.UpdateAdmissionInput{BedID: &bed2}, staffID)
	require.NoError(t, err)
	assert.Equal(t, bed2, moved.BedID)
	assert.True(t, h.bed(t, ward.ID, "1").IsOccupied)
	assert.False(t, h.bed(t, ward.ID, "2").IsOccupied)
	assert.Equal(t, 1, h.ward(t, ward.ID).CurrentOccupancy)

	_, err = h.admissions.UpdateAdmission(ctx, 999, service.UpdateAdmissionInput{Notes: &notes}, staffID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestGetAdmissions_Filters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ward := h.createWard(t, "Ward A", models.WardTypeGeneral, 3)
	other := h.createWard(t, "Ward B", models.WardTypeGeneral, 1)

	p1, p2, p3 := h.seedPatient(t, "P1"), h.seedPatient(t, "P2"), h.seedPatient(t, "P3")
	a1 := h.admit(t, p1.ID, h.bed(t, ward.ID, "1"))
	h.admit(t, p2.ID, h.bed(t, ward.ID, "2"))
	h.admit(t, p3.ID, h.bed(t, other.ID, "1"))
	_, err := h.admissions.Discharge(ctx, a1.ID, "", staffID)
	require.NoError(t, err)

	active, total, err := h.admissions.GetAdmissions(ctx, repository.AdmissionFilter{Status: models.AdmissionStatusAdmitted})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, active, 2)

	inWard, total, err := h.admissions.GetAdmissions(ctx, repository.AdmissionFilter{WardID: ward.ID, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, inWard, 1)

	byPatient, _, err := h.admissions.GetAdmissions(ctx, repository.AdmissionFilter{PatientID: p1.ID})
	require.NoError(t, err)
	require.Len(t, byPatient, 1)
	assert.Equal(t, models.AdmissionStatusDischarged, byPatient[0].Status)

	_, _, err = h.admissions.GetAdmissions(ctx, repository.AdmissionFilter{Status: "PENDING"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	got, err := h.admissions.GetAdmissionByID(ctx, a1.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Ward)
	require.NotNil(t, got.Bed)
	assert.Equal(t, "Ward A", got.Ward.Name)
	assert.Equal(t, "1", got.Bed.BedNumber)
}
