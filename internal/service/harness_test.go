package service_test

import (
	"context"
	"sync"
	"testing"

	"inpatient-capacity-backend/internal/dbtest"
	"inpatient-capacity-backend/internal/metrics"
	"inpatient-capacity-backend/internal/models"
	"inpatient-capacity-backend/internal/repository"
	"inpatient-capacity-backend/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const staffID uint = 7

type harness struct {
	db         *gorm.DB
	metrics    *metrics.Metrics
	wards      *service.WardService
	beds       *service.BedService
	admissions *service.AdmissionService
	audit      *repository.AuditRepository
}

// newHarness wires the services over a fresh database. Without a billing
// stub the discharge gate reads unpaid bill items from the same database.
func newHarness(t *testing.T, billing ...service.BillingCollaborator) *harness {
	t.Helper()

	db := dbtest.Open(t)
	m := metrics.New(prometheus.NewRegistry())

	tx := repository.NewTransactor(db)
	wardRepo := repository.NewWardRepo(db)
	bedRepo := repository.NewBedRepo(db)
	admissionRepo := repository.NewAdmissionRepo(db)
	patientRepo := repository.NewPatientRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	var charges service.BillingCollaborator = repository.NewChargeRepo(db)
	if len(billing) > 0 {
		charges = billing[0]
	}

	auditor := service.NewAuditor(auditRepo, false, m)
	gate := service.NewDischargeGate(charges)

	return &harness{
		db:         db,
		metrics:    m,
		wards:      service.NewWardService(tx, wardRepo, bedRepo, admissionRepo, patientRepo, auditor, m),
		beds:       service.NewBedService(tx, wardRepo, bedRepo, admissionRepo, auditor, m),
		admissions: service.NewAdmissionService(tx, wardRepo, bedRepo, admissionRepo, patientRepo, gate, auditor, m),
		audit:      auditRepo,
	}
}

func (h *harness) createWard(t *testing.T, name string, wardType models.WardType, capacity int) *models.Ward {
	t.Helper()

	ward, err := h.wards.CreateWard(context.Background(), service.CreateWardInput{
		Name:     name,
		Type:     wardType,
		Capacity: capacity,
	}, staffID)
	require.NoError(t, err)
	return ward
}

func (h *harness) seedPatient(t *testing.T, name string) *models.Patient {
	t.Helper()
	return dbtest.SeedPatient(t, h.db, name)
}

func (h *harness) bed(t *testing.T, wardID uint, number string) *models.Bed {
	t.Helper()

	var bed models.Bed
	require.NoError(t, h.db.Where("ward_id = ? AND bed_number = ?", wardID, number).First(&bed).Error)
	return &bed
}

func (h *harness) ward(t *testing.T, id uint) *models.Ward {
	t.Helper()

	var ward models.Ward
	require.NoError(t, h.db.First(&ward, id).Error)
	return &ward
}

func (h *harness) patient(t *testing.T, id uint) *models.Patient {
	t.Helper()

	var patient models.Patient
	require.NoError(t, h.db.First(&patient, id).Error)
	return &patient
}

func (h *harness) admit(t *testing.T, patientID uint, bed *models.Bed) *models.Admission {
	t.Helper()

	admission, err := h.admissions.Admit(context.Background(), service.AdmitInput{
		PatientID: patientID,
		WardID:    bed.WardID,
		BedID:     bed.ID,
	}, staffID)
	require.NoError(t, err)
	return admission
}

// interleave runs fn once, on the transaction of the first delete or update
// against table, right before that statement executes. It stands in for a
// competing writer that commits between a service's checks and its write.
func (h *harness) interleave(t *testing.T, op, table string, fn func(ctx context.Context, pool gorm.ConnPool) error) {
	t.Helper()

	var once sync.Once
	hook := func(db *gorm.DB) {
		if db.Statement.Table != table {
			return
		}
		once.Do(func() {
			if err := fn(db.Statement.Context, db.Statement.ConnPool); err != nil {
				_ = db.AddError(err)
			}
		})
	}

	var err error
	switch op {
	case "delete":
		err = h.db.Callback().Delete().Before("gorm:delete").Register("test:interleave", hook)
	case "update":
		err = h.db.Callback().Update().Before("gorm:update").Register("test:interleave", hook)
	default:
		t.Fatalf("unsupported op %q", op)
	}
	require.NoError(t, err)
}

// snapshot captures every row the services write so failed operations can be
// checked for side effects.
type snapshot struct {
	Wards      []models.Ward
	Beds       []models.Bed
	Admissions []models.Admission
	Patients   []models.Patient
}

func (h *harness) snapshot(t *testing.T) snapshot {
	t.Helper()

	var s snapshot
	require.NoError(t, h.db.Order("id").Find(&s.Wards).Error)
	require.NoError(t, h.db.Order("id").Find(&s.Beds).Error)
	require.NoError(t, h.db.Order("id").Find(&s.Admissions).Error)
	require.NoError(t, h.db.Order("id").Find(&s.Patients).Error)
	return s
}

// assertInvariants checks the occupancy counter, the bed flags and the
// one-active-admission-per-patient rule against the admission rows.
func (h *harness) assertInvariants(t *testing.T) {
	t.Helper()

	s := h.snapshot(t)

	activeByWard := map[uint]int{}
	activeByBed := map[uint]int{}
	activeByPatient := map[uint]int{}
	bedWard := map[uint]uint{}
	for _, b := range s.Beds {
		bedWard[b.ID] = b.WardID
	}
	for _, a := range s.Admissions {
		if a.Status != models.AdmissionStatusAdmitted {
			continue
		}
		activeByWard[a.WardID]++
		activeByBed[a.BedID]++
		activeByPatient[a.PatientID]++
		require.Equal(t, a.WardID, bedWard[a.BedID], "admission %d bed/ward mismatch", a.ID)
	}

	for _, w := range s.Wards {
		require.Equal(t, activeByWard[w.ID], w.CurrentOccupancy, "ward %q occupancy counter", w.Name)
	}
	for _, b := range s.Beds {
		require.LessOrEqual(t, activeByBed[b.ID], 1, "bed %d double booked", b.ID)
		require.Equal(t, activeByBed[b.ID] == 1, b.IsOccupied, "bed %d occupied flag", b.ID)
	}
	for patientID, n := range activeByPatient {
		require.Equal(t, 1, n, "patient %d has %d active admissions", patientID, n)
	}
}

type mockBilling struct {
	mock.Mock
}

func (m *mockBilling) GetChargesPreview(ctx context.Context, admissionID uint) (*models.ChargesPreview, error) {
	args := m.Called(ctx, admissionID)
	preview, _ := args.Get(0).(*models.ChargesPreview)
	return preview, args.Error(1)
}
