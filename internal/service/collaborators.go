package service

import (
	"context"

	"inpatient-capacity-backend/internal/models"
)

// PatientDirectory is the slice of the patient registry the ledger needs.
// Calls made with a transaction-bound ctx join that transaction.
type PatientDirectory interface {
	Exists(ctx context.Context, patientID uint) (bool, error)
	SetPatientType(ctx context.Context, patientID uint, patientType models.PatientType) error
}

// BillingCollaborator previews the charges still owed on an admission
type BillingCollaborator interface {
	GetChargesPreview(ctx context.Context, admissionID uint) (*models.ChargesPreview, error)
}

// AuditSink persists audit entries
type AuditSink interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// Audit table names
const (
	tableWards      = "wards"
	tableBeds       = "beds"
	tableAdmissions = "admissions"
)

func actorPtr(actorID uint) *uint {
	if actorID == 0 {
		return nil
	}
	return &actorID
}
