package service

import (
	"context"
	"fmt"

	"inpatient-capacity-backend/internal/models"
	"inpatient-capacity-backend/pkg/apperrors"
)

// DischargeVerdict is the gate's answer for one admission
type DischargeVerdict struct {
	AdmissionID uint                   `json:"admission_id"`
	Allowed     bool                   `json:"allowed"`
	Charges     *models.ChargesPreview `json:"charges"`
}

// DischargeGate refuses discharge while the admission still owes money.
// It only reads billing state.
type DischargeGate struct {
	billing BillingCollaborator
}

func NewDischargeGate(billing BillingCollaborator) *DischargeGate {
	return &DischargeGate{billing: billing}
}

// Evaluate fetches the charges preview and decides without failing on dues
func (g *DischargeGate) Evaluate(ctx context.Context, admissionID uint) (*DischargeVerdict, error) {
	preview, err := g.billing.GetChargesPreview(ctx, admissionID)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to fetch pending charges", err).
			WithCode(apperrors.CodeBillingUnavailable).
			WithDetail("admission_id", admissionID)
	}
	if preview == nil {
		preview = &models.ChargesPreview{AdmissionID: admissionID}
	}
	if preview.Breakdown == nil {
		preview.Breakdown = []models.ChargeLine{}
	}

	return &DischargeVerdict{
		AdmissionID: admissionID,
		Allowed:     preview.TotalAmount <= 0,
		Charges:     preview,
	}, nil
}

// Check returns a DISCHARGE_BLOCKED conflict carrying the breakdown when dues are pending
func (g *DischargeGate) Check(ctx context.Context, admissionID uint) error {
	verdict, err := g.Evaluate(ctx, admissionID)
	if err != nil {
		return err
	}
	if verdict.Allowed {
		return nil
	}

	return apperrors.NewConflictError(
		fmt.Sprintf("discharge blocked: pending charges of %.2f must be settled first", verdict.Charges.TotalAmount)).
		WithCode(apperrors.CodeDischargeBlocked).
		WithDetail("admission_id", admissionID).
		WithDetail("total_amount", verdict.Charges.TotalAmount).
		WithDetail("breakdown", verdict.Charges.Breakdown)
}
