package service_test

import (
	"context"
	"errors"
	"testing"

	"inpatient-capacity-backend/internal/models"
	"inpatient-capacity-backend/internal/service"
	"inpatient-capacity-backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDischargeGate(t *testing.T) {
	tests := []struct {
		name      string
		preview   *models.ChargesPreview
		err       error
		allowed   bool
		checkType apperrors.ErrorType
		checkCode string
	}{
		{
			name:    "nothing owed",
			preview: &models.ChargesPreview{TotalAmount: 0},
			allowed: true,
		},
		{
			name:    "no preview returned",
			allowed: true,
		},
		{
			name: "pending charges",
			preview: &models.ChargesPreview{
				TotalAmount: 50,
				Breakdown:   []models.ChargeLine{{Category: "room", Amount: 50}},
			},
			checkType: apperrors.ErrorTypeConflict,
			checkCode: apperrors.CodeDischargeBlocked,
		},
		{
			name:      "billing down",
			err:       errors.New("timeout"),
			checkType: apperrors.ErrorTypeExternal,
			checkCode: apperrors.CodeBillingUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			billing := &mockBilling{}
			billing.On("GetChargesPreview", mock.Anything, uint(42)).Return(tt.preview, tt.err)
			gate := service.NewDischargeGate(billing)

			verdict, err := gate.Evaluate(context.Background(), 42)
			if tt.err != nil {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.allowed, verdict.Allowed)
				assert.NotNil(t, verdict.Charges.Breakdown)
			}

			err = gate.Check(context.Background(), 42)
			if tt.checkType == "" {
				assert.NoError(t, err)
				return
			}
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.checkType, appErr.Type)
			assert.Equal(t, tt.checkCode, appErr.Code)
			assert.EqualValues(t, 42, appErr.Details["admission_id"])
		})
	}
}
