package models

import "time"

// BillItem is a billing line item charged against an admission.
// Written by the billing module; read here only for the discharge preview.
type BillItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AdmissionID uint      `gorm:"not null;index" json:"admission_id"`
	Category    string    `gorm:"size:50;not null" json:"category"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
	Amount      float64   `gorm:"not null" json:"amount"`
	IsPaid      bool      `gorm:"not null;default:false" json:"is_paid"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for BillItem model
func (BillItem) TableName() string {
	return "bill_items"
}

// ChargeLine is one category of pending charges
type ChargeLine struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// ChargesPreview is the pending-charges summary for an admission
type ChargesPreview struct {
	AdmissionID uint         `json:"admission_id"`
	TotalAmount float64      `json:"total_amount"`
	Breakdown   []ChargeLine `json:"breakdown"`
}
