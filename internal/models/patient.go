package models

import "time"

// PatientType flags whether a patient currently holds a bed
type PatientType string

const (
	PatientTypeInpatient  PatientType = "INPATIENT"
	PatientTypeOutpatient PatientType = "OUTPATIENT"
)

// Patient is the slice of the patient registry row this service touches.
// The registry owns the table; only patient_type is written from here.
type Patient struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	FullName    string      `gorm:"size:255" json:"full_name,omitempty"`
	PatientType PatientType `gorm:"size:20;not null;default:'OUTPATIENT'" json:"patient_type"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName specifies the table name for Patient model
func (Patient) TableName() string {
	return "patients"
}
