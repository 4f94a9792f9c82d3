package models

import "time"

// AdmissionStatus tracks an admission through its single transition
type AdmissionStatus string

const (
	AdmissionStatusAdmitted   AdmissionStatus = "ADMITTED"
	AdmissionStatusDischarged AdmissionStatus = "DISCHARGED"
)

// Valid reports whether s is a known admission status
func (s AdmissionStatus) Valid() bool {
	return s == AdmissionStatusAdmitted || s == AdmissionStatusDischarged
}

// AdmissionType describes how the patient came to be admitted
type AdmissionType string

const (
	AdmissionTypePlanned   AdmissionType = "PLANNED"
	AdmissionTypeEmergency AdmissionType = "EMERGENCY"
	AdmissionTypeDayCare   AdmissionType = "DAY_CARE"
	AdmissionTypeTransfer  AdmissionType = "TRANSFER"
)

// Valid reports whether t is a known admission type
func (t AdmissionType) Valid() bool {
	switch t {
	case AdmissionTypePlanned, AdmissionTypeEmergency, AdmissionTypeDayCare, AdmissionTypeTransfer:
		return true
	}
	return false
}

// Admission is the record of a patient occupying a bed from admit to discharge
type Admission struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	PatientID      uint            `gorm:"not null;index" json:"patient_id"`
	WardID         uint            `gorm:"not null;index" json:"ward_id"`
	BedID          uint            `gorm:"not null;index" json:"bed_id"`
	AdmissionDate  time.Time       `gorm:"not null" json:"admission_date"`
	DischargeDate  *time.Time      `json:"discharge_date"`
	Status         AdmissionStatus `gorm:"size:20;not null;index;default:'ADMITTED'" json:"status"`
	AdmissionType  AdmissionType   `gorm:"size:20;not null;default:'PLANNED'" json:"admission_type"`
	AdmittedBy     *uint           `json:"admitted_by,omitempty"`
	DischargedBy   *uint           `json:"discharged_by,omitempty"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
	DischargeNotes string          `gorm:"type:text" json:"discharge_notes,omitempty"`

	// Day-care details, stored as given
	ProcedureStart *time.Time `json:"procedure_start,omitempty"`
	ProcedureEnd   *time.Time `json:"procedure_end,omitempty"`
	RecoveryStart  *time.Time `json:"recovery_start,omitempty"`
	RecoveryEnd    *time.Time `json:"recovery_end,omitempty"`
	HomeSupport    bool       `gorm:"default:false" json:"home_support"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Ward *Ward `gorm:"foreignKey:WardID" json:"ward,omitempty"`
	Bed  *Bed  `gorm:"foreignKey:BedID" json:"bed,omitempty"`
}

// TableName specifies the table name for Admission model
func (Admission) TableName() string {
	return "admissions"
}

// DayCareDetails groups the opaque day-care fields of an admission
type DayCareDetails struct {
	ProcedureStart *time.Time `json:"procedure_start"`
	ProcedureEnd   *time.Time `json:"procedure_end"`
	RecoveryStart  *time.Time `json:"recovery_start"`
	RecoveryEnd    *time.Time `json:"recovery_end"`
	HomeSupport    bool       `json:"home_support"`
}
