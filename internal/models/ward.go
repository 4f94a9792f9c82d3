package models

import "time"

// WardType is the clinical category of a ward
type WardType string

const (
	WardTypeGeneral    WardType = "GENERAL"
	WardTypeICU        WardType = "ICU"
	WardTypePrivate    WardType = "PRIVATE"
	WardTypeEmergency  WardType = "EMERGENCY"
	WardTypePediatric  WardType = "PEDIATRIC"
	WardTypeMaternity  WardType = "MATERNITY"
	WardTypeSurgical   WardType = "SURGICAL"
	WardTypeCardiac    WardType = "CARDIAC"
	WardTypeNeurology  WardType = "NEUROLOGY"
	WardTypeOrthopedic WardType = "ORTHOPEDIC"
)

// Capacity bounds for a single ward
const (
	MinWardCapacity = 1
	MaxWardCapacity = 1000
)

// Valid reports whether t is a known ward type
func (t WardType) Valid() bool {
	switch t {
	case WardTypeGeneral, WardTypeICU, WardTypePrivate, WardTypeEmergency, WardTypePediatric,
		WardTypeMaternity, WardTypeSurgical, WardTypeCardiac, WardTypeNeurology, WardTypeOrthopedic:
		return true
	}
	return false
}

// BedType returns the bed type every bed of a ward of this type is created with
func (t WardType) BedType() BedType {
	switch t {
	case WardTypeICU, WardTypeCardiac:
		return BedTypeICU
	case WardTypePrivate:
		return BedTypePrivate
	default:
		return BedTypeGeneral
	}
}

// Ward represents a physical hospital unit with a fixed bed capacity
type Ward struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Type             WardType  `gorm:"size:20;not null;default:'GENERAL'" json:"type"`
	Capacity         int       `gorm:"not null" json:"capacity"`
	CurrentOccupancy int       `gorm:"not null;default:0" json:"current_occupancy"`
	Floor            string    `gorm:"size:50" json:"floor,omitempty"`
	Description      string    `gorm:"type:text" json:"description,omitempty"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Relationships
	Beds []Bed `gorm:"foreignKey:WardID" json:"beds,omitempty"`
}

// TableName specifies the table name for Ward model
func (Ward) TableName() string {
	return "wards"
}

// WardOccupancy is a point-in-time summary of a ward's bed pool
type WardOccupancy struct {
	WardID           uint    `json:"ward_id"`
	WardName         string  `json:"ward_name"`
	Capacity         int     `json:"capacity"`
	CurrentOccupancy int     `json:"current_occupancy"`
	ActiveAdmissions int64   `json:"active_admissions"`
	TotalBeds        int64   `json:"total_beds"`
	OccupiedBeds     int64   `json:"occupied_beds"`
	AvailableBeds    int64   `json:"available_beds"`
	InactiveBeds     int64   `json:"inactive_beds"`
	OccupancyRate    float64 `json:"occupancy_rate"`
}
