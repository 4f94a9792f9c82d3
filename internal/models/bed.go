package models

import (
	"cmp"
	"sort"
	"strconv"
	"time"
)

// BedType is the equipment class of a bed
type BedType string

const (
	BedTypeGeneral BedType = "GENERAL"
	BedTypeICU     BedType = "ICU"
	BedTypePrivate BedType = "PRIVATE"
)

// Valid reports whether t is a known bed type
func (t BedType) Valid() bool {
	return t == BedTypeGeneral || t == BedTypeICU || t == BedTypePrivate
}

// Bed is an individually addressable occupancy slot within a ward
type Bed struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	WardID     uint      `gorm:"not null;uniqueIndex:idx_beds_ward_number,priority:1" json:"ward_id"`
	BedNumber  string    `gorm:"size:20;not null;uniqueIndex:idx_beds_ward_number,priority:2" json:"bed_number"`
	BedType    BedType   `gorm:"size:20;not null;default:'GENERAL'" json:"bed_type"`
	IsOccupied bool      `gorm:"not null;default:false" json:"is_occupied"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Relationships
	Ward *Ward `gorm:"foreignKey:WardID" json:"ward,omitempty"`
}

// TableName specifies the table name for Bed model
func (Bed) TableName() string {
	return "beds"
}

// CompareBedNumbers orders bed numbers numerically when both are integers,
// lexically otherwise, so "2" sorts before "10".
func CompareBedNumbers(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(ai, bi)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortBeds orders beds by bed number ascending
func SortBeds(beds []Bed) {
	sort.SliceStable(beds, func(i, j int) bool {
		return CompareBedNumbers(beds[i].BedNumber, beds[j].BedNumber) < 0
	})
}

// SortBedsDescending orders beds by bed number, highest first
func SortBedsDescending(beds []Bed) {
	sort.SliceStable(beds, func(i, j int) bool {
		return CompareBedNumbers(beds[i].BedNumber, beds[j].BedNumber) > 0
	})
}

// SortBedsByWard orders beds by ward name, then bed number ascending.
// Beds without a loaded ward sort by ward id.
func SortBedsByWard(beds []Bed) {
	sort.SliceStable(beds, func(i, j int) bool {
		wi, wj := wardSortKey(beds[i]), wardSortKey(beds[j])
		if wi != wj {
			return wi < wj
		}
		return CompareBedNumbers(beds[i].BedNumber, beds[j].BedNumber) < 0
	})
}

func wardSortKey(b Bed) string {
	if b.Ward != nil {
		return b.Ward.Name
	}
	return strconv.FormatUint(uint64(b.WardID), 10)
}
