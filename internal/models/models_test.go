package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareBedNumbers(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"7", "7", 0},
		{"3", "A1", -1},
		{"B2", "4", 1},
		{"A1", "A2", -1},
		{"A10", "A2", -1},
		{"9000000000000000000", "-9000000000000000000", 1},
		{"-9000000000000000000", "9000000000000000000", -1},
	}

	for _, tt := range tests {
		got := CompareBedNumbers(tt.a, tt.b)
		switch {
		case tt.want < 0:
			assert.Negative(t, got, "%s vs %s", tt.a, tt.b)
		case tt.want > 0:
			assert.Positive(t, got, "%s vs %s", tt.a, tt.b)
		default:
			assert.Zero(t, got, "%s vs %s", tt.a, tt.b)
		}
	}
}

func TestSortBeds(t *testing.T) {
	beds := []Bed{{BedNumber: "10"}, {BedNumber: "2"}, {BedNumber: "ISO-1"}, {BedNumber: "1"}}

	SortBeds(beds)
	assert.Equal(t, []string{"1", "2", "10", "ISO-1"}, numbers(beds))

	SortBedsDescending(beds)
	assert.Equal(t, []string{"ISO-1", "10", "2", "1"}, numbers(beds))
}

func TestSortBedsByWard(t *testing.T) {
	beta := &Ward{Name: "Beta"}
	alpha := &Ward{Name: "Alpha"}
	beds := []Bed{
		{WardID: 1, BedNumber: "1", Ward: beta},
		{WardID: 2, BedNumber: "12", Ward: alpha},
		{WardID: 2, BedNumber: "3", Ward: alpha},
	}

	SortBedsByWard(beds)
	assert.Equal(t, []string{"3", "12", "1"}, numbers(beds))
	assert.Equal(t, "Beta", beds[2].Ward.Name)
}

func TestWardTypeBedType(t *testing.T) {
	assert.Equal(t, BedTypeICU, WardTypeICU.BedType())
	assert.Equal(t, BedTypeICU, WardTypeCardiac.BedType())
	assert.Equal(t, BedTypePrivate, WardTypePrivate.BedType())
	for _, wt := range []WardType{WardTypeGeneral, WardTypeEmergency, WardTypePediatric, WardTypeMaternity,
		WardTypeSurgical, WardTypeNeurology, WardTypeOrthopedic} {
		assert.True(t, wt.Valid())
		assert.Equal(t, BedTypeGeneral, wt.BedType(), string(wt))
	}
	assert.False(t, WardType("ZOO").Valid())
}

func numbers(beds []Bed) []string {
	out := make([]string, len(beds))
	for i, b := range beds {
		out[i] = b.BedNumber
	}
	return out
}
