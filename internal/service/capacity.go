package service

import (
	"context"
	"fmt"
	"strconv"

	"inpatient-capacity-backend/internal/models"
)

// CapacityChange describes how a capacity update resized the bed pool.
// Shortfall counts beds that should have been removed but were occupied.
type CapacityChange struct {
	RequestedCapacity int      `json:"requested_capacity"`
	BedsBefore        int      `json:"beds_before"`
	BedsAfter         int      `json:"beds_after"`
	BedsAdded         []string `json:"beds_added,omitempty"`
	BedsRemoved       []string `json:"beds_removed,omitempty"`
	Shortfall         int      `json:"shortfall"`
}

// reconcileCapacity grows or shrinks the ward's bed pool toward target.
// Must run inside the transaction that locked the ward row.
func (s *WardService) reconcileCapacity(ctx context.Context, ward *models.Ward, target int) (*CapacityChange, error) {
	current, err := s.bedRepo.CountBedsByWardID(ctx, ward.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count beds: %w", err)
	}

	change := &CapacityChange{
		RequestedCapacity: target,
		BedsBefore:        int(current),
		BedsAfter:         int(current),
	}

	switch {
	case target > int(current):
		added, err := s.growBedPool(ctx, ward, int(current), target)
		if err != nil {
			return nil, err
		}
		change.BedsAdded = added
		change.BedsAfter += len(added)

	case target < int(current):
		removed, err := s.shrinkBedPool(ctx, ward.ID, int(current)-target)
		if err != nil {
			return nil, err
		}
		change.BedsRemoved = removed
		change.BedsAfter -= len(removed)
		change.Shortfall = change.BedsAfter - target
	}

	return change, nil
}

// growBedPool appends beds numbered from current+1 upward, skipping numbers
// the ward already uses.
func (s *WardService) growBedPool(ctx context.Context, ward *models.Ward, current, target int) ([]string, error) {
	numbers, err := s.bedRepo.GetBedNumbersByWardID(ctx, ward.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bed numbers: %w", err)
	}
	taken := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		taken[n] = struct{}{}
	}

	bedType := ward.Type.BedType()
	need := target - current
	beds := make([]models.Bed, 0, need)
	added := make([]string, 0, need)
	for next := current + 1; len(beds) < need; next++ {
		number := strconv.Itoa(next)
		if _, ok := taken[number]; ok {
			continue
		}
		beds = append(beds, models.Bed{
			WardID:    ward.ID,
			BedNumber: number,
			BedType:   bedType,
			IsActive:  true,
		})
		added = append(added, number)
	}

	if err := s.bedRepo.CreateBeds(ctx, beds); err != nil {
		return nil, fmt.Errorf("failed to add beds: %w", err)
	}
	return added, nil
}

// shrinkBedPool deletes up to excess unoccupied beds, highest bed number first
func (s *WardService) shrinkBedPool(ctx context.Context, wardID uint, excess int) ([]string, error) {
	free, err := s.bedRepo.GetUnoccupiedBedsByWardID(ctx, wardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unoccupied beds: %w", err)
	}
	models.SortBedsDescending(free)

	if len(free) > excess {
		free = free[:excess]
	}
	ids := make([]uint, len(free))
	removed := make([]string, len(free))
	for i, bed := range free {
		ids[i] = bed.ID
		removed[i] = bed.BedNumber
	}

	if err := s.bedRepo.DeleteBedsByIDs(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to remove beds: %w", err)
	}
	return removed, nil
}
