package handler

import (
	"inpatient-capacity-backend/internal/middleware"
	"inpatient-capacity-backend/internal/models"
	"inpatient-capacity-backend/internal/service"
	"inpatient-capacity-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type BedHandler struct {
	bedService *service.BedService
}

func NewBedHandler(bedService *service.BedService) *BedHandler {
	return &BedHandler{bedService: bedService}
}

// overrideRequest forces a bed's occupied flag
type overrideRequest struct {
	IsOccupied *bool  `json:"is_occupied" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
}

// GetBed retrieves a bed
func (h *BedHandler) GetBed(c *gin.Context) {
	id, ok := parseID(c, "id", "bed")
	if !ok {
		return
	}

	bed, err := h.bedService.GetBedByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, bed)
}

// GetAvailableBeds lists active unoccupied beds, optionally by ?ward_id= and ?bed_type=
func (h *BedHandler) GetAvailableBeds(c *gin.Context) {
	wardID, ok := parseOptionalID(c, "ward_id")
	if !ok {
		return
	}

	beds, err := h.bedService.GetAvailableBeds(c.Request.Context(), wardID, models.BedType(c.Query("bed_type")))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"beds":  beds,
		"count": len(beds),
	})
}

// CreateBed adds a single bed to a ward
func (h *BedHandler) CreateBed(c *gin.Context) {
	var input service.CreateBedInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	bed, err := h.bedService.CreateBed(c.Request.Context(), input, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, bed, "Bed created successfully")
}

// UpdateBed applies a partial bed update
func (h *BedHandler) UpdateBed(c *gin.Context) {
	id, ok := parseID(c, "id", "bed")
	if !ok {
		return
	}

	var input service.UpdateBedInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	bed, err := h.bedService.UpdateBed(c.Request.Context(), id, input, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.MessageResponse(c, "Bed updated successfully", bed)
}

// OverrideBed sets is_occupied directly, outside admit and discharge
func (h *BedHandler) OverrideBed(c *gin.Context) {
	id, ok := parseID(c, "id", "bed")
	if !ok {
		return
	}

	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	bed, err := h.bedService.OverrideBedOccupancy(c.Request.Context(), id, *req.IsOccupied, req.Reason, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.MessageResponse(c, "Bed occupancy overridden", bed)
}

// DeleteBed removes an unoccupied bed
func (h *BedHandler) DeleteBed(c *gin.Context) {
	id, ok := parseID(c, "id", "bed")
	if !ok {
		return
	}

	if err := h.bedService.DeleteBed(c.Request.Context(), id, middleware.ActorID(c)); err != nil {
		respondError(c, err)
		return
	}

	utils.MessageResponse(c, "Bed deleted successfully", gin.H{"bed_id": id})
}
