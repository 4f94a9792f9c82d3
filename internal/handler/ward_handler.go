package handler

import (
	"inpatient-capacity-backend/internal/middleware"
	"inpatient-capacity-backend/internal/models"
	"inpatient-capacity-backend/internal/repository"
	"inpatient-capacity-backend/internal/service"
	"inpatient-capacity-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type WardHandler struct {
	wardService *service.WardService
	bedService  *service.BedService
}

func NewWardHandler(wardService *service.WardService, bedService *service.BedService) *WardHandler {
	return &WardHandler{
		wardService: wardService,
		bedService:  bedService,
	}
}

// GetAllWards lists wards, optionally filtered by ?type= and ?is_active=
func (h *WardHandler) GetAllWards(c *gin.Context) {
	isActive, ok := parseOptionalBool(c, "is_active")
	if !ok {
		return
	}
	filter := repository.WardFilter{
		Type:     models.WardType(c.Query("type")),
		IsActive: isActive,
	}

	wards, err := h.wardService.GetAllWards(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"wards": wards,
		"count": len(wards),
	})
}

// GetWard retrieves a ward with its beds
func (h *WardHandler) GetWard(c *gin.Context) {
	id, ok := parseID(c, "id", "ward")
	if !ok {
		return
	}

	ward, err := h.wardService.GetWardByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, ward)
}

// GetWardOccupancy summarises the ward's bed pool
func (h *WardHandler) GetWardOccupancy(c *gin.Context) {
	id, ok := parseID(c, "id", "ward")
	if !ok {
		return
	}

	occupancy, err := h.wardService.GetWardOccupancy(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, occupancy)
}

// GetWardBeds lists the ward's beds in bed number order
func (h *WardHandler) GetWardBeds(c *gin.Context) {
	id, ok := parseID(c, "id", "ward")
	if !ok {
		return
	}

	beds, err := h.bedService.GetBedsByWard(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"beds":  beds,
		"count": len(beds),
	})
}

// CreateWard creates a ward and its initial beds
func (h *WardHandler) CreateWard(c *gin.Context) {
	var input service.CreateWardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	ward, err := h.wardService.CreateWard(c.Request.Context(), input, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, ward, "Ward created successfully")
}

// UpdateWard applies a partial update, reconciling beds when capacity changes
func (h *WardHandler) UpdateWard(c *gin.Context) {
	id, ok := parseID(c, "id", "ward")
	if !ok {
		return
	}

	var input service.UpdateWardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.wardService.UpdateWard(c.Request.Context(), id, input, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Ward updated successfully"
	if result.CapacityChange != nil && result.CapacityChange.Shortfall > 0 {
		message = "Ward updated; some beds could not be removed because they are occupied"
	}
	utils.MessageResponse(c, message, result)
}

// DeleteWard removes an empty ward, or with ?force=true every admission, bed and patient link first
func (h *WardHandler) DeleteWard(c *gin.Context) {
	id, ok := parseID(c, "id", "ward")
	if !ok {
		return
	}
	force, ok := parseOptionalBool(c, "force")
	if !ok {
		return
	}

	result, err := h.wardService.DeleteWard(c.Request.Context(), id, force != nil && *force, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.MessageResponse(c, "Ward deleted successfully", result)
}
