package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"inpatient-capacity-backend/internal/middleware"
	"inpatient-capacity-backend/internal/models"
	"inpatient-capacity-backend/internal/repository"
	"inpatient-capacity-backend/internal/service"
	"inpatient-capacity-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type AdmissionHandler struct {
	admissionService *service.AdmissionService
}

func NewAdmissionHandler(admissionService *service.AdmissionService) *AdmissionHandler {
	return &AdmissionHandler{admissionService: admissionService}
}

type dischargeRequest struct {
	Notes string `json:"notes"`
}

// GetAdmissions lists admissions by ?status=, ?ward_id=, ?patient_id= with ?limit= and ?offset=
func (h *AdmissionHandler) GetAdmissions(c *gin.Context) {
	wardID, ok := parseOptionalID(c, "ward_id")
	if !ok {
		return
	}
	patientID, ok := parseOptionalID(c, "patient_id")
	if !ok {
		return
	}

	filter := repository.AdmissionFilter{
		Status: models.AdmissionStatus(c.Query("status")),
		Limit:  defaultPageSize,
	}
	if wardID != nil {
		filter.WardID = *wardID
	}
	if patientID != nil {
		filter.PatientID = *patientID
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			utils.ErrorResponse(c, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxPageSize))
			return
		}
		filter.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	admissions, total, err := h.admissionService.GetAdmissions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"admissions": admissions,
		"count":      len(admissions),
		"total":      total,
		"limit":      filter.Limit,
		"offset":     filter.Offset,
	})
}

// GetAdmission retrieves an admission with its ward and bed
func (h *AdmissionHandler) GetAdmission(c *gin.Context) {
	id, ok := parseID(c, "id", "admission")
	if !ok {
		return
	}

	admission, err := h.admissionService.GetAdmissionByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, admission)
}

// Admit places a patient in a bed
func (h *AdmissionHandler) Admit(c *gin.Context) {
	var input service.AdmitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	admission, err := h.admissionService.Admit(c.Request.Context(), input, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, admission, "Patient admitted successfully")
}

// UpdateAdmission applies a partial admission update
func (h *AdmissionHandler) UpdateAdmission(c *gin.Context) {
	id, ok := parseID(c, "id", "admission")
	if !ok {
		return
	}

	var input service.UpdateAdmissionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	admission, err := h.admissionService.UpdateAdmission(c.Request.Context(), id, input, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.MessageResponse(c, "Admission updated successfully", admission)
}

// CheckDischarge reports pending charges without discharging
func (h *AdmissionHandler) CheckDischarge(c *gin.Context) {
	id, ok := parseID(c, "id", "admission")
	if !ok {
		return
	}

	verdict, err := h.admissionService.CheckDischarge(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, verdict)
}

// Discharge closes an admission and frees its bed
func (h *AdmissionHandler) Discharge(c *gin.Context) {
	id, ok := parseID(c, "id", "admission")
	if !ok {
		return
	}

	// The body is optional; an empty one means no notes.
	var req dischargeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}

	admission, err := h.admissionService.Discharge(c.Request.Context(), id, req.Notes, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.MessageResponse(c, "Patient discharged successfully", admission)
}
