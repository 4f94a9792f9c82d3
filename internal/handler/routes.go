package handler

import (
	"inpatient-capacity-backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups every resource handler served by the API
type Handlers struct {
	Wards      *WardHandler
	Beds       *BedHandler
	Admissions *AdmissionHandler
}

// RegisterRoutes mounts the authenticated API. Reads need any valid token;
// ward structure is admin only, bed maintenance adds bed managers, and
// admissions are open to clinical staff.
func RegisterRoutes(r gin.IRouter, h Handlers) {
	api := r.Group("")
	api.Use(middleware.AuthMiddleware())

	structure := middleware.RequireRole(middleware.RoleAdmin)
	bedUpkeep := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleBedManager)
	clinical := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleBedManager, middleware.RoleClinician)

	wards := api.Group("/wards")
	{
		wards.GET("", h.Wards.GetAllWards)
		wards.GET("/:id", h.Wards.GetWard)
		wards.GET("/:id/occupancy", h.Wards.GetWardOccupancy)
		wards.GET("/:id/beds", h.Wards.GetWardBeds)

		wards.POST("", structure, h.Wards.CreateWard)
		wards.PATCH("/:id", structure, h.Wards.UpdateWard)
		wards.DELETE("/:id", structure, h.Wards.DeleteWard)
	}

	beds := api.Group("/beds")
	{
		beds.GET("/available", h.Beds.GetAvailableBeds)
		beds.GET("/:id", h.Beds.GetBed)

		beds.POST("", bedUpkeep, h.Beds.CreateBed)
		beds.PATCH("/:id", bedUpkeep, h.Beds.UpdateBed)
		beds.POST("/:id/override", bedUpkeep, h.Beds.OverrideBed)
		beds.DELETE("/:id", bedUpkeep, h.Beds.DeleteBed)
	}

	admissions := api.Group("/admissions")
	{
		admissions.GET("", h.Admissions.GetAdmissions)
		admissions.GET("/:id", h.Admissions.GetAdmission)
		admissions.GET("/:id/discharge-check", h.Admissions.CheckDischarge)

		admissions.POST("", clinical, h.Admissions.Admit)
		admissions.PATCH("/:id", clinical, h.Admissions.UpdateAdmission)
		admissions.POST("/:id/discharge", clinical, h.Admissions.Discharge)
	}
}
