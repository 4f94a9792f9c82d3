package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inpatient-capacity-backend/internal/billing"
	"inpatient-capacity-backend/internal/config"
	"inpatient-capacity-backend/internal/database"
	"inpatient-capacity-backend/internal/handler"
	"inpatient-capacity-backend/internal/metrics"
	"inpatient-capacity-backend/internal/middleware"
	"inpatient-capacity-backend/internal/repository"
	"inpatient-capacity-backend/internal/service"
	"inpatient-capacity-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func runServer(cfg *config.Config) error {
	utils.InitJWT(cfg.JWT.AccessSecret, cfg.JWT.AccessTokenExpiry, cfg.JWT.Issuer)

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Repositories
	tx := repository.NewTransactor(db)
	wardRepo := repository.NewWardRepo(db)
	bedRepo := repository.NewBedRepo(db)
	admissionRepo := repository.NewAdmissionRepo(db)
	patientRepo := repository.NewPatientRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	// Pending charges come from the billing service when configured,
	// otherwise from unpaid bill items in the shared database.
	var charges service.BillingCollaborator
	if cfg.Billing.BaseURL != "" {
		charges = billing.NewClient(cfg.Billing, m.ObserveBreaker)
		log.Info().Str("url", cfg.Billing.BaseURL).Msg("Discharge gate uses billing service")
	} else {
		charges = repository.NewChargeRepo(db)
		log.Info().Msg("Discharge gate reads unpaid bill items from the database")
	}

	// Services
	auditor := service.NewAuditor(auditRepo, cfg.Audit.Async, m)
	gate := service.NewDischargeGate(charges)
	wardService := service.NewWardService(tx, wardRepo, bedRepo, admissionRepo, patientRepo, auditor, m)
	bedService := service.NewBedService(tx, wardRepo, bedRepo, admissionRepo, auditor, m)
	admissionService := service.NewAdmissionService(tx, wardRepo, bedRepo, admissionRepo, patientRepo, gate, auditor, m)

	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORS),
	)

	r.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"success": code == http.StatusOK,
			"data": gin.H{
				"status":  status,
				"service": serviceName,
			},
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(registry)))

	handler.RegisterRoutes(r, handler.Handlers{
		Wards:      handler.NewWardHandler(wardService, bedService),
		Beds:       handler.NewBedHandler(bedService),
		Admissions: handler.NewAdmissionHandler(admissionService),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	auditor.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("Server exited")
	return nil
}
