package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medassist-ai/report-interpreter-api/internal/explainer"
	"github.com/medassist-ai/report-interpreter-api/internal/models"
	"github.com/medassist-ai/report-interpreter-api/internal/services"
	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

// StatusHandler serves the operational status probe: database connectivity,
// OCR engine readiness, and which explanation provider is active.
type StatusHandler struct {
	service   services.ReportService
	db        *sqlx.DB
	logger    *utils.Logger
	startedAt time.Time
}

func NewStatusHandler(service services.ReportService, db *sqlx.DB, logger *utils.Logger) *StatusHandler {
	return &StatusHandler{
		service:   service,
		db:        db,
		logger:    logger,
		startedAt: time.Now(),
	}
}

func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	database := "connected"
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Warn("Database ping failed", "error", err)
		database = "disconnected"
	}

	provider := h.service.NLPProvider()

	resp := models.StatusResponse{
		Service:       "report-interpreter-api",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		Database:      database,
		OCRReady:      h.service.OCRReady(r.Context()),
		NLPProvider:   provider,
		NLPKeyLoaded:  provider != explainer.ProviderFallback,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode status response", "error", err)
	}
}
