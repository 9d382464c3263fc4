package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medassist-ai/report-interpreter-api/internal/handlers"
	"github.com/medassist-ai/report-interpreter-api/internal/middleware"
	"github.com/medassist-ai/report-interpreter-api/internal/services"
	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

func NewRouter(reportService services.ReportService, db *sqlx.DB, jwtSecret string, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Recovery(logger))

	reportHandler := handlers.NewReportHandler(reportService, logger)
	statusHandler := handlers.NewStatusHandler(reportService, db, logger)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Operational probes
	api.HandleFunc("/status", statusHandler.GetStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Report endpoints, owner-scoped behind bearer auth
	reports := api.PathPrefix("/reports").Subrouter()
	reports.Use(middleware.Auth(jwtSecret))
	reports.HandleFunc("/upload", reportHandler.IngestReport).Methods(http.MethodPost)
	reports.HandleFunc("/{id}/process", reportHandler.ProcessReport).Methods(http.MethodPost)
	reports.HandleFunc("/{id}/file", reportHandler.DownloadReportFile).Methods(http.MethodGet)
	reports.HandleFunc("/{id}", reportHandler.GetReport).Methods(http.MethodGet)
	reports.HandleFunc("", reportHandler.ListReports).Methods(http.MethodGet)
	reports.HandleFunc("/{id}", reportHandler.DeleteReport).Methods(http.MethodDelete)

	return r
}
