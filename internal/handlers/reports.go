package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/medassist-ai/report-interpreter-api/internal/middleware"
	"github.com/medassist-ai/report-interpreter-api/internal/models"
	"github.com/medassist-ai/report-interpreter-api/internal/services"
	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

const (
	MaxFileSize = 10 << 20 // 10MB
)

type ReportHandler struct {
	service services.ReportService
	logger  *utils.Logger
}

func NewReportHandler(service services.ReportService, logger *utils.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger,
	}
}

// IngestReport accepts a multipart form with either a "file" part (PDF, JPEG,
// PNG, or plain text) or a "text" field with raw report text.
func (h *ReportHandler) IngestReport(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > MaxFileSize {
		h.respondError(w, utils.NewBadRequestError("File size exceeds 10MB limit"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize)

	if err := r.ParseMultipartForm(MaxFileSize); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			h.respondError(w, utils.NewBadRequestError("File size exceeds 10MB limit"))
			return
		}
		h.respondError(w, utils.NewBadRequestError("Invalid form data"))
		return
	}

	req := &models.IngestRequest{
		Text: r.FormValue("text"),
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
		if err != nil {
			h.respondError(w, utils.NewInternalError("Failed to read file"))
			return
		}
		if len(data) > MaxFileSize {
			h.respondError(w, utils.NewBadRequestError("File size exceeds 10MB limit"))
			return
		}

		req.File = data
		req.Filename = header.Filename
		req.ContentType = determineContentType(header.Filename, header.Header.Get("Content-Type"))

		h.logger.Info("Report upload attempt",
			"filename", header.Filename,
			"reported_content_type", header.Header.Get("Content-Type"),
			"determined_content_type", req.ContentType)
	}

	resp, err := h.service.Ingest(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *ReportHandler) ProcessReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, utils.NewBadRequestError("Report ID is required"))
		return
	}

	resp, err := h.service.Process(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, utils.NewBadRequestError("Report ID is required"))
		return
	}

	report, err := h.service.Get(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) DownloadReportFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, utils.NewBadRequestError("Report ID is required"))
		return
	}

	data, contentType, err := h.service.DownloadArtifact(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write artifact response", "error", err)
	}
}

func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	resp, err := h.service.List(r.Context(), middleware.UserID(r.Context()), page, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, utils.NewBadRequestError("Report ID is required"))
		return
	}

	if err := h.service.Delete(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return defaultValue
	}
	return parsed
}

// determineContentType resolves the media type from the filename extension
// with fallback to the multipart header.
func determineContentType(filename, headerContentType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".txt":
		return "text/plain"
	}

	// Strip any parameters (e.g. "text/plain; charset=utf-8").
	if i := strings.Index(headerContentType, ";"); i >= 0 {
		headerContentType = strings.TrimSpace(headerContentType[:i])
	}
	return headerContentType
}

func (h *ReportHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *ReportHandler) respondError(w http.ResponseWriter, err error) {
	var status int
	var message string

	switch e := err.(type) {
	case *utils.AppError:
		status = e.StatusCode
		message = e.Message
	default:
		status = http.StatusInternalServerError
		message = "Internal server error"
	}

	h.logger.Error("Request error", "status", status, "error", message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
