package models

import (
	"time"

	"github.com/medassist-ai/report-interpreter-api/internal/labtests"
)

// TextOnlySentinel marks a report that was ingested from raw text and has no
// backing artifact in object storage.
const TextOnlySentinel = "text-only"

// Report statuses. A report is terminal once processed; processing failures
// surface as errors without flipping the status.
const (
	StatusUploaded  = "uploaded"
	StatusProcessed = "processed"
)

// Extraction engine tags.
const (
	EnginePDFDirect = "pdf-direct"
	EngineOCR       = "ocr"
	EngineRawText   = "raw-text"
)

// ExtractedTest is one measured lab value found in a report. Status is always
// derived from value and the reference range; it is never set independently.
type ExtractedTest struct {
	Name   string          `json:"name"`
	Value  float64         `json:"value"`
	Unit   string          `json:"unit"`
	Status labtests.Status `json:"status"`
}

// Report is the central persisted entity.
type Report struct {
	ID           string          `json:"id" db:"id"`
	UserID       string          `json:"-" db:"user_id"`
	FilePath     string          `json:"file_path" db:"file_path"`
	OriginalName string          `json:"original_name,omitempty" db:"original_name"`
	ContentType  string          `json:"content_type" db:"content_type"`
	Engine       string          `json:"engine" db:"engine"`
	RawText      string          `json:"raw_text" db:"raw_text"`
	Tests        []ExtractedTest `json:"tests"`
	Explanation  string          `json:"explanation,omitempty" db:"explanation"`
	Advice       []string        `json:"advice,omitempty"`
	Summary      string          `json:"summary,omitempty" db:"summary"`
	Status       string          `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// IngestRequest carries an uploaded artifact or raw report text into the
// pipeline. Exactly one of File or Text should be set; File wins when Text is
// empty.
type IngestRequest struct {
	File        []byte
	Filename    string
	ContentType string
	Text        string
}

type IngestResponse struct {
	ReportID      string `json:"reportId"`
	Engine        string `json:"engine"`
	RawTextLength int    `json:"rawTextLength"`
	Status        string `json:"status"`
}

type ProcessResponse struct {
	ID          string          `json:"id"`
	Tests       []ExtractedTest `json:"tests"`
	Explanation string          `json:"explanation"`
	Advice      []string        `json:"advice"`
	Summary     string          `json:"summary"`
	Provider    string          `json:"provider"`
}

type ReportSummary struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Status    string          `json:"status"`
	Summary   string          `json:"summary"`
	Tests     []ExtractedTest `json:"tests"`
}

type ListResponse struct {
	Page     int             `json:"page"`
	Total    int             `json:"total"`
	PageSize int             `json:"pageSize"`
	Reports  []ReportSummary `json:"reports"`
}

type StatusResponse struct {
	Service       string  `json:"service"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Database      string  `json:"database"`
	OCRReady      bool    `json:"ocrReady"`
	NLPProvider   string  `json:"nlpProvider"`
	NLPKeyLoaded  bool    `json:"nlpApiKeyLoaded"`
}
