package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medassist-ai/report-interpreter-api/internal/explainer"
	"github.com/medassist-ai/report-interpreter-api/internal/extractor"
	"github.com/medassist-ai/report-interpreter-api/internal/metrics"
	"github.com/medassist-ai/report-interpreter-api/internal/models"
	"github.com/medassist-ai/report-interpreter-api/internal/parser"
	"github.com/medassist-ai/report-interpreter-api/internal/repository"
	"github.com/medassist-ai/report-interpreter-api/internal/storage"
	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

// TextExtractor resolves artifact bytes into plain text. Satisfied by
// *extractor.Extractor; narrowed to an interface so tests can substitute a
// fake.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (extractor.Extraction, error)
	OCRReady(ctx context.Context) bool
}

// ExplanationGenerator produces the plain-language explanation and advice.
// Satisfied by *explainer.Generator.
type ExplanationGenerator interface {
	Generate(ctx context.Context, tests []models.ExtractedTest, rawText string) explainer.Result
	ProviderName() string
}

// ReportService drives the ingestion and interpretation pipeline:
// extract -> parse -> explain, with reports persisted between the two phases.
type ReportService interface {
	Ingest(ctx context.Context, userID string, req *models.IngestRequest) (*models.IngestResponse, error)
	Process(ctx context.Context, userID, id string) (*models.ProcessResponse, error)
	Get(ctx context.Context, userID, id string) (*models.Report, error)
	DownloadArtifact(ctx context.Context, userID, id string) ([]byte, string, error)
	List(ctx context.Context, userID string, page, limit int) (*models.ListResponse, error)
	Delete(ctx context.Context, userID, id string) error
	OCRReady(ctx context.Context) bool
	NLPProvider() string
}

type reportService struct {
	repo      repository.Repository
	storage   storage.Storage
	extractor TextExtractor
	generator ExplanationGenerator
	logger    *utils.Logger
}

func NewService(repo repository.Repository, store storage.Storage, extract TextExtractor, generator ExplanationGenerator, logger *utils.Logger) ReportService {
	return &reportService{
		repo:      repo,
		storage:   store,
		extractor: extract,
		generator: generator,
		logger:    logger,
	}
}

func supportedContentType(contentType string) bool {
	switch contentType {
	case "application/pdf", "image/jpeg", "image/png", "text/plain":
		return true
	}
	return false
}

// Ingest resolves raw text from the uploaded artifact (or takes the supplied
// text verbatim), stores the artifact, and persists a report in the uploaded
// state. Nothing is persisted when extraction fails.
func (s *reportService) Ingest(ctx context.Context, userID string, req *models.IngestRequest) (*models.IngestResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && len(req.File) == 0 {
		return nil, utils.NewBadRequestError("Please upload a file or provide raw text.")
	}

	reportID := utils.GenerateID()

	var (
		rawText     string
		engine      string
		filePath    = models.TextOnlySentinel
		contentType = "text/plain"
	)

	switch {
	case text != "":
		rawText = text
		engine = models.EngineRawText

	case req.ContentType == "text/plain":
		decoded, err := extractor.DecodeText(req.File)
		if err != nil {
			s.logger.Warn("Failed to decode text upload", "error", err, "filename", req.Filename)
			return nil, utils.NewUnprocessableError("Could not read this file, please try a plain-text export.")
		}
		rawText = decoded
		engine = models.EngineRawText
		contentType = req.ContentType

	default:
		if !supportedContentType(req.ContentType) {
			s.logger.Warn("Unsupported content type", "content_type", req.ContentType, "filename", req.Filename)
			return nil, utils.NewBadRequestError(fmt.Sprintf("Unsupported file type '%s'. Only PDF, JPEG, and PNG are allowed", req.ContentType))
		}

		result, err := s.extractor.Extract(ctx, req.File, req.ContentType)
		if err != nil {
			s.logger.Warn("Text extraction failed", "error", err, "content_type", req.ContentType, "filename", req.Filename)
			if errors.Is(err, extractor.ErrUnreadable) {
				return nil, utils.NewUnprocessableError(extractor.ErrUnreadable.Error())
			}
			return nil, utils.NewUnprocessableError("Could not read this file, please try a clearer scan.")
		}
		rawText = result.Text
		engine = result.Engine
		contentType = req.ContentType
	}

	if engine == models.EngineRawText {
		metrics.ExtractionsTotal.WithLabelValues(models.EngineRawText).Inc()
	}

	if len(req.File) > 0 {
		filePath = fmt.Sprintf("reports/%s/%s", reportID, req.Filename)
		if err := s.storage.Upload(ctx, filePath, req.File, contentType); err != nil {
			s.logger.Error("Failed to store artifact", "error", err, "file_path", filePath)
			return nil, utils.NewInternalError("Failed to store report file")
		}
	}

	now := time.Now()
	report := &models.Report{
		ID:           reportID,
		UserID:       userID,
		FilePath:     filePath,
		OriginalName: req.Filename,
		ContentType:  contentType,
		Engine:       engine,
		RawText:      rawText,
		Status:       models.StatusUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, report); err != nil {
		s.logger.Error("Failed to save report", "error", err, "report_id", reportID)
		if filePath != models.TextOnlySentinel {
			_ = s.storage.Delete(ctx, filePath)
		}
		return nil, utils.NewInternalError("Failed to save report")
	}

	s.logger.Info("Report ingested",
		"report_id", reportID,
		"engine", engine,
		"content_type", contentType,
		"text_length", len(rawText))

	return &models.IngestResponse{
		ReportID:      reportID,
		Engine:        engine,
		RawTextLength: len(rawText),
		Status:        report.Status,
	}, nil
}

// Process parses the report's raw text, generates the explanation, and flips
// the status to processed in a single write. Re-invoking replaces the derived
// fields; concurrent Process calls on the same id race last-write-wins by
// accepted design.
func (s *reportService) Process(ctx context.Context, userID, id string) (*models.ProcessResponse, error) {
	report, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	parsed := parser.Parse(report.RawText)
	result := s.generator.Generate(ctx, parsed.Tests, report.RawText)

	report.Tests = parsed.Tests
	report.Explanation = result.Explanation
	report.Advice = result.Advice
	report.Summary = parsed.Summary
	report.Status = models.StatusProcessed

	if err := s.repo.UpdateProcessed(ctx, report); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.NewNotFoundError("Report not found")
		}
		s.logger.Error("Failed to save processed report", "error", err, "report_id", id)
		return nil, utils.NewInternalError("Failed to save processing results")
	}

	metrics.ProcessDurationSeconds.Observe(time.Since(start).Seconds())

	s.logger.Info("Report processed",
		"report_id", id,
		"tests", len(parsed.Tests),
		"provider", result.Provider)

	return &models.ProcessResponse{
		ID:          report.ID,
		Tests:       report.Tests,
		Explanation: report.Explanation,
		Advice:      report.Advice,
		Summary:     report.Summary,
		Provider:    result.Provider,
	}, nil
}

func (s *reportService) Get(ctx context.Context, userID, id string) (*models.Report, error) {
	return s.getOwned(ctx, userID, id)
}

func (s *reportService) DownloadArtifact(ctx context.Context, userID, id string) ([]byte, string, error) {
	report, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}

	if report.FilePath == models.TextOnlySentinel {
		return nil, "", utils.NewNotFoundError("Report has no stored file")
	}

	data, err := s.storage.Download(ctx, report.FilePath)
	if err != nil {
		s.logger.Error("Failed to download artifact", "error", err, "file_path", report.FilePath)
		return nil, "", utils.NewInternalError("Failed to retrieve report file")
	}

	return data, report.ContentType, nil
}

func (s *reportService) List(ctx context.Context, userID string, page, limit int) (*models.ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	reports, total, err := s.repo.List(ctx, userID, page, limit)
	if err != nil {
		s.logger.Error("Failed to list reports", "error", err)
		return nil, utils.NewInternalError("Failed to list reports")
	}

	summaries := make([]models.ReportSummary, len(reports))
	for i, r := range reports {
		summary := r.Summary
		if summary == "" {
			summary = "Pending processing"
		}
		tests := r.Tests
		if tests == nil {
			tests = []models.ExtractedTest{}
		}
		summaries[i] = models.ReportSummary{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			Status:    r.Status,
			Summary:   summary,
			Tests:     tests,
		}
	}

	return &models.ListResponse{
		Page:     page,
		Total:    total,
		PageSize: limit,
		Reports:  summaries,
	}, nil
}

func (s *reportService) Delete(ctx context.Context, userID, id string) error {
	report, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	if report.FilePath != models.TextOnlySentinel {
		if err := s.storage.Delete(ctx, report.FilePath); err != nil {
			// The row is still removed; orphaned objects are preferable to
			// reports the user cannot delete.
			s.logger.Warn("Artifact cleanup failed", "error", err, "file_path", report.FilePath)
		}
	}

	if err := s.repo.Delete(ctx, id, userID); err != nil {
		s.logger.Error("Failed to delete report", "error", err, "report_id", id)
		return utils.NewInternalError("Failed to delete report")
	}

	s.logger.Info("Report deleted", "report_id", id)
	return nil
}

func (s *reportService) OCRReady(ctx context.Context) bool {
	return s.extractor.OCRReady(ctx)
}

func (s *reportService) NLPProvider() string {
	return s.generator.ProviderName()
}

func (s *reportService) getOwned(ctx context.Context, userID, id string) (*models.Report, error) {
	report, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		s.logger.Error("Failed to load report", "error", err, "report_id", id)
		return nil, utils.NewInternalError("Failed to retrieve report")
	}
	if report == nil {
		// Covers both unknown ids and other users' reports; the response
		// never reveals which.
		return nil, utils.NewNotFoundError("Report not found")
	}
	return report, nil
}
