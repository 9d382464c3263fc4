package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist-ai/report-interpreter-api/internal/explainer"
	"github.com/medassist-ai/report-interpreter-api/internal/extractor"
	"github.com/medassist-ai/report-interpreter-api/internal/labtests"
	"github.com/medassist-ai/report-interpreter-api/internal/models"
	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

type memoryRepo struct {
	mu      sync.Mutex
	reports map[string]models.Report
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{reports: make(map[string]models.Report)}
}

func (m *memoryRepo) Create(ctx context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = *r
	return nil
}

func (m *memoryRepo) GetByID(ctx context.Context, id, userID string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok || r.UserID != userID {
		return nil, nil
	}
	copied := r
	return &copied, nil
}

func (m *memoryRepo) UpdateProcessed(ctx context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.reports[r.ID]
	if !ok || existing.UserID != r.UserID {
		return sql.ErrNoRows
	}
	m.reports[r.ID] = *r
	return nil
}

func (m *memoryRepo) List(ctx context.Context, userID string, page, limit int) ([]models.Report, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Report
	for _, r := range m.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) Delete(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, id)
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeExtractor struct {
	result extractor.Extraction
	err    error
	ready  bool
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, contentType string) (extractor.Extraction, error) {
	return f.result, f.err
}

func (f *fakeExtractor) OCRReady(ctx context.Context) bool { return f.ready }

func newTestService(repo *memoryRepo, store *fakeStorage, ext *fakeExtractor) ReportService {
	logger := utils.NewLogger("error")
	generator := explainer.NewGenerator(nil, logger)
	return NewService(repo, store, ext, generator, logger)
}

func TestIngestRawText(t *testing.T) {
	svc := newTestService(newMemoryRepo(), newFakeStorage(), &fakeExtractor{ready: true})

	resp, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{
		Text: "  Fasting Glucose: 92 mg/dL  ",
	})
	require.NoError(t, err)

	assert.Equal(t, models.EngineRawText, resp.Engine)
	assert.Equal(t, models.StatusUploaded, resp.Status)
	assert.Equal(t, len("Fasting Glucose: 92 mg/dL"), resp.RawTextLength)
}

func TestIngestNothingSupplied(t *testing.T) {
	svc := newTestService(newMemoryRepo(), newFakeStorage(), &fakeExtractor{})

	_, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{})

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.StatusCode)
}

func TestIngestUnsupportedType(t *testing.T) {
	svc := newTestService(newMemoryRepo(), newFakeStorage(), &fakeExtractor{})

	_, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{
		File:        []byte("GIF89a"),
		Filename:    "scan.gif",
		ContentType: "image/gif",
	})

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.StatusCode)
}

func TestIngestFileStoresArtifact(t *testing.T) {
	store := newFakeStorage()
	ext := &fakeExtractor{result: extractor.Extraction{Text: "Total Cholesterol 265", Engine: models.EngineOCR}}
	svc := newTestService(newMemoryRepo(), store, ext)

	resp, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{
		File:        []byte{0xFF, 0xD8, 0xFF},
		Filename:    "labs.jpg",
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)

	assert.Equal(t, models.EngineOCR, resp.Engine)
	assert.Contains(t, store.objects, "reports/"+resp.ReportID+"/labs.jpg")
}

func TestIngestUnreadableScanPersistsNothing(t *testing.T) {
	repo := newMemoryRepo()
	store := newFakeStorage()
	ext := &fakeExtractor{err: extractor.ErrUnreadable}
	svc := newTestService(repo, store, ext)

	_, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{
		File:        []byte{0xFF, 0xD8, 0xFF},
		Filename:    "blurry.jpg",
		ContentType: "image/jpeg",
	})

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 422, appErr.StatusCode)
	assert.Empty(t, repo.reports, "no report row for failed extraction")
	assert.Empty(t, store.objects, "no artifact for failed extraction")
}

func TestProcessEndToEndFallback(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newFakeStorage(), &fakeExtractor{})

	ingested, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{
		Text: "Blood Glucose 110 and Total Cholesterol 265",
	})
	require.NoError(t, err)

	resp, err := svc.Process(context.Background(), "user-a", ingested.ReportID)
	require.NoError(t, err)

	require.Len(t, resp.Tests, 2)
	assert.Equal(t, labtests.StatusHigh, resp.Tests[0].Status)
	assert.Equal(t, labtests.StatusHigh, resp.Tests[1].Status)
	assert.Equal(t, explainer.ProviderFallback, resp.Provider)
	assert.Contains(t, resp.Explanation, "Glucose looks high at 110 mg/dL")
	assert.Contains(t, resp.Explanation, "Cholesterol looks high at 265 mg/dL")
	assert.NotEmpty(t, resp.Advice)

	stored, err := svc.Get(context.Background(), "user-a", ingested.ReportID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, stored.Status)
	assert.Equal(t, resp.Summary, stored.Summary)
}

func TestProcessNoRecognizedValues(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newFakeStorage(), &fakeExtractor{})

	ingested, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{
		Text: "Clinical notes with no lab panel attached.",
	})
	require.NoError(t, err)

	resp, err := svc.Process(context.Background(), "user-a", ingested.ReportID)
	require.NoError(t, err)

	assert.Empty(t, resp.Tests)
	assert.Equal(t, "No glucose or cholesterol values were detected in the report.", resp.Summary)
	assert.Contains(t, resp.Explanation, "within the expected ranges")
}

func TestProcessReplacesDerivedFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newFakeStorage(), &fakeExtractor{})

	ingested, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{
		Text: "Glucose 92",
	})
	require.NoError(t, err)

	first, err := svc.Process(context.Background(), "user-a", ingested.ReportID)
	require.NoError(t, err)
	second, err := svc.Process(context.Background(), "user-a", ingested.ReportID)
	require.NoError(t, err)

	assert.Equal(t, first.Tests, second.Tests)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestProcessCrossUserDenied(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newFakeStorage(), &fakeExtractor{})

	ingested, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{Text: "Glucose 92"})
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), "user-b", ingested.ReportID)

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.StatusCode, "cross-user access must look like not-found")

	stored, err := svc.Get(context.Background(), "user-a", ingested.ReportID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploaded, stored.Status, "status must not change on denied access")
}

func TestListSummaries(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newFakeStorage(), &fakeExtractor{})

	_, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{Text: "Glucose 92"})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), "user-a", 1, 10)
	require.NoError(t, err)

	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "Pending processing", resp.Reports[0].Summary)
	assert.Equal(t, 1, resp.Total)
}

func TestDeleteReleasesArtifact(t *testing.T) {
	repo := newMemoryRepo()
	store := newFakeStorage()
	ext := &fakeExtractor{result: extractor.Extraction{Text: "Glucose 92", Engine: models.EngineOCR}}
	svc := newTestService(repo, store, ext)

	ingested, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{
		File:        []byte{0xFF, 0xD8},
		Filename:    "labs.jpg",
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "user-a", ingested.ReportID))

	assert.Empty(t, store.objects)
	got, err := svc.Get(context.Background(), "user-a", ingested.ReportID)
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.StatusCode)
	assert.Nil(t, got)
}

func TestDownloadArtifact(t *testing.T) {
	repo := newMemoryRepo()
	store := newFakeStorage()
	ext := &fakeExtractor{result: extractor.Extraction{Text: "Glucose 92", Engine: models.EngineOCR}}
	svc := newTestService(repo, store, ext)

	ingested, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{
		File:        []byte{0xFF, 0xD8, 0x01},
		Filename:    "labs.jpg",
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)

	data, contentType, err := svc.DownloadArtifact(context.Background(), "user-a", ingested.ReportID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0x01}, data)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestDownloadArtifactTextOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, newFakeStorage(), &fakeExtractor{})

	ingested, err := svc.Ingest(context.Background(), "user-a", &models.IngestRequest{Text: "Glucose 92"})
	require.NoError(t, err)

	_, _, err = svc.DownloadArtifact(context.Background(), "user-a", ingested.ReportID)
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.StatusCode)
}
