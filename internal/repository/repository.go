package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medassist-ai/report-interpreter-api/internal/models"
)

// Repository is the keyed store for reports. Every read and delete is scoped
// to the owning user in the WHERE clause, so cross-user access can never
// resolve a row.
type Repository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id, userID string) (*models.Report, error)
	UpdateProcessed(ctx context.Context, report *models.Report) error
	List(ctx context.Context, userID string, page, limit int) ([]models.Report, int, error)
	Delete(ctx context.Context, id, userID string) error
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, report *models.Report) error {
	testsJSON, adviceJSON, err := marshalDerived(report)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reports (id, user_id, file_path, original_name, content_type, engine,
		                     raw_text, tests, explanation, advice, summary, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.UserID,
		report.FilePath,
		report.OriginalName,
		report.ContentType,
		report.Engine,
		report.RawText,
		testsJSON,
		report.Explanation,
		adviceJSON,
		report.Summary,
		report.Status,
		report.CreatedAt,
		report.UpdatedAt,
	)

	return err
}

func (r *repository) GetByID(ctx context.Context, id, userID string) (*models.Report, error) {
	query := `
		SELECT id, user_id, file_path, original_name, content_type, engine,
		       raw_text, tests, explanation, advice, summary, status, created_at, updated_at
		FROM reports
		WHERE id = $1 AND user_id = $2
	`

	report, err := scanReport(r.db.QueryRowxContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return report, nil
}

// UpdateProcessed writes all derived fields and the processed status in a
// single statement, so a report is either fully processed or untouched.
func (r *repository) UpdateProcessed(ctx context.Context, report *models.Report) error {
	testsJSON, adviceJSON, err := marshalDerived(report)
	if err != nil {
		return err
	}

	query := `
		UPDATE reports
		SET tests = $3, explanation = $4, advice = $5, summary = $6, status = $7, updated_at = $8
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.UserID,
		testsJSON,
		report.Explanation,
		adviceJSON,
		report.Summary,
		report.Status,
		time.Now(),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *repository) List(ctx context.Context, userID string, page, limit int) ([]models.Report, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit

	query := `
		SELECT id, user_id, file_path, original_name, content_type, engine,
		       raw_text, tests, explanation, advice, summary, status, created_at, updated_at
		FROM reports
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryxContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}

func (r *repository) Delete(ctx context.Context, id, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var report models.Report
	var testsJSON, adviceJSON string

	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.FilePath,
		&report.OriginalName,
		&report.ContentType,
		&report.Engine,
		&report.RawText,
		&testsJSON,
		&report.Explanation,
		&adviceJSON,
		&report.Summary,
		&report.Status,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if testsJSON != "" {
		if err := json.Unmarshal([]byte(testsJSON), &report.Tests); err != nil {
			return nil, fmt.Errorf("failed to decode tests column: %w", err)
		}
	}
	if adviceJSON != "" {
		if err := json.Unmarshal([]byte(adviceJSON), &report.Advice); err != nil {
			return nil, fmt.Errorf("failed to decode advice column: %w", err)
		}
	}

	return &report, nil
}

func marshalDerived(report *models.Report) (string, string, error) {
	tests := report.Tests
	if tests == nil {
		tests = []models.ExtractedTest{}
	}
	testsJSON, err := json.Marshal(tests)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode tests: %w", err)
	}

	advice := report.Advice
	if advice == nil {
		advice = []string{}
	}
	adviceJSON, err := json.Marshal(advice)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode advice: %w", err)
	}

	return string(testsJSON), string(adviceJSON), nil
}
