package store

import (
	"database/sql"
	"time"

	"github.com/lox/airquality/internal/models"
)

// StartImportRun records the start of a dataset import.
func (s *Store) StartImportRun(source string) (*models.ImportRun, error) {
	run := &models.ImportRun{
		StartedAt: time.Now().UTC(),
		Source:    source,
	}

	result, err := s.db.Exec(`
		INSERT INTO import_runs (started_at, source, success)
		VALUES (?, ?, FALSE)
	`, run.StartedAt, run.Source)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteImportRun updates the import run with results.
func (s *Store) CompleteImportRun(run *models.ImportRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE import_runs SET
			finished_at = ?,
			content_hash = ?,
			rows_parsed = ?,
			rows_stored = ?,
			quality_flags = ?,
			skipped = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.ContentHash, run.RowsParsed, run.RowsStored,
		run.QualityFlags, run.Skipped, run.Success, run.ErrorMessage, run.ID)
	return err
}

// LastSuccessfulImport returns the most recent import that stored data or
// found the content unchanged, or nil if there is none.
func (s *Store) LastSuccessfulImport() (*models.ImportRun, error) {
	runs, err := s.queryImportRuns(`
		SELECT id, started_at, finished_at, source, content_hash, rows_parsed, rows_stored,
		       quality_flags, skipped, success, error_message
		FROM import_runs
		WHERE success = TRUE
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// GetRecentImportRuns returns the latest import runs, newest first.
func (s *Store) GetRecentImportRuns(limit int) ([]models.ImportRun, error) {
	return s.queryImportRuns(`
		SELECT id, started_at, finished_at, source, content_hash, rows_parsed, rows_stored,
		       quality_flags, skipped, success, error_message
		FROM import_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
}

func (s *Store) queryImportRuns(query string, args ...any) ([]models.ImportRun, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.ImportRun
	for rows.Next() {
		var r models.ImportRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.ContentHash,
			&r.RowsParsed, &r.RowsStored, &r.QualityFlags, &r.Skipped, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
