package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// RawPayloadStats contains storage statistics for archived payloads.
type RawPayloadStats struct {
	TotalCount      int   `json:"count"`
	TotalSizeBytes  int64 `json:"compressed_bytes"`
	SourceSizeBytes int64 `json:"source_bytes"`
}

// StoreRawPayload archives a gzip-compressed copy of an imported dataset.
// Returns the payload ID, or 0 if the same content is already archived.
func (s *Store) StoreRawPayload(runID int64, source string, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)

	result, err := s.db.Exec(`
		INSERT INTO raw_payloads
		(import_run_id, fetched_at, source, payload_compressed, payload_hash, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, runID, time.Now().UTC(), source, buf.Bytes(), hex.EncodeToString(hash[:]), len(payload))
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}

	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRawPayloadByHash returns the decompressed payload with the given
// content hash, or nil if it is not archived.
func (s *Store) GetRawPayloadByHash(hash string) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM raw_payloads WHERE payload_hash = ?`, hash).
		Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// GetRawPayloadStats returns storage statistics for archived payloads.
func (s *Store) GetRawPayloadStats() (*RawPayloadStats, error) {
	stats := &RawPayloadStats{}
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(LENGTH(payload_compressed)), 0), COALESCE(SUM(size_bytes), 0)
		FROM raw_payloads
	`).Scan(&stats.TotalCount, &stats.TotalSizeBytes, &stats.SourceSizeBytes)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// PruneRawPayloads keeps the newest keep payloads and deletes the rest.
// Returns the number of deleted records.
func (s *Store) PruneRawPayloads(keep int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM raw_payloads
		WHERE id NOT IN (SELECT id FROM raw_payloads ORDER BY fetched_at DESC, id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
