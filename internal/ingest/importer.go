package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lox/airquality/internal/metrics"
	"github.com/lox/airquality/internal/models"
	"github.com/lox/airquality/internal/store"
)

// ArchiveKeep is the number of source payloads kept in the archive.
const ArchiveKeep = 3

// Importer loads a dataset source into the store, recording every attempt
// as an import run.
type Importer struct {
	store   *store.Store
	fetcher *Fetcher

	mu       sync.Mutex // serialises imports from the watcher, scheduler and CLI
	onChange []func(context.Context)
}

func NewImporter(store *store.Store, fetcher *Fetcher) *Importer {
	if fetcher == nil {
		fetcher = NewFetcher()
	}
	return &Importer{store: store, fetcher: fetcher}
}

// OnChange registers fn to run after an import stores a new observation set.
func (im *Importer) OnChange(fn func(context.Context)) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.onChange = append(im.onChange, fn)
}

// Import fetches, validates and stores source. Content identical to the last
// successful import is recorded as a skipped run and leaves the store alone.
func (im *Importer) Import(ctx context.Context, source string) (*models.ImportRun, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	log := slog.Default().With("component", "ingest", "source", source)

	run, err := im.store.StartImportRun(source)
	if err != nil {
		return nil, fmt.Errorf("start import run: %w", err)
	}

	changed, err := im.importRun(ctx, source, run)
	if err != nil {
		run.Success = false
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		metrics.ImportsTotal.WithLabelValues("error").Inc()
		log.Error("import failed", "run", run.ID, "error", err)
	} else {
		run.Success = true
		if run.Skipped {
			metrics.ImportsTotal.WithLabelValues("unchanged").Inc()
			log.Info("import skipped, content unchanged", "run", run.ID, "hash", run.ContentHash.String)
		} else {
			metrics.ImportsTotal.WithLabelValues("success").Inc()
			log.Info("import complete", "run", run.ID,
				"rows", run.RowsStored.Int64, "quality_flags", run.QualityFlags.Int64)
		}
	}

	if cerr := im.store.CompleteImportRun(run); cerr != nil {
		log.Error("complete import run", "run", run.ID, "error", cerr)
	}
	if err != nil {
		return run, err
	}

	if changed {
		for _, fn := range im.onChange {
			fn(ctx)
		}
	}
	return run, nil
}

func (im *Importer) importRun(ctx context.Context, source string, run *models.ImportRun) (bool, error) {
	data, err := im.fetcher.Fetch(ctx, source)
	if err != nil {
		return false, fmt.Errorf("fetch %s: %w", Scheme(source), err)
	}

	hash := sha256.Sum256(data)
	run.ContentHash = sql.NullString{String: hex.EncodeToString(hash[:]), Valid: true}

	last, err := im.store.LastSuccessfulImport()
	if err != nil {
		return false, fmt.Errorf("last import: %w", err)
	}
	if last != nil && last.ContentHash.Valid && last.ContentHash.String == run.ContentHash.String {
		count, err := im.store.CountObservations()
		if err != nil {
			return false, fmt.Errorf("count observations: %w", err)
		}
		if count > 0 {
			run.Skipped = true
			return false, nil
		}
	}

	parsed, err := ParseCSV(data)
	if err != nil {
		return false, fmt.Errorf("parse dataset: %w", err)
	}
	run.RowsParsed = sql.NullInt64{Int64: int64(len(parsed.Observations)), Valid: true}
	run.QualityFlags = sql.NullInt64{Int64: int64(parsed.FlaggedRows()), Valid: true}
	for flag, n := range parsed.Flags {
		metrics.QualityFlagsTotal.WithLabelValues(flag).Add(float64(n))
	}

	stored, err := im.store.ReplaceObservations(ctx, parsed.Observations)
	if err != nil {
		return false, fmt.Errorf("store observations: %w", err)
	}
	run.RowsStored = sql.NullInt64{Int64: int64(stored), Valid: true}

	im.archive(run.ID, source, data)
	return true, nil
}

// archive keeps a compressed copy of the stored payload. Failures are logged
// only; the observations are already committed.
func (im *Importer) archive(runID int64, source string, data []byte) {
	log := slog.Default().With("component", "ingest", "run", runID)
	id, err := im.store.StoreRawPayload(runID, source, data)
	if err != nil {
		log.Warn("archive payload", "error", err)
		return
	}
	pruned, err := im.store.PruneRawPayloads(ArchiveKeep)
	if err != nil {
		log.Warn("prune payload archive", "error", err)
		return
	}
	log.Debug("payload archived", "payload", id, "pruned", pruned)
}
