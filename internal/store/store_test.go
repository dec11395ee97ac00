package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/lox/airquality/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func nf(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

func TestUpsertAndGetStations(t *testing.T) {
	store := setupTestStore(t)

	for _, st := range models.Stations {
		if err := store.UpsertStation(st); err != nil {
			t.Fatalf("UpsertStation(%s): %v", st.Name, err)
		}
	}
	moved := models.Station{Name: "Dongsi", Latitude: 1, Longitude: 2}
	if err := store.UpsertStation(moved); err != nil {
		t.Fatalf("UpsertStation update: %v", err)
	}

	stations, err := store.GetStations()
	if err != nil {
		t.Fatalf("GetStations: %v", err)
	}
	if len(stations) != len(models.Stations) {
		t.Fatalf("len(stations) = %d, want %d", len(stations), len(models.Stations))
	}
	if stations[0].Name != "Aotizhongxin" {
		t.Errorf("stations[0] = %q, want Aotizhongxin", stations[0].Name)
	}
	for _, st := range stations {
		if st.Name == "Dongsi" && st.Latitude != 1 {
			t.Errorf("Dongsi latitude = %v, want 1 after update", st.Latitude)
		}
	}
}

func TestReplaceObservations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := []models.Observation{
		{Station: "Dongsi", Year: 2013, Month: 3, Day: 1, Hour: 0, PM25: nf(4), Temp: nf(-0.7), WindDir: sql.NullString{String: "NNW", Valid: true}},
		{Station: "Dongsi", Year: 2013, Month: 3, Day: 1, Hour: 1, PM25: nf(8)},
	}
	n, err := store.ReplaceObservations(ctx, first)
	if err != nil {
		t.Fatalf("ReplaceObservations: %v", err)
	}
	if n != 2 {
		t.Errorf("stored = %d, want 2", n)
	}

	second := []models.Observation{
		{Station: "Tiantan", Year: 2014, Month: 1, Day: 2, Hour: 3, O3: nf(12.5)},
	}
	if _, err := store.ReplaceObservations(ctx, second); err != nil {
		t.Fatalf("ReplaceObservations second: %v", err)
	}

	got, err := store.GetObservations(ctx)
	if err != nil {
		t.Fatalf("GetObservations: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(observations) = %d, want 1", len(got))
	}
	if got[0].Station != "Tiantan" || !got[0].O3.Valid || got[0].O3.Float64 != 12.5 {
		t.Errorf("observation = %+v, want Tiantan O3=12.5", got[0])
	}
	if got[0].PM25.Valid {
		t.Error("PM25 should be null")
	}

	count, err := store.CountObservations()
	if err != nil {
		t.Fatalf("CountObservations: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestGetObservations_PreservesNulls(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	obs := []models.Observation{
		{Station: "Aotizhongxin", Year: 2013, Month: 3, Day: 1, Hour: 0, PM25: nf(10), WindDir: sql.NullString{String: "N", Valid: true}},
	}
	if _, err := store.ReplaceObservations(ctx, obs); err != nil {
		t.Fatalf("ReplaceObservations: %v", err)
	}

	got, err := store.GetObservations(ctx)
	if err != nil {
		t.Fatalf("GetObservations: %v", err)
	}
	o := got[0]
	if o.PM10.Valid || o.CO.Valid || o.Temp.Valid {
		t.Errorf("expected null PM10/CO/TEMP, got %+v", o)
	}
	if o.WindDir.String != "N" {
		t.Errorf("WindDir = %q, want N", o.WindDir.String)
	}
}

func TestImportRuns(t *testing.T) {
	store := setupTestStore(t)

	last, err := store.LastSuccessfulImport()
	if err != nil {
		t.Fatalf("LastSuccessfulImport: %v", err)
	}
	if last != nil {
		t.Fatalf("expected no successful import, got %+v", last)
	}

	failed, err := store.StartImportRun("data/all_data.csv")
	if err != nil {
		t.Fatalf("StartImportRun: %v", err)
	}
	failed.ErrorMessage = sql.NullString{String: "missing columns", Valid: true}
	if err := store.CompleteImportRun(failed); err != nil {
		t.Fatalf("CompleteImportRun: %v", err)
	}

	ok, err := store.StartImportRun("data/all_data.csv")
	if err != nil {
		t.Fatalf("StartImportRun: %v", err)
	}
	ok.Success = true
	ok.ContentHash = sql.NullString{String: "abc123", Valid: true}
	ok.RowsParsed = sql.NullInt64{Int64: 10, Valid: true}
	ok.RowsStored = sql.NullInt64{Int64: 10, Valid: true}
	if err := store.CompleteImportRun(ok); err != nil {
		t.Fatalf("CompleteImportRun: %v", err)
	}

	last, err = store.LastSuccessfulImport()
	if err != nil {
		t.Fatalf("LastSuccessfulImport: %v", err)
	}
	if last == nil {
		t.Fatal("LastSuccessfulImport returned nil")
	}
	if last.ContentHash.String != "abc123" {
		t.Errorf("ContentHash = %q, want abc123", last.ContentHash.String)
	}
	if !last.FinishedAt.Valid {
		t.Error("FinishedAt should be set")
	}

	runs, err := store.GetRecentImportRuns(10)
	if err != nil {
		t.Fatalf("GetRecentImportRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].ID != ok.ID {
		t.Errorf("runs[0].ID = %d, want newest run %d", runs[0].ID, ok.ID)
	}
	if runs[1].Success || runs[1].ErrorMessage.String != "missing columns" {
		t.Errorf("runs[1] = %+v, want failed run with message", runs[1])
	}
}

func TestRawPayloads(t *testing.T) {
	store := setupTestStore(t)

	payloads := []string{"first", "second", "third", "fourth"}
	for i, p := range payloads {
		id, err := store.StoreRawPayload(int64(i+1), "data/all_data.csv", []byte(p))
		if err != nil {
			t.Fatalf("StoreRawPayload(%q): %v", p, err)
		}
		if id == 0 {
			t.Errorf("StoreRawPayload(%q) returned 0 for new content", p)
		}
	}

	id, err := store.StoreRawPayload(9, "data/all_data.csv", []byte("first"))
	if err != nil {
		t.Fatalf("StoreRawPayload duplicate: %v", err)
	}
	if id != 0 {
		t.Errorf("duplicate id = %d, want 0", id)
	}

	sum := sha256.Sum256([]byte("second"))
	got, err := store.GetRawPayloadByHash(hex.EncodeToString(sum[:]))
	if err != nil {
		t.Fatalf("GetRawPayloadByHash: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("payload = %q, want second", got)
	}

	missing, err := store.GetRawPayloadByHash("nope")
	if err != nil || missing != nil {
		t.Errorf("missing hash = (%q, %v), want (nil, nil)", missing, err)
	}

	pruned, err := store.PruneRawPayloads(2)
	if err != nil {
		t.Fatalf("PruneRawPayloads: %v", err)
	}
	if pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}

	stats, err := store.GetRawPayloadStats()
	if err != nil {
		t.Fatalf("GetRawPayloadStats: %v", err)
	}
	if stats.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", stats.TotalCount)
	}
	if stats.SourceSizeBytes != int64(len("third")+len("fourth")) {
		t.Errorf("SourceSizeBytes = %d, want %d", stats.SourceSizeBytes, len("third")+len("fourth"))
	}
}

func TestOpen_PragmasOnEveryConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "airquality.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		// Hold each connection so the pool has to open a fresh one.
		conn, err := db.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn: %v", err)
		}
		defer conn.Close()

		var timeout int
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("busy_timeout: %v", err)
		}
		if timeout != 5000 {
			t.Errorf("conn %d busy_timeout = %d, want 5000", i, timeout)
		}

		var mode string
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("journal_mode: %v", err)
		}
		if mode != "wal" {
			t.Errorf("conn %d journal_mode = %q, want wal", i, mode)
		}
	}
}
