package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/lox/airquality/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the SQLite database at path and applies the connection pragmas
// the dashboard relies on.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	// Pragmas in the DSN apply to every pooled connection.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (s *Store) UpsertStation(st models.Station) error {
	_, err := s.db.Exec(`
		INSERT INTO stations (name, latitude, longitude)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude
	`, st.Name, st.Latitude, st.Longitude)
	return err
}

func (s *Store) GetStations() ([]models.Station, error) {
	rows, err := s.db.Query(`SELECT name, latitude, longitude FROM stations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.Name, &st.Latitude, &st.Longitude); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// ReplaceObservations swaps the stored observation set for obs in a single
// transaction. Readers see either the old set or the new one.
func (s *Store) ReplaceObservations(ctx context.Context, obs []models.Observation) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return 0, fmt.Errorf("clear observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (station, year, month, day, hour, pm25, pm10, so2, no2, co, o3, temp, pres, dewp, rain, wd, wspm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.Station, o.Year, o.Month, o.Day, o.Hour,
			o.PM25, o.PM10, o.SO2, o.NO2, o.CO, o.O3,
			o.Temp, o.Pres, o.Dewp, o.Rain, o.WindDir, o.WSPM); err != nil {
			return 0, fmt.Errorf("insert observation %s %04d-%02d-%02d %02d: %w", o.Station, o.Year, o.Month, o.Day, o.Hour, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// GetObservations returns every stored observation ordered by station and time.
func (s *Store) GetObservations(ctx context.Context) ([]models.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, station, year, month, day, hour, pm25, pm10, so2, no2, co, o3, temp, pres, dewp, rain, wd, wspm
		FROM observations
		ORDER BY station, year, month, day, hour, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.ID, &o.Station, &o.Year, &o.Month, &o.Day, &o.Hour,
			&o.PM25, &o.PM10, &o.SO2, &o.NO2, &o.CO, &o.O3,
			&o.Temp, &o.Pres, &o.Dewp, &o.Rain, &o.WindDir, &o.WSPM); err != nil {
			return nil, err
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

func (s *Store) CountObservations() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM observations`).Scan(&n)
	return n, err
}

// SeedStations records the fixed station table.
func (s *Store) SeedStations() error {
	for _, st := range models.Stations {
		if err := s.UpsertStation(st); err != nil {
			return fmt.Errorf("seed station %s: %w", st.Name, err)
		}
	}
	return nil
}
