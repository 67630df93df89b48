// Package db persists mission logs in SQLite: one row per run plus the
// artifacts found and the recorded and pruned traces.
package db

import (
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"gonum.org/v1/gonum/spatial/r3"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/pTommyed/osgar/internal/artifact"
)

// ErrMissionNotFound is returned when a mission ID is not in the log.
var ErrMissionNotFound = errors.New("mission not found")

// Trace kinds stored in trace_points
const (
	TraceRaw    = "raw"
	TracePruned = "pruned"
)

// Mission statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the mission log at path and migrates it
// to the latest schema.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// MissionRecord is one logged run.
type MissionRecord struct {
	ID        string
	Strategy  string
	RightWall bool
	Status    string
	Error     string
	Explored  float64
	Traveled  float64
	Final     r3.Vec
	Started   time.Duration
	Finished  time.Duration
	// CreatedAt is the unix time the row was written.
	CreatedAt int64

	Artifacts []artifact.Record
	Trace     []r3.Vec
	Pruned    []r3.Vec
}

// SaveMission stores rec and its artifacts and traces in one transaction.
func (db *DB) SaveMission(rec *MissionRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO missions (
			mission_id, strategy, right_wall, status, error, explored_m, traveled_m,
			final_x, final_y, final_z, started_s, finished_s
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Strategy, rec.RightWall, rec.Status, rec.Error, rec.Explored, rec.Traveled,
		rec.Final.X, rec.Final.Y, rec.Final.Z, rec.Started.Seconds(), rec.Finished.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("insert mission %s: %w", rec.ID, err)
	}

	for i, a := range rec.Artifacts {
		if _, err := tx.Exec(`INSERT INTO mission_artifacts (mission_id, seq, label, x, y, z) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, i, a.Label, a.Position.X, a.Position.Y, a.Position.Z); err != nil {
			return fmt.Errorf("insert artifact %d: %w", i, err)
		}
	}

	stmt, err := tx.Prepare(`INSERT INTO trace_points (mission_id, kind, seq, x, y, z) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, tr := range []struct {
		kind   string
		points []r3.Vec
	}{{TraceRaw, rec.Trace}, {TracePruned, rec.Pruned}} {
		for i, p := range tr.points {
			if _, err := stmt.Exec(rec.ID, tr.kind, i, p.X, p.Y, p.Z); err != nil {
				return fmt.Errorf("insert %s trace point %d: %w", tr.kind, i, err)
			}
		}
	}
	return tx.Commit()
}

// Missions lists logged runs, newest first, without artifacts or traces.
func (db *DB) Missions() ([]MissionRecord, error) {
	rows, err := db.Query(`
		SELECT mission_id, strategy, right_wall, status, error, explored_m, traveled_m,
			final_x, final_y, final_z, started_s, finished_s, created_at
		FROM missions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MissionRecord
	for rows.Next() {
		rec, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMission(row rowScanner) (*MissionRecord, error) {
	var rec MissionRecord
	var started, finished float64
	if err := row.Scan(&rec.ID, &rec.Strategy, &rec.RightWall, &rec.Status, &rec.Error,
		&rec.Explored, &rec.Traveled, &rec.Final.X, &rec.Final.Y, &rec.Final.Z,
		&started, &finished, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Started = time.Duration(started * float64(time.Second))
	rec.Finished = time.Duration(finished * float64(time.Second))
	return &rec, nil
}

// LoadMission returns the run with the given ID including its artifacts and
// traces.
func (db *DB) LoadMission(id string) (*MissionRecord, error) {
	row := db.QueryRow(`
		SELECT mission_id, strategy, right_wall, status, error, explored_m, traveled_m,
			final_x, final_y, final_z, started_s, finished_s, created_at
		FROM missions WHERE mission_id = ?`, id)
	rec, err := scanMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMissionNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT label, x, y, z FROM mission_artifacts WHERE mission_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a artifact.Record
		if err := rows.Scan(&a.Label, &a.Position.X, &a.Position.Y, &a.Position.Z); err != nil {
			return nil, err
		}
		rec.Artifacts = append(rec.Artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if rec.Trace, err = db.TracePoints(id, TraceRaw); err != nil {
		return nil, err
	}
	if rec.Pruned, err = db.TracePoints(id, TracePruned); err != nil {
		return nil, err
	}
	return rec, nil
}

// TracePoints returns the stored trace of the given kind in order.
func (db *DB) TracePoints(id, kind string) ([]r3.Vec, error) {
	rows, err := db.Query(`SELECT x, y, z FROM trace_points WHERE mission_id = ? AND kind = ? ORDER BY seq`, id, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pts []r3.Vec
	for rows.Next() {
		var p r3.Vec
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, rows.Err()
}

// LatestMissionID returns the most recently stored mission.
func (db *DB) LatestMissionID() (string, error) {
	var id string
	err := db.QueryRow(`SELECT mission_id FROM missions ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMissionNotFound
	}
	return id, err
}

// DeleteMission removes a run and, through the foreign keys, its points.
func (db *DB) DeleteMission(id string) error {
	res, err := db.Exec(`DELETE FROM missions WHERE mission_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrMissionNotFound, id)
	}
	return nil
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Printf("[db] tailsql disabled: %v", err)
	} else {
		tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
			Label: "Mission log",
		})
		debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	}

	debug.Handle("backup", "Create and download a backup of the mission log now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("missions-backup-%d.db", time.Now().UnixNano()))
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := os.Remove(backupPath); err != nil {
				log.Printf("[db] failed to remove backup file: %v", err)
			}
		}()

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer backupFile.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
		w.Header().Set("Content-Type", "application/gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			log.Printf("[db] backup copy failed: %v", err)
		}
	}))
}
