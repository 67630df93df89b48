package db

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pTommyed/osgar/internal/artifact"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "missions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord() *MissionRecord {
	return &MissionRecord{
		ID:        uuid.New().String(),
		Strategy:  "home",
		RightWall: true,
		Status:    StatusCompleted,
		Explored:  42.5,
		Traveled:  88.25,
		Final:     r3.Vec{X: 1, Y: -0.5, Z: 0.1},
		Started:   1500 * time.Millisecond,
		Finished:  12*time.Minute + 30*time.Second,
		Artifacts: []artifact.Record{
			{Label: "TYPE_BACKPACK", Position: r3.Vec{X: 10, Y: 2}},
			{Label: "TYPE_PHONE", Position: r3.Vec{X: 30, Y: -4, Z: 1.5}},
		},
		Trace:  []r3.Vec{{}, {X: 0.5}, {X: 1}, {X: 1.5}, {X: 2}, {X: 2.5}},
		Pruned: []r3.Vec{{}, {X: 2}, {X: 2.5}},
	}
}

func TestOpenMigratesToLatest(t *testing.T) {
	db := openTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(LatestVersion), version)
	assert.False(t, dirty)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrateDownAndUp(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	_, err = db.Exec("SELECT count(*) FROM trace_points")
	assert.Error(t, err)

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp(), "no change is not an error")
}

func TestSaveAndLoadMission(t *testing.T) {
	db := openTestDB(t)
	rec := sampleRecord()
	require.NoError(t, db.SaveMission(rec))

	got, err := db.LoadMission(rec.ID)
	require.NoError(t, err)
	assert.NotZero(t, got.CreatedAt)
	got.CreatedAt = 0
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("mission round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveMissionDuplicateRollsBack(t *testing.T) {
	db := openTestDB(t)
	rec := sampleRecord()
	require.NoError(t, db.SaveMission(rec))
	require.Error(t, db.SaveMission(rec))

	pts, err := db.TracePoints(rec.ID, TraceRaw)
	require.NoError(t, err)
	assert.Len(t, pts, len(rec.Trace))
}

func TestMissionsAndLatest(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LatestMissionID()
	assert.ErrorIs(t, err, ErrMissionNotFound)

	first, second := sampleRecord(), sampleRecord()
	second.Status = StatusFailed
	second.Error = "return home: no trace waypoint within reach"
	require.NoError(t, db.SaveMission(first))
	require.NoError(t, db.SaveMission(second))

	list, err := db.Missions()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, StatusFailed, list[0].Status)
	assert.Nil(t, list[0].Trace)

	latest, err := db.LatestMissionID()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest)
}

func TestDeleteMissionCascades(t *testing.T) {
	db := openTestDB(t)
	rec := sampleRecord()
	require.NoError(t, db.SaveMission(rec))
	require.NoError(t, db.DeleteMission(rec.ID))

	_, err := db.LoadMission(rec.ID)
	assert.True(t, errors.Is(err, ErrMissionNotFound))

	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM trace_points").Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, db.QueryRow("SELECT count(*) FROM mission_artifacts").Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, db.DeleteMission(rec.ID), ErrMissionNotFound)
}

func TestBackupRoute(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveMission(sampleRecord()))

	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(body[:16]))
}
