package db

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mausbridge/internal/board"
	"github.com/banshee-data/mausbridge/internal/esc"
	"github.com/banshee-data/mausbridge/internal/lidar"
	"github.com/banshee-data/mausbridge/internal/timeutil"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.Clock = timeutil.NewMockClock(base)
	return db
}

func localHostRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestNewDBMigratesToLatest(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// a second MigrateUp is a no-op
	require.NoError(t, db.MigrateUp())

	counts, err := db.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"imu_samples": 0, "esc_telemetry": 0, "scan_summaries": 0}, counts)
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, db.RecordESC(esc.Telemetry{Time: base, Temperature: 30}))
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.RecentESC(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint8(30), got[0].Temperature)
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	_, err = db.TableCounts()
	assert.Error(t, err)

	require.NoError(t, db.MigrateUp())
	_, err = db.TableCounts()
	assert.NoError(t, err)
}

func TestRecordIMU(t *testing.T) {
	db := newTestDB(t)

	s := board.IMUSample{Time: base, QW: 1, GyroZ: -12, AccelZ: 8192}
	require.NoError(t, db.RecordIMU(s))

	var ts int64
	var qw, gyroZ, accelZ, yaw float64
	err := db.QueryRow(`SELECT ts_unix_ns, qw, gyro_z, accel_z, yaw_rad FROM imu_samples`).
		Scan(&ts, &qw, &gyroZ, &accelZ, &yaw)
	require.NoError(t, err)
	assert.Equal(t, base.UnixNano(), ts)
	assert.Equal(t, 1.0, qw)
	assert.Equal(t, -12.0, gyroZ)
	assert.Equal(t, 8192.0, accelZ)
	assert.Equal(t, 0.0, yaw)
}

func TestRecordESCNewestFirst(t *testing.T) {
	db := newTestDB(t)

	frames := []esc.Telemetry{
		{Time: base, Temperature: 35, Voltage: 1260, Current: 11, Consumption: 150, ERPM: 64},
		{Time: base.Add(time.Second), Temperature: 36, Voltage: 1250, Current: 600, Consumption: 151, ERPM: 300},
		{Time: base.Add(2 * time.Second), Temperature: 36, Voltage: 1248, Current: 0, Consumption: 151, ERPM: 0},
	}
	for _, f := range frames {
		require.NoError(t, db.RecordESC(f))
	}

	got, err := db.RecentESC(2)
	require.NoError(t, err)
	want := []esc.Telemetry{frames[2], frames[1]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RecentESC mismatch (-want +got):\n%s", diff)
	}

	got, err = db.RecentESC(0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordScanAndRecentScans(t *testing.T) {
	db := newTestDB(t)

	mk := func(id string, off time.Duration, mean float64) lidar.Summary {
		return lidar.Summary{
			ID:             id,
			Start:          base.Add(off),
			End:            base.Add(off + 100*time.Millisecond),
			Points:         450,
			ValidPoints:    430,
			MeanDistance:   mean,
			StdDevDistance: 12.5,
			MinDistance:    150,
			MaxDistance:    4200,
			MeanIntensity:  180.25,
		}
	}
	a := mk("scan-a", 0, 1000)
	b := mk("scan-b", 100*time.Millisecond, 1100)
	c := mk("scan-c", 200*time.Millisecond, 1200)
	for _, s := range []lidar.Summary{b, a, c} {
		require.NoError(t, db.RecordScan(s))
	}

	got, err := db.RecentScans(2)
	require.NoError(t, err)
	if diff := cmp.Diff([]lidar.Summary{c, b}, got); diff != "" {
		t.Errorf("RecentScans mismatch (-want +got):\n%s", diff)
	}

	// same id replaces
	a.MeanDistance = 999
	require.NoError(t, db.RecordScan(a))
	got, err = db.RecentScans(10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 999.0, got[2].MeanDistance)
}

func TestRecordScanZeroTimes(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.RecordScan(lidar.Summary{ID: "empty"}))
	got, err := db.RecentScans(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Start.IsZero())
	assert.True(t, got[0].End.IsZero())
}

func TestAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.RecordESC(esc.Telemetry{Time: base}))

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	t.Run("counts", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/recorder-counts", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var counts map[string]int64
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
		assert.Equal(t, int64(1), counts["esc_telemetry"])
	})

	t.Run("backup", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/backup", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "backup-")

		gz, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		raw, err := io.ReadAll(gz)
		require.NoError(t, err)
		require.True(t, len(raw) > 16)
		assert.Equal(t, "SQLite format 3\x00", string(raw[:16]))
	})

	t.Run("tailsql", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/tailsql/", nil))
		assert.NotEqual(t, http.StatusNotFound, w.Code)
	})
}
