package db

import (
	"fmt"
	"time"

	"github.com/banshee-data/mausbridge/internal/board"
	"github.com/banshee-data/mausbridge/internal/esc"
	"github.com/banshee-data/mausbridge/internal/lidar"
)

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (db *DB) RecordIMU(s board.IMUSample) error {
	_, err := db.Exec(
		`INSERT INTO imu_samples (
			ts_unix_ns, qw, qx, qy, qz,
			gyro_x, gyro_y, gyro_z, accel_x, accel_y, accel_z, yaw_rad
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		unixNanos(s.Time), s.QW, s.QX, s.QY, s.QZ,
		s.GyroX, s.GyroY, s.GyroZ, s.AccelX, s.AccelY, s.AccelZ, s.YawRadians(),
	)
	if err != nil {
		return fmt.Errorf("record imu sample: %w", err)
	}
	return nil
}

func (db *DB) RecordESC(t esc.Telemetry) error {
	_, err := db.Exec(
		`INSERT INTO esc_telemetry (
			ts_unix_ns, temperature_c, voltage_cv, current_ca, consumption, erpm
		) VALUES (?, ?, ?, ?, ?, ?)`,
		unixNanos(t.Time), t.Temperature, t.Voltage, t.Current, t.Consumption, t.ERPM,
	)
	if err != nil {
		return fmt.Errorf("record esc telemetry: %w", err)
	}
	return nil
}

// RecordScan stores a scan summary. Recording the same scan id twice
// replaces the earlier row.
func (db *DB) RecordScan(s lidar.Summary) error {
	_, err := db.Exec(
		`INSERT OR REPLACE INTO scan_summaries (
			scan_id, start_unix_ns, end_unix_ns, points, valid_points,
			mean_distance, stddev_distance, min_distance, max_distance,
			mean_intensity, recorded_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, unixNanos(s.Start), unixNanos(s.End), s.Points, s.ValidPoints,
		s.MeanDistance, s.StdDevDistance, s.MinDistance, s.MaxDistance,
		s.MeanIntensity, unixNanos(db.Clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("record scan %s: %w", s.ID, err)
	}
	return nil
}

// RecentScans returns up to limit summaries, newest first.
func (db *DB) RecentScans(limit int) ([]lidar.Summary, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.Query(
		`SELECT scan_id, start_unix_ns, end_unix_ns, points, valid_points,
			mean_distance, stddev_distance, min_distance, max_distance, mean_intensity
		FROM scan_summaries
		ORDER BY start_unix_ns DESC, recorded_unix_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []lidar.Summary
	for rows.Next() {
		var s lidar.Summary
		var start, end int64
		if err := rows.Scan(
			&s.ID, &start, &end, &s.Points, &s.ValidPoints,
			&s.MeanDistance, &s.StdDevDistance, &s.MinDistance, &s.MaxDistance,
			&s.MeanIntensity,
		); err != nil {
			return nil, err
		}
		s.Start = fromUnixNanos(start)
		s.End = fromUnixNanos(end)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecentESC returns up to limit telemetry frames, newest first.
func (db *DB) RecentESC(limit int) ([]esc.Telemetry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.Query(
		`SELECT ts_unix_ns, temperature_c, voltage_cv, current_ca, consumption, erpm
		FROM esc_telemetry ORDER BY ts_unix_ns DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query esc telemetry: %w", err)
	}
	defer rows.Close()

	var out []esc.Telemetry
	for rows.Next() {
		var t esc.Telemetry
		var ts int64
		if err := rows.Scan(&ts, &t.Temperature, &t.Voltage, &t.Current, &t.Consumption, &t.ERPM); err != nil {
			return nil, err
		}
		t.Time = fromUnixNanos(ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

// TableCounts reports the number of rows per recorder table.
func (db *DB) TableCounts() (map[string]int64, error) {
	counts := make(map[string]int64, 3)
	for _, table := range []string{"imu_samples", "esc_telemetry", "scan_summaries"} {
		var n int64
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
