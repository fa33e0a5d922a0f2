package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
)

type DeviceUpdateStore struct {
	db *sql.DB
}

func NewDeviceUpdateStore(db *sql.DB) *DeviceUpdateStore {
	return &DeviceUpdateStore{db: db}
}

// Upsert records a device's patch report, keyed on device_name so repeated
// ingestion from the same device overwrites rather than accumulates.
func (s *DeviceUpdateStore) Upsert(u *model.DeviceUpdate) error {
	now := time.Now().UTC()
	reportedAt := u.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = now
	}
	_, err := s.db.Exec(
		`INSERT INTO device_updates (device_name, os_version, patch_level, compliant, reported_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(device_name) DO UPDATE SET
		   os_version = excluded.os_version,
		   patch_level = excluded.patch_level,
		   compliant = excluded.compliant,
		   reported_at = excluded.reported_at,
		   updated_at = excluded.updated_at`,
		u.DeviceName, u.OSVersion, u.PatchLevel, u.Compliant, reportedAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert device update %q: %w", u.DeviceName, err)
	}
	return nil
}

func (s *DeviceUpdateStore) List() ([]model.DeviceUpdate, error) {
	rows, err := s.db.Query(
		`SELECT id, device_name, os_version, patch_level, compliant, reported_at, created_at, updated_at
		 FROM device_updates ORDER BY device_name`)
	if err != nil {
		return nil, fmt.Errorf("list device updates: %w", err)
	}
	defer rows.Close()

	var updates []model.DeviceUpdate
	for rows.Next() {
		var u model.DeviceUpdate
		if err := rows.Scan(&u.ID, &u.DeviceName, &u.OSVersion, &u.PatchLevel,
			&u.Compliant, &u.ReportedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan device update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// ComplianceSummary returns (compliant, total) device counts.
func (s *DeviceUpdateStore) ComplianceSummary() (int64, int64, error) {
	var compliant, total int64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(compliant), 0), COUNT(*) FROM device_updates`,
	).Scan(&compliant, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("compliance summary: %w", err)
	}
	return compliant, total, nil
}
