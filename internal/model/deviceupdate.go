package model

import "time"

// DeviceUpdate is one device's most recent patch report. Ingestion upserts
// on device_name, so there is exactly one row per device.
type DeviceUpdate struct {
	ID         int64     `json:"id"`
	DeviceName string    `json:"device_name"`
	OSVersion  string    `json:"os_version"`
	PatchLevel string    `json:"patch_level"`
	Compliant  bool      `json:"compliant"`
	ReportedAt time.Time `json:"reported_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
