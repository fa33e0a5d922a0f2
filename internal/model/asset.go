package model

import "time"

type AssetStatus string

const (
	AssetInService AssetStatus = "in_service"
	AssetInRepair  AssetStatus = "in_repair"
	AssetRetired   AssetStatus = "retired"
)

type Asset struct {
	ID           int64       `json:"id"`
	AssetTag     string      `json:"asset_tag"`
	Name         string      `json:"name"`
	CategoryID   *int64      `json:"category_id,omitempty"`
	Status       AssetStatus `json:"status"`
	SerialNumber string      `json:"serial_number,omitempty"`
	AssignedTo   *int64      `json:"assigned_to,omitempty"`
	PurchaseDate *time.Time  `json:"purchase_date,omitempty"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type AssetCategory struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AssetTagFormat describes how tags are generated under one namespace.
// A nil CategoryID means the global namespace. CurrentNumber is only
// meaningful for counter-based (auto-increment) namespaces; gap-filling
// namespaces derive the next number by scanning existing tags.
type AssetTagFormat struct {
	ID            int64  `json:"id"`
	CategoryID    *int64 `json:"category_id,omitempty"`
	Prefix        string `json:"prefix"`
	StartNumber   int    `json:"start_number"`
	PaddingLength int    `json:"padding_length"`
	CurrentNumber int    `json:"current_number"`
	AutoIncrement bool   `json:"auto_increment"`
}
