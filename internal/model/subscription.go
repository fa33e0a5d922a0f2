package model

import "time"

type Subscription struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Vendor      string     `json:"vendor"`
	Seats       int        `json:"seats"`
	CostCents   int64      `json:"cost_cents"`
	Currency    string     `json:"currency"`
	RenewalDate *time.Time `json:"renewal_date,omitempty"`
	OwnerID     *int64     `json:"owner_id,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
