package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, name, vendor, seats, cost_cents, currency, renewal_date, owner_id, is_active, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*model.Subscription, error) {
	sub := &model.Subscription{}
	var renewal sql.NullTime
	var owner sql.NullInt64
	err := row.Scan(&sub.ID, &sub.Name, &sub.Vendor, &sub.Seats, &sub.CostCents,
		&sub.Currency, &renewal, &owner, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if renewal.Valid {
		sub.RenewalDate = &renewal.Time
	}
	if owner.Valid {
		sub.OwnerID = &owner.Int64
	}
	return sub, nil
}

func (s *SubscriptionStore) Create(sub *model.Subscription) (*model.Subscription, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO subscriptions (name, vendor, seats, cost_cents, currency, renewal_date, owner_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		sub.Name, sub.Vendor, sub.Seats, sub.CostCents, sub.Currency, sub.RenewalDate, sub.OwnerID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	id, _ := result.LastInsertId()
	return s.GetByID(id)
}

func (s *SubscriptionStore) GetByID(id int64) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription %d: %w", id, err)
	}
	return sub, nil
}

func (s *SubscriptionStore) List() ([]model.Subscription, error) {
	rows, err := s.db.Query(
		`SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE is_active = 1 ORDER BY renewal_date`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *SubscriptionStore) Update(id int64, sub *model.Subscription) (*model.Subscription, error) {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET name = ?, vendor = ?, seats = ?, cost_cents = ?, currency = ?, renewal_date = ?, owner_id = ?, updated_at = ?
		 WHERE id = ?`,
		sub.Name, sub.Vendor, sub.Seats, sub.CostCents, sub.Currency, sub.RenewalDate, sub.OwnerID, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update subscription %d: %w", id, err)
	}
	return s.GetByID(id)
}

func (s *SubscriptionStore) Deactivate(id int64) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate subscription %d: %w", id, err)
	}
	return nil
}
