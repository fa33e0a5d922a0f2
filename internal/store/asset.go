package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
)

type AssetStore struct {
	db *sql.DB
}

func NewAssetStore(db *sql.DB) *AssetStore {
	return &AssetStore{db: db}
}

const assetColumns = `id, asset_tag, name, category_id, status, serial_number, assigned_to, purchase_date, is_active, created_at, updated_at`

func scanAsset(row interface{ Scan(...any) error }) (*model.Asset, error) {
	a := &model.Asset{}
	var category, assigned sql.NullInt64
	var purchased sql.NullTime
	err := row.Scan(&a.ID, &a.AssetTag, &a.Name, &category, &a.Status, &a.SerialNumber,
		&assigned, &purchased, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		a.CategoryID = &category.Int64
	}
	if assigned.Valid {
		a.AssignedTo = &assigned.Int64
	}
	if purchased.Valid {
		a.PurchaseDate = &purchased.Time
	}
	return a, nil
}

func (s *AssetStore) Create(a *model.Asset) (*model.Asset, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO assets (asset_tag, name, category_id, status, serial_number, assigned_to, purchase_date, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		a.AssetTag, a.Name, a.CategoryID, a.Status, a.SerialNumber, a.AssignedTo, a.PurchaseDate, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	id, _ := result.LastInsertId()
	return s.GetByID(id)
}

func (s *AssetStore) GetByID(id int64) (*model.Asset, error) {
	a, err := scanAsset(s.db.QueryRow(`SELECT `+assetColumns+` FROM assets WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %d: %w", id, err)
	}
	return a, nil
}

func (s *AssetStore) List() ([]model.Asset, error) {
	rows, err := s.db.Query(`SELECT ` + assetColumns + ` FROM assets WHERE is_active = 1 ORDER BY asset_tag`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

func (s *AssetStore) Update(id int64, a *model.Asset) (*model.Asset, error) {
	_, err := s.db.Exec(
		`UPDATE assets SET name = ?, category_id = ?, status = ?, serial_number = ?, assigned_to = ?, purchase_date = ?, updated_at = ?
		 WHERE id = ?`,
		a.Name, a.CategoryID, a.Status, a.SerialNumber, a.AssignedTo, a.PurchaseDate, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update asset %d: %w", id, err)
	}
	return s.GetByID(id)
}

// Retire marks the asset inactive. Its tag number becomes reusable by the
// gap-filling allocator once the row is purged; while the row exists the
// tag stays reserved.
func (s *AssetStore) Retire(id int64) error {
	_, err := s.db.Exec(
		`UPDATE assets SET status = ?, is_active = 0, updated_at = ? WHERE id = ?`,
		model.AssetRetired, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("retire asset %d: %w", id, err)
	}
	return nil
}

func (s *AssetStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete asset %d: %w", id, err)
	}
	return nil
}

// TagsWithPrefix returns every asset tag starting with the prefix,
// regardless of asset active state.
func (s *AssetStore) TagsWithPrefix(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT asset_tag FROM assets WHERE asset_tag LIKE ? || '%'`, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan tags with prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// TagExists reports whether any asset currently holds the exact tag.
func (s *AssetStore) TagExists(tag string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM assets WHERE asset_tag = ?`, tag).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check tag %q: %w", tag, err)
	}
	return n > 0, nil
}
