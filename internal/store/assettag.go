package store

import (
	"database/sql"
	"fmt"

	"github.com/opsdeck/opsdeck/internal/model"
)

type AssetTagFormatStore struct {
	db *sql.DB
}

func NewAssetTagFormatStore(db *sql.DB) *AssetTagFormatStore {
	return &AssetTagFormatStore{db: db}
}

const tagFormatColumns = `id, category_id, prefix, start_number, padding_length, current_number, auto_increment`

func scanTagFormat(row interface{ Scan(...any) error }) (*model.AssetTagFormat, error) {
	f := &model.AssetTagFormat{}
	var category sql.NullInt64
	err := row.Scan(&f.ID, &category, &f.Prefix, &f.StartNumber, &f.PaddingLength,
		&f.CurrentNumber, &f.AutoIncrement)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		f.CategoryID = &category.Int64
	}
	return f, nil
}

// Global returns the category-less namespace format, or nil if none is
// configured.
func (s *AssetTagFormatStore) Global() (*model.AssetTagFormat, error) {
	f, err := scanTagFormat(s.db.QueryRow(
		`SELECT ` + tagFormatColumns + ` FROM asset_tag_formats WHERE category_id IS NULL`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get global tag format: %w", err)
	}
	return f, nil
}

// ByCategory returns the format configured for one category, or nil.
func (s *AssetTagFormatStore) ByCategory(categoryID int64) (*model.AssetTagFormat, error) {
	f, err := scanTagFormat(s.db.QueryRow(
		`SELECT `+tagFormatColumns+` FROM asset_tag_formats WHERE category_id = ?`, categoryID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag format for category %d: %w", categoryID, err)
	}
	return f, nil
}

func (s *AssetTagFormatStore) Save(f *model.AssetTagFormat) (*model.AssetTagFormat, error) {
	if f.ID == 0 {
		result, err := s.db.Exec(
			`INSERT INTO asset_tag_formats (category_id, prefix, start_number, padding_length, current_number, auto_increment)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			f.CategoryID, f.Prefix, f.StartNumber, f.PaddingLength, f.CurrentNumber, f.AutoIncrement,
		)
		if err != nil {
			return nil, fmt.Errorf("create tag format: %w", err)
		}
		f.ID, _ = result.LastInsertId()
		return f, nil
	}
	_, err := s.db.Exec(
		`UPDATE asset_tag_formats SET prefix = ?, start_number = ?, padding_length = ?, current_number = ?, auto_increment = ?
		 WHERE id = ?`,
		f.Prefix, f.StartNumber, f.PaddingLength, f.CurrentNumber, f.AutoIncrement, f.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update tag format %d: %w", f.ID, err)
	}
	return f, nil
}

// IncrementCurrent advances the persisted counter for counter-based
// namespaces. It is the commit step of reserve-next-asset-id and is
// independent of the gap-filling scan.
func (s *AssetTagFormatStore) IncrementCurrent(id int64) error {
	_, err := s.db.Exec(
		`UPDATE asset_tag_formats SET current_number = current_number + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment tag counter %d: %w", id, err)
	}
	return nil
}
