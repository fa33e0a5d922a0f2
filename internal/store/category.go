package store

import (
	"database/sql"
	"fmt"

	"github.com/opsdeck/opsdeck/internal/model"
)

type CategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) Create(name, description string) (*model.AssetCategory, error) {
	result, err := s.db.Exec(
		`INSERT INTO asset_categories (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.AssetCategory{ID: id, Name: name, Description: description}, nil
}

func (s *CategoryStore) GetByID(id int64) (*model.AssetCategory, error) {
	c := &model.AssetCategory{}
	err := s.db.QueryRow(
		`SELECT id, name, description FROM asset_categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (s *CategoryStore) List() ([]model.AssetCategory, error) {
	rows, err := s.db.Query(`SELECT id, name, description FROM asset_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []model.AssetCategory
	for rows.Next() {
		var c model.AssetCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *CategoryStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM asset_categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}
