package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, full_name, role, password_hash, is_active, must_change_password, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.PasswordHash,
		&u.IsActive, &u.MustChangePassword, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserStore) Create(email, fullName string, role model.UserRole, passwordHash string) (*model.User, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO users (email, full_name, role, password_hash, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		email, fullName, role, passwordHash, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, _ := result.LastInsertId()
	return s.GetByID(id)
}

// BulkCreate inserts users in a single transaction. All-or-nothing: one
// duplicate email rolls the whole batch back.
func (s *UserStore) BulkCreate(users []model.User) ([]model.User, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin bulk create: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	created := make([]model.User, 0, len(users))
	for _, u := range users {
		result, err := tx.Exec(
			`INSERT INTO users (email, full_name, role, password_hash, is_active, must_change_password, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 1, 1, ?, ?)`,
			u.Email, u.FullName, u.Role, u.PasswordHash, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("bulk create user %s: %w", u.Email, err)
		}
		id, _ := result.LastInsertId()
		u.ID = id
		u.IsActive = true
		u.MustChangePassword = true
		u.CreatedAt = now
		u.UpdatedAt = now
		created = append(created, u)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk create: %w", err)
	}
	return created, nil
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdatePassword replaces the hash and flags whether the user must change it
// at next login (true for admin-initiated resets).
func (s *UserStore) UpdatePassword(id int64, passwordHash string, mustChange bool) error {
	_, err := s.db.Exec(
		`UPDATE users SET password_hash = ?, must_change_password = ?, updated_at = ? WHERE id = ?`,
		passwordHash, mustChange, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *UserStore) SetActive(id int64, active bool) error {
	_, err := s.db.Exec(
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return nil
}
