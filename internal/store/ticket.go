package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
)

type TicketStore struct {
	db *sql.DB
}

func NewTicketStore(db *sql.DB) *TicketStore {
	return &TicketStore{db: db}
}

const ticketColumns = `id, ticket_number, title, description, status, priority, requester_id, assignee_id, is_deleted, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*model.Ticket, error) {
	t := &model.Ticket{}
	var requester, assignee sql.NullInt64
	err := row.Scan(&t.ID, &t.TicketNumber, &t.Title, &t.Description, &t.Status,
		&t.Priority, &requester, &assignee, &t.IsDeleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if requester.Valid {
		t.RequesterID = &requester.Int64
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.Int64
	}
	return t, nil
}

func (s *TicketStore) Create(title, description, priority string, requesterID, assigneeID *int64) (*model.Ticket, error) {
	var seq int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM helpdesk_tickets`).Scan(&seq); err != nil {
		return nil, fmt.Errorf("next ticket number: %w", err)
	}
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO helpdesk_tickets (ticket_number, title, description, status, priority, requester_id, assignee_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fmt.Sprintf("TKT-%05d", seq), title, description, model.TicketOpen, priority, requesterID, assigneeID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	id, _ := result.LastInsertId()
	return s.GetByID(id)
}

func (s *TicketStore) GetByID(id int64) (*model.Ticket, error) {
	t, err := scanTicket(s.db.QueryRow(
		`SELECT `+ticketColumns+` FROM helpdesk_tickets WHERE id = ? AND is_deleted = 0`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return t, nil
}

func (s *TicketStore) List() ([]model.Ticket, error) {
	rows, err := s.db.Query(
		`SELECT ` + ticketColumns + ` FROM helpdesk_tickets WHERE is_deleted = 0 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (s *TicketStore) Update(id int64, title, description string, status model.TicketStatus, priority string, assigneeID *int64) (*model.Ticket, error) {
	_, err := s.db.Exec(
		`UPDATE helpdesk_tickets SET title = ?, description = ?, status = ?, priority = ?, assignee_id = ?, updated_at = ?
		 WHERE id = ? AND is_deleted = 0`,
		title, description, status, priority, assigneeID, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update ticket %d: %w", id, err)
	}
	return s.GetByID(id)
}

// SoftDelete hides the ticket from listings; the row stays exportable for
// audit until a hard purge.
func (s *TicketStore) SoftDelete(id int64) error {
	_, err := s.db.Exec(
		`UPDATE helpdesk_tickets SET is_deleted = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("delete ticket %d: %w", id, err)
	}
	return nil
}
