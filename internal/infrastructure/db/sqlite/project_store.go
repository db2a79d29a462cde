package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

const projectColumns = `id, client, freelancer, amount, status, details, deadline,
	client_approved, freelancer_completed, winner, idempotency_key, created_at, updated_at`

// ProjectStore implements ports.ProjectStore on the projects table.
type ProjectStore struct {
	db *DB
}

func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// Allocate bumps the projects counter inside a transaction and returns the
// previous value, so the first id is 0.
func (s *ProjectStore) Allocate(ctx context.Context) (uint64, error) {
	var next int64
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`UPDATE counters SET value = value + 1 WHERE name = 'projects' RETURNING value`,
		).Scan(&next)
	})
	if err != nil {
		return 0, fmt.Errorf("allocate project id: %w", err)
	}
	return uint64(next - 1), nil
}

func (s *ProjectStore) Get(ctx context.Context, id uint64) (*domain.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, int64(id))

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (s *ProjectStore) Put(ctx context.Context, p *domain.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client = excluded.client,
			freelancer = excluded.freelancer,
			amount = excluded.amount,
			status = excluded.status,
			details = excluded.details,
			deadline = excluded.deadline,
			client_approved = excluded.client_approved,
			freelancer_completed = excluded.freelancer_completed,
			winner = excluded.winner,
			idempotency_key = excluded.idempotency_key,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		int64(p.ID),
		string(p.Client),
		string(p.Freelancer),
		int64(p.Amount),
		string(p.Status),
		p.Details,
		formatTime(p.Deadline),
		p.ClientApproved,
		p.FreelancerCompleted,
		string(p.Winner),
		p.IdempotencyKey,
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put project %d: %w", p.ID, err)
	}
	return nil
}

func (s *ProjectStore) HeldBalance(ctx context.Context) (domain.Amount, error) {
	var held int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM projects`).Scan(&held)
	if err != nil {
		return 0, fmt.Errorf("held balance: %w", err)
	}
	return domain.Amount(held), nil
}

func scanProject(row *sql.Row) (*domain.Project, error) {
	var (
		p                                  domain.Project
		id, amount                         int64
		client, freelancer, status, winner string
		deadline, createdAt, updatedAt     string
	)
	err := row.Scan(
		&id, &client, &freelancer, &amount, &status, &p.Details, &deadline,
		&p.ClientApproved, &p.FreelancerCompleted, &winner, &p.IdempotencyKey,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ID = uint64(id)
	p.Client = domain.Identity(client)
	p.Freelancer = domain.Identity(freelancer)
	p.Amount = domain.Amount(amount)
	p.Status = domain.ProjectStatus(status)
	p.Winner = domain.Identity(winner)

	if p.Deadline, err = parseTime(deadline); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
