package database

import (
	"context"
	"database/sql"
	"fmt" // For error wrapping

	"immunization_bot/internal/domain/child"
)

// Custom errors
var ErrChildNotFound = fmt.Errorf("child not found")

type PostgresChildRepository struct {
	db *sql.DB
}

func NewPostgresChildRepository(db *sql.DB) *PostgresChildRepository {
	return &PostgresChildRepository{db: db}
}

const childColumns = `id, parent_telegram_id, name, birth_date, gender, created_at, updated_at`

func (r *PostgresChildRepository) Create(ctx context.Context, c *child.Child) error {
	query := `INSERT INTO children (parent_telegram_id, name, birth_date, gender)
               VALUES ($1, $2, $3, $4)
               RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, c.ParentTelegramID, c.Name, c.BirthDate, c.Gender).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating child: %w", err)
	}
	return nil
}

func (r *PostgresChildRepository) GetByID(ctx context.Context, id int64) (*child.Child, error) {
	query := `SELECT ` + childColumns + ` FROM children WHERE id = $1`
	c := &child.Child{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.ParentTelegramID, &c.Name, &c.BirthDate, &c.Gender, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrChildNotFound
		}
		return nil, fmt.Errorf("error getting child by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresChildRepository) ListByParent(ctx context.Context, parentTelegramID int64) ([]*child.Child, error) {
	query := `SELECT ` + childColumns + ` FROM children WHERE parent_telegram_id = $1 ORDER BY birth_date, id`
	rows, err := r.db.QueryContext(ctx, query, parentTelegramID)
	if err != nil {
		return nil, fmt.Errorf("error listing children by parent: %w", err)
	}
	defer rows.Close()
	return scanChildren(rows)
}

func scanChildren(rows *sql.Rows) ([]*child.Child, error) {
	children := make([]*child.Child, 0)
	for rows.Next() {
		c := &child.Child{}
		if err := rows.Scan(&c.ID, &c.ParentTelegramID, &c.Name, &c.BirthDate, &c.Gender, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning child row: %w", err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating child rows: %w", err)
	}
	return children, nil
}
