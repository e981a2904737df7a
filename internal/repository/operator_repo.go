package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reflow_oven/internal/models"
)

const (
	insertOperatorSQL       = `INSERT INTO users (username, password_hash) VALUES (?, ?)`
	selectOperatorByNameSQL = `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`
	selectOperatorsSQL      = `SELECT id, username, created_at FROM users ORDER BY id`
)

// OperatorSQLite keeps operator accounts in the users table.
type OperatorSQLite struct {
	db *sql.DB
}

var _ Authorization = (*OperatorSQLite)(nil)

func NewOperatorSQLite(db *sql.DB) *OperatorSQLite {
	return &OperatorSQLite{db: db}
}

func (r *OperatorSQLite) Create(ctx context.Context, username, hash string) (int, error) {
	res, err := r.db.ExecContext(ctx, insertOperatorSQL, username, hash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %q", ErrUserExists, username)
		}
		return 0, fmt.Errorf("insert user %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for user %q: %w", username, err)
	}
	return int(id), nil
}

func (r *OperatorSQLite) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, selectOperatorByNameSQL, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user %q: %w", username, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// List returns every operator without password hashes, oldest first.
func (r *OperatorSQLite) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, selectOperatorsSQL)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt = u.CreatedAt.UTC()
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// isUniqueViolation matches the SQLite constraint error text; the driver
// does not export a typed error for it.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
