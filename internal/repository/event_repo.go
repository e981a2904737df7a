package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"reflow_oven/internal/models"

	"github.com/google/uuid"
)

const (
	insertEventSQL = `INSERT INTO oven_events (id, occurred_at, type, message, meta) VALUES (?, ?, ?, ?, ?)`
	selectEventsSQL = `SELECT id, occurred_at, type, message, meta FROM oven_events`
)

// EventSQLite is the oven event log. Entries are never updated.
type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

// Append stores e. A missing id or timestamp is filled in and the type is
// stored upper-case.
func (r *EventSQLite) Append(ctx context.Context, e models.OvenEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var meta sql.NullString
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode %s metadata: %w", e.Type, err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	typ := normalizeType(e.Type)
	if _, err := r.db.ExecContext(ctx, insertEventSQL, e.EventID, e.OccurredAt.UTC(), typ, e.Description, meta); err != nil {
		return fmt.Errorf("append event %s: %w", typ, err)
	}
	return nil
}

// buildEventQuery renders q as SQL. Both bounds are inclusive and ties on
// time keep insertion order.
func buildEventQuery(q EventQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !q.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, q.To.UTC())
	}
	if typ := normalizeType(q.Type); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}

	var b strings.Builder
	b.WriteString(selectEventsSQL)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if q.NewestFirst {
		b.WriteString(" ORDER BY occurred_at DESC, rowid DESC")
	} else {
		b.WriteString(" ORDER BY occurred_at ASC, rowid ASC")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args
}

func (r *EventSQLite) List(ctx context.Context, q EventQuery) ([]models.OvenEvent, error) {
	query, args := buildEventQuery(q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.OvenEvent
	for rows.Next() {
		var (
			ev   models.OvenEvent
			meta sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &ev.Type, &ev.Description, &meta); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		ev.Metadata = decodeMeta(meta)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// decodeMeta returns stored JSON as a value, or the raw text when it does
// not parse.
func decodeMeta(meta sql.NullString) any {
	if !meta.Valid || meta.String == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(meta.String), &v); err != nil {
		return meta.String
	}
	return v
}

func normalizeType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
