package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"corebank/internal/audit"
	id "corebank/pkg/domain"
)

// Store persists audit records in PostgreSQL. The audit_records table carries
// no UPDATE or DELETE path; rows are append-only.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, record audit.Record) error {
	query := `
		INSERT INTO audit_records (
			id, actor_id, role, action, target_type, target_id,
			outcome, timestamp, detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.ActorID.String(),
		string(record.Role),
		record.Action,
		record.TargetType,
		record.TargetID,
		string(record.Outcome),
		record.Timestamp,
		record.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// List returns matching records in insertion order (timestamp, id).
func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if !filter.ActorID.IsZero() {
		conds = append(conds, "actor_id = "+arg(filter.ActorID.String()))
	}
	if filter.Action != "" {
		conds = append(conds, "action = "+arg(filter.Action))
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "timestamp >= "+arg(filter.Since))
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "timestamp <= "+arg(filter.Until))
	}

	query := `
		SELECT id, actor_id, role, action, target_type, target_id,
		       outcome, timestamp, detail
		FROM audit_records
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var record audit.Record
		var rawActor, rawRole, rawOutcome string
		if err := rows.Scan(
			&record.ID,
			&rawActor,
			&rawRole,
			&record.Action,
			&record.TargetType,
			&record.TargetID,
			&rawOutcome,
			&record.Timestamp,
			&record.Detail,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		actorUUID, err := uuid.Parse(rawActor)
		if err != nil {
			return nil, fmt.Errorf("parse actor id: %w", err)
		}
		record.ActorID = id.UserID(actorUUID)
		record.Role = id.Role(rawRole)
		record.Outcome = audit.Outcome(rawOutcome)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}
