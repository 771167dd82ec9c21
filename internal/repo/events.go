package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"polling/internal/domain"
	"polling/internal/identity"
)

// EventFilter narrows journal queries. Zero fields match everything.
type EventFilter struct {
	Type       string
	EntityKind string
	EntityID   string
	Actor      identity.Address
}

func (f EventFilter) clauses() ([]string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if !f.Actor.IsZero() {
		clauses = append(clauses, "actor=?")
		args = append(args, f.Actor.String())
	}
	return clauses, args
}

// LatestEvents returns up to limit events, newest first.
func (r Repo) LatestEvents(ctx context.Context, limit int, f EventFilter) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	clauses, args := f.clauses()
	args = append(args, limit)
	return r.queryEvents(ctx, `SELECT id,op_id,ts,type,actor,entity_kind,entity_id,payload_json FROM events WHERE `+
		strings.Join(clauses, " AND ")+` ORDER BY id DESC LIMIT ?`, args...)
}

// EventsAfter returns events with an id greater than after, oldest first.
func (r Repo) EventsAfter(ctx context.Context, after int64, f EventFilter) ([]domain.Event, error) {
	clauses, args := f.clauses()
	clauses = append(clauses, "id>?")
	args = append(args, after)
	return r.queryEvents(ctx, `SELECT id,op_id,ts,type,actor,entity_kind,entity_id,payload_json FROM events WHERE `+
		strings.Join(clauses, " AND ")+` ORDER BY id`, args...)
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var (
			e                  domain.Event
			ts, actor, payload string
			entityID           sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OpID, &ts, &e.Type, &actor, &e.EntityKind, &entityID, &payload); err != nil {
			return nil, err
		}
		if e.TS, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, err
		}
		e.Actor = identity.Address(actor)
		e.EntityID = entityID.String
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
