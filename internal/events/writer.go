package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"polling/internal/domain"
)

// Writer appends ledger events to the journal table.
type Writer struct {
	Now func() time.Time
}

// Append stores evt inside tx under the operation id opID and returns the
// journal id it was assigned.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, opID string, evt domain.Event) (int64, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := evt.TS
	if ts.IsZero() {
		ts = w.Now()
	}
	payload := evt.Payload
	if payload == nil {
		payload = domain.EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal event payload: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO events(op_id,ts,type,actor,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		opID, ts.UTC().Format(time.RFC3339), evt.Type, evt.Actor.String(), evt.EntityKind, nullable(evt.EntityID), string(data))
	if err != nil {
		return 0, fmt.Errorf("append event %s: %w", evt.Type, err)
	}
	return res.LastInsertId()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
