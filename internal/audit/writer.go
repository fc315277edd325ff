package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends activity rows. Append must run inside the mutation's transaction.
type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

// Entry identifies what a mutation touched.
type Entry struct {
	Type           string
	NeighborhoodID string
	Org            string
	EntityKind     string
	EntityID       string
	ActorID        string
	Payload        Payload
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	payload := e.Payload
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO activity_log(ts,type,neighborhood_id,org,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?,?)`,
		now().UTC().UnixMilli(), e.Type, nullable(e.NeighborhoodID), nullable(e.Org), e.EntityKind, nullable(e.EntityID), e.ActorID, string(data))
	if err != nil {
		return fmt.Errorf("append activity %s: %w", e.Type, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
