package repo

import (
	"context"

	"guyub/internal/domain"
)

// LatestActivity returns the newest activity rows, optionally for one neighborhood
// and strictly older than beforeID when it is positive.
func (r Repo) LatestActivity(ctx context.Context, limit int, beforeID int64, neighborhoodID, entityKind string) ([]domain.Activity, error) {
	query := `SELECT id,ts,type,COALESCE(neighborhood_id,''),COALESCE(org,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM activity_log WHERE 1=1`
	var args []any
	if beforeID > 0 {
		query += ` AND id<?`
		args = append(args, beforeID)
	}
	if neighborhoodID != "" {
		query += ` AND neighborhood_id=?`
		args = append(args, neighborhoodID)
	}
	if entityKind != "" {
		query += ` AND entity_kind=?`
		args = append(args, entityKind)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var ts int64
		if err := rows.Scan(&a.ID, &ts, &a.Type, &a.NeighborhoodID, &a.Org, &a.EntityKind, &a.EntityID, &a.ActorID, &a.Payload); err != nil {
			return nil, err
		}
		a.TS = fromMS(ts)
		res = append(res, a)
	}
	return res, rows.Err()
}
