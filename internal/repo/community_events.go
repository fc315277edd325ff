package repo

import (
	"context"
	"database/sql"

	"guyub/internal/domain"
)

const eventColumns = `id,neighborhood_id,org,title,description,location_text,all_day,status,tags_json,start_at,end_at,created_at,created_by,updated_at,updated_by`

func scanEvent(s scanner) (domain.CommunityEvent, error) {
	var e domain.CommunityEvent
	var allDay int
	var tags string
	var start, end, created, updated int64
	if err := s.Scan(&e.ID, &e.NeighborhoodID, &e.Org, &e.Title, &e.Description, &e.LocationText, &allDay, &e.Status, &tags,
		&start, &end, &created, &e.CreatedBy, &updated, &e.UpdatedBy); err != nil {
		return e, notFound(err, "event")
	}
	e.AllDay = allDay != 0
	e.Tags = decodeList(tags)
	e.StartAt = fromMS(start)
	e.EndAt = fromMS(end)
	e.CreatedAt = fromMS(created)
	e.UpdatedAt = fromMS(updated)
	return e, nil
}

func (r Repo) InsertEvent(ctx context.Context, tx *sql.Tx, e domain.CommunityEvent) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO community_events(`+eventColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.NeighborhoodID, e.Org, e.Title, e.Description, e.LocationText, boolInt(e.AllDay), e.Status, encodeList(e.Tags),
		ms(e.StartAt), ms(e.EndAt), ms(e.CreatedAt), e.CreatedBy, ms(e.UpdatedAt), e.UpdatedBy)
	return err
}

func (r Repo) UpdateEvent(ctx context.Context, tx *sql.Tx, e domain.CommunityEvent) error {
	res, err := tx.ExecContext(ctx, `UPDATE community_events SET neighborhood_id=?,org=?,title=?,description=?,location_text=?,all_day=?,status=?,tags_json=?,start_at=?,end_at=?,updated_at=?,updated_by=? WHERE id=?`,
		e.NeighborhoodID, e.Org, e.Title, e.Description, e.LocationText, boolInt(e.AllDay), e.Status, encodeList(e.Tags),
		ms(e.StartAt), ms(e.EndAt), ms(e.UpdatedAt), e.UpdatedBy, e.ID)
	return mustAffect(res, err, "event")
}

func (r Repo) DeleteEvent(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM community_events WHERE id=?`, id)
	return mustAffect(res, err, "event")
}

func (r Repo) GetEventTx(ctx context.Context, tx *sql.Tx, id string) (domain.CommunityEvent, error) {
	return scanEvent(tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM community_events WHERE id=?`, id))
}

// ListEvents orders by start time ascending; the cursor resumes strictly after it.
func (r Repo) ListEvents(ctx context.Context, f ListFilter) ([]domain.CommunityEvent, error) {
	where, args := f.where("start_at", false)
	limit, args := f.limitClause(args)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+eventColumns+` FROM community_events `+where+` ORDER BY start_at ASC, id ASC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.CommunityEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
