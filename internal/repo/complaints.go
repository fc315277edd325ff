package repo

import (
	"context"
	"database/sql"

	"guyub/internal/domain"
)

const complaintColumns = `id,neighborhood_id,org,category,title,description,location_text,photo_urls_json,priority,is_anonymous,status,
assigned_to,assigned_role,assigned_at,resolution_note,resolved_at,resolved_by,occurred_at,
created_at,created_by,created_by_name,created_by_phone,updated_at,updated_by`

func scanComplaint(s scanner) (domain.Complaint, error) {
	var c domain.Complaint
	var photos string
	var anonymous int
	var assignedAt, resolvedAt sql.NullInt64
	var occurred, created, updated int64
	if err := s.Scan(&c.ID, &c.NeighborhoodID, &c.Org, &c.Category, &c.Title, &c.Description, &c.LocationText, &photos, &c.Priority, &anonymous, &c.Status,
		&c.Assignment.AssignedTo, &c.Assignment.AssignedRole, &assignedAt, &c.Resolution.Note, &resolvedAt, &c.Resolution.By, &occurred,
		&created, &c.CreatedBy, &c.CreatedByName, &c.CreatedByPhone, &updated, &c.UpdatedBy); err != nil {
		return c, notFound(err, "complaint")
	}
	c.PhotoURLs = decodeList(photos)
	c.IsAnonymous = anonymous != 0
	c.Assignment.AssignedAt = timePtr(assignedAt)
	c.Resolution.ResolvedAt = timePtr(resolvedAt)
	c.OccurredAt = fromMS(occurred)
	c.CreatedAt = fromMS(created)
	c.UpdatedAt = fromMS(updated)
	return c, nil
}

func (r Repo) InsertComplaint(ctx context.Context, tx *sql.Tx, c domain.Complaint) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO complaints(`+complaintColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.NeighborhoodID, c.Org, c.Category, c.Title, c.Description, c.LocationText, encodeList(c.PhotoURLs), c.Priority, boolInt(c.IsAnonymous), c.Status,
		c.Assignment.AssignedTo, c.Assignment.AssignedRole, nullableTime(c.Assignment.AssignedAt), c.Resolution.Note, nullableTime(c.Resolution.ResolvedAt), c.Resolution.By, ms(c.OccurredAt),
		ms(c.CreatedAt), c.CreatedBy, c.CreatedByName, c.CreatedByPhone, ms(c.UpdatedAt), c.UpdatedBy)
	return err
}

func (r Repo) UpdateComplaint(ctx context.Context, tx *sql.Tx, c domain.Complaint) error {
	res, err := tx.ExecContext(ctx, `UPDATE complaints SET neighborhood_id=?,org=?,category=?,title=?,description=?,location_text=?,photo_urls_json=?,priority=?,is_anonymous=?,status=?,
assigned_to=?,assigned_role=?,assigned_at=?,resolution_note=?,resolved_at=?,resolved_by=?,occurred_at=?,updated_at=?,updated_by=? WHERE id=?`,
		c.NeighborhoodID, c.Org, c.Category, c.Title, c.Description, c.LocationText, encodeList(c.PhotoURLs), c.Priority, boolInt(c.IsAnonymous), c.Status,
		c.Assignment.AssignedTo, c.Assignment.AssignedRole, nullableTime(c.Assignment.AssignedAt), c.Resolution.Note, nullableTime(c.Resolution.ResolvedAt), c.Resolution.By, ms(c.OccurredAt),
		ms(c.UpdatedAt), c.UpdatedBy, c.ID)
	return mustAffect(res, err, "complaint")
}

func (r Repo) DeleteComplaint(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM complaints WHERE id=?`, id)
	return mustAffect(res, err, "complaint")
}

func (r Repo) GetComplaint(ctx context.Context, id string) (domain.Complaint, error) {
	return scanComplaint(r.DB.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id=?`, id))
}

func (r Repo) GetComplaintTx(ctx context.Context, tx *sql.Tx, id string) (domain.Complaint, error) {
	return scanComplaint(tx.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id=?`, id))
}

// ListComplaints orders newest first by creation time.
func (r Repo) ListComplaints(ctx context.Context, f ListFilter) ([]domain.Complaint, error) {
	where, args := f.where("created_at", true)
	limit, args := f.limitClause(args)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+complaintColumns+` FROM complaints `+where+` ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
