package repo

import (
	"context"
	"database/sql"

	"guyub/internal/domain"
)

const announcementColumns = `id,neighborhood_id,org,title,body,pinned,status,tags_json,created_at,created_by,updated_at,updated_by`

func scanAnnouncement(s scanner) (domain.Announcement, error) {
	var a domain.Announcement
	var pinned int
	var tags string
	var created, updated int64
	if err := s.Scan(&a.ID, &a.NeighborhoodID, &a.Org, &a.Title, &a.Body, &pinned, &a.Status, &tags, &created, &a.CreatedBy, &updated, &a.UpdatedBy); err != nil {
		return a, notFound(err, "announcement")
	}
	a.Pinned = pinned != 0
	a.Tags = decodeList(tags)
	a.CreatedAt = fromMS(created)
	a.UpdatedAt = fromMS(updated)
	return a, nil
}

func (r Repo) InsertAnnouncement(ctx context.Context, tx *sql.Tx, a domain.Announcement) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO announcements(`+announcementColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.NeighborhoodID, a.Org, a.Title, a.Body, boolInt(a.Pinned), a.Status, encodeList(a.Tags),
		ms(a.CreatedAt), a.CreatedBy, ms(a.UpdatedAt), a.UpdatedBy)
	return err
}

func (r Repo) UpdateAnnouncement(ctx context.Context, tx *sql.Tx, a domain.Announcement) error {
	res, err := tx.ExecContext(ctx, `UPDATE announcements SET neighborhood_id=?,org=?,title=?,body=?,pinned=?,status=?,tags_json=?,updated_at=?,updated_by=? WHERE id=?`,
		a.NeighborhoodID, a.Org, a.Title, a.Body, boolInt(a.Pinned), a.Status, encodeList(a.Tags), ms(a.UpdatedAt), a.UpdatedBy, a.ID)
	return mustAffect(res, err, "announcement")
}

func (r Repo) DeleteAnnouncement(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM announcements WHERE id=?`, id)
	return mustAffect(res, err, "announcement")
}

func (r Repo) GetAnnouncement(ctx context.Context, id string) (domain.Announcement, error) {
	return scanAnnouncement(r.DB.QueryRowContext(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id=?`, id))
}

func (r Repo) GetAnnouncementTx(ctx context.Context, tx *sql.Tx, id string) (domain.Announcement, error) {
	return scanAnnouncement(tx.QueryRowContext(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id=?`, id))
}

// ListAnnouncements lists pinned announcements first, then the rest, each
// newest first. The cursor is the createdAt of the last row served; when that
// row is pinned the next page continues the pinned section, otherwise only
// unpinned rows older than the cursor follow.
func (r Repo) ListAnnouncements(ctx context.Context, f ListFilter) ([]domain.Announcement, error) {
	cursor := f.Cursor
	f.Cursor = 0
	where, args := f.where("created_at", true)
	order := ` ORDER BY pinned DESC, created_at DESC, id DESC`
	if cursor > 0 {
		var pinned int
		cursorArgs := append(append([]any{}, args...), cursor)
		if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM announcements `+where+` AND pinned=1 AND created_at=?`, cursorArgs...).Scan(&pinned); err != nil {
			return nil, err
		}
		if pinned > 0 {
			where += ` AND ((pinned=1 AND created_at<?) OR pinned=0)`
		} else {
			where += ` AND pinned=0 AND created_at<?`
			order = ` ORDER BY created_at DESC, id DESC`
		}
		args = append(args, cursor)
	}
	limit, args := f.limitClause(args)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+announcementColumns+` FROM announcements `+where+order+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
