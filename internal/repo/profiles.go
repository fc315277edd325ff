package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"guyub/internal/domain"
)

const profileColumns = `uid,name,phone,nik,address,neighborhood_id,photo_url,role,status,verified_by,verified_at,created_at,updated_at`

func scanProfile(s scanner) (domain.Profile, error) {
	var p domain.Profile
	var verifiedAt sql.NullInt64
	var created, updated int64
	if err := s.Scan(&p.UID, &p.Name, &p.Phone, &p.NIK, &p.Address, &p.NeighborhoodID, &p.PhotoURL, &p.Role, &p.Status, &p.VerifiedBy, &verifiedAt, &created, &updated); err != nil {
		return p, notFound(err, "profile")
	}
	p.VerifiedAt = timePtr(verifiedAt)
	p.CreatedAt = fromMS(created)
	p.UpdatedAt = fromMS(updated)
	return p, nil
}

func (r Repo) GetProfile(ctx context.Context, uid string) (domain.Profile, error) {
	return scanProfile(r.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM users WHERE uid=?`, uid))
}

func (r Repo) GetProfileTx(ctx context.Context, tx *sql.Tx, uid string) (domain.Profile, error) {
	return scanProfile(tx.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM users WHERE uid=?`, uid))
}

// SaveProfile inserts or fully replaces a profile row.
func (r Repo) SaveProfile(ctx context.Context, tx *sql.Tx, p domain.Profile) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(`+profileColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(uid) DO UPDATE SET name=excluded.name, phone=excluded.phone, nik=excluded.nik, address=excluded.address,
  neighborhood_id=excluded.neighborhood_id, photo_url=excluded.photo_url, role=excluded.role, status=excluded.status,
  verified_by=excluded.verified_by, verified_at=excluded.verified_at, updated_at=excluded.updated_at`,
		p.UID, p.Name, p.Phone, p.NIK, p.Address, p.NeighborhoodID, p.PhotoURL, p.Role, p.Status, p.VerifiedBy,
		nullableTime(p.VerifiedAt), ms(p.CreatedAt), ms(p.UpdatedAt))
	return err
}

// ListProfiles returns profiles of one neighborhood, or all when neighborhoodID is empty.
func (r Repo) ListProfiles(ctx context.Context, neighborhoodID string, limit int) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM users`
	var args []any
	if neighborhoodID != "" {
		query += ` WHERE neighborhood_id=?`
		args = append(args, neighborhoodID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// LockValue reads a system lock; ok is false when the lock is absent.
func (r Repo) LockValue(ctx context.Context, tx *sql.Tx, key string) (string, bool, error) {
	var v string
	err := tx.QueryRowContext(ctx, `SELECT value FROM system_locks WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r Repo) InsertLock(ctx context.Context, tx *sql.Tx, key, value string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO system_locks(key,value,created_at) VALUES (?,?,?)`, key, value, ms(at))
	return err
}
