package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"guyub/internal/domain"
)

// ErrStockConflict reports a conditional stock or status update that matched no row.
var ErrStockConflict = errors.New("stock conflict")

const itemColumns = `id,neighborhood_id,org,name,category,description,photo_url,location_text,condition,unit,qty_total,qty_available,tags_json,status,created_at,created_by,updated_at,updated_by`

func scanItem(s scanner) (domain.InventoryItem, error) {
	var it domain.InventoryItem
	var tags string
	var created, updated int64
	if err := s.Scan(&it.ID, &it.NeighborhoodID, &it.Org, &it.Name, &it.Category, &it.Description, &it.PhotoURL, &it.LocationText, &it.Condition, &it.Unit,
		&it.QtyTotal, &it.QtyAvailable, &tags, &it.Status, &created, &it.CreatedBy, &updated, &it.UpdatedBy); err != nil {
		return it, notFound(err, "item")
	}
	it.Tags = decodeList(tags)
	it.CreatedAt = fromMS(created)
	it.UpdatedAt = fromMS(updated)
	return it, nil
}

func (r Repo) InsertItem(ctx context.Context, tx *sql.Tx, it domain.InventoryItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO inventory_items(`+itemColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		it.ID, it.NeighborhoodID, it.Org, it.Name, it.Category, it.Description, it.PhotoURL, it.LocationText, it.Condition, it.Unit,
		it.QtyTotal, it.QtyAvailable, encodeList(it.Tags), it.Status, ms(it.CreatedAt), it.CreatedBy, ms(it.UpdatedAt), it.UpdatedBy)
	return err
}

func (r Repo) UpdateItem(ctx context.Context, tx *sql.Tx, it domain.InventoryItem) error {
	res, err := tx.ExecContext(ctx, `UPDATE inventory_items SET neighborhood_id=?,org=?,name=?,category=?,description=?,photo_url=?,location_text=?,condition=?,unit=?,
qty_total=?,qty_available=?,tags_json=?,status=?,updated_at=?,updated_by=? WHERE id=?`,
		it.NeighborhoodID, it.Org, it.Name, it.Category, it.Description, it.PhotoURL, it.LocationText, it.Condition, it.Unit,
		it.QtyTotal, it.QtyAvailable, encodeList(it.Tags), it.Status, ms(it.UpdatedAt), it.UpdatedBy, it.ID)
	return mustAffect(res, err, "item")
}

func (r Repo) DeleteItem(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE id=?`, id)
	return mustAffect(res, err, "item")
}

func (r Repo) GetItem(ctx context.Context, id string) (domain.InventoryItem, error) {
	return scanItem(r.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=?`, id))
}

func (r Repo) GetItemTx(ctx context.Context, tx *sql.Tx, id string) (domain.InventoryItem, error) {
	return scanItem(tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=?`, id))
}

// TakeStock decrements availability only when enough stock remains.
func (r Repo) TakeStock(ctx context.Context, tx *sql.Tx, itemID string, qty int, at time.Time, by string) error {
	res, err := tx.ExecContext(ctx, `UPDATE inventory_items SET qty_available=qty_available-?, updated_at=?, updated_by=? WHERE id=? AND qty_available>=?`,
		qty, ms(at), by, itemID, qty)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStockConflict
	}
	return nil
}

// PutBackStock increments availability. It is not clamped against qty_total.
func (r Repo) PutBackStock(ctx context.Context, tx *sql.Tx, itemID string, qty int, at time.Time, by string) error {
	res, err := tx.ExecContext(ctx, `UPDATE inventory_items SET qty_available=qty_available+?, updated_at=?, updated_by=? WHERE id=?`,
		qty, ms(at), by, itemID)
	return mustAffect(res, err, "item")
}

// ListItems orders newest first by creation time.
func (r Repo) ListItems(ctx context.Context, f ListFilter) ([]domain.InventoryItem, error) {
	where, args := f.where("created_at", true)
	limit, args := f.limitClause(args)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+itemColumns+` FROM inventory_items `+where+` ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.InventoryItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

const loanColumns = `id,neighborhood_id,org,item_id,item_name,qty,note,purpose,need_from,need_to,status,
approval_status,approval_by,approval_at,approval_reason,returned_at,created_at,created_by,created_by_name,created_by_phone,updated_at,updated_by`

func scanLoan(s scanner) (domain.InventoryLoan, error) {
	var l domain.InventoryLoan
	var needFrom, needTo, approvalAt, returnedAt sql.NullInt64
	var created, updated int64
	if err := s.Scan(&l.ID, &l.NeighborhoodID, &l.Org, &l.ItemID, &l.ItemName, &l.Qty, &l.Note, &l.Purpose, &needFrom, &needTo, &l.Status,
		&l.Approval.Status, &l.Approval.By, &approvalAt, &l.Approval.Reason, &returnedAt, &created, &l.CreatedBy, &l.CreatedByName, &l.CreatedByPhone, &updated, &l.UpdatedBy); err != nil {
		return l, notFound(err, "loan")
	}
	l.NeedFrom = timePtr(needFrom)
	l.NeedTo = timePtr(needTo)
	l.Approval.At = timePtr(approvalAt)
	l.ReturnedAt = timePtr(returnedAt)
	l.CreatedAt = fromMS(created)
	l.UpdatedAt = fromMS(updated)
	return l, nil
}

func (r Repo) InsertLoan(ctx context.Context, tx *sql.Tx, l domain.InventoryLoan) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO inventory_loans(`+loanColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.NeighborhoodID, l.Org, l.ItemID, l.ItemName, l.Qty, l.Note, l.Purpose, nullableTime(l.NeedFrom), nullableTime(l.NeedTo), l.Status,
		l.Approval.Status, l.Approval.By, nullableTime(l.Approval.At), l.Approval.Reason, nullableTime(l.ReturnedAt),
		ms(l.CreatedAt), l.CreatedBy, l.CreatedByName, l.CreatedByPhone, ms(l.UpdatedAt), l.UpdatedBy)
	return err
}

// UpdateLoanDetails rewrites the requester-editable fields.
func (r Repo) UpdateLoanDetails(ctx context.Context, tx *sql.Tx, l domain.InventoryLoan) error {
	res, err := tx.ExecContext(ctx, `UPDATE inventory_loans SET note=?,purpose=?,need_from=?,need_to=?,updated_at=?,updated_by=? WHERE id=?`,
		l.Note, l.Purpose, nullableTime(l.NeedFrom), nullableTime(l.NeedTo), ms(l.UpdatedAt), l.UpdatedBy, l.ID)
	return mustAffect(res, err, "loan")
}

// TransitionLoan moves a loan from one status to the next, failing with
// ErrStockConflict when the loan is no longer in the expected status.
func (r Repo) TransitionLoan(ctx context.Context, tx *sql.Tx, l domain.InventoryLoan, from string) error {
	res, err := tx.ExecContext(ctx, `UPDATE inventory_loans SET status=?,approval_status=?,approval_by=?,approval_at=?,approval_reason=?,returned_at=?,updated_at=?,updated_by=? WHERE id=? AND status=?`,
		l.Status, l.Approval.Status, l.Approval.By, nullableTime(l.Approval.At), l.Approval.Reason, nullableTime(l.ReturnedAt), ms(l.UpdatedAt), l.UpdatedBy, l.ID, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStockConflict
	}
	return nil
}

func (r Repo) DeleteLoan(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM inventory_loans WHERE id=?`, id)
	return mustAffect(res, err, "loan")
}

func (r Repo) GetLoan(ctx context.Context, id string) (domain.InventoryLoan, error) {
	return scanLoan(r.DB.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM inventory_loans WHERE id=?`, id))
}

func (r Repo) GetLoanTx(ctx context.Context, tx *sql.Tx, id string) (domain.InventoryLoan, error) {
	return scanLoan(tx.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM inventory_loans WHERE id=?`, id))
}

// ListLoans orders newest first by creation time.
func (r Repo) ListLoans(ctx context.Context, f ListFilter) ([]domain.InventoryLoan, error) {
	where, args := f.where("created_at", true)
	limit, args := f.limitClause(args)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+loanColumns+` FROM inventory_loans `+where+` ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.InventoryLoan{}
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
