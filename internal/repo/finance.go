package repo

import (
	"context"
	"database/sql"

	"guyub/internal/domain"
)

const financeColumns = `id,neighborhood_id,org,type,category,amount,note,method,receipt_url,tags_json,occurred_at,status,
approval_status,approval_by,approval_at,approval_reason,created_at,created_by,updated_at,updated_by`

func scanFinance(s scanner) (domain.FinanceTransaction, error) {
	var t domain.FinanceTransaction
	var tags string
	var approvalAt sql.NullInt64
	var occurred, created, updated int64
	if err := s.Scan(&t.ID, &t.NeighborhoodID, &t.Org, &t.Type, &t.Category, &t.Amount, &t.Note, &t.Method, &t.ReceiptURL, &tags, &occurred, &t.Status,
		&t.Approval.Status, &t.Approval.By, &approvalAt, &t.Approval.Reason, &created, &t.CreatedBy, &updated, &t.UpdatedBy); err != nil {
		return t, notFound(err, "finance transaction")
	}
	t.Tags = decodeList(tags)
	t.Approval.At = timePtr(approvalAt)
	t.OccurredAt = fromMS(occurred)
	t.CreatedAt = fromMS(created)
	t.UpdatedAt = fromMS(updated)
	return t, nil
}

func (r Repo) InsertFinance(ctx context.Context, tx *sql.Tx, t domain.FinanceTransaction) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO finance_transactions(`+financeColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.NeighborhoodID, t.Org, t.Type, t.Category, t.Amount, t.Note, t.Method, t.ReceiptURL, encodeList(t.Tags), ms(t.OccurredAt), t.Status,
		t.Approval.Status, t.Approval.By, nullableTime(t.Approval.At), t.Approval.Reason, ms(t.CreatedAt), t.CreatedBy, ms(t.UpdatedAt), t.UpdatedBy)
	return err
}

func (r Repo) UpdateFinance(ctx context.Context, tx *sql.Tx, t domain.FinanceTransaction) error {
	res, err := tx.ExecContext(ctx, `UPDATE finance_transactions SET neighborhood_id=?,org=?,type=?,category=?,amount=?,note=?,method=?,receipt_url=?,tags_json=?,occurred_at=?,status=?,
approval_status=?,approval_by=?,approval_at=?,approval_reason=?,updated_at=?,updated_by=? WHERE id=?`,
		t.NeighborhoodID, t.Org, t.Type, t.Category, t.Amount, t.Note, t.Method, t.ReceiptURL, encodeList(t.Tags), ms(t.OccurredAt), t.Status,
		t.Approval.Status, t.Approval.By, nullableTime(t.Approval.At), t.Approval.Reason, ms(t.UpdatedAt), t.UpdatedBy, t.ID)
	return mustAffect(res, err, "finance transaction")
}

func (r Repo) DeleteFinance(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM finance_transactions WHERE id=?`, id)
	return mustAffect(res, err, "finance transaction")
}

func (r Repo) GetFinanceTx(ctx context.Context, tx *sql.Tx, id string) (domain.FinanceTransaction, error) {
	return scanFinance(tx.QueryRowContext(ctx, `SELECT `+financeColumns+` FROM finance_transactions WHERE id=?`, id))
}

// ListFinance orders by occurrence time, newest first.
func (r Repo) ListFinance(ctx context.Context, f ListFilter) ([]domain.FinanceTransaction, error) {
	where, args := f.where("occurred_at", true)
	limit, args := f.limitClause(args)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+financeColumns+` FROM finance_transactions `+where+` ORDER BY occurred_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.FinanceTransaction{}
	for rows.Next() {
		t, err := scanFinance(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
