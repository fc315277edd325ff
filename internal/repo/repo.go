package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repo reads and writes guyub records. Mutations take the caller's transaction;
// reads come in plain and Tx flavours.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// ListFilter is the common shape of every scoped listing.
// Status "" disables the status filter. Cursor 0 means first page.
type ListFilter struct {
	NeighborhoodID string
	Org            string
	Status         string
	CreatedBy      string
	From           *time.Time
	To             *time.Time
	Cursor         int64
	Limit          int
}

// where builds the WHERE clause for f against the given sort column.
// desc selects the cursor direction.
func (f ListFilter) where(sortCol string, desc bool) (string, []any) {
	var clauses []string
	var args []any
	clauses = append(clauses, "neighborhood_id=?")
	args = append(args, f.NeighborhoodID)
	if f.Org != "" {
		clauses = append(clauses, "org=?")
		args = append(args, f.Org)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CreatedBy != "" {
		clauses = append(clauses, "created_by=?")
		args = append(args, f.CreatedBy)
	}
	if f.From != nil {
		clauses = append(clauses, sortCol+">=?")
		args = append(args, ms(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, sortCol+"<=?")
		args = append(args, ms(*f.To))
	}
	if f.Cursor > 0 {
		op := ">"
		if desc {
			op = "<"
		}
		clauses = append(clauses, sortCol+op+"?")
		args = append(args, f.Cursor)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (f ListFilter) limitClause(args []any) (string, []any) {
	if f.Limit > 0 {
		return " LIMIT ?", append(args, f.Limit)
	}
	return "", args
}

func ms(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMS(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ms(*t)
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMS(v.Int64)
	return &t
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func decodeList(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	if out == nil {
		out = []string{}
	}
	return out
}

func mustAffect(res sql.Result, err error, what string) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
