package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"guyub/internal/access"
	"guyub/internal/audit"
	"guyub/internal/config"
	"guyub/internal/domain"
	"guyub/internal/repo"
)

// LoanAction is an admin decision on a loan.
type LoanAction string

const (
	LoanApprove LoanAction = "approve"
	LoanReject  LoanAction = "reject"
	LoanReturn  LoanAction = "return"
)

// Stock transaction outcomes reported to the StockObserver.
const (
	StockCommitted = "committed"
	StockConflict  = "conflict"
	StockFailed    = "failed"
)

// LoanInput carries create and update fields of a loan request.
type LoanInput struct {
	NeighborhoodID *string
	Org            *string
	ItemID         *string
	Qty            *int
	Note           *string
	Purpose        *string
	NeedFrom       *time.Time
	NeedTo         *time.Time
}

// ListLoans defaults to requested loans. Citizens only ever see their own.
func (e Engine) ListLoans(ctx context.Context, c access.Caller, opts ListOptions) (Page[domain.InventoryLoan], error) {
	f, err := e.resolveList(c, opts, config.Loans, domain.LoanRequested)
	if err != nil {
		return Page[domain.InventoryLoan]{}, err
	}
	ownOnly(c, &f, opts.Mine)
	items, err := e.Repo.ListLoans(ctx, f)
	if err != nil {
		return Page[domain.InventoryLoan]{}, err
	}
	return newPage(items, f.Limit, func(l domain.InventoryLoan) time.Time { return l.CreatedAt }), nil
}

// RequestLoan creates a loan request. The stock check here only rejects
// early; nothing is reserved until approval.
func (e Engine) RequestLoan(ctx context.Context, c access.Caller, in LoanInput) (domain.InventoryLoan, error) {
	nbh, org, err := createScope(c, val(in.NeighborhoodID), val(in.Org))
	if err != nil {
		return domain.InventoryLoan{}, err
	}
	itemID := clean(val(in.ItemID), 200)
	if itemID == "" {
		return domain.InventoryLoan{}, invalid("itemId is required")
	}
	qty := 1
	if in.Qty != nil {
		qty = *in.Qty
	}
	if qty <= 0 {
		return domain.InventoryLoan{}, invalid("qty must be > 0")
	}
	if in.NeedFrom != nil && in.NeedTo != nil && in.NeedTo.Before(*in.NeedFrom) {
		return domain.InventoryLoan{}, invalid("needTo must not be before needFrom")
	}
	var out domain.InventoryLoan
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		it, err := e.Repo.GetItemTx(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if it.NeighborhoodID != nbh || it.Org != string(org) {
			return access.ForbiddenError{Reason: "item scope mismatch"}
		}
		if it.Status != domain.ItemActive {
			return invalid("item inactive")
		}
		if it.QtyAvailable < qty {
			return invalid("insufficient stock")
		}
		now := e.now()
		l := domain.InventoryLoan{
			ID:             newID(),
			Scope:          domain.Scope{NeighborhoodID: nbh, Org: string(org)},
			ItemID:         it.ID,
			ItemName:       clean(it.Name, maxTitle),
			Qty:            qty,
			Note:           clean(val(in.Note), maxNote),
			Purpose:        clean(val(in.Purpose), maxTitle),
			NeedFrom:       utcPtr(in.NeedFrom),
			NeedTo:         utcPtr(in.NeedTo),
			Status:         domain.LoanRequested,
			Approval:       domain.Approval{Status: domain.LoanRequested},
			CreatedByName:  clean(c.Name, 120),
			CreatedByPhone: clean(c.Phone, 40),
			Stamps:         domain.Stamps{CreatedAt: now, CreatedBy: c.UID, UpdatedAt: now, UpdatedBy: c.UID},
		}
		if err := e.Repo.InsertLoan(ctx, tx, l); err != nil {
			return err
		}
		out = l
		return e.record(ctx, tx, audit.Entry{Type: "loan.create", NeighborhoodID: nbh, Org: l.Org, EntityKind: "loan", EntityID: l.ID, ActorID: c.UID, Payload: audit.Payload{"itemId": l.ItemID, "qty": l.Qty}})
	})
	return out, err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// SettleLoan approves, rejects or returns a loan. The loan and its item are
// read and written inside one transaction; the stock and status updates are
// conditional so a concurrent settlement can never apply twice.
func (e Engine) SettleLoan(ctx context.Context, c access.Caller, id string, action LoanAction, reason string) (domain.InventoryLoan, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.InventoryLoan{}, err
	}
	switch action {
	case LoanApprove, LoanReject, LoanReturn:
	default:
		return domain.InventoryLoan{}, invalid("unknown action %s", action)
	}
	var out domain.InventoryLoan
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		l, err := e.Repo.GetLoanTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(l.Org), l.NeighborhoodID); err != nil {
			return err
		}
		now := e.now()
		from := l.Status
		switch action {
		case LoanApprove:
			if l.Status != domain.LoanRequested {
				return conflict("only requested loan can be approved")
			}
			it, err := e.Repo.GetItemTx(ctx, tx, l.ItemID)
			if err != nil {
				return err
			}
			if it.QtyAvailable < l.Qty {
				return conflict("insufficient stock to approve")
			}
			if err := e.Repo.TakeStock(ctx, tx, it.ID, l.Qty, now, c.UID); err != nil {
				return stockErr(err, "insufficient stock to approve")
			}
			l.Status = domain.LoanApproved
			l.Approval = domain.Approval{Status: domain.LoanApproved, By: c.UID, At: &now}
		case LoanReject:
			if l.Status != domain.LoanRequested {
				return conflict("only requested loan can be rejected")
			}
			l.Status = domain.LoanRejected
			l.Approval = domain.Approval{Status: domain.LoanRejected, By: c.UID, At: &now, Reason: clean(reason, maxReason)}
		case LoanReturn:
			if l.Status != domain.LoanApproved {
				return conflict("only approved loan can be returned")
			}
			if err := e.Repo.PutBackStock(ctx, tx, l.ItemID, l.Qty, now, c.UID); err != nil {
				return err
			}
			l.Status = domain.LoanReturned
			l.ReturnedAt = &now
		}
		l.UpdatedAt = now
		l.UpdatedBy = c.UID
		if err := e.Repo.TransitionLoan(ctx, tx, l, from); err != nil {
			return stockErr(err, "loan status changed concurrently")
		}
		out = l
		return e.record(ctx, tx, audit.Entry{Type: "loan." + string(action), NeighborhoodID: l.NeighborhoodID, Org: l.Org, EntityKind: "loan", EntityID: l.ID, ActorID: c.UID, Payload: audit.Payload{"itemId": l.ItemID, "qty": l.Qty, "from": from, "to": l.Status}})
	})
	e.observeStock(string(action), stockOutcome(err))
	return out, err
}

func stockErr(err error, msg string) error {
	if errors.Is(err, repo.ErrStockConflict) {
		return conflict("%s", msg)
	}
	return err
}

func stockOutcome(err error) string {
	var ce ConflictError
	switch {
	case err == nil:
		return StockCommitted
	case errors.As(err, &ce):
		return StockConflict
	default:
		return StockFailed
	}
}

// UpdateLoan edits note, purpose and the need window. Owners may do so while
// the loan is requested; admins in scope at any time.
func (e Engine) UpdateLoan(ctx context.Context, c access.Caller, id string, in LoanInput) (domain.InventoryLoan, error) {
	var out domain.InventoryLoan
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		l, err := e.Repo.GetLoanTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := canEditLoan(c, l); err != nil {
			return err
		}
		patchString(&l.Note, in.Note, maxNote)
		patchString(&l.Purpose, in.Purpose, maxTitle)
		if in.NeedFrom != nil {
			l.NeedFrom = utcPtr(in.NeedFrom)
		}
		if in.NeedTo != nil {
			l.NeedTo = utcPtr(in.NeedTo)
		}
		if l.NeedFrom != nil && l.NeedTo != nil && l.NeedTo.Before(*l.NeedFrom) {
			return invalid("needTo must not be before needFrom")
		}
		l.UpdatedAt = e.now()
		l.UpdatedBy = c.UID
		if err := e.Repo.UpdateLoanDetails(ctx, tx, l); err != nil {
			return err
		}
		out = l
		return e.record(ctx, tx, audit.Entry{Type: "loan.update", NeighborhoodID: l.NeighborhoodID, Org: l.Org, EntityKind: "loan", EntityID: l.ID, ActorID: c.UID})
	})
	return out, err
}

func canEditLoan(c access.Caller, l domain.InventoryLoan) error {
	if c.IsAdministrative() {
		return c.RequireScope(access.Org(l.Org), l.NeighborhoodID)
	}
	if l.CreatedBy != c.UID {
		return access.ForbiddenError{Reason: "not owner"}
	}
	if l.Status != domain.LoanRequested {
		return access.ForbiddenError{Reason: "only editable while status=requested"}
	}
	return nil
}

// DeleteLoan removes a loan record without touching stock.
func (e Engine) DeleteLoan(ctx context.Context, c access.Caller, id string) error {
	return e.withTx(ctx, func(tx *sql.Tx) error {
		l, err := e.Repo.GetLoanTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := canEditLoan(c, l); err != nil {
			return err
		}
		if err := e.Repo.DeleteLoan(ctx, tx, id); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "loan.delete", NeighborhoodID: l.NeighborhoodID, Org: l.Org, EntityKind: "loan", EntityID: id, ActorID: c.UID})
	})
}
