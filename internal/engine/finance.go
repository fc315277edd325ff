package engine

import (
	"context"
	"database/sql"
	"math"
	"time"

	"guyub/internal/access"
	"guyub/internal/audit"
	"guyub/internal/config"
	"guyub/internal/domain"
)

// FinanceInput carries create and update fields of a finance transaction.
type FinanceInput struct {
	NeighborhoodID *string
	Org            *string
	Type           *string
	Category       *string
	Amount         *float64
	Note           *string
	Method         *string
	ReceiptURL     *string
	Tags           *[]string
	OccurredAt     *time.Time
	ForceApproved  bool
}

func validFinanceType(t string) bool {
	return oneOf(t, domain.FinanceIncome, domain.FinanceExpense)
}

func (e Engine) ListFinance(ctx context.Context, c access.Caller, opts ListOptions) (Page[domain.FinanceTransaction], error) {
	f, err := e.resolveList(c, opts, config.Finance, domain.FinanceApproved)
	if err != nil {
		return Page[domain.FinanceTransaction]{}, err
	}
	items, err := e.Repo.ListFinance(ctx, f)
	if err != nil {
		return Page[domain.FinanceTransaction]{}, err
	}
	return newPage(items, f.Limit, func(t domain.FinanceTransaction) time.Time { return t.OccurredAt }), nil
}

// FinanceSummary totals the newest transactions of the filter, capped at the
// summary page size. Sums are taken in integer cents.
func (e Engine) FinanceSummary(ctx context.Context, c access.Caller, opts ListOptions) (domain.FinanceSummary, error) {
	opts.Cursor = ""
	f, err := e.resolveList(c, opts, config.FinanceSummary, domain.FinanceApproved)
	if err != nil {
		return domain.FinanceSummary{}, err
	}
	items, err := e.Repo.ListFinance(ctx, f)
	if err != nil {
		return domain.FinanceSummary{}, err
	}
	var income, expense int64
	for _, t := range items {
		cents := int64(math.Round(t.Amount * 100))
		switch t.Type {
		case domain.FinanceIncome:
			income += cents
		case domain.FinanceExpense:
			expense += cents
		}
	}
	status := f.Status
	if status == "" {
		status = StatusAll
	}
	sum := domain.FinanceSummary{
		NeighborhoodID: f.NeighborhoodID,
		Status:         status,
		LimitUsed:      len(items),
		Income:         float64(income) / 100,
		Expense:        float64(expense) / 100,
		Balance:        float64(income-expense) / 100,
	}
	if f.Org != "" {
		org := f.Org
		sum.Org = &org
	}
	return sum, nil
}

// CreateFinance is open to every caller. ForceApproved is honoured only for
// admins within the transaction's scope.
func (e Engine) CreateFinance(ctx context.Context, c access.Caller, in FinanceInput) (domain.FinanceTransaction, error) {
	nbh, org, err := createScope(c, val(in.NeighborhoodID), val(in.Org))
	if err != nil {
		return domain.FinanceTransaction{}, err
	}
	typ := clean(val(in.Type), 20)
	if !validFinanceType(typ) {
		return domain.FinanceTransaction{}, invalid("type must be income|expense")
	}
	if in.Amount == nil || !validAmount(*in.Amount) {
		return domain.FinanceTransaction{}, invalid("amount must be > 0")
	}
	now := e.now()
	t := domain.FinanceTransaction{
		ID:         newID(),
		Scope:      domain.Scope{NeighborhoodID: nbh, Org: string(org)},
		Type:       typ,
		Category:   clean(val(in.Category), maxCategory),
		Amount:     *in.Amount,
		Note:       clean(val(in.Note), maxNote),
		Method:     clean(val(in.Method), 24),
		ReceiptURL: clean(val(in.ReceiptURL), maxURL),
		Tags:       []string{},
		OccurredAt: now,
		Status:     domain.FinancePending,
		Approval:   domain.Approval{Status: domain.FinancePending},
		Stamps:     domain.Stamps{CreatedAt: now, CreatedBy: c.UID, UpdatedAt: now, UpdatedBy: c.UID},
	}
	if in.Tags != nil {
		t.Tags = cleanTags(*in.Tags)
	}
	if in.OccurredAt != nil {
		t.OccurredAt = in.OccurredAt.UTC()
	}
	if in.ForceApproved && c.IsAdministrative() {
		if !c.CanAccessScope(org, nbh) {
			return domain.FinanceTransaction{}, access.ForbiddenError{Reason: "scope mismatch"}
		}
		t.Status = domain.FinanceApproved
		t.Approval = domain.Approval{Status: domain.FinanceApproved, By: c.UID, At: &now}
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertFinance(ctx, tx, t); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "finance.create", NeighborhoodID: nbh, Org: t.Org, EntityKind: "finance", EntityID: t.ID, ActorID: c.UID, Payload: audit.Payload{"type": t.Type, "amount": t.Amount, "status": t.Status}})
	})
	if err != nil {
		return domain.FinanceTransaction{}, err
	}
	return t, nil
}

// DecideFinance approves or rejects a transaction. With strict approval
// configured only pending transactions can be decided.
func (e Engine) DecideFinance(ctx context.Context, c access.Caller, id string, approve bool, reason string) (domain.FinanceTransaction, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.FinanceTransaction{}, err
	}
	next, action := domain.FinanceRejected, "reject"
	if approve {
		next, action = domain.FinanceApproved, "approve"
	}
	var out domain.FinanceTransaction
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		t, err := e.Repo.GetFinanceTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(t.Org), t.NeighborhoodID); err != nil {
			return err
		}
		if e.Config.Finance.StrictApproval && t.Status != domain.FinancePending {
			return conflict("only pending transaction can be %s", next)
		}
		from := t.Status
		now := e.now()
		t.Status = next
		t.Approval = domain.Approval{Status: next, By: c.UID, At: &now, Reason: clean(reason, maxReason)}
		t.UpdatedAt = now
		t.UpdatedBy = c.UID
		if err := e.Repo.UpdateFinance(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return e.record(ctx, tx, audit.Entry{Type: "finance." + action, NeighborhoodID: t.NeighborhoodID, Org: t.Org, EntityKind: "finance", EntityID: t.ID, ActorID: c.UID, Payload: audit.Payload{"from": from, "to": next}})
	})
	return out, err
}

// UpdateFinance patches a transaction. An invalid amount is dropped from the
// patch rather than rejected.
func (e Engine) UpdateFinance(ctx context.Context, c access.Caller, id string, in FinanceInput) (domain.FinanceTransaction, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.FinanceTransaction{}, err
	}
	var out domain.FinanceTransaction
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		t, err := e.Repo.GetFinanceTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(t.Org), t.NeighborhoodID); err != nil {
			return err
		}
		if err := moveScope(c, &t.NeighborhoodID, &t.Org, in.NeighborhoodID, in.Org); err != nil {
			return err
		}
		if typ := clean(val(in.Type), 20); typ != "" {
			if !validFinanceType(typ) {
				return invalid("type must be income|expense")
			}
			t.Type = typ
		}
		if in.Amount != nil && validAmount(*in.Amount) {
			t.Amount = *in.Amount
		}
		patchString(&t.Category, in.Category, maxCategory)
		patchString(&t.Note, in.Note, maxNote)
		patchString(&t.Method, in.Method, 24)
		patchString(&t.ReceiptURL, in.ReceiptURL, maxURL)
		if in.Tags != nil {
			t.Tags = cleanTags(*in.Tags)
		}
		if in.OccurredAt != nil {
			t.OccurredAt = in.OccurredAt.UTC()
		}
		t.UpdatedAt = e.now()
		t.UpdatedBy = c.UID
		if err := e.Repo.UpdateFinance(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return e.record(ctx, tx, audit.Entry{Type: "finance.update", NeighborhoodID: t.NeighborhoodID, Org: t.Org, EntityKind: "finance", EntityID: t.ID, ActorID: c.UID})
	})
	return out, err
}

func (e Engine) DeleteFinance(ctx context.Context, c access.Caller, id string) error {
	if err := c.RequireAdmin(); err != nil {
		return err
	}
	return e.withTx(ctx, func(tx *sql.Tx) error {
		t, err := e.Repo.GetFinanceTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(t.Org), t.NeighborhoodID); err != nil {
			return err
		}
		if err := e.Repo.DeleteFinance(ctx, tx, id); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "finance.delete", NeighborhoodID: t.NeighborhoodID, Org: t.Org, EntityKind: "finance", EntityID: id, ActorID: c.UID})
	})
}
