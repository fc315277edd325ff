package engine_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"guyub/internal/access"
	"guyub/internal/config"
	"guyub/internal/db"
	"guyub/internal/domain"
	"guyub/internal/engine"
	"guyub/internal/migrate"
)

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type stockCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (s *stockCounter) ObserveStock(action, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[action+"/"+outcome]++
}

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Stock  *stockCounter
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	clock := &tickClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	eng.Now = clock.Now
	stock := &stockCounter{counts: map[string]int{}}
	eng.Stock = stock
	ctx := context.Background()
	seed := []struct{ uid, role, nbh string }{
		{"root", "super_admin", ""},
		{"rt1", "rt_ketua", "nb-1"},
		{"pkk1", "pkk_bendahara", "nb-1"},
		{"rt2", "rt_ketua", "nb-2"},
		{"warga1", "warga", "nb-1"},
		{"warga2", "warga", "nb-1"},
	}
	for _, s := range seed {
		if _, err := eng.GrantProfile(ctx, s.uid, s.role, s.nbh, s.uid, "test"); err != nil {
			t.Fatalf("seed %s: %v", s.uid, err)
		}
	}
	return testEnv{Engine: eng, Ctx: ctx, Stock: stock}
}

func (env testEnv) caller(t *testing.T, uid string) access.Caller {
	t.Helper()
	c, err := env.Engine.ResolveCaller(env.Ctx, uid)
	if err != nil {
		t.Fatalf("resolve %s: %v", uid, err)
	}
	return c
}

func str(s string) *string { return &s }
func num(n int) *int       { return &n }
func amt(v float64) *float64 {
	return &v
}

func isValidation(err error) bool {
	var ve engine.ValidationError
	return errors.As(err, &ve)
}

func isConflict(err error) bool {
	var ce engine.ConflictError
	return errors.As(err, &ce)
}

func isForbidden(err error) bool {
	var fe access.ForbiddenError
	return errors.As(err, &fe)
}

func (env testEnv) item(t *testing.T, total int) domain.InventoryItem {
	t.Helper()
	it, err := env.Engine.CreateItem(env.Ctx, env.caller(t, "rt1"), engine.ItemInput{Org: str("rt"), Name: str("Tenda"), QtyTotal: num(total)})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return it
}

func (env testEnv) loan(t *testing.T, uid, itemID string, qty int) (domain.InventoryLoan, error) {
	t.Helper()
	return env.Engine.RequestLoan(env.Ctx, env.caller(t, uid), engine.LoanInput{Org: str("rt"), ItemID: str(itemID), Qty: num(qty)})
}

func (env testEnv) available(t *testing.T, itemID string) domain.InventoryItem {
	t.Helper()
	it, err := env.Engine.Repo.GetItem(env.Ctx, itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	return it
}

func TestLoanApproveReturnScenario(t *testing.T) {
	env := newTestEnv(t)
	admin := env.caller(t, "rt1")
	it := env.item(t, 10)
	if it.QtyAvailable != 10 {
		t.Fatalf("qtyAvailable = %d", it.QtyAvailable)
	}

	a, err := env.loan(t, "warga1", it.ID, 6)
	if err != nil {
		t.Fatalf("request A: %v", err)
	}
	if a.Status != domain.LoanRequested || a.ItemName != "Tenda" {
		t.Fatalf("unexpected loan %+v", a)
	}
	a, err = env.Engine.SettleLoan(env.Ctx, admin, a.ID, engine.LoanApprove, "")
	if err != nil {
		t.Fatalf("approve A: %v", err)
	}
	if a.Status != domain.LoanApproved || a.Approval.By != "rt1" {
		t.Fatalf("unexpected approval %+v", a)
	}
	if got := env.available(t, it.ID).QtyAvailable; got != 4 {
		t.Fatalf("after approve qtyAvailable = %d, want 4", got)
	}

	_, err = env.loan(t, "warga2", it.ID, 5)
	if !isValidation(err) || err.Error() != "insufficient stock" {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	a, err = env.Engine.SettleLoan(env.Ctx, admin, a.ID, engine.LoanReturn, "")
	if err != nil {
		t.Fatalf("return A: %v", err)
	}
	if a.Status != domain.LoanReturned || a.ReturnedAt == nil {
		t.Fatalf("unexpected return %+v", a)
	}
	if got := env.available(t, it.ID).QtyAvailable; got != 10 {
		t.Fatalf("after return qtyAvailable = %d, want 10", got)
	}
	if _, err := env.Engine.SettleLoan(env.Ctx, admin, a.ID, engine.LoanReturn, ""); !isConflict(err) {
		t.Fatalf("second return should conflict, got %v", err)
	}
	if got := env.available(t, it.ID).QtyAvailable; got != 10 {
		t.Fatalf("failed return changed stock: %d", got)
	}
	if env.Stock.counts["return/conflict"] != 1 || env.Stock.counts["approve/committed"] != 1 {
		t.Fatalf("unexpected stock metrics %+v", env.Stock.counts)
	}
}

func TestConcurrentApprovalsNeverOversell(t *testing.T) {
	env := newTestEnv(t)
	admin := env.caller(t, "rt1")
	it := env.item(t, 10)
	a, err := env.loan(t, "warga1", it.ID, 6)
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.loan(t, "warga2", it.ID, 5)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = env.Engine.SettleLoan(env.Ctx, admin, id, engine.LoanApprove, "")
		}(i, id)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case isConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("ok=%d conflicts=%d", ok, conflicts)
	}
	got := env.available(t, it.ID).QtyAvailable
	if got != 4 && got != 5 {
		t.Fatalf("qtyAvailable = %d", got)
	}
}

func TestStockStaysWithinBounds(t *testing.T) {
	env := newTestEnv(t)
	admin := env.caller(t, "rt1")
	it := env.item(t, 7)
	check := func(step string) {
		t.Helper()
		cur := env.available(t, it.ID)
		if cur.QtyAvailable < 0 || cur.QtyAvailable > cur.QtyTotal {
			t.Fatalf("%s: qtyAvailable %d outside [0,%d]", step, cur.QtyAvailable, cur.QtyTotal)
		}
	}
	var loans []domain.InventoryLoan
	for _, q := range []int{3, 4, 2, 7} {
		l, err := env.loan(t, "warga1", it.ID, q)
		if err != nil {
			t.Fatalf("request %d: %v", q, err)
		}
		loans = append(loans, l)
	}
	steps := []struct {
		idx    int
		action engine.LoanAction
	}{
		{0, engine.LoanApprove}, {1, engine.LoanApprove}, {2, engine.LoanApprove},
		{3, engine.LoanReject}, {0, engine.LoanReturn}, {2, engine.LoanApprove},
		{1, engine.LoanReturn}, {2, engine.LoanReturn}, {1, engine.LoanReturn},
	}
	for _, s := range steps {
		_, _ = env.Engine.SettleLoan(env.Ctx, admin, loans[s.idx].ID, s.action, "")
		check(string(s.action))
	}
	if got := env.available(t, it.ID).QtyAvailable; got != 7 {
		t.Fatalf("everything returned, qtyAvailable = %d", got)
	}
}

func TestLoanRequestChecks(t *testing.T) {
	env := newTestEnv(t)
	it := env.item(t, 3)
	if _, err := env.loan(t, "warga1", "missing", 1); err == nil {
		t.Fatalf("expected not found")
	}
	if _, err := env.loan(t, "warga1", it.ID, 0); !isValidation(err) {
		t.Fatalf("expected qty validation, got %v", err)
	}
	l, err := env.Engine.RequestLoan(env.Ctx, env.caller(t, "warga1"), engine.LoanInput{Org: str("rt"), ItemID: str(it.ID)})
	if err != nil || l.Qty != 1 {
		t.Fatalf("missing qty should default to 1: %v %+v", err, l)
	}
	_, err = env.Engine.RequestLoan(env.Ctx, env.caller(t, "warga1"), engine.LoanInput{Org: str("pkk"), ItemID: str(it.ID), Qty: num(1)})
	if !isForbidden(err) {
		t.Fatalf("expected item scope mismatch, got %v", err)
	}
	if _, err := env.Engine.UpdateItem(env.Ctx, env.caller(t, "rt1"), it.ID, engine.ItemInput{Status: str("inactive")}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.loan(t, "warga1", it.ID, 1); !isValidation(err) {
		t.Fatalf("expected inactive item validation, got %v", err)
	}
}

func TestLoanOwnerEditsOnlyWhileRequested(t *testing.T) {
	env := newTestEnv(t)
	it := env.item(t, 5)
	l, err := env.loan(t, "warga1", it.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	owner := env.caller(t, "warga1")
	if _, err := env.Engine.UpdateLoan(env.Ctx, env.caller(t, "warga2"), l.ID, engine.LoanInput{Note: str("x")}); !isForbidden(err) {
		t.Fatalf("non-owner edit should be forbidden, got %v", err)
	}
	l, err = env.Engine.UpdateLoan(env.Ctx, owner, l.ID, engine.LoanInput{Purpose: str("arisan"), Note: str("")})
	if err != nil || l.Purpose != "arisan" {
		t.Fatalf("owner edit: %v %+v", err, l)
	}
	if _, err := env.Engine.SettleLoan(env.Ctx, env.caller(t, "rt1"), l.ID, engine.LoanApprove, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdateLoan(env.Ctx, owner, l.ID, engine.LoanInput{Note: str("late")}); !isForbidden(err) {
		t.Fatalf("edit after approval should be forbidden, got %v", err)
	}
	if err := env.Engine.DeleteLoan(env.Ctx, owner, l.ID); !isForbidden(err) {
		t.Fatalf("delete after approval should be forbidden, got %v", err)
	}
}

func TestItemQuantityClamp(t *testing.T) {
	env := newTestEnv(t)
	admin := env.caller(t, "rt1")
	it := env.item(t, 5)
	if it.QtyAvailable != 5 || it.Condition != "baik" || it.Unit != "unit" || it.Status != domain.ItemActive {
		t.Fatalf("unexpected defaults %+v", it)
	}
	it, err := env.Engine.UpdateItem(env.Ctx, admin, it.ID, engine.ItemInput{QtyTotal: num(3)})
	if err != nil {
		t.Fatal(err)
	}
	if it.QtyTotal != 3 || it.QtyAvailable != 3 {
		t.Fatalf("expected clamp to 3, got %d/%d", it.QtyAvailable, it.QtyTotal)
	}
	it, err = env.Engine.UpdateItem(env.Ctx, admin, it.ID, engine.ItemInput{QtyAvailable: num(10), QtyTotal: num(-1)})
	if err != nil {
		t.Fatal(err)
	}
	if it.QtyTotal != 3 || it.QtyAvailable != 3 {
		t.Fatalf("negative total must be ignored and availability clamped, got %d/%d", it.QtyAvailable, it.QtyTotal)
	}
	created, err := env.Engine.CreateItem(env.Ctx, admin, engine.ItemInput{Org: str("rt"), Name: str("Kursi"), QtyTotal: num(4), QtyAvailable: num(9)})
	if err != nil || created.QtyAvailable != 4 {
		t.Fatalf("create clamp: %v %+v", err, created)
	}
	if _, err := env.Engine.CreateItem(env.Ctx, env.caller(t, "warga1"), engine.ItemInput{Org: str("rt"), Name: str("x")}); !isForbidden(err) {
		t.Fatalf("citizens cannot create items, got %v", err)
	}
}

func TestComplaintLifecycle(t *testing.T) {
	env := newTestEnv(t)
	owner := env.caller(t, "warga1")
	admin := env.caller(t, "rt1")
	cp, err := env.Engine.CreateComplaint(env.Ctx, owner, engine.ComplaintInput{Org: str("rt"), Title: str("Lampu mati"), Description: str("Gang 3")})
	if err != nil {
		t.Fatal(err)
	}
	if cp.Status != domain.ComplaintOpen || cp.Priority != domain.PriorityNormal || cp.CreatedByName != "warga1" {
		t.Fatalf("unexpected complaint %+v", cp)
	}
	cp, err = env.Engine.UpdateComplaint(env.Ctx, owner, cp.ID, engine.ComplaintInput{Title: str("Lampu jalan mati"), Description: str("  ")})
	if err != nil || cp.Title != "Lampu jalan mati" || cp.Description != "Gang 3" {
		t.Fatalf("owner edit: %v %+v", err, cp)
	}
	if _, err := env.Engine.UpdateComplaint(env.Ctx, env.caller(t, "warga2"), cp.ID, engine.ComplaintInput{Title: str("x")}); !isForbidden(err) {
		t.Fatalf("non-owner edit should be forbidden, got %v", err)
	}
	if _, err := env.Engine.UpdateComplaint(env.Ctx, env.caller(t, "pkk1"), cp.ID, engine.ComplaintInput{Title: str("x")}); !isForbidden(err) {
		t.Fatalf("other org admin should be forbidden, got %v", err)
	}

	cp, err = env.Engine.AssignComplaint(env.Ctx, admin, cp.ID, "pak-rt", "")
	if err != nil {
		t.Fatal(err)
	}
	if cp.Status != domain.ComplaintInProgress || cp.Assignment.AssignedRole != "rt_ketua" || cp.Assignment.AssignedAt == nil {
		t.Fatalf("assign: %+v", cp)
	}
	if _, err := env.Engine.UpdateComplaint(env.Ctx, owner, cp.ID, engine.ComplaintInput{Title: str("x")}); !isForbidden(err) {
		t.Fatalf("owner edit past open should be forbidden, got %v", err)
	}

	cp, err = env.Engine.UpdateComplaintStatus(env.Ctx, admin, cp.ID, domain.ComplaintResolved, "")
	if err != nil {
		t.Fatal(err)
	}
	if cp.Resolution.Note != "Selesai" || cp.Resolution.By != "rt1" || cp.Resolution.ResolvedAt == nil {
		t.Fatalf("resolution: %+v", cp.Resolution)
	}
	if _, err := env.Engine.UpdateComplaintStatus(env.Ctx, admin, cp.ID, domain.ComplaintInProgress, ""); !isConflict(err) {
		t.Fatalf("terminal complaint should not move, got %v", err)
	}
	if _, err := env.Engine.UpdateComplaintStatus(env.Ctx, admin, cp.ID, "closed", ""); !isValidation(err) {
		t.Fatalf("unknown status should be invalid, got %v", err)
	}
	if err := env.Engine.DeleteComplaint(env.Ctx, owner, cp.ID); !isForbidden(err) {
		t.Fatalf("owner delete past open should be forbidden, got %v", err)
	}
	if err := env.Engine.DeleteComplaint(env.Ctx, admin, cp.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestComplaintRejectDefaultsNote(t *testing.T) {
	env := newTestEnv(t)
	cp, err := env.Engine.CreateComplaint(env.Ctx, env.caller(t, "warga1"), engine.ComplaintInput{Org: str("rt"), Title: str("t"), Description: str("d"), Priority: str("urgent")})
	if err != nil {
		t.Fatal(err)
	}
	cp, err = env.Engine.UpdateComplaint(env.Ctx, env.caller(t, "root"), cp.ID, engine.ComplaintInput{Status: str("rejected")})
	if err != nil {
		t.Fatal(err)
	}
	if cp.Status != domain.ComplaintRejected || cp.Resolution.Note != "Ditolak" {
		t.Fatalf("reject: %+v", cp)
	}
	if _, err := env.Engine.CreateComplaint(env.Ctx, env.caller(t, "warga1"), engine.ComplaintInput{Org: str("rt"), Title: str("t"), Description: str("d"), Priority: str("asap")}); !isValidation(err) {
		t.Fatalf("bad priority should be invalid, got %v", err)
	}
}

func TestCitizenListsOnlyOwnComplaints(t *testing.T) {
	env := newTestEnv(t)
	for _, uid := range []string{"warga1", "warga2", "warga2"} {
		if _, err := env.Engine.CreateComplaint(env.Ctx, env.caller(t, uid), engine.ComplaintInput{Org: str("rt"), Title: str("t"), Description: str("d")}); err != nil {
			t.Fatal(err)
		}
	}
	page, err := env.Engine.ListComplaints(env.Ctx, env.caller(t, "warga1"), engine.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].CreatedBy != "warga1" {
		t.Fatalf("citizen saw %d complaints", len(page.Items))
	}
	page, err = env.Engine.ListComplaints(env.Ctx, env.caller(t, "rt1"), engine.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("admin saw %d complaints", len(page.Items))
	}
	if _, err := env.Engine.ListComplaints(env.Ctx, env.caller(t, "root"), engine.ListOptions{}); !isValidation(err) {
		t.Fatalf("caller without neighborhood must pass one, got %v", err)
	}
	if _, err := env.Engine.ListComplaints(env.Ctx, env.caller(t, "rt1"), engine.ListOptions{Org: "rw"}); !isValidation(err) {
		t.Fatalf("bad org must be rejected, got %v", err)
	}
}

func pageAllComplaints(t *testing.T, env testEnv) {
	t.Helper()
	owner := env.caller(t, "warga1")
	for i := 0; i < 25; i++ {
		if _, err := env.Engine.CreateComplaint(env.Ctx, owner, engine.ComplaintInput{Org: str("rt"), Title: str("t"), Description: str("d")}); err != nil {
			t.Fatal(err)
		}
	}
	admin := env.caller(t, "rt1")
	seen := map[string]bool{}
	var sizes []int
	cursor := ""
	for {
		page, err := env.Engine.ListComplaints(env.Ctx, admin, engine.ListOptions{Limit: 10, Cursor: cursor})
		if err != nil {
			t.Fatal(err)
		}
		sizes = append(sizes, len(page.Items))
		for _, cp := range page.Items {
			if seen[cp.ID] {
				t.Fatalf("duplicate %s", cp.ID)
			}
			seen[cp.ID] = true
		}
		if page.NextCursor == nil {
			break
		}
		cursor = strconv.FormatInt(*page.NextCursor, 10)
	}
	if len(sizes) != 3 || sizes[0] != 10 || sizes[1] != 10 || sizes[2] != 5 {
		t.Fatalf("page sizes %v", sizes)
	}
	if len(seen) != 25 {
		t.Fatalf("saw %d records", len(seen))
	}
}

func TestPaginationCoversEveryRecordOnce(t *testing.T) {
	pageAllComplaints(t, newTestEnv(t))
}

func TestPaginationWithWallClock(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Now = time.Now
	pageAllComplaints(t, env)
}

func TestCreatedAtIsStrictlyIncreasing(t *testing.T) {
	env := newTestEnv(t)
	frozen := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	env.Engine.Now = func() time.Time { return frozen }
	owner := env.caller(t, "warga1")
	var last time.Time
	for i := 0; i < 5; i++ {
		cp, err := env.Engine.CreateComplaint(env.Ctx, owner, engine.ComplaintInput{Org: str("rt"), Title: str("t"), Description: str("d")})
		if err != nil {
			t.Fatal(err)
		}
		if !cp.CreatedAt.After(last) {
			t.Fatalf("createdAt %v not after %v", cp.CreatedAt, last)
		}
		last = cp.CreatedAt
	}
}

func TestFinanceSummaryIsExact(t *testing.T) {
	env := newTestEnv(t)
	admin := env.caller(t, "rt1")
	entries := []struct {
		typ    string
		amount float64
	}{
		{"income", 10.10}, {"income", 20.20}, {"income", 0.30}, {"expense", 5.05},
	}
	for _, e := range entries {
		if _, err := env.Engine.CreateFinance(env.Ctx, admin, engine.FinanceInput{Org: str("rt"), Type: str(e.typ), Amount: amt(e.amount), ForceApproved: true}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.Engine.CreateFinance(env.Ctx, env.caller(t, "warga1"), engine.FinanceInput{Org: str("rt"), Type: str("income"), Amount: amt(99)}); err != nil {
		t.Fatal(err)
	}
	sum, err := env.Engine.FinanceSummary(env.Ctx, admin, engine.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Income != 30.60 || sum.Expense != 5.05 || sum.Balance != 25.55 {
		t.Fatalf("summary %+v", sum)
	}
	if sum.LimitUsed != 4 || sum.Status != "approved" || sum.Org != nil {
		t.Fatalf("summary meta %+v", sum)
	}
	all, err := env.Engine.FinanceSummary(env.Ctx, admin, engine.ListOptions{Status: "all", Org: "rt"})
	if err != nil {
		t.Fatal(err)
	}
	if all.LimitUsed != 5 || all.Org == nil || *all.Org != "rt" {
		t.Fatalf("summary all %+v", all)
	}
}

func TestFinanceApprovalRules(t *testing.T) {
	env := newTestEnv(t)
	admin := env.caller(t, "rt1")
	citizen := env.caller(t, "warga1")
	tx, err := env.Engine.CreateFinance(env.Ctx, citizen, engine.FinanceInput{Org: str("rt"), Type: str("expense"), Amount: amt(50), ForceApproved: true})
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != domain.FinancePending {
		t.Fatalf("citizens cannot force approval, got %s", tx.Status)
	}
	if _, err := env.Engine.CreateFinance(env.Ctx, citizen, engine.FinanceInput{Org: str("rt"), Type: str("expense"), Amount: amt(-1)}); !isValidation(err) {
		t.Fatalf("negative amount should be invalid, got %v", err)
	}
	if _, err := env.Engine.CreateFinance(env.Ctx, env.caller(t, "pkk1"), engine.FinanceInput{Org: str("rt"), Type: str("income"), Amount: amt(1), ForceApproved: true}); !isForbidden(err) {
		t.Fatalf("force approve outside scope should be forbidden, got %v", err)
	}
	if _, err := env.Engine.DecideFinance(env.Ctx, citizen, tx.ID, true, ""); !isForbidden(err) {
		t.Fatalf("citizen approve should be forbidden, got %v", err)
	}
	tx, err = env.Engine.DecideFinance(env.Ctx, admin, tx.ID, false, "no receipt")
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != domain.FinanceRejected || tx.Approval.Reason != "no receipt" {
		t.Fatalf("reject: %+v", tx)
	}
	if _, err := env.Engine.DecideFinance(env.Ctx, admin, tx.ID, true, ""); !isConflict(err) {
		t.Fatalf("strict approval should refuse decided transactions, got %v", err)
	}

	env.Engine.Config.Finance.StrictApproval = false
	tx, err = env.Engine.DecideFinance(env.Ctx, admin, tx.ID, true, "")
	if err != nil || tx.Status != domain.FinanceApproved {
		t.Fatalf("permissive approval: %v %+v", err, tx)
	}
}

func TestFinanceUpdateDropsInvalidAmount(t *testing.T) {
	env := newTestEnv(t)
	admin := env.caller(t, "rt1")
	tx, err := env.Engine.CreateFinance(env.Ctx, admin, engine.FinanceInput{Org: str("rt"), Type: str("income"), Amount: amt(12.5), Note: str("iuran")})
	if err != nil {
		t.Fatal(err)
	}
	tx, err = env.Engine.UpdateFinance(env.Ctx, admin, tx.ID, engine.FinanceInput{Amount: amt(0), Note: str(""), Category: str("kas"), Org: str("pkk")})
	if err != nil {
		t.Fatal(err)
	}
	if tx.Amount != 12.5 || tx.Note != "iuran" || tx.Category != "kas" || tx.Org != "rt" {
		t.Fatalf("update: %+v", tx)
	}
	tx, err = env.Engine.UpdateFinance(env.Ctx, env.caller(t, "root"), tx.ID, engine.FinanceInput{Amount: amt(20), Org: str("pkk")})
	if err != nil || tx.Amount != 20 || tx.Org != "pkk" {
		t.Fatalf("super admin update: %v %+v", err, tx)
	}
}

func TestAnnouncementVisibilityAndOrdering(t *testing.T) {
	env := newTestEnv(t)
	admin := env.caller(t, "rt1")
	pinned := true
	if _, err := env.Engine.CreateAnnouncement(env.Ctx, admin, engine.AnnouncementInput{Org: str("rt"), Title: str("old pinned"), Body: str("b"), Pinned: &pinned}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateAnnouncement(env.Ctx, admin, engine.AnnouncementInput{Org: str("rt"), Title: str("newer"), Body: str("b")}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateAnnouncement(env.Ctx, admin, engine.AnnouncementInput{Org: str("rt"), Title: str("draft"), Body: str("b"), Status: str("draft")}); err != nil {
		t.Fatal(err)
	}
	page, err := env.Engine.ListAnnouncements(env.Ctx, env.caller(t, "warga1"), engine.ListOptions{Status: "all"})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.Items[0].Title != "old pinned" || page.Items[1].Title != "newer" {
		t.Fatalf("citizen listing %+v", page.Items)
	}
	page, err = env.Engine.ListAnnouncements(env.Ctx, admin, engine.ListOptions{Status: "all"})
	if err != nil || len(page.Items) != 3 {
		t.Fatalf("admin listing: %v %d", err, len(page.Items))
	}
	if _, err := env.Engine.CreateAnnouncement(env.Ctx, env.caller(t, "warga1"), engine.AnnouncementInput{Org: str("rt"), Title: str("x"), Body: str("b")}); !isForbidden(err) {
		t.Fatalf("citizen create should be forbidden, got %v", err)
	}
	if _, err := env.Engine.CreateAnnouncement(env.Ctx, admin, engine.AnnouncementInput{Org: str("pkk"), Title: str("x"), Body: str("b")}); !isForbidden(err) {
		t.Fatalf("org mismatch should be forbidden, got %v", err)
	}
	if _, err := env.Engine.CreateAnnouncement(env.Ctx, env.caller(t, "rt2"), engine.AnnouncementInput{Org: str("rt"), NeighborhoodID: str("nb-1"), Title: str("x"), Body: str("b")}); !isForbidden(err) {
		t.Fatalf("neighborhood mismatch should be forbidden, got %v", err)
	}
	if _, err := env.Engine.CreateAnnouncement(env.Ctx, admin, engine.AnnouncementInput{Org: str("rt"), Title: str("x")}); !isValidation(err) {
		t.Fatalf("missing body should be invalid, got %v", err)
	}
}

func TestAnnouncementPagesServePinnedOnce(t *testing.T) {
	env := newTestEnv(t)
	admin := env.caller(t, "rt1")
	pinned := true
	for i := 0; i < 7; i++ {
		in := engine.AnnouncementInput{Org: str("rt"), Title: str(strconv.Itoa(i)), Body: str("b")}
		if i%2 == 0 {
			in.Pinned = &pinned
		}
		if _, err := env.Engine.CreateAnnouncement(env.Ctx, admin, in); err != nil {
			t.Fatal(err)
		}
	}
	var order []domain.Announcement
	seen := map[string]bool{}
	cursor := ""
	for pages := 0; pages < 10; pages++ {
		page, err := env.Engine.ListAnnouncements(env.Ctx, env.caller(t, "warga1"), engine.ListOptions{Limit: 3, Cursor: cursor})
		if err != nil {
			t.Fatal(err)
		}
		for _, a := range page.Items {
			if seen[a.ID] {
				t.Fatalf("announcement %s served twice", a.Title)
			}
			seen[a.ID] = true
			order = append(order, a)
		}
		if page.NextCursor == nil {
			break
		}
		cursor = strconv.FormatInt(*page.NextCursor, 10)
	}
	want := []string{"6", "4", "2", "0", "5", "3", "1"}
	if len(order) != len(want) {
		t.Fatalf("served %d announcements, want %d", len(order), len(want))
	}
	for i, a := range order {
		if a.Title != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, a.Title, want[i])
		}
	}
}

func TestEventsListAscendingWithWindow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.caller(t, "pkk1")
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, d := range []int{3, 1, 2} {
		start := base.AddDate(0, 0, d)
		if _, err := env.Engine.CreateEvent(env.Ctx, admin, engine.EventInput{Org: str("pkk"), Title: str("posyandu"), StartAt: &start}); err != nil {
			t.Fatal(err)
		}
	}
	to := base.AddDate(0, 0, 2)
	page, err := env.Engine.ListEvents(env.Ctx, env.caller(t, "warga1"), engine.ListOptions{To: &to})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || !page.Items[0].StartAt.Before(page.Items[1].StartAt) {
		t.Fatalf("events %+v", page.Items)
	}
	if !page.Items[0].EndAt.Equal(page.Items[0].StartAt) {
		t.Fatalf("endAt should default to startAt")
	}
	if _, err := env.Engine.CreateEvent(env.Ctx, admin, engine.EventInput{Org: str("pkk"), Title: str("x")}); !isValidation(err) {
		t.Fatalf("missing startAt should be invalid, got %v", err)
	}
}

func TestBootstrapAdminRunsOnce(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Engine.BootstrapAdmin(env.Ctx, env.caller(t, "warga1"))
	if err != nil || !res.Upgraded {
		t.Fatalf("first bootstrap: %v %+v", err, res)
	}
	if !env.caller(t, "warga1").IsSuperAdmin() {
		t.Fatalf("warga1 should be super admin")
	}
	res, err = env.Engine.BootstrapAdmin(env.Ctx, env.caller(t, "warga2"))
	if err != nil || res.Upgraded || res.SuperAdminUID != "warga1" {
		t.Fatalf("second bootstrap: %v %+v", err, res)
	}
	if env.caller(t, "warga2").IsAdministrative() {
		t.Fatalf("warga2 must stay a citizen")
	}
}

func TestProfileAccessRules(t *testing.T) {
	env := newTestEnv(t)
	citizen := env.caller(t, "warga1")
	if _, err := env.Engine.GetProfile(env.Ctx, citizen, "warga2"); !isForbidden(err) {
		t.Fatalf("reading another profile should be forbidden, got %v", err)
	}
	p, err := env.Engine.UpdateProfile(env.Ctx, citizen, "", engine.ProfilePatch{Name: str("Siti"), Role: str("super_admin")})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Siti" || p.Role != "warga" {
		t.Fatalf("self update: %+v", p)
	}
	p, err = env.Engine.UpdateProfile(env.Ctx, env.caller(t, "root"), "warga1", engine.ProfilePatch{Role: str("kt_ketua")})
	if err != nil || p.Role != "kt_ketua" {
		t.Fatalf("super admin role change: %v %+v", err, p)
	}
	fresh, err := env.Engine.ResolveCaller(env.Ctx, "nobody")
	if err != nil || fresh.Role.String() != "warga" || fresh.NeighborhoodID != "" {
		t.Fatalf("missing profile should default to citizen: %v %+v", err, fresh)
	}
	p, err = env.Engine.RegisterSelf(env.Ctx, fresh, engine.ProfilePatch{Name: str("Budi"), NeighborhoodID: str("nb-9"), Role: str("rt_ketua")})
	if err != nil || p.Role != "warga" || p.Status != "active" || p.NeighborhoodID != "nb-9" {
		t.Fatalf("register self: %v %+v", err, p)
	}
}

func TestAdminNeighborhoodIsFixed(t *testing.T) {
	env := newTestEnv(t)
	it := env.item(t, 3)
	if err := env.Engine.DeleteItem(env.Ctx, env.caller(t, "rt2"), it.ID); !isForbidden(err) {
		t.Fatalf("foreign admin delete should be forbidden, got %v", err)
	}
	if _, err := env.Engine.UpdateProfile(env.Ctx, env.caller(t, "rt2"), "", engine.ProfilePatch{NeighborhoodID: str("nb-1")}); !isForbidden(err) {
		t.Fatalf("admin moving own neighborhood should be forbidden, got %v", err)
	}
	if _, err := env.Engine.RegisterSelf(env.Ctx, env.caller(t, "rt2"), engine.ProfilePatch{NeighborhoodID: str("nb-1")}); !isForbidden(err) {
		t.Fatalf("admin re-registering into another neighborhood should be forbidden, got %v", err)
	}
	rt2 := env.caller(t, "rt2")
	if rt2.NeighborhoodID != "nb-2" {
		t.Fatalf("neighborhood changed to %s", rt2.NeighborhoodID)
	}
	if err := env.Engine.DeleteItem(env.Ctx, rt2, it.ID); !isForbidden(err) {
		t.Fatalf("delete after rejected move should stay forbidden, got %v", err)
	}
	if p, err := env.Engine.UpdateProfile(env.Ctx, rt2, "", engine.ProfilePatch{NeighborhoodID: str("nb-2"), Name: str("Pak Joko")}); err != nil || p.Name != "Pak Joko" {
		t.Fatalf("unchanged neighborhood must not block other fields: %v %+v", err, p)
	}
	if p, err := env.Engine.UpdateProfile(env.Ctx, env.caller(t, "warga1"), "", engine.ProfilePatch{NeighborhoodID: str("nb-3")}); err != nil || p.NeighborhoodID != "nb-3" {
		t.Fatalf("citizen move: %v %+v", err, p)
	}
	if p, err := env.Engine.UpdateProfile(env.Ctx, env.caller(t, "root"), "rt2", engine.ProfilePatch{NeighborhoodID: str("nb-1")}); err != nil || p.NeighborhoodID != "nb-1" {
		t.Fatalf("super admin move: %v %+v", err, p)
	}
}

func TestMutationsAreLogged(t *testing.T) {
	env := newTestEnv(t)
	it := env.item(t, 2)
	l, err := env.loan(t, "warga1", it.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SettleLoan(env.Ctx, env.caller(t, "rt1"), l.ID, engine.LoanApprove, ""); err != nil {
		t.Fatal(err)
	}
	rows, err := env.Engine.Repo.LatestActivity(env.Ctx, 3, 0, "nb-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0].Type != "loan.approve" || rows[1].Type != "loan.create" || rows[2].Type != "item.create" {
		t.Fatalf("activity %+v", rows)
	}
}
