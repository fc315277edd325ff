package domain

import "time"

// Scope is the tenant partition every resource record carries.
type Scope struct {
	NeighborhoodID string `json:"neighborhoodId"`
	Org            string `json:"org" enum:"rt,pkk,kt"`
}

// Stamps are the advisory audit fields written by every mutation.
type Stamps struct {
	CreatedAt time.Time `json:"createdAt" format:"date-time"`
	CreatedBy string    `json:"createdBy"`
	UpdatedAt time.Time `json:"updatedAt" format:"date-time"`
	UpdatedBy string    `json:"updatedBy"`
}

type Profile struct {
	UID            string     `json:"uid"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	NIK            string     `json:"nik"`
	Address        string     `json:"address"`
	NeighborhoodID string     `json:"neighborhoodId"`
	PhotoURL       string     `json:"photoUrl"`
	Role           string     `json:"role"`
	Status         string     `json:"status" enum:"active,suspended,pending"`
	VerifiedBy     string     `json:"verifiedBy,omitempty"`
	VerifiedAt     *time.Time `json:"verifiedAt,omitempty" format:"date-time"`
	CreatedAt      time.Time  `json:"createdAt" format:"date-time"`
	UpdatedAt      time.Time  `json:"updatedAt" format:"date-time"`
}

const (
	AnnouncementPublished = "published"
	AnnouncementDraft     = "draft"
	AnnouncementArchived  = "archived"
)

type Announcement struct {
	ID string `json:"id"`
	Scope
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Pinned bool     `json:"pinned"`
	Status string   `json:"status" enum:"published,draft,archived"`
	Tags   []string `json:"tags"`
	Stamps
}

const (
	EventPublished = "published"
	EventDraft     = "draft"
	EventCancelled = "cancelled"
)

// CommunityEvent is a calendar entry (kegiatan) for a tenant scope.
type CommunityEvent struct {
	ID string `json:"id"`
	Scope
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	LocationText string    `json:"locationText"`
	AllDay       bool      `json:"allDay"`
	Status       string    `json:"status" enum:"published,draft,cancelled"`
	Tags         []string  `json:"tags"`
	StartAt      time.Time `json:"startAt" format:"date-time"`
	EndAt        time.Time `json:"endAt" format:"date-time"`
	Stamps
}

const (
	ComplaintOpen       = "open"
	ComplaintInProgress = "in_progress"
	ComplaintResolved   = "resolved"
	ComplaintRejected   = "rejected"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Assignment struct {
	AssignedTo   string     `json:"assignedTo"`
	AssignedRole string     `json:"assignedRole"`
	AssignedAt   *time.Time `json:"assignedAt" format:"date-time"`
}

type Resolution struct {
	Note       string     `json:"note"`
	ResolvedAt *time.Time `json:"resolvedAt" format:"date-time"`
	By         string     `json:"by"`
}

type Complaint struct {
	ID string `json:"id"`
	Scope
	Category       string     `json:"category"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	LocationText   string     `json:"locationText"`
	PhotoURLs      []string   `json:"photoUrls"`
	Priority       string     `json:"priority" enum:"low,normal,high,urgent"`
	IsAnonymous    bool       `json:"isAnonymous"`
	Status         string     `json:"status" enum:"open,in_progress,resolved,rejected"`
	Assignment     Assignment `json:"assignment"`
	Resolution     Resolution `json:"resolution"`
	OccurredAt     time.Time  `json:"occurredAt" format:"date-time"`
	CreatedByName  string     `json:"createdByName"`
	CreatedByPhone string     `json:"createdByPhone"`
	Stamps
}

const (
	FinanceIncome  = "income"
	FinanceExpense = "expense"

	FinancePending  = "pending"
	FinanceApproved = "approved"
	FinanceRejected = "rejected"
)

// Approval records who moved a finance transaction or loan out of its initial state.
type Approval struct {
	Status string     `json:"status"`
	By     string     `json:"by"`
	At     *time.Time `json:"at" format:"date-time"`
	Reason string     `json:"reason"`
}

type FinanceTransaction struct {
	ID string `json:"id"`
	Scope
	Type       string    `json:"type" enum:"income,expense"`
	Category   string    `json:"category"`
	Amount     float64   `json:"amount"`
	Note       string    `json:"note"`
	Method     string    `json:"method"`
	ReceiptURL string    `json:"receiptUrl"`
	Tags       []string  `json:"tags"`
	OccurredAt time.Time `json:"occurredAt" format:"date-time"`
	Status     string    `json:"status" enum:"pending,approved,rejected"`
	Approval   Approval  `json:"approval"`
	Stamps
}

// FinanceSummary is an estimate over a capped window, not the full ledger.
type FinanceSummary struct {
	NeighborhoodID string  `json:"neighborhoodId"`
	Org            *string `json:"org"`
	Status         string  `json:"status"`
	LimitUsed      int     `json:"limitUsed"`
	Income         float64 `json:"income"`
	Expense        float64 `json:"expense"`
	Balance        float64 `json:"balance"`
}

const (
	ItemActive   = "active"
	ItemInactive = "inactive"
)

type InventoryItem struct {
	ID string `json:"id"`
	Scope
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	PhotoURL     string   `json:"photoUrl"`
	LocationText string   `json:"locationText"`
	Condition    string   `json:"condition"`
	Unit         string   `json:"unit"`
	QtyTotal     int      `json:"qtyTotal"`
	QtyAvailable int      `json:"qtyAvailable"`
	Tags         []string `json:"tags"`
	Status       string   `json:"status" enum:"active,inactive"`
	Stamps
}

const (
	LoanRequested = "requested"
	LoanApproved  = "approved"
	LoanRejected  = "rejected"
	LoanReturned  = "returned"
)

type InventoryLoan struct {
	ID string `json:"id"`
	Scope
	ItemID         string     `json:"itemId"`
	ItemName       string     `json:"itemName"`
	Qty            int        `json:"qty"`
	Note           string     `json:"note"`
	Purpose        string     `json:"purpose"`
	NeedFrom       *time.Time `json:"needFrom" format:"date-time"`
	NeedTo         *time.Time `json:"needTo" format:"date-time"`
	Status         string     `json:"status" enum:"requested,approved,rejected,returned"`
	Approval       Approval   `json:"approval"`
	ReturnedAt     *time.Time `json:"returnedAt" format:"date-time"`
	CreatedByName  string     `json:"createdByName"`
	CreatedByPhone string     `json:"createdByPhone"`
	Stamps
}

// Activity is one row of the mutation log.
type Activity struct {
	ID             int64     `json:"id"`
	TS             time.Time `json:"ts" format:"date-time"`
	Type           string    `json:"type"`
	NeighborhoodID string    `json:"neighborhoodId,omitempty"`
	Org            string    `json:"org,omitempty"`
	EntityKind     string    `json:"entityKind"`
	EntityID       string    `json:"entityId,omitempty"`
	ActorID        string    `json:"actorId"`
	Payload        string    `json:"payloadJson"`
}
