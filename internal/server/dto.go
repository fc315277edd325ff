package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"guyub/internal/engine"
)

// Response envelopes

type dataBody[T any] struct {
	OK   bool `json:"ok"`
	Data T    `json:"data"`
}

type dataOutput[T any] struct {
	Status int
	Body   dataBody[T]
}

type pageBody[T any] struct {
	OK         bool   `json:"ok"`
	Data       []T    `json:"data"`
	NextCursor *int64 `json:"nextCursor"`
}

type pageOutput[T any] struct {
	Body pageBody[T]
}

type deletedBody struct {
	OK      bool   `json:"ok"`
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

type deletedOutput struct {
	Body deletedBody
}

// anyOutput backs endpoints whose payload shape depends on a query parameter.
type anyOutput struct {
	Status int
	Body   any
}

func respond[T any](v T) *dataOutput[T] {
	return &dataOutput[T]{Status: http.StatusOK, Body: dataBody[T]{OK: true, Data: v}}
}

func respondCreated[T any](v T) *dataOutput[T] {
	return &dataOutput[T]{Status: http.StatusCreated, Body: dataBody[T]{OK: true, Data: v}}
}

func respondPage[T any](p engine.Page[T]) *pageOutput[T] {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	return &pageOutput[T]{Body: pageBody[T]{OK: true, Data: items, NextCursor: p.NextCursor}}
}

func respondDeleted(id string) *deletedOutput {
	return &deletedOutput{Body: deletedBody{OK: true, Deleted: true, ID: id}}
}

func anyData(status int, v any) *anyOutput {
	return &anyOutput{Status: status, Body: dataBody[any]{OK: true, Data: v}}
}

func anyPage[T any](p engine.Page[T]) *anyOutput {
	return &anyOutput{Status: http.StatusOK, Body: respondPage(p).Body}
}

func jsonRequestBody[T any](api huma.API) *huma.RequestBody {
	var zero T
	return &huma.RequestBody{
		Content: map[string]*huma.MediaType{
			"application/json": {
				Schema: api.OpenAPI().Components.Schemas.Schema(reflect.TypeOf(zero), true, ""),
			},
		},
	}
}

// Moment accepts epoch milliseconds, "YYYY-MM-DD" or an RFC 3339 timestamp.
type Moment struct {
	time.Time
}

type momentError struct {
	raw string
}

func (e momentError) Error() string { return fmt.Sprintf("invalid date %q", e.raw) }

func (m *Moment) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t, err := parseMoment(s)
		if err != nil {
			return err
		}
		m.Time = t
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return momentError{raw: string(data)}
	}
	m.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

func (m Moment) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Time)
}

// Schema documents Moment as a date-time string or epoch milliseconds.
func (Moment) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		OneOf: []*huma.Schema{
			{Type: huma.TypeString, Format: "date-time"},
			{Type: huma.TypeString, Format: "date"},
			{Type: huma.TypeInteger, Description: "epoch milliseconds"},
		},
	}
}

func parseMoment(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, momentError{raw: raw}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, momentError{raw: raw}
}

func momentPtr(m *Moment) *time.Time {
	if m == nil || m.IsZero() {
		return nil
	}
	t := m.Time
	return &t
}

// queryTime parses an optional from/to query parameter.
func queryTime(name, raw string) (*time.Time, huma.StatusError) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseMoment(raw)
	if err != nil {
		return nil, newAPIError(http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return &t, nil
}

// Query parameters shared by every listing.

type ListQuery struct {
	NeighborhoodID string `query:"neighborhoodId" doc:"Tenant scope; defaults to the caller's profile"`
	Org            string `query:"org" doc:"rt, pkk or kt"`
	Status         string `query:"status" doc:"Status filter; all disables it"`
	Limit          int    `query:"limit"`
	Cursor         string `query:"cursor" doc:"nextCursor of the previous page"`
}

func (q ListQuery) options() engine.ListOptions {
	return engine.ListOptions{
		NeighborhoodID: q.NeighborhoodID,
		Org:            q.Org,
		Status:         q.Status,
		Limit:          q.Limit,
		Cursor:         q.Cursor,
	}
}

type WindowQuery struct {
	From string `query:"from" doc:"Lower bound, epoch ms or date"`
	To   string `query:"to" doc:"Upper bound, epoch ms or date"`
}

func (q WindowQuery) apply(opts *engine.ListOptions) huma.StatusError {
	from, err := queryTime("from", q.From)
	if err != nil {
		return err
	}
	to, err := queryTime("to", q.To)
	if err != nil {
		return err
	}
	opts.From, opts.To = from, to
	return nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Request payloads

type DevLoginRequest struct {
	UID string `json:"uid"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type ProfileRequest struct {
	Name           *string `json:"name,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	NIK            *string `json:"nik,omitempty"`
	Address        *string `json:"address,omitempty"`
	NeighborhoodID *string `json:"neighborhoodId,omitempty"`
	PhotoURL       *string `json:"photoUrl,omitempty"`
	Role           *string `json:"role,omitempty"`
	Status         *string `json:"status,omitempty"`
}

func (r ProfileRequest) patch() engine.ProfilePatch {
	return engine.ProfilePatch{
		Name:           r.Name,
		Phone:          r.Phone,
		NIK:            r.NIK,
		Address:        r.Address,
		NeighborhoodID: r.NeighborhoodID,
		PhotoURL:       r.PhotoURL,
		Role:           r.Role,
		Status:         r.Status,
	}
}

type AnnouncementRequest struct {
	NeighborhoodID *string   `json:"neighborhoodId,omitempty"`
	Org            *string   `json:"org,omitempty"`
	Title          *string   `json:"title,omitempty"`
	Body           *string   `json:"body,omitempty"`
	Pinned         *bool     `json:"pinned,omitempty"`
	Status         *string   `json:"status,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
}

func (r AnnouncementRequest) input() engine.AnnouncementInput {
	return engine.AnnouncementInput{
		NeighborhoodID: r.NeighborhoodID,
		Org:            r.Org,
		Title:          r.Title,
		Body:           r.Body,
		Pinned:         r.Pinned,
		Status:         r.Status,
		Tags:           r.Tags,
	}
}

type EventRequest struct {
	NeighborhoodID *string   `json:"neighborhoodId,omitempty"`
	Org            *string   `json:"org,omitempty"`
	Title          *string   `json:"title,omitempty"`
	Description    *string   `json:"description,omitempty"`
	LocationText   *string   `json:"locationText,omitempty"`
	AllDay         *bool     `json:"allDay,omitempty"`
	Status         *string   `json:"status,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
	StartAt        *Moment   `json:"startAt,omitempty"`
	EndAt          *Moment   `json:"endAt,omitempty"`
}

func (r EventRequest) input() engine.EventInput {
	return engine.EventInput{
		NeighborhoodID: r.NeighborhoodID,
		Org:            r.Org,
		Title:          r.Title,
		Description:    r.Description,
		LocationText:   r.LocationText,
		AllDay:         r.AllDay,
		Status:         r.Status,
		Tags:           r.Tags,
		StartAt:        momentPtr(r.StartAt),
		EndAt:          momentPtr(r.EndAt),
	}
}

type ComplaintRequest struct {
	NeighborhoodID *string   `json:"neighborhoodId,omitempty"`
	Org            *string   `json:"org,omitempty"`
	Category       *string   `json:"category,omitempty"`
	Title          *string   `json:"title,omitempty"`
	Description    *string   `json:"description,omitempty"`
	LocationText   *string   `json:"locationText,omitempty"`
	PhotoURLs      *[]string `json:"photoUrls,omitempty"`
	Priority       *string   `json:"priority,omitempty"`
	IsAnonymous    *bool     `json:"isAnonymous,omitempty"`
	OccurredAt     *Moment   `json:"occurredAt,omitempty"`
	Status         *string   `json:"status,omitempty"`
	ResolutionNote *string   `json:"resolutionNote,omitempty"`
}

func (r ComplaintRequest) input() engine.ComplaintInput {
	return engine.ComplaintInput{
		NeighborhoodID: r.NeighborhoodID,
		Org:            r.Org,
		Category:       r.Category,
		Title:          r.Title,
		Description:    r.Description,
		LocationText:   r.LocationText,
		PhotoURLs:      r.PhotoURLs,
		Priority:       r.Priority,
		IsAnonymous:    r.IsAnonymous,
		OccurredAt:     momentPtr(r.OccurredAt),
		Status:         r.Status,
		ResolutionNote: r.ResolutionNote,
	}
}

type AssignRequest struct {
	AssignedTo   string `json:"assignedTo"`
	AssignedRole string `json:"assignedRole,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

type FinanceRequest struct {
	NeighborhoodID *string   `json:"neighborhoodId,omitempty"`
	Org            *string   `json:"org,omitempty"`
	Type           *string   `json:"type,omitempty"`
	Category       *string   `json:"category,omitempty"`
	Amount         *float64  `json:"amount,omitempty"`
	Note           *string   `json:"note,omitempty"`
	Method         *string   `json:"method,omitempty"`
	ReceiptURL     *string   `json:"receiptUrl,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
	OccurredAt     *Moment   `json:"occurredAt,omitempty"`
	ForceApproved  bool      `json:"forceApproved,omitempty"`
}

func (r FinanceRequest) input() engine.FinanceInput {
	return engine.FinanceInput{
		NeighborhoodID: r.NeighborhoodID,
		Org:            r.Org,
		Type:           r.Type,
		Category:       r.Category,
		Amount:         r.Amount,
		Note:           r.Note,
		Method:         r.Method,
		ReceiptURL:     r.ReceiptURL,
		Tags:           r.Tags,
		OccurredAt:     momentPtr(r.OccurredAt),
		ForceApproved:  r.ForceApproved,
	}
}

type ItemRequest struct {
	NeighborhoodID *string   `json:"neighborhoodId,omitempty"`
	Org            *string   `json:"org,omitempty"`
	Name           *string   `json:"name,omitempty"`
	Category       *string   `json:"category,omitempty"`
	Description    *string   `json:"description,omitempty"`
	PhotoURL       *string   `json:"photoUrl,omitempty"`
	LocationText   *string   `json:"locationText,omitempty"`
	Condition      *string   `json:"condition,omitempty"`
	Unit           *string   `json:"unit,omitempty"`
	QtyTotal       *int      `json:"qtyTotal,omitempty"`
	QtyAvailable   *int      `json:"qtyAvailable,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
	Status         *string   `json:"status,omitempty"`
}

func (r ItemRequest) input() engine.ItemInput {
	return engine.ItemInput{
		NeighborhoodID: r.NeighborhoodID,
		Org:            r.Org,
		Name:           r.Name,
		Category:       r.Category,
		Description:    r.Description,
		PhotoURL:       r.PhotoURL,
		LocationText:   r.LocationText,
		Condition:      r.Condition,
		Unit:           r.Unit,
		QtyTotal:       r.QtyTotal,
		QtyAvailable:   r.QtyAvailable,
		Tags:           r.Tags,
		Status:         r.Status,
	}
}

type LoanRequest struct {
	NeighborhoodID *string `json:"neighborhoodId,omitempty"`
	Org            *string `json:"org,omitempty"`
	ItemID         *string `json:"itemId,omitempty"`
	Qty            *int    `json:"qty,omitempty"`
	Note           *string `json:"note,omitempty"`
	Purpose        *string `json:"purpose,omitempty"`
	NeedFrom       *Moment `json:"needFrom,omitempty"`
	NeedTo         *Moment `json:"needTo,omitempty"`
}

func (r LoanRequest) input() engine.LoanInput {
	return engine.LoanInput{
		NeighborhoodID: r.NeighborhoodID,
		Org:            r.Org,
		ItemID:         r.ItemID,
		Qty:            r.Qty,
		Note:           r.Note,
		Purpose:        r.Purpose,
		NeedFrom:       momentPtr(r.NeedFrom),
		NeedTo:         momentPtr(r.NeedTo),
	}
}
