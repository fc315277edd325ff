package guyubsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Guyub HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client for the API served under baseURL + "/api".
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api",
		Timeout:  10 * time.Second,
	}
}

// Profile is the API user profile (partial).
type Profile struct {
	UID            string `json:"uid"`
	Name           string `json:"name"`
	NeighborhoodID string `json:"neighborhoodId"`
	Role           string `json:"role"`
	Status         string `json:"status"`
}

// Announcement is a neighborhood notice (partial).
type Announcement struct {
	ID             string    `json:"id"`
	NeighborhoodID string    `json:"neighborhoodId"`
	Org            string    `json:"org"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Pinned         bool      `json:"pinned"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Item is a lendable inventory item (partial).
type Item struct {
	ID             string `json:"id"`
	NeighborhoodID string `json:"neighborhoodId"`
	Org            string `json:"org"`
	Name           string `json:"name"`
	QtyTotal       int    `json:"qtyTotal"`
	QtyAvailable   int    `json:"qtyAvailable"`
	Status         string `json:"status"`
}

// Loan is a borrowing request against an Item (partial).
type Loan struct {
	ID             string     `json:"id"`
	NeighborhoodID string     `json:"neighborhoodId"`
	ItemID         string     `json:"itemId"`
	ItemName       string     `json:"itemName"`
	Qty            int        `json:"qty"`
	Status         string     `json:"status"`
	ReturnedAt     *time.Time `json:"returnedAt"`
	CreatedBy      string     `json:"createdBy"`
}

// Complaint is a citizen report (partial).
type Complaint struct {
	ID             string `json:"id"`
	NeighborhoodID string `json:"neighborhoodId"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
}

// FinanceSummary totals a capped window of transactions.
type FinanceSummary struct {
	NeighborhoodID string  `json:"neighborhoodId"`
	Status         string  `json:"status"`
	LimitUsed      int     `json:"limitUsed"`
	Income         float64 `json:"income"`
	Expense        float64 `json:"expense"`
	Balance        float64 `json:"balance"`
}

// ListParams are the shared listing filters.
type ListParams struct {
	NeighborhoodID string
	Org            string
	Status         string
	Limit          int
	Cursor         string
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.NeighborhoodID != "" {
		v.Set("neighborhoodId", p.NeighborhoodID)
	}
	if p.Org != "" {
		v.Set("org", p.Org)
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Cursor != "" {
		v.Set("cursor", p.Cursor)
	}
	return v
}

// Page is one listing page. NextCursor is nil on the last page.
type Page[T any] struct {
	Items      []T
	NextCursor *int64
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

type envelope struct {
	OK         bool            `json:"ok"`
	Data       json.RawMessage `json:"data"`
	NextCursor *int64          `json:"nextCursor"`
	Error      string          `json:"error"`
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "health", nil, nil)
	return err
}

// DevLogin asks a dev-login enabled server for a token and keeps it for later calls.
func (c *Client) DevLogin(ctx context.Context, uid string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.data(ctx, http.MethodPost, "auth/dev/login", nil, map[string]string{"uid": uid}, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

// Me returns the caller's own profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.data(ctx, http.MethodGet, "users", nil, nil, &p)
	return p, err
}

// Announcements lists announcements visible to the caller.
func (c *Client) Announcements(ctx context.Context, p ListParams) (Page[Announcement], error) {
	return list[Announcement](ctx, c, "announcements", p.values())
}

// CreateAnnouncement publishes an announcement in a scope.
func (c *Client) CreateAnnouncement(ctx context.Context, neighborhoodID, org, title, body string) (Announcement, error) {
	req := map[string]any{"neighborhoodId": neighborhoodID, "org": org, "title": title, "body": body}
	var out Announcement
	err := c.data(ctx, http.MethodPost, "announcements", nil, req, &out)
	return out, err
}

// Items lists inventory items.
func (c *Client) Items(ctx context.Context, p ListParams) (Page[Item], error) {
	v := p.values()
	v.Set("kind", "items")
	return list[Item](ctx, c, "inventory", v)
}

// CreateItem registers an item with qtyTotal units, all available.
func (c *Client) CreateItem(ctx context.Context, neighborhoodID, org, name string, qtyTotal int) (Item, error) {
	req := map[string]any{"neighborhoodId": neighborhoodID, "org": org, "name": name, "qtyTotal": qtyTotal}
	var out Item
	err := c.data(ctx, http.MethodPost, "inventory", url.Values{"kind": {"items"}}, req, &out)
	return out, err
}

// Loans lists loans. Citizens only receive their own.
func (c *Client) Loans(ctx context.Context, p ListParams) (Page[Loan], error) {
	v := p.values()
	v.Set("kind", "loans")
	return list[Loan](ctx, c, "inventory", v)
}

// RequestLoan asks to borrow qty units of an item, in the item's own scope.
func (c *Client) RequestLoan(ctx context.Context, item Item, qty int, purpose string) (Loan, error) {
	req := map[string]any{
		"neighborhoodId": item.NeighborhoodID,
		"org":            item.Org,
		"itemId":         item.ID,
		"qty":            qty,
		"purpose":        purpose,
	}
	var out Loan
	err := c.data(ctx, http.MethodPost, "inventory", url.Values{"kind": {"loans"}}, req, &out)
	return out, err
}

// SettleLoan approves, rejects or returns a loan. action is approve, reject or return.
func (c *Client) SettleLoan(ctx context.Context, loanID, action, reason string) (Loan, error) {
	q := url.Values{"kind": {"loans"}, "action": {action}, "id": {loanID}}
	var out Loan
	err := c.data(ctx, http.MethodPost, "inventory", q, map[string]string{"reason": reason}, &out)
	return out, err
}

// CreateComplaint files a complaint to org in the caller's neighborhood.
func (c *Client) CreateComplaint(ctx context.Context, org, title, description, priority string) (Complaint, error) {
	req := map[string]any{"org": org, "title": title, "description": description}
	if priority != "" {
		req["priority"] = priority
	}
	var out Complaint
	err := c.data(ctx, http.MethodPost, "complaints", nil, req, &out)
	return out, err
}

// UpdateComplaintStatus moves a complaint along its lifecycle.
func (c *Client) UpdateComplaintStatus(ctx context.Context, id, status, note string) (Complaint, error) {
	q := url.Values{"action": {"updateStatus"}, "id": {id}}
	var out Complaint
	err := c.data(ctx, http.MethodPost, "complaints", q, map[string]string{"status": status, "note": note}, &out)
	return out, err
}

// FinanceSummary totals income and expense of a neighborhood.
func (c *Client) FinanceSummary(ctx context.Context, p ListParams) (FinanceSummary, error) {
	v := p.values()
	v.Set("action", "summary")
	var out FinanceSummary
	err := c.data(ctx, http.MethodGet, "finance", v, nil, &out)
	return out, err
}

func list[T any](ctx context.Context, c *Client, endpoint string, q url.Values) (Page[T], error) {
	env, err := c.do(ctx, http.MethodGet, endpoint, q, nil)
	if err != nil {
		return Page[T]{}, err
	}
	page := Page[T]{NextCursor: env.NextCursor}
	if err := json.Unmarshal(env.Data, &page.Items); err != nil {
		return Page[T]{}, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return page, nil
}

func (c *Client) data(ctx context.Context, method, endpoint string, q url.Values, body, out any) error {
	env, err := c.do(ctx, method, endpoint, q, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, q url.Values, body any) (envelope, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return envelope{}, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode >= 300 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return envelope{}, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return envelope{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	return env, nil
}

func (c *Client) base() string {
	p := "/" + strings.Trim(c.BasePath, "/")
	if p == "/" {
		p = ""
	}
	return strings.TrimRight(c.BaseURL, "/") + p
}
