package engine

import (
	"strconv"
	"strings"
	"time"

	"guyub/internal/access"
	"guyub/internal/repo"
)

// StatusAll disables the status filter of a listing.
const StatusAll = "all"

// ListOptions are the raw query parameters of a listing.
type ListOptions struct {
	NeighborhoodID string
	Org            string
	Status         string
	Limit          int
	Cursor         string
	From           *time.Time
	To             *time.Time
	Mine           bool
}

// Page is one page of a listing. NextCursor is the sort key of the last item
// in milliseconds, set only when the page came back full.
type Page[T any] struct {
	Items      []T
	NextCursor *int64
}

func newPage[T any](items []T, limit int, key func(T) time.Time) Page[T] {
	p := Page[T]{Items: items}
	if limit > 0 && len(items) == limit {
		c := key(items[len(items)-1]).UnixMilli()
		p.NextCursor = &c
	}
	return p
}

// resolveList turns query parameters into a store filter for the caller.
func (e Engine) resolveList(c access.Caller, opts ListOptions, resource, defaultStatus string) (repo.ListFilter, error) {
	nbh := clean(c.DefaultNeighborhood(clean(opts.NeighborhoodID, maxNeighborhood)), maxNeighborhood)
	if nbh == "" {
		return repo.ListFilter{}, invalid("neighborhoodId is required (query or user profile)")
	}
	org, err := access.ParseOrg(opts.Org)
	if err != nil {
		return repo.ListFilter{}, invalid("%s", err.Error())
	}
	status := clean(opts.Status, maxStatus)
	switch status {
	case "":
		status = defaultStatus
	case StatusAll:
		status = ""
	}
	cursor, err := parseCursor(opts.Cursor)
	if err != nil {
		return repo.ListFilter{}, err
	}
	return repo.ListFilter{
		NeighborhoodID: nbh,
		Org:            string(org),
		Status:         status,
		From:           opts.From,
		To:             opts.To,
		Cursor:         cursor,
		Limit:          e.Config.PageSize(resource, opts.Limit),
	}, nil
}

func parseCursor(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, invalid("invalid cursor")
	}
	return v, nil
}

// ownOnly restricts citizens to their own records; admins opt in with Mine.
func ownOnly(c access.Caller, f *repo.ListFilter, mine bool) {
	if !c.IsAdministrative() || mine {
		f.CreatedBy = c.UID
	}
}
