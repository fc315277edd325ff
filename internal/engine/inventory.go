package engine

import (
	"context"
	"database/sql"
	"time"

	"guyub/internal/access"
	"guyub/internal/audit"
	"guyub/internal/config"
	"guyub/internal/domain"
)

const (
	defaultCondition = "baik"
	defaultUnit      = "unit"
)

// ItemInput carries create and update fields of an inventory item.
type ItemInput struct {
	NeighborhoodID *string
	Org            *string
	Name           *string
	Category       *string
	Description    *string
	PhotoURL       *string
	LocationText   *string
	Condition      *string
	Unit           *string
	QtyTotal       *int
	QtyAvailable   *int
	Tags           *[]string
	Status         *string
}

// clampAvailable keeps availability within [0, qtyTotal].
func clampAvailable(it *domain.InventoryItem) {
	if it.QtyAvailable > it.QtyTotal {
		it.QtyAvailable = it.QtyTotal
	}
	if it.QtyAvailable < 0 {
		it.QtyAvailable = 0
	}
}

func validItemStatus(s string) bool {
	return oneOf(s, domain.ItemActive, domain.ItemInactive)
}

// ListItems defaults to active items and is open to every caller.
func (e Engine) ListItems(ctx context.Context, c access.Caller, opts ListOptions) (Page[domain.InventoryItem], error) {
	f, err := e.resolveList(c, opts, config.Items, domain.ItemActive)
	if err != nil {
		return Page[domain.InventoryItem]{}, err
	}
	items, err := e.Repo.ListItems(ctx, f)
	if err != nil {
		return Page[domain.InventoryItem]{}, err
	}
	return newPage(items, f.Limit, func(it domain.InventoryItem) time.Time { return it.CreatedAt }), nil
}

func (e Engine) CreateItem(ctx context.Context, c access.Caller, in ItemInput) (domain.InventoryItem, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.InventoryItem{}, err
	}
	nbh, org, err := createScope(c, val(in.NeighborhoodID), val(in.Org))
	if err != nil {
		return domain.InventoryItem{}, err
	}
	it := domain.InventoryItem{
		ID:           newID(),
		Scope:        domain.Scope{NeighborhoodID: nbh, Org: string(org)},
		Name:         clean(val(in.Name), maxTitle),
		Category:     clean(val(in.Category), maxCategory),
		Description:  clean(val(in.Description), maxNote),
		PhotoURL:     clean(val(in.PhotoURL), maxURL),
		LocationText: clean(val(in.LocationText), maxLocation),
		Condition:    clean(val(in.Condition), 30),
		Unit:         clean(val(in.Unit), 20),
		Tags:         []string{},
		Status:       clean(val(in.Status), 20),
	}
	if it.Name == "" {
		return domain.InventoryItem{}, invalid("name is required")
	}
	if in.QtyTotal != nil {
		it.QtyTotal = *in.QtyTotal
	}
	if it.QtyTotal < 0 {
		return domain.InventoryItem{}, invalid("qtyTotal must be >= 0")
	}
	it.QtyAvailable = it.QtyTotal
	if in.QtyAvailable != nil {
		it.QtyAvailable = *in.QtyAvailable
	}
	clampAvailable(&it)
	if it.Condition == "" {
		it.Condition = defaultCondition
	}
	if it.Unit == "" {
		it.Unit = defaultUnit
	}
	if it.Status == "" {
		it.Status = domain.ItemActive
	}
	if !validItemStatus(it.Status) {
		return domain.InventoryItem{}, invalid("status must be active|inactive")
	}
	if in.Tags != nil {
		it.Tags = cleanTags(*in.Tags)
	}
	if err := c.RequireScope(org, nbh); err != nil {
		return domain.InventoryItem{}, err
	}
	now := e.now()
	it.Stamps = domain.Stamps{CreatedAt: now, CreatedBy: c.UID, UpdatedAt: now, UpdatedBy: c.UID}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertItem(ctx, tx, it); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "item.create", NeighborhoodID: nbh, Org: it.Org, EntityKind: "item", EntityID: it.ID, ActorID: c.UID, Payload: audit.Payload{"qtyTotal": it.QtyTotal, "qtyAvailable": it.QtyAvailable}})
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return it, nil
}

// UpdateItem patches an item. Negative quantities are ignored and
// availability is clamped into [0, qtyTotal] afterwards.
func (e Engine) UpdateItem(ctx context.Context, c access.Caller, id string, in ItemInput) (domain.InventoryItem, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.InventoryItem{}, err
	}
	var out domain.InventoryItem
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		it, err := e.Repo.GetItemTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(it.Org), it.NeighborhoodID); err != nil {
			return err
		}
		if err := moveScope(c, &it.NeighborhoodID, &it.Org, in.NeighborhoodID, in.Org); err != nil {
			return err
		}
		patchString(&it.Name, in.Name, maxTitle)
		patchString(&it.Category, in.Category, maxCategory)
		patchString(&it.Description, in.Description, maxNote)
		patchString(&it.PhotoURL, in.PhotoURL, maxURL)
		patchString(&it.LocationText, in.LocationText, maxLocation)
		patchString(&it.Condition, in.Condition, 30)
		patchString(&it.Unit, in.Unit, 20)
		if st := clean(val(in.Status), 20); st != "" {
			if !validItemStatus(st) {
				return invalid("status must be active|inactive")
			}
			it.Status = st
		}
		if in.Tags != nil {
			it.Tags = cleanTags(*in.Tags)
		}
		if in.QtyTotal != nil && *in.QtyTotal >= 0 {
			it.QtyTotal = *in.QtyTotal
		}
		if in.QtyAvailable != nil && *in.QtyAvailable >= 0 {
			it.QtyAvailable = *in.QtyAvailable
		}
		clampAvailable(&it)
		it.UpdatedAt = e.now()
		it.UpdatedBy = c.UID
		if err := e.Repo.UpdateItem(ctx, tx, it); err != nil {
			return err
		}
		out = it
		return e.record(ctx, tx, audit.Entry{Type: "item.update", NeighborhoodID: it.NeighborhoodID, Org: it.Org, EntityKind: "item", EntityID: it.ID, ActorID: c.UID, Payload: audit.Payload{"qtyTotal": it.QtyTotal, "qtyAvailable": it.QtyAvailable}})
	})
	return out, err
}

func (e Engine) DeleteItem(ctx context.Context, c access.Caller, id string) error {
	if err := c.RequireAdmin(); err != nil {
		return err
	}
	return e.withTx(ctx, func(tx *sql.Tx) error {
		it, err := e.Repo.GetItemTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(it.Org), it.NeighborhoodID); err != nil {
			return err
		}
		if err := e.Repo.DeleteItem(ctx, tx, id); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "item.delete", NeighborhoodID: it.NeighborhoodID, Org: it.Org, EntityKind: "item", EntityID: id, ActorID: c.UID})
	})
}
