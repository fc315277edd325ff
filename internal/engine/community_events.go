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

// EventInput carries create and update fields of a calendar entry.
type EventInput struct {
	NeighborhoodID *string
	Org            *string
	Title          *string
	Description    *string
	LocationText   *string
	AllDay         *bool
	Status         *string
	Tags           *[]string
	StartAt        *time.Time
	EndAt          *time.Time
}

func validEventStatus(s string) bool {
	return oneOf(s, domain.EventPublished, domain.EventDraft, domain.EventCancelled)
}

// ListEvents lists by start time ascending. From/To bound startAt.
func (e Engine) ListEvents(ctx context.Context, c access.Caller, opts ListOptions) (Page[domain.CommunityEvent], error) {
	f, err := e.resolveList(c, opts, config.Events, domain.EventPublished)
	if err != nil {
		return Page[domain.CommunityEvent]{}, err
	}
	items, err := e.Repo.ListEvents(ctx, f)
	if err != nil {
		return Page[domain.CommunityEvent]{}, err
	}
	return newPage(items, f.Limit, func(ev domain.CommunityEvent) time.Time { return ev.StartAt }), nil
}

func (e Engine) CreateEvent(ctx context.Context, c access.Caller, in EventInput) (domain.CommunityEvent, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.CommunityEvent{}, err
	}
	nbh, org, err := createScope(c, val(in.NeighborhoodID), val(in.Org))
	if err != nil {
		return domain.CommunityEvent{}, err
	}
	ev := domain.CommunityEvent{
		ID:           newID(),
		Scope:        domain.Scope{NeighborhoodID: nbh, Org: string(org)},
		Title:        clean(val(in.Title), maxTitle),
		Description:  clean(val(in.Description), maxLongText),
		LocationText: clean(val(in.LocationText), maxLocation),
		Status:       clean(val(in.Status), maxStatus),
		Tags:         []string{},
	}
	if ev.Title == "" {
		return domain.CommunityEvent{}, invalid("title is required")
	}
	if in.StartAt == nil {
		return domain.CommunityEvent{}, invalid("startAt is required")
	}
	ev.StartAt = in.StartAt.UTC()
	ev.EndAt = ev.StartAt
	if in.EndAt != nil {
		ev.EndAt = in.EndAt.UTC()
	}
	if ev.EndAt.Before(ev.StartAt) {
		return domain.CommunityEvent{}, invalid("endAt must not be before startAt")
	}
	if ev.Status == "" {
		ev.Status = domain.EventPublished
	}
	if !validEventStatus(ev.Status) {
		return domain.CommunityEvent{}, invalid("status must be published|draft|cancelled")
	}
	if in.AllDay != nil {
		ev.AllDay = *in.AllDay
	}
	if in.Tags != nil {
		ev.Tags = cleanTags(*in.Tags)
	}
	if err := c.RequireScope(org, nbh); err != nil {
		return domain.CommunityEvent{}, err
	}
	now := e.now()
	ev.Stamps = domain.Stamps{CreatedAt: now, CreatedBy: c.UID, UpdatedAt: now, UpdatedBy: c.UID}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertEvent(ctx, tx, ev); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "event.create", NeighborhoodID: nbh, Org: ev.Org, EntityKind: "event", EntityID: ev.ID, ActorID: c.UID, Payload: audit.Payload{"title": ev.Title}})
	})
	if err != nil {
		return domain.CommunityEvent{}, err
	}
	return ev, nil
}

func (e Engine) UpdateEvent(ctx context.Context, c access.Caller, id string, in EventInput) (domain.CommunityEvent, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.CommunityEvent{}, err
	}
	var out domain.CommunityEvent
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		ev, err := e.Repo.GetEventTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(ev.Org), ev.NeighborhoodID); err != nil {
			return err
		}
		if err := moveScope(c, &ev.NeighborhoodID, &ev.Org, in.NeighborhoodID, in.Org); err != nil {
			return err
		}
		patchString(&ev.Title, in.Title, maxTitle)
		patchString(&ev.Description, in.Description, maxLongText)
		patchString(&ev.LocationText, in.LocationText, maxLocation)
		if st := clean(val(in.Status), maxStatus); st != "" {
			if !validEventStatus(st) {
				return invalid("status must be published|draft|cancelled")
			}
			ev.Status = st
		}
		if in.AllDay != nil {
			ev.AllDay = *in.AllDay
		}
		if in.Tags != nil {
			ev.Tags = cleanTags(*in.Tags)
		}
		if in.StartAt != nil {
			ev.StartAt = in.StartAt.UTC()
		}
		if in.EndAt != nil {
			ev.EndAt = in.EndAt.UTC()
		}
		if ev.EndAt.Before(ev.StartAt) {
			return invalid("endAt must not be before startAt")
		}
		ev.UpdatedAt = e.now()
		ev.UpdatedBy = c.UID
		if err := e.Repo.UpdateEvent(ctx, tx, ev); err != nil {
			return err
		}
		out = ev
		return e.record(ctx, tx, audit.Entry{Type: "event.update", NeighborhoodID: ev.NeighborhoodID, Org: ev.Org, EntityKind: "event", EntityID: ev.ID, ActorID: c.UID})
	})
	return out, err
}

func (e Engine) DeleteEvent(ctx context.Context, c access.Caller, id string) error {
	if err := c.RequireAdmin(); err != nil {
		return err
	}
	return e.withTx(ctx, func(tx *sql.Tx) error {
		ev, err := e.Repo.GetEventTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(ev.Org), ev.NeighborhoodID); err != nil {
			return err
		}
		if err := e.Repo.DeleteEvent(ctx, tx, id); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "event.delete", NeighborhoodID: ev.NeighborhoodID, Org: ev.Org, EntityKind: "event", EntityID: id, ActorID: c.UID})
	})
}
