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

// AnnouncementInput carries create and update fields. Nil means absent.
type AnnouncementInput struct {
	NeighborhoodID *string
	Org            *string
	Title          *string
	Body           *string
	Pinned         *bool
	Status         *string
	Tags           *[]string
}

func validAnnouncementStatus(s string) bool {
	return oneOf(s, domain.AnnouncementPublished, domain.AnnouncementDraft, domain.AnnouncementArchived)
}

// ListAnnouncements shows citizens published announcements only. Admins may
// filter by status and see every status with "all".
func (e Engine) ListAnnouncements(ctx context.Context, c access.Caller, opts ListOptions) (Page[domain.Announcement], error) {
	f, err := e.resolveList(c, opts, config.Announcements, domain.AnnouncementPublished)
	if err != nil {
		return Page[domain.Announcement]{}, err
	}
	if !c.IsAdministrative() {
		f.Status = domain.AnnouncementPublished
	}
	f.From, f.To = nil, nil
	items, err := e.Repo.ListAnnouncements(ctx, f)
	if err != nil {
		return Page[domain.Announcement]{}, err
	}
	return newPage(items, f.Limit, func(a domain.Announcement) time.Time { return a.CreatedAt }), nil
}

func (e Engine) CreateAnnouncement(ctx context.Context, c access.Caller, in AnnouncementInput) (domain.Announcement, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.Announcement{}, err
	}
	nbh, org, err := createScope(c, val(in.NeighborhoodID), val(in.Org))
	if err != nil {
		return domain.Announcement{}, err
	}
	a := domain.Announcement{
		ID:     newID(),
		Scope:  domain.Scope{NeighborhoodID: nbh, Org: string(org)},
		Title:  clean(val(in.Title), maxTitle),
		Body:   clean(val(in.Body), maxBody),
		Status: clean(val(in.Status), maxStatus),
		Tags:   []string{},
	}
	if a.Title == "" {
		return domain.Announcement{}, invalid("title is required")
	}
	if a.Body == "" {
		return domain.Announcement{}, invalid("body is required")
	}
	if a.Status == "" {
		a.Status = domain.AnnouncementPublished
	}
	if !validAnnouncementStatus(a.Status) {
		return domain.Announcement{}, invalid("status must be published|draft|archived")
	}
	if in.Pinned != nil {
		a.Pinned = *in.Pinned
	}
	if in.Tags != nil {
		a.Tags = cleanTags(*in.Tags)
	}
	if err := c.RequireScope(org, nbh); err != nil {
		return domain.Announcement{}, err
	}
	now := e.now()
	a.Stamps = domain.Stamps{CreatedAt: now, CreatedBy: c.UID, UpdatedAt: now, UpdatedBy: c.UID}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertAnnouncement(ctx, tx, a); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "announcement.create", NeighborhoodID: nbh, Org: a.Org, EntityKind: "announcement", EntityID: a.ID, ActorID: c.UID, Payload: audit.Payload{"title": a.Title}})
	})
	if err != nil {
		return domain.Announcement{}, err
	}
	return a, nil
}

func (e Engine) UpdateAnnouncement(ctx context.Context, c access.Caller, id string, in AnnouncementInput) (domain.Announcement, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.Announcement{}, err
	}
	var out domain.Announcement
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Repo.GetAnnouncementTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(a.Org), a.NeighborhoodID); err != nil {
			return err
		}
		if err := moveScope(c, &a.NeighborhoodID, &a.Org, in.NeighborhoodID, in.Org); err != nil {
			return err
		}
		patchString(&a.Title, in.Title, maxTitle)
		patchString(&a.Body, in.Body, maxBody)
		if st := clean(val(in.Status), maxStatus); st != "" {
			if !validAnnouncementStatus(st) {
				return invalid("status must be published|draft|archived")
			}
			a.Status = st
		}
		if in.Pinned != nil {
			a.Pinned = *in.Pinned
		}
		if in.Tags != nil {
			a.Tags = cleanTags(*in.Tags)
		}
		a.UpdatedAt = e.now()
		a.UpdatedBy = c.UID
		if err := e.Repo.UpdateAnnouncement(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return e.record(ctx, tx, audit.Entry{Type: "announcement.update", NeighborhoodID: a.NeighborhoodID, Org: a.Org, EntityKind: "announcement", EntityID: a.ID, ActorID: c.UID})
	})
	return out, err
}

func (e Engine) DeleteAnnouncement(ctx context.Context, c access.Caller, id string) error {
	if err := c.RequireAdmin(); err != nil {
		return err
	}
	return e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Repo.GetAnnouncementTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(a.Org), a.NeighborhoodID); err != nil {
			return err
		}
		if err := e.Repo.DeleteAnnouncement(ctx, tx, id); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "announcement.delete", NeighborhoodID: a.NeighborhoodID, Org: a.Org, EntityKind: "announcement", EntityID: id, ActorID: c.UID})
	})
}
