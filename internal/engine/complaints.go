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

// complaintTransitions lists the statuses reachable from each status.
// resolved and rejected are terminal.
var complaintTransitions = map[string][]string{
	domain.ComplaintOpen:       {domain.ComplaintInProgress, domain.ComplaintResolved, domain.ComplaintRejected},
	domain.ComplaintInProgress: {domain.ComplaintResolved, domain.ComplaintRejected},
}

const (
	defaultResolvedNote = "Selesai"
	defaultRejectedNote = "Ditolak"
)

// ComplaintInput carries create and update fields of a complaint.
type ComplaintInput struct {
	NeighborhoodID *string
	Org            *string
	Category       *string
	Title          *string
	Description    *string
	LocationText   *string
	PhotoURLs      *[]string
	Priority       *string
	IsAnonymous    *bool
	OccurredAt     *time.Time
	// Status and ResolutionNote are honoured for admins on update only.
	Status         *string
	ResolutionNote *string
}

func validPriority(p string) bool {
	return oneOf(p, domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh, domain.PriorityUrgent)
}

func validComplaintStatus(s string) bool {
	return oneOf(s, domain.ComplaintOpen, domain.ComplaintInProgress, domain.ComplaintResolved, domain.ComplaintRejected)
}

// transitionComplaint moves c to status, stamping the resolution for terminal
// statuses. Moving to the current status is a no-op.
func transitionComplaint(c *domain.Complaint, status, note, by string, at time.Time) error {
	if !validComplaintStatus(status) {
		return invalid("invalid status")
	}
	if status == c.Status {
		return nil
	}
	allowed := false
	for _, next := range complaintTransitions[c.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return conflict("complaint cannot move from %s to %s", c.Status, status)
	}
	c.Status = status
	switch status {
	case domain.ComplaintResolved, domain.ComplaintRejected:
		if note == "" {
			note = defaultResolvedNote
			if status == domain.ComplaintRejected {
				note = defaultRejectedNote
			}
		}
		t := at
		c.Resolution = domain.Resolution{Note: note, ResolvedAt: &t, By: by}
	}
	return nil
}

// ListComplaints defaults to open complaints. Citizens only ever see their own.
func (e Engine) ListComplaints(ctx context.Context, c access.Caller, opts ListOptions) (Page[domain.Complaint], error) {
	f, err := e.resolveList(c, opts, config.Complaints, domain.ComplaintOpen)
	if err != nil {
		return Page[domain.Complaint]{}, err
	}
	ownOnly(c, &f, opts.Mine)
	items, err := e.Repo.ListComplaints(ctx, f)
	if err != nil {
		return Page[domain.Complaint]{}, err
	}
	return newPage(items, f.Limit, func(x domain.Complaint) time.Time { return x.CreatedAt }), nil
}

func (e Engine) GetComplaint(ctx context.Context, c access.Caller, id string) (domain.Complaint, error) {
	cp, err := e.Repo.GetComplaint(ctx, id)
	if err != nil {
		return domain.Complaint{}, err
	}
	if cp.CreatedBy != c.UID {
		if err := c.RequireScope(access.Org(cp.Org), cp.NeighborhoodID); err != nil {
			return domain.Complaint{}, err
		}
	}
	return cp, nil
}

// CreateComplaint is open to every caller.
func (e Engine) CreateComplaint(ctx context.Context, c access.Caller, in ComplaintInput) (domain.Complaint, error) {
	nbh, org, err := createScope(c, val(in.NeighborhoodID), val(in.Org))
	if err != nil {
		return domain.Complaint{}, err
	}
	now := e.now()
	cp := domain.Complaint{
		ID:             newID(),
		Scope:          domain.Scope{NeighborhoodID: nbh, Org: string(org)},
		Category:       clean(val(in.Category), maxCategory),
		Title:          clean(val(in.Title), maxTitle),
		Description:    clean(val(in.Description), maxLongText),
		LocationText:   clean(val(in.LocationText), maxLocation),
		PhotoURLs:      []string{},
		Priority:       clean(val(in.Priority), 20),
		Status:         domain.ComplaintOpen,
		OccurredAt:     now,
		CreatedByName:  clean(c.Name, 120),
		CreatedByPhone: clean(c.Phone, 40),
		Stamps:         domain.Stamps{CreatedAt: now, CreatedBy: c.UID, UpdatedAt: now, UpdatedBy: c.UID},
	}
	if cp.Title == "" {
		return domain.Complaint{}, invalid("title is required")
	}
	if cp.Description == "" {
		return domain.Complaint{}, invalid("description is required")
	}
	if cp.Priority == "" {
		cp.Priority = domain.PriorityNormal
	}
	if !validPriority(cp.Priority) {
		return domain.Complaint{}, invalid("priority must be low|normal|high|urgent")
	}
	if in.PhotoURLs != nil {
		cp.PhotoURLs = cleanList(*in.PhotoURLs, maxURL, maxPhotos)
	}
	if in.IsAnonymous != nil {
		cp.IsAnonymous = *in.IsAnonymous
	}
	if in.OccurredAt != nil {
		cp.OccurredAt = in.OccurredAt.UTC()
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertComplaint(ctx, tx, cp); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "complaint.create", NeighborhoodID: nbh, Org: cp.Org, EntityKind: "complaint", EntityID: cp.ID, ActorID: c.UID, Payload: audit.Payload{"priority": cp.Priority}})
	})
	if err != nil {
		return domain.Complaint{}, err
	}
	return cp, nil
}

// UpdateComplaint lets the owner edit free text while the complaint is open.
// Admins in scope may edit at any time and change status through the
// transition table.
func (e Engine) UpdateComplaint(ctx context.Context, c access.Caller, id string, in ComplaintInput) (domain.Complaint, error) {
	var out domain.Complaint
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		cp, err := e.Repo.GetComplaintTx(ctx, tx, id)
		if err != nil {
			return err
		}
		admin := c.IsAdministrative()
		if admin {
			if err := c.RequireScope(access.Org(cp.Org), cp.NeighborhoodID); err != nil {
				return err
			}
		} else {
			if cp.CreatedBy != c.UID {
				return access.ForbiddenError{Reason: "not owner"}
			}
			if cp.Status != domain.ComplaintOpen {
				return access.ForbiddenError{Reason: "only editable while status=open"}
			}
		}
		patchString(&cp.Title, in.Title, maxTitle)
		patchString(&cp.Description, in.Description, maxLongText)
		patchString(&cp.LocationText, in.LocationText, maxLocation)
		patchString(&cp.Category, in.Category, maxCategory)
		if p := clean(val(in.Priority), 20); p != "" {
			if !validPriority(p) {
				return invalid("priority must be low|normal|high|urgent")
			}
			cp.Priority = p
		}
		if in.PhotoURLs != nil {
			cp.PhotoURLs = cleanList(*in.PhotoURLs, maxURL, maxPhotos)
		}
		if in.IsAnonymous != nil {
			cp.IsAnonymous = *in.IsAnonymous
		}
		if in.OccurredAt != nil {
			cp.OccurredAt = in.OccurredAt.UTC()
		}
		now := e.now()
		if admin {
			if st := clean(val(in.Status), maxStatus); st != "" {
				if err := transitionComplaint(&cp, st, clean(val(in.ResolutionNote), maxNote), c.UID, now); err != nil {
					return err
				}
			}
		}
		cp.UpdatedAt = now
		cp.UpdatedBy = c.UID
		if err := e.Repo.UpdateComplaint(ctx, tx, cp); err != nil {
			return err
		}
		out = cp
		return e.record(ctx, tx, audit.Entry{Type: "complaint.update", NeighborhoodID: cp.NeighborhoodID, Org: cp.Org, EntityKind: "complaint", EntityID: cp.ID, ActorID: c.UID, Payload: audit.Payload{"status": cp.Status}})
	})
	return out, err
}

// AssignComplaint records who handles the complaint and promotes an open
// complaint to in_progress.
func (e Engine) AssignComplaint(ctx context.Context, c access.Caller, id, assignedTo, assignedRole string) (domain.Complaint, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.Complaint{}, err
	}
	var out domain.Complaint
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		cp, err := e.Repo.GetComplaintTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(cp.Org), cp.NeighborhoodID); err != nil {
			return err
		}
		now := e.now()
		role := clean(assignedRole, 60)
		if role == "" {
			role = c.Role.String()
		}
		cp.Assignment = domain.Assignment{AssignedTo: clean(assignedTo, 200), AssignedRole: role, AssignedAt: &now}
		if cp.Status == domain.ComplaintOpen {
			cp.Status = domain.ComplaintInProgress
		}
		cp.UpdatedAt = now
		cp.UpdatedBy = c.UID
		if err := e.Repo.UpdateComplaint(ctx, tx, cp); err != nil {
			return err
		}
		out = cp
		return e.record(ctx, tx, audit.Entry{Type: "complaint.assign", NeighborhoodID: cp.NeighborhoodID, Org: cp.Org, EntityKind: "complaint", EntityID: cp.ID, ActorID: c.UID, Payload: audit.Payload{"assignedTo": cp.Assignment.AssignedTo, "status": cp.Status}})
	})
	return out, err
}

// UpdateComplaintStatus runs an admin status change through the transition table.
func (e Engine) UpdateComplaintStatus(ctx context.Context, c access.Caller, id, status, note string) (domain.Complaint, error) {
	if err := c.RequireAdmin(); err != nil {
		return domain.Complaint{}, err
	}
	status = clean(status, maxStatus)
	if !validComplaintStatus(status) {
		return domain.Complaint{}, invalid("invalid status")
	}
	var out domain.Complaint
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		cp, err := e.Repo.GetComplaintTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.RequireScope(access.Org(cp.Org), cp.NeighborhoodID); err != nil {
			return err
		}
		from := cp.Status
		now := e.now()
		if err := transitionComplaint(&cp, status, clean(note, maxNote), c.UID, now); err != nil {
			return err
		}
		cp.UpdatedAt = now
		cp.UpdatedBy = c.UID
		if err := e.Repo.UpdateComplaint(ctx, tx, cp); err != nil {
			return err
		}
		out = cp
		return e.record(ctx, tx, audit.Entry{Type: "complaint.status", NeighborhoodID: cp.NeighborhoodID, Org: cp.Org, EntityKind: "complaint", EntityID: cp.ID, ActorID: c.UID, Payload: audit.Payload{"from": from, "to": cp.Status}})
	})
	return out, err
}

// DeleteComplaint: admins in scope at any time, owners while open.
func (e Engine) DeleteComplaint(ctx context.Context, c access.Caller, id string) error {
	return e.withTx(ctx, func(tx *sql.Tx) error {
		cp, err := e.Repo.GetComplaintTx(ctx, tx, id)
		if err != nil {
			return err
		}
		switch {
		case c.IsAdministrative():
			if err := c.RequireScope(access.Org(cp.Org), cp.NeighborhoodID); err != nil {
				return err
			}
		case cp.CreatedBy == c.UID && cp.Status == domain.ComplaintOpen:
		default:
			return access.ForbiddenError{Reason: "not allowed"}
		}
		if err := e.Repo.DeleteComplaint(ctx, tx, id); err != nil {
			return err
		}
		return e.record(ctx, tx, audit.Entry{Type: "complaint.delete", NeighborhoodID: cp.NeighborhoodID, Org: cp.Org, EntityKind: "complaint", EntityID: id, ActorID: c.UID})
	})
}
