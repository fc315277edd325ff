package engine

import (
	"context"
	"database/sql"
	"errors"

	"guyub/internal/access"
	"guyub/internal/audit"
	"guyub/internal/domain"
	"guyub/internal/repo"
)

const superAdminLock = "super_admin"

// Profile statuses.
const (
	ProfileActive    = "active"
	ProfilePending   = "pending"
	ProfileSuspended = "suspended"
)

// ResolveCaller loads the caller's profile. A missing profile yields a
// citizen without neighborhood.
func (e Engine) ResolveCaller(ctx context.Context, uid string) (access.Caller, error) {
	p, err := e.Repo.GetProfile(ctx, uid)
	if errors.Is(err, repo.ErrNotFound) {
		return access.NewCaller(uid, "", "", "", ""), nil
	}
	if err != nil {
		return access.Caller{}, err
	}
	return access.NewCaller(p.UID, p.Role, p.NeighborhoodID, p.Name, p.Phone), nil
}

func canSeeProfile(c access.Caller, uid string) error {
	if c.UID != uid && !c.IsSuperAdmin() {
		return access.ForbiddenError{Reason: "can only access own profile"}
	}
	return nil
}

func (e Engine) GetProfile(ctx context.Context, c access.Caller, uid string) (domain.Profile, error) {
	if uid == "" {
		uid = c.UID
	}
	if err := canSeeProfile(c, uid); err != nil {
		return domain.Profile{}, err
	}
	return e.Repo.GetProfile(ctx, uid)
}

// ProfilePatch holds optional profile fields. Empty strings are ignored.
type ProfilePatch struct {
	Name           *string
	Phone          *string
	NIK            *string
	Address        *string
	NeighborhoodID *string
	PhotoURL       *string
	Role           *string
	Status         *string
}

// apply merges the patch into dst. The neighborhood of an administrative
// profile is its scope, so only super admins may move it. Role and status
// are applied only when withRole is set and c is a super admin.
func (p ProfilePatch) apply(dst *domain.Profile, c access.Caller, withRole bool) error {
	if p.NeighborhoodID != nil {
		nbh := clean(*p.NeighborhoodID, maxNeighborhood)
		if nbh != "" && nbh != dst.NeighborhoodID && !c.IsSuperAdmin() && access.IsAdministrative(dst.Role) {
			return access.ForbiddenError{Reason: "only super_admin can change an admin's neighborhood"}
		}
	}
	patchString(&dst.Name, p.Name, 120)
	patchString(&dst.Phone, p.Phone, 40)
	patchString(&dst.NIK, p.NIK, 32)
	patchString(&dst.Address, p.Address, 300)
	patchString(&dst.NeighborhoodID, p.NeighborhoodID, maxNeighborhood)
	patchString(&dst.PhotoURL, p.PhotoURL, maxURL)
	if !withRole || !c.IsSuperAdmin() {
		return nil
	}
	patchString(&dst.Role, p.Role, 40)
	if p.Status != nil {
		st := clean(*p.Status, 20)
		if st != "" && !oneOf(st, ProfileActive, ProfilePending, ProfileSuspended) {
			return invalid("status must be active|pending|suspended")
		}
		patchString(&dst.Status, &st, 20)
	}
	return nil
}

// UpdateProfile patches an existing profile. Role and status changes are
// honoured only for super admins.
func (e Engine) UpdateProfile(ctx context.Context, c access.Caller, uid string, patch ProfilePatch) (domain.Profile, error) {
	if uid == "" {
		uid = c.UID
	}
	if err := canSeeProfile(c, uid); err != nil {
		return domain.Profile{}, err
	}
	var out domain.Profile
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		p, err := e.Repo.GetProfileTx(ctx, tx, uid)
		if err != nil {
			return err
		}
		before := p.Role
		if err := patch.apply(&p, c, true); err != nil {
			return err
		}
		p.UpdatedAt = e.now()
		if err := e.Repo.SaveProfile(ctx, tx, p); err != nil {
			return err
		}
		payload := audit.Payload{}
		if p.Role != before {
			payload["role"] = p.Role
		}
		if err := e.record(ctx, tx, audit.Entry{Type: "profile.update", NeighborhoodID: p.NeighborhoodID, EntityKind: "profile", EntityID: p.UID, ActorID: c.UID, Payload: payload}); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// RegisterSelf creates the caller's own profile as an active citizen, or
// merges the given fields into an existing one without touching role or status.
func (e Engine) RegisterSelf(ctx context.Context, c access.Caller, patch ProfilePatch) (domain.Profile, error) {
	var out domain.Profile
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		now := e.now()
		p, err := e.Repo.GetProfileTx(ctx, tx, c.UID)
		created := false
		if errors.Is(err, repo.ErrNotFound) {
			created = true
			p = domain.Profile{UID: c.UID, Role: access.RoleCitizen, Status: ProfileActive, CreatedAt: now}
		} else if err != nil {
			return err
		}
		if err := patch.apply(&p, c, false); err != nil {
			return err
		}
		p.UpdatedAt = now
		if err := e.Repo.SaveProfile(ctx, tx, p); err != nil {
			return err
		}
		typ := "profile.update"
		if created {
			typ = "profile.create"
		}
		if err := e.record(ctx, tx, audit.Entry{Type: typ, NeighborhoodID: p.NeighborhoodID, EntityKind: "profile", EntityID: p.UID, ActorID: c.UID}); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// BootstrapResult reports whether the one-shot super admin promotion happened.
type BootstrapResult struct {
	Upgraded      bool   `json:"upgraded"`
	Reason        string `json:"reason,omitempty"`
	SuperAdminUID string `json:"superAdminUid,omitempty"`
	Role          string `json:"role,omitempty"`
}

// BootstrapAdmin promotes the caller to super admin when no super admin was
// ever bootstrapped. The lock row and the promotion commit together.
func (e Engine) BootstrapAdmin(ctx context.Context, c access.Caller) (BootstrapResult, error) {
	var res BootstrapResult
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		holder, ok, err := e.Repo.LockValue(ctx, tx, superAdminLock)
		if err != nil {
			return err
		}
		if ok {
			res = BootstrapResult{Upgraded: false, Reason: "super_admin already exists", SuperAdminUID: holder}
			return nil
		}
		now := e.now()
		p, err := e.Repo.GetProfileTx(ctx, tx, c.UID)
		if errors.Is(err, repo.ErrNotFound) {
			p = domain.Profile{UID: c.UID, Name: "Super Admin", CreatedAt: now}
		} else if err != nil {
			return err
		}
		p.Role = access.RoleSuperAdmin
		p.Status = ProfileActive
		p.VerifiedBy = c.UID
		p.VerifiedAt = &now
		p.UpdatedAt = now
		if err := e.Repo.SaveProfile(ctx, tx, p); err != nil {
			return err
		}
		if err := e.Repo.InsertLock(ctx, tx, superAdminLock, c.UID, now); err != nil {
			return err
		}
		if err := e.record(ctx, tx, audit.Entry{Type: "profile.bootstrap_admin", EntityKind: "profile", EntityID: c.UID, ActorID: c.UID}); err != nil {
			return err
		}
		res = BootstrapResult{Upgraded: true, Reason: "bootstrapped", SuperAdminUID: c.UID, Role: access.RoleSuperAdmin}
		return nil
	})
	return res, err
}

// GrantProfile sets role and neighborhood for a subject, creating the profile
// when needed. It backs operator tooling and runs without a caller.
func (e Engine) GrantProfile(ctx context.Context, uid, role, neighborhoodID, name, actor string) (domain.Profile, error) {
	uid = clean(uid, 128)
	if uid == "" {
		return domain.Profile{}, invalid("uid is required")
	}
	var out domain.Profile
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		now := e.now()
		p, err := e.Repo.GetProfileTx(ctx, tx, uid)
		if errors.Is(err, repo.ErrNotFound) {
			p = domain.Profile{UID: uid, Role: access.RoleCitizen, Status: ProfileActive, CreatedAt: now}
		} else if err != nil {
			return err
		}
		if r := clean(role, 40); r != "" {
			p.Role = access.ParseRole(r).String()
		}
		patchString(&p.NeighborhoodID, &neighborhoodID, maxNeighborhood)
		patchString(&p.Name, &name, 120)
		p.VerifiedBy = actor
		p.VerifiedAt = &now
		p.UpdatedAt = now
		if err := e.Repo.SaveProfile(ctx, tx, p); err != nil {
			return err
		}
		if err := e.record(ctx, tx, audit.Entry{Type: "profile.grant", NeighborhoodID: p.NeighborhoodID, EntityKind: "profile", EntityID: uid, ActorID: actor, Payload: audit.Payload{"role": p.Role}}); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}
