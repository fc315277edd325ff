package access

import "fmt"

// ForbiddenError indicates an authorization or scope failure.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("Forbidden: %s", e.Reason)
}

// Caller is the per-request authorization context. It is built once from the
// verified subject and its profile and never mutated afterwards.
type Caller struct {
	UID            string
	Role           Role
	NeighborhoodID string
	Name           string
	Phone          string
}

// NewCaller builds a caller from profile values; a missing profile is passed
// as empty strings and resolves to a citizen without neighborhood.
func NewCaller(uid, role, neighborhoodID, name, phone string) Caller {
	return Caller{
		UID:            uid,
		Role:           ParseRole(role),
		NeighborhoodID: neighborhoodID,
		Name:           name,
		Phone:          phone,
	}
}

func (c Caller) IsSuperAdmin() bool     { return c.Role.IsSuperAdmin() }
func (c Caller) IsAdministrative() bool { return c.Role.IsAdministrative() }
func (c Caller) OrgClass() Org          { return c.Role.OrgClass() }

// CanAccessScope reports whether the caller administers records in (org, neighborhoodID).
// Super admins always can. Otherwise the caller's org class must equal org when
// org is given, and the caller's neighborhood must be empty or equal the target.
func (c Caller) CanAccessScope(org Org, neighborhoodID string) bool {
	if c.IsSuperAdmin() {
		return true
	}
	if org != OrgNone && c.OrgClass() != org {
		return false
	}
	if c.NeighborhoodID != "" && c.NeighborhoodID != neighborhoodID {
		return false
	}
	return true
}

// RequireAdmin fails for non-administrative callers.
func (c Caller) RequireAdmin() error {
	if !c.IsAdministrative() {
		return ForbiddenError{Reason: "admin only"}
	}
	return nil
}

// RequireScope combines RequireAdmin and CanAccessScope.
func (c Caller) RequireScope(org Org, neighborhoodID string) error {
	if err := c.RequireAdmin(); err != nil {
		return err
	}
	if !c.CanAccessScope(org, neighborhoodID) {
		return ForbiddenError{Reason: "scope mismatch"}
	}
	return nil
}

// DefaultNeighborhood returns requested when set, else the caller's own neighborhood.
func (c Caller) DefaultNeighborhood(requested string) string {
	if requested != "" {
		return requested
	}
	return c.NeighborhoodID
}
