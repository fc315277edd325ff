package access

import (
	"fmt"
	"strings"
)

// Org is an org class: the sub-organization a record or an admin belongs to.
type Org string

const (
	OrgNone Org = ""
	OrgRT   Org = "rt"
	OrgPKK  Org = "pkk"
	OrgKT   Org = "kt"
)

// Orgs lists the valid org classes in prefix-match order.
var Orgs = []Org{OrgRT, OrgPKK, OrgKT}

// ParseOrg validates an org filter or record org. Empty input yields OrgNone.
func ParseOrg(s string) (Org, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return OrgNone, nil
	}
	for _, o := range Orgs {
		if string(o) == s {
			return o, nil
		}
	}
	return OrgNone, fmt.Errorf("org must be rt|pkk|kt")
}

// RoleKind tags the three shapes a role can take.
type RoleKind int

const (
	Citizen RoleKind = iota
	OrgAdmin
	SuperAdmin
)

const (
	RoleSuperAdmin = "super_admin"
	RoleCitizen    = "warga"
)

// Role is a parsed role tag. OrgAdmin carries its org and the subtype after
// the prefix (rt_ketua -> {rt, ketua}).
type Role struct {
	Kind    RoleKind
	Org     Org
	Subtype string
	raw     string
}

// ParseRole is total: unknown tags become Citizen and keep their raw text.
func ParseRole(s string) Role {
	s = strings.TrimSpace(s)
	if s == "" {
		return Role{Kind: Citizen, raw: RoleCitizen}
	}
	if s == RoleSuperAdmin {
		return Role{Kind: SuperAdmin, raw: s}
	}
	for _, o := range Orgs {
		prefix := string(o) + "_"
		if strings.HasPrefix(s, prefix) {
			return Role{Kind: OrgAdmin, Org: o, Subtype: strings.TrimPrefix(s, prefix), raw: s}
		}
	}
	return Role{Kind: Citizen, raw: s}
}

func (r Role) String() string {
	if r.raw != "" {
		return r.raw
	}
	switch r.Kind {
	case SuperAdmin:
		return RoleSuperAdmin
	case OrgAdmin:
		return string(r.Org) + "_" + r.Subtype
	default:
		return RoleCitizen
	}
}

// OrgClass returns the org for org admins and OrgNone for everyone else.
func (r Role) OrgClass() Org {
	if r.Kind == OrgAdmin {
		return r.Org
	}
	return OrgNone
}

func (r Role) IsSuperAdmin() bool { return r.Kind == SuperAdmin }

// IsAdministrative is true for super admins and every org admin.
func (r Role) IsAdministrative() bool { return r.Kind == SuperAdmin || r.Kind == OrgAdmin }

// OrgClassOf derives the org class from a raw role string.
func OrgClassOf(role string) Org { return ParseRole(role).OrgClass() }

// IsAdministrative reports whether a raw role string is an admin role.
func IsAdministrative(role string) bool { return ParseRole(role).IsAdministrative() }
