package access

import (
	"errors"
	"strings"
	"testing"
)

func TestOrgClassOfPrefixes(t *testing.T) {
	cases := map[string]Org{
		"rt_ketua":       OrgRT,
		"rt_":            OrgRT,
		"pkk_bendahara":  OrgPKK,
		"kt_sekretaris":  OrgKT,
		"super_admin":    OrgNone,
		"warga":          OrgNone,
		"":               OrgNone,
		"rtx_ketua":      OrgNone,
		"RT_ketua":       OrgNone,
		"admin_rt_ketua": OrgNone,
	}
	for role, want := range cases {
		if got := OrgClassOf(role); got != want {
			t.Fatalf("OrgClassOf(%q) = %q, want %q", role, got, want)
		}
		wantPrefix := false
		for _, o := range Orgs {
			if strings.HasPrefix(role, string(o)+"_") {
				wantPrefix = true
			}
		}
		if (OrgClassOf(role) != OrgNone) != wantPrefix {
			t.Fatalf("OrgClassOf(%q) disagrees with prefix match", role)
		}
	}
}

func TestIsAdministrative(t *testing.T) {
	for _, role := range []string{"super_admin", "rt_ketua", "pkk_x", "kt_y"} {
		if !IsAdministrative(role) {
			t.Fatalf("%s should be administrative", role)
		}
	}
	for _, role := range []string{"warga", "", "guest", "superadmin"} {
		if IsAdministrative(role) {
			t.Fatalf("%s should not be administrative", role)
		}
	}
}

func TestParseRoleKeepsRawTag(t *testing.T) {
	r := ParseRole("pkk_bendahara")
	if r.Kind != OrgAdmin || r.Org != OrgPKK || r.Subtype != "bendahara" {
		t.Fatalf("unexpected role %+v", r)
	}
	if r.String() != "pkk_bendahara" {
		t.Fatalf("String() = %q", r.String())
	}
	if ParseRole("").String() != RoleCitizen {
		t.Fatalf("empty role should default to warga")
	}
	if ParseRole("tamu").Kind != Citizen {
		t.Fatalf("unknown tags are citizens")
	}
}

func TestCanAccessScope(t *testing.T) {
	super := NewCaller("u0", "super_admin", "", "", "")
	rt := NewCaller("u1", "rt_ketua", "nb-1", "", "")
	rtAny := NewCaller("u2", "rt_ketua", "", "", "")
	warga := NewCaller("u3", "warga", "nb-1", "", "")

	if !super.CanAccessScope(OrgKT, "elsewhere") {
		t.Fatalf("super admin must always pass")
	}
	if !rt.CanAccessScope(OrgRT, "nb-1") {
		t.Fatalf("exact match must pass")
	}
	if rt.CanAccessScope(OrgPKK, "nb-1") {
		t.Fatalf("org mismatch must fail")
	}
	if rt.CanAccessScope(OrgRT, "nb-2") {
		t.Fatalf("neighborhood mismatch must fail")
	}
	if !rt.CanAccessScope(OrgNone, "nb-1") {
		t.Fatalf("absent org only checks neighborhood")
	}
	if !rtAny.CanAccessScope(OrgRT, "nb-9") {
		t.Fatalf("caller without neighborhood is not neighborhood-restricted")
	}
	if warga.CanAccessScope(OrgRT, "nb-1") {
		t.Fatalf("citizen has no org class")
	}
}

func TestRequireScopeErrors(t *testing.T) {
	warga := NewCaller("u3", "warga", "nb-1", "", "")
	var fe ForbiddenError
	if err := warga.RequireScope(OrgRT, "nb-1"); !errors.As(err, &fe) || fe.Reason != "admin only" {
		t.Fatalf("expected admin only, got %v", err)
	}
	rt := NewCaller("u1", "rt_ketua", "nb-1", "", "")
	if err := rt.RequireScope(OrgKT, "nb-1"); !errors.As(err, &fe) || fe.Reason != "scope mismatch" {
		t.Fatalf("expected scope mismatch, got %v", err)
	}
	if err := rt.RequireScope(OrgRT, "nb-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseOrg(t *testing.T) {
	if o, err := ParseOrg("pkk"); err != nil || o != OrgPKK {
		t.Fatalf("ParseOrg(pkk) = %v, %v", o, err)
	}
	if o, err := ParseOrg(""); err != nil || o != OrgNone {
		t.Fatalf("empty org should be allowed as filter")
	}
	if _, err := ParseOrg("rw"); err == nil {
		t.Fatalf("expected error for rw")
	}
}
