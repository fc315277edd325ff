package engine

import (
	"math"
	"strings"

	"guyub/internal/access"
)

const (
	maxNeighborhood = 120
	maxTitle        = 140
	maxBody         = 10000
	maxLongText     = 12000
	maxLocation     = 180
	maxCategory     = 40
	maxNote         = 2000
	maxURL          = 1000
	maxTag          = 24
	maxTags         = 12
	maxPhotos       = 6
	maxStatus       = 30
	maxReason       = 300
)

// clean trims s and cuts it to max runes.
func clean(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}

// cleanList trims every entry, drops empties and keeps at most n entries.
func cleanList(in []string, each, n int) []string {
	out := []string{}
	for _, v := range in {
		v = clean(v, each)
		if v == "" {
			continue
		}
		out = append(out, v)
		if len(out) == n {
			break
		}
	}
	return out
}

func cleanTags(in []string) []string {
	return cleanList(in, maxTag, maxTags)
}

// patchString applies a partial update: nil or empty values never overwrite.
func patchString(dst *string, v *string, max int) {
	if v == nil {
		return
	}
	if s := clean(*v, max); s != "" {
		*dst = s
	}
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// requireOrg validates the org of a record being created.
func requireOrg(raw string) (access.Org, error) {
	org, err := access.ParseOrg(raw)
	if err != nil || org == access.OrgNone {
		return access.OrgNone, invalid("org must be rt|pkk|kt")
	}
	return org, nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func val(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// createScope resolves and checks the scope of a record an admin is creating.
func createScope(c access.Caller, rawNeighborhood, rawOrg string) (string, access.Org, error) {
	nbh := c.DefaultNeighborhood(clean(rawNeighborhood, maxNeighborhood))
	if nbh == "" {
		return "", access.OrgNone, invalid("neighborhoodId is required (body or user profile)")
	}
	org, err := requireOrg(rawOrg)
	if err != nil {
		return "", access.OrgNone, err
	}
	return nbh, org, nil
}

// moveScope applies org/neighborhood changes; only super admins may move records.
func moveScope(c access.Caller, nbh, org *string, rawNeighborhood, rawOrg *string) error {
	if !c.IsSuperAdmin() {
		return nil
	}
	if rawOrg != nil && clean(*rawOrg, 20) != "" {
		o, err := requireOrg(*rawOrg)
		if err != nil {
			return err
		}
		*org = string(o)
	}
	patchString(nbh, rawNeighborhood, maxNeighborhood)
	return nil
}
