package classifier

import "strings"

// Identity holds every textual form under which the configured vehicle can
// appear in a message. It is derived once from the unit number and VIN.
type Identity struct {
	Unit    string
	VIN     string
	Last8   string
	Last6   string
	Last4   string
	labeled []string
}

// NewIdentity derives the identifier variants for a vehicle
func NewIdentity(unit, vin string) *Identity {
	unit = strings.TrimSpace(unit)
	vin = strings.TrimSpace(vin)
	return &Identity{
		Unit:  unit,
		VIN:   vin,
		Last8: suffix(vin, 8),
		Last6: suffix(vin, 6),
		Last4: suffix(vin, 4),
		labeled: []string{
			"Unit " + unit,
			"Unit#" + unit,
			"Unit-" + unit,
			"Truck " + unit,
			"Truck#" + unit,
			"Unit: " + unit,
		},
	}
}

func suffix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Labeled returns the human-phrased unit variants ("Unit 574", "Truck#574", ...)
func (id *Identity) Labeled() []string {
	out := make([]string, len(id.labeled))
	copy(out, id.labeled)
	return out
}

// Variants returns all identifier variants, strongest first, without duplicates
func (id *Identity) Variants() []string {
	all := append([]string{id.VIN, id.Last8, id.Last6, id.Last4, id.Unit}, id.labeled...)
	return dedup(all)
}

// SearchTerms returns the identifiers used to pre-filter messages at the
// provider: the VIN, its last 8 characters, the unit number and "Unit <n>".
func (id *Identity) SearchTerms() []string {
	return dedup([]string{id.VIN, id.Last8, id.Unit, "Unit " + id.Unit})
}

func dedup(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}
