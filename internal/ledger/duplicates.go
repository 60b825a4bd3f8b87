package ledger

import (
	"strings"

	"treasury/internal/core"
)

// DuplicateGroup is a set of entries sharing description, amount, category
// and direction. Keep is the earliest one.
type DuplicateGroup struct {
	Keep       core.Entry   `json:"keep"`
	Duplicates []core.Entry `json:"duplicates"`
}

type duplicateKey struct {
	description string
	amount      int64
	category    core.Category
	direction   core.Direction
}

// FindDuplicates groups entries that look like double submissions. It only
// reports; removing anything is up to the caller.
func FindDuplicates(entries []core.Entry) []DuplicateGroup {
	groups := make(map[duplicateKey]*DuplicateGroup)
	var order []duplicateKey

	for _, e := range Chronological(entries) {
		k := duplicateKey{
			description: strings.TrimSpace(e.Description),
			amount:      e.Amount.Cents,
			category:    e.Category,
			direction:   e.Direction,
		}
		g, ok := groups[k]
		if !ok {
			groups[k] = &DuplicateGroup{Keep: e}
			order = append(order, k)
			continue
		}
		g.Duplicates = append(g.Duplicates, e)
	}

	var out []DuplicateGroup
	for _, k := range order {
		if g := groups[k]; len(g.Duplicates) > 0 {
			out = append(out, *g)
		}
	}
	return out
}

// DuplicateIDs flattens the removable entries of groups.
func DuplicateIDs(groups []DuplicateGroup) []string {
	var ids []string
	for _, g := range groups {
		for _, d := range g.Duplicates {
			ids = append(ids, d.ID)
		}
	}
	return ids
}
