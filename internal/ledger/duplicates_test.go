package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury/internal/core"
)

func TestFindDuplicates(t *testing.T) {
	a := entry(5, core.Expense, core.Maintenance, 30, "Light bulbs")
	a.ID = "late"
	b := entry(2, core.Expense, core.Maintenance, 30, "Light bulbs ")
	b.ID = "early"
	c := entry(7, core.Expense, core.Maintenance, 30, "Light bulbs")
	c.ID = "latest"
	other := entry(2, core.Expense, core.Maintenance, 31, "Light bulbs")
	inc := entry(2, core.Income, core.Other, 30, "Light bulbs")

	groups := FindDuplicates([]core.Entry{a, other, c, inc, b})
	require.Len(t, groups, 1)
	assert.Equal(t, "early", groups[0].Keep.ID)
	assert.Equal(t, []string{"late", "latest"}, DuplicateIDs(groups))
}

func TestFindDuplicatesNone(t *testing.T) {
	groups := FindDuplicates([]core.Entry{income(1, core.Tithe, 10), income(1, core.Tithe, 11)})
	assert.Empty(t, groups)
}
