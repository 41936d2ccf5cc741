package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyPatchPeriodIsSticky(t *testing.T) {
	current := Criteria{Period: "2024-01", SubjectCode: "6602", Keyword: "差旅", Category: CategoryCost}

	next, changed := ApplyPatch(current, Patch{Keyword: "维修"})
	require.True(t, changed)
	require.Equal(t, Criteria{Period: "2024-01", Keyword: "维修"}, next)

	next, changed = ApplyPatch(current, Patch{Period: "2024-03", Category: "income"})
	require.True(t, changed)
	require.Equal(t, Criteria{Period: "2024-03", Category: CategoryIncome}, next)
}

func TestApplyPatchNotActionable(t *testing.T) {
	current := Criteria{Period: "2024-01", Keyword: "差旅"}

	next, changed := ApplyPatch(current, Patch{})
	require.False(t, changed)
	require.Equal(t, current, next)

	next, changed = ApplyPatch(current, Patch{Keyword: "  ", Category: " "})
	require.False(t, changed)
	require.Equal(t, current, next)
}

func TestApplyPatchUnknownCategory(t *testing.T) {
	next, changed := ApplyPatch(Criteria{Category: CategoryIncome}, Patch{Category: "assets", SubjectCode: " 1001 "})
	require.True(t, changed)
	require.Equal(t, CategoryNone, next.Category)
	require.Equal(t, "1001", next.SubjectCode)
}

func TestParseCategory(t *testing.T) {
	cases := map[string]struct {
		want Category
		ok   bool
	}{
		"":        {CategoryNone, true},
		"Income":  {CategoryIncome, true},
		" cost ":  {CategoryCost, true},
		"expense": {CategoryNone, false},
	}
	for input, tc := range cases {
		got, ok := ParseCategory(input)
		require.Equal(t, tc.want, got, input)
		require.Equal(t, tc.ok, ok, input)
	}
}
