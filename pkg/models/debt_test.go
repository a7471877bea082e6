package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityWeightAndRank(t *testing.T) {
	tests := []struct {
		sev    Severity
		weight int
		rank   int
	}{
		{SeverityCritical, 25, 4},
		{SeverityHigh, 10, 3},
		{SeverityMedium, 5, 2},
		{SeverityLow, 2, 1},
		{Severity("bogus"), 0, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.sev), func(t *testing.T) {
			assert.Equal(t, tt.weight, tt.sev.Weight())
			assert.Equal(t, tt.rank, tt.sev.Rank())
		})
	}
}

func TestParseSeverity(t *testing.T) {
	for _, s := range Severities {
		got, ok := ParseSeverity(string(s))
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}
	_, ok := ParseSeverity("urgent")
	assert.False(t, ok)
}

func TestAgeSeverity(t *testing.T) {
	tests := []struct {
		age  int
		want Severity
	}{
		{0, SeverityLow},
		{30, SeverityLow},
		{31, SeverityMedium},
		{180, SeverityMedium},
		{181, SeverityHigh},
		{365, SeverityHigh},
		{366, SeverityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AgeSeverity(tt.age), "age %d", tt.age)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("todo", "src/a.ts", "3")
	assert.Len(t, a, 32)
	assert.Equal(t, a, Fingerprint("todo", "src/a.ts", "3"))
	assert.Equal(t, a, LocationID(KindTodo, "src/a.ts", 3))

	assert.NotEqual(t, a, LocationID(KindTodo, "src/a.ts", 4))
	assert.NotEqual(t, a, LocationID(KindComplexity, "src/a.ts", 3))
	// The separator keeps part boundaries significant.
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}

func TestDebtItemJSON(t *testing.T) {
	item := DebtItem{
		ID:       "id",
		Kind:     KindDep,
		Severity: SeverityHigh,
		File:     "package.json",
		Message:  "lodash: bad",
	}
	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"id","kind":"dep","severity":"high","file":"package.json","message":"lodash: bad"}`, string(data))

	item.Line = 4
	item.Author = "Ann"
	item.AgeInDays = IntPtr(0)
	item.LastCommit = "abc"
	data, err = json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"id","kind":"dep","severity":"high","file":"package.json","line":4,
		"message":"lodash: bad","author":"Ann","ageInDays":0,"lastCommit":"abc"}`, string(data))
	assert.Equal(t, 0, item.Age())
	assert.Equal(t, 0, DebtItem{}.Age())
}

func TestDebtMapJSONFieldNames(t *testing.T) {
	dm := DebtMap{
		Items:     []DebtItem{},
		ScannedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		CommitSHA: "abc",
		Stats:     NewStats(),
	}
	data, err := json.Marshal(dm)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "items")
	assert.Equal(t, "2025-01-02T03:04:05Z", raw["scannedAt"])
	assert.Equal(t, "abc", raw["commitSha"])

	stats := raw["stats"].(map[string]any)
	assert.Equal(t, float64(0), stats["totalDebt"])
	assert.Equal(t, map[string]any{"todo": 0.0, "complexity": 0.0, "dep": 0.0, "stale": 0.0}, stats["byKind"])
	assert.Equal(t, map[string]any{"critical": 0.0, "high": 0.0, "medium": 0.0, "low": 0.0}, stats["bySeverity"])
	assert.Equal(t, []any{}, stats["hotFiles"])
}

func TestCountAtLeast(t *testing.T) {
	dm := DebtMap{Items: []DebtItem{
		{Severity: SeverityLow},
		{Severity: SeverityMedium},
		{Severity: SeverityHigh},
		{Severity: SeverityCritical},
	}}
	assert.Equal(t, 4, dm.CountAtLeast(SeverityLow))
	assert.Equal(t, 2, dm.CountAtLeast(SeverityHigh))
	assert.Equal(t, 1, dm.CountAtLeast(SeverityCritical))
}

func TestFilterItems(t *testing.T) {
	items := []DebtItem{
		{ID: "1", Kind: KindTodo, Severity: SeverityLow},
		{ID: "2", Kind: KindComplexity, Severity: SeverityHigh},
		{ID: "3", Kind: KindDep, Severity: SeverityCritical},
		{ID: "4", Kind: KindTodo, Severity: SeverityHigh},
	}
	ids := func(items []DebtItem) []string {
		var out []string
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(FilterItems(items, "")))
	assert.Equal(t, []string{"2", "3", "4"}, ids(FilterItems(items, SeverityHigh)))
	assert.Equal(t, []string{"1", "4"}, ids(FilterItems(items, SeverityLow, KindTodo)))
	assert.Equal(t, []string{"2", "4"}, ids(FilterItems(items, SeverityHigh, KindTodo, KindComplexity)))
	assert.Empty(t, FilterItems(nil, SeverityLow))
}
