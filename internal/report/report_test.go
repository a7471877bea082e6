package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/debtmap/pkg/models"
)

func debtMap(commit string, items ...models.DebtItem) *models.DebtMap {
	stats := models.NewStats()
	stats.TotalDebt = len(items)
	for _, it := range items {
		stats.ByKind[it.Kind]++
		stats.BySeverity[it.Severity]++
	}
	return &models.DebtMap{
		Items:     items,
		ScannedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		CommitSHA: commit,
		Stats:     stats,
	}
}

func todoItem(file string, line int, sev models.Severity) models.DebtItem {
	return models.DebtItem{
		ID:       models.LocationID(models.KindTodo, file, line),
		Kind:     models.KindTodo,
		Severity: sev,
		File:     file,
		Line:     line,
		Message:  "// TODO",
	}
}

func TestWriteRead(t *testing.T) {
	dm := debtMap("abc", todoItem("a.ts", 1, models.SeverityLow))
	dm.Items[0].AgeInDays = models.IntPtr(0)
	dm.Stats.HotFiles = []models.HotFile{{File: "a.ts", Score: 2, DebtItems: dm.Items}}
	path := filepath.Join(t.TempDir(), "reports", "scan.json")

	require.NoError(t, Write(path, dm))
	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, dm, got)
}

func TestValidate(t *testing.T) {
	valid, err := Marshal(debtMap("", todoItem("a.ts", 1, models.SeverityHigh)))
	require.NoError(t, err)
	require.NoError(t, Validate(valid))

	mutate := func(fn func(m map[string]any)) []byte {
		var m map[string]any
		require.NoError(t, json.Unmarshal(valid, &m))
		fn(m)
		out, err := json.Marshal(m)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("{")},
		{"missing items", mutate(func(m map[string]any) { delete(m, "items") })},
		{"bad severity", mutate(func(m map[string]any) {
			m["items"].([]any)[0].(map[string]any)["severity"] = "urgent"
		})},
		{"bad kind", mutate(func(m map[string]any) {
			m["items"].([]any)[0].(map[string]any)["kind"] = "lint"
		})},
		{"missing byKind key", mutate(func(m map[string]any) {
			delete(m["stats"].(map[string]any)["byKind"].(map[string]any), "stale")
		})},
		{"negative total", mutate(func(m map[string]any) {
			m["stats"].(map[string]any)["totalDebt"] = -1
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.data), ErrInvalidReport)
		})
	}
}

func TestReadErrors(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"items": []}`), 0o644))
	_, err = Read(path)
	assert.ErrorIs(t, err, ErrInvalidReport)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestDecode(t *testing.T) {
	data, err := Marshal(debtMap("abc"))
	require.NoError(t, err)
	dm, err := Decode(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, "abc", dm.CommitSHA)
	assert.Empty(t, dm.Items)
}

func TestSchemaIsJSON(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(Schema(), &doc))
	assert.Equal(t, "DebtMap", doc["title"])
}
