package todo

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/debtmap/internal/testutil"
	"github.com/panbanda/debtmap/pkg/models"
	"github.com/panbanda/debtmap/pkg/source"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func writeSource(t *testing.T, content string) (string, source.File) {
	t.Helper()
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "src", "a.ts"), content)
	return root, source.NewFile(root, "src/a.ts")
}

func TestScanSeverityByAge(t *testing.T) {
	tests := []struct {
		age  int
		want models.Severity
	}{
		{0, models.SeverityLow},
		{30, models.SeverityLow},
		{31, models.SeverityMedium},
		{180, models.SeverityMedium},
		{181, models.SeverityHigh},
		{365, models.SeverityHigh},
		{366, models.SeverityCritical},
		{1000, models.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d days", tt.age), func(t *testing.T) {
			root, file := writeSource(t, "const a = 1;\n  // TODO: remove this  \n")
			fake := testutil.NewFakeGit()
			fake.SetBlame("src/a.ts", testutil.Porcelain(
				testutil.BlameLine{Line: 1, Hash: testutil.Hash('1'), Author: "Old", When: testutil.DaysAgo(now, 2000)},
				testutil.BlameLine{Line: 2, Hash: testutil.Hash('2'), Author: "Ann", When: testutil.DaysAgo(now, tt.age)},
			))

			a := New(testutil.FakeHistory(root, "head", fake), WithClock(func() time.Time { return now }))
			items := a.Scan(context.Background(), file, "head")

			require.Len(t, items, 1)
			item := items[0]
			assert.Equal(t, models.KindTodo, item.Kind)
			assert.Equal(t, tt.want, item.Severity)
			assert.Equal(t, 2, item.Line)
			assert.Equal(t, "// TODO: remove this", item.Message)
			assert.Equal(t, "Ann", item.Author)
			require.NotNil(t, item.AgeInDays)
			assert.Equal(t, tt.age, *item.AgeInDays)
			assert.Equal(t, testutil.Hash('2'), item.LastCommit)
			assert.Equal(t, models.LocationID(models.KindTodo, "src/a.ts", 2), item.ID)
		})
	}
}

func TestScanEveryDefaultMarker(t *testing.T) {
	for _, word := range DefaultPatterns {
		for _, variant := range []string{word, strings.ToLower(word)} {
			t.Run(variant, func(t *testing.T) {
				_, file := writeSource(t, "x = 1 // "+variant+" later\n")
				items := New(nil).Scan(context.Background(), file, "")
				require.Len(t, items, 1)
				assert.Equal(t, models.SeverityLow, items[0].Severity)
			})
		}
	}
}

func TestScanOneItemPerLine(t *testing.T) {
	_, file := writeSource(t, "// TODO fix and FIXME too, HACK\n// nothing here\n// xxx: later\n")

	items := New(nil).Scan(context.Background(), file, "")
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Line)
	assert.Equal(t, 3, items[1].Line)
}

func TestScanWordBoundaries(t *testing.T) {
	_, file := writeSource(t, strings.Join([]string{
		"const todos = [];",
		"const TEMPLATE = 'x';",
		"hackathon();",
		"// TODO",
		"call(TODO);",
	}, "\n"))

	items := New(nil).Scan(context.Background(), file, "")
	require.Len(t, items, 2)
	assert.Equal(t, 4, items[0].Line)
	assert.Equal(t, 5, items[1].Line)
}

func TestScanUntrackedLinesAreAgeZero(t *testing.T) {
	root, file := writeSource(t, "// TODO committed\n// TODO new line\n")
	fake := testutil.NewFakeGit()
	fake.SetBlame("src/a.ts", testutil.Porcelain(
		testutil.BlameLine{Line: 1, Hash: testutil.Hash('a'), Author: "Ann", When: testutil.DaysAgo(now, 400)},
	))

	a := New(testutil.FakeHistory(root, "head", fake), WithClock(func() time.Time { return now }))
	items := a.Scan(context.Background(), file, "head")

	require.Len(t, items, 2)
	assert.Equal(t, models.SeverityCritical, items[0].Severity)
	assert.Equal(t, models.SeverityLow, items[1].Severity)
	assert.Empty(t, items[1].Author)
	assert.Nil(t, items[1].AgeInDays)
	assert.Empty(t, items[1].LastCommit)
}

func TestScanWithoutRepositoryIsAgeZero(t *testing.T) {
	root, file := writeSource(t, "// FIXME\n")
	fake := testutil.NewFakeGit()

	items := New(testutil.FakeHistory(root, "head", fake)).Scan(context.Background(), file, "")
	require.Len(t, items, 1)
	assert.Equal(t, models.SeverityLow, items[0].Severity)
	assert.Equal(t, int32(0), fake.Calls.Load())
}

func TestScanSkipsBlameWithoutHits(t *testing.T) {
	root, file := writeSource(t, "const clean = true;\n")
	fake := testutil.NewFakeGit()

	items := New(testutil.FakeHistory(root, "head", fake)).Scan(context.Background(), file, "head")
	assert.Empty(t, items)
	assert.Equal(t, int32(0), fake.Calls.Load())
}

func TestScanUnreadableFiles(t *testing.T) {
	root := t.TempDir()
	a := New(nil)

	assert.Empty(t, a.Scan(context.Background(), source.NewFile(root, "missing.ts"), ""))

	testutil.WriteFile(t, filepath.Join(root, "bin.ts"), "TODO\x00\x01")
	assert.Empty(t, a.Scan(context.Background(), source.NewFile(root, "bin.ts"), ""))
}

func TestCompilePatterns(t *testing.T) {
	re, err := CompilePatterns([]string{"NOTE", " ", "RE.VIEW"})
	require.NoError(t, err)
	assert.True(t, re.MatchString("// note: x"))
	assert.False(t, re.MatchString("// notes"))
	assert.True(t, re.MatchString("// re.view this"))
	assert.False(t, re.MatchString("// reXview this"))

	_, err = CompilePatterns([]string{"", "  "})
	assert.ErrorIs(t, err, ErrNoPatterns)

	_, file := writeSource(t, "// TODO\n// NOTE\n")
	items := New(nil, WithPattern(re)).Scan(context.Background(), file, "")
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Line)
}
