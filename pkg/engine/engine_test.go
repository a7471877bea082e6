package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/debtmap/internal/testutil"
	"github.com/panbanda/debtmap/pkg/config"
	"github.com/panbanda/debtmap/pkg/models"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type fakeAudit struct {
	out   string
	calls int
}

func (f *fakeAudit) Run(_ context.Context, _ string, _ []string) ([]byte, error) {
	f.calls++
	return []byte(f.out), nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Cache.Enabled = false
	return cfg
}

// workspace creates a todo in src/a.ts and five importers of src/util.ts.
func workspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/a.ts":    "// TODO: fix this\nexport const a = 1;\n",
		"src/util.ts": "export const u = 1;\n",
	}
	for i := 0; i < 5; i++ {
		files[fmt.Sprintf("src/u%d.ts", i)] = "import { u } from './util';\n"
	}
	testutil.CreateFileTree(t, root, files)
	return root
}

func fakeGit() *testutil.FakeGit {
	fake := testutil.NewFakeGit()
	fake.SetBlame("src/a.ts", testutil.Porcelain(
		testutil.BlameLine{Line: 1, Hash: testutil.Hash('1'), Author: "Ann", When: testutil.DaysAgo(now, 400)},
		testutil.BlameLine{Line: 2, Hash: testutil.Hash('1'), Author: "Ann", When: testutil.DaysAgo(now, 400)},
	))
	fake.SetLastCommit("src/util.ts", testutil.Hash('2'), testutil.DaysAgo(now, 400))
	return fake
}

func TestScan(t *testing.T) {
	root := workspace(t)
	e := New(
		WithOpener(testutil.RepoOpener{Head: "head"}),
		WithRunner(fakeGit()),
		WithClock(clock),
	)

	dm, err := e.Scan(context.Background(), root, testConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, "head", dm.CommitSHA)
	assert.Equal(t, now, dm.ScannedAt)
	require.Len(t, dm.Items, 2)

	todoItem := dm.Items[0]
	assert.Equal(t, models.KindTodo, todoItem.Kind)
	assert.Equal(t, models.SeverityCritical, todoItem.Severity)
	assert.Equal(t, "src/a.ts", todoItem.File)
	assert.Equal(t, 1, todoItem.Line)
	assert.Equal(t, "Ann", todoItem.Author)
	assert.Equal(t, testutil.Hash('1'), todoItem.LastCommit)

	staleItem := dm.Items[1]
	assert.Equal(t, models.KindStale, staleItem.Kind)
	assert.Equal(t, models.SeverityHigh, staleItem.Severity)
	assert.Equal(t, "src/util.ts", staleItem.File)
	assert.Equal(t, "File unchanged for 400 days but imported by 5 files", staleItem.Message)

	stats := dm.Stats
	assert.Equal(t, 2, stats.TotalDebt)
	assert.Equal(t, map[models.Kind]int{
		models.KindTodo: 1, models.KindComplexity: 0, models.KindDep: 0, models.KindStale: 1,
	}, stats.ByKind)
	assert.Equal(t, map[models.Severity]int{
		models.SeverityCritical: 1, models.SeverityHigh: 1, models.SeverityMedium: 0, models.SeverityLow: 0,
	}, stats.BySeverity)
	require.Len(t, stats.HotFiles, 2)
	assert.Equal(t, "src/a.ts", stats.HotFiles[0].File)
	assert.Equal(t, 25, stats.HotFiles[0].Score)
	assert.Equal(t, 0, stats.HotFiles[0].ImportCount)
	assert.Equal(t, "src/util.ts", stats.HotFiles[1].File)
	assert.Equal(t, 10, stats.HotFiles[1].Score)
	assert.Equal(t, 5, stats.HotFiles[1].ImportCount)
}

func TestScanIsDeterministic(t *testing.T) {
	root := workspace(t)
	e := New(
		WithOpener(testutil.RepoOpener{Head: "head"}),
		WithRunner(fakeGit()),
		WithClock(clock),
	)

	first, err := e.Scan(context.Background(), root, testConfig(), nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		next, err := e.Scan(context.Background(), root, testConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestScanReusesBlameAcrossScans(t *testing.T) {
	root := workspace(t)
	fake := fakeGit()
	e := New(WithOpener(testutil.RepoOpener{Head: "head"}), WithRunner(fake), WithClock(clock))

	_, err := e.Scan(context.Background(), root, testConfig(), nil)
	require.NoError(t, err)
	afterFirst := fake.Calls.Load()

	_, err = e.Scan(context.Background(), root, testConfig(), nil)
	require.NoError(t, err)
	// Only the uncached last-commit query runs again.
	assert.Equal(t, afterFirst+1, fake.Calls.Load())

	e.ClearCache()
	_, err = e.Scan(context.Background(), root, testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, afterFirst*2+1, fake.Calls.Load())
}

func TestScanWithoutRepository(t *testing.T) {
	root := workspace(t)
	var mu sync.Mutex
	var notified []string
	e := New(
		WithOpener(testutil.NoRepoOpener{}),
		WithNotifier(func(root string) {
			mu.Lock()
			defer mu.Unlock()
			notified = append(notified, root)
		}),
		WithClock(clock),
	)

	for i := 0; i < 2; i++ {
		dm, err := e.Scan(context.Background(), root, testConfig(), nil)
		require.NoError(t, err)
		assert.Empty(t, dm.CommitSHA)
		require.Len(t, dm.Items, 1)
		item := dm.Items[0]
		assert.Equal(t, models.KindTodo, item.Kind)
		assert.Equal(t, models.SeverityLow, item.Severity)
		assert.Empty(t, item.Author)
		assert.Nil(t, item.AgeInDays)
	}
	assert.Len(t, notified, 1)
}

func TestScanNoWorkspace(t *testing.T) {
	e := New()
	_, err := e.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), nil, nil)
	assert.ErrorIs(t, err, ErrNoWorkspace)

	file := filepath.Join(t.TempDir(), "file.ts")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = e.Scan(context.Background(), file, nil, nil)
	assert.ErrorIs(t, err, ErrNoWorkspace)
}

func TestScanProgress(t *testing.T) {
	root := workspace(t)
	e := New(WithOpener(testutil.RepoOpener{Head: "head"}), WithRunner(fakeGit()), WithClock(clock))

	var currents []int
	var totals []int
	seen := map[string]bool{}
	_, err := e.Scan(context.Background(), root, testConfig(), func(current, total int, path string) {
		currents = append(currents, current)
		totals = append(totals, total)
		seen[path] = true
	})
	require.NoError(t, err)

	require.Len(t, currents, 7)
	for i, c := range currents {
		assert.Equal(t, i+1, c)
		assert.Equal(t, 7, totals[i])
	}
	assert.Len(t, seen, 7)
}

func TestScanDependencyAudit(t *testing.T) {
	root := workspace(t)
	testutil.WriteFile(t, filepath.Join(root, "package.json"), `{"name":"app"}`)
	audit := &fakeAudit{out: `{"vulnerabilities":{"lodash":{"name":"lodash","severity":"critical","via":[{"title":"Prototype Pollution"}]}}}`}
	e := New(
		WithOpener(testutil.RepoOpener{Head: "head"}),
		WithRunner(fakeGit()),
		WithAuditRunner(audit),
		WithClock(clock),
	)

	dm, err := e.Scan(context.Background(), root, testConfig(), nil)
	require.NoError(t, err)

	require.Len(t, dm.Items, 3)
	assert.Equal(t, models.KindTodo, dm.Items[0].Kind)
	assert.Equal(t, models.KindDep, dm.Items[1].Kind)
	assert.Equal(t, "package.json", dm.Items[1].File)
	assert.Equal(t, "lodash: Prototype Pollution (critical)", dm.Items[1].Message)
	assert.Equal(t, models.KindStale, dm.Items[2].Kind)
	assert.Equal(t, 1, audit.calls)

	cfg := testConfig()
	cfg.Audit.Enabled = false
	dm, err = e.Scan(context.Background(), root, cfg, nil)
	require.NoError(t, err)
	assert.Len(t, dm.Items, 2)
	assert.Equal(t, 1, audit.calls)
}

func TestScanRespectsConfig(t *testing.T) {
	root := workspace(t)
	testutil.WriteFile(t, filepath.Join(root, "src", "b.ts"), "// NOTE: keep\n// FIXME: later\n")
	e := New(WithOpener(testutil.NoRepoOpener{}), WithClock(clock))

	cfg := testConfig()
	cfg.TodoPatterns = []string{"NOTE"}
	cfg.ExcludeGlobs = []string{"src/a.ts"}

	dm, err := e.Scan(context.Background(), root, cfg, nil)
	require.NoError(t, err)

	require.Len(t, dm.Items, 1)
	assert.Equal(t, "src/b.ts", dm.Items[0].File)
	assert.Equal(t, "// NOTE: keep", dm.Items[0].Message)
	assert.Equal(t, []string{"NOTE"}, cfg.TodoPatterns)
}

func TestScanPersistentBlameCache(t *testing.T) {
	root := workspace(t)
	cfg := config.DefaultConfig()
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")

	fake := fakeGit()
	first := New(WithOpener(testutil.RepoOpener{Head: "head"}), WithRunner(fake), WithClock(clock))
	_, err := first.Scan(context.Background(), root, cfg, nil)
	require.NoError(t, err)
	calls := fake.Calls.Load()

	// A new engine has an empty memory cache but reads blame from disk.
	second := New(WithOpener(testutil.RepoOpener{Head: "head"}), WithRunner(fake), WithClock(clock))
	dm, err := second.Scan(context.Background(), root, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, calls+1, fake.Calls.Load())
	assert.Equal(t, "Ann", dm.Items[0].Author)

	require.NoError(t, second.ClearWorkspaceCache(root, cfg))
	_, err = second.Scan(context.Background(), root, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, calls*2+1, fake.Calls.Load())
}

func TestScanBlameCachePerCacheDir(t *testing.T) {
	root := workspace(t)
	cfgA := config.DefaultConfig()
	cfgA.Cache.Dir = filepath.Join(t.TempDir(), "a")
	cfgB := config.DefaultConfig()
	cfgB.Cache.Dir = filepath.Join(t.TempDir(), "b")

	fake := fakeGit()
	e := New(WithOpener(testutil.RepoOpener{Head: "head"}), WithRunner(fake), WithClock(clock))
	_, err := e.Scan(context.Background(), root, cfgA, nil)
	require.NoError(t, err)
	calls := fake.Calls.Load()

	// A different cache directory gets its own history and store.
	_, err = e.Scan(context.Background(), root, cfgB, nil)
	require.NoError(t, err)
	assert.Equal(t, calls*2, fake.Calls.Load())

	fresh := New(WithOpener(testutil.RepoOpener{Head: "head"}), WithRunner(fake), WithClock(clock))
	dm, err := fresh.Scan(context.Background(), root, cfgB, nil)
	require.NoError(t, err)
	assert.Equal(t, calls*2+1, fake.Calls.Load())
	assert.Equal(t, "Ann", dm.Items[0].Author)
}
