package fileproc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/debtmap/pkg/source"
)

func makeFiles(n int) []source.File {
	files := make([]source.File, n)
	for i := range files {
		files[i] = source.NewFile("/root", fmt.Sprintf("file%03d.ts", i))
	}
	return files
}

func TestForEachFile_PreservesInputOrder(t *testing.T) {
	files := makeFiles(100)

	results, errs := ForEachFile(context.Background(), files, func(_ context.Context, f source.File) (string, error) {
		return f.Path, nil
	}, Options{})

	assert.False(t, errs.HasErrors())
	require.Len(t, results, len(files))
	for i, r := range results {
		assert.Equal(t, files[i].Path, r)
	}
}

func TestForEachFile_Empty(t *testing.T) {
	results, errs := ForEachFile(context.Background(), nil, func(context.Context, source.File) (int, error) {
		return 1, nil
	}, Options{})
	assert.Nil(t, results)
	assert.Nil(t, errs)
}

func TestForEachFile_ConcurrencyBound(t *testing.T) {
	tests := []struct {
		name       string
		files      int
		maxWorkers int
		wantMax    int32
	}{
		{"default cap", 200, 0, DefaultMaxWorkers},
		{"explicit cap", 50, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inFlight, peak atomic.Int32
			_, _ = ForEachFile(context.Background(), makeFiles(tt.files), func(context.Context, source.File) (struct{}, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return struct{}{}, nil
			}, Options{MaxWorkers: tt.maxWorkers})

			assert.LessOrEqual(t, peak.Load(), tt.wantMax)
			assert.Positive(t, peak.Load())
		})
	}
}

func TestForEachFile_ProgressCoversEveryFile(t *testing.T) {
	files := makeFiles(60)
	var (
		mu   sync.Mutex
		seen = make(map[string]int)
	)

	_, _ = ForEachFile(context.Background(), files, func(_ context.Context, f source.File) (int, error) {
		if f.Path == "file007.ts" {
			return 0, errors.New("boom")
		}
		return 1, nil
	}, Options{OnProgress: func(f source.File) {
		mu.Lock()
		defer mu.Unlock()
		seen[f.Path]++
	}})

	require.Len(t, seen, len(files))
	for _, f := range files {
		assert.Equal(t, 1, seen[f.Path], f.Path)
	}
}

func TestForEachFile_ErrorsKeepOtherResults(t *testing.T) {
	files := makeFiles(10)
	var failed []string
	var mu sync.Mutex

	results, errs := ForEachFile(context.Background(), files, func(_ context.Context, f source.File) (int, error) {
		if f.Path == "file003.ts" {
			return 0, errors.New("unreadable")
		}
		return 7, nil
	}, Options{OnError: func(f source.File, err error) {
		mu.Lock()
		failed = append(failed, f.Path)
		mu.Unlock()
	}})

	require.True(t, errs.HasErrors())
	assert.Len(t, errs.Errors, 1)
	assert.Equal(t, "file003.ts: unreadable", errs.Error())
	assert.Equal(t, []string{"file003.ts"}, failed)
	assert.Equal(t, 0, results[3])
	assert.Equal(t, 7, results[4])
}

func TestForEachFile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	_, errs := ForEachFile(ctx, makeFiles(5), func(context.Context, source.File) (int, error) {
		calls.Add(1)
		return 1, nil
	}, Options{})

	assert.Equal(t, int32(0), calls.Load())
	require.True(t, errs.HasErrors())
	assert.ErrorIs(t, errs.Errors[0], context.Canceled)
}

func TestProcessingErrors(t *testing.T) {
	var nilErrs *ProcessingErrors
	assert.False(t, nilErrs.HasErrors())

	errs := &ProcessingErrors{}
	assert.Equal(t, "no errors", errs.Error())
	errs.Add("a.ts", errors.New("x"))
	errs.Add("b.ts", errors.New("y"))
	assert.Equal(t, "2 files failed to process (first: a.ts: x)", errs.Error())
}
