// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/panbanda/debtmap/pkg/source"
)

// DefaultMaxWorkers caps simultaneous file tasks.
const DefaultMaxWorkers = 20

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// ProgressFunc is called after each file completes, in completion order.
// It may be called from several goroutines at once.
type ProgressFunc func(file source.File)

// ErrorFunc is called when a file processing error occurs.
type ErrorFunc func(file source.File, err error)

// Options configures ForEachFile.
type Options struct {
	// MaxWorkers bounds in-flight tasks. Values <= 0 use DefaultMaxWorkers.
	MaxWorkers int
	OnProgress ProgressFunc
	OnError    ErrorFunc
}

// ForEachFile runs fn for every file with bounded concurrency.
// results[i] holds the result for files[i]; failed or unscheduled files keep
// the zero value. Cancelling ctx stops scheduling new files but does not
// interrupt running ones.
func ForEachFile[T any](ctx context.Context, files []source.File, fn func(context.Context, source.File) (T, error), opts Options) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}

	results := make([]T, len(files))
	errs := &ProcessingErrors{}

	report := func(f source.File) {
		if opts.OnProgress != nil {
			opts.OnProgress(f)
		}
	}

	p := pool.New().WithMaxGoroutines(maxWorkers)
	for i, f := range files {
		if ctx.Err() != nil {
			errs.Add(f.Path, ctx.Err())
			continue
		}
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				errs.Add(f.Path, err)
				return
			}

			result, err := fn(ctx, f)
			if err != nil {
				errs.Add(f.Path, err)
				if opts.OnError != nil {
					opts.OnError(f, err)
				}
				report(f)
				return
			}

			results[i] = result
			report(f)
		})
	}
	p.Wait()

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
