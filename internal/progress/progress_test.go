package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestNewTracker(t *testing.T) {
	tests := []struct {
		name  string
		label string
		total int
	}{
		{name: "standard tracker", label: "Scanning files", total: 100},
		{name: "deferred total", label: "Empty task", total: 0},
		{name: "single item", label: "One file", total: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracker := NewTracker(tt.label, tt.total, WithWriter(&buf))
			if tracker.bar == nil {
				t.Fatal("tracker.bar should not be nil")
			}
			if tracker.label != tt.label {
				t.Errorf("tracker.label = %q, want %q", tracker.label, tt.label)
			}
			if tracker.Total() != tt.total {
				t.Errorf("Total() = %d, want %d", tracker.Total(), tt.total)
			}
		})
	}
}

func TestNewSpinner(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewSpinner("Loading...", WithWriter(&buf))
	if tracker.bar == nil {
		t.Fatal("tracker.bar should not be nil")
	}
	if tracker.Total() != -1 {
		t.Errorf("Total() = %d, want -1", tracker.Total())
	}
	for i := 0; i < 5; i++ {
		tracker.Tick()
	}
	tracker.FinishSuccess()
}

func TestTrackerUpdate(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Scanning", 0, WithWriter(&buf))

	tracker.Update(1, 7, "src/a.ts")
	tracker.Update(3, 7, "src/b.ts")

	if tracker.Total() != 7 {
		t.Errorf("Total() = %d, want 7", tracker.Total())
	}
	if tracker.Current() != 3 {
		t.Errorf("Current() = %d, want 3", tracker.Current())
	}
	tracker.FinishSuccess()
}

func TestTrackerTickConcurrent(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Concurrent test", 1000, WithWriter(&buf))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.Tick()
			}
		}()
	}
	wg.Wait()

	if tracker.Current() != 1000 {
		t.Errorf("Current() = %d, want 1000", tracker.Current())
	}
	tracker.FinishSuccess()
}

func TestTrackerFinishMessages(t *testing.T) {
	tests := []struct {
		name   string
		finish func(*Tracker)
		want   string
	}{
		{
			name:   "skipped",
			finish: func(tr *Tracker) { tr.FinishSkipped("not a repository") },
			want:   "Audit skipped (not a repository)",
		},
		{
			name:   "error",
			finish: func(tr *Tracker) { tr.FinishError(errors.New("timeout")) },
			want:   "Audit error: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracker := NewTracker("Audit", 10, WithWriter(&buf))
			tracker.Tick()
			tt.finish(tracker)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output %q should contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestTrackerFinishSuccessMultipleCalls(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Multiple finish", 10, WithWriter(&buf))
	tracker.Tick()
	tracker.FinishSuccess()
	tracker.FinishSuccess()
}

func BenchmarkTrackerUpdate(b *testing.B) {
	var buf bytes.Buffer
	tracker := NewTracker("Benchmark", b.N, WithWriter(&buf))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tracker.Update(i+1, b.N, "file.ts")
	}
	tracker.FinishSuccess()
}
