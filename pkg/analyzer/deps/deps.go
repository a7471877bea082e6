// Package deps maps the output of a dependency-audit tool to debt items.
package deps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/panbanda/debtmap/internal/logging"
	"github.com/panbanda/debtmap/pkg/models"
)

// DefaultTimeout bounds one audit invocation.
const DefaultTimeout = 10 * time.Second

// DefaultCommand is the audit tool invocation.
var DefaultCommand = []string{"npm", "audit", "--json"}

// DefaultManifest must exist for the audit to run.
const DefaultManifest = "package.json"

// ErrMalformedReport is returned by ParseReport for unusable output.
var ErrMalformedReport = errors.New("malformed audit report")

// Runner executes the audit command in dir and returns its stdout.
// A non-zero exit is reported as an error alongside whatever stdout was
// produced.
type Runner interface {
	Run(ctx context.Context, dir string, command []string) ([]byte, error)
}

// ExecRunner runs the command as a subprocess.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, dir string, command []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && stderr.Len() > 0 {
		err = fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), err
}

// Analyzer runs the audit once per workspace.
type Analyzer struct {
	command  []string
	manifest string
	timeout  time.Duration
	runner   Runner
	logger   *slog.Logger
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithCommand sets the audit command and its arguments.
func WithCommand(command ...string) Option {
	return func(a *Analyzer) {
		if len(command) > 0 {
			a.command = command
		}
	}
}

// WithManifest sets the manifest path relative to the workspace root.
func WithManifest(path string) Option {
	return func(a *Analyzer) {
		if path != "" {
			a.manifest = filepath.ToSlash(path)
		}
	}
}

// WithTimeout sets the hard timeout for the audit process.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(a *Analyzer) {
		a.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logging.OrDiscard(l)
	}
}

// New creates a dependency audit analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		command:  DefaultCommand,
		manifest: DefaultManifest,
		timeout:  DefaultTimeout,
		runner:   ExecRunner{},
		logger:   logging.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the analyzer name.
func (a *Analyzer) Name() string {
	return "deps"
}

// Scan audits the workspace at root. It never fails: a missing manifest,
// timeout, unstartable tool or unusable output all yield no items.
func (a *Analyzer) Scan(ctx context.Context, root string) []models.DebtItem {
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(a.manifest))); err != nil {
		a.logger.Debug("no manifest, skipping dependency audit", "manifest", a.manifest)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, runErr := a.runner.Run(ctx, root, a.command)
	if ctx.Err() != nil {
		a.logger.Warn("dependency audit timed out", "timeout", a.timeout, "command", a.command[0])
		return nil
	}

	items, err := ParseReport(out, a.manifest)
	if err != nil {
		if runErr != nil {
			a.logger.Warn("dependency audit failed", "command", a.command[0], "error", runErr)
		} else {
			a.logger.Warn("dependency audit output unusable", "error", err)
		}
		return nil
	}
	if runErr != nil {
		// npm exits non-zero whenever it finds vulnerabilities.
		a.logger.Debug("dependency audit exited non-zero with a report", "error", runErr)
	}
	return items
}

type report struct {
	Vulnerabilities *map[string]vulnerability `json:"vulnerabilities"`
}

type vulnerability struct {
	Name     string            `json:"name"`
	Severity string            `json:"severity"`
	Via      []json.RawMessage `json:"via"`
}

type advisory struct {
	Title string `json:"title"`
}

// ParseReport converts audit JSON into one item per vulnerable package,
// sorted by package name.
func ParseReport(data []byte, manifest string) ([]models.DebtItem, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedReport)
	}
	var r report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if r.Vulnerabilities == nil {
		return nil, fmt.Errorf("%w: no vulnerabilities section", ErrMalformedReport)
	}

	type named struct {
		name string
		item models.DebtItem
	}
	found := make([]named, 0, len(*r.Vulnerabilities))
	for key, v := range *r.Vulnerabilities {
		name := v.Name
		if name == "" {
			name = key
		}
		title := firstTitle(v.Via)
		found = append(found, named{name: name, item: models.DebtItem{
			ID:       models.Fingerprint(string(models.KindDep), name, title),
			Kind:     models.KindDep,
			Severity: MapSeverity(v.Severity),
			File:     manifest,
			Message:  message(name, v.Severity, title),
		}})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].name != found[j].name {
			return found[i].name < found[j].name
		}
		return found[i].item.ID < found[j].item.ID
	})

	items := make([]models.DebtItem, len(found))
	for i, f := range found {
		items[i] = f.item
	}
	return items, nil
}

// firstTitle returns the title of the first advisory object in via.
// String entries name transitive packages and are skipped.
func firstTitle(via []json.RawMessage) string {
	for _, raw := range via {
		var adv advisory
		if err := json.Unmarshal(raw, &adv); err != nil {
			continue
		}
		if adv.Title != "" {
			return adv.Title
		}
	}
	return ""
}

func message(name, severity, title string) string {
	if severity == "" {
		severity = "unknown"
	}
	if title == "" {
		return fmt.Sprintf("%s: %s severity vulnerability", name, severity)
	}
	return fmt.Sprintf("%s: %s (%s)", name, title, severity)
}

// MapSeverity maps audit severities onto the four-level scale.
func MapSeverity(s string) models.Severity {
	switch s {
	case "critical":
		return models.SeverityCritical
	case "high":
		return models.SeverityHigh
	case "moderate", "medium":
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
