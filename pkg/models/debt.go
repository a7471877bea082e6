package models

import (
	"encoding/hex"
	"slices"
	"strconv"
	"time"

	"github.com/zeebo/blake3"
)

// Kind identifies the analyzer that produced a debt item.
type Kind string

// String implements fmt.Stringer for toon serialization.
func (k Kind) String() string {
	return string(k)
}

const (
	KindTodo       Kind = "todo"       // TODO, FIXME, HACK markers
	KindComplexity Kind = "complexity" // cyclomatic complexity over threshold
	KindDep        Kind = "dep"        // vulnerable dependency
	KindStale      Kind = "stale"      // old file with many importers
)

// Kinds lists every kind in report order.
var Kinds = []Kind{KindTodo, KindComplexity, KindDep, KindStale}

// Severity represents the urgency of addressing the debt.
type Severity string

// String implements fmt.Stringer for toon serialization.
func (s Severity) String() string {
	return string(s)
}

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from most to least urgent.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity converts a string to a Severity. ok is false for unknown values.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), true
	}
	return "", false
}

// Rank returns a numeric rank for ordering (critical = 4, low = 1).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Weight returns the hot-file score contribution of one item.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 25
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	case SeverityLow:
		return 2
	default:
		return 0
	}
}

// AgeSeverity bands an age in days: >365 critical, >180 high, >30 medium, else low.
func AgeSeverity(ageDays int) Severity {
	switch {
	case ageDays > 365:
		return SeverityCritical
	case ageDays > 180:
		return SeverityHigh
	case ageDays > 30:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// DebtItem is one discovered unit of technical debt. Items are created
// fresh on every scan and never modified afterwards.
type DebtItem struct {
	ID         string   `json:"id" yaml:"id" toon:"id"`
	Kind       Kind     `json:"kind" yaml:"kind" toon:"kind"`
	Severity   Severity `json:"severity" yaml:"severity" toon:"severity"`
	File       string   `json:"file" yaml:"file" toon:"file"`
	Line       int      `json:"line,omitempty" yaml:"line,omitempty" toon:"line,omitempty"`
	Message    string   `json:"message" yaml:"message" toon:"message"`
	Author     string   `json:"author,omitempty" yaml:"author,omitempty" toon:"author,omitempty"`
	AgeInDays  *int     `json:"ageInDays,omitempty" yaml:"ageInDays,omitempty" toon:"ageInDays,omitempty"`
	LastCommit string   `json:"lastCommit,omitempty" yaml:"lastCommit,omitempty" toon:"lastCommit,omitempty"`
}

// Age returns AgeInDays or 0 when unknown.
func (d DebtItem) Age() int {
	if d.AgeInDays == nil {
		return 0
	}
	return *d.AgeInDays
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// Fingerprint derives a stable item id from its key parts.
func Fingerprint(parts ...string) string {
	h := blake3.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// LocationID is the fingerprint for items anchored to a file line.
// Use line 0 for file-level items.
func LocationID(kind Kind, file string, line int) string {
	return Fingerprint(string(kind), file, strconv.Itoa(line))
}

// HotFile is a file ranked by its accumulated debt score.
type HotFile struct {
	File        string     `json:"file" yaml:"file" toon:"file"`
	Score       int        `json:"score" yaml:"score" toon:"score"`
	ImportCount int        `json:"importCount" yaml:"importCount" toon:"importCount"`
	DebtItems   []DebtItem `json:"debtItems" yaml:"debtItems" toon:"debtItems"`
}

// Stats aggregates a DebtMap's items.
type Stats struct {
	TotalDebt  int              `json:"totalDebt" yaml:"totalDebt" toon:"totalDebt"`
	ByKind     map[Kind]int     `json:"byKind" yaml:"byKind" toon:"byKind"`
	BySeverity map[Severity]int `json:"bySeverity" yaml:"bySeverity" toon:"bySeverity"`
	HotFiles   []HotFile        `json:"hotFiles" yaml:"hotFiles" toon:"hotFiles"`
}

// NewStats creates stats with every kind and severity present at zero.
func NewStats() Stats {
	s := Stats{
		ByKind:     make(map[Kind]int, len(Kinds)),
		BySeverity: make(map[Severity]int, len(Severities)),
		HotFiles:   []HotFile{},
	}
	for _, k := range Kinds {
		s.ByKind[k] = 0
	}
	for _, sev := range Severities {
		s.BySeverity[sev] = 0
	}
	return s
}

// DebtMap is the result of one scan. The engine keeps no reference to it.
type DebtMap struct {
	Items     []DebtItem `json:"items" yaml:"items" toon:"items"`
	ScannedAt time.Time  `json:"scannedAt" yaml:"scannedAt" toon:"scannedAt"`
	CommitSHA string     `json:"commitSha" yaml:"commitSha" toon:"commitSha"`
	Stats     Stats      `json:"stats" yaml:"stats" toon:"stats"`
}

// CountAtLeast returns the number of items with severity >= min.
func (m *DebtMap) CountAtLeast(min Severity) int {
	n := 0
	for _, item := range m.Items {
		if item.Severity.Rank() >= min.Rank() {
			n++
		}
	}
	return n
}

// FilterItems returns the items with severity >= min whose kind is in kinds.
// An empty kinds keeps every kind. Order is preserved.
func FilterItems(items []DebtItem, min Severity, kinds ...Kind) []DebtItem {
	out := make([]DebtItem, 0, len(items))
	for _, item := range items {
		if item.Severity.Rank() < min.Rank() {
			continue
		}
		if len(kinds) > 0 && !slices.Contains(kinds, item.Kind) {
			continue
		}
		out = append(out, item)
	}
	return out
}
