package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/panbanda/debtmap/pkg/models"
)

// MaxTextItems bounds the item table of text and markdown reports.
const MaxTextItems = 50

// AgeSummary describes the ages of items with known history.
type AgeSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stdDev"`
}

// AgeStats summarizes AgeInDays over items that have one.
func AgeStats(items []models.DebtItem) AgeSummary {
	var ages []float64
	for _, item := range items {
		if item.AgeInDays != nil {
			ages = append(ages, float64(*item.AgeInDays))
		}
	}
	if len(ages) == 0 {
		return AgeSummary{}
	}
	sort.Float64s(ages)

	s := AgeSummary{
		Count:  len(ages),
		Mean:   stat.Mean(ages, nil),
		Median: stat.Quantile(0.5, stat.Empirical, ages, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, ages, nil),
		Max:    ages[len(ages)-1],
	}
	if len(ages) > 1 {
		s.StdDev = stat.StdDev(ages, nil)
	}
	return s
}

// DebtReport renders a DebtMap. Structured formats serialize the DebtMap
// unchanged.
type DebtReport struct {
	Map *models.DebtMap
	// Limit caps the item table; 0 means MaxTextItems, negative means all.
	Limit int
}

// NewDebtReport wraps dm for rendering.
func NewDebtReport(dm *models.DebtMap) *DebtReport {
	return &DebtReport{Map: dm}
}

func (r *DebtReport) RenderData() any {
	return r.Map
}

func (r *DebtReport) limit() int {
	switch {
	case r.Limit == 0:
		return MaxTextItems
	case r.Limit < 0:
		return len(r.Map.Items)
	default:
		return r.Limit
	}
}

// MostSevere returns up to n items ordered by severity, then file and line.
// items is not modified.
func MostSevere(items []models.DebtItem, n int) []models.DebtItem {
	out := append([]models.DebtItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (r *DebtReport) sortedItems() []models.DebtItem {
	return MostSevere(r.Map.Items, r.limit())
}

func (r *DebtReport) summary(colored bool) string {
	dm := r.Map
	var b strings.Builder
	fmt.Fprintf(&b, "Total debt: %d\n", dm.Stats.TotalDebt)
	if dm.CommitSHA != "" {
		fmt.Fprintf(&b, "Commit:     %s\n", shortSHA(dm.CommitSHA))
	} else {
		b.WriteString("Commit:     (no version control)\n")
	}
	fmt.Fprintf(&b, "Scanned at: %s\n", dm.ScannedAt.Format("2006-01-02 15:04:05 MST"))

	sevs := make([]string, 0, len(models.Severities))
	for _, s := range models.Severities {
		part := fmt.Sprintf("%s %d", s, dm.Stats.BySeverity[s])
		if colored {
			part = SeverityColor(string(s), part)
		}
		sevs = append(sevs, part)
	}
	fmt.Fprintf(&b, "Severity:   %s\n", strings.Join(sevs, ", "))

	kinds := make([]string, 0, len(models.Kinds))
	for _, k := range models.Kinds {
		kinds = append(kinds, fmt.Sprintf("%s %d", k, dm.Stats.ByKind[k]))
	}
	fmt.Fprintf(&b, "Kinds:      %s", strings.Join(kinds, ", "))

	if ages := AgeStats(dm.Items); ages.Count > 0 {
		fmt.Fprintf(&b, "\nAge (days): median %.0f, mean %.0f, p90 %.0f, max %.0f over %d items",
			ages.Median, ages.Mean, ages.P90, ages.Max, ages.Count)
	}
	return b.String()
}

func (r *DebtReport) hotFiles() *Table {
	rows := make([][]string, 0, len(r.Map.Stats.HotFiles))
	for _, hf := range r.Map.Stats.HotFiles {
		rows = append(rows, []string{
			hf.File,
			strconv.Itoa(hf.Score),
			strconv.Itoa(len(hf.DebtItems)),
			strconv.Itoa(hf.ImportCount),
		})
	}
	return NewTable("Hot Files", []string{"File", "Score", "Items", "Imported By"}, rows, nil, nil)
}

func (r *DebtReport) itemTable(colored bool) *Table {
	items := r.sortedItems()
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		sev := string(item.Severity)
		if colored {
			sev = SeverityColor(sev, sev)
		}
		age := ""
		if item.AgeInDays != nil {
			age = strconv.Itoa(*item.AgeInDays) + "d"
		}
		rows = append(rows, []string{sev, string(item.Kind), location(item), truncate(item.Message, 72), item.Author, age})
	}
	var footer []string
	if hidden := len(r.Map.Items) - len(items); hidden > 0 {
		footer = []string{"", "", fmt.Sprintf("%d more", hidden), "", "", ""}
	}
	return NewTable("Debt Items", []string{"Severity", "Kind", "Location", "Message", "Author", "Age"}, rows, footer, nil)
}

// layout arranges the report as a summary followed by the hot file and
// item tables.
func (r *DebtReport) layout(colored, markdown bool) *Report {
	summary := r.summary(colored)
	if markdown {
		lines := strings.Split(summary, "\n")
		for i, line := range lines {
			lines[i] = "- " + strings.Join(strings.Fields(line), " ")
		}
		summary = strings.Join(lines, "\n")
	}
	report := &Report{Title: "Debt Map", Data: r.Map}
	report.Sections = append(report.Sections, &Section{Content: summary})
	if len(r.Map.Items) == 0 {
		report.Sections = append(report.Sections, &Section{Content: "No debt found."})
		return report
	}
	report.Sections = append(report.Sections, r.hotFiles(), r.itemTable(colored))
	return report
}

func (r *DebtReport) RenderText(w io.Writer, colored bool) error {
	return r.layout(colored, false).RenderText(w, colored)
}

func (r *DebtReport) RenderMarkdown(w io.Writer) error {
	return r.layout(false, true).RenderMarkdown(w)
}

func location(item models.DebtItem) string {
	if item.Line > 0 {
		return fmt.Sprintf("%s:%d", item.File, item.Line)
	}
	return item.File
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
