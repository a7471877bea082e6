package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/panbanda/debtmap/internal/output"
	"github.com/panbanda/debtmap/pkg/models"
)

// SeverityChange is an item present in both reports with a different severity.
type SeverityChange struct {
	Item models.DebtItem `json:"item"`
	From models.Severity `json:"from"`
}

// Diff lists how debt moved between a base and a head report. Items are
// matched by id.
type Diff struct {
	BaseCommit string            `json:"baseCommit"`
	HeadCommit string            `json:"headCommit"`
	Added      []models.DebtItem `json:"added"`
	Resolved   []models.DebtItem `json:"resolved"`
	Unchanged  []models.DebtItem `json:"unchanged"`
	Changed    []SeverityChange  `json:"changed"`
	// ScoreDelta is the change in summed severity weights.
	ScoreDelta int `json:"scoreDelta"`
}

// Compare diffs head against base. Added and changed items follow head
// order; resolved items follow base order.
func Compare(base, head *models.DebtMap) *Diff {
	d := &Diff{
		BaseCommit: base.CommitSHA,
		HeadCommit: head.CommitSHA,
		Added:      []models.DebtItem{},
		Resolved:   []models.DebtItem{},
		Unchanged:  []models.DebtItem{},
		Changed:    []SeverityChange{},
	}

	baseByID := make(map[string]models.DebtItem, len(base.Items))
	for _, item := range base.Items {
		baseByID[item.ID] = item
		d.ScoreDelta -= item.Severity.Weight()
	}
	headIDs := make(map[string]bool, len(head.Items))
	for _, item := range head.Items {
		headIDs[item.ID] = true
		d.ScoreDelta += item.Severity.Weight()

		prev, ok := baseByID[item.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, item)
		case prev.Severity != item.Severity:
			d.Changed = append(d.Changed, SeverityChange{Item: item, From: prev.Severity})
		default:
			d.Unchanged = append(d.Unchanged, item)
		}
	}
	for _, item := range base.Items {
		if !headIDs[item.ID] {
			d.Resolved = append(d.Resolved, item)
		}
	}
	return d
}

// Worsened counts added items plus items whose severity increased.
func (d *Diff) Worsened() int {
	n := len(d.Added)
	for _, c := range d.Changed {
		if c.Item.Severity.Rank() > c.From.Rank() {
			n++
		}
	}
	return n
}

func (d *Diff) RenderData() any {
	return d
}

func (d *Diff) summary() string {
	return fmt.Sprintf("%d added, %d resolved, %d changed, %d unchanged (score %+d)",
		len(d.Added), len(d.Resolved), len(d.Changed), len(d.Unchanged), d.ScoreDelta)
}

func (d *Diff) tables() []*output.Table {
	rows := func(items []models.DebtItem) [][]string {
		out := make([][]string, len(items))
		for i, item := range items {
			out[i] = []string{string(item.Severity), string(item.Kind), itemLocation(item), item.Message}
		}
		return out
	}
	headers := []string{"Severity", "Kind", "Location", "Message"}

	var tables []*output.Table
	if len(d.Added) > 0 {
		tables = append(tables, output.NewTable("Added", headers, rows(d.Added), nil, nil))
	}
	if len(d.Resolved) > 0 {
		tables = append(tables, output.NewTable("Resolved", headers, rows(d.Resolved), nil, nil))
	}
	if len(d.Changed) > 0 {
		changed := make([][]string, len(d.Changed))
		for i, c := range d.Changed {
			changed[i] = []string{string(c.From) + " -> " + string(c.Item.Severity), string(c.Item.Kind), itemLocation(c.Item), c.Item.Message}
		}
		tables = append(tables, output.NewTable("Severity Changed", headers, changed, nil, nil))
	}
	return tables
}

func (d *Diff) RenderText(w io.Writer, colored bool) error {
	section := &output.Section{Title: "Debt Diff", Content: d.summary()}
	if err := section.RenderText(w, colored); err != nil {
		return err
	}
	for _, t := range d.tables() {
		fmt.Fprintln(w)
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

func (d *Diff) RenderMarkdown(w io.Writer) error {
	section := &output.Section{Title: "Debt Diff", Content: d.summary()}
	if err := section.RenderMarkdown(w); err != nil {
		return err
	}
	for _, t := range d.tables() {
		if err := t.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}

func itemLocation(item models.DebtItem) string {
	if item.Line > 0 {
		return item.File + ":" + strconv.Itoa(item.Line)
	}
	return item.File
}
