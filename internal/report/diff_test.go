package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/debtmap/pkg/models"
)

func TestCompare(t *testing.T) {
	kept := todoItem("a.ts", 1, models.SeverityLow)
	resolved := todoItem("a.ts", 5, models.SeverityHigh)
	worse := todoItem("b.ts", 2, models.SeverityMedium)
	added := todoItem("c.ts", 9, models.SeverityCritical)

	worseHead := worse
	worseHead.Severity = models.SeverityCritical

	base := debtMap("base", kept, resolved, worse)
	head := debtMap("head", added, kept, worseHead)

	d := Compare(base, head)

	assert.Equal(t, "base", d.BaseCommit)
	assert.Equal(t, "head", d.HeadCommit)
	assert.Equal(t, []models.DebtItem{added}, d.Added)
	assert.Equal(t, []models.DebtItem{resolved}, d.Resolved)
	assert.Equal(t, []models.DebtItem{kept}, d.Unchanged)
	require.Len(t, d.Changed, 1)
	assert.Equal(t, models.SeverityMedium, d.Changed[0].From)
	assert.Equal(t, models.SeverityCritical, d.Changed[0].Item.Severity)
	// base 2+10+5=17, head 25+2+25=52
	assert.Equal(t, 35, d.ScoreDelta)
	assert.Equal(t, 2, d.Worsened())
}

func TestCompareIdentical(t *testing.T) {
	dm := debtMap("x", todoItem("a.ts", 1, models.SeverityLow))
	d := Compare(dm, dm)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Resolved)
	assert.Empty(t, d.Changed)
	assert.Len(t, d.Unchanged, 1)
	assert.Zero(t, d.ScoreDelta)
	assert.Zero(t, d.Worsened())
}

func TestDiffRender(t *testing.T) {
	base := debtMap("base", todoItem("a.ts", 1, models.SeverityLow))
	head := debtMap("head", todoItem("b.ts", 3, models.SeverityHigh))
	d := Compare(base, head)

	var text bytes.Buffer
	require.NoError(t, d.RenderText(&text, false))
	assert.Contains(t, text.String(), "1 added, 1 resolved, 0 changed, 0 unchanged (score +8)")
	assert.Contains(t, text.String(), "b.ts:3")
	assert.Contains(t, text.String(), "a.ts:1")

	var md bytes.Buffer
	require.NoError(t, d.RenderMarkdown(&md))
	assert.Contains(t, md.String(), "## Added")
	assert.Contains(t, md.String(), "| high | todo | b.ts:3 | // TODO |")
	assert.Contains(t, md.String(), "## Resolved")
	assert.NotContains(t, md.String(), "Severity Changed")
}
