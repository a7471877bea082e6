package engine

import (
	"sort"

	"github.com/panbanda/debtmap/pkg/models"
)

// MaxHotFiles is the number of files kept in Stats.HotFiles.
const MaxHotFiles = 10

// MaxScore caps a file's debt score.
const MaxScore = 100

// Score sums the severity weights of items, capped at MaxScore.
func Score(items []models.DebtItem) int {
	total := 0
	for _, item := range items {
		total += item.Severity.Weight()
	}
	return min(total, MaxScore)
}

// Aggregate counts items by kind and severity and ranks files by score.
// Files are grouped in first-seen order; ties keep that order. fanIn may be
// nil, in which case import counts are zero.
func Aggregate(items []models.DebtItem, fanIn func(string) int) models.Stats {
	stats := models.NewStats()
	stats.TotalDebt = len(items)

	byFile := make(map[string][]models.DebtItem)
	var order []string
	for _, item := range items {
		stats.ByKind[item.Kind]++
		stats.BySeverity[item.Severity]++
		if _, seen := byFile[item.File]; !seen {
			order = append(order, item.File)
		}
		byFile[item.File] = append(byFile[item.File], item)
	}

	hot := make([]models.HotFile, 0, len(order))
	for _, file := range order {
		fileItems := byFile[file]
		hf := models.HotFile{
			File:      file,
			Score:     Score(fileItems),
			DebtItems: fileItems,
		}
		if fanIn != nil {
			hf.ImportCount = fanIn(file)
		}
		hot = append(hot, hf)
	}
	sort.SliceStable(hot, func(i, j int) bool {
		return hot[i].Score > hot[j].Score
	})
	if len(hot) > MaxHotFiles {
		hot = hot[:MaxHotFiles]
	}
	stats.HotFiles = hot
	return stats
}
