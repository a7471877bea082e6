package complexity

import "github.com/panbanda/debtmap/pkg/models"

// Function is a function-like block found by lexical extraction.
type Function struct {
	Name string `json:"name"`
	// Line is the 1-based declaration line.
	Line int `json:"line"`
	// EndLine is the line holding the closing brace, or the last line when
	// the body never balances.
	EndLine    int    `json:"end_line"`
	Body       string `json:"-"`
	Cyclomatic int    `json:"cyclomatic"`
}

// Thresholds are ordered cut points: Low < Medium < High < Critical.
type Thresholds struct {
	Low      int
	Medium   int
	High     int
	Critical int
}

// DefaultThresholds returns the standard 5/10/15/25 bands.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 5, Medium: 10, High: 15, Critical: 25}
}

// Classify returns the highest band whose threshold is <= the number of
// decision points (cc - 1). ok is false when that count is below Low.
func (t Thresholds) Classify(cc int) (models.Severity, bool) {
	points := cc - 1
	switch {
	case points >= t.Critical:
		return models.SeverityCritical, true
	case points >= t.High:
		return models.SeverityHigh, true
	case points >= t.Medium:
		return models.SeverityMedium, true
	case points >= t.Low:
		return models.SeverityLow, true
	default:
		return "", false
	}
}
