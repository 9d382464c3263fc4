package labtests

import "math"

// Status classifies a measured value against its reference range.
type Status string

const (
	StatusLow     Status = "low"
	StatusNormal  Status = "normal"
	StatusHigh    Status = "high"
	StatusUnknown Status = "unknown"
)

// Range holds the reference bounds for one recognized test.
type Range struct {
	Low  float64
	High float64
	Unit string
}

// Test describes one recognized lab test: its canonical name, the label
// synonyms the parser matches on, and its reference range. Adding a test is a
// data change here, not a code change in the parser.
type Test struct {
	Name     string
	Synonyms []string
	Range    Range
}

// Recognized is the fixed set of tests the parser knows how to find,
// in the order they appear in results.
var Recognized = []Test{
	{
		Name:     "Glucose",
		Synonyms: []string{"glucose", "blood glucose", "fasting glucose"},
		Range:    Range{Low: 70, High: 100, Unit: "mg/dL"},
	},
	{
		Name:     "Cholesterol",
		Synonyms: []string{"cholesterol", "total cholesterol"},
		Range:    Range{Low: 0, High: 200, Unit: "mg/dL"},
	},
}

func lookup(name string) (Range, bool) {
	for _, t := range Recognized {
		if t.Name == name {
			return t.Range, true
		}
	}
	return Range{}, false
}

// Classify returns the status of value against the reference range registered
// for name. Unregistered names and non-finite values classify as unknown.
// Never panics, no I/O.
func Classify(name string, value float64) (Status, Range) {
	r, ok := lookup(name)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return StatusUnknown, r
	}

	switch {
	case value < r.Low:
		return StatusLow, r
	case value > r.High:
		return StatusHigh, r
	default:
		return StatusNormal, r
	}
}
