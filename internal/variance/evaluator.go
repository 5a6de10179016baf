package variance

import "math"

const (
	// StatusMatched indicates the difference is within tolerance.
	StatusMatched = "matched"
	// StatusDisputed indicates the difference exceeds tolerance.
	StatusDisputed = "disputed"
)

// Thresholds defines the tolerance for an expected-vs-actual comparison.
type Thresholds struct {
	AbsoluteFloor     float64 `yaml:"absolute_floor"`
	PercentOfExpected float64 `yaml:"percent_of_expected"`
}

// Result is the outcome of a variance evaluation.
type Result struct {
	Variance float64
	Status   string
}

// Evaluate compares expected against actual under the given thresholds.
// Variance is expected minus actual: positive means shortfall, negative
// means overage. The status is disputed when the absolute variance exceeds
// max(floor, percent*expected). With expected zero only the floor applies.
func Evaluate(expected, actual float64, th Thresholds) Result {
	variance := expected - actual
	tolerance := th.AbsoluteFloor
	if pct := th.PercentOfExpected * expected; pct > tolerance {
		tolerance = pct
	}
	status := StatusMatched
	if math.Abs(variance) > tolerance {
		status = StatusDisputed
	}
	return Result{Variance: variance, Status: status}
}
