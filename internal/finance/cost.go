package finance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CostStatus is the budget state of a PJO cost item
type CostStatus string

const (
	CostEstimated CostStatus = "estimated"
	CostConfirmed CostStatus = "confirmed"
	CostAtRisk    CostStatus = "at_risk"
	CostExceeded  CostStatus = "exceeded"
)

// MinJustificationLength is the shortest accepted explanation for an exceeded cost.
const MinJustificationLength = 10

var (
	atRiskFactor = decimal.RequireFromString("1.10")
	hundred      = decimal.NewFromInt(100)
)

// CostResult is the variance of an actual cost against its estimate.
type CostResult struct {
	Status      CostStatus      `json:"status"`
	Variance    decimal.Decimal `json:"variance"`
	VariancePct decimal.Decimal `json:"variance_pct"`
}

// CalculateCostStatus compares actual against estimated. Up to 10% over budget
// (inclusive) is at_risk, anything above is exceeded.
func CalculateCostStatus(estimated, actual decimal.Decimal) CostResult {
	variance := actual.Sub(estimated)
	variancePct := decimal.Zero
	if estimated.IsPositive() {
		variancePct = variance.Div(estimated).Mul(hundred)
	}

	status := CostExceeded
	switch {
	case actual.LessThanOrEqual(estimated):
		status = CostConfirmed
	case actual.LessThanOrEqual(estimated.Mul(atRiskFactor)):
		status = CostAtRisk
	}

	return CostResult{Status: status, Variance: variance, VariancePct: variancePct}
}

// ValidateCostConfirmation is the gate every cost confirmation goes through, both for
// previews and for the write itself.
func ValidateCostConfirmation(estimated, actual decimal.Decimal, justification string) ValidationResult {
	if actual.IsNegative() {
		return invalid("Actual amount must be a non-negative number")
	}
	if CalculateCostStatus(estimated, actual).Status == CostExceeded &&
		len([]rune(strings.TrimSpace(justification))) < MinJustificationLength {
		return invalid("Justification of at least 10 characters is required when cost exceeds budget by more than 10%")
	}
	return valid()
}

// CostLine is the confirmation state of one cost item.
type CostLine struct {
	ActualAmount *decimal.Decimal
	Confirmed    bool
	Status       CostStatus
}

// IsConfirmed requires both an actual amount and a confirmation stamp.
func (l CostLine) IsConfirmed() bool {
	return l.ActualAmount != nil && l.Confirmed
}

// Progress summarizes cost confirmation on a PJO.
type Progress struct {
	Total        int  `json:"total"`
	Confirmed    int  `json:"confirmed"`
	AllConfirmed bool `json:"all_confirmed"`
	HasOverruns  bool `json:"has_overruns"`
}

// CalculatePJOProgress counts confirmed items and flags confirmed overruns.
func CalculatePJOProgress(items []CostLine) Progress {
	p := Progress{Total: len(items)}
	for _, item := range items {
		if !item.IsConfirmed() {
			continue
		}
		p.Confirmed++
		if item.Status == CostExceeded {
			p.HasOverruns = true
		}
	}
	p.AllConfirmed = p.Confirmed == p.Total
	return p
}

// CanConvertToJobOrder only looks at confirmation. Overruns are shown for review but do not block.
func CanConvertToJobOrder(p Progress) bool {
	return p.AllConfirmed
}
