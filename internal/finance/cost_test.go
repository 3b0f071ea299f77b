package finance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateCostStatus(t *testing.T) {
	tests := []struct {
		estimated, actual string
		want              CostStatus
		variance          string
		pct               string
	}{
		{"100", "100", CostConfirmed, "0", "0"},
		{"100", "80", CostConfirmed, "-20", "-20"},
		{"100", "105", CostAtRisk, "5", "5"},
		{"100", "110", CostAtRisk, "10", "10"},
		{"100", "110.01", CostExceeded, "10.01", "10.01"},
		{"100", "111", CostExceeded, "11", "11"},
		{"0", "0", CostConfirmed, "0", "0"},
		{"0", "1", CostExceeded, "1", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.estimated+"/"+tt.actual, func(t *testing.T) {
			res := CalculateCostStatus(decimal.RequireFromString(tt.estimated), decimal.RequireFromString(tt.actual))
			assert.Equal(t, tt.want, res.Status)
			assert.True(t, res.Variance.Equal(decimal.RequireFromString(tt.variance)), "variance %s", res.Variance)
			assert.True(t, res.VariancePct.Equal(decimal.RequireFromString(tt.pct)), "pct %s", res.VariancePct)
		})
	}
}

func TestValidateCostConfirmation(t *testing.T) {
	est := d(1000)

	assert.True(t, ValidateCostConfirmation(est, d(900), "").IsValid)
	assert.True(t, ValidateCostConfirmation(est, d(1100), "").IsValid, "at_risk needs no justification")
	assert.True(t, ValidateCostConfirmation(est, decimal.Zero, "").IsValid)

	res := ValidateCostConfirmation(est, d(-1), "long enough reason")
	assert.False(t, res.IsValid)

	res = ValidateCostConfirmation(est, d(1200), "")
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Error, "Justification")

	assert.False(t, ValidateCostConfirmation(est, d(1200), "   too short   ").IsValid)
	assert.False(t, ValidateCostConfirmation(est, d(1200), "123456789").IsValid)
	assert.True(t, ValidateCostConfirmation(est, d(1200), "1234567890").IsValid)
	assert.True(t, ValidateCostConfirmation(est, d(1200), "  fuel surcharge  ").IsValid)
}

func TestCalculatePJOProgress(t *testing.T) {
	amt := d(100)

	p := CalculatePJOProgress(nil)
	assert.Equal(t, Progress{Total: 0, Confirmed: 0, AllConfirmed: true}, p)

	items := []CostLine{
		{ActualAmount: &amt, Confirmed: true, Status: CostConfirmed},
		{ActualAmount: &amt, Confirmed: false, Status: CostExceeded},
		{ActualAmount: nil, Confirmed: true, Status: CostEstimated},
	}
	p = CalculatePJOProgress(items)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 1, p.Confirmed)
	assert.False(t, p.AllConfirmed)
	assert.False(t, p.HasOverruns, "unconfirmed overruns are not counted")
	assert.False(t, CanConvertToJobOrder(p))

	items[1].Confirmed = true
	items[2].ActualAmount = &amt
	p = CalculatePJOProgress(items)
	assert.True(t, p.AllConfirmed)
	assert.True(t, p.HasOverruns)
	assert.True(t, CanConvertToJobOrder(p), "overruns do not block conversion")
}
