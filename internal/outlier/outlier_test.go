package outlier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/pkg/config"
)

func f(v float64) *float64 { return contracts.Float(v) }

func baseAssumptions() contracts.Assumptions {
	return contracts.Assumptions{
		CurrentPrice:    100,
		CurrentDividend: 2,
		BaseYear:        2024,
		GrowthRateEPS:   f(5),
		GrowthRateCF:    f(5),
		GrowthRateBV:    f(3),
		GrowthRateDiv:   f(2),
		TargetPE:        f(15),
		TargetPCF:       f(10),
		TargetPBV:       f(2),
		TargetYield:     f(2.5),
	}
}

func baseHistory() []contracts.AnnualRecord {
	return []contracts.AnnualRecord{
		{Year: 2023, EarningsPerShare: 5.5, CashFlowPerShare: 8, BookValuePerShare: 40},
		{Year: 2024, EarningsPerShare: 6, CashFlowPerShare: 9, BookValuePerShare: 45},
	}
}

func TestDetect_AllPlausible(t *testing.T) {
	res := Detect(baseHistory(), baseAssumptions(), DefaultBounds())

	assert.False(t, res.ExcludeEPS)
	assert.False(t, res.ExcludeCF)
	assert.False(t, res.ExcludeBV)
	assert.False(t, res.ExcludeDIV)
	assert.Empty(t, res.DetectedOutliers)

	// 6 * 1.05^5 * 15
	assert.InDelta(t, 114.86, res.Targets[PillarEPS], 0.01)
}

func TestDetect_RatioOutsideBand(t *testing.T) {
	h := baseHistory()
	h[1].EarningsPerShare = 90 // target ~1723 vs price 100

	res := Detect(h, baseAssumptions(), DefaultBounds())

	assert.True(t, res.ExcludeEPS)
	assert.Equal(t, []Pillar{PillarEPS}, res.DetectedOutliers)
	assert.Contains(t, res.Reasons[PillarEPS], "ratio")
}

func TestDetect_TooLowTarget(t *testing.T) {
	h := baseHistory()
	h[1].BookValuePerShare = 0.5 // target ~1.16 vs price 100

	res := Detect(h, baseAssumptions(), DefaultBounds())
	assert.True(t, res.ExcludeBV)
}

func TestDetect_NonPositiveMetric(t *testing.T) {
	h := baseHistory()
	h[1].CashFlowPerShare = -2

	res := Detect(h, baseAssumptions(), DefaultBounds())

	assert.True(t, res.ExcludeCF)
	assert.Equal(t, "base metric is not positive", res.Reasons[PillarCF])
}

func TestDetect_MultipleOutsideTypeRange(t *testing.T) {
	a := baseAssumptions()
	a.TargetPE = f(250)

	res := Detect(baseHistory(), a, DefaultBounds())
	assert.True(t, res.ExcludeEPS)
	assert.Contains(t, res.Reasons[PillarEPS], "multiple")
}

func TestDetect_GrowthOutsideRange(t *testing.T) {
	a := baseAssumptions()
	a.GrowthRateCF = f(150)

	res := Detect(baseHistory(), a, DefaultBounds())
	assert.True(t, res.ExcludeCF)
}

func TestDetect_DividendPillar(t *testing.T) {
	a := baseAssumptions()
	a.CurrentDividend = 0

	res := Detect(baseHistory(), a, DefaultBounds())
	assert.True(t, res.ExcludeDIV)

	a = baseAssumptions()
	a.TargetYield = f(0)
	res = Detect(baseHistory(), a, DefaultBounds())
	assert.True(t, res.ExcludeDIV)
}

func TestDetect_UnsetAssumptions(t *testing.T) {
	res := Detect(nil, contracts.Assumptions{CurrentPrice: 0}, DefaultBounds())

	assert.True(t, res.ExcludeEPS)
	assert.True(t, res.ExcludeCF)
	assert.True(t, res.ExcludeBV)
	assert.True(t, res.ExcludeDIV)
	assert.Len(t, res.DetectedOutliers, 4)
}

func TestDetect_FallsBackToLatestRow(t *testing.T) {
	a := baseAssumptions()
	a.BaseYear = 2019

	res := Detect(baseHistory(), a, DefaultBounds())
	assert.InDelta(t, 114.86, res.Targets[PillarEPS], 0.01)
}

func TestDetect_ConfiguredBounds(t *testing.T) {
	cfg := config.OutlierConfig{
		HorizonYears: 5,
		RatioMin:     0.9, RatioMax: 1.1,
		PEMin: 1, PEMax: 200, PCFMin: 1, PCFMax: 200,
		PBVMin: 0.1, PBVMax: 50, YieldMin: 0, YieldMax: 50,
		GrowthMin: -50, GrowthMax: 100,
	}

	res := Detect(baseHistory(), baseAssumptions(), BoundsFromConfig(cfg))

	// EPS target ~115 sits outside the narrowed [0.9, 1.1] band
	assert.True(t, res.ExcludeEPS)
}

func TestResult_ApplyOverwritesFlags(t *testing.T) {
	a := baseAssumptions()
	a.ExcludeCF = true

	res := Result{ExcludeEPS: true}
	out := res.Apply(a)

	assert.True(t, out.ExcludeEPS)
	assert.False(t, out.ExcludeCF)
	require.NotNil(t, out.TargetPE)
}

func TestResult_UnionKeepsExistingFlags(t *testing.T) {
	a := baseAssumptions()
	a.ExcludeCF = true

	res := Result{ExcludeEPS: true}
	out := res.Union(a)

	assert.True(t, out.ExcludeEPS)
	assert.True(t, out.ExcludeCF)
	assert.False(t, out.ExcludeBV)
	assert.False(t, out.ExcludeDIV)
	assert.True(t, a.ExcludeCF && !a.ExcludeEPS, "input is not modified")
}
