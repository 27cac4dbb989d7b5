package engine

import (
	"math"

	"github.com/quantdesk/template-backend/pkg/types"
	"go.uber.org/zap"
)

// adjustedSuffix marks a performance-adjusted derivation of a stored
// template. The suffix never affects repository identity; adjusted
// templates are not persisted here.
const adjustedSuffix = " (Enhanced)"

// Fixed Flazh moving-average tuning factors and floors.
const (
	flazhHighVolScore = 6.0
	flazhLowVolScore  = 4.0

	flazhFastFloor   = 3
	flazhMediumFloor = 6
	flazhSlowFloor   = 10
)

// AdjusterConfig bounds the adjuster's Flazh moving-average growth.
type AdjusterConfig struct {
	FlazhFastCeiling   int
	FlazhMediumCeiling int
	FlazhSlowCeiling   int
}

// DefaultAdjusterConfig returns the documented sanity ceilings.
func DefaultAdjusterConfig() AdjusterConfig {
	return AdjusterConfig{
		FlazhFastCeiling:   60,
		FlazhMediumCeiling: 90,
		FlazhSlowCeiling:   150,
	}
}

// Adjuster rescales a template's numeric parameters from historical
// backtest performance. Adjust is a pure transformation: it returns a new
// deep copy and never mutates the stored template.
type Adjuster struct {
	logger *zap.Logger
	config AdjusterConfig
}

// NewAdjuster creates a performance-based adjuster.
func NewAdjuster(logger *zap.Logger, config AdjusterConfig) *Adjuster {
	if config.FlazhFastCeiling <= 0 {
		config = DefaultAdjusterConfig()
	}
	return &Adjuster{logger: logger, config: config}
}

// Adjust applies performance-derived adjustment factors to a copy of the
// template. Absent metrics or factors are an explicit no-op branch: the
// copy comes back unchanged, including the name.
func (a *Adjuster) Adjust(tmpl *types.Template, metrics *types.PerformanceMetrics, volatilityScore float64) *types.Template {
	cp := tmpl.Clone()
	if metrics == nil || metrics.Factors == nil {
		return cp
	}

	stopF := sanitizeFactor(metrics.Factors.StopLossAdjustment)
	targetF := sanitizeFactor(metrics.Factors.TargetAdjustment)
	trailF := sanitizeFactor(metrics.Factors.TrailingStopAdjustment)

	switch {
	case cp.Flazh != nil:
		a.adjustFlazh(cp.Flazh, metrics, volatilityScore, stopF, targetF, trailF)
	case cp.ATM != nil:
		a.adjustATM(cp.ATM, metrics, volatilityScore, stopF, targetF, trailF)
	default:
		// Nothing numeric to rescale; still a derived artifact.
	}

	cp.Name = tmpl.Name + adjustedSuffix

	a.logger.Debug("Template adjusted",
		zap.String("template", tmpl.Name),
		zap.Float64("stopFactor", stopF),
		zap.Float64("targetFactor", targetF),
		zap.Float64("trailingFactor", trailF),
		zap.Float64("volatilityScore", volatilityScore),
	)

	return cp
}

func (a *Adjuster) adjustFlazh(p *types.FlazhParameters, metrics *types.PerformanceMetrics, volatilityScore, stopF, targetF, trailF float64) {
	p.StopLoss = applyTicks(p.StopLoss, stopF)
	p.Target = applyTicks(p.Target, targetF)
	p.TrailingStop = applyTicks(p.TrailingStop, trailF)

	// Faster averages in high volatility, slower in quiet conditions.
	switch {
	case volatilityScore > flazhHighVolScore:
		p.FastPeriod = maxInt(flazhFastFloor, scaleInt(p.FastPeriod, 0.8))
		p.MediumPeriod = maxInt(flazhMediumFloor, scaleInt(p.MediumPeriod, 0.85))
		p.SlowPeriod = maxInt(flazhSlowFloor, scaleInt(p.SlowPeriod, 0.9))
	case volatilityScore < flazhLowVolScore:
		p.FastPeriod = minInt(a.config.FlazhFastCeiling, scaleInt(p.FastPeriod, 1.2))
		p.MediumPeriod = minInt(a.config.FlazhMediumCeiling, scaleInt(p.MediumPeriod, 1.15))
		p.SlowPeriod = minInt(a.config.FlazhSlowCeiling, scaleInt(p.SlowPeriod, 1.1))
	}

	rangeFactor := 1.1
	if metrics.WinRate > 60 {
		rangeFactor = 0.9
	}
	p.FastRange = maxInt(1, scaleInt(p.FastRange, rangeFactor))
	p.MediumRange = maxInt(1, scaleInt(p.MediumRange, rangeFactor))
	p.SlowRange = maxInt(1, scaleInt(p.SlowRange, rangeFactor))

	switch {
	case metrics.ProfitFactor < 1.3:
		p.FilterMultiplier *= 1.2
	case metrics.ProfitFactor > 1.8:
		p.FilterMultiplier *= 0.9
	}
	p.FilterMultiplier = math.Max(1, math.Min(5, p.FilterMultiplier))
}

func (a *Adjuster) adjustATM(p *types.ATMParameters, metrics *types.PerformanceMetrics, volatilityScore, stopF, targetF, trailF float64) {
	p.StopLoss = applyTicks(p.StopLoss, stopF)
	p.Target = applyTicks(p.Target, targetF)
	p.TrailingStop = applyTicks(p.TrailingStop, trailF)

	for i := range p.Brackets {
		p.Brackets[i].StopLoss = applyTicks(p.Brackets[i].StopLoss, stopF)
		p.Brackets[i].Target = applyTicks(p.Brackets[i].Target, targetF)
		p.Brackets[i].TrailingStop = applyTicks(p.Brackets[i].TrailingStop, trailF)
	}

	// Bracket width follows volatility-score tertiles over the 0-10 scale.
	switch {
	case volatilityScore > 20.0/3:
		p.BracketWidth = types.BracketWidthWide
	case volatilityScore < 10.0/3:
		p.BracketWidth = types.BracketWidthNarrow
	default:
		p.BracketWidth = types.BracketWidthStandard
	}

	if metrics.WinRate > 65 {
		p.CalculationMode = types.CalculationModePercent
	} else {
		p.CalculationMode = types.CalculationModeTicks
	}
}

// sanitizeFactor guards against degenerate adjustment factors: anything
// unusable becomes the 1.0 no-op, everything else is clamped to the sane
// [0.5, 2.0] range.
func sanitizeFactor(f float64) float64 {
	if !types.SaneFactor(f) {
		return 1.0
	}
	return math.Max(0.5, math.Min(2.0, f))
}

// applyTicks multiplicatively rescales a tick distance, rounding to the
// template's native integer unit with a 1-tick floor. Disabled fields
// (zero) stay disabled.
func applyTicks(ticks int, factor float64) int {
	if ticks <= 0 {
		return ticks
	}
	adjusted := int(math.Round(float64(ticks) * factor))
	if adjusted < 1 {
		return 1
	}
	return adjusted
}

// scaleInt rescales an integer parameter with round-to-nearest.
func scaleInt(v int, factor float64) int {
	return int(math.Round(float64(v) * factor))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
