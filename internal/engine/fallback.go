package engine

import (
	"fmt"
	"strings"

	"github.com/quantdesk/template-backend/pkg/types"
)

// fallbackDefaults holds the synthetic numeric defaults for one volatility
// tier.
type fallbackDefaults struct {
	stopLoss     int
	target       int
	trailingStop int
	fastPeriod   int
	mediumPeriod int
	slowPeriod   int
	fastRange    int
	mediumRange  int
	slowRange    int
	filter       float64
	width        types.BracketWidth
}

var fallbackTable = map[types.Volatility]fallbackDefaults{
	types.VolatilityLow: {
		stopLoss: 8, target: 16, trailingStop: 4,
		fastPeriod: 7, mediumPeriod: 14, slowPeriod: 21,
		fastRange: 3, mediumRange: 4, slowRange: 5,
		filter: 1.5, width: types.BracketWidthNarrow,
	},
	types.VolatilityMedium: {
		stopLoss: 12, target: 24, trailingStop: 6,
		fastPeriod: 5, mediumPeriod: 10, slowPeriod: 15,
		fastRange: 4, mediumRange: 5, slowRange: 6,
		filter: 2.0, width: types.BracketWidthStandard,
	},
	types.VolatilityHigh: {
		stopLoss: 15, target: 30, trailingStop: 8,
		fastPeriod: 3, mediumPeriod: 7, slowPeriod: 12,
		fastRange: 5, mediumRange: 6, slowRange: 8,
		filter: 2.5, width: types.BracketWidthWide,
	},
}

// GenerateFallback synthesizes a usable template when no persisted template
// or performance data exists. It is pure and deterministic: identical
// inputs always produce identical templates. Defaults are keyed off the
// volatility tier and a strong-trend flag only.
func GenerateFallback(templateType types.TemplateType, conditions types.MarketConditions) *types.Template {
	tier := conditions.Volatility
	defaults, ok := fallbackTable[tier]
	if !ok {
		tier = types.VolatilityMedium
		defaults = fallbackTable[tier]
	}

	target := defaults.target
	trailing := defaults.trailingStop
	name := fmt.Sprintf("Fallback %s %s", templateType, tier)
	if conditions.Trend.Strong() {
		// Let strong-trend entries run further before the bracket closes.
		target = target * 3 / 2
		trailing += 2
		name += " Trend"
	}

	tmpl := &types.Template{
		ID:         strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Type:       templateType,
		Name:       name,
		Conditions: conditions,
		Source:     "generated",
		IsFallback: true,
		MatchScore: 0,
	}

	switch templateType {
	case types.TemplateTypeFlazh:
		tmpl.Flazh = &types.FlazhParameters{
			FastPeriod:       defaults.fastPeriod,
			MediumPeriod:     defaults.mediumPeriod,
			SlowPeriod:       defaults.slowPeriod,
			FastRange:        defaults.fastRange,
			MediumRange:      defaults.mediumRange,
			SlowRange:        defaults.slowRange,
			FilterMultiplier: defaults.filter,
			StopLoss:         defaults.stopLoss,
			Target:           target,
			TrailingStop:     trailing,
		}
	default:
		tmpl.ATM = &types.ATMParameters{
			StopLoss:        defaults.stopLoss,
			Target:          target,
			TrailingStop:    trailing,
			CalculationMode: types.CalculationModeTicks,
			BracketWidth:    defaults.width,
			Brackets: []types.Bracket{
				{Quantity: 1, StopLoss: defaults.stopLoss, Target: target, TrailingStop: trailing},
			},
		}
	}

	return tmpl
}
