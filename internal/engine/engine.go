// Package engine implements the market-adaptive template recommendation
// engine: condition classification, template similarity scoring, tiered
// selection with graceful degradation, and performance-based parameter
// adjustment. The engine is stateless and request-scoped; any number of
// Recommend calls may run concurrently.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/quantdesk/template-backend/internal/market"
	"github.com/quantdesk/template-backend/pkg/types"
	"go.uber.org/zap"
)

// PerformanceStore provides aggregated backtest metrics for a time-of-day,
// session and volatility bucket. A nil result with nil error means no data.
type PerformanceStore interface {
	GetMetrics(ctx context.Context, timeOfDay string, session types.Session, volatilityScore float64) (*types.PerformanceMetrics, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Engine is the single public entry point of the recommendation core.
type Engine struct {
	logger      *zap.Logger
	config      types.EngineConfig
	classifier  *market.Classifier
	resolver    *Resolver
	adjuster    *Adjuster
	performance PerformanceStore
	clock       Clock
}

// NewEngine wires the engine from its collaborators. A nil clock uses the
// system clock; a nil classifier config uses defaults.
func NewEngine(logger *zap.Logger, config types.EngineConfig, repo TemplateRepository, performance PerformanceStore, clock Clock) *Engine {
	if clock == nil {
		clock = systemClock{}
	}
	if config.BestEffortMinScore == 0 {
		config.BestEffortMinScore = 40
	}
	if config.SparseBaselineScore == 0 {
		config.SparseBaselineScore = 20
	}
	scorer := NewScorer(config.SparseBaselineScore)
	return &Engine{
		logger:     logger,
		config:     config,
		classifier: market.NewClassifier(logger, nil),
		resolver:   NewResolver(logger, repo, scorer, config.BestEffortMinScore),
		adjuster: NewAdjuster(logger, AdjusterConfig{
			FlazhFastCeiling:   config.FlazhFastCeiling,
			FlazhMediumCeiling: config.FlazhMediumCeiling,
			FlazhSlowCeiling:   config.FlazhSlowCeiling,
		}),
		performance: performance,
		clock:       clock,
	}
}

// Recommend produces a template recommendation for the given family. It
// always returns a usable Recommendation: collaborator failures and missing
// data degrade the result (isFallback, warnings) instead of failing it.
// A non-nil override bypasses classification entirely; otherwise conditions
// are classified from the clock and the optional raw readings.
func (e *Engine) Recommend(ctx context.Context, templateType types.TemplateType, override *types.MarketConditions, raw *types.RawMetrics) *types.Recommendation {
	var (
		conditions types.MarketConditions
		warnings   []string
	)

	if override != nil {
		conditions = *override
		warnings = normalizeOverride(&conditions)
	} else {
		conditions, warnings = e.classifier.Classify(e.clock.Now(), raw)
	}

	// Repository and performance-store round trips are bounded; a timeout
	// takes the same degraded path as missing data.
	resolveCtx := ctx
	if e.config.CollaboratorTimeout > 0 {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(ctx, e.config.CollaboratorTimeout)
		defer cancel()
	}

	selected, tier := e.resolver.Resolve(resolveCtx, templateType, conditions)
	if tier == TierFallback {
		warnings = append(warnings, "no stored template matched; synthetic fallback generated")
	}

	metrics := e.lookupMetrics(resolveCtx, conditions, &warnings)
	adjusted := e.adjuster.Adjust(selected, metrics, conditions.VolatilityScore)

	return &types.Recommendation{
		OriginalTemplate: selected,
		AdjustedTemplate: adjusted,
		Performance:      metrics,
		Conditions:       conditions,
		IsFallback:       selected.IsFallback,
		MatchScore:       selected.MatchScore,
		Tier:             string(tier),
		Warnings:         warnings,
		GeneratedAt:      e.clock.Now(),
	}
}

// RecommendPair composes both template families for a complete platform
// setup. Both recommendations share one set of conditions.
func (e *Engine) RecommendPair(ctx context.Context, override *types.MarketConditions, raw *types.RawMetrics) *types.RecommendationPair {
	flazh := e.Recommend(ctx, types.TemplateTypeFlazh, override, raw)
	atm := e.Recommend(ctx, types.TemplateTypeATM, &flazh.Conditions, nil)
	return &types.RecommendationPair{
		Flazh:            flazh,
		ATM:              atm,
		MarketConditions: flazh.Conditions,
	}
}

// lookupMetrics fetches bucket metrics, degrading to nil (unadjusted
// recommendation) on any failure.
func (e *Engine) lookupMetrics(ctx context.Context, conditions types.MarketConditions, warnings *[]string) *types.PerformanceMetrics {
	if e.performance == nil {
		return nil
	}
	metrics, err := e.performance.GetMetrics(ctx, timeOfDayBucket(conditions.Timestamp), conditions.Session, conditions.VolatilityScore)
	if err != nil {
		e.logger.Warn("Performance store unavailable, skipping adjustment", zap.Error(err))
		*warnings = append(*warnings, "performance data unavailable; parameters unadjusted")
		return nil
	}
	return metrics
}

// normalizeOverride enforces the conditions invariant on caller-supplied
// values: session and volatility are always populated.
func normalizeOverride(c *types.MarketConditions) []string {
	var warnings []string
	if c.Session == "" {
		c.Session = types.SessionUnknown
		warnings = append(warnings, "override session missing; defaulted to UNKNOWN")
	}
	if c.Volatility == "" {
		c.Volatility = types.VolatilityMedium
		warnings = append(warnings, "override volatility missing; defaulted to MEDIUM")
	}
	return warnings
}

// timeOfDayBucket keys performance lookups to the hour of day.
func timeOfDayBucket(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d:00", ts.Hour())
}
