package engine

import (
	"context"

	"github.com/quantdesk/template-backend/pkg/types"
	"go.uber.org/zap"
)

// Tier names the relaxation level that satisfied a resolution request.
type Tier string

const (
	TierExact              Tier = "exact"
	TierRelaxedDay         Tier = "relaxed_day"
	TierDegradedVolatility Tier = "degraded_volatility"
	TierSessionOnly        Tier = "session_only"
	TierBestEffort         Tier = "best_effort"
	TierExhaustion         Tier = "exhaustion"
	TierFallback           Tier = "fallback"
)

// TemplateRepository is the read interface the resolver consumes. Errors
// from any call are treated the same as an empty result.
type TemplateRepository interface {
	Find(ctx context.Context, templateType types.TemplateType, match func(*types.Template) bool) ([]*types.Template, error)
	All(ctx context.Context, templateType types.TemplateType) ([]*types.Template, error)
}

// Resolver selects a stored template for the current conditions through an
// ordered sequence of relaxation tiers, synthesizing one when the
// repository has nothing usable. Resolve never fails.
type Resolver struct {
	logger   *zap.Logger
	repo     TemplateRepository
	scorer   *Scorer
	minScore float64 // best-effort acceptance threshold
}

// NewResolver creates a resolver over the given repository.
func NewResolver(logger *zap.Logger, repo TemplateRepository, scorer *Scorer, minBestEffortScore float64) *Resolver {
	return &Resolver{
		logger:   logger,
		repo:     repo,
		scorer:   scorer,
		minScore: minBestEffortScore,
	}
}

// Resolve returns a usable template and the tier that produced it. Each
// tier is a pure try-else-fall-through; repository failures and context
// cancellation degrade to later tiers, terminating in the deterministic
// fallback generator.
func (r *Resolver) Resolve(ctx context.Context, templateType types.TemplateType, conditions types.MarketConditions) (*types.Template, Tier) {
	type tierQuery struct {
		tier  Tier
		match func(*types.Template) bool
	}

	queries := []tierQuery{
		{TierExact, func(t *types.Template) bool {
			return t.Conditions.Session == conditions.Session &&
				t.Conditions.Volatility == conditions.Volatility &&
				t.Conditions.DayOfWeek == conditions.DayOfWeek
		}},
		{TierRelaxedDay, func(t *types.Template) bool {
			return t.Conditions.Session == conditions.Session &&
				t.Conditions.Volatility == conditions.Volatility
		}},
		{TierDegradedVolatility, func(t *types.Template) bool {
			return t.Conditions.Session == conditions.Session &&
				t.Conditions.Volatility == types.VolatilityMedium
		}},
		{TierSessionOnly, func(t *types.Template) bool {
			return t.Conditions.Session == conditions.Session
		}},
	}

	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		candidates, err := r.repo.Find(ctx, templateType, q.match)
		if err != nil {
			r.logger.Warn("Template query failed, falling through",
				zap.String("tier", string(q.tier)), zap.Error(err))
			continue
		}
		if len(candidates) == 0 {
			continue
		}
		best := r.pickBest(candidates, conditions)
		r.logTier(q.tier, templateType, best)
		return best, q.tier
	}

	// Best-effort tier: score everything and accept a clear-enough winner.
	if ctx.Err() == nil {
		all, err := r.repo.All(ctx, templateType)
		if err != nil {
			r.logger.Warn("Template scan failed, falling through", zap.Error(err))
		} else if len(all) > 0 {
			best := r.pickBest(all, conditions)
			if best.MatchScore > r.minScore {
				r.logTier(TierBestEffort, templateType, best)
				return best, TierBestEffort
			}
			// Exhaustion tier: any template beats a synthetic one. Keep
			// repository natural order rather than the scored order.
			first := all[0].Clone()
			first.MatchScore = r.scorer.Score(conditions, first.Conditions)
			r.logTier(TierExhaustion, templateType, first)
			return first, TierExhaustion
		}
	}

	fallback := GenerateFallback(templateType, conditions)
	r.logTier(TierFallback, templateType, fallback)
	return fallback, TierFallback
}

// pickBest scores candidates against the current conditions and returns a
// copy of the highest scorer. Stored templates are never mutated.
func (r *Resolver) pickBest(candidates []*types.Template, conditions types.MarketConditions) *types.Template {
	var best *types.Template
	bestScore := -1.0
	for _, c := range candidates {
		score := r.scorer.Score(conditions, c.Conditions)
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	cp := best.Clone()
	cp.MatchScore = bestScore
	return cp
}

func (r *Resolver) logTier(tier Tier, templateType types.TemplateType, tmpl *types.Template) {
	r.logger.Info("Template resolved",
		zap.String("type", string(templateType)),
		zap.String("tier", string(tier)),
		zap.String("template", tmpl.Name),
		zap.Float64("matchScore", tmpl.MatchScore),
	)
}
