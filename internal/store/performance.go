package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/quantdesk/template-backend/pkg/types"
	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
)

// volScoreTolerance is how far a backtest's volatility score may sit from
// the queried score and still count toward the same bucket.
const volScoreTolerance = 2.5

// RecordBacktest stores one backtest outcome for later aggregation.
func (s *Store) RecordBacktest(ctx context.Context, rec *types.BacktestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.RunAt.IsZero() {
		rec.RunAt = time.Now()
	}

	content, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest record: %w", err)
	}

	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, setErr := tx.Set(backtestPrefix+rec.ID, string(content), nil)
		return setErr
	})
	if err != nil {
		return fmt.Errorf("failed to store backtest record: %w", err)
	}

	s.logger.Debug("Backtest recorded",
		zap.String("id", rec.ID),
		zap.String("session", string(rec.Session)),
		zap.Int("trades", rec.Trades),
	)
	return nil
}

// GetMetrics aggregates backtest records matching the (timeOfDay, session,
// volatilityScore) bucket into performance metrics with clamped adjustment
// factors. An empty bucket yields (nil, nil): no data is not an error.
func (s *Store) GetMetrics(ctx context.Context, timeOfDay string, session types.Session, volatilityScore float64) (*types.PerformanceMetrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var trades, wins int
	var grossProfit, grossLoss float64

	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(backtestPrefix+"*", func(key, value string) bool {
			var rec types.BacktestRecord
			if json.Unmarshal([]byte(value), &rec) != nil {
				return true // skip corrupt records, never fail the lookup
			}
			if rec.Session != "" && session != "" && rec.Session != session {
				return true
			}
			if timeOfDay != "" && rec.TimeOfDay != "" && rec.TimeOfDay != timeOfDay {
				return true
			}
			if math.Abs(rec.VolatilityScore-volatilityScore) > volScoreTolerance {
				return true
			}
			trades += rec.Trades
			wins += rec.Wins
			grossProfit += rec.GrossProfit
			grossLoss += rec.GrossLoss
			return true
		})
	})
	if err != nil {
		return nil, err
	}

	if trades == 0 {
		return nil, nil
	}

	winRate := float64(wins) / float64(trades) * 100
	profitFactor := deriveProfitFactor(grossProfit, grossLoss)

	return &types.PerformanceMetrics{
		TimeOfDay:       timeOfDay,
		Session:         session,
		VolatilityScore: volatilityScore,
		WinRate:         winRate,
		ProfitFactor:    profitFactor,
		SampleSize:      trades,
		Factors:         deriveFactors(winRate, profitFactor),
	}, nil
}

// deriveProfitFactor guards the gross-profit / gross-loss ratio against a
// zero-loss bucket.
func deriveProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss <= 0 {
		if grossProfit > 0 {
			return 2.0 // all-winning bucket, reported at the sane ceiling
		}
		return 1.0
	}
	return grossProfit / grossLoss
}

// deriveFactors converts bucket performance into multiplicative parameter
// factors: losing buckets widen stops and shrink targets, winning buckets
// tighten stops and stretch targets. All factors land in [0.5, 2.0].
func deriveFactors(winRate, profitFactor float64) *types.AdjustmentFactors {
	stop := clampFactor(1 + (50-winRate)/100)
	target := clampFactor(profitFactor * 2 / 3)
	trailing := clampFactor((stop + target) / 2)
	return &types.AdjustmentFactors{
		StopLossAdjustment:     stop,
		TargetAdjustment:       target,
		TrailingStopAdjustment: trailing,
	}
}

func clampFactor(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 1.0
	}
	return math.Max(0.5, math.Min(2.0, f))
}
