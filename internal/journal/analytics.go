// Package journal provides trade-journal analytics. It consumes journaled
// trades and the engine's recommendations; it carries no decision logic.
package journal

import (
	"math"
	"sort"
	"time"

	"github.com/quantdesk/template-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Summary is the aggregated performance view of a trade journal.
type Summary struct {
	TotalTrades   int                  `json:"totalTrades"`
	WinningTrades int                  `json:"winningTrades"`
	LosingTrades  int                  `json:"losingTrades"`
	WinRate       decimal.Decimal      `json:"winRate"` // 0-1
	ProfitFactor  decimal.Decimal      `json:"profitFactor"`
	Expectancy    decimal.Decimal      `json:"expectancy"`
	AvgWin        decimal.Decimal      `json:"avgWin"`
	AvgLoss       decimal.Decimal      `json:"avgLoss"`
	NetPnL        decimal.Decimal      `json:"netPnl"`
	SharpeRatio   decimal.Decimal      `json:"sharpeRatio"`
	SortinoRatio  decimal.Decimal      `json:"sortinoRatio"`
	MaxWinStreak  int                  `json:"maxWinStreak"`
	MaxLossStreak int                  `json:"maxLossStreak"`
	CurrentStreak int                  `json:"currentStreak"` // positive = wins, negative = losses
	ByDayOfWeek   map[string]*DayStats `json:"byDayOfWeek"`
}

// DayStats breaks performance down by day of week.
type DayStats struct {
	Trades  int             `json:"trades"`
	Wins    int             `json:"wins"`
	NetPnL  decimal.Decimal `json:"netPnl"`
	WinRate decimal.Decimal `json:"winRate"`
}

// Analyzer computes journal summaries.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates a journal analyzer.
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// Analyze aggregates a set of journaled trades into a summary. An empty
// journal yields a zero-valued summary, not an error.
func (a *Analyzer) Analyze(trades []types.JournalTrade) *Summary {
	summary := &Summary{ByDayOfWeek: make(map[string]*DayStats)}
	if len(trades) == 0 {
		return summary
	}

	ordered := make([]types.JournalTrade, len(trades))
	copy(ordered, trades)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ExitAt.Before(ordered[j].ExitAt)
	})

	var totalWins, totalLosses decimal.Decimal
	var winStreak, lossStreak int
	returns := make([]float64, 0, len(ordered))

	for _, trade := range ordered {
		pnl := decimal.NewFromFloat(trade.PnL)
		summary.TotalTrades++
		summary.NetPnL = summary.NetPnL.Add(pnl)
		returns = append(returns, trade.PnL)

		day := dayName(trade.ExitAt)
		stats := summary.ByDayOfWeek[day]
		if stats == nil {
			stats = &DayStats{}
			summary.ByDayOfWeek[day] = stats
		}
		stats.Trades++
		stats.NetPnL = stats.NetPnL.Add(pnl)

		if trade.PnL > 0 {
			summary.WinningTrades++
			totalWins = totalWins.Add(pnl)
			stats.Wins++
			winStreak++
			lossStreak = 0
			if winStreak > summary.MaxWinStreak {
				summary.MaxWinStreak = winStreak
			}
		} else if trade.PnL < 0 {
			summary.LosingTrades++
			totalLosses = totalLosses.Add(pnl.Abs())
			lossStreak++
			winStreak = 0
			if lossStreak > summary.MaxLossStreak {
				summary.MaxLossStreak = lossStreak
			}
		} else {
			winStreak = 0
			lossStreak = 0
		}
	}

	if winStreak > 0 {
		summary.CurrentStreak = winStreak
	} else {
		summary.CurrentStreak = -lossStreak
	}

	total := decimal.NewFromInt(int64(summary.TotalTrades))
	summary.WinRate = decimal.NewFromInt(int64(summary.WinningTrades)).Div(total)

	if summary.WinningTrades > 0 {
		summary.AvgWin = totalWins.Div(decimal.NewFromInt(int64(summary.WinningTrades)))
	}
	if summary.LosingTrades > 0 {
		summary.AvgLoss = totalLosses.Div(decimal.NewFromInt(int64(summary.LosingTrades)))
	}
	if !totalLosses.IsZero() {
		summary.ProfitFactor = totalWins.Div(totalLosses)
	}

	// Expectancy: (Win% * AvgWin) - (Loss% * AvgLoss)
	lossPct := decimal.NewFromInt(1).Sub(summary.WinRate)
	summary.Expectancy = summary.WinRate.Mul(summary.AvgWin).Sub(lossPct.Mul(summary.AvgLoss))

	for _, stats := range summary.ByDayOfWeek {
		if stats.Trades > 0 {
			stats.WinRate = decimal.NewFromInt(int64(stats.Wins)).Div(decimal.NewFromInt(int64(stats.Trades)))
		}
	}

	// Sharpe/Sortino over per-trade P&L (0% risk-free rate).
	if len(returns) > 1 {
		avg := mean(returns)
		if sd := stdDev(returns); sd > 0 {
			summary.SharpeRatio = decimal.NewFromFloat(avg / sd)
		}
		if dd := downsideDeviation(returns); dd > 0 {
			summary.SortinoRatio = decimal.NewFromFloat(avg / dd)
		}
	}

	return summary
}

func dayName(ts time.Time) string {
	return ts.Weekday().String()
}

// mean calculates arithmetic mean
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev calculates sample standard deviation
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}

// downsideDeviation calculates standard deviation of negative returns only
func downsideDeviation(values []float64) float64 {
	var negative []float64
	for _, v := range values {
		if v < 0 {
			negative = append(negative, v)
		}
	}
	if len(negative) == 0 {
		return 0
	}
	return stdDev(negative)
}
