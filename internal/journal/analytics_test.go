// Package journal_test provides tests for the trade-journal analytics.
package journal_test

import (
	"testing"
	"time"

	"github.com/quantdesk/template-backend/internal/journal"
	"github.com/quantdesk/template-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// trade builds a journaled trade exiting n hours after the base instant.
func trade(pnl float64, n int) types.JournalTrade {
	base := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC) // a Monday
	return types.JournalTrade{
		Symbol:    "NQ",
		Direction: "LONG",
		PnL:       pnl,
		EntryAt:   base.Add(time.Duration(n-1) * time.Hour),
		ExitAt:    base.Add(time.Duration(n) * time.Hour),
	}
}

func TestAnalyzeEmptyJournal(t *testing.T) {
	a := journal.NewAnalyzer(zap.NewNop())

	summary := a.Analyze(nil)

	if summary.TotalTrades != 0 {
		t.Errorf("Expected zero trades, got %d", summary.TotalTrades)
	}
	if summary.ByDayOfWeek == nil {
		t.Error("ByDayOfWeek map must be initialized")
	}
}

func TestAnalyzeBasicAggregates(t *testing.T) {
	a := journal.NewAnalyzer(zap.NewNop())

	trades := []types.JournalTrade{
		trade(100, 1),
		trade(-50, 2),
		trade(200, 3),
		trade(-50, 4),
	}

	summary := a.Analyze(trades)

	if summary.TotalTrades != 4 || summary.WinningTrades != 2 || summary.LosingTrades != 2 {
		t.Errorf("Unexpected counts: %+v", summary)
	}
	if !summary.WinRate.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("Expected win rate 0.5, got %s", summary.WinRate)
	}
	if !summary.NetPnL.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected net P&L 200, got %s", summary.NetPnL)
	}
	if !summary.ProfitFactor.Equal(decimal.NewFromInt(3)) { // 300 / 100
		t.Errorf("Expected profit factor 3, got %s", summary.ProfitFactor)
	}
	if !summary.AvgWin.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected avg win 150, got %s", summary.AvgWin)
	}
	if !summary.AvgLoss.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected avg loss 50, got %s", summary.AvgLoss)
	}
	// Expectancy: 0.5*150 - 0.5*50 = 50
	if !summary.Expectancy.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected expectancy 50, got %s", summary.Expectancy)
	}
}

func TestAnalyzeStreaks(t *testing.T) {
	a := journal.NewAnalyzer(zap.NewNop())

	trades := []types.JournalTrade{
		trade(10, 1), trade(10, 2), trade(10, 3), // three wins
		trade(-10, 4), trade(-10, 5), // two losses
		trade(10, 6),  // win
		trade(-10, 7), // and a closing loss
	}

	summary := a.Analyze(trades)

	if summary.MaxWinStreak != 3 {
		t.Errorf("Expected max win streak 3, got %d", summary.MaxWinStreak)
	}
	if summary.MaxLossStreak != 2 {
		t.Errorf("Expected max loss streak 2, got %d", summary.MaxLossStreak)
	}
	if summary.CurrentStreak != -1 {
		t.Errorf("Expected current streak -1, got %d", summary.CurrentStreak)
	}
}

func TestAnalyzeStreaksRespectExitOrder(t *testing.T) {
	a := journal.NewAnalyzer(zap.NewNop())

	// Delivered out of order; streaks must follow exit time.
	trades := []types.JournalTrade{
		trade(10, 3),
		trade(-10, 1),
		trade(10, 2),
	}

	summary := a.Analyze(trades)

	if summary.MaxWinStreak != 2 {
		t.Errorf("Expected max win streak 2 after ordering, got %d", summary.MaxWinStreak)
	}
	if summary.CurrentStreak != 2 {
		t.Errorf("Expected current streak 2, got %d", summary.CurrentStreak)
	}
}

func TestAnalyzeBreakevenResetsStreaks(t *testing.T) {
	a := journal.NewAnalyzer(zap.NewNop())

	trades := []types.JournalTrade{
		trade(10, 1), trade(10, 2),
		trade(0, 3), // breakeven
		trade(10, 4),
	}

	summary := a.Analyze(trades)

	if summary.MaxWinStreak != 2 {
		t.Errorf("Breakeven must reset streaks, got max %d", summary.MaxWinStreak)
	}
	if summary.CurrentStreak != 1 {
		t.Errorf("Expected current streak 1, got %d", summary.CurrentStreak)
	}
	if summary.WinningTrades != 3 || summary.LosingTrades != 0 {
		t.Errorf("Breakeven counts as neither win nor loss: %+v", summary)
	}
}

func TestAnalyzeByDayOfWeek(t *testing.T) {
	a := journal.NewAnalyzer(zap.NewNop())

	monday := trade(100, 1)
	tuesday := trade(-50, 25) // 24h later
	trades := []types.JournalTrade{monday, tuesday}

	summary := a.Analyze(trades)

	mon := summary.ByDayOfWeek["Monday"]
	if mon == nil || mon.Trades != 1 || mon.Wins != 1 {
		t.Errorf("Unexpected Monday stats: %+v", mon)
	}
	if !mon.WinRate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected Monday win rate 1, got %s", mon.WinRate)
	}

	tue := summary.ByDayOfWeek["Tuesday"]
	if tue == nil || tue.Trades != 1 || tue.Wins != 0 {
		t.Errorf("Unexpected Tuesday stats: %+v", tue)
	}
	if !tue.NetPnL.Equal(decimal.NewFromInt(-50)) {
		t.Errorf("Expected Tuesday net -50, got %s", tue.NetPnL)
	}
}

func TestAnalyzeRiskRatios(t *testing.T) {
	a := journal.NewAnalyzer(zap.NewNop())

	trades := []types.JournalTrade{
		trade(100, 1), trade(-50, 2), trade(75, 3), trade(-25, 4), trade(60, 5),
	}

	summary := a.Analyze(trades)

	if summary.SharpeRatio.IsZero() {
		t.Error("Expected a non-zero Sharpe ratio")
	}
	if summary.SortinoRatio.IsZero() {
		t.Error("Expected a non-zero Sortino ratio")
	}

	// All-winning journal: no downside deviation, Sortino stays zero.
	allWins := a.Analyze([]types.JournalTrade{trade(10, 1), trade(20, 2)})
	if !allWins.SortinoRatio.IsZero() {
		t.Errorf("Expected zero Sortino without losses, got %s", allWins.SortinoRatio)
	}
}
