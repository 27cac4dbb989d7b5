// Package market_test provides tests for the condition classifier.
package market_test

import (
	"math"
	"testing"
	"time"

	"github.com/quantdesk/template-backend/internal/market"
	"github.com/quantdesk/template-backend/pkg/types"
	"go.uber.org/zap"
)

func newClassifier() *market.Classifier {
	config := market.DefaultClassifierConfig()
	config.Location = time.UTC
	return market.NewClassifier(zap.NewNop(), config)
}

func TestClassifyWeekendIsClosed(t *testing.T) {
	c := newClassifier()

	// Saturday midday
	ts := time.Date(2025, 6, 14, 13, 0, 0, 0, time.UTC)
	conditions, warnings := c.Classify(ts, &types.RawMetrics{VolatilityReading: 2.0})

	if conditions.Session != types.SessionClosed {
		t.Errorf("Expected CLOSED session, got %s", conditions.Session)
	}
	if conditions.Volatility != types.VolatilityNone {
		t.Errorf("Expected NONE volatility, got %s", conditions.Volatility)
	}
	if conditions.VolatilityScore != 0 {
		t.Errorf("Expected zero volatility score, got %f", conditions.VolatilityScore)
	}
	if conditions.DayOfWeek != "" {
		t.Errorf("Expected empty day of week, got %q", conditions.DayOfWeek)
	}
	if len(warnings) != 0 {
		t.Errorf("Weekend classification should not warn, got %v", warnings)
	}
}

func TestClassifySessionBoundaries(t *testing.T) {
	c := newClassifier()

	// Monday 2025-06-16
	cases := []struct {
		hour, minute int
		want         types.Session
	}{
		{5, 59, types.SessionOvernight},
		{6, 0, types.SessionPreMarket},
		{10, 29, types.SessionPreMarket},
		{10, 30, types.SessionLateMorning}, // boundary belongs to the later bucket
		{12, 30, types.SessionEarlyAfternoon},
		{14, 30, types.SessionPreClose},
		{16, 0, types.SessionAfterHours},
		{19, 59, types.SessionAfterHours},
		{20, 0, types.SessionOvernight},
		{0, 0, types.SessionOvernight},
	}

	for _, tc := range cases {
		ts := time.Date(2025, 6, 16, tc.hour, tc.minute, 0, 0, time.UTC)
		conditions, _ := c.Classify(ts, nil)
		if conditions.Session != tc.want {
			t.Errorf("%02d:%02d: expected %s, got %s", tc.hour, tc.minute, tc.want, conditions.Session)
		}
	}
}

func TestClassifyWeekdayWithMetrics(t *testing.T) {
	c := newClassifier()

	// Monday 13:30 with a medium reading
	ts := time.Date(2025, 6, 16, 13, 30, 0, 0, time.UTC)
	conditions, warnings := c.Classify(ts, &types.RawMetrics{VolatilityReading: 1.0})

	if conditions.Session != types.SessionEarlyAfternoon {
		t.Errorf("Expected EARLY_AFTERNOON, got %s", conditions.Session)
	}
	if conditions.Volatility != types.VolatilityMedium {
		t.Errorf("Expected MEDIUM volatility, got %s", conditions.Volatility)
	}
	if conditions.VolatilityScore != 5 {
		t.Errorf("Expected score 5 for reading 1.0, got %f", conditions.VolatilityScore)
	}
	if conditions.DayOfWeek != "Monday" {
		t.Errorf("Expected Monday, got %q", conditions.DayOfWeek)
	}
	if len(warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", warnings)
	}
}

func TestClassifyVolatilityBuckets(t *testing.T) {
	c := newClassifier()
	ts := time.Date(2025, 6, 16, 11, 0, 0, 0, time.UTC)

	cases := []struct {
		reading   float64
		want      types.Volatility
		wantScore float64
	}{
		{0.3, types.VolatilityLow, 1.5},
		{0.5, types.VolatilityMedium, 2.5}, // boundary is inclusive into MEDIUM
		{1.5, types.VolatilityMedium, 7.5},
		{1.6, types.VolatilityHigh, 8},
		{4.0, types.VolatilityHigh, 10}, // score capped at 10
	}

	for _, tc := range cases {
		conditions, _ := c.Classify(ts, &types.RawMetrics{VolatilityReading: tc.reading})
		if conditions.Volatility != tc.want {
			t.Errorf("reading %f: expected %s, got %s", tc.reading, tc.want, conditions.Volatility)
		}
		if conditions.VolatilityScore != tc.wantScore {
			t.Errorf("reading %f: expected score %f, got %f", tc.reading, tc.wantScore, conditions.VolatilityScore)
		}
	}
}

func TestClassifyMissingMetricsWarns(t *testing.T) {
	c := newClassifier()
	ts := time.Date(2025, 6, 16, 11, 0, 0, 0, time.UTC)

	conditions, warnings := c.Classify(ts, nil)

	if conditions.Volatility != types.VolatilityMedium {
		t.Errorf("Expected MEDIUM default, got %s", conditions.Volatility)
	}
	if conditions.VolatilityScore != 5 {
		t.Errorf("Expected default score 5, got %f", conditions.VolatilityScore)
	}
	if len(warnings) == 0 {
		t.Error("Expected a warning for missing metrics")
	}
}

func TestClassifyMalformedReadingDefaults(t *testing.T) {
	c := newClassifier()
	ts := time.Date(2025, 6, 16, 11, 0, 0, 0, time.UTC)

	for _, reading := range []float64{math.NaN(), math.Inf(1), -1.0} {
		conditions, warnings := c.Classify(ts, &types.RawMetrics{VolatilityReading: reading})
		if conditions.Volatility != types.VolatilityMedium {
			t.Errorf("reading %f: expected MEDIUM default, got %s", reading, conditions.Volatility)
		}
		if len(warnings) == 0 {
			t.Errorf("reading %f: expected a warning", reading)
		}
	}
}

func TestClassifyZeroTimestamp(t *testing.T) {
	c := newClassifier()

	conditions, warnings := c.Classify(time.Time{}, nil)

	if conditions.Session != types.SessionUnknown {
		t.Errorf("Expected UNKNOWN session, got %s", conditions.Session)
	}
	if len(warnings) == 0 {
		t.Error("Expected warnings for zero timestamp")
	}
}

func TestClassifyVolumeAndTrend(t *testing.T) {
	c := newClassifier()
	ts := time.Date(2025, 6, 16, 11, 0, 0, 0, time.UTC)

	conditions, _ := c.Classify(ts, &types.RawMetrics{
		VolatilityReading: 1.0,
		VolumeRatio:       1.5,
		TrendSlope:        0.7,
	})

	if conditions.Volume != types.VolumeHigh {
		t.Errorf("Expected HIGH volume, got %s", conditions.Volume)
	}
	if conditions.Trend != types.TrendStrongUp {
		t.Errorf("Expected STRONG_UP trend, got %s", conditions.Trend)
	}

	conditions, _ = c.Classify(ts, &types.RawMetrics{
		VolatilityReading: 1.0,
		VolumeRatio:       0.5,
		TrendSlope:        -0.3,
	})

	if conditions.Volume != types.VolumeLow {
		t.Errorf("Expected LOW volume, got %s", conditions.Volume)
	}
	if conditions.Trend != types.TrendDown {
		t.Errorf("Expected DOWN trend, got %s", conditions.Trend)
	}
}
