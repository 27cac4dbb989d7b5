// Package market provides market condition classification.
// Derives session, volatility and day-of-week buckets from a timestamp and
// already-computed market readings; it never touches raw price ticks.
package market

import (
	"math"
	"time"

	"github.com/quantdesk/template-backend/pkg/types"
	"go.uber.org/zap"
)

// ClassifierConfig configures the condition classifier.
type ClassifierConfig struct {
	// Location is the exchange-local time zone session ranges refer to.
	Location *time.Location
	// Volatility bucket cutoffs over the raw reading.
	LowVolMax  float64 // reading below this is LOW
	HighVolMin float64 // reading above this is HIGH
	// VolumeRatio cutoffs for the categorical volume level.
	LowVolumeMax  float64
	HighVolumeMin float64
	// TrendSlope cutoffs.
	TrendThreshold       float64
	StrongTrendThreshold float64
}

// DefaultClassifierConfig returns sensible defaults.
func DefaultClassifierConfig() *ClassifierConfig {
	return &ClassifierConfig{
		Location:             time.Local,
		LowVolMax:            0.5,
		HighVolMin:           1.5,
		LowVolumeMax:         0.8,
		HighVolumeMin:        1.2,
		TrendThreshold:       0.2,
		StrongTrendThreshold: 0.6,
	}
}

// Classifier maps timestamps and raw readings to MarketConditions.
type Classifier struct {
	logger *zap.Logger
	config *ClassifierConfig
}

// NewClassifier creates a new condition classifier.
func NewClassifier(logger *zap.Logger, config *ClassifierConfig) *Classifier {
	if config == nil {
		config = DefaultClassifierConfig()
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	return &Classifier{logger: logger, config: config}
}

// sessionRange is a half-open [start, end) slice of the trading day in
// minutes since midnight. Boundary minutes belong to the later range.
type sessionRange struct {
	start   int
	end     int
	session types.Session
}

// Session ranges cover the full 24h day; OVERNIGHT wraps midnight and is
// handled as the default below.
var sessionRanges = []sessionRange{
	{6 * 60, 10*60 + 30, types.SessionPreMarket},
	{10*60 + 30, 12*60 + 30, types.SessionLateMorning},
	{12*60 + 30, 14*60 + 30, types.SessionEarlyAfternoon},
	{14*60 + 30, 16 * 60, types.SessionPreClose},
	{16 * 60, 20 * 60, types.SessionAfterHours},
}

// Classify derives MarketConditions from a timestamp and optional raw
// readings. It never fails: missing or malformed inputs degrade to defaults
// and are reported through the returned warnings.
func (c *Classifier) Classify(ts time.Time, raw *types.RawMetrics) (types.MarketConditions, []string) {
	var warnings []string

	conditions := types.MarketConditions{
		Session:         types.SessionUnknown,
		Volatility:      types.VolatilityMedium,
		VolatilityScore: 5,
		Timestamp:       ts,
	}

	if ts.IsZero() {
		warnings = append(warnings, "timestamp missing; session unknown")
		c.applyMetrics(&conditions, raw, &warnings)
		return conditions, warnings
	}

	local := ts.In(c.config.Location)
	weekday := local.Weekday()

	// Trading-day invariant: weekends never match any session-specific
	// template.
	if weekday == time.Saturday || weekday == time.Sunday {
		conditions.Session = types.SessionClosed
		conditions.Volatility = types.VolatilityNone
		conditions.VolatilityScore = 0
		conditions.DayOfWeek = ""
		return conditions, warnings
	}

	conditions.DayOfWeek = weekday.String()
	conditions.Session = sessionFor(local)
	c.applyMetrics(&conditions, raw, &warnings)

	if c.logger != nil {
		c.logger.Debug("Classified market conditions",
			zap.String("session", string(conditions.Session)),
			zap.String("volatility", string(conditions.Volatility)),
			zap.String("dayOfWeek", conditions.DayOfWeek),
		)
	}

	return conditions, warnings
}

// applyMetrics folds raw readings into the classification, substituting
// defaults when absent or malformed.
func (c *Classifier) applyMetrics(conditions *types.MarketConditions, raw *types.RawMetrics, warnings *[]string) {
	if raw == nil {
		*warnings = append(*warnings, "market metrics unavailable; volatility defaulted to MEDIUM")
		return
	}

	reading := raw.VolatilityReading
	switch {
	case math.IsNaN(reading) || math.IsInf(reading, 0) || reading < 0:
		*warnings = append(*warnings, "volatility reading malformed; defaulted to MEDIUM")
	case reading == 0:
		*warnings = append(*warnings, "volatility reading missing; defaulted to MEDIUM")
	default:
		switch {
		case reading < c.config.LowVolMax:
			conditions.Volatility = types.VolatilityLow
		case reading > c.config.HighVolMin:
			conditions.Volatility = types.VolatilityHigh
		default:
			conditions.Volatility = types.VolatilityMedium
		}
		conditions.VolatilityScore = math.Min(reading*5, 10)
	}

	if ratio := raw.VolumeRatio; ratio > 0 && !math.IsNaN(ratio) && !math.IsInf(ratio, 0) {
		switch {
		case ratio < c.config.LowVolumeMax:
			conditions.Volume = types.VolumeLow
		case ratio > c.config.HighVolumeMin:
			conditions.Volume = types.VolumeHigh
		default:
			conditions.Volume = types.VolumeNormal
		}
	}

	if slope := raw.TrendSlope; slope != 0 && !math.IsNaN(slope) && !math.IsInf(slope, 0) {
		switch {
		case slope <= -c.config.StrongTrendThreshold:
			conditions.Trend = types.TrendStrongDown
		case slope <= -c.config.TrendThreshold:
			conditions.Trend = types.TrendDown
		case slope >= c.config.StrongTrendThreshold:
			conditions.Trend = types.TrendStrongUp
		case slope >= c.config.TrendThreshold:
			conditions.Trend = types.TrendUp
		default:
			conditions.Trend = types.TrendNeutral
		}
	}
}

// sessionFor maps a local time to its session bucket.
func sessionFor(local time.Time) types.Session {
	minutes := local.Hour()*60 + local.Minute()
	for _, r := range sessionRanges {
		if minutes >= r.start && minutes < r.end {
			return r.session
		}
	}
	// [20:00, 06:00) wraps midnight.
	return types.SessionOvernight
}
