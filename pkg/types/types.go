// Package types provides shared type definitions for the template backend.
package types

import (
	"math"
	"time"
)

// TemplateType identifies a strategy-template family.
type TemplateType string

const (
	TemplateTypeATM   TemplateType = "ATM"
	TemplateTypeFlazh TemplateType = "FLAZH"
)

// Valid reports whether t is a known template type.
func (t TemplateType) Valid() bool {
	return t == TemplateTypeATM || t == TemplateTypeFlazh
}

// Session is a named slice of the trading day used as a matching dimension.
type Session string

const (
	SessionPreMarket      Session = "PRE_MARKET"
	SessionLateMorning    Session = "LATE_MORNING"
	SessionEarlyAfternoon Session = "EARLY_AFTERNOON"
	SessionPreClose       Session = "PRE_CLOSE"
	SessionOvernight      Session = "OVERNIGHT"
	SessionAfterHours     Session = "AFTER_HOURS"
	SessionClosed         Session = "CLOSED"
	SessionUnknown        Session = "UNKNOWN"
)

// Volatility is the coarse volatility bucket derived from a continuous
// volatility reading. The empty value acts as a wildcard during matching.
type Volatility string

const (
	VolatilityNone   Volatility = "NONE"
	VolatilityLow    Volatility = "LOW"
	VolatilityMedium Volatility = "MEDIUM"
	VolatilityHigh   Volatility = "HIGH"
)

// Rank returns the ordering position of a volatility bucket (LOW < MEDIUM <
// HIGH). Buckets outside the ordering return -1.
func (v Volatility) Rank() int {
	switch v {
	case VolatilityLow:
		return 0
	case VolatilityMedium:
		return 1
	case VolatilityHigh:
		return 2
	default:
		return -1
	}
}

// Trend is the coarse directional bias of the market.
type Trend string

const (
	TrendStrongDown Trend = "STRONG_DOWN"
	TrendDown       Trend = "DOWN"
	TrendNeutral    Trend = "NEUTRAL"
	TrendUp         Trend = "UP"
	TrendStrongUp   Trend = "STRONG_UP"
)

// Strong reports whether the trend is a strong directional move in either
// direction.
func (t Trend) Strong() bool {
	return t == TrendStrongUp || t == TrendStrongDown
}

// VolumeLevel is a categorical volume reading.
type VolumeLevel string

const (
	VolumeLow    VolumeLevel = "LOW"
	VolumeNormal VolumeLevel = "NORMAL"
	VolumeHigh   VolumeLevel = "HIGH"
)

// MarketConditions is an immutable classification of the market at a point
// in time. Session and Volatility are always populated; every other field
// is optional and an empty value is treated as a wildcard during matching.
type MarketConditions struct {
	Session         Session     `json:"session"`
	Volatility      Volatility  `json:"volatility"`
	DayOfWeek       string      `json:"dayOfWeek,omitempty"` // "Monday".."Friday", empty on weekends
	Trend           Trend       `json:"trend,omitempty"`
	Volume          VolumeLevel `json:"volume,omitempty"`
	VolatilityScore float64     `json:"volatilityScore"` // 0-10 scale
	Timestamp       time.Time   `json:"timestamp"`
}

// RawMetrics carries the already-computed market readings the classifier
// consumes. Zero-valued fields are treated as absent.
type RawMetrics struct {
	VolatilityReading float64 `json:"volatilityReading"` // e.g. ATR ratio
	VolumeRatio       float64 `json:"volumeRatio"`       // current / average volume
	TrendSlope        float64 `json:"trendSlope"`        // normalized -1..1
}

// Bracket is a single ATM order bracket.
type Bracket struct {
	Quantity     int `json:"quantity"`
	StopLoss     int `json:"stopLoss"`     // ticks
	Target       int `json:"target"`       // ticks
	TrailingStop int `json:"trailingStop"` // ticks, 0 = disabled
}

// CalculationMode selects how ATM bracket distances are expressed.
type CalculationMode string

const (
	CalculationModeTicks   CalculationMode = "Ticks"
	CalculationModePercent CalculationMode = "Percent"
)

// BracketWidth categorizes the overall width of an ATM bracket structure.
type BracketWidth string

const (
	BracketWidthNarrow   BracketWidth = "Narrow"
	BracketWidthStandard BracketWidth = "Standard"
	BracketWidthWide     BracketWidth = "Wide"
)

// ATMParameters is the parameter schema of an ATM strategy template.
type ATMParameters struct {
	StopLoss        int             `json:"stopLoss"`     // ticks
	Target          int             `json:"target"`       // ticks
	TrailingStop    int             `json:"trailingStop"` // ticks, 0 = disabled
	BreakevenTicks  int             `json:"breakevenTicks,omitempty"`
	Brackets        []Bracket       `json:"brackets,omitempty"`
	CalculationMode CalculationMode `json:"calculationMode"`
	BracketWidth    BracketWidth    `json:"bracketWidth,omitempty"`
}

// FlazhParameters is the parameter schema of a Flazh template: moving
// average based entry filtering plus the usual bracket distances.
type FlazhParameters struct {
	FastPeriod       int     `json:"fastPeriod"`
	MediumPeriod     int     `json:"mediumPeriod"`
	SlowPeriod       int     `json:"slowPeriod"`
	FastRange        int     `json:"fastRange"`
	MediumRange      int     `json:"mediumRange"`
	SlowRange        int     `json:"slowRange"`
	FilterMultiplier float64 `json:"filterMultiplier"`
	StopLoss         int     `json:"stopLoss"`     // ticks
	Target           int     `json:"target"`       // ticks
	TrailingStop     int     `json:"trailingStop"` // ticks, 0 = disabled
}

// Template is a stored strategy parameter set tagged with the market
// conditions it was authored for. Conditions fields may be wildcards.
type Template struct {
	ID         string           `json:"id"`
	Type       TemplateType     `json:"type"`
	Name       string           `json:"name"`
	Conditions MarketConditions `json:"conditions"`
	ATM        *ATMParameters   `json:"atm,omitempty"`
	Flazh      *FlazhParameters `json:"flazh,omitempty"`
	Source     string           `json:"source,omitempty"` // import path or "generated"
	IsFallback bool             `json:"isFallback,omitempty"`
	MatchScore float64          `json:"matchScore,omitempty"` // transient, per request
	CreatedAt  time.Time        `json:"createdAt,omitempty"`
	UpdatedAt  time.Time        `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	cp := *t
	if t.ATM != nil {
		atm := *t.ATM
		if t.ATM.Brackets != nil {
			atm.Brackets = make([]Bracket, len(t.ATM.Brackets))
			copy(atm.Brackets, t.ATM.Brackets)
		}
		cp.ATM = &atm
	}
	if t.Flazh != nil {
		flazh := *t.Flazh
		cp.Flazh = &flazh
	}
	return &cp
}

// AdjustmentFactors are multiplicative scalars derived from historical
// backtest performance. Sane values sit in [0.5, 2.0]; consumers must guard
// against degenerate values.
type AdjustmentFactors struct {
	StopLossAdjustment     float64 `json:"stopLossAdjustment"`
	TargetAdjustment       float64 `json:"targetAdjustment"`
	TrailingStopAdjustment float64 `json:"trailingStopAdjustment"`
}

// SaneFactor reports whether f is a usable multiplicative factor.
func SaneFactor(f float64) bool {
	return f > 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// PerformanceMetrics is the aggregated backtest performance of a
// (timeOfDay, session, volatility) bucket.
type PerformanceMetrics struct {
	TimeOfDay       string             `json:"timeOfDay"`
	Session         Session            `json:"session"`
	VolatilityScore float64            `json:"volatilityScore"`
	WinRate         float64            `json:"winRate"` // percent, 0-100
	ProfitFactor    float64            `json:"profitFactor"`
	SampleSize      int                `json:"sampleSize"`
	Factors         *AdjustmentFactors `json:"adjustmentFactors,omitempty"`
}

// BacktestRecord is a single stored backtest outcome feeding the
// performance aggregation.
type BacktestRecord struct {
	ID              string       `json:"id"`
	TemplateType    TemplateType `json:"templateType"`
	TemplateName    string       `json:"templateName"`
	Session         Session      `json:"session"`
	TimeOfDay       string       `json:"timeOfDay"` // "HH:MM" bucket start
	VolatilityScore float64      `json:"volatilityScore"`
	Trades          int          `json:"trades"`
	Wins            int          `json:"wins"`
	GrossProfit     float64      `json:"grossProfit"`
	GrossLoss       float64      `json:"grossLoss"` // positive magnitude
	RunAt           time.Time    `json:"runAt"`
}

// Recommendation is the engine's output: the stored template that won
// resolution plus the performance-adjusted derivation of it.
type Recommendation struct {
	OriginalTemplate *Template           `json:"originalTemplate"`
	AdjustedTemplate *Template           `json:"adjustedTemplate"`
	Performance      *PerformanceMetrics `json:"performanceMetrics,omitempty"`
	Conditions       MarketConditions    `json:"marketConditions"`
	IsFallback       bool                `json:"isFallback"`
	MatchScore       float64             `json:"matchScore"`
	Tier             string              `json:"tier"`
	Warnings         []string            `json:"warnings,omitempty"`
	GeneratedAt      time.Time           `json:"generatedAt"`
}

// RecommendationPair composes both template families for callers that want
// a complete platform setup in one response.
type RecommendationPair struct {
	Flazh            *Recommendation  `json:"flazh"`
	ATM              *Recommendation  `json:"atm"`
	MarketConditions MarketConditions `json:"marketConditions"`
}

// JournalTrade is a manually or automatically journaled trade consumed by
// the analytics package.
type JournalTrade struct {
	ID           string       `json:"id"`
	TemplateType TemplateType `json:"templateType,omitempty"`
	TemplateName string       `json:"templateName,omitempty"`
	Symbol       string       `json:"symbol"`
	Direction    string       `json:"direction"` // "LONG" or "SHORT"
	PnL          float64      `json:"pnl"`
	EntryAt      time.Time    `json:"entryAt"`
	ExitAt       time.Time    `json:"exitAt"`
}
