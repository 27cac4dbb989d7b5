package engine

import (
	"math"

	"github.com/quantdesk/template-backend/pkg/types"
)

// Field weights for the similarity score. Session and volatility dominate;
// day-of-week and volume are tiebreakers.
const (
	weightSession    = 40.0
	weightVolatility = 40.0
	weightDayOfWeek  = 10.0
	weightVolume     = 10.0
	totalWeight      = weightSession + weightVolatility + weightDayOfWeek + weightVolume
)

// sessionGroups clusters sessions whose behavior is close enough that a
// neighboring match earns partial credit.
var sessionGroups = map[types.Session]int{
	types.SessionPreMarket:      0,
	types.SessionLateMorning:    0,
	types.SessionEarlyAfternoon: 1,
	types.SessionPreClose:       1,
	types.SessionAfterHours:     2,
	types.SessionOvernight:      2,
}

// Scorer computes a 0-100 similarity score between current market
// conditions and the conditions a template was authored for. It is a pure
// function of its inputs; wildcard fields on either side are excluded from
// both the earned score and the achievable total, so sparse metadata is not
// penalized.
type Scorer struct {
	// sparseBaseline is returned when less than half the total weight is
	// comparable, so near-empty templates cannot score deceptively high.
	sparseBaseline float64
}

// NewScorer creates a scorer with the given sparse-data baseline.
func NewScorer(sparseBaseline float64) *Scorer {
	return &Scorer{sparseBaseline: sparseBaseline}
}

// Score returns the weighted agreement between current and authored
// conditions, in [0, 100].
func (s *Scorer) Score(current, authored types.MarketConditions) float64 {
	var earned, evaluable float64

	if sessionComparable(current.Session) && sessionComparable(authored.Session) {
		evaluable += weightSession
		earned += weightSession * sessionCredit(current.Session, authored.Session)
	}

	if current.Volatility.Rank() >= 0 && authored.Volatility.Rank() >= 0 {
		evaluable += weightVolatility
		earned += weightVolatility * volatilityCredit(current.Volatility, authored.Volatility)
	}

	if current.DayOfWeek != "" && authored.DayOfWeek != "" {
		evaluable += weightDayOfWeek
		if current.DayOfWeek == authored.DayOfWeek {
			earned += weightDayOfWeek
		}
	}

	if current.Volume != "" && authored.Volume != "" {
		evaluable += weightVolume
		if current.Volume == authored.Volume {
			earned += weightVolume
		}
	}

	if evaluable < totalWeight/2 {
		return s.sparseBaseline
	}

	score := earned / evaluable * 100
	return math.Max(0, math.Min(100, score))
}

// sessionComparable reports whether a session value carries matching
// information. CLOSED and UNKNOWN never match templates and the empty
// value is a wildcard.
func sessionComparable(s types.Session) bool {
	switch s {
	case "", types.SessionClosed, types.SessionUnknown:
		return false
	default:
		return true
	}
}

// sessionCredit grades session agreement: exact match earns full credit, a
// session in the same behavioral group earns half.
func sessionCredit(a, b types.Session) float64 {
	if a == b {
		return 1
	}
	ga, okA := sessionGroups[a]
	gb, okB := sessionGroups[b]
	if okA && okB && ga == gb {
		return 0.5
	}
	return 0
}

// volatilityCredit grades volatility agreement over the LOW<MEDIUM<HIGH
// ordering: exact match full credit, one-step neighbor half.
func volatilityCredit(a, b types.Volatility) float64 {
	switch d := a.Rank() - b.Rank(); {
	case d == 0:
		return 1
	case d == 1 || d == -1:
		return 0.5
	default:
		return 0
	}
}
