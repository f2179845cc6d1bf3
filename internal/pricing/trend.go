package pricing

import (
	"math"

	"ArtalePriceBot/internal/model"
)

// largeMove is the exclusive bound separating ordinary from large moves.
const largeMove = 5.0

// ClassifyTrend maps a signed change percent to a trend label.
// Exactly ±5 counts as an ordinary increase/decrease.
func ClassifyTrend(percent float64) model.TrendLabel {
	switch {
	case percent > largeMove:
		return model.TrendLargeIncrease
	case percent > 0:
		return model.TrendIncrease
	case percent < -largeMove:
		return model.TrendLargeDecrease
	case percent < 0:
		return model.TrendDecrease
	default:
		return model.TrendStable
	}
}

// RoundPercent rounds to two decimal places.
func RoundPercent(p float64) float64 {
	return math.Round(p*100) / 100
}
