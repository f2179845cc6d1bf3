package pricing

import (
	"errors"
	"fmt"
	"math"

	"ArtalePriceBot/internal/model"
)

// Placeholders used when the upstream omits a field.
const (
	UnknownName     = "unknown item"
	UnknownCategory = "unknown type"
	UnknownDate     = "unknown"
)

// ErrMalformedRecord is returned by Format for records that cannot be displayed.
var ErrMalformedRecord = errors.New("malformed item record")

// Format converts a raw record into its display form. source tags where the
// data came from; degraded marks static fallback data.
func Format(rec model.ItemRecord, source string, degraded bool) (model.FormattedItem, error) {
	if math.IsNaN(rec.ChangePercent) || math.IsInf(rec.ChangePercent, 0) {
		return model.FormattedItem{}, fmt.Errorf("%w: %q change percent %v", ErrMalformedRecord, rec.Name, rec.ChangePercent)
	}
	if rec.Low < 0 || rec.Median < 0 || rec.High < 0 || rec.Volume < 0 {
		return model.FormattedItem{}, fmt.Errorf("%w: %q has negative price or volume", ErrMalformedRecord, rec.Name)
	}

	return model.FormattedItem{
		Name:         orDefault(rec.Name, UnknownName),
		Category:     orDefault(rec.Category, UnknownCategory),
		Low:          FormatPrice(rec.Low),
		Median:       FormatPrice(rec.Median),
		High:         FormatPrice(rec.High),
		MedianRaw:    rec.Median,
		Volume:       rec.Volume,
		Trend:        ClassifyTrend(rec.ChangePercent),
		TrendPercent: RoundPercent(rec.ChangePercent),
		LastUpdated:  orDefault(rec.SnapshotDate, UnknownDate),
		Source:       source,
		Degraded:     degraded,
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
