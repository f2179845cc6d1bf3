package model

// ItemRecord is one catalog entry as published by the upstream snapshot API.
type ItemRecord struct {
	Name          string
	Category      string
	Low           int64
	Median        int64
	High          int64
	Volume        int64
	ChangePercent float64
	SnapshotDate  string // opaque, upstream supplied
}

// FormattedItem is the display-ready view of a single ItemRecord.
type FormattedItem struct {
	Name         string
	Category     string
	Low          string
	Median       string
	High         string
	MedianRaw    int64
	Volume       int64
	Trend        TrendLabel
	TrendPercent float64
	LastUpdated  string
	Source       string
	Degraded     bool // true when built from static fallback data
}

// TrendLabel classifies a recent price change.
type TrendLabel string

const (
	TrendLargeIncrease TrendLabel = "large increase"
	TrendIncrease      TrendLabel = "increase"
	TrendStable        TrendLabel = "stable"
	TrendDecrease      TrendLabel = "decrease"
	TrendLargeDecrease TrendLabel = "large decrease"
)

// MatchTier identifies which resolver tier produced a search result.
type MatchTier string

const (
	MatchExact MatchTier = "exact"
	MatchFuzzy MatchTier = "fuzzy"
	MatchToken MatchTier = "token"
	MatchNone  MatchTier = ""
)

// FetchOutcome is the result class of a single strategy attempt.
type FetchOutcome string

const (
	OutcomeOK          FetchOutcome = "OK"
	OutcomeFailed      FetchOutcome = "FAILED"
	OutcomeUnavailable FetchOutcome = "UNAVAILABLE"
)
