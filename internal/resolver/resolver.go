package resolver

import (
	"strings"

	"ArtalePriceBot/internal/model"
)

// Default scoring parameters.
const (
	DefaultMinScore       = 60
	DefaultSubstringBonus = 20
)

// Match is the outcome of a successful resolution.
type Match struct {
	Record model.ItemRecord
	Tier   model.MatchTier
	Score  int // combined similarity and bonus; 0 for non-fuzzy tiers
}

// Resolver maps free-text queries onto catalog entries.
type Resolver struct {
	MinScore       int
	SubstringBonus int
}

// New creates a Resolver. Non-positive arguments fall back to the defaults.
func New(minScore, substringBonus int) *Resolver {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	if substringBonus < 0 {
		substringBonus = DefaultSubstringBonus
	}
	return &Resolver{MinScore: minScore, SubstringBonus: substringBonus}
}

// Resolve returns at most one record for query, trying the exact, fuzzy and
// token tiers in turn and stopping at the first that matches.
func (r *Resolver) Resolve(query string, items []model.ItemRecord) (Match, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || len(items) == 0 {
		return Match{}, false
	}

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = strings.ToLower(it.Name)
	}

	// Tier 1: exact, first in catalog order.
	for i, name := range names {
		if name == q {
			return Match{Record: items[i], Tier: model.MatchExact}, true
		}
	}

	// Tier 2: best partial ratio plus substring bonus. Strict > keeps the
	// earliest record on ties.
	bestIdx, bestScore := -1, 0
	for i, name := range names {
		score := PartialRatio(q, name)
		if strings.Contains(name, q) {
			score += r.SubstringBonus
		}
		if score > bestScore && score >= r.MinScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx >= 0 {
		return Match{Record: items[bestIdx], Tier: model.MatchFuzzy, Score: bestScore}, true
	}

	// Tier 3: first record containing any query token.
	tokens := strings.Fields(q)
	for i, name := range names {
		for _, tok := range tokens {
			if strings.Contains(name, tok) {
				return Match{Record: items[i], Tier: model.MatchToken}, true
			}
		}
	}
	return Match{}, false
}
