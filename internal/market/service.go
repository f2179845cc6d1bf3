// Package market answers price questions against the item catalog.
package market

import (
	"context"
	"log"
	"math"
	"sort"

	"ArtalePriceBot/internal/catalog"
	"ArtalePriceBot/internal/model"
	"ArtalePriceBot/internal/pricing"
	"ArtalePriceBot/internal/recorder"
	"ArtalePriceBot/internal/resolver"
)

// Default result sizes for list queries.
const (
	DefaultPopularLimit  = 10
	DefaultTrendingLimit = 10
	DefaultCategoryLimit = 20

	// TrendingThreshold is the minimum absolute change percent for a trending item.
	TrendingThreshold = 2.0
)

// Catalogs supplies catalogs. Catalog may refresh; Current never does.
type Catalogs interface {
	Catalog(ctx context.Context) *catalog.Catalog
	Current() *catalog.Catalog
}

// Service exposes the query operations used by the chat front end.
type Service struct {
	src      Catalogs
	resolver *resolver.Resolver
	rec      recorder.Recorder
}

// NewService wires a catalog source to a resolver. A nil resolver uses the
// default scoring and a nil recorder records nothing.
func NewService(src Catalogs, r *resolver.Resolver, rec recorder.Recorder) *Service {
	if r == nil {
		r = resolver.New(0, -1)
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Service{src: src, resolver: r, rec: rec}
}

// Search resolves query against the catalog. The bool is false when nothing
// matched or the matched record cannot be displayed.
func (s *Service) Search(ctx context.Context, query string) (model.FormattedItem, bool) {
	cat := s.src.Catalog(ctx)
	m, ok := s.resolver.Resolve(query, cat.Items())

	var item model.FormattedItem
	if ok {
		var err error
		item, err = pricing.Format(m.Record, cat.Source(), cat.Degraded())
		if err != nil {
			log.Printf("[WARN] search %q: %v", query, err)
			ok = false
		}
	}

	evt := &recorder.LookupEvent{Query: query, Found: ok}
	if ok {
		evt.Matched = m.Record.Name
		evt.Tier = string(m.Tier)
		evt.Score = m.Score
	}
	if err := s.rec.RecordLookup(evt); err != nil {
		log.Printf("[WARN] record lookup: %v", err)
	}
	return item, ok
}

// Popular returns the highest-volume items.
func (s *Service) Popular(ctx context.Context, limit int) []model.FormattedItem {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	cat := s.src.Catalog(ctx)
	items := cat.Items()
	byVolumeDesc(items)
	return formatUpTo(items, limit, cat)
}

// Trending returns items whose absolute change is at least TrendingThreshold,
// largest movers first.
func (s *Service) Trending(ctx context.Context, limit int) []model.FormattedItem {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	cat := s.src.Catalog(ctx)

	var movers []model.ItemRecord
	for _, it := range cat.Items() {
		if math.Abs(it.ChangePercent) >= TrendingThreshold {
			movers = append(movers, it)
		}
	}
	sort.SliceStable(movers, func(i, j int) bool {
		return math.Abs(movers[i].ChangePercent) > math.Abs(movers[j].ChangePercent)
	})
	return formatUpTo(movers, limit, cat)
}

// ByCategory returns items of exactly the given category, highest volume first.
func (s *Service) ByCategory(ctx context.Context, category string, limit int) []model.FormattedItem {
	if limit <= 0 {
		limit = DefaultCategoryLimit
	}
	cat := s.src.Catalog(ctx)

	var matched []model.ItemRecord
	for _, it := range cat.Items() {
		if it.Category == category {
			matched = append(matched, it)
		}
	}
	byVolumeDesc(matched)
	return formatUpTo(matched, limit, cat)
}

// Categories lists the distinct non-empty categories of the current catalog
// in sorted order. It never triggers a fetch.
func (s *Service) Categories() []string {
	seen := make(map[string]struct{})
	for _, it := range s.src.Current().Items() {
		if it.Category != "" {
			seen[it.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func byVolumeDesc(items []model.ItemRecord) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Volume > items[j].Volume })
}

// formatUpTo formats records in order until limit items were produced,
// skipping records that cannot be displayed.
func formatUpTo(items []model.ItemRecord, limit int, cat *catalog.Catalog) []model.FormattedItem {
	out := make([]model.FormattedItem, 0, min(limit, len(items)))
	for _, rec := range items {
		if len(out) == limit {
			break
		}
		f, err := pricing.Format(rec, cat.Source(), cat.Degraded())
		if err != nil {
			log.Printf("[WARN] skipping %v", err)
			continue
		}
		out = append(out, f)
	}
	return out
}
