package recorder

// FetchEvent records one strategy run during a catalog refresh.
type FetchEvent struct {
	Strategy   string
	Outcome    string // "OK", "FAILED" or "UNAVAILABLE"
	Items      int
	DurationMs int64
	Error      string
}

// LookupEvent records one item search.
type LookupEvent struct {
	Query   string
	Matched string
	Tier    string // "exact", "fuzzy", "token" or empty
	Score   int
	Found   bool
}

// Recorder persists acquisition and lookup history for later analysis.
// It never feeds data back into the catalog.
type Recorder interface {
	RecordFetch(evt *FetchEvent) error
	RecordLookup(evt *LookupEvent) error
	Close() error
}
