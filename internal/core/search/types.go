package search

import "time"

// DateRange is an inclusive instant window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PriceRange bounds a price filter. A nil Max means unbounded.
type PriceRange struct {
	Min float64  `json:"min"`
	Max *float64 `json:"max,omitempty"`
}

// Filters is the structured part of a parsed query. Each field is an
// independent predicate; absent fields are no-ops.
type Filters struct {
	Types      []string    `json:"types"`
	DateRange  *DateRange  `json:"dateRange,omitempty"`
	Author     string      `json:"author,omitempty"`
	Entities   []string    `json:"entities"`
	PriceRange *PriceRange `json:"priceRange,omitempty"`
}

// ParsedQuery is the result of interpreting a search string: structured
// filters plus the semantic remainder fed to the ranking service.
type ParsedQuery struct {
	Semantic    string   `json:"semantic"`
	Filters     Filters  `json:"filters"`
	Keywords    []string `json:"keywords"`
	Explanation string   `json:"explanation,omitempty"`
}

// DateKeywords lists the relative-date phrases the parser recognizes, in
// match-priority order (first match wins).
var DateKeywords = []string{
	"today", "yesterday", "this week", "last week",
	"this month", "last month", "last 7 days", "last 30 days",
}

// dateWindow computes the inclusive window for a date keyword relative to
// now. Windows are deterministic for a fixed now.
func dateWindow(keyword string, now time.Time) DateRange {
	switch keyword {
	case "today":
		return DateRange{Start: midnight(now), End: now}
	case "yesterday":
		y := now.AddDate(0, 0, -1)
		return DateRange{Start: midnight(y), End: endOfDay(y)}
	case "this week":
		start := midnight(now.AddDate(0, 0, -int(now.Weekday())))
		return DateRange{Start: start, End: now}
	case "last week":
		start := midnight(now.AddDate(0, 0, -int(now.Weekday())-7))
		return DateRange{Start: start, End: endOfDay(start.AddDate(0, 0, 6))}
	case "this month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return DateRange{Start: start, End: now}
	case "last month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
		return DateRange{Start: start, End: endOfDay(start.AddDate(0, 1, -1))}
	case "last 7 days":
		return DateRange{Start: midnight(now.AddDate(0, 0, -7)), End: now}
	case "last 30 days":
		return DateRange{Start: midnight(now.AddDate(0, 0, -30)), End: now}
	}
	return DateRange{}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}
