package search

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"synapse/internal/core/item"
	"synapse/internal/logger"
)

// ParserAI is the LLM-assisted query parser contract.
type ParserAI interface {
	ParseQuery(ctx context.Context, query string, contentTypes, dateKeywords []string) (string, error)
}

// Ranker orders items by semantic relevance to a query.
type Ranker interface {
	Rank(ctx context.Context, query string, items []item.Item) ([]item.Item, error)
}

// ResultStats describes how a result set was produced.
type ResultStats struct {
	TotalItems   int    `json:"totalItems"`
	AfterFilters int    `json:"afterFilters"`
	Returned     int    `json:"returned"`
	Method       string `json:"method"`
}

// Result is the outcome of one search.
type Result struct {
	Results  []item.Item  `json:"results"`
	Parsed   *ParsedQuery `json:"parsed,omitempty"`
	Stats    ResultStats  `json:"stats"`
	Fallback bool         `json:"fallback,omitempty"`
}

// Service runs the parse -> filter -> rank pipeline with graceful
// degradation: semantic ranking, then literal keyword matching, then a
// plain substring scan over the unfiltered set.
type Service struct {
	ai     ParserAI
	ranker Ranker
	now    func() time.Time
	log    *logger.Logger
}

func NewService(ai ParserAI, ranker Ranker) *Service {
	return &Service{ai: ai, ranker: ranker, now: time.Now, log: logger.New("Search")}
}

// Parse interprets the query, with the AI path enabled by useAI.
func (s *Service) Parse(ctx context.Context, query string, useAI bool) ParsedQuery {
	if useAI {
		return s.ParseWithAI(ctx, query)
	}
	return ParseSimple(query, s.now())
}

// aiParsed mirrors the JSON contract of the query-parsing prompt.
type aiParsed struct {
	Semantic string `json:"semantic"`
	Filters  struct {
		Types      []string    `json:"types"`
		Author     string      `json:"author"`
		Entities   []string    `json:"entities"`
		PriceRange *PriceRange `json:"priceRange"`
		DatePhrase string      `json:"datePhrase"`
	} `json:"filters"`
	Keywords    []string `json:"keywords"`
	Explanation string   `json:"explanation"`
}

// ParseWithAI delegates extraction to the LLM and falls back to the
// rule-based parser on any failure.
func (s *Service) ParseWithAI(ctx context.Context, query string) ParsedQuery {
	raw, err := s.ai.ParseQuery(ctx, query, item.ContentTypes, DateKeywords)
	if err != nil {
		s.log.LogWarnf("AI query parsing failed, falling back to simple parser: %v", err)
		return ParseSimple(query, s.now())
	}

	var ap aiParsed
	if err := json.Unmarshal([]byte(raw), &ap); err != nil {
		s.log.LogWarnf("malformed AI parse response, falling back to simple parser: %v", err)
		return ParseSimple(query, s.now())
	}

	parsed := ParsedQuery{
		Semantic:    ap.Semantic,
		Keywords:    ap.Keywords,
		Explanation: ap.Explanation,
		Filters: Filters{
			Types:      []string{},
			Entities:   ap.Filters.Entities,
			Author:     ap.Filters.Author,
			PriceRange: ap.Filters.PriceRange,
		},
	}
	// The type vocabulary is fixed; drop anything the model invented.
	for _, t := range ap.Filters.Types {
		if item.KnownContentType(t) {
			parsed.Filters.Types = append(parsed.Filters.Types, t)
		}
	}
	if parsed.Keywords == nil {
		parsed.Keywords = []string{}
	}
	if parsed.Filters.Entities == nil {
		parsed.Filters.Entities = []string{}
	}
	if phrase := strings.ToLower(ap.Filters.DatePhrase); phrase != "" {
		for _, kw := range DateKeywords {
			if strings.Contains(phrase, kw) {
				r := dateWindow(kw, s.now())
				parsed.Filters.DateRange = &r
				break
			}
		}
	}
	return parsed
}

// Search runs the full pipeline over the given items.
func (s *Service) Search(ctx context.Context, query string, items []item.Item, useAI bool) Result {
	res, ok := s.pipeline(ctx, query, items, useAI)
	if ok {
		return res
	}
	// Last resort: plain substring match over the original, unfiltered set.
	matched := substringMatch(items, query)
	return Result{
		Results:  matched,
		Fallback: true,
		Stats: ResultStats{
			TotalItems: len(items),
			Returned:   len(matched),
			Method:     "substring-fallback",
		},
	}
}

func (s *Service) pipeline(ctx context.Context, query string, items []item.Item, useAI bool) (res Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.LogErrorf("search pipeline panic: %v", r)
			ok = false
		}
	}()

	parsed := s.Parse(ctx, query, useAI)
	filtered := ApplyFilters(items, parsed.Filters)
	stats := ResultStats{TotalItems: len(items), AfterFilters: len(filtered)}

	if parsed.Semantic == "" || len(filtered) == 0 {
		stats.Returned = len(filtered)
		stats.Method = "filters-only"
		return Result{Results: filtered, Parsed: &parsed, Stats: stats}, true
	}

	ranked, err := s.ranker.Rank(ctx, parsed.Semantic, filtered)
	if err == nil {
		stats.Returned = len(ranked)
		stats.Method = "semantic"
		return Result{Results: ranked, Parsed: &parsed, Stats: stats}, true
	}
	s.log.LogWarnf("semantic ranking failed, falling back to keyword match: %v", err)

	phrases := parsed.Keywords
	if len(phrases) == 0 {
		phrases = []string{parsed.Semantic}
	}
	matched := keywordMatch(filtered, phrases)
	stats.Returned = len(matched)
	stats.Method = "keyword"
	return Result{Results: matched, Parsed: &parsed, Stats: stats, Fallback: true}, true
}

// keywordMatch keeps items where any phrase appears in the title, raw
// content, keywords, or tags.
func keywordMatch(items []item.Item, phrases []string) []item.Item {
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return keep(items, func(it item.Item) bool {
		for _, p := range lowered {
			if p == "" {
				continue
			}
			if itemContains(it, p) {
				return true
			}
		}
		return false
	})
}

func substringMatch(items []item.Item, query string) []item.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []item.Item{}
	}
	return keep(items, func(it item.Item) bool {
		return itemContains(it, q)
	})
}

func itemContains(it item.Item, needle string) bool {
	if strings.Contains(strings.ToLower(it.Metadata.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(it.RawContent), needle) {
		return true
	}
	for _, k := range it.Keywords {
		if strings.Contains(strings.ToLower(k), needle) {
			return true
		}
	}
	for _, t := range it.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}
