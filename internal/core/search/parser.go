package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"synapse/internal/core/item"
)

var (
	typePatterns = buildTypePatterns()

	pricePatterns = []struct {
		re   *regexp.Regexp
		kind string
	}{
		{regexp.MustCompile(`(?i)under\s+\$(\d+)`), "max"},
		{regexp.MustCompile(`(?i)less\s+than\s+\$(\d+)`), "max"},
		{regexp.MustCompile(`(?i)below\s+\$(\d+)`), "max"},
		{regexp.MustCompile(`(?i)over\s+\$(\d+)`), "min"},
		{regexp.MustCompile(`(?i)more\s+than\s+\$(\d+)`), "min"},
		{regexp.MustCompile(`(?i)above\s+\$(\d+)`), "min"},
		{regexp.MustCompile(`(?i)\$(\d+)\s*-\s*\$(\d+)`), "range"},
	}

	quotedRe         = regexp.MustCompile(`"([^"]+)"`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	fillerRe         = regexp.MustCompile(`(?i)^(from|by|about|saved|i saved)\s+`)
	trailingFillerRe = regexp.MustCompile(`(?i)\s+(from|by|about|saved|i saved)$`)
	nonNumericRe     = regexp.MustCompile(`[^0-9.]`)
)

func buildTypePatterns() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(item.ContentTypes))
	for _, t := range item.ContentTypes {
		m[t] = regexp.MustCompile(`(?i)\b` + t + `s?\b`)
	}
	return m
}

// ParseSimple extracts filters from a query with pure pattern matching.
// Matched spans are removed from the semantic remainder. now anchors the
// relative date windows.
func ParseSimple(query string, now time.Time) ParsedQuery {
	parsed := ParsedQuery{
		Semantic: query,
		Filters:  Filters{Types: []string{}, Entities: []string{}},
		Keywords: []string{},
	}
	lower := strings.ToLower(query)

	// Content types, singular or trailing "s".
	for _, t := range item.ContentTypes {
		re := typePatterns[t]
		if re.MatchString(query) {
			parsed.Filters.Types = append(parsed.Filters.Types, t)
			parsed.Semantic = strings.TrimSpace(re.ReplaceAllString(parsed.Semantic, ""))
		}
	}

	// Relative date phrase, first match wins.
	for _, kw := range DateKeywords {
		if strings.Contains(lower, kw) {
			r := dateWindow(kw, now)
			parsed.Filters.DateRange = &r
			re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw))
			parsed.Semantic = strings.TrimSpace(re.ReplaceAllString(parsed.Semantic, ""))
			break
		}
	}

	// Price constraints, first matching pattern wins.
	for _, p := range pricePatterns {
		m := p.re.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		switch p.kind {
		case "range":
			min, _ := strconv.ParseFloat(m[1], 64)
			max, _ := strconv.ParseFloat(m[2], 64)
			parsed.Filters.PriceRange = &PriceRange{Min: min, Max: &max}
		case "max":
			max, _ := strconv.ParseFloat(m[1], 64)
			parsed.Filters.PriceRange = &PriceRange{Min: 0, Max: &max}
		case "min":
			min, _ := strconv.ParseFloat(m[1], 64)
			parsed.Filters.PriceRange = &PriceRange{Min: min}
		}
		parsed.Semantic = strings.TrimSpace(p.re.ReplaceAllString(parsed.Semantic, ""))
		break
	}

	// Quoted phrases become literal keywords.
	for _, m := range quotedRe.FindAllStringSubmatch(query, -1) {
		parsed.Keywords = append(parsed.Keywords, m[1])
		parsed.Semantic = strings.TrimSpace(strings.Replace(parsed.Semantic, m[0], "", 1))
	}

	// Clean up the remainder. Removing a filter span can strand filler
	// words at either edge ("about AI from"), so trim until stable.
	semantic := strings.TrimSpace(whitespaceRe.ReplaceAllString(parsed.Semantic, " "))
	for {
		trimmed := fillerRe.ReplaceAllString(semantic, "")
		trimmed = trailingFillerRe.ReplaceAllString(trimmed, "")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == semantic {
			break
		}
		semantic = trimmed
	}
	parsed.Semantic = semantic

	return parsed
}

// ApplyFilters narrows items with the parsed filters. Filters are
// independent AND predicates; an absent filter is a no-op, so an empty
// filter set returns the input unchanged.
func ApplyFilters(items []item.Item, f Filters) []item.Item {
	filtered := items

	if len(f.Types) > 0 {
		types := make(map[string]struct{}, len(f.Types))
		for _, t := range f.Types {
			types[t] = struct{}{}
		}
		filtered = keep(filtered, func(it item.Item) bool {
			_, ok := types[it.Type]
			return ok
		})
	}

	if f.DateRange != nil {
		filtered = keep(filtered, func(it item.Item) bool {
			return !it.CreatedAt.Before(f.DateRange.Start) && !it.CreatedAt.After(f.DateRange.End)
		})
	}

	if f.Author != "" {
		author := strings.ToLower(f.Author)
		filtered = keep(filtered, func(it item.Item) bool {
			return strings.Contains(strings.ToLower(it.Metadata.Author), author)
		})
	}

	if f.PriceRange != nil {
		filtered = keep(filtered, func(it item.Item) bool {
			price, ok := parsePrice(it.Metadata.Price)
			if !ok {
				return false
			}
			if price < f.PriceRange.Min {
				return false
			}
			return f.PriceRange.Max == nil || price <= *f.PriceRange.Max
		})
	}

	return filtered
}

func keep(items []item.Item, pred func(item.Item) bool) []item.Item {
	out := make([]item.Item, 0, len(items))
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// parsePrice extracts a numeric price from strings like "$1,299.00".
func parsePrice(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	cleaned := nonNumericRe.ReplaceAllString(raw, "")
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}
