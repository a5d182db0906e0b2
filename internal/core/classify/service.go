package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"synapse/internal/core/item"
	"synapse/internal/logger"
	"synapse/internal/platform/llm"
	rds "synapse/internal/platform/redis"
	"synapse/prompts"
)

// Generator abstracts the LLM so tests can stub responses.
type Generator interface {
	Generate(ctx context.Context, messages []*schema.Message) (string, error)
}

// Classification is the structured result of analyzing captured content.
type Classification struct {
	ContentType string        `json:"contentType"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary"`
	Metadata    item.Metadata `json:"metadata"`
	Tags        []string      `json:"tags"`
	Keywords    []string      `json:"keywords"`
}

// VoiceResult is the analysis of a voice note transcript.
type VoiceResult struct {
	Keywords   []string `json:"keywords"`
	Tone       string   `json:"tone"`
	Summary    string   `json:"summary"`
	Categories []string `json:"categories"`
}

const (
	cacheTTL = time.Hour
)

// Service turns raw captures into classifications and ranks search results,
// delegating language understanding to the LLM.
type Service struct {
	llm     Generator
	prompts *prompts.SystemPrompts
	cache   *rds.Service // optional
	log     *logger.Logger
}

func NewService(gen Generator, sp *prompts.SystemPrompts, cache *rds.Service) *Service {
	return &Service{llm: gen, prompts: sp, cache: cache, log: logger.New("Classify")}
}

// Classify analyzes content (optionally with a URL and an inline PNG) and
// returns its classification. Failures are returned to the caller so the
// job queue can retry them.
func (s *Service) Classify(ctx context.Context, content, url, imageBase64 string) (*Classification, error) {
	key := cacheKey(content, url, imageBase64)
	if s.cache != nil {
		var cached Classification
		if err := s.cache.CacheGet(ctx, key, &cached); err == nil && cached.ContentType != "" {
			s.log.LogDebugf("classification cache hit")
			return &cached, nil
		}
	}

	urlNote := ""
	if url != "" {
		urlNote = "URL: " + url + "\n"
	}
	imageNote := ""
	if imageBase64 != "" {
		imageNote = "An image is attached. Analyze the visual content, including any text visible in the image.\n"
	}

	messages, err := s.prompts.Classification.Format(ctx, map[string]any{
		"content":    content,
		"url_note":   urlNote,
		"image_note": imageNote,
	})
	if err != nil {
		return nil, fmt.Errorf("formatting classification prompt: %w", err)
	}
	messages = llm.AttachImage(messages, imageBase64)

	raw, err := s.llm.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	var c Classification
	if err := json.Unmarshal([]byte(llm.CleanJSONResponse(raw)), &c); err != nil {
		return nil, fmt.Errorf("malformed classification response: %w", err)
	}
	if !item.KnownContentType(c.ContentType) {
		if imageBase64 != "" {
			c.ContentType = "image"
		} else {
			c.ContentType = "note"
		}
	}

	if s.cache != nil {
		if err := s.cache.CacheSet(ctx, key, c, cacheTTL); err != nil {
			s.log.LogWarnf("caching classification failed: %v", err)
		}
	}
	return &c, nil
}

// Rank asks the LLM to order items by relevance to the query. Unknown IDs
// in the response are dropped.
func (s *Service) Rank(ctx context.Context, query string, items []item.Item) ([]item.Item, error) {
	raw, err := s.generateFromTemplate(ctx, s.prompts.SemanticRank, map[string]any{
		"query": query,
		"items": renderItems(items),
	})
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(llm.CleanJSONResponse(raw)), &ids); err != nil {
		return nil, fmt.Errorf("malformed ranking response: %w", err)
	}

	byID := make(map[string]item.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	var ranked []item.Item
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			ranked = append(ranked, it)
		}
	}
	return ranked, nil
}

// AnalyzeVoice extracts keywords, tone, and a summary from a transcript.
// On any failure it degrades to a plain summary instead of erroring.
func (s *Service) AnalyzeVoice(ctx context.Context, transcript string) *VoiceResult {
	fallback := &VoiceResult{
		Keywords:   []string{},
		Tone:       "casual",
		Summary:    truncate(transcript, 100),
		Categories: []string{},
	}

	raw, err := s.generateFromTemplate(ctx, s.prompts.VoiceAnalysis, map[string]any{
		"transcript": transcript,
	})
	if err != nil {
		s.log.LogWarnf("voice analysis failed: %v", err)
		return fallback
	}
	var res VoiceResult
	if err := json.Unmarshal([]byte(llm.CleanJSONResponse(raw)), &res); err != nil {
		s.log.LogWarnf("malformed voice analysis response: %v", err)
		return fallback
	}
	if res.Summary == "" {
		res.Summary = fallback.Summary
	}
	return &res
}

// ParseQuery sends the query-parsing prompt and returns the raw JSON text.
// The search package owns decoding and fallback.
func (s *Service) ParseQuery(ctx context.Context, query string, contentTypes, dateKeywords []string) (string, error) {
	raw, err := s.generateFromTemplate(ctx, s.prompts.QueryParse, map[string]any{
		"query":         query,
		"content_types": strings.Join(contentTypes, ", "),
		"date_keywords": strings.Join(dateKeywords, ", "),
	})
	if err != nil {
		return "", err
	}
	return llm.CleanJSONResponse(raw), nil
}

func (s *Service) generateFromTemplate(ctx context.Context, tpl prompt.ChatTemplate, vars map[string]any) (string, error) {
	messages, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("formatting prompt: %w", err)
	}
	return s.llm.Generate(ctx, messages)
}

func renderItems(items []item.Item) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		title := it.Metadata.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "ID: %s\nType: %s\nTitle: %s\nKeywords: %s\nTags: %s\n",
			it.ID, it.Type, title, strings.Join(it.Keywords, ", "), strings.Join(it.Tags, ", "))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func cacheKey(content, url, imageBase64 string) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write([]byte(imageBase64))
	return "classify:" + hex.EncodeToString(h.Sum(nil))
}
