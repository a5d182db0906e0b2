package item

import "time"

// ContentTypes is the fixed vocabulary a classified item may belong to.
// Query parsing and classification both validate against this list.
var ContentTypes = []string{
	"article", "product", "video", "todo", "quote", "image",
	"screenshot", "diagram", "meme", "book", "link", "note",
	"design", "code",
}

// KnownContentType reports whether t is part of the fixed vocabulary.
func KnownContentType(t string) bool {
	for _, ct := range ContentTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// Metadata is the classification-derived metadata bag attached to an item.
type Metadata struct {
	Title         string   `json:"title,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Author        string   `json:"author,omitempty"`
	Price         string   `json:"price,omitempty"`
	Date          string   `json:"date,omitempty"`
	Source        string   `json:"source,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	Description   string   `json:"description,omitempty"`
	ImageAnalysis string   `json:"imageAnalysis,omitempty"`
	ExtractedText string   `json:"extractedText,omitempty"`
	Colors        []string `json:"colors,omitempty"`
	VisualType    string   `json:"visualType,omitempty"`
}

// VoiceAnalysis holds transcription results for voice-note items.
type VoiceAnalysis struct {
	Transcript string   `json:"transcript"`
	Keywords   []string `json:"keywords,omitempty"`
	Tone       string   `json:"tone,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Categories []string `json:"categories,omitempty"`
	AudioURL   string   `json:"audioUrl,omitempty"`
}

// Item is a captured piece of content after (or awaiting) classification.
type Item struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	RawContent string         `json:"rawContent"`
	URL        string         `json:"url,omitempty"`
	Metadata   Metadata       `json:"metadata"`
	Keywords   []string       `json:"keywords"`
	Tags       []string       `json:"tags"`
	Image      string         `json:"image,omitempty"`
	Voice      *VoiceAnalysis `json:"voice,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Stats summarises the stored collection.
type Stats struct {
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	LatestDate *time.Time     `json:"latest_date,omitempty"`
	OldestDate *time.Time     `json:"oldest_date,omitempty"`
}
