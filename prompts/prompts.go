package prompts

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// SystemPrompts contains the prompt templates organized by use case.
type SystemPrompts struct {
	Classification prompt.ChatTemplate
	SemanticRank   prompt.ChatTemplate
	QueryParse     prompt.ChatTemplate
	VoiceAnalysis  prompt.ChatTemplate
}

// NewSystemPrompts creates and initializes all prompt templates.
func NewSystemPrompts() *SystemPrompts {
	sp := &SystemPrompts{}
	sp.Classification = sp.createClassificationTemplate()
	sp.SemanticRank = sp.createSemanticRankTemplate()
	sp.QueryParse = sp.createQueryParseTemplate()
	sp.VoiceAnalysis = sp.createVoiceAnalysisTemplate()
	return sp
}

// createClassificationTemplate builds the content classification prompt.
// Variables: content, url_note, image_note.
func (sp *SystemPrompts) createClassificationTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`# Your Role
You are a content classifier for a personal knowledge base.

# Your Task
Analyze the captured content and classify it into exactly one content type.

# Critical Requirements
1. **Output Format**: Return ONLY valid JSON - no markdown, no backticks, no explanations
2. **Content Type**: Must be one of: article, product, video, todo, quote, image, screenshot, diagram, meme, book, link, note, design, code
3. **Handle Missing Data**: Omit metadata fields you cannot determine, NEVER guess

# Output Schema
{{
  "contentType": "article|product|video|todo|quote|image|screenshot|diagram|meme|book|link|note|design|code",
  "title": "extracted or generated title",
  "summary": "one sentence summary",
  "metadata": {{
    "author": "if available",
    "price": "if product",
    "date": "if available",
    "source": "website/platform name",
    "imageUrl": "if available",
    "description": "brief description",
    "imageAnalysis": "detailed description of image content (if image provided)",
    "extractedText": "any text found in image (if applicable)",
    "colors": ["dominant", "colors"],
    "visualType": "screenshot|diagram|photo|design|chart|meme|other"
  }},
  "tags": ["relevant", "tags"],
  "keywords": ["searchable", "keywords", "phrases"]
}}

**ALWAYS**: Return ONLY the JSON object.`),

		schema.UserMessage(`Content: {content}
{url_note}{image_note}
Classify this content and return the JSON object.`),
	)
}

// createSemanticRankTemplate builds the search ranking prompt.
// Variables: query, items (pre-rendered item summaries).
func (sp *SystemPrompts) createSemanticRankTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`# Your Role
You are a semantic search ranker for a personal knowledge base.

# Your Task
Given a search query and a set of saved items, return the IDs of the items
that match, ordered by relevance.

# Critical Requirements
1. Match on semantic meaning, keywords, tags, and metadata - not just literal text
2. **Output Format**: Return ONLY a JSON array of item ID strings: ["id1", "id2"]
3. Return [] if nothing matches
4. Never invent IDs that are not in the item list`),

		schema.UserMessage(`Search query: "{query}"

Saved items:
{items}

Return ONLY the JSON array of matching item IDs, ordered by relevance.`),
	)
}

// createQueryParseTemplate builds the natural-language query parsing prompt.
// Variables: query, content_types, date_keywords.
func (sp *SystemPrompts) createQueryParseTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`# Your Role
You are a query parser for a personal knowledge base. You turn free-text
search queries into structured filters plus a semantic remainder.

# What To Extract
1. Content types (only from: {content_types})
2. Date phrase (only from: {date_keywords}, or null)
3. Author and entities mentioned
4. Price range, if mentioned
5. The core semantic meaning with all filter words removed
6. Exact phrases that should literally match

# Output Schema
{{
  "semantic": "core meaning of the query without filters",
  "filters": {{
    "types": ["content types"],
    "author": "author name or null",
    "entities": ["names, products, topics"],
    "priceRange": {{"min": 0, "max": 300}},
    "datePhrase": "original date phrase or null"
  }},
  "keywords": ["exact phrases to match"],
  "explanation": "brief explanation of how you parsed the query"
}}

# Examples
Query: "articles about AI agents I saved last month"
{{"semantic": "AI agents", "filters": {{"types": ["article"], "author": null, "entities": ["AI agents"], "priceRange": null, "datePhrase": "last month"}}, "keywords": [], "explanation": "Articles about AI agents from last month"}}

Query: "what Karpathy said about tokenization in that paper"
{{"semantic": "tokenization", "filters": {{"types": ["article", "note"], "author": "Karpathy", "entities": ["Karpathy", "tokenization"], "priceRange": null, "datePhrase": null}}, "keywords": ["tokenization"], "explanation": "Content by Karpathy about tokenization"}}

Query: "black shoes under $300"
{{"semantic": "black shoes", "filters": {{"types": ["product"], "author": null, "entities": ["black shoes"], "priceRange": {{"min": 0, "max": 300}}, "datePhrase": null}}, "keywords": ["black", "shoes"], "explanation": "Products matching black shoes under $300"}}

**ALWAYS**: Return ONLY the JSON object, no other text.`),

		schema.UserMessage(`Query: "{query}"

Parse the query and return the JSON object.`),
	)
}

// createVoiceAnalysisTemplate builds the voice transcript analysis prompt.
// Variables: transcript.
func (sp *SystemPrompts) createVoiceAnalysisTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`# Your Role
You analyze voice note transcripts for a personal knowledge base.

# Output Schema
{{
  "keywords": ["key", "concepts"],
  "tone": "excited|important|casual|urgent|thoughtful",
  "summary": "one sentence",
  "categories": ["topics"]
}}

**ALWAYS**: Return ONLY valid JSON.`),

		schema.UserMessage(`Transcript:

"{transcript}"

Analyze it and return the JSON object.`),
	)
}
