package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/internal/core/item"
	"synapse/prompts"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (g *stubGenerator) Generate(_ context.Context, _ []*schema.Message) (string, error) {
	g.calls++
	return g.response, g.err
}

func newTestService(gen Generator) *Service {
	return NewService(gen, prompts.NewSystemPrompts(), nil)
}

func TestClassifyParsesResponse(t *testing.T) {
	gen := &stubGenerator{response: "```json\n" + `{
		"contentType": "todo",
		"title": "Buy milk",
		"summary": "A reminder to buy milk",
		"metadata": {"source": "manual"},
		"tags": ["errand"],
		"keywords": ["milk"]
	}` + "\n```"}

	c, err := newTestService(gen).Classify(context.Background(), "Buy milk", "", "")
	require.NoError(t, err)
	assert.Equal(t, "todo", c.ContentType)
	assert.Equal(t, "Buy milk", c.Title)
	assert.Equal(t, "manual", c.Metadata.Source)
	assert.Equal(t, []string{"milk"}, c.Keywords)
}

func TestClassifyUnknownTypeFallsBack(t *testing.T) {
	gen := &stubGenerator{response: `{"contentType": "recipe", "title": "x"}`}
	c, err := newTestService(gen).Classify(context.Background(), "some text", "", "")
	require.NoError(t, err)
	assert.Equal(t, "note", c.ContentType)

	gen = &stubGenerator{response: `{"contentType": "recipe", "title": "x"}`}
	c, err = newTestService(gen).Classify(context.Background(), "", "", "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image", c.ContentType)
}

func TestClassifyPropagatesErrors(t *testing.T) {
	_, err := newTestService(&stubGenerator{err: errors.New("timeout")}).
		Classify(context.Background(), "text", "", "")
	assert.Error(t, err)

	_, err = newTestService(&stubGenerator{response: "not json at all"}).
		Classify(context.Background(), "text", "", "")
	assert.ErrorContains(t, err, "malformed classification response")
}

func TestRankPreservesModelOrderAndDropsUnknownIDs(t *testing.T) {
	items := []item.Item{
		{ID: "a", Type: "article"},
		{ID: "b", Type: "note"},
		{ID: "c", Type: "product"},
	}
	gen := &stubGenerator{response: `["c", "a", "ghost"]`}

	ranked, err := newTestService(gen).Rank(context.Background(), "query", items)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "c", ranked[0].ID)
	assert.Equal(t, "a", ranked[1].ID)
}

func TestAnalyzeVoiceFallsBackOnFailure(t *testing.T) {
	res := newTestService(&stubGenerator{err: errors.New("down")}).
		AnalyzeVoice(context.Background(), "remember to call the dentist tomorrow")
	assert.Equal(t, "casual", res.Tone)
	assert.Equal(t, "remember to call the dentist tomorrow", res.Summary)

	res = newTestService(&stubGenerator{response: `{"keywords":["dentist"],"tone":"important","summary":"Call the dentist","categories":["health"]}`}).
		AnalyzeVoice(context.Background(), "remember to call the dentist tomorrow")
	assert.Equal(t, "important", res.Tone)
	assert.Equal(t, []string{"dentist"}, res.Keywords)
}
