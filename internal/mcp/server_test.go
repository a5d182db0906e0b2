package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/internal/core/item"
	"synapse/internal/core/queue"
	"synapse/internal/core/save"
	"synapse/internal/core/search"
)

type stubSaver struct {
	out *save.Outcome
	err error
}

func (s *stubSaver) Save(_ context.Context, content, url, _ string, _ bool) (*save.Outcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

type stubSearcher struct {
	result search.Result
}

func (s *stubSearcher) Search(context.Context, string, []item.Item, bool) search.Result {
	return s.result
}

type stubLister struct {
	items []item.Item
	err   error
}

func (l *stubLister) List(context.Context, string) ([]item.Item, error) {
	return l.items, l.err
}

type stubTracker struct {
	jobs  map[string]queue.Job
	stats queue.Stats
}

func (t *stubTracker) GetStatus(id string) (queue.Job, bool) {
	j, ok := t.jobs[id]
	return j, ok
}

func (t *stubTracker) Stats() queue.Stats { return t.stats }

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPSaveContent(t *testing.T) {
	deps := Deps{Save: &stubSaver{out: &save.Outcome{
		Item:          &item.Item{ID: "item-1"},
		ClassifyJobID: "job-1",
	}}}
	handler := mcpSaveContent(deps)

	result, err := handler(context.Background(), makeCallToolRequest("save_content", map[string]interface{}{
		"content": "Buy milk",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &out))
	assert.Equal(t, "item-1", out["itemId"])
	assert.Equal(t, "job-1", out["classifyJobId"])
}

func TestMCPSaveContentRequiresContent(t *testing.T) {
	handler := mcpSaveContent(Deps{Save: &stubSaver{}})
	result, err := handler(context.Background(), makeCallToolRequest("save_content", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPSaveContentReportsFailure(t *testing.T) {
	handler := mcpSaveContent(Deps{Save: &stubSaver{err: errors.New("db down")}})
	result, err := handler(context.Background(), makeCallToolRequest("save_content", map[string]interface{}{
		"content": "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPSearchItemsLimitsResults(t *testing.T) {
	items := []item.Item{
		{ID: "1", Type: "note", Metadata: item.Metadata{Title: "First"}},
		{ID: "2", Type: "note", Metadata: item.Metadata{Title: "Second"}},
		{ID: "3", Type: "note", Metadata: item.Metadata{Title: "Third"}},
	}
	deps := Deps{
		Items:  &stubLister{items: items},
		Search: &stubSearcher{result: search.Result{Results: items}},
	}
	handler := mcpSearchItems(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_items", map[string]interface{}{
		"query": "notes",
		"limit": 2,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var hits []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &hits))
	require.Len(t, hits, 2)
	assert.Equal(t, "First", hits[0]["title"])
}

func TestMCPJobStatus(t *testing.T) {
	tracker := &stubTracker{
		jobs:  map[string]queue.Job{"job-1": {ID: "job-1", Status: queue.StatusCompleted}},
		stats: queue.Stats{Total: 4, Completed: 3, Failed: 1},
	}
	handler := mcpJobStatus(Deps{Jobs: tracker})

	result, err := handler(context.Background(), makeCallToolRequest("job_status", map[string]interface{}{
		"jobId": "job-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	var j queue.Job
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &j))
	assert.Equal(t, queue.StatusCompleted, j.Status)

	result, err = handler(context.Background(), makeCallToolRequest("job_status", map[string]interface{}{
		"jobId": "missing",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = handler(context.Background(), makeCallToolRequest("job_status", nil))
	require.NoError(t, err)
	var stats queue.Stats
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &stats))
	assert.Equal(t, 4, stats.Total)
}
