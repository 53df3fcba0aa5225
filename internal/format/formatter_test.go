package format

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/dossier/internal/normalize"
)

// newFakeFormatter returns a Formatter wired against a fake chat-completion
// endpoint driven by the given handler.
func newFakeFormatter(t *testing.T, handler http.HandlerFunc) *Formatter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return newWithClient(openai.NewClientWithConfig(cfg), "gpt-4o-mini", nil)
}

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func sampleDoc() *normalize.Document {
	return &normalize.Document{
		Title:  "Issue 42",
		Author: "Writer <writer@letters.example>",
		Date:   "Thu, 27 Aug 2026 06:00:00 +0000",
		HTML:   `<div class="article-content"><p>Original prose.</p></div>`,
		Images: []string{"images/m1_1_chart.png"},
	}
}

func TestReformat_Success(t *testing.T) {
	f := newFakeFormatter(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		require.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "Original prose.",
			"user message should carry the article as markdown")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("# Issue 42\n\nRewritten prose."))
	})

	res := f.Reformat(context.Background(), sampleDoc())

	require.True(t, res.Formatted, "Reformat should report the formatted path")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Doc.HTML, "Rewritten prose.")
	assert.Contains(t, res.Doc.HTML, `class="article-content"`)

	// Metadata and image list pass through untouched
	assert.Equal(t, "Issue 42", res.Doc.Title)
	assert.Equal(t, []string{"images/m1_1_chart.png"}, res.Doc.Images)
}

func TestReformat_APIFailureFallsBack(t *testing.T) {
	doc := sampleDoc()
	f := newFakeFormatter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})

	res := f.Reformat(context.Background(), doc)

	assert.False(t, res.Formatted)
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, ErrFormat), "fallback error should match ErrFormat")
	assert.Same(t, doc, res.Doc, "fallback must carry the original document")
	assert.Contains(t, res.Doc.HTML, "Original prose.",
		"original content must survive a formatting failure")
}

func TestReformat_EmptyModelOutputFallsBack(t *testing.T) {
	doc := sampleDoc()
	f := newFakeFormatter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("   "))
	})

	res := f.Reformat(context.Background(), doc)

	assert.False(t, res.Formatted)
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, ErrFormat))
	assert.Same(t, doc, res.Doc)
}

func TestReformat_PreservesImageReferences(t *testing.T) {
	doc := sampleDoc()
	doc.HTML = `<div class="article-content"><p>Text</p><img src="file:///tmp/images/m1_1_chart.png"></div>`

	f := newFakeFormatter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Models echo image references back as raw HTML inside markdown
		json.NewEncoder(w).Encode(chatResponse("Text\n\n<img src=\"file:///tmp/images/m1_1_chart.png\">"))
	})

	res := f.Reformat(context.Background(), doc)

	require.True(t, res.Formatted)
	assert.Contains(t, res.Doc.HTML, `file:///tmp/images/m1_1_chart.png`,
		"raw HTML image tags must survive markdown rendering")
}
