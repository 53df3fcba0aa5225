package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	openai "github.com/sashabaranov/go-openai"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/teemow/dossier/internal/logging"
	"github.com/teemow/dossier/internal/normalize"
)

// ErrFormat marks language-model failures. The pipeline treats these as
// non-fatal and falls back to the unformatted content. Matched with errors.Is.
var ErrFormat = errors.New("formatting failed")

// instruction is the fixed template sent with every entry. It is not
// configurable; prompt tuning is out of scope.
const instruction = `You are an editor preparing newsletter articles for a print digest.
Rewrite the article below for comfortable long-form reading: fix typography,
merge fragmented paragraphs, and drop any remaining promotional asides.
Preserve all substantive content, every heading, and every image reference
exactly as given. Respond with Markdown only.`

// Result reports the outcome of one formatting attempt. Formatted tells the
// caller which path was taken; on fallback Doc carries the original content
// and Err the reason.
type Result struct {
	Doc       *normalize.Document
	Formatted bool
	Err       error
}

// Formatter rewrites normalized entries through a chat-completion model.
type Formatter struct {
	client *openai.Client
	model  string
	logger *slog.Logger

	markdown goldmark.Markdown
}

// New creates a Formatter using the given API key and model.
func New(apiKey, model string, logger *slog.Logger) *Formatter {
	return newWithClient(openai.NewClient(apiKey), model, logger)
}

func newWithClient(client *openai.Client, model string, logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{
		client: client,
		model:  model,
		logger: logging.WithOperation(logger, "format"),
		// Model output may legitimately carry raw HTML such as the
		// rewritten img tags, so raw HTML stays enabled
		markdown: goldmark.New(goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe())),
	}
}

// Reformat sends the document's content through the model and returns a
// Result. It never fails the run: on any error the Result carries the
// original document and Formatted=false.
func (f *Formatter) Reformat(ctx context.Context, doc *normalize.Document) Result {
	fallback := func(err error) Result {
		f.logger.Warn("falling back to unformatted content",
			logging.Subject(doc.Title),
			logging.Status(logging.StatusFallback),
			logging.Err(err))
		return Result{Doc: doc, Formatted: false, Err: err}
	}

	md, err := htmltomarkdown.ConvertString(doc.HTML)
	if err != nil {
		return fallback(fmt.Errorf("%w: converting to markdown: %v", ErrFormat, err))
	}

	resp, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: f.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: md},
		},
	})
	if err != nil {
		return fallback(fmt.Errorf("%w: chat completion: %v", ErrFormat, err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return fallback(fmt.Errorf("%w: model returned no content", ErrFormat))
	}

	var buf bytes.Buffer
	if err := f.markdown.Convert([]byte(resp.Choices[0].Message.Content), &buf); err != nil {
		return fallback(fmt.Errorf("%w: rendering model output: %v", ErrFormat, err))
	}

	formatted := &normalize.Document{
		Title:  doc.Title,
		Author: doc.Author,
		Date:   doc.Date,
		HTML:   `<div class="article-content">` + buf.String() + `</div>`,
		Images: doc.Images,
	}

	f.logger.Debug("reformatted entry",
		logging.Subject(doc.Title),
		logging.Status(logging.StatusSuccess))
	return Result{Doc: formatted, Formatted: true}
}
