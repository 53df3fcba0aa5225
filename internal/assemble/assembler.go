package assemble

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/teemow/dossier/internal/logging"
	"github.com/teemow/dossier/internal/normalize"
)

// ErrRender marks layout-engine failures. The whole render succeeds or fails
// atomically; no partial document is written. Matched with errors.Is.
var ErrRender = errors.New("rendering failed")

//go:embed magazine.html.tmpl
var magazineTemplate string

var tmpl = template.Must(template.New("magazine").Parse(magazineTemplate))

// Renderer turns a composed HTML document into a PDF file.
type Renderer interface {
	Render(ctx context.Context, html string, outPath string) error
}

// Assembler merges normalized entries into one magazine-styled document.
type Assembler struct {
	renderer Renderer
	logger   *slog.Logger

	// DebugHTML writes the composed HTML next to the PDF for inspection.
	DebugHTML bool
}

// New creates an Assembler backed by the given renderer. A nil renderer uses
// the wkhtmltopdf engine.
func New(renderer Renderer, logger *slog.Logger) *Assembler {
	if renderer == nil {
		renderer = &PDFRenderer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		renderer: renderer,
		logger:   logging.WithOperation(logger, "assemble"),
	}
}

type templateData struct {
	Date     string
	Articles []articleData
}

type articleData struct {
	Title   string
	Author  string
	Date    string
	Content template.HTML
}

// ComposeHTML renders the magazine template with all entries in order.
func (a *Assembler) ComposeHTML(docs []*normalize.Document, date time.Time) (string, error) {
	data := templateData{
		Date:     date.Format("January 2, 2006"),
		Articles: make([]articleData, 0, len(docs)),
	}
	for _, doc := range docs {
		data.Articles = append(data.Articles, articleData{
			Title:  doc.Title,
			Author: doc.Author,
			Date:   doc.Date,
			// The fragment was sanitized by the normalizer; escaping it
			// again would destroy the markup
			Content: template.HTML(doc.HTML),
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: executing template: %v", ErrRender, err)
	}
	return buf.String(), nil
}

// Assemble composes the digest and renders it to a single PDF at outPath.
func (a *Assembler) Assemble(ctx context.Context, docs []*normalize.Document, date time.Time, outPath string) error {
	html, err := a.ComposeHTML(docs, date)
	if err != nil {
		return err
	}

	if a.DebugHTML {
		debugPath := strings.TrimSuffix(outPath, ".pdf") + ".html"
		if err := os.WriteFile(debugPath, []byte(html), 0644); err != nil {
			a.logger.Warn("failed to write debug HTML", logging.Path(debugPath), logging.Err(err))
		} else {
			a.logger.Debug("wrote debug HTML", logging.Path(debugPath))
		}
	}

	if err := a.renderer.Render(ctx, html, outPath); err != nil {
		return err
	}

	a.logger.Info("assembled digest",
		logging.Count(len(docs)),
		logging.Path(outPath))
	return nil
}
