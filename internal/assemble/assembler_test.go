package assemble

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/dossier/internal/normalize"
)

// fakeRenderer records the HTML it was asked to render.
type fakeRenderer struct {
	html    string
	outPath string
	err     error
}

func (f *fakeRenderer) Render(_ context.Context, html string, outPath string) error {
	f.html = html
	f.outPath = outPath
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, []byte("%PDF-fake"), 0644)
}

func sampleDocs() []*normalize.Document {
	return []*normalize.Document{
		{
			Title:  "Newsletter A",
			Author: "Writer A <a@letters.example>",
			Date:   "Thu, 27 Aug 2026 06:00:00 +0000",
			HTML:   `<div class="article-content"><p>First story</p><img src="file:///tmp/images/a.png"></div>`,
			Images: []string{"/tmp/images/a.png"},
		},
		{
			Title:  "Newsletter B",
			Author: "Writer B <b@letters.example>",
			HTML:   `<div class="article-content"><p>Second story</p></div>`,
		},
	}
}

func TestComposeHTML(t *testing.T) {
	a := New(&fakeRenderer{}, nil)
	date := time.Date(2026, time.August, 27, 7, 0, 0, 0, time.UTC)

	html, err := a.ComposeHTML(sampleDocs(), date)
	require.NoError(t, err)

	assert.Contains(t, html, "August 27, 2026")
	assert.Contains(t, html, "Newsletter A")
	assert.Contains(t, html, "Newsletter B")

	// Fetch order is preserved
	assert.Less(t, strings.Index(html, "First story"), strings.Index(html, "Second story"))

	// Content fragments are embedded unescaped
	assert.Contains(t, html, "<p>First story</p>")
	assert.Contains(t, html, `src="file:///tmp/images/a.png"`)
	assert.NotContains(t, html, "&lt;p&gt;")
}

func TestComposeHTML_EscapesMetadata(t *testing.T) {
	a := New(&fakeRenderer{}, nil)
	docs := []*normalize.Document{{
		Title: `Tricky <script>alert(1)</script> title`,
		HTML:  `<div class="article-content"></div>`,
	}}

	html, err := a.ComposeHTML(docs, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert(1)</script>",
		"titles are untrusted and must be escaped")
}

func TestAssemble(t *testing.T) {
	renderer := &fakeRenderer{}
	a := New(renderer, nil)
	outPath := filepath.Join(t.TempDir(), "Morning_Dossier_Test.pdf")

	err := a.Assemble(context.Background(), sampleDocs(), time.Now(), outPath)
	require.NoError(t, err)

	assert.Equal(t, outPath, renderer.outPath)
	assert.Contains(t, renderer.html, "Newsletter A")

	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("output PDF missing: %v", err)
	}
}

func TestAssemble_RenderFailure(t *testing.T) {
	renderer := &fakeRenderer{err: ErrRender}
	a := New(renderer, nil)
	outPath := filepath.Join(t.TempDir(), "Morning_Dossier_Test.pdf")

	err := a.Assemble(context.Background(), sampleDocs(), time.Now(), outPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRender))

	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Error("no partial document should exist after a failed render")
	}
}

func TestAssemble_DebugHTML(t *testing.T) {
	a := New(&fakeRenderer{}, nil)
	a.DebugHTML = true
	dir := t.TempDir()
	outPath := filepath.Join(dir, "Morning_Dossier_Test.pdf")

	require.NoError(t, a.Assemble(context.Background(), sampleDocs(), time.Now(), outPath))

	debug, err := os.ReadFile(filepath.Join(dir, "Morning_Dossier_Test.html"))
	require.NoError(t, err, "debug HTML should be written next to the PDF")
	assert.Contains(t, string(debug), "Newsletter A")
}
