package assemble

import (
	"context"
	"fmt"
	"os"
	"strings"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// PDFRenderer drives the wkhtmltopdf layout engine. It renders into memory
// first and only then writes the output file, so a failed render leaves no
// partial document behind.
type PDFRenderer struct{}

// Render converts the HTML document to a PDF at outPath.
func (r *PDFRenderer) Render(ctx context.Context, html string, outPath string) error {
	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return fmt.Errorf("%w: initializing wkhtmltopdf: %v", ErrRender, err)
	}

	pdfg.Dpi.Set(300)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)

	page := wkhtmltopdf.NewPageReader(strings.NewReader(html))
	// Extracted images are referenced by file:// URIs
	page.EnableLocalFileAccess.Set(true)
	page.LoadErrorHandling.Set("ignore")
	pdfg.AddPage(page)

	if err := pdfg.CreateContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}

	if err := os.WriteFile(outPath, pdfg.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrRender, outPath, err)
	}
	return nil
}
