// Package assemble merges normalized entries into a single paginated,
// magazine-styled PDF.
//
// Composition and rendering are separate stages: ComposeHTML populates the
// embedded magazine template (cover page, table of contents, one section per
// entry in fetch order), and a Renderer turns the composed document into a
// PDF file. The default renderer shells out to wkhtmltopdf and writes the
// output only after a successful render, so failures leave no partial
// document.
package assemble
