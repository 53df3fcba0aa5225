// Package normalize turns raw email bodies into clean, embeddable HTML
// fragments.
//
// Normalization removes non-content markup (script and style elements,
// tracking pixels, newsletter chrome such as subscribe buttons and share
// dialogs), collects scattered footnotes into a trailing Notes section,
// rewrites cid: image references to the locally extracted files, and strips
// inline style attributes. Plain-text bodies are converted to paragraphs.
//
// Parsing is best-effort: malformed HTML never produces an error. Input that
// cannot be parsed at all passes through wrapped in the fragment container.
// One Entry produces exactly one Document; normalization writes no files, so
// re-running it on the same input cannot duplicate extracted images.
package normalize
