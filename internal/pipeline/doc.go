// Package pipeline orchestrates one digest run: obtain a token, fetch
// labeled messages, normalize each one, optionally reformat through the
// language model, and assemble the result into a single PDF.
//
// Execution is strictly sequential. Authorization, fetch, and render errors
// abort the run; formatting errors are recovered locally by falling back to
// the unformatted content and are reported in the run Summary. A label query
// that matches nothing ends the run successfully without producing a PDF.
package pipeline
