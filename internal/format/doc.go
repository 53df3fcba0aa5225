// Package format optionally rewrites normalized entries through an
// OpenAI-compatible chat model.
//
// The cleaned HTML fragment is converted to Markdown, sent with a fixed
// editing instruction, and the model's Markdown response is rendered back to
// an HTML fragment. Failures are never fatal: each attempt yields an explicit
// Result so the caller (and tests) can see which path was taken, and on any
// error the original document is carried through unchanged.
package format
