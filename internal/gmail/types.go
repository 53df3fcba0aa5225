package gmail

import (
	"errors"
	"strings"
)

// ErrFetch marks mail API failures. A label query that matches nothing is not
// a fetch error; it yields an empty slice. Matched with errors.Is.
var ErrFetch = errors.New("mail fetch failed")

// Entry is one retrieved message, immutable once fetched. It is owned by the
// pipeline run that fetched it and discarded afterwards.
type Entry struct {
	ID       string
	Sender   string
	Subject  string
	Date     string
	TextBody string
	HTMLBody string

	// CIDs maps inline Content-IDs (angle brackets stripped) to the local
	// file the image part was extracted to.
	CIDs map[string]string

	// Images lists the extracted image files in part order.
	Images []string
}

// SenderName returns the display-name half of a "Name <addr>" sender, or the
// raw sender when there is no bracketed address.
func (e *Entry) SenderName() string {
	s := e.Sender
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
