package normalize

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var footnoteMarkerRe = regexp.MustCompile(`^\[?\(?\d+\)?\]?$`)

// collectEndnotes moves referenced footnote content into a single "Notes"
// section at the end of the body, and renders the in-text references as
// superscripts. Newsletters scatter footnote divs through the markup, which
// breaks pagination when left in place.
func collectEndnotes(doc *goquery.Document, body *goquery.Selection) {
	byID := map[string]*goquery.Selection{}
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok && id != "" {
			if _, seen := byID[id]; !seen {
				byID[id] = s
			}
		}
	})

	var notes []string
	processed := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, ok := anchor.Attr("href")
		if !ok || !strings.HasPrefix(href, "#") {
			return
		}
		targetID := href[1:]
		target, found := byID[targetID]
		if !found {
			return
		}

		text := strings.TrimSpace(anchor.Text())
		idLower := strings.ToLower(targetID)
		looksLikeFootnote := footnoteMarkerRe.MatchString(text) ||
			strings.Contains(idLower, "footnote") ||
			strings.Contains(idLower, "fn") ||
			strings.Contains(idLower, "ref")
		if !looksLikeFootnote {
			return
		}

		// Superscript the in-text marker
		if anchor.Find("sup").Length() == 0 {
			anchor.SetHtml("<sup>" + html.EscapeString(anchor.Text()) + "</sup>")
		}

		if processed[targetID] {
			return
		}
		processed[targetID] = true

		// Back-links inside the note are visual clutter in print
		target.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
			lhref, _ := link.Attr("href")
			if !strings.HasPrefix(lhref, "#") {
				return
			}
			ltext := strings.TrimSpace(link.Text())
			if len(ltext) < 3 || strings.Contains(strings.ToLower(ltext), "return") {
				link.Remove()
			}
		})

		noteHTML, err := goquery.OuterHtml(target)
		if err != nil {
			return
		}
		target.Remove()

		notes = append(notes, `<div class="endnote-item">`+noteHTML+`</div>`)
	})

	if len(notes) == 0 {
		return
	}

	body.AppendHtml(`<div class="endnotes"><h3>Notes</h3>` + strings.Join(notes, "") + `</div>`)
}
