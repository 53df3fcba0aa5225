package normalize

import (
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/teemow/dossier/internal/gmail"
	"github.com/teemow/dossier/internal/logging"
)

// maxTinyImageDimension is the width/height at or below which an image is
// treated as a tracking pixel or decorative icon and dropped.
const maxTinyImageDimension = 50

// DefaultTrackerDomains is the built-in deny list for image hosts that only
// serve open-tracking pixels. Not exhaustive; combined with the dimension
// heuristic.
var DefaultTrackerDomains = []string{
	"google-analytics.com",
	"doubleclick.net",
	"list-manage.com",
	"mailstat.us",
	"mandrillapp.com",
	"open.substack.com",
	"pixel.wp.com",
	"sendgrid.net",
}

// Document is an email's content after stripping tracking artifacts: one
// cleaned HTML fragment plus the local image files it references.
type Document struct {
	Title  string
	Author string
	Date   string
	HTML   string
	Images []string
}

// Normalizer cleans raw email bodies into embeddable HTML fragments.
type Normalizer struct {
	trackerDomains []string
	logger         *slog.Logger
}

// New creates a Normalizer. A nil trackerDomains uses DefaultTrackerDomains.
func New(trackerDomains []string, logger *slog.Logger) *Normalizer {
	if trackerDomains == nil {
		trackerDomains = DefaultTrackerDomains
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		trackerDomains: trackerDomains,
		logger:         logging.WithOperation(logger, "normalize"),
	}
}

// Normalize derives exactly one Document from an Entry. Malformed HTML never
// raises an error: parsing is best-effort and unparseable input passes
// through wrapped.
func (n *Normalizer) Normalize(entry *gmail.Entry) *Document {
	doc := &Document{
		Title:  entry.Subject,
		Author: entry.Sender,
		Date:   entry.Date,
		Images: entry.Images,
	}

	if entry.HTMLBody != "" {
		doc.HTML = n.cleanHTML(entry.HTMLBody, entry.Subject, entry.SenderName(), entry.CIDs)
	} else {
		doc.HTML = textToHTML(entry.TextBody)
	}

	n.logger.Debug("normalized entry",
		logging.MessageID(entry.ID),
		logging.Subject(entry.Subject),
		logging.Count(len(doc.Images)))
	return doc
}

var (
	standaloneDateRe = regexp.MustCompile(`^[A-Z][a-z]{2,8}\s+\d{1,2}(,\s+\d{4})?$`)
	punctuationRe    = regexp.MustCompile(`^[.\s…•·∙]+$`)
	paidMarkerRe     = regexp.MustCompile(`(?i)^[.·•]?\s*Paid$`)
)

// substackClasses are container classes that hold subscription widgets,
// share buttons, and other newsletter chrome.
var substackClasses = []string{
	"subscription-widget-wrap",
	"post-footer",
	"footer",
	"comments-section",
	"share-dialog",
	"subscribe-footer",
	"simple-text-box",
	"preview",
	"email-ufi-2-bottom",
	"email-ufi-2-top",
	"post-meta",
	"email-button-outline",
	"email-button-text",
	"email-icon-button",
}

// actionWords are short blocks that exist only to drive engagement.
var actionWords = map[string]bool{
	"share":                   true,
	"comment":                 true,
	"subscribe":               true,
	"unsubscribe":             true,
	"update your preferences": true,
	"view in browser":         true,
}

const fragmentClass = "article-content"

// cleanHTML strips non-content markup from one HTML body and returns an
// embeddable fragment.
func (n *Normalizer) cleanHTML(rawHTML, title, author string, cids map[string]string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		// Unparseable input passes through untouched
		n.logger.Warn("best-effort parse failed, passing fragment through", logging.Err(err))
		return wrapFragment(rawHTML)
	}

	body := doc.Find("body").First()

	// Already-normalized fragments come back unchanged
	if children := body.Children(); children.Length() == 1 {
		if cls, _ := children.First().Attr("class"); cls == fragmentClass {
			out, err := goquery.OuterHtml(children.First())
			if err == nil {
				return out
			}
		}
	}

	doc.Find("script, style, meta, link, noscript").Remove()

	collectEndnotes(doc, body)

	removeTitleHeader(doc, title)
	n.removeBoilerplate(doc, author)
	n.removeTrackingImages(doc)
	rewriteCIDReferences(doc, cids)

	// Inline styles fight the digest stylesheet
	doc.Find("[style]").RemoveAttr("style")

	inner, err := body.Html()
	if err != nil {
		return wrapFragment(rawHTML)
	}
	return wrapFragment(inner)
}

func wrapFragment(inner string) string {
	return fmt.Sprintf("<div class=%q>%s</div>", fragmentClass, inner)
}

// removeTitleHeader drops a leading h1/h2 that duplicates the email subject.
func removeTitleHeader(doc *goquery.Document, title string) {
	target := strings.ToLower(strings.TrimSpace(title))
	if target == "" {
		return
	}

	doc.Find("h1, h2").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= 2 {
			return false
		}
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if text == "" {
			return true
		}
		match := text == target ||
			(len(target) > 10 && strings.Contains(text, target)) ||
			(len(text) > 10 && strings.Contains(target, text))
		if match {
			s.Remove()
			return false
		}
		return true
	})
}

// removeBoilerplate drops newsletter chrome: forwarding banners, separator
// artifacts, engagement buttons, and author bylines duplicating the sender.
func (n *Normalizer) removeBoilerplate(doc *goquery.Document, author string) {
	cleanAuthor := strings.TrimSpace(strings.ToLower(strings.TrimPrefix(strings.ToLower(author), "by ")))

	doc.Find("p, div, span, h3, h4, blockquote").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		lower := strings.ToLower(text)

		// Keep the length guard so a container holding the whole article
		// plus this line is not deleted with it
		if len(text) < 300 && strings.Contains(lower, "forwarded this email") && strings.Contains(lower, "subscribe") {
			s.Remove()
			return
		}

		if punctuationRe.MatchString(text) && text != "" {
			s.Remove()
			return
		}

		if len(text) < 25 && standaloneDateRe.MatchString(text) {
			s.Remove()
			return
		}

		if text == "" && s.Find("img, iframe").Length() == 0 {
			s.Remove()
			return
		}

		if paidMarkerRe.MatchString(text) {
			s.Remove()
			return
		}

		if cleanAuthor != "" {
			cleanText := strings.TrimSpace(strings.TrimPrefix(lower, "by "))
			if len(cleanText) < len(cleanAuthor)+50 && cleanText != "" &&
				(cleanText == cleanAuthor || strings.Contains(cleanText, cleanAuthor)) {
				if s.Find("a").Length() > 0 {
					s.Remove()
					return
				}
			}
		}
	})

	for _, class := range substackClasses {
		doc.Find("." + class).Remove()
	}

	doc.Find("p, div, span, a").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(strings.ToLower(s.Text()))
		if actionWords[text] {
			s.Remove()
			return
		}
		if strings.Contains(text, "read in app") && len(text) < 20 {
			s.Remove()
		}
	})

	// Leaf nodes that hold nothing but separator punctuation
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "img", "br", "hr", "iframe", "source", "track", "area", "col", "input":
			return
		}
		if s.Children().Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text != "" && punctuationRe.MatchString(text) {
			s.Remove()
		}
	})
}

// removeTrackingImages drops images with zero or near-zero dimensions and
// images served from known tracker domains.
func (n *Normalizer) removeTrackingImages(doc *goquery.Document) {
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if dimensionAtMost(s, "width", maxTinyImageDimension) ||
			dimensionAtMost(s, "height", maxTinyImageDimension) {
			s.Remove()
			return
		}
		if src, ok := s.Attr("src"); ok && n.isTrackerURL(src) {
			s.Remove()
		}
	})
}

func dimensionAtMost(s *goquery.Selection, attr string, limit int) bool {
	raw, ok := s.Attr(attr)
	if !ok {
		return false
	}
	v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(raw), "px"))
	if err != nil {
		return false
	}
	return v <= limit
}

func (n *Normalizer) isTrackerURL(src string) bool {
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, domain := range n.trackerDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// rewriteCIDReferences points cid: image sources at the locally extracted
// files. The layout engine needs absolute file URIs.
func rewriteCIDReferences(doc *goquery.Document, cids map[string]string) {
	if len(cids) == 0 {
		return
	}
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if !strings.HasPrefix(src, "cid:") {
			return
		}
		path, ok := cids[strings.TrimPrefix(src, "cid:")]
		if !ok {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		s.SetAttr("src", "file://"+abs)
	})
}

// textToHTML converts a plain-text body into paragraphs.
func textToHTML(text string) string {
	var b strings.Builder
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(p))
		b.WriteString("</p>")
	}
	return wrapFragment(b.String())
}
