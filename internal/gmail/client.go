package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/dossier/internal/logging"
)

const (
	// MaxAttachmentSize defines the maximum attachment size in bytes (25MB)
	MaxAttachmentSize = 25 * 1024 * 1024

	// listPageSize is the Gmail API page size for message listing
	listPageSize = 100
)

// Client wraps the Gmail Users service for label-driven message retrieval.
type Client struct {
	svc      *gmail.UsersService
	imageDir string
	logger   *slog.Logger
}

// NewClient creates a Gmail client authenticated by the given token source.
// Extracted inline images are written under imageDir, which is created on
// first use.
func NewClient(ctx context.Context, ts oauth2.TokenSource, imageDir string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("%w: creating Gmail service: %v", ErrFetch, err)
	}
	return &Client{
		svc:      svc.Users,
		imageDir: imageDir,
		logger:   logging.WithOperation(logger, "gmail.fetch"),
	}, nil
}

// newClientWithService wires a prebuilt service; used by tests.
func newClientWithService(svc *gmail.Service, imageDir string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{svc: svc.Users, imageDir: imageDir, logger: logger}
}

// FetchLabeled returns the messages carrying the given label, in the order the
// provider reports them. maxResults caps the number of fetched messages; 0
// means no cap. An empty result is not an error.
func (c *Client) FetchLabeled(ctx context.Context, label string, maxResults int) ([]*Entry, error) {
	ids, err := c.listMessageIDs(ctx, "label:"+label, maxResults)
	if err != nil {
		return nil, err
	}
	c.logger.Info("found labeled messages", logging.Label(label), logging.Count(len(ids)))

	entries := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := c.fetchEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// listMessageIDs lists message IDs matching the query with pagination,
// making multiple API calls if necessary.
func (c *Client) listMessageIDs(ctx context.Context, q string, maxResults int) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		req := c.svc.Messages.List("me").Q(q).MaxResults(listPageSize).Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		res, err := req.Do()
		if err != nil {
			return nil, fmt.Errorf("%w: listing messages for %q: %v", ErrFetch, q, err)
		}

		for _, m := range res.Messages {
			ids = append(ids, m.Id)
			if maxResults > 0 && len(ids) >= maxResults {
				return ids, nil
			}
		}

		if res.NextPageToken == "" {
			return ids, nil
		}
		pageToken = res.NextPageToken
	}
}

// fetchEntry retrieves one full message and builds an Entry from it,
// downloading inline image parts along the way.
func (c *Client) fetchEntry(ctx context.Context, id string) (*Entry, error) {
	msg, err := c.svc.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: getting message %s: %v", ErrFetch, id, err)
	}

	entry := &Entry{
		ID:      id,
		Sender:  HeaderValue(msg, "From"),
		Subject: HeaderValue(msg, "Subject"),
		Date:    HeaderValue(msg, "Date"),
		CIDs:    map[string]string{},
	}
	if entry.Subject == "" {
		entry.Subject = "No Subject"
	}

	var text, html strings.Builder
	var walkErr error
	walkParts(msg.Payload, func(part *gmail.MessagePart) {
		if walkErr != nil || part.Body == nil {
			return
		}

		// Inline images and attachments carry a filename
		if part.Filename != "" && part.Body.AttachmentId != "" {
			path, err := c.saveImagePart(ctx, id, part)
			if err != nil {
				// Not fatal for the entry; the image reference will
				// simply stay remote
				c.logger.Warn("failed to extract image part",
					logging.MessageID(id), logging.Err(err))
				return
			}
			entry.Images = append(entry.Images, path)
			if cid := partContentID(part); cid != "" {
				entry.CIDs[cid] = path
			}
			return
		}

		if part.Body.Data == "" {
			return
		}
		decoded, err := decodeBase64(part.Body.Data)
		if err != nil {
			walkErr = fmt.Errorf("%w: decoding part of message %s: %v", ErrFetch, id, err)
			return
		}
		switch part.MimeType {
		case "text/plain":
			text.Write(decoded)
		case "text/html":
			html.Write(decoded)
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}

	entry.TextBody = text.String()
	entry.HTMLBody = html.String()

	c.logger.Debug("fetched entry",
		logging.MessageID(id),
		logging.Subject(entry.Subject),
		logging.Domain(entry.Sender),
		logging.Count(len(entry.Images)))
	return entry, nil
}

// saveImagePart downloads an attachment part and writes it into the image
// directory. Filenames are namespaced by message and part ID so re-running
// overwrites deterministically instead of duplicating files.
func (c *Client) saveImagePart(ctx context.Context, messageID string, part *gmail.MessagePart) (string, error) {
	data, err := c.getAttachment(ctx, messageID, part.Body.AttachmentId)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.imageDir, 0755); err != nil {
		return "", fmt.Errorf("creating image directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s", messageID, part.PartId, SanitizeFilename(part.Filename))
	path := filepath.Join(c.imageDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing image file: %w", err)
	}
	return path, nil
}

// getAttachment retrieves the content of an attachment.
func (c *Client) getAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	attachment, err := c.svc.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting attachment %s: %w", attachmentID, err)
	}

	if attachment.Size > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment size %d exceeds maximum size %d", attachment.Size, MaxAttachmentSize)
	}

	return decodeBase64(attachment.Data)
}

// decodeBase64 decodes Gmail body data, which is base64url per RFC 4648 but
// occasionally arrives in standard encoding.
func decodeBase64(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 data: %w", err)
		}
	}
	return decoded, nil
}

// walkParts recursively walks through message parts.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}

	fn(part)

	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}

// HeaderValue returns the value of the named header on a message, or "".
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// partContentID returns the part's Content-ID with angle brackets stripped,
// or "" when the part has none.
func partContentID(part *gmail.MessagePart) string {
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, "Content-ID") {
			return strings.Trim(h.Value, "<>")
		}
	}
	return ""
}

// SanitizeFilename sanitizes a filename to prevent path traversal attacks.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	return filename
}
