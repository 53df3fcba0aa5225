package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/dossier/internal/assemble"
	"github.com/teemow/dossier/internal/config"
	"github.com/teemow/dossier/internal/format"
	"github.com/teemow/dossier/internal/gmail"
	"github.com/teemow/dossier/internal/google"
	"github.com/teemow/dossier/internal/logging"
	"github.com/teemow/dossier/internal/normalize"
)

// State names one step of the run. The pipeline is a single linear sequence;
// the only branch is the formatter's fallback path.
type State string

const (
	StateIdle              State = "idle"
	StateAuthorized        State = "authorized"
	StateFetched           State = "fetched"
	StateNormalized        State = "normalized"
	StateFormatted         State = "formatted"
	StateSkippedFormatting State = "skipped_formatting"
	StateAssembled         State = "assembled"
	StateDone              State = "done"
)

// Authorizer yields a valid token source, running the interactive consent
// flow when needed.
type Authorizer interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// Fetcher retrieves labeled messages in provider order.
type Fetcher interface {
	FetchLabeled(ctx context.Context, label string, maxResults int) ([]*gmail.Entry, error)
}

// FetcherFactory builds a Fetcher once a token source is available.
type FetcherFactory func(ctx context.Context, ts oauth2.TokenSource) (Fetcher, error)

// Normalizer derives one clean document per entry.
type Normalizer interface {
	Normalize(entry *gmail.Entry) *normalize.Document
}

// Formatter optionally rewrites a document, reporting which path was taken.
type Formatter interface {
	Reformat(ctx context.Context, doc *normalize.Document) format.Result
}

// Assembler renders the ordered documents into one PDF.
type Assembler interface {
	Assemble(ctx context.Context, docs []*normalize.Document, date time.Time, outPath string) error
}

// Summary reports what one run produced.
type Summary struct {
	// Empty is true when the label query matched nothing; no PDF exists.
	Empty bool

	// Entries is the number of messages that entered the digest.
	Entries int

	// Formatted counts entries rewritten by the model; Fallbacks counts
	// entries that kept their unformatted content after a model failure.
	Formatted int
	Fallbacks int

	// OutputFile is the rendered PDF path; empty when Empty is true.
	OutputFile string
}

// Pipeline drives one digest run end to end.
type Pipeline struct {
	cfg        *config.Config
	authorizer Authorizer
	newFetcher FetcherFactory
	normalizer Normalizer
	formatter  Formatter // nil disables the formatting step
	assembler  Assembler
	logger     *slog.Logger

	now func() time.Time
}

// New wires a pipeline. formatter may be nil, which skips the formatting
// step entirely.
func New(cfg *config.Config, authorizer Authorizer, newFetcher FetcherFactory,
	normalizer Normalizer, formatter Formatter, assembler Assembler, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		authorizer: authorizer,
		newFetcher: newFetcher,
		normalizer: normalizer,
		formatter:  formatter,
		assembler:  assembler,
		logger:     logging.WithOperation(logger, "pipeline"),
		now:        time.Now,
	}
}

// Run executes the full sequence. Any unrecovered error aborts the run; the
// formatter's failures are recovered locally and reflected in the Summary.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	p.logger.Debug("state", slog.String("state", string(StateIdle)))

	ts, err := p.authorizer.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("state", slog.String("state", string(StateAuthorized)))

	fetcher, err := p.newFetcher(ctx, ts)
	if err != nil {
		return nil, err
	}

	entries, err := fetcher.FetchLabeled(ctx, p.cfg.Label, p.cfg.MaxResults)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("state", slog.String("state", string(StateFetched)), logging.Count(len(entries)))

	if len(entries) == 0 {
		p.logger.Info("nothing to do", logging.Label(p.cfg.Label))
		return &Summary{Empty: true}, nil
	}

	summary := &Summary{Entries: len(entries)}
	docs := make([]*normalize.Document, 0, len(entries))
	for _, entry := range entries {
		doc := p.normalizer.Normalize(entry)

		if p.formatter != nil {
			res := p.formatter.Reformat(ctx, doc)
			if res.Formatted {
				summary.Formatted++
			} else {
				summary.Fallbacks++
			}
			doc = res.Doc
		}

		docs = append(docs, doc)
	}
	p.logger.Debug("state", slog.String("state", string(StateNormalized)))
	if p.formatter != nil {
		p.logger.Debug("state", slog.String("state", string(StateFormatted)),
			slog.Int("formatted", summary.Formatted),
			slog.Int("fallbacks", summary.Fallbacks))
	} else {
		p.logger.Debug("state", slog.String("state", string(StateSkippedFormatting)))
	}

	outPath := p.cfg.OutputFile()
	if err := p.assembler.Assemble(ctx, docs, p.now(), outPath); err != nil {
		return nil, err
	}
	summary.OutputFile = outPath
	p.logger.Debug("state", slog.String("state", string(StateAssembled)))

	p.logger.Info("digest ready",
		logging.Path(outPath),
		logging.Count(summary.Entries),
		logging.Status(logging.StatusSuccess))
	p.logger.Debug("state", slog.String("state", string(StateDone)))
	return summary, nil
}

// Kind names the error class of a failed run for user-facing messages.
func Kind(err error) string {
	switch {
	case errors.Is(err, google.ErrAuth):
		return "authorization"
	case errors.Is(err, gmail.ErrFetch):
		return "fetch"
	case errors.Is(err, format.ErrFormat):
		return "format"
	case errors.Is(err, assemble.ErrRender):
		return "render"
	default:
		return "internal"
	}
}
