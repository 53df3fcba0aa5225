package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/teemow/dossier/internal/assemble"
	"github.com/teemow/dossier/internal/config"
	"github.com/teemow/dossier/internal/format"
	"github.com/teemow/dossier/internal/gmail"
	"github.com/teemow/dossier/internal/google"
	"github.com/teemow/dossier/internal/normalize"
	"github.com/teemow/dossier/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var (
		label      string
		maxResults int
		noOpen     bool
		skipFormat bool
		debugHTML  bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build today's digest from labeled Gmail messages",
		Long: `Fetch all messages under the configured Gmail label, clean each one into
article content, optionally reformat it with a language model, and render
the result as a single PDF. The PDF opens in the system viewer unless
--no-open is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if label != "" {
				cfg.Label = label
			}
			if maxResults > 0 {
				cfg.MaxResults = maxResults
			}
			if skipFormat {
				cfg.OpenAIKey = ""
			}

			logger := newLogger(verbose)

			if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			if err := os.MkdirAll(cfg.ImageDir, 0755); err != nil {
				return fmt.Errorf("failed to create image directory: %w", err)
			}

			store := google.NewStore(cfg.CredentialsFile, cfg.TokenFile, logger)
			factory := func(ctx context.Context, ts oauth2.TokenSource) (pipeline.Fetcher, error) {
				return gmail.NewClient(ctx, ts, cfg.ImageDir, logger)
			}

			var formatter pipeline.Formatter
			if cfg.FormatterEnabled() {
				formatter = format.New(cfg.OpenAIKey, cfg.OpenAIModel, logger)
			} else {
				logger.Info("formatting disabled, using cleaned content as-is")
			}

			assembler := assemble.New(nil, logger)
			assembler.DebugHTML = debugHTML

			p := pipeline.New(cfg, store, factory, normalize.New(nil, logger), formatter, assembler, logger)

			summary, err := p.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s failed: %w", pipeline.Kind(err), err)
			}

			if summary.Empty {
				fmt.Printf("No messages found under label %q; nothing to build.\n", cfg.Label)
				return nil
			}

			fmt.Printf("Digest ready: %s (%d articles", summary.OutputFile, summary.Entries)
			if summary.Fallbacks > 0 {
				fmt.Printf(", %d kept unformatted after model errors", summary.Fallbacks)
			}
			fmt.Println(")")

			if noOpen {
				return nil
			}
			if err := openViewer(summary.OutputFile); err != nil {
				// The digest exists; a missing viewer is not a failed run
				logger.Warn("could not open PDF viewer", slog.String("error", err.Error()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Gmail label to collect (default: DOSSIER_LABEL or 'morning-dossier')")
	cmd.Flags().IntVar(&maxResults, "max", 0, "Maximum number of messages to fetch (0 = no cap)")
	cmd.Flags().BoolVar(&noOpen, "no-open", false, "Do not open the finished PDF in the system viewer")
	cmd.Flags().BoolVar(&skipFormat, "skip-format", false, "Skip the language-model formatting step")
	cmd.Flags().BoolVar(&debugHTML, "debug-html", false, "Write the composed HTML next to the PDF")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

// newLogger builds the process logger. Debug output goes to stderr so the
// digest summary on stdout stays scriptable.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
