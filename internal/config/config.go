package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Defaults for environment values that are not set.
const (
	DefaultLabel       = "morning-dossier"
	DefaultImageDir    = "images"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultCredentials = "credentials.json"

	outputPrefix = "Morning_Dossier_"
)

// Config carries all environment-provided settings for one pipeline run.
// It is built once in the command layer and passed down explicitly so that
// runs are composable and testable in isolation.
type Config struct {
	// Label is the Gmail label that selects messages for the digest.
	Label string

	// Identifier personalizes the output filename.
	Identifier string

	// OutputDir is where the rendered PDF is written.
	OutputDir string

	// ImageDir is where extracted inline images are stored.
	ImageDir string

	// CredentialsFile is the OAuth client secrets JSON from Google Cloud Console.
	CredentialsFile string

	// TokenFile is the on-disk OAuth token cache.
	TokenFile string

	// OpenAIKey enables the formatting step when non-empty.
	OpenAIKey string

	// OpenAIModel is the chat model used for reformatting.
	OpenAIModel string

	// MaxResults caps the number of fetched messages; 0 means no cap.
	MaxResults int
}

// Load reads configuration from a .env file (if present) and the environment.
// A missing .env file is not an error.
func Load() (*Config, error) {
	// Ignore the error: .env is optional, real env vars still apply
	_ = godotenv.Load()

	cfg := &Config{
		Label:           envOr("DOSSIER_LABEL", DefaultLabel),
		Identifier:      envOr("DOSSIER_IDENTIFIER", defaultIdentifier()),
		OutputDir:       envOr("DOSSIER_OUTPUT_DIR", "."),
		ImageDir:        envOr("DOSSIER_IMAGE_DIR", DefaultImageDir),
		CredentialsFile: envOr("DOSSIER_CREDENTIALS_FILE", DefaultCredentials),
		TokenFile:       envOr("DOSSIER_TOKEN_FILE", defaultTokenFile()),
		OpenAIKey:       os.Getenv("DOSSIER_OPENAI_API_KEY"),
		OpenAIModel:     envOr("DOSSIER_OPENAI_MODEL", DefaultOpenAIModel),
	}

	if raw := os.Getenv("DOSSIER_MAX_RESULTS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid DOSSIER_MAX_RESULTS %q: must be a non-negative integer", raw)
		}
		cfg.MaxResults = n
	}

	return cfg, nil
}

// FormatterEnabled reports whether the optional formatting step should run.
func (c *Config) FormatterEnabled() bool {
	return c.OpenAIKey != ""
}

// OutputFile returns the full path of the digest PDF for this run.
func (c *Config) OutputFile() string {
	return filepath.Join(c.OutputDir, outputPrefix+c.Identifier+".pdf")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultIdentifier() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "User"
}

func defaultTokenFile() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		// Fall back to the working directory when no cache dir is resolvable
		return "token.json"
	}
	return filepath.Join(cacheDir, "dossier", "token.json")
}
