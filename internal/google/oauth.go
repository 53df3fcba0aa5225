package google

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/dossier/internal/logging"
)

// ErrAuth marks authorization failures: denied consent, rejected token
// exchange, or an unusable credentials file. Matched with errors.Is.
var ErrAuth = errors.New("authorization failed")

// Store manages the on-disk OAuth token cache and performs the interactive
// consent flow when no usable token exists.
type Store struct {
	credentialsFile string
	tokenFile       string
	logger          *slog.Logger

	// consent obtains an authorization code for the given URL. It defaults
	// to the loopback browser flow and is replaceable in tests.
	consent func(ctx context.Context, conf *oauth2.Config) (string, error)
}

// NewStore creates a credential store backed by the given client secrets file
// and token cache path.
func NewStore(credentialsFile, tokenFile string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		credentialsFile: credentialsFile,
		tokenFile:       tokenFile,
		logger:          logging.WithOperation(logger, "google.auth"),
		consent:         loopbackConsent,
	}
}

// HasToken checks if a cached OAuth token exists on disk.
func (s *Store) HasToken() bool {
	_, err := os.Stat(s.tokenFile)
	return err == nil
}

// TokenSource returns a valid token source, refreshing the cached token when
// possible and falling back to exactly one interactive consent flow otherwise.
// Refreshed tokens are written back to the cache.
func (s *Store) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	conf, err := s.oauthConfig()
	if err != nil {
		return nil, err
	}

	tok, err := s.readToken()
	if err == nil {
		ts := conf.TokenSource(ctx, tok)
		// Force a refresh now so an expired cache surfaces here rather
		// than on the first API call
		if fresh, err := ts.Token(); err == nil {
			if fresh.AccessToken != tok.AccessToken {
				s.logger.Debug("refreshed cached token")
				if err := s.writeToken(fresh); err != nil {
					return nil, err
				}
			}
			return &cachingTokenSource{store: s, src: ts, last: fresh}, nil
		}
		s.logger.Warn("cached token unusable, starting consent flow", logging.Path(s.tokenFile))
	}

	tok, err = s.authorize(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &cachingTokenSource{store: s, src: conf.TokenSource(ctx, tok), last: tok}, nil
}

// Authorize runs the interactive consent flow unconditionally and caches the
// resulting token. Used by the auth subcommand.
func (s *Store) Authorize(ctx context.Context) error {
	conf, err := s.oauthConfig()
	if err != nil {
		return err
	}
	_, err = s.authorize(ctx, conf)
	return err
}

func (s *Store) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	code, err := s.consent(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging auth code: %v", ErrAuth, err)
	}

	if err := s.writeToken(tok); err != nil {
		return nil, err
	}
	s.logger.Info("authorization complete", logging.Path(s.tokenFile))
	return tok, nil
}

// oauthConfig builds the OAuth2 configuration from the client secrets file.
func (s *Store) oauthConfig() (*oauth2.Config, error) {
	b, err := os.ReadFile(s.credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading client secrets %s: %v", ErrAuth, s.credentialsFile, err)
	}
	conf, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing client secrets: %v", ErrAuth, err)
	}
	return conf, nil
}

func (s *Store) readToken() (*oauth2.Token, error) {
	f, err := os.Open(s.tokenFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token cache: %w", err)
	}
	return tok, nil
}

func (s *Store) writeToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.tokenFile), 0700); err != nil {
		return fmt.Errorf("creating token cache directory: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(s.tokenFile, data, 0600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}

// cachingTokenSource writes refreshed tokens back to the store so the next
// run starts from a current token.
type cachingTokenSource struct {
	store *Store
	src   oauth2.TokenSource
	last  *oauth2.Token
}

func (c *cachingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := c.src.Token()
	if err != nil {
		return nil, err
	}
	if c.last == nil || tok.AccessToken != c.last.AccessToken {
		c.last = tok
		if err := c.store.writeToken(tok); err != nil {
			c.store.logger.Warn("failed to cache refreshed token", logging.Err(err))
		}
	}
	return tok, nil
}

// loopbackConsent runs the browser-based consent flow against a loopback
// redirect listener and returns the authorization code.
func loopbackConsent(ctx context.Context, conf *oauth2.Config) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("starting loopback listener: %w", err)
	}
	defer ln.Close()

	redirect := fmt.Sprintf("http://%s/", ln.Addr().String())
	conf.RedirectURL = redirect

	state, err := randomState()
	if err != nil {
		return "", err
	}

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- result{err: fmt.Errorf("state mismatch in redirect")}
			return
		}
		if errMsg := q.Get("error"); errMsg != "" {
			http.Error(w, "consent denied", http.StatusForbidden)
			results <- result{err: fmt.Errorf("consent denied: %s", errMsg)}
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this tab.")
		results <- result{code: q.Get("code")}
	})}
	go srv.Serve(ln)
	defer srv.Close()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("Open the following link in your browser to authorize dossier:\n%v\n", authURL)

	select {
	case r := <-results:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(5 * time.Minute):
		return "", fmt.Errorf("timed out waiting for authorization")
	}
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
