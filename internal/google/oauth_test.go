package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// newTokenServer returns an httptest server that answers OAuth2 token
// requests, and counts how many it saw.
func newTokenServer(t *testing.T, accessToken string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","refresh_token":"refresh-1","expires_in":3600}`, accessToken)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeCredentials(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	path := filepath.Join(dir, "credentials.json")
	secrets := fmt.Sprintf(`{"installed":{"client_id":"id","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":%q}}`, tokenURL)
	if err := os.WriteFile(path, []byte(secrets), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeTokenCache(t *testing.T, dir string, tok *oauth2.Token) string {
	t.Helper()
	path := filepath.Join(dir, "token.json")
	data, err := json.Marshal(tok)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTokenSource_ValidCache_NoConsent(t *testing.T) {
	dir := t.TempDir()
	srv, tokenCalls := newTokenServer(t, "fresh")
	creds := writeCredentials(t, dir, srv.URL)
	cache := writeTokenCache(t, dir, &oauth2.Token{
		AccessToken:  "cached",
		TokenType:    "Bearer",
		RefreshToken: "refresh-0",
		Expiry:       time.Now().Add(time.Hour),
	})

	store := NewStore(creds, cache, nil)
	consentCalls := 0
	store.consent = func(ctx context.Context, conf *oauth2.Config) (string, error) {
		consentCalls++
		return "code", nil
	}

	ts, err := store.TokenSource(context.Background())
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "cached" {
		t.Errorf("AccessToken = %q, want cached token", tok.AccessToken)
	}
	if consentCalls != 0 {
		t.Errorf("consent flow ran %d times, want 0", consentCalls)
	}
	if *tokenCalls != 0 {
		t.Errorf("token endpoint hit %d times, want 0", *tokenCalls)
	}
}

func TestTokenSource_ExpiredCache_RefreshesWithoutConsent(t *testing.T) {
	dir := t.TempDir()
	srv, _ := newTokenServer(t, "fresh")
	creds := writeCredentials(t, dir, srv.URL)
	cache := writeTokenCache(t, dir, &oauth2.Token{
		AccessToken:  "stale",
		TokenType:    "Bearer",
		RefreshToken: "refresh-0",
		Expiry:       time.Now().Add(-time.Hour),
	})

	store := NewStore(creds, cache, nil)
	consentCalls := 0
	store.consent = func(ctx context.Context, conf *oauth2.Config) (string, error) {
		consentCalls++
		return "code", nil
	}

	ts, err := store.TokenSource(context.Background())
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "fresh" {
		t.Errorf("AccessToken = %q, want refreshed token", tok.AccessToken)
	}
	if consentCalls != 0 {
		t.Errorf("consent flow ran %d times, want 0", consentCalls)
	}

	// The refreshed token must land back in the cache
	cached, err := store.readToken()
	if err != nil {
		t.Fatalf("readToken() error = %v", err)
	}
	if cached.AccessToken != "fresh" {
		t.Errorf("cached AccessToken = %q, want refreshed token", cached.AccessToken)
	}
}

func TestTokenSource_MissingCache_RunsConsentOnce(t *testing.T) {
	dir := t.TempDir()
	srv, _ := newTokenServer(t, "granted")
	creds := writeCredentials(t, dir, srv.URL)
	cache := filepath.Join(dir, "token.json")

	store := NewStore(creds, cache, nil)
	consentCalls := 0
	store.consent = func(ctx context.Context, conf *oauth2.Config) (string, error) {
		consentCalls++
		return "auth-code", nil
	}

	ts, err := store.TokenSource(context.Background())
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}
	if consentCalls != 1 {
		t.Errorf("consent flow ran %d times, want exactly 1", consentCalls)
	}

	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "granted" {
		t.Errorf("AccessToken = %q, want exchanged token", tok.AccessToken)
	}
	if !store.HasToken() {
		t.Error("token cache was not written after consent")
	}
}

func TestTokenSource_ConsentDenied(t *testing.T) {
	dir := t.TempDir()
	srv, _ := newTokenServer(t, "unused")
	creds := writeCredentials(t, dir, srv.URL)

	store := NewStore(creds, filepath.Join(dir, "token.json"), nil)
	store.consent = func(ctx context.Context, conf *oauth2.Config) (string, error) {
		return "", fmt.Errorf("consent denied: access_denied")
	}

	_, err := store.TokenSource(context.Background())
	if err == nil {
		t.Fatal("TokenSource() expected error on denied consent")
	}
	if !errors.Is(err, ErrAuth) {
		t.Errorf("error %v should match ErrAuth", err)
	}
}

func TestTokenSource_MissingCredentialsFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "nope.json"), filepath.Join(dir, "token.json"), nil)

	_, err := store.TokenSource(context.Background())
	if err == nil {
		t.Fatal("TokenSource() expected error with missing credentials file")
	}
	if !errors.Is(err, ErrAuth) {
		t.Errorf("error %v should match ErrAuth", err)
	}
}

func TestHasToken(t *testing.T) {
	dir := t.TempDir()
	store := NewStore("credentials.json", filepath.Join(dir, "token.json"), nil)
	if store.HasToken() {
		t.Error("HasToken() = true before any token is cached")
	}
	writeTokenCache(t, dir, &oauth2.Token{AccessToken: "x"})
	if !store.HasToken() {
		t.Error("HasToken() = false after caching a token")
	}
}
