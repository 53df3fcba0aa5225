// Package google provides OAuth2 authentication and token management for the
// Gmail API.
//
// The Store type owns the on-disk token cache. Obtaining a token tries the
// cache first (refreshing through the standard OAuth2 token source when the
// access token has expired) and falls back to a single interactive,
// browser-based consent flow against a loopback redirect listener. Refreshed
// tokens are written back to the cache so subsequent runs stay silent.
package google
