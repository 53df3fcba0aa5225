// Package config loads run settings from the environment and an optional
// .env file, and resolves the derived paths (token cache, output PDF).
package config
