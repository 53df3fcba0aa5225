// Package cmd implements the command-line interface for dossier.
//
// This package provides the following commands:
//   - run: Build the morning digest PDF from labeled Gmail messages
//   - auth: Run the Google OAuth consent flow and cache the token
//   - version: Display version information
//
// The run command is the default command when no subcommand is specified.
package cmd
