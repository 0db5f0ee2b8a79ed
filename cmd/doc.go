// Package cmd implements the command-line interface for warden.
//
// This package provides the following commands:
//   - serve: Start the HTTP gateway exposing the mailbox tool catalog
//   - version: Display version information
//
// The serve command is the default command when no subcommand is
// specified.
package cmd
