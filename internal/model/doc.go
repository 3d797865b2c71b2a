// Package model defines the domain types and value objects for the
// matchering-bridge CLI.
//
// This package contains pure data structures with no external dependencies:
// the selected media items read from a REAPER project, the profile that
// names a generated JSFX effect, and the Yes/No/Cancel choice of the main
// flow.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
