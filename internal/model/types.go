// Package model defines the domain types for the matchering-bridge CLI.
//
// All entities in this package are transient: a MediaItem is read from the
// REAPER project file for the duration of one command, and a Profile only
// lives long enough to name the generated JSFX file. Nothing here is
// persisted by the CLI itself.
package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Choice is the answer to the Yes/No/Cancel question asked by the main flow.
//
// The mapping mirrors the REAPER message box return codes:
//
//	Yes (6)    → analyze and build a real-time JSFX
//	No (7)     → offline render
//	Cancel (2) → do nothing
type Choice string

const (
	// ChoiceAnalyze runs the analyzer and generates a real-time plugin.
	ChoiceAnalyze Choice = "analyze"

	// ChoiceOffline runs the full offline render.
	ChoiceOffline Choice = "offline"

	// ChoiceCancel stops the flow without doing anything.
	ChoiceCancel Choice = "cancel"
)

// String returns the string representation of Choice.
func (c Choice) String() string {
	return string(c)
}

// ParseChoice converts a string to a Choice. It accepts the canonical
// names as well as the message box vocabulary (yes/no/cancel) and the
// "render" alias for the offline flow.
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "analyze", "analyse", "yes", "y", "plugin":
		return ChoiceAnalyze, nil
	case "offline", "render", "no", "n":
		return ChoiceOffline, nil
	case "cancel", "c", "":
		return ChoiceCancel, nil
	default:
		return "", fmt.Errorf("invalid action: %q (valid: analyze, offline, cancel)", s)
	}
}

// MediaItem is a selected item in the REAPER project.
//
// Index and Track are zero-based positions in project order, matching the
// indices REAPER's scripting API hands out for the same project.
type MediaItem struct {
	// Index is the item's position among all items of the project.
	Index int `json:"index"`

	// Track is the zero-based index of the track that owns the item.
	Track int `json:"track"`

	// SourceFile is the absolute path of the active take's media file.
	// Empty when the take has no file-backed source (MIDI, empty items).
	SourceFile string `json:"sourceFile"`

	// Position is the item's start time on the timeline, in seconds.
	Position float64 `json:"position"`
}

// DefaultJSFXFile is the effect file name used when no profile is given.
const DefaultJSFXFile = "matchering_realtime.jsfx"

// Profile names a matchering result so that several reference tracks can
// coexist as separate effects in the Effects directory.
type Profile struct {
	// Name is the user-facing profile name, exactly as typed (trimmed).
	Name string `json:"name"`
}

// NewProfile trims the raw input and wraps it in a Profile.
func NewProfile(raw string) Profile {
	return Profile{Name: strings.TrimSpace(raw)}
}

// IsDefault reports whether no profile name was given.
func (p Profile) IsDefault() bool {
	return p.Name == ""
}

// DisplayName returns the name shown in dialogs ("default" when empty).
func (p Profile) DisplayName() string {
	if p.IsDefault() {
		return "default"
	}
	return p.Name
}

// SafeName returns the file-name-safe form of the profile name:
// spaces become underscores and the result is lower-cased. Path
// separators are replaced as well so the effect always lands directly
// inside the Effects directory.
func (p Profile) SafeName() string {
	r := strings.NewReplacer(" ", "_", "/", "_", `\`, "_")
	return strings.ToLower(r.Replace(p.Name))
}

// JSFXFile returns the effect file name for this profile,
// e.g. "matchering_rock_ref.jsfx".
func (p Profile) JSFXFile() string {
	if p.IsDefault() {
		return DefaultJSFXFile
	}
	return "matchering_" + p.SafeName() + ".jsfx"
}

// MasteredPath returns the offline render destination for a target file:
// "<dir>/<stem>_mastered.wav", next to the target.
func MasteredPath(targetFile string) string {
	dir := filepath.Dir(targetFile)
	base := filepath.Base(targetFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"_mastered.wav")
}

// ExitCode defines the process exit codes of the CLI.
// These codes allow wrapper scripts (for example a REAPER action that
// launches the binary) to tell why a run stopped.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully,
	// including a run the user cancelled from a dialog.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitToolNotFound indicates the interpreter or a tool script is missing.
	ExitToolNotFound ExitCode = 2

	// ExitSelectionInvalid indicates the project did not have exactly
	// two selected items.
	ExitSelectionInvalid ExitCode = 3

	// ExitSourceMissing indicates a selected item's media file could not
	// be resolved or does not exist.
	ExitSourceMissing ExitCode = 4

	// ExitToolTimeout indicates an external program exceeded its timeout.
	ExitToolTimeout ExitCode = 5

	// ExitToolFailed indicates an external program exited non-zero or
	// could not be started.
	ExitToolFailed ExitCode = 6

	// ExitOutputMissing indicates a program succeeded but the expected
	// output file was not produced.
	ExitOutputMissing ExitCode = 7

	// ExitProjectError indicates the REAPER project could not be read
	// or written.
	ExitProjectError ExitCode = 8

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// while the docker backend is configured.
	ExitDockerNotRunning ExitCode = 9
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error

	// Reported is set once the message has been shown to the user in a
	// dialog, so the CLI does not print it a second time.
	Reported bool
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ReportedError creates a CLIError for a failure the user has already
// been told about through a dialog.
func ReportedError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message, Reported: true}
}
