package model

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChoice_String verifies that Choice values produce the expected
// string representations for CLI output and JSON serialization.
func TestChoice_String(t *testing.T) {
	tests := []struct {
		choice   Choice
		expected string
	}{
		{ChoiceAnalyze, "analyze"},
		{ChoiceOffline, "offline"},
		{ChoiceCancel, "cancel"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.choice.String())
		})
	}
}

// TestParseChoice verifies string-to-choice conversion, including the
// message box vocabulary and error cases.
func TestParseChoice(t *testing.T) {
	tests := []struct {
		input    string
		expected Choice
		hasError bool
	}{
		{"analyze", ChoiceAnalyze, false},
		{"YES", ChoiceAnalyze, false},
		{"y", ChoiceAnalyze, false},
		{"offline", ChoiceOffline, false},
		{"render", ChoiceOffline, false},
		{"No", ChoiceOffline, false},
		{"cancel", ChoiceCancel, false},
		{"", ChoiceCancel, false}, // empty answer cancels
		{"maybe", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseChoice(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestProfile_JSFXFile verifies the profile name to file name mapping.
// The mapping must be deterministic: spaces become underscores and the
// result is lower-cased.
func TestProfile_JSFXFile(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		display string
	}{
		{
			name:    "empty profile uses the default file",
			raw:     "",
			want:    DefaultJSFXFile,
			display: "default",
		},
		{
			name:    "whitespace only is treated as empty",
			raw:     "   ",
			want:    DefaultJSFXFile,
			display: "default",
		},
		{
			name:    "spaces become underscores and case is lowered",
			raw:     "Rock Ref",
			want:    "matchering_rock_ref.jsfx",
			display: "Rock Ref",
		},
		{
			name:    "surrounding whitespace is trimmed",
			raw:     "  Steely Dan ",
			want:    "matchering_steely_dan.jsfx",
			display: "Steely Dan",
		},
		{
			name:    "path separators cannot escape the effects directory",
			raw:     "AC/DC",
			want:    "matchering_ac_dc.jsfx",
			display: "AC/DC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProfile(tt.raw)
			assert.Equal(t, tt.want, p.JSFXFile())
			assert.Equal(t, tt.display, p.DisplayName())
			// Same input must always map to the same file name.
			assert.Equal(t, p.JSFXFile(), NewProfile(tt.raw).JSFXFile())
		})
	}
}

// TestMasteredPath verifies that the offline render lands next to the
// target file with a "_mastered.wav" suffix.
func TestMasteredPath(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{filepath.Join("/audio", "song.wav"), filepath.Join("/audio", "song_mastered.wav")},
		{filepath.Join("/audio", "mix.v2.flac"), filepath.Join("/audio", "mix.v2_mastered.wav")},
		{filepath.Join("/audio", "noext"), filepath.Join("/audio", "noext_mastered.wav")},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, MasteredPath(tt.target))
		})
	}
}

// TestCLIError verifies the custom error type used for exit code mapping.
func TestCLIError(t *testing.T) {
	t.Run("simple error", func(t *testing.T) {
		err := NewCLIError(ExitSelectionInvalid, "select exactly 2 items")
		assert.Equal(t, ExitSelectionInvalid, err.Code)
		assert.Equal(t, "select exactly 2 items", err.Error())
		assert.Nil(t, err.Unwrap())
		assert.False(t, err.Reported)
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := errors.New("exit status 1")
		err := WrapCLIError(ExitToolFailed, "Analyzing failed", inner)
		assert.Equal(t, ExitToolFailed, err.Code)
		assert.Contains(t, err.Error(), "exit status 1")
		assert.Equal(t, inner, err.Unwrap())
	})

	t.Run("reported error", func(t *testing.T) {
		err := ReportedError(ExitOutputMissing, "output file was not created")
		assert.True(t, err.Reported)
		assert.Equal(t, ExitOutputMissing, err.Code)
	})

	// Verify errors.Is works with unwrapped errors (Go 1.13+ error chain).
	t.Run("errors.Is chain", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := WrapCLIError(ExitDockerNotRunning, "Docker daemon is not running", inner)
		assert.True(t, errors.Is(err, inner))
	})
}
