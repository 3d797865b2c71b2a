package rpp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

// sourceTypes maps file extensions to REAPER source chunk types.
var sourceTypes = map[string]string{
	".wav":  "WAVE",
	".wave": "WAVE",
	".w64":  "WAVE",
	".aif":  "WAVE",
	".aiff": "WAVE",
	".flac": "FLAC",
	".mp3":  "MP3",
	".ogg":  "VORBIS",
	".opus": "OPUS",
}

// sourceType returns the SOURCE chunk type for a media file.
func sourceType(path string) string {
	if t, ok := sourceTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "WAVE"
}

// MediaLength returns the duration of a WAV file in seconds, read from its
// header.
func MediaLength(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%s is not a valid WAV file", path)
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("failed to read WAV duration: %w", err)
	}
	return d.Seconds(), nil
}
