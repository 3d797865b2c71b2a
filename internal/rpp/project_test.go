package rpp

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// loadFixture copies a testdata project into a temporary directory, so
// saves never touch the checked-in file, and loads it with an effects
// directory holding the given JSFX files.
func loadFixture(t *testing.T, name string, effects ...string) *Project {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	effectsDir := filepath.Join(dir, "Effects")
	require.NoError(t, os.MkdirAll(effectsDir, 0o755))
	for _, e := range effects {
		full := filepath.Join(effectsDir, e)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("desc:test\n"), 0o644))
	}

	p, err := Load(path, effectsDir)
	require.NoError(t, err)

	seq := 0
	orig := newGUID
	newGUID = func() string {
		seq++
		return fmt.Sprintf("{GUID-%d}", seq)
	}
	t.Cleanup(func() { newGUID = orig })

	p.MediaLength = func(string) (float64, error) { return 42.5, nil }
	return p
}

// --- Load tests ---

// TestLoad_Errors verifies the exit codes for unreadable and foreign files.
func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.RPP"), "")
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitProjectError, cliErr.Code)

	other := filepath.Join(dir, "other.RPP")
	require.NoError(t, os.WriteFile(other, []byte("<SOMETHING_ELSE\n>\n"), 0o644))
	_, err = Load(other, "")
	require.ErrorAs(t, err, &cliErr)
	assert.Contains(t, cliErr.Message, "not a REAPER project")
}

// --- SelectedItems tests ---

// TestSelectedItems verifies that selected items are returned in project
// order with the source file of their active take.
func TestSelectedItems(t *testing.T) {
	p := loadFixture(t, "two_items.RPP")

	items := p.SelectedItems()
	require.Len(t, items, 2, "the unselected item must be skipped")

	// First selected item: relative path resolved against the project dir.
	assert.Equal(t, 0, items[0].Index)
	assert.Equal(t, 0, items[0].Track)
	assert.Equal(t, filepath.Join(filepath.Dir(p.Path), "audio", "song mix.wav"), items[0].SourceFile)

	// Second selected item: "TAKE SEL" picks the second take, whose file
	// sits inside a SECTION source.
	assert.Equal(t, 2, items[1].Index)
	assert.Equal(t, 1, items[1].Track)
	assert.Equal(t, `/refs/say "hi".wav`, items[1].SourceFile)
}

// TestSelectedItems_NoSource verifies that items without a file-backed
// source report an empty path instead of failing.
func TestSelectedItems_NoSource(t *testing.T) {
	root, err := Parse(strings.NewReader(`<REAPER_PROJECT 0.1
  <TRACK {A}
    <ITEM
      SEL 1
      <SOURCE MIDI
        HASDATA 1 960 QN
      >
    >
  >
>
`))
	require.NoError(t, err)
	p := &Project{Path: "/proj/x.RPP", root: root}

	items := p.SelectedItems()
	require.Len(t, items, 1)
	assert.Empty(t, items[0].SourceFile)
}

// --- FX tests ---

// TestAddTrackFX verifies that a JS effect is appended after existing
// effects and stored relative to the effects directory.
func TestAddTrackFX(t *testing.T) {
	p := loadFixture(t, "two_items.RPP", "matchering_realtime.jsfx")

	// Track 1 already holds one effect.
	idx, err := p.AddTrackFX(1, filepath.Join(p.EffectsDir, "matchering_realtime.jsfx"))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	names, err := p.TrackFX(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"utility/volume", "matchering_realtime.jsfx"}, names)
	assert.True(t, p.Dirty())

	// Track 0 has no FX chain yet: it is created before the first item.
	idx, err = p.AddTrackFX(0, "matchering_realtime.jsfx")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	track := p.Tracks()[0]
	var order []string
	for _, n := range track.Children {
		if ch, ok := n.(*Chunk); ok {
			order = append(order, ch.Name())
		}
	}
	assert.Equal(t, []string{"FXCHAIN", "ITEM", "ITEM"}, order)
}

// TestAddTrackFX_Unresolved verifies the -1 result for effects REAPER
// would not find, without an error.
func TestAddTrackFX_Unresolved(t *testing.T) {
	p := loadFixture(t, "two_items.RPP", "matchering_realtime.jsfx")

	tests := []struct {
		name   string
		effect string
	}{
		{"missing file", "nope.jsfx"},
		{"outside effects dir", "/etc/passwd"},
		{"escapes effects dir", "../two_items.RPP"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := p.AddTrackFX(0, tt.effect)
			require.NoError(t, err)
			assert.Equal(t, -1, idx)
		})
	}

	_, err := p.AddTrackFX(9, "matchering_realtime.jsfx")
	assert.Error(t, err, "out-of-range track is an error")
}

// TestOpenTrackFX verifies the SHOW/LASTSEL bookkeeping.
func TestOpenTrackFX(t *testing.T) {
	p := loadFixture(t, "two_items.RPP", "matchering_realtime.jsfx")

	idx, err := p.AddTrackFX(1, "matchering_realtime.jsfx")
	require.NoError(t, err)
	require.NoError(t, p.OpenTrackFX(1, idx))

	chain := p.Tracks()[1].Chunk("FXCHAIN")
	show, _ := chain.Value("SHOW")
	last, _ := chain.Value("LASTSEL")
	assert.Equal(t, "2", show)
	assert.Equal(t, "1", last)

	assert.Error(t, p.OpenTrackFX(1, 5))
	assert.Error(t, p.OpenTrackFX(0, 0), "track without FX chain")
}

// --- Track / media tests ---

// TestAppendTrackAndInsertMedia verifies the offline-render placement:
// a named track at the end, only it selected, the new item at the cursor
// and the only selected item.
func TestAppendTrackAndInsertMedia(t *testing.T) {
	p := loadFixture(t, "two_items.RPP")

	idx := p.AppendTrack("Mastered")
	assert.Equal(t, 2, idx)
	assert.Equal(t, 3, p.CountTracks())

	name, err := p.TrackName(idx)
	require.NoError(t, err)
	assert.Equal(t, "Mastered", name)

	require.NoError(t, p.SetOnlyTrackSelected(idx))
	assert.Equal(t, []int{idx}, p.SelectedTracks())

	require.NoError(t, p.InsertMedia(idx, "/out/song mix_mastered.wav"))

	items := p.SelectedItems()
	require.Len(t, items, 1)
	assert.Equal(t, idx, items[0].Track)
	assert.Equal(t, "/out/song mix_mastered.wav", items[0].SourceFile)
	assert.Equal(t, 12.5, items[0].Position)

	item := p.Tracks()[idx].Chunk("ITEM")
	length, _ := item.Value("LENGTH")
	assert.Equal(t, "42.5", length)
	assert.Equal(t, []string{"WAVE"}, item.Chunk("SOURCE").Params())
}

// TestInsertMedia_UnreadableMedia verifies that an unreadable file leaves the
// project untouched.
func TestInsertMedia_UnreadableMedia(t *testing.T) {
	p := loadFixture(t, "two_items.RPP")
	p.MediaLength = func(string) (float64, error) { return 0, fmt.Errorf("boom") }

	err := p.InsertMedia(0, "/x.wav")
	require.Error(t, err)
	assert.Len(t, p.SelectedItems(), 2)
}

// TestSetTrackName verifies renaming and quoting of names with spaces.
func TestSetTrackName(t *testing.T) {
	p := loadFixture(t, "two_items.RPP")

	require.NoError(t, p.SetTrackName(1, "Ref Track"))
	name, err := p.TrackName(1)
	require.NoError(t, err)
	assert.Equal(t, "Ref Track", name)
	assert.Error(t, p.SetTrackName(7, "x"))
}

// --- Save tests ---

// TestUpdateArrange verifies that edits are saved with a backup of the
// previous file and that a clean project is not rewritten.
func TestUpdateArrange(t *testing.T) {
	p := loadFixture(t, "two_items.RPP")
	before, err := os.ReadFile(p.Path)
	require.NoError(t, err)

	// Nothing changed: no backup is written.
	require.NoError(t, p.UpdateArrange())
	_, err = os.Stat(p.Path + "-bak")
	assert.True(t, os.IsNotExist(err))

	p.AppendTrack("Mastered")
	require.NoError(t, p.UpdateArrange())
	assert.False(t, p.Dirty())

	backup, err := os.ReadFile(p.Path + "-bak")
	require.NoError(t, err)
	assert.Equal(t, before, backup)

	reloaded, err := Load(p.Path, p.EffectsDir)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.CountTracks())
	name, err := reloaded.TrackName(2)
	require.NoError(t, err)
	assert.Equal(t, "Mastered", name)
}

// --- media tests ---

// writeWAV writes a minimal 16-bit PCM WAV file with the given length.
func writeWAV(t *testing.T, path string, sampleRate, channels int, seconds float64) {
	t.Helper()

	dataSize := uint32(float64(sampleRate*channels*2) * seconds)
	var b []byte
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, 36+dataSize)
	b = append(b, "WAVEfmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = binary.LittleEndian.AppendUint16(b, uint16(channels))
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate))
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate*channels*2))
	b = binary.LittleEndian.AppendUint16(b, uint16(channels*2))
	b = binary.LittleEndian.AppendUint16(b, 16)
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, dataSize)
	b = append(b, make([]byte, dataSize)...)

	require.NoError(t, os.WriteFile(path, b, 0o644))
}

// TestMediaLength verifies the duration read from a WAV header.
func TestMediaLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 8000, 1, 2)

	got, err := MediaLength(path)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 0.01)

	bad := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(bad, []byte("not audio"), 0o644))
	_, err = MediaLength(bad)
	assert.Error(t, err)

	_, err = MediaLength(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

// TestSourceType verifies the extension to SOURCE type mapping.
func TestSourceType(t *testing.T) {
	assert.Equal(t, "WAVE", sourceType("/a/b.WAV"))
	assert.Equal(t, "FLAC", sourceType("x.flac"))
	assert.Equal(t, "MP3", sourceType("x.mp3"))
	assert.Equal(t, "VORBIS", sourceType("x.ogg"))
	assert.Equal(t, "WAVE", sourceType("x.unknown"))
}
