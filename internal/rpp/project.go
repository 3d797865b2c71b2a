package rpp

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/moby/sys/atomicwriter"

	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// rootName is the chunk name every REAPER project starts with.
const rootName = "REAPER_PROJECT"

// pluginChunks are the FX chain entries that count as one effect each.
var pluginChunks = map[string]bool{
	"VST": true, "JS": true, "AU": true, "CLAP": true,
	"DX": true, "LV2": true, "VIDEO_EFFECT": true,
}

// newGUID returns a REAPER-style GUID ("{XXXXXXXX-...}").
// It is a variable so tests can make output deterministic.
var newGUID = func() string {
	return "{" + strings.ToUpper(uuid.NewString()) + "}"
}

// Project is an RPP file loaded into memory.
//
// Track and item indices are zero-based in project order, the same
// numbering REAPER's scripting API uses.
type Project struct {
	// Path is the project file location. Relative media paths are
	// resolved against its directory.
	Path string

	// EffectsDir is REAPER's JSFX directory. JS effects are referenced
	// relative to it inside the project.
	EffectsDir string

	// MediaLength returns the duration in seconds of a media file.
	// Defaults to MediaLength (WAV headers).
	MediaLength func(path string) (float64, error)

	root  *Chunk
	dirty bool
}

// Load reads and parses the project at path.
func Load(path, effectsDir string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(model.ExitProjectError,
				fmt.Sprintf("project file not found: %s", path), err)
		}
		return nil, model.WrapCLIError(model.ExitProjectError, "failed to read project file", err)
	}

	root, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitProjectError,
			fmt.Sprintf("failed to parse project %s", path), err)
	}
	if root.Name() != rootName {
		return nil, model.NewCLIError(model.ExitProjectError,
			fmt.Sprintf("%s is not a REAPER project (root chunk %q)", path, root.Name()))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Project{
		Path:        abs,
		EffectsDir:  effectsDir,
		MediaLength: MediaLength,
		root:        root,
	}, nil
}

// Dirty reports whether the project has unsaved edits.
func (p *Project) Dirty() bool {
	return p.dirty
}

// Tracks returns the project's tracks in order.
func (p *Project) Tracks() []*Chunk {
	return p.root.Chunks("TRACK")
}

// track returns the track at index, or an error when out of range.
func (p *Project) track(index int) (*Chunk, error) {
	tracks := p.Tracks()
	if index < 0 || index >= len(tracks) {
		return nil, fmt.Errorf("track index %d out of range (project has %d tracks)", index, len(tracks))
	}
	return tracks[index], nil
}

// CountTracks returns the number of tracks.
func (p *Project) CountTracks() int {
	return len(p.Tracks())
}

// SelectedItems returns every item whose SEL flag is set, in project
// order (by track, then by position within the track chunk).
func (p *Project) SelectedItems() []model.MediaItem {
	var out []model.MediaItem
	itemIndex := 0
	for ti, track := range p.Tracks() {
		for _, item := range track.Chunks("ITEM") {
			if sel, _ := item.Value("SEL"); sel == "1" {
				out = append(out, model.MediaItem{
					Index:      itemIndex,
					Track:      ti,
					SourceFile: p.itemSourceFile(item),
					Position:   floatValue(item, "POSITION"),
				})
			}
			itemIndex++
		}
	}
	return out
}

// itemSourceFile returns the media file of the item's active take,
// or "" when the take has no file-backed source.
//
// Takes after the first start with a "TAKE" line; "TAKE SEL" marks the
// active one. Without such a marker the first take is active.
func (p *Project) itemSourceFile(item *Chunk) string {
	take, active := 0, 0
	sources := make(map[int]*Chunk)

	for _, n := range item.Children {
		switch v := n.(type) {
		case *Line:
			if v.Key() == "TAKE" {
				take++
				for _, f := range v.Fields()[1:] {
					if f == "SEL" {
						active = take
					}
				}
			}
		case *Chunk:
			if v.Name() == "SOURCE" && sources[take] == nil {
				sources[take] = v
			}
		}
	}

	src := sources[active]
	if src == nil {
		return ""
	}
	file := sourceFile(src)
	if file == "" {
		return ""
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(filepath.Dir(p.Path), file)
	}
	return filepath.Clean(file)
}

// sourceFile finds the FILE of a source, descending into wrapper sources
// such as SECTION (reversed or trimmed media) that nest the real one.
func sourceFile(src *Chunk) string {
	if f, ok := src.Value("FILE"); ok {
		return f
	}
	if inner := src.Chunk("SOURCE"); inner != nil {
		return sourceFile(inner)
	}
	return ""
}

// AddTrackFX appends a JS effect to the track's FX chain and returns its
// index in the chain. name may be an absolute path inside EffectsDir or a
// path relative to it. When the effect cannot be resolved the method
// returns -1 and no error, mirroring REAPER's TrackFX_AddByName.
func (p *Project) AddTrackFX(trackIndex int, name string) (int, error) {
	track, err := p.track(trackIndex)
	if err != nil {
		return -1, err
	}

	rel, ok := p.resolveEffect(name)
	if !ok {
		return -1, nil
	}

	chain := track.Chunk("FXCHAIN")
	if chain == nil {
		chain = newFXChain()
		// REAPER writes the FX chain before the track's items.
		track.InsertBefore("ITEM", chain)
	}

	index := countFX(chain)
	chain.Append(
		NewLine("BYPASS", "0", "0", "0"),
		NewChunk("JS", rel, ""),
		NewLine("FLOATPOS", "0", "0", "0", "0"),
		NewLine("FXID", newGUID()),
		NewLine("WAK", "0", "0"),
	)
	p.dirty = true
	return index, nil
}

// OpenTrackFX shows the track's FX chain window with the given effect
// selected.
func (p *Project) OpenTrackFX(trackIndex, fxIndex int) error {
	track, err := p.track(trackIndex)
	if err != nil {
		return err
	}
	chain := track.Chunk("FXCHAIN")
	if chain == nil || fxIndex < 0 || fxIndex >= countFX(chain) {
		return fmt.Errorf("track %d has no effect at index %d", trackIndex, fxIndex)
	}
	// SHOW is one-based (0 hides the window); LASTSEL is zero-based.
	chain.Set("SHOW", strconv.Itoa(fxIndex+1))
	chain.Set("LASTSEL", strconv.Itoa(fxIndex))
	p.dirty = true
	return nil
}

// TrackFX returns the effect names in the track's FX chain.
func (p *Project) TrackFX(trackIndex int) ([]string, error) {
	track, err := p.track(trackIndex)
	if err != nil {
		return nil, err
	}
	chain := track.Chunk("FXCHAIN")
	if chain == nil {
		return nil, nil
	}
	var names []string
	for _, n := range chain.Children {
		if ch, ok := n.(*Chunk); ok && pluginChunks[ch.Name()] {
			params := ch.Params()
			name := ""
			if len(params) > 0 {
				name = params[0]
			}
			names = append(names, name)
		}
	}
	return names, nil
}

// resolveEffect maps an effect path to the name REAPER stores in the
// project: the path relative to EffectsDir, with forward slashes.
func (p *Project) resolveEffect(name string) (string, bool) {
	if p.EffectsDir == "" || name == "" {
		return "", false
	}

	full := name
	if !filepath.IsAbs(full) {
		full = filepath.Join(p.EffectsDir, name)
	}
	rel, err := filepath.Rel(p.EffectsDir, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// AppendTrack adds a track named name after the last track and returns
// its index.
func (p *Project) AppendTrack(name string) int {
	index := p.CountTracks()
	guid := newGUID()

	track := NewChunk("TRACK", guid)
	track.Append(
		NewLine("NAME", name),
		NewLine("PEAKCOL", "16576"),
		NewLine("BEAT", "-1"),
		NewLine("AUTOMODE", "0"),
		NewLine("VOLPAN", "1", "0", "-1", "-1", "1"),
		NewLine("MUTESOLO", "0", "0", "0"),
		NewLine("IPHASE", "0"),
		NewLine("ISBUS", "0", "0"),
		NewLine("SEL", "0"),
		NewLine("REC", "0", "0", "1", "0", "0", "0", "0", "0"),
		NewLine("NCHAN", "2"),
		NewLine("TRACKID", guid),
	)
	p.root.InsertAfterLast("TRACK", track)
	p.dirty = true
	return index
}

// SetTrackName renames a track.
func (p *Project) SetTrackName(trackIndex int, name string) error {
	track, err := p.track(trackIndex)
	if err != nil {
		return err
	}
	track.Set("NAME", name)
	p.dirty = true
	return nil
}

// TrackName returns a track's name ("" when unnamed).
func (p *Project) TrackName(trackIndex int) (string, error) {
	track, err := p.track(trackIndex)
	if err != nil {
		return "", err
	}
	name, _ := track.Value("NAME")
	return name, nil
}

// SetOnlyTrackSelected selects one track and deselects all others.
func (p *Project) SetOnlyTrackSelected(trackIndex int) error {
	if _, err := p.track(trackIndex); err != nil {
		return err
	}
	for i, t := range p.Tracks() {
		flag := "0"
		if i == trackIndex {
			flag = "1"
		}
		t.Set("SEL", flag)
	}
	p.dirty = true
	return nil
}

// SelectedTracks returns the indices of selected tracks.
func (p *Project) SelectedTracks() []int {
	var out []int
	for i, t := range p.Tracks() {
		if sel, _ := t.Value("SEL"); sel == "1" {
			out = append(out, i)
		}
	}
	return out
}

// InsertMedia places path as a new item on the track at the edit cursor.
// Like REAPER's "insert media", the new item becomes the only selected
// item in the project.
func (p *Project) InsertMedia(trackIndex int, path string) error {
	track, err := p.track(trackIndex)
	if err != nil {
		return err
	}

	lengthOf := p.MediaLength
	if lengthOf == nil {
		lengthOf = MediaLength
	}
	length, err := lengthOf(path)
	if err != nil {
		return fmt.Errorf("failed to read media length of %s: %w", path, err)
	}

	// Deselect every other item first.
	itemCount := 0
	for _, t := range p.Tracks() {
		for _, item := range t.Chunks("ITEM") {
			item.Set("SEL", "0")
			itemCount++
		}
	}

	position := floatValue(p.root, "CURSOR")

	source := NewChunk("SOURCE", sourceType(path))
	source.Append(NewLine("FILE", path))

	item := NewChunk("ITEM")
	item.Append(
		NewLine("POSITION", formatFloat(position)),
		NewLine("SNAPOFFS", "0"),
		NewLine("LENGTH", formatFloat(length)),
		NewLine("LOOP", "0"),
		NewLine("ALLTAKES", "0"),
		NewLine("FADEIN", "1", "0", "0", "1", "0", "0", "0"),
		NewLine("FADEOUT", "1", "0", "0", "1", "0", "0", "0"),
		NewLine("MUTE", "0", "0"),
		NewLine("SEL", "1"),
		NewLine("IGUID", newGUID()),
		NewLine("IID", strconv.Itoa(itemCount+1)),
		NewLine("NAME", filepath.Base(path)),
		NewLine("VOLPAN", "1", "0", "1", "-1"),
		NewLine("SOFFS", "0"),
		NewLine("PLAYRATE", "1", "1", "0", "-1", "0", "0.0025"),
		NewLine("CHANMODE", "0"),
		NewLine("GUID", newGUID()),
		source,
	)
	track.Append(item)
	p.dirty = true
	return nil
}

// UpdateArrange writes pending edits to disk. The previous file is kept
// as "<path>-bak" and the new content replaces the project atomically,
// so REAPER never sees a half-written file.
func (p *Project) UpdateArrange() error {
	if !p.dirty {
		return nil
	}

	var buf bytes.Buffer
	if err := Write(&buf, p.root); err != nil {
		return model.WrapCLIError(model.ExitProjectError, "failed to serialize project", err)
	}

	info, err := os.Stat(p.Path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode().Perm()
		if prev, readErr := os.ReadFile(p.Path); readErr == nil {
			if err := atomicwriter.WriteFile(p.Path+"-bak", prev, mode); err != nil {
				return model.WrapCLIError(model.ExitProjectError, "failed to write project backup", err)
			}
		}
	}

	if err := atomicwriter.WriteFile(p.Path, buf.Bytes(), mode); err != nil {
		return model.WrapCLIError(model.ExitProjectError,
			fmt.Sprintf("failed to write project %s", p.Path), err)
	}
	p.dirty = false
	return nil
}

// newFXChain returns an empty FX chain with the window hidden.
func newFXChain() *Chunk {
	chain := NewChunk("FXCHAIN")
	chain.Append(
		NewLine("WNDRECT", "0", "0", "0", "0"),
		NewLine("SHOW", "0"),
		NewLine("LASTSEL", "0"),
		NewLine("DOCKED", "0"),
	)
	return chain
}

// countFX counts the effects in an FX chain.
func countFX(chain *Chunk) int {
	n := 0
	for _, c := range chain.Children {
		if ch, ok := c.(*Chunk); ok && pluginChunks[ch.Name()] {
			n++
		}
	}
	return n
}

// floatValue reads a numeric line value, 0 when missing or malformed.
func floatValue(c *Chunk, key string) float64 {
	v, _ := c.Value(key)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// formatFloat renders seconds the way REAPER writes them (no exponent,
// no trailing zeros).
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
