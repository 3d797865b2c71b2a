package matchering

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/shinji-kodama/matchering-bridge/internal/metrics"
	"github.com/shinji-kodama/matchering-bridge/internal/model"
	"github.com/shinji-kodama/matchering-bridge/internal/runner"
)

// Dialog titles and texts shown to the user.
const (
	Title          = "Matchering"
	ErrorTitle     = "Matchering Error"
	ProfileTitle   = "Matchering Profile"
	ProfileCaption = "Profile name (e.g. Rock Ref, Steely Dan):"

	MasteredTrackName = "Mastered"

	ChoiceQuestion = "What do you want to do?\n\n" +
		"YES = Analyze + Real-time Plugin (JSFX)\n" +
		"   Analyzes your tracks and creates a tweakable plugin\n\n" +
		"NO = Process Offline (full render)\n" +
		"   Runs full matchering and creates a mastered file"

	// stderrLimit is how much tool stderr a failure dialog shows. The full
	// text goes to the console.
	stderrLimit = 500
)

// Project is the host the flows read the selection from and write their
// results to. Track and effect indices are zero-based.
type Project interface {
	// SelectedItems returns the selected media items in project order.
	SelectedItems() []model.MediaItem

	// AddTrackFX adds an effect by name or path and returns its index,
	// or -1 when the host cannot load it.
	AddTrackFX(track int, name string) (int, error)

	// OpenTrackFX shows the effect's window.
	OpenTrackFX(track, fx int) error

	// AppendTrack adds a named track after the last one and returns its index.
	AppendTrack(name string) int

	// SetOnlyTrackSelected selects track and deselects all others.
	SetOnlyTrackSelected(track int) error

	// InsertMedia places a media file on track at the edit cursor.
	InsertMedia(track int, path string) error

	// UpdateArrange makes pending edits visible (and, for a project file,
	// persistent).
	UpdateArrange() error
}

// UI is the user-facing side of the flows.
type UI interface {
	// Message shows an informational message box.
	Message(text, title string) error

	// Ask shows a Yes/No/Cancel question.
	Ask(text, title string) (model.Choice, error)

	// Input asks for one text value; ok is false when cancelled.
	Input(title, caption, initial string) (value string, ok bool, err error)

	// Console appends a line to the progress console.
	Console(text string)
}

// Selection is the validated pair of selected items.
type Selection struct {
	Target    model.MediaItem
	Reference model.MediaItem
}

// Workflow runs the matchering flows.
type Workflow struct {
	Project Project
	UI      UI
	Runner  runner.Runner
	Tools   Tools

	// Metrics records tool runs and flow outcomes. May be nil.
	Metrics *metrics.Recorder

	Logger *slog.Logger
}

// logger returns the configured logger or a discarding one.
func (w *Workflow) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// show displays a message box. A failing UI is logged; the flow result
// does not depend on it.
func (w *Workflow) show(text string) {
	if err := w.UI.Message(text, Title); err != nil {
		w.logger().Warn("failed to show message", "error", err)
	}
}

// Run is the main flow: check the interpreter, validate the selection and
// ask which action to take. Cancel returns nil.
func (w *Workflow) Run(ctx context.Context) error {
	// Step 1: The interpreter must exist before anything else happens.
	if err := w.CheckInterpreter(); err != nil {
		w.Metrics.ObserveFlow("main", "failed")
		return err
	}

	// Step 2: Resolve TARGET and REFERENCE.
	sel, err := w.SelectFiles()
	if err != nil {
		w.Metrics.ObserveFlow("main", "failed")
		return err
	}

	// Step 3: Ask what to do.
	choice, err := w.UI.Ask(ChoiceQuestion, Title)
	if err != nil {
		return fmt.Errorf("failed to ask for an action: %w", err)
	}
	w.logger().Debug("action chosen", "choice", choice)

	switch choice {
	case model.ChoiceAnalyze:
		return w.Analyze(ctx, sel)
	case model.ChoiceOffline:
		return w.Offline(ctx, sel)
	default:
		w.Metrics.ObserveFlow("main", "cancelled")
		return nil
	}
}

// CheckInterpreter reports a missing interpreter. It is a no-op when the
// interpreter is not a host path.
func (w *Workflow) CheckInterpreter() error {
	if !w.Tools.CheckInterpreter || isFile(w.Tools.Interpreter) {
		return nil
	}
	msg := "Venv Python not found at:\n" + w.Tools.Interpreter
	w.show(msg)
	return model.ReportedError(model.ExitToolNotFound, msg)
}

// SelectFiles validates that exactly two items are selected and that both
// source files exist. The first selected item is the TARGET, the second
// the REFERENCE.
func (w *Workflow) SelectFiles() (*Selection, error) {
	items := w.Project.SelectedItems()
	if len(items) != 2 {
		msg := fmt.Sprintf("Select exactly 2 items:\n"+
			"- First = TARGET (your song)\n"+
			"- Second = REFERENCE (desired sound)\n\n"+
			"Currently selected: %d", len(items))
		w.show(msg)
		return nil, model.ReportedError(model.ExitSelectionInvalid, msg)
	}

	for _, c := range []struct {
		role string
		item model.MediaItem
	}{
		{"target", items[0]},
		{"reference", items[1]},
	} {
		if !isFile(c.item.SourceFile) {
			msg := fmt.Sprintf("Could not find %s audio file:\n%s", c.role, c.item.SourceFile)
			w.show(msg)
			return nil, model.ReportedError(model.ExitSourceMissing, msg)
		}
	}

	return &Selection{Target: items[0], Reference: items[1]}, nil
}

// Analyze asks for a profile name, runs the analyzer and the JSFX
// generator, and loads the generated effect on the target's track.
func (w *Workflow) Analyze(ctx context.Context, sel *Selection) error {
	// Step 1: Profile name. Cancel ends the flow without a message.
	raw, ok, err := w.UI.Input(ProfileTitle, ProfileCaption, "")
	if err != nil {
		return fmt.Errorf("failed to ask for a profile name: %w", err)
	}
	if !ok {
		w.Metrics.ObserveFlow("analyze", "cancelled")
		return nil
	}
	profile := model.NewProfile(raw)
	jsfxPath := w.Tools.JSFXPath(profile)
	jsfxFile := profile.JSFXFile()

	w.UI.Console(fmt.Sprintf("Target: %s\nReference: %s\n", sel.Target.SourceFile, sel.Reference.SourceFile))
	if !profile.IsDefault() {
		w.UI.Console(fmt.Sprintf("Profile: %s\n", profile.Name))
	}

	// Step 2: Analyze, then generate the effect.
	if _, err := w.runStep(ctx, "analyzer", "Analyzing",
		w.Tools.AnalyzerArgs(sel.Target.SourceFile, sel.Reference.SourceFile)); err != nil {
		w.Metrics.ObserveFlow("analyze", "failed")
		return err
	}
	if _, err := w.runStep(ctx, "generator", "Generating JSFX",
		w.Tools.GeneratorArgs(jsfxPath, profile)); err != nil {
		w.Metrics.ObserveFlow("analyze", "failed")
		return err
	}

	if desc, err := ReadEffectDescription(jsfxPath); err == nil {
		w.UI.Console(fmt.Sprintf("Effect: %s\n", desc))
	}

	// Step 3: Load the effect on the target's track, by full path first
	// and by file name as a fallback.
	track := sel.Target.Track
	fx := w.addFX(track, jsfxPath)
	if fx < 0 {
		fx = w.addFX(track, jsfxFile)
	}

	if fx < 0 {
		w.show(fmt.Sprintf("JSFX generated but couldn't auto-load it.\n"+
			"Add it manually: FX > JS > %s\n\n"+
			"File: %s", jsfxFile, jsfxPath))
		w.Metrics.ObserveFlow("analyze", "manual")
		return nil
	}

	if err := w.Project.OpenTrackFX(track, fx); err != nil {
		return model.WrapCLIError(model.ExitProjectError, "failed to open the effect", err)
	}
	if err := w.Project.UpdateArrange(); err != nil {
		return err
	}

	w.show(pluginLoadedMessage(profile))
	w.Metrics.ObserveFlow("analyze", "done")
	return nil
}

// addFX adds an effect and maps host errors to "not loaded".
func (w *Workflow) addFX(track int, name string) int {
	fx, err := w.Project.AddTrackFX(track, name)
	if err != nil {
		w.logger().Warn("failed to add effect", "track", track, "fx", name, "error", err)
		return -1
	}
	return fx
}

func pluginLoadedMessage(profile model.Profile) string {
	return "Real-time mastering plugin loaded!\n" +
		"Profile: " + profile.DisplayName() + "\n\n" +
		"FIR convolution - exact matchering EQ curve.\n" +
		"Latency: ~93ms (auto-compensated by REAPER PDC)\n\n" +
		"Sliders:\n" +
		"- Input Gain: RMS loudness match\n" +
		"- Low/Mid/High Tweak: post-EQ seasoning\n" +
		"- 42069 Compressor: FET compression\n" +
		"- Dry/Wet: blend with original\n" +
		"- Limiter: brickwall protection"
}

// Offline renders the mastered file next to the target and places it on
// a new "Mastered" track.
func (w *Workflow) Offline(ctx context.Context, sel *Selection) error {
	output := model.MasteredPath(sel.Target.SourceFile)

	w.UI.Console(fmt.Sprintf("Target: %s\nReference: %s\n", sel.Target.SourceFile, sel.Reference.SourceFile))

	// Step 1: Render.
	if _, err := w.runStep(ctx, "processor", "Processing",
		w.Tools.ProcessorArgs(sel.Target.SourceFile, sel.Reference.SourceFile, output)); err != nil {
		w.Metrics.ObserveFlow("offline", "failed")
		return err
	}

	// Step 2: A zero exit status is not enough; the file must exist.
	if !isFile(output) {
		msg := "Matchering ran but output file was not created."
		w.show(msg)
		w.Metrics.ObserveFlow("offline", "failed")
		return model.ReportedError(model.ExitOutputMissing, msg)
	}

	// Step 3: New track, selected alone, with the rendered file on it.
	track := w.Project.AppendTrack(MasteredTrackName)
	if err := w.Project.SetOnlyTrackSelected(track); err != nil {
		return model.WrapCLIError(model.ExitProjectError, "failed to select the new track", err)
	}
	if err := w.Project.InsertMedia(track, output); err != nil {
		return model.WrapCLIError(model.ExitProjectError, "failed to insert the mastered file", err)
	}
	if err := w.Project.UpdateArrange(); err != nil {
		return err
	}

	w.show("Done! Mastered file placed on new track.\n\nOutput: " + output)
	w.Metrics.ObserveFlow("offline", "done")
	return nil
}

// Regenerate runs only the generator for profile, rebuilding the effect
// from the current params file. It is used when the params file changes
// on disk; the project is not touched because the effect is already
// loaded and REAPER recompiles a JSFX when its file changes.
func (w *Workflow) Regenerate(ctx context.Context, profile model.Profile) error {
	if _, err := w.runStep(ctx, "generator", "Generating JSFX",
		w.Tools.GeneratorArgs(w.Tools.JSFXPath(profile), profile)); err != nil {
		w.Metrics.ObserveFlow("regenerate", "failed")
		return err
	}
	w.Metrics.ObserveFlow("regenerate", "done")
	return nil
}

// runStep runs one external program. Progress and output go to the
// console; any failure is shown in a message box and returned as a
// reported CLIError so the calling flow stops.
func (w *Workflow) runStep(ctx context.Context, tool, label string, args []string) (*runner.Result, error) {
	w.UI.Console(fmt.Sprintf("Matchering: %s...\n", label))
	w.logger().Debug("running", "tool", tool, "args", strings.Join(args, " "))

	res, err := w.Runner.Run(ctx, args)

	var elapsed time.Duration
	if res != nil {
		elapsed = res.Duration
		w.logger().Debug("finished", "tool", tool, "exit", res.ExitCode, "duration", res.Duration)
	}

	var timeoutErr *runner.TimeoutError
	var exitErr *runner.ExitError
	switch {
	case err == nil:
		w.Metrics.ObserveTool(tool, metrics.OutcomeSuccess, elapsed)
		w.UI.Console(res.Stdout + "\n")
		return res, nil

	case errors.As(err, &timeoutErr):
		w.Metrics.ObserveTool(tool, metrics.OutcomeTimeout, timeoutErr.Timeout)
		msg := fmt.Sprintf("%s timed out after %s.", label, runner.HumanDuration(timeoutErr.Timeout))
		w.show(msg)
		return nil, model.ReportedError(model.ExitToolTimeout, msg)

	case errors.As(err, &exitErr):
		w.Metrics.ObserveTool(tool, metrics.OutcomeFailed, elapsed)
		msg := fmt.Sprintf("%s failed:\n%s", label, runner.Truncate(exitErr.Stderr, stderrLimit))
		w.show(msg)
		w.UI.Console("STDERR:\n" + exitErr.Stderr + "\n")
		w.logger().Error("tool failed", "tool", tool, "exit", exitErr.ExitCode)
		return nil, model.ReportedError(model.ExitToolFailed, fmt.Sprintf("%s failed", label))

	default:
		w.Metrics.ObserveTool(tool, metrics.OutcomeError, elapsed)
		msg := "Error: " + err.Error()
		w.show(msg)
		w.logger().Error("tool could not run", "tool", tool, "error", err)
		code := model.ExitToolFailed
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
			code = model.ExitToolNotFound
		}
		return nil, &model.CLIError{Code: code, Message: msg, Err: err, Reported: true}
	}
}
