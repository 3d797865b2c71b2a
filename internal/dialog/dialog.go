package dialog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5C07B"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3F4451")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF"))
)

// Presets holds answers given up front on the command line. A nil field
// means "not preset".
type Presets struct {
	Action  *model.Choice
	Profile *string
}

// Options configures a Terminal.
type Options struct {
	In      io.Reader
	Out     io.Writer
	Console io.Writer

	// JSON switches message boxes and answers to JSON lines on Out.
	JSON bool

	// Interactive overrides terminal detection when non-nil.
	Interactive *bool

	Presets Presets
}

// Terminal is a dialog front end bound to a terminal (or pipes).
type Terminal struct {
	in          *bufio.Reader
	out         io.Writer
	console     io.Writer
	json        bool
	interactive bool
	presets     Presets
}

// New creates a Terminal. Unset streams default to the process's stdin,
// stdout and stderr; interactivity is detected on stdin with x/term.
func New(opts Options) *Terminal {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Console == nil {
		opts.Console = os.Stderr
	}

	interactive := false
	if opts.Interactive != nil {
		interactive = *opts.Interactive
	} else if f, ok := opts.In.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	return &Terminal{
		in:          bufio.NewReader(opts.In),
		out:         opts.Out,
		console:     opts.Console,
		json:        opts.JSON,
		interactive: interactive,
		presets:     opts.Presets,
	}
}

// Interactive reports whether prompts are answered by a person.
func (t *Terminal) Interactive() bool {
	return t.interactive
}

// event is one JSON line written in JSON mode.
type event struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Answer    string `json:"answer,omitempty"`
	Value     string `json:"value,omitempty"`
	Preset    bool   `json:"preset,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

func (t *Terminal) emit(ev event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(t.out, string(data))
	return err
}

// Render returns text framed in a message box with its title.
func Render(title, text string) string {
	body := titleStyle.Render(title) + "\n\n" + text
	return boxStyle.Render(body)
}

// Message shows an informational message box.
func (t *Terminal) Message(text, title string) error {
	if t.json {
		return t.emit(event{Type: "message", Title: title, Text: text})
	}
	_, err := fmt.Fprintln(t.out, Render(title, text))
	return err
}

// Console appends text to the console stream, adding a trailing newline
// when missing.
func (t *Terminal) Console(text string) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	fmt.Fprint(t.console, text)
}

// Ask shows a Yes/No/Cancel question. Yes maps to model.ChoiceAnalyze and
// No to model.ChoiceOffline. A preset action answers without reading
// input; end of input answers Cancel.
func (t *Terminal) Ask(text, title string) (model.Choice, error) {
	if t.presets.Action != nil || !t.interactive {
		choice := model.ChoiceCancel
		if t.presets.Action != nil {
			choice = *t.presets.Action
		}
		return choice, t.reportAnswer(event{
			Type: "question", Title: title, Text: text,
			Answer: choice.String(), Preset: t.presets.Action != nil,
		})
	}

	if t.json {
		if err := t.emit(event{Type: "question", Title: title, Text: text}); err != nil {
			return model.ChoiceCancel, err
		}
	} else {
		if _, err := fmt.Fprintln(t.out, Render(title, text)); err != nil {
			return model.ChoiceCancel, err
		}
	}

	for {
		fmt.Fprint(t.out, promptStyle.Render("[y]es / [n]o / [c]ancel: "))
		line, err := t.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(t.out)
				return model.ChoiceCancel, nil
			}
			return model.ChoiceCancel, err
		}
		choice, err := model.ParseChoice(line)
		if err == nil {
			return choice, nil
		}
		fmt.Fprintln(t.out, "Please answer y, n or c.")
	}
}

// Input asks for a single text value. A preset profile answers without
// reading input. ok is false when the user cancels (end of input, or no
// preset in non-interactive mode).
func (t *Terminal) Input(title, caption, initial string) (string, bool, error) {
	if t.presets.Profile != nil || !t.interactive {
		if t.presets.Profile == nil {
			return "", false, t.reportAnswer(event{Type: "input", Title: title, Text: caption, Cancelled: true})
		}
		value := *t.presets.Profile
		return value, true, t.reportAnswer(event{
			Type: "input", Title: title, Text: caption, Value: value, Preset: true,
		})
	}

	if t.json {
		if err := t.emit(event{Type: "input", Title: title, Text: caption}); err != nil {
			return "", false, err
		}
	} else {
		fmt.Fprintln(t.out, titleStyle.Render(title))
	}

	prompt := caption + " "
	if initial != "" {
		prompt = fmt.Sprintf("%s [%s] ", caption, initial)
	}
	fmt.Fprint(t.out, promptStyle.Render(prompt))

	line, err := t.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(t.out)
			return "", false, nil
		}
		return "", false, err
	}
	if line == "" {
		line = initial
	}
	return line, true, nil
}

// reportAnswer records a prompt answered without user input.
func (t *Terminal) reportAnswer(ev event) error {
	if t.json {
		return t.emit(ev)
	}
	answer := ev.Answer
	if ev.Type == "input" {
		answer = fmt.Sprintf("%q", ev.Value)
		if ev.Cancelled {
			answer = "cancel"
		}
	}
	source := "no terminal"
	if ev.Preset {
		source = "preset"
	}
	_, err := fmt.Fprintf(t.out, "%s: %s (%s)\n", ev.Title, answer, source)
	return err
}

// readLine returns the next input line without its line ending. A final
// line without a newline is returned before io.EOF.
func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
