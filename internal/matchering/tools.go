package matchering

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/matchering-bridge/internal/config"
	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// Tools locates the external programs and the files they exchange.
type Tools struct {
	// Interpreter runs the scripts. Empty means the scripts are executed
	// directly.
	Interpreter string

	// CheckInterpreter enables the "Venv Python not found" check. It is
	// off when the interpreter is looked up in PATH or lives in an image.
	CheckInterpreter bool

	Analyzer  string
	Generator string
	Processor string

	// EffectsDir receives generated JSFX files.
	EffectsDir string

	// ParamsFile is the analyzer's JSON output and the generator's input.
	ParamsFile string
}

// ToolsFromConfig builds Tools from the effective configuration.
func ToolsFromConfig(cfg *config.Config) Tools {
	return Tools{
		Interpreter:      cfg.Interpreter(),
		CheckInterpreter: cfg.InterpreterIsPath(),
		Analyzer:         cfg.Analyzer,
		Generator:        cfg.Generator,
		Processor:        cfg.Processor,
		EffectsDir:       cfg.EffectsDir,
		ParamsFile:       cfg.ParamsFile,
	}
}

// command returns the argv for a script with the interpreter prefixed.
func (t Tools) command(script string, args ...string) []string {
	out := make([]string, 0, len(args)+2)
	if t.Interpreter != "" {
		out = append(out, t.Interpreter)
	}
	out = append(out, script)
	return append(out, args...)
}

// AnalyzerArgs returns: analyzer <target> <reference> <params>.
func (t Tools) AnalyzerArgs(target, reference string) []string {
	return t.command(t.Analyzer, target, reference, t.ParamsFile)
}

// GeneratorArgs returns: generator <params> <output> [profile]. The
// profile argument is only passed for named profiles.
func (t Tools) GeneratorArgs(output string, profile model.Profile) []string {
	args := t.command(t.Generator, t.ParamsFile, output)
	if !profile.IsDefault() {
		args = append(args, profile.Name)
	}
	return args
}

// ProcessorArgs returns: processor <target> <reference> <output>.
func (t Tools) ProcessorArgs(target, reference, output string) []string {
	return t.command(t.Processor, target, reference, output)
}

// JSFXPath returns where the effect for profile is written.
func (t Tools) JSFXPath(profile model.Profile) string {
	return filepath.Join(t.EffectsDir, profile.JSFXFile())
}

// Check reports missing tool files, in a fixed order. It backs the
// "doctor" command; the flows themselves only check the interpreter.
func (t Tools) Check() []string {
	var problems []string
	if t.CheckInterpreter && !isFile(t.Interpreter) {
		problems = append(problems, fmt.Sprintf("interpreter not found: %s", t.Interpreter))
	}
	for _, s := range []struct{ name, path string }{
		{"analyzer", t.Analyzer},
		{"generator", t.Generator},
		{"processor", t.Processor},
	} {
		if !isFile(s.path) {
			problems = append(problems, fmt.Sprintf("%s not found: %s", s.name, s.path))
		}
	}
	if info, err := os.Stat(t.EffectsDir); err != nil || !info.IsDir() {
		problems = append(problems, fmt.Sprintf("effects directory not found: %s", t.EffectsDir))
	}
	return problems
}

// isFile reports whether path names an existing regular file.
func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadEffectDescription returns the text of the "desc:" line of a JSFX
// file, which REAPER shows as the effect's name in the FX browser.
func ReadEffectDescription(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if desc, ok := strings.CutPrefix(line, "desc:"); ok {
			return strings.TrimSpace(desc), nil
		}
		// The description belongs to the header; stop at the first section.
		if strings.HasPrefix(line, "@") {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no desc: line in %s", path)
}
