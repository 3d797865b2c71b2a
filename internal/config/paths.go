package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// normalize expands "~", resolves relative tool paths against ScriptDir and
// validates the enumerated fields.
func (c *Config) normalize() error {
	c.ScriptDir = expandHome(c.ScriptDir)
	c.EffectsDir = expandHome(c.EffectsDir)
	c.MetricsFile = expandHome(c.MetricsFile)

	c.Python = c.resolveCommand(c.Python)
	c.Analyzer = c.resolve(c.Analyzer)
	c.Generator = c.resolve(c.Generator)
	c.Processor = c.resolve(c.Processor)
	c.ParamsFile = c.resolve(c.ParamsFile)

	c.Backend = Backend(strings.ToLower(string(c.Backend)))
	switch c.Backend {
	case BackendLocal:
	case BackendDocker:
		if c.Docker.Image == "" {
			return model.NewCLIError(model.ExitGeneralError, "docker backend requires docker.image")
		}
	default:
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid backend %q (valid: local, docker)", c.Backend))
	}

	if c.Timeout <= 0 {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("timeout must be positive, got %s", c.Timeout))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	return nil
}

// resolve returns p as an absolute path, anchoring relative paths at
// ScriptDir.
func (c *Config) resolve(p string) string {
	if p == "" {
		return ""
	}
	p = expandHome(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.ScriptDir, p)
}

// resolveCommand is resolve for the interpreter: a bare name without a
// path separator (e.g. "python3") is kept as-is so it is looked up in PATH.
func (c *Config) resolveCommand(p string) string {
	if p != "" && !strings.ContainsAny(p, `/\`) && !strings.HasPrefix(p, "~") {
		return p
	}
	return c.resolve(p)
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Interpreter returns the interpreter for the selected backend.
func (c *Config) Interpreter() string {
	if c.Backend == BackendDocker {
		return c.Docker.Python
	}
	return c.Python
}

// InterpreterIsPath reports whether the interpreter is a host file path
// that can be checked on disk (as opposed to a PATH lookup name or a path
// inside the container image).
func (c *Config) InterpreterIsPath() bool {
	return c.Backend != BackendDocker && filepath.IsAbs(c.Python)
}

// View is the serializable form of Config used by "config show" and
// "config init". yaml.v3 and encoding/json both encode time.Duration as
// an integer of nanoseconds, so the timeout is carried as a string.
type View struct {
	ScriptDir   string       `yaml:"script_dir" json:"script_dir"`
	Python      string       `yaml:"python" json:"python"`
	Analyzer    string       `yaml:"analyzer" json:"analyzer"`
	Generator   string       `yaml:"generator" json:"generator"`
	Processor   string       `yaml:"processor" json:"processor"`
	EffectsDir  string       `yaml:"effects_dir" json:"effects_dir"`
	ParamsFile  string       `yaml:"params_file" json:"params_file"`
	Timeout     string       `yaml:"timeout" json:"timeout"`
	Backend     Backend      `yaml:"backend" json:"backend"`
	Docker      DockerConfig `yaml:"docker" json:"docker"`
	MetricsFile string       `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
	LogLevel    string       `yaml:"log_level" json:"log_level"`
}

// View returns the serializable form of the configuration.
func (c *Config) View() View {
	return View{
		ScriptDir:   c.ScriptDir,
		Python:      c.Python,
		Analyzer:    c.Analyzer,
		Generator:   c.Generator,
		Processor:   c.Processor,
		EffectsDir:  c.EffectsDir,
		ParamsFile:  c.ParamsFile,
		Timeout:     c.Timeout.String(),
		Backend:     c.Backend,
		Docker:      c.Docker,
		MetricsFile: c.MetricsFile,
		LogLevel:    c.LogLevel,
	}
}

// EncodeYAML renders the configuration as YAML.
func (c *Config) EncodeYAML() ([]byte, error) {
	view := c.View()
	return yaml.Marshal(&view)
}

// WriteDefault writes the default configuration to path as YAML, creating
// parent directories. It refuses to overwrite an existing file unless
// force is true.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return model.NewCLIError(model.ExitGeneralError,
				fmt.Sprintf("config file already exists: %s (use --force to overwrite)", path))
		}
	}

	cfg := Defaults()
	if err := cfg.normalize(); err != nil {
		return err
	}
	data, err := cfg.EncodeYAML()
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	header := []byte("# matchering-bridge configuration\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
