// Package config loads the matchering-bridge configuration.
//
// The configuration tells the CLI where the external matchering programs
// live, which interpreter runs them, where REAPER looks for JSFX effects and
// how long a single program may run. It can be written as YAML or as JSON
// (JSONC comments are accepted, stripped with github.com/tidwall/jsonc), and
// every key can be overridden with a MATCHERING_<KEY> environment variable.
//
// Loading happens in three layers, each overriding the previous one:
//  1. Built-in defaults (Defaults)
//  2. The configuration file, decoded into a generic map
//  3. Environment variables
//
// The merged map is decoded into Config with github.com/mitchellh/mapstructure,
// which gives us weak typing ("90" and 90 both work for numbers) and a
// duration hook so "timeout: 5m" reads naturally.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// AppName is used for the default configuration directory and file name.
const AppName = "matchering-bridge"

// EnvPrefix is the prefix of environment variables that override config keys.
const EnvPrefix = "MATCHERING_"

// Backend selects where the external programs run.
type Backend string

const (
	// BackendLocal runs programs directly on the host.
	BackendLocal Backend = "local"

	// BackendDocker runs programs inside a container image.
	BackendDocker Backend = "docker"
)

// Config holds the effective configuration after all layers are merged.
//
// The mapstructure tags are the YAML/JSON keys and, upper-cased with
// dots replaced by underscores, the environment variable names
// (e.g. docker.image → MATCHERING_DOCKER_IMAGE).
type Config struct {
	// ScriptDir is the directory holding the matchering scripts.
	// Relative tool paths are resolved against it.
	ScriptDir string `mapstructure:"script_dir"`

	// Python is the interpreter that runs the scripts (usually a virtualenv
	// python3). Empty means the tools are executed directly.
	Python string `mapstructure:"python"`

	// Analyzer is invoked as: analyzer <target> <reference> <params_json>.
	Analyzer string `mapstructure:"analyzer"`

	// Generator is invoked as: generator <params_json> <output.jsfx> [profile].
	Generator string `mapstructure:"generator"`

	// Processor is invoked as: processor <target> <reference> <output.wav>.
	Processor string `mapstructure:"processor"`

	// EffectsDir is REAPER's JSFX directory. Generated effects are written here.
	EffectsDir string `mapstructure:"effects_dir"`

	// ParamsFile is the intermediate JSON passed from analyzer to generator.
	ParamsFile string `mapstructure:"params_file"`

	// Timeout bounds each external program run.
	Timeout time.Duration `mapstructure:"timeout"`

	// Backend selects local or docker execution.
	Backend Backend `mapstructure:"backend"`

	// Docker configures the docker backend.
	Docker DockerConfig `mapstructure:"docker"`

	// MetricsFile, when set, receives tool run metrics in the Prometheus
	// text exposition format after every command.
	MetricsFile string `mapstructure:"metrics_file"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// DockerConfig configures the container backend.
type DockerConfig struct {
	// Image is the container image holding the interpreter and the scripts.
	Image string `mapstructure:"image" yaml:"image" json:"image"`

	// Python is the interpreter inside the image. It replaces the host
	// interpreter when the docker backend is selected.
	Python string `mapstructure:"python" yaml:"python" json:"python"`

	// Workdir is the working directory inside the container.
	Workdir string `mapstructure:"workdir" yaml:"workdir,omitempty" json:"workdir,omitempty"`
}

// Defaults returns the built-in configuration. The layout matches a
// checkout of the matchering scripts with a virtualenv next to them:
//
//	~/matchering/
//	  venv/bin/python3
//	  matchering_analyzer.py
//	  matchering_process.py
//	  jsfx_generator.py
func Defaults() *Config {
	home, _ := os.UserHomeDir()
	scriptDir := filepath.Join(home, "matchering")

	return &Config{
		ScriptDir:  scriptDir,
		Python:     filepath.Join("venv", "bin", "python3"),
		Analyzer:   "matchering_analyzer.py",
		Generator:  "jsfx_generator.py",
		Processor:  "matchering_process.py",
		EffectsDir: filepath.Join(home, ".config", "REAPER", "Effects"),
		ParamsFile: "matchering_params.json",
		Timeout:    300 * time.Second,
		Backend:    BackendLocal,
		Docker:     DockerConfig{Python: "python3"},
		LogLevel:   "info",
	}
}

// DefaultPath returns the default configuration file location:
// $XDG_CONFIG_HOME/matchering-bridge/config.yaml (os.UserConfigDir).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

// Load builds the effective configuration.
//
// If path is empty, DefaultPath is used and a missing file simply means
// "defaults only". An explicitly requested file that does not exist is
// an error, because the user clearly expected it to be read.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	// Start from the defaults, expressed as a map so that the file and the
	// environment can override individual keys without zeroing the rest.
	merged, err := toMap(Defaults())
	if err != nil {
		return nil, err
	}

	if path != "" {
		fileMap, err := readFile(path)
		switch {
		case err == nil:
			mergeMaps(merged, fileMap)
		case os.IsNotExist(err) && !explicit:
			// No user config: defaults only.
		default:
			return nil, err
		}
	}

	known, err := toMap(Defaults())
	if err != nil {
		return nil, err
	}
	mergeMaps(merged, envOverrides(os.Environ(), known))

	cfg := &Config{}
	if err := decode(merged, cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile reads a YAML or JSON(C) file into a generic map.
// The format is chosen by extension; anything that is not .json/.jsonc
// is treated as YAML.
func readFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// Strip // and /* */ comments and trailing commas before parsing.
		if err := json.Unmarshal(jsonc.ToJSON(data), &out); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	return out, nil
}

// envOverrides converts MATCHERING_* variables into a nested map.
// A double underscore is not needed for nesting: the known nested section
// (docker) is matched by prefix, so MATCHERING_DOCKER_IMAGE maps to
// docker.image. Only names present in known (the defaults in map form)
// are taken; other variables that happen to share the prefix are ignored.
func envOverrides(environ []string, known map[string]interface{}) map[string]interface{} {
	dockerKeys, _ := known["docker"].(map[string]interface{})

	out := make(map[string]interface{})
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

		if sub, found := strings.CutPrefix(name, "docker_"); found {
			if _, ok := dockerKeys[sub]; !ok {
				continue
			}
			section, _ := out["docker"].(map[string]interface{})
			if section == nil {
				section = make(map[string]interface{})
				out["docker"] = section
			}
			section[sub] = value
			continue
		}

		if _, ok := known[name]; !ok || name == "docker" {
			continue
		}
		out[name] = value
	}
	return out
}

// mergeMaps copies src into dst, recursing into nested maps so that a
// partial section (e.g. only docker.image) keeps the other defaults.
func mergeMaps(dst, src map[string]interface{}) {
	for k, v := range src {
		srcSub, srcIsMap := v.(map[string]interface{})
		dstSub, dstIsMap := dst[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			mergeMaps(dstSub, srcSub)
			continue
		}
		dst[k] = v
	}
}

// toMap converts a Config into the generic map form used for merging.
func toMap(cfg *Config) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	// mapstructure leaves nested structs as struct values; convert the
	// docker section as well so mergeMaps can recurse into it.
	docker := make(map[string]interface{})
	if err := mapstructure.Decode(cfg.Docker, &docker); err != nil {
		return nil, err
	}
	out["docker"] = docker
	return out, nil
}

// decode turns the merged map into a Config.
func decode(in map[string]interface{}, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// secondsToDurationHook lets plain numbers mean seconds for duration
// fields ("timeout: 300" in YAML, MATCHERING_TIMEOUT=300 in the
// environment), which is how most users write it. Strings with a unit
// ("5m") are left to mapstructure.StringToTimeDurationHookFunc.
func secondsToDurationHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return time.Duration(n) * time.Second, nil
		}
	}
	return data, nil
}
