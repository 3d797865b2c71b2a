package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// isolateEnv points HOME and XDG_CONFIG_HOME at a temporary directory and
// clears MATCHERING_* overrides from the developer's shell, so every test
// starts from the built-in defaults. It returns the fake home directory.
func isolateEnv(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{
		"SCRIPT_DIR", "PYTHON", "ANALYZER", "GENERATOR", "PROCESSOR",
		"EFFECTS_DIR", "PARAMS_FILE", "TIMEOUT", "BACKEND", "DOCKER_IMAGE",
		"DOCKER_WORKDIR", "DOCKER_PYTHON", "METRICS_FILE", "LOG_LEVEL",
	} {
		t.Setenv(EnvPrefix+key, "")
		require.NoError(t, os.Unsetenv(EnvPrefix+key))
	}
	return home
}

// writeFile creates a config fixture in a temporary directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoad_DefaultsWhenNoFile verifies that a missing default config file
// is not an error and yields the built-in layout.
func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	home := isolateEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	scriptDir := filepath.Join(home, "matchering")
	assert.Equal(t, scriptDir, cfg.ScriptDir)
	assert.Equal(t, filepath.Join(scriptDir, "venv", "bin", "python3"), cfg.Python)
	assert.Equal(t, filepath.Join(scriptDir, "matchering_analyzer.py"), cfg.Analyzer)
	assert.Equal(t, filepath.Join(scriptDir, "jsfx_generator.py"), cfg.Generator)
	assert.Equal(t, filepath.Join(scriptDir, "matchering_process.py"), cfg.Processor)
	assert.Equal(t, filepath.Join(scriptDir, "matchering_params.json"), cfg.ParamsFile)
	assert.Equal(t, filepath.Join(home, ".config", "REAPER", "Effects"), cfg.EffectsDir)
	assert.Equal(t, 300*time.Second, cfg.Timeout)
	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, "info", cfg.LogLevel)
}

// TestLoad_ExplicitMissingFile verifies that a config file the user asked
// for by name must exist.
func TestLoad_ExplicitMissingFile(t *testing.T) {
	isolateEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// TestLoad_YAML verifies partial YAML files override only the keys they name.
func TestLoad_YAML(t *testing.T) {
	isolateEnv(t)

	path := writeFile(t, "config.yaml", `
script_dir: /opt/plugin
python: python3
timeout: 90s
docker:
  workdir: /work
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/plugin", cfg.ScriptDir)
	// A bare interpreter name is left for PATH lookup.
	assert.Equal(t, "python3", cfg.Python)
	assert.Equal(t, filepath.Join("/opt/plugin", "matchering_analyzer.py"), cfg.Analyzer)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, "/work", cfg.Docker.Workdir)
}

// TestLoad_JSONC verifies that JSON configs may carry comments and
// trailing commas, and that numeric timeouts mean seconds.
func TestLoad_JSONC(t *testing.T) {
	isolateEnv(t)

	path := writeFile(t, "config.jsonc", `{
	// where the scripts live
	"script_dir": "/srv/matchering",
	/* five minutes is too long on CI */
	"timeout": 42,
	"log_level": "DEBUG",
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/matchering", cfg.ScriptDir)
	assert.Equal(t, 42*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

// TestLoad_EnvOverrides verifies that MATCHERING_* variables win over
// the file, including nested docker keys and bare-second timeouts.
func TestLoad_EnvOverrides(t *testing.T) {
	isolateEnv(t)

	path := writeFile(t, "config.yaml", "script_dir: /opt/plugin\ntimeout: 90s\n")
	t.Setenv("MATCHERING_TIMEOUT", "120")
	t.Setenv("MATCHERING_BACKEND", "docker")
	t.Setenv("MATCHERING_DOCKER_IMAGE", "ghcr.io/example/matchering:1.0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, BackendDocker, cfg.Backend)
	assert.Equal(t, "ghcr.io/example/matchering:1.0", cfg.Docker.Image)
	assert.Equal(t, "/opt/plugin", cfg.ScriptDir)
}

// TestLoad_Invalid verifies validation of enumerated and typed fields.
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "backend: kubernetes\n"},
		{"docker without image", "backend: docker\n"},
		{"negative timeout", "timeout: -5s\n"},
		{"bad log level", "log_level: chatty\n"},
		{"unknown key", "analyser: typo.py\n"},
		{"malformed yaml", "script_dir: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			path := writeFile(t, "config.yaml", tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

// TestInterpreter verifies which interpreter each backend uses.
func TestInterpreter(t *testing.T) {
	cfg := &Config{Python: "/venv/bin/python3", Backend: BackendLocal, Docker: DockerConfig{Python: "python3"}}
	assert.Equal(t, "/venv/bin/python3", cfg.Interpreter())
	assert.True(t, cfg.InterpreterIsPath())

	cfg.Python = "python3"
	assert.False(t, cfg.InterpreterIsPath(), "PATH lookups are not checked on disk")

	// The docker backend swaps in the interpreter inside the image.
	cfg = &Config{Python: "/venv/bin/python3", Backend: BackendDocker, Docker: DockerConfig{Python: "python3"}}
	assert.Equal(t, "python3", cfg.Interpreter())
	assert.False(t, cfg.InterpreterIsPath())
}

// TestWriteDefault verifies that "config init" output can be loaded back
// and that an existing file is only replaced with force.
func TestWriteDefault(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path, false))

	cfg, err := Load(path)
	require.NoError(t, err, "generated config must load cleanly")
	assert.Equal(t, 300*time.Second, cfg.Timeout)

	err = WriteDefault(path, false)
	require.Error(t, err)
	var cliErr *model.CLIError
	assert.ErrorAs(t, err, &cliErr)

	assert.NoError(t, WriteDefault(path, true))
}

// TestEnvOverrides verifies the environment-to-map conversion in isolation.
func TestEnvOverrides(t *testing.T) {
	known, err := toMap(Defaults())
	require.NoError(t, err)

	got := envOverrides([]string{
		"PATH=/usr/bin",
		"MATCHERING_PYTHON=/usr/bin/python3",
		"MATCHERING_DOCKER_IMAGE=img",
		"MATCHERING_=ignored",
		"MATCHERING_FOO=bar",
		"MATCHERING_DOCKER=whole-section",
		"MATCHERING_DOCKER_NETWORK=host",
	}, known)

	assert.Equal(t, "/usr/bin/python3", got["python"])
	assert.Equal(t, map[string]interface{}{"image": "img"}, got["docker"])
	assert.Len(t, got, 2)
}

// TestLoad_IgnoresUnrelatedEnv verifies that variables sharing the prefix
// but naming no config key do not break loading.
func TestLoad_IgnoresUnrelatedEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv("MATCHERING_LOG", "/tmp/x.log")
	t.Setenv("MATCHERING_FOO", "bar")
	t.Setenv("MATCHERING_TIMEOUT", "90")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
}
