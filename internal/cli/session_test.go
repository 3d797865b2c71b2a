package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shinji-kodama/matchering-bridge/internal/config"
)

// TestNewLocalRunner verifies the working directory and environment of
// the host backend.
func TestNewLocalRunner(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		scriptDir string
		wantDir   string
	}{
		{name: "existing script dir", scriptDir: dir, wantDir: dir},
		{name: "missing script dir", scriptDir: filepath.Join(dir, "gone"), wantDir: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newLocalRunner(&config.Config{ScriptDir: tt.scriptDir, Timeout: time.Minute})
			assert.Equal(t, tt.wantDir, r.Dir)
			assert.Equal(t, []string{"PYTHONUNBUFFERED=1"}, r.Env)
			assert.Equal(t, time.Minute, r.Timeout)
		})
	}
}
