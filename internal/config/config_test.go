package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csound "github.com/aspect-build/csound-go"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gocsound.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, csound.DefaultMaxTasksPerCycle, cfg.Thread.MaxTasksPerCycle)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Output.Bits)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
library:
  path: /opt/csound/lib/libcsound64.so
  opcode_dir: plugins
  no_signal_handler: true
options: ["-m0", "--sample-accurate"]
realtime_module: alsa
thread:
  max_tasks_per_cycle: 4
  timeout: 2s
output:
  bits: 24
  dir: out
render:
  jobs: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, "/opt/csound/lib/libcsound64.so", cfg.Library.Path)
	assert.Equal(t, filepath.Join(dir, "plugins"), cfg.Library.OpcodeDir)
	assert.Equal(t, []string{"-m0", "--sample-accurate"}, cfg.Options)
	assert.Equal(t, "alsa", cfg.RealtimeModule)
	assert.Equal(t, 4, cfg.Thread.MaxTasksPerCycle)
	assert.Equal(t, 2*time.Second, cfg.Thread.Timeout)
	assert.Equal(t, 24, cfg.Output.Bits)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.Output.Dir)
	assert.Equal(t, 4096, cfg.Output.BufferFrames)
	assert.Equal(t, 3, cfg.Render.Jobs)

	lc := cfg.LibraryConfig()
	assert.Equal(t, csound.InitNoSignalHandler, lc.InitFlags)
	assert.Equal(t, cfg.Library.OpcodeDir, lc.OpcodeDir)
	assert.Len(t, cfg.ThreadOptions(), 1)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "outptu:\n  bits: 24\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bits", "output:\n  bits: 12\n", "output.bits"},
		{"tasks", "thread:\n  max_tasks_per_cycle: -1\n", "max_tasks_per_cycle"},
		{"timeout", "thread:\n  timeout: -1s\n", "thread.timeout"},
		{"jobs", "render:\n  jobs: -2\n", "render.jobs"},
		{"buffer", "output:\n  buffer_frames: -5\n", "buffer_frames"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
