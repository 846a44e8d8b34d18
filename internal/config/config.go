// Package config loads the gocsound YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	csound "github.com/aspect-build/csound-go"
)

// Config is the on-disk configuration. Command-line flags override it.
type Config struct {
	// Library selects and initializes the native library.
	Library Library `yaml:"library"`

	// Options are engine command-line options applied before compiling,
	// e.g. "-m0" or "--sample-accurate".
	Options []string `yaml:"options,omitempty"`

	// RealtimeModule is the audio module used by "play" when the engine
	// drives the device itself. Empty means the platform default.
	RealtimeModule string `yaml:"realtime_module,omitempty"`

	// HostAudio routes audio through the host instead of a native module.
	HostAudio bool `yaml:"host_audio,omitempty"`

	Thread Thread `yaml:"thread"`
	Output Output `yaml:"output"`
	Render Render `yaml:"render"`
}

// Library mirrors csound.LibraryConfig.
type Library struct {
	Path      string `yaml:"path,omitempty"`
	OpcodeDir string `yaml:"opcode_dir,omitempty"`

	NoSignalHandler bool `yaml:"no_signal_handler,omitempty"`
	NoAtExit        bool `yaml:"no_atexit,omitempty"`
}

// Thread configures the performance thread.
type Thread struct {
	MaxTasksPerCycle int           `yaml:"max_tasks_per_cycle,omitempty"`
	Timeout          time.Duration `yaml:"timeout,omitempty"`
}

// Output configures file and device output.
type Output struct {
	// Bits is the WAV sample size: 16, 24 or 32.
	Bits int `yaml:"bits,omitempty"`
	// Dir is where "render" writes files when no output path is given.
	Dir string `yaml:"dir,omitempty"`
	// BufferFrames sizes the host playback buffer.
	BufferFrames int `yaml:"buffer_frames,omitempty"`
}

// Render configures batch rendering.
type Render struct {
	// Jobs bounds how many files render at once. 0 means one per CPU.
	Jobs int `yaml:"jobs,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Thread: Thread{
			MaxTasksPerCycle: csound.DefaultMaxTasksPerCycle,
			Timeout:          csound.DefaultTimeout,
		},
		Output: Output{
			Bits:         16,
			BufferFrames: 4096,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.resolve(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolve makes relative paths relative to the config file.
func (c *Config) resolve(base string) {
	for _, p := range []*string{&c.Library.OpcodeDir, &c.Output.Dir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Output.Bits {
	case 16, 24, 32:
	default:
		return fmt.Errorf("output.bits must be 16, 24 or 32, got %d", c.Output.Bits)
	}
	if c.Output.BufferFrames < 0 {
		return fmt.Errorf("output.buffer_frames must not be negative")
	}
	if c.Thread.MaxTasksPerCycle < 1 {
		return fmt.Errorf("thread.max_tasks_per_cycle must be at least 1")
	}
	if c.Thread.Timeout <= 0 {
		return fmt.Errorf("thread.timeout must be positive")
	}
	if c.Render.Jobs < 0 {
		return fmt.Errorf("render.jobs must not be negative")
	}
	return nil
}

// LibraryConfig converts the library section.
func (c *Config) LibraryConfig() csound.LibraryConfig {
	lc := csound.LibraryConfig{
		Path:      c.Library.Path,
		OpcodeDir: c.Library.OpcodeDir,
	}
	if c.Library.NoSignalHandler {
		lc.InitFlags |= csound.InitNoSignalHandler
	}
	if c.Library.NoAtExit {
		lc.InitFlags |= csound.InitNoAtExit
	}
	return lc
}

// ThreadOptions converts the thread section.
func (c *Config) ThreadOptions() []csound.ThreadOption {
	return []csound.ThreadOption{
		csound.WithMaxTasksPerCycle(c.Thread.MaxTasksPerCycle),
	}
}
