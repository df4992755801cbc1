// Package config loads the YAML startup configuration cmd/m8r reads
// before building a Runtime: heap thresholds, the scheduler's time
// quantum, the runtime error ceiling, and which library roots an
// embedder wants wired in. Grounded on conformance/loader.go's
// yaml.v3-based fixture loader, generalized from test-fixture loading
// to general startup configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses a YAML scalar as a Go duration string ("50ms", "1s"),
// since yaml.v3 has no built-in time.Duration support.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Libraries toggles which internal/library roots a Runtime wires in
// beyond the always-present Global. Defaults (zero value) are all
// false; Default() returns the all-enabled config new installs expect.
type Libraries struct {
	GPIO    bool `yaml:"gpio"`
	JSON    bool `yaml:"json"`
	Base64  bool `yaml:"base64"`
	Crypto  bool `yaml:"crypto"`
	IPAddr  bool `yaml:"ipaddr"`
	FS      bool `yaml:"fs"`
	Net     bool `yaml:"net"`
	Task    bool `yaml:"task"`
	Timer   bool `yaml:"timer"`
	Iterator bool `yaml:"iterator"`
}

// Config is the top-level startup configuration document.
type Config struct {
	// HeapThreshold is the allocation-delta gate before an unforced GC
	// pass runs (gc.Heap.ShouldCollect). 0 disables unforced collection.
	HeapThreshold int `yaml:"heap_threshold"`

	// Quantum is the scheduler's per-task time slice before a running
	// task is asked to yield. Parsed from a Go duration string
	// ("50ms", "1s"). When omitted it keeps Default()'s 50ms, the same
	// value as scheduler.DefaultQuantum; an explicit zero is used as is.
	Quantum Duration `yaml:"quantum"`

	// MaxRunTimeErrors bounds how many runtime errors a single VM
	// tolerates before it forces termination, threaded into
	// vm.Runtime.MaxRunTimeErrors (Default() sets it to
	// vm.MaxRunTimeErrors).
	MaxRunTimeErrors int `yaml:"max_runtime_errors"`

	Libraries Libraries `yaml:"libraries"`
}

// Default returns the configuration cmd/m8r falls back to when no file
// is given: generous heap threshold, the scheduler's own default
// quantum, and every library root enabled.
func Default() Config {
	return Config{
		HeapThreshold:    1 << 20,
		Quantum:          Duration(50 * time.Millisecond),
		MaxRunTimeErrors: 30,
		Libraries: Libraries{
			GPIO: true, JSON: true, Base64: true, Crypto: true, IPAddr: true,
			FS: true, Net: true, Task: true, Timer: true, Iterator: true,
		},
	}
}

// Load reads and parses a YAML configuration file at path, filling any
// field the document omits from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
