// Package config loads scheduler settings from a YAML file with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/pass-scheduler/internal/logging"
	"github.com/signalsfoundry/pass-scheduler/internal/observability"
	"github.com/signalsfoundry/pass-scheduler/internal/schedule"
	"github.com/signalsfoundry/pass-scheduler/model"
)

// Profile families the scheduler can run on.
const (
	FamilyAES         = "aes"
	FamilyCompression = "compression"
)

// ErrInvalidSettings is wrapped by every Validate failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the persisted scheduler configuration.
type Settings struct {
	BatteryCapacityJ float64  `yaml:"battery_capacity_j"`
	Solver           string   `yaml:"solver"`
	Family           string   `yaml:"family"`
	DisabledProfiles []string `yaml:"disabled_profiles"`

	Log     LogSettings                 `yaml:"log"`
	Metrics MetricsSettings             `yaml:"metrics"`
	Tracing observability.TracingConfig `yaml:"tracing"`
}

type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsSettings struct {
	Addr string `yaml:"addr"`
}

// Default returns settings with every field but the battery capacity filled in.
func Default() Settings {
	return Settings{
		Solver:  schedule.GreedyName,
		Family:  FamilyAES,
		Log:     LogSettings{Level: "info", Format: "text"},
		Metrics: MetricsSettings{Addr: ":8080"},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// Load reads path on top of Default and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Settings{}, fmt.Errorf("open settings: %w", err)
		}
		defer f.Close()
		if s, err = Decode(f, s); err != nil {
			return Settings{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	return ApplyEnv(s), nil
}

// Decode parses YAML from r over base. Unknown keys are rejected.
func Decode(r io.Reader, base Settings) (Settings, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return base, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&base); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return base, nil
}

// ApplyEnv overrides s with PASSPLAN_*, LOG_LEVEL and LOG_FORMAT environment
// variables when they are set. Unparseable numbers are ignored.
func ApplyEnv(s Settings) Settings {
	if v := os.Getenv("PASSPLAN_BATTERY_CAPACITY_J"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			s.BatteryCapacityJ = parsed
		}
	}
	if v := os.Getenv("PASSPLAN_SOLVER"); v != "" {
		s.Solver = v
	}
	if v := os.Getenv("PASSPLAN_FAMILY"); v != "" {
		s.Family = strings.ToLower(v)
	}
	if v := os.Getenv("PASSPLAN_METRICS_ADDR"); v != "" {
		s.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		s.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		s.Log.Format = v
	}
	s.Tracing = observability.ApplyTracingEnv(s.Tracing)
	return s
}

// Validate reports the first problem that would make the settings unusable.
func (s Settings) Validate() error {
	if math.IsNaN(s.BatteryCapacityJ) || math.IsInf(s.BatteryCapacityJ, 0) || s.BatteryCapacityJ <= 0 {
		return fmt.Errorf("%w: battery_capacity_j must be a positive number, got %v", ErrInvalidSettings, s.BatteryCapacityJ)
	}
	// Both families register the same solvers.
	if names := schedule.NewDefaultRegistry[*model.AESProfile]().Names(); !slices.Contains(names, s.Solver) {
		return fmt.Errorf("%w: unknown solver %q (available: %s)", ErrInvalidSettings, s.Solver, strings.Join(names, ", "))
	}
	switch s.Family {
	case FamilyAES, FamilyCompression:
	default:
		return fmt.Errorf("%w: unknown profile family %q", ErrInvalidSettings, s.Family)
	}
	return nil
}

// Disabled returns the disabled profile ids as a set.
func (s Settings) Disabled() map[string]bool {
	out := make(map[string]bool, len(s.DisabledProfiles))
	for _, id := range s.DisabledProfiles {
		out[id] = true
	}
	return out
}

// LoggingConfig maps the log section onto logging.Config.
func (s Settings) LoggingConfig(out io.Writer) logging.Config {
	return logging.Config{Level: s.Log.Level, Format: s.Log.Format, Output: out}
}
