package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/pass-scheduler/internal/schedule"
)

const settingsYAML = `
battery_capacity_j: 1500
solver: "null"
family: compression
disabled_profiles: [rpi-aes-128, esp32-lz4]
log:
  level: debug
tracing:
  enabled: true
  exporter: otlp
  endpoint: collector:4317
`

func TestDecodeOverlaysDefaults(t *testing.T) {
	s, err := Decode(strings.NewReader(settingsYAML), Default())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.BatteryCapacityJ != 1500 || s.Solver != schedule.NullName || s.Family != FamilyCompression {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.Log.Level != "debug" || s.Log.Format != "text" {
		t.Fatalf("log = %+v, want debug level with default format", s.Log)
	}
	if !s.Tracing.Enabled || s.Tracing.ServiceName != "passplan" || s.Tracing.Endpoint != "collector:4317" {
		t.Fatalf("tracing = %+v", s.Tracing)
	}
	if d := s.Disabled(); !d["rpi-aes-128"] || !d["esp32-lz4"] || len(d) != 2 {
		t.Fatalf("Disabled = %v", d)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	if _, err := Decode(strings.NewReader("battery: 10\n"), Default()); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestDecodeEmpty(t *testing.T) {
	s, err := Decode(strings.NewReader("  \n"), Default())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Solver != schedule.GreedyName {
		t.Fatalf("Solver = %q, want default", s.Solver)
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(settingsYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PASSPLAN_BATTERY_CAPACITY_J", "2500.5")
	t.Setenv("PASSPLAN_SOLVER", "greedy")
	t.Setenv("LOG_FORMAT", "json")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.BatteryCapacityJ != 2500.5 || s.Solver != schedule.GreedyName || s.Log.Format != "json" {
		t.Fatalf("env overrides not applied: %+v", s)
	}
	if s.Family != FamilyCompression {
		t.Fatalf("Family = %q, file value lost", s.Family)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("PASSPLAN_BATTERY_CAPACITY_J", "not-a-number")
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.BatteryCapacityJ != 0 {
		t.Fatalf("bad env value should be ignored, got %v", s.BatteryCapacityJ)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.BatteryCapacityJ = 100

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero capacity", func(s *Settings) { s.BatteryCapacityJ = 0 }},
		{"negative capacity", func(s *Settings) { s.BatteryCapacityJ = -5 }},
		{"unknown solver", func(s *Settings) { s.Solver = "annealing" }},
		{"unknown family", func(s *Settings) { s.Family = "rsa" }},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := valid
			tc.mutate(&s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("Validate = %v, want ErrInvalidSettings", err)
			}
		})
	}
}

func TestValidateListsRegisteredSolvers(t *testing.T) {
	s := Default()
	s.BatteryCapacityJ = 100
	s.Solver = "annealing"
	err := s.Validate()
	if err == nil || !strings.Contains(err.Error(), "available: greedy, null") {
		t.Fatalf("Validate = %v, want the registered solver names", err)
	}
	s.Solver = "null"
	if err := s.Validate(); err != nil {
		t.Fatalf("null solver rejected: %v", err)
	}
}
