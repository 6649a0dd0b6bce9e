package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/pass-scheduler/internal/config"
	"github.com/signalsfoundry/pass-scheduler/internal/logging"
	"github.com/signalsfoundry/pass-scheduler/internal/observability"
	"github.com/signalsfoundry/pass-scheduler/internal/report"
	"github.com/signalsfoundry/pass-scheduler/model"
)

const (
	scenarioPath = "../../configs/scenario.json"
	settingsPath = "../../configs/settings.yaml"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PASSPLAN_BATTERY_CAPACITY_J", "PASSPLAN_SOLVER", "PASSPLAN_FAMILY",
		"PASSPLAN_TRACING_ENABLED", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func lineWith(out, prefix string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
	return ""
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	clearEnv(t)
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestScheduleText(t *testing.T) {
	out, logs, err := run(t, "schedule", "--scenario", scenarioPath, "--settings", settingsPath)
	if err != nil {
		t.Fatalf("schedule: %v\nlogs:\n%s", err, logs)
	}
	if !strings.Contains(out, "Status: OK") {
		t.Fatalf("expected clean schedule:\n%s", out)
	}
	if row := lineWith(out, "  pass-001"); !strings.Contains(row, "ESP32 AES-128-CBC (hw)") {
		t.Fatalf("pass-001 should use the hardware-accelerated ESP32:\n%s", out)
	}
	if row := lineWith(out, "  pass-002"); !strings.Contains(row, "Raspberry Pi 4 AES-128-CBC") {
		t.Fatalf("pass-002 should fall back to the averaged Raspberry Pi profile:\n%s", out)
	}
	if strings.Contains(out, "STM32F4") {
		t.Fatalf("disabled profile appeared in output:\n%s", out)
	}
	if !strings.Contains(logs, "scheduling run finished") {
		t.Fatalf("missing run log:\n%s", logs)
	}
}

func TestScheduleJSONUnsolvable(t *testing.T) {
	out, _, err := run(t, "schedule", "--scenario", scenarioPath, "--settings", settingsPath,
		"--battery-j", "100", "-o", "json")
	if !errors.Is(err, errUnsolvable) {
		t.Fatalf("err = %v, want errUnsolvable", err)
	}
	var doc report.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if doc.Solvable || doc.Status != report.StatusFailed {
		t.Fatalf("doc = %+v", doc)
	}
	// The sunlight overflow is clamped to 100 J, then the datalink phase
	// drains the ledger before any device is chosen.
	if len(doc.Problems) != 2 || len(doc.Assignments) != 0 {
		t.Fatalf("problems = %+v, assignments = %+v", doc.Problems, doc.Assignments)
	}
}

func TestScheduleCompressionFamily(t *testing.T) {
	out, _, err := run(t, "schedule", "--scenario", scenarioPath, "--settings", settingsPath,
		"--family", config.FamilyCompression)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if strings.Count(out, "lz4-1") != 2 || strings.Contains(out, "zstd") {
		t.Fatalf("lz4 should serve both passes:\n%s", out)
	}
}

func TestScheduleNullSolver(t *testing.T) {
	out, _, err := run(t, "schedule", "--scenario", scenarioPath, "--settings", settingsPath, "--solver", "null")
	if !errors.Is(err, errUnsolvable) {
		t.Fatalf("err = %v, want errUnsolvable", err)
	}
	if !strings.Contains(out, "the null scheduler does not produce schedules") {
		t.Fatalf("missing null solver problem:\n%s", out)
	}
}

func TestScheduleRejectsBadSettings(t *testing.T) {
	_, _, err := run(t, "schedule", "--scenario", scenarioPath)
	if !errors.Is(err, config.ErrInvalidSettings) {
		t.Fatalf("err = %v, want ErrInvalidSettings for missing battery capacity", err)
	}
	if _, _, err := run(t, "schedule", "--settings", settingsPath); err == nil {
		t.Fatalf("expected error when --scenario is missing")
	}
}

func TestSummarizeRanksByEfficiency(t *testing.T) {
	out, _, err := run(t, "summarize", "--scenario", scenarioPath, "--settings", settingsPath)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, two profiles and one disabled profile, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "1") || !strings.Contains(lines[1], "ESP32") {
		t.Fatalf("ESP32 should rank first:\n%s", out)
	}
	if !strings.Contains(lines[2], "Raspberry Pi 4") || strings.Contains(lines[2], "trial") {
		t.Fatalf("Raspberry Pi trials should be averaged into one record:\n%s", out)
	}
	if !strings.HasPrefix(lines[3], "disabled: stm32-aes256-gcm STM32F4") {
		t.Fatalf("disabled profile not listed after the ranking:\n%s", out)
	}
}

func TestScheduleFailOn(t *testing.T) {
	// At 1100 J the second sunlight phase overflows the battery, which is a
	// warning on an otherwise solvable schedule.
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"default threshold", nil, nil},
		{"error threshold", []string{"--fail-on", "error"}, nil},
		{"warning threshold", []string{"--fail-on", "warning"}, errProblemThreshold},
		{"alias", []string{"--fail-on", "WARN"}, errProblemThreshold},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"schedule", "--scenario", scenarioPath, "--settings", settingsPath, "--battery-j", "1100"}, tc.args...)
			out, _, err := run(t, args...)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if !strings.Contains(out, "Status: OK WITH WARNINGS") {
				t.Fatalf("expected a warning-only schedule:\n%s", out)
			}
		})
	}

	if _, _, err := run(t, "schedule", "--scenario", scenarioPath, "--settings", settingsPath, "--fail-on", "panic"); err == nil || !strings.Contains(err.Error(), "unknown severity") {
		t.Fatalf("err = %v, want unknown severity", err)
	}
}

func TestOutcomeReaches(t *testing.T) {
	o := outcome{solvable: true, problems: []model.Problem{{Severity: model.SeverityError}}}
	if !o.reaches(model.SeverityWarning) || !o.reaches(model.SeverityError) || o.reaches(model.SeverityFatal) {
		t.Fatalf("reaches mismatched for %+v", o.problems)
	}
	if (outcome{}).reaches(model.SeverityWarning) {
		t.Fatalf("empty outcome reached a threshold")
	}
}

func TestBuildCatalogDisablesAndLogs(t *testing.T) {
	var logs bytes.Buffer
	log := logging.New(logging.Config{Level: "debug", Output: &logs})
	a := testApp(t)
	sc, err := a.loadScenario()
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}

	disabled := map[string]bool{"stm32-aes256-gcm": true, "no-such-profile": true}
	catalog, err := buildCatalog(context.Background(), log, sc.AESProfiles, disabled)
	if err != nil {
		t.Fatalf("buildCatalog: %v", err)
	}
	if catalog.Len() != len(sc.AESProfiles) || catalog.IsEnabled("stm32-aes256-gcm") || !catalog.IsEnabled("esp32-aes128-cbc-hw") {
		t.Fatalf("catalog len=%d enabled=%d", catalog.Len(), len(catalog.Enabled()))
	}
	out := logs.String()
	if !strings.Contains(out, `msg="profile disabled" profile=stm32-aes256-gcm`) {
		t.Fatalf("disable event not logged:\n%s", out)
	}
	if !strings.Contains(out, "profile=no-such-profile") || strings.Count(out, "profile disabled") != 1 {
		t.Fatalf("unknown id should only be warned about:\n%s", out)
	}
}

func TestSolveListsRegisteredSolvers(t *testing.T) {
	a := testApp(t)
	sc, err := a.loadScenario()
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	s := a.settings
	s.Solver = "annealing"
	_, err = solve(context.Background(), a, s, sc.Passes, sc.AESProfiles)
	if err == nil || !strings.Contains(err.Error(), "available: greedy, null") {
		t.Fatalf("solve = %v, want the registered solver names", err)
	}
}

func testApp(t *testing.T) *app {
	t.Helper()
	clearEnv(t)
	s, err := config.Load(settingsPath)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	reg := prometheus.NewRegistry()
	collector, err := observability.NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("collector: %v", err)
	}
	return &app{
		stdout:       io.Discard,
		stderr:       io.Discard,
		scenarioPath: scenarioPath,
		settings:     s,
		log:          logging.Noop(),
		registry:     reg,
		collector:    collector,
	}
}

func TestHandleSchedule(t *testing.T) {
	srv := httptest.NewServer(testApp(t).handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/schedule")
	if err != nil {
		t.Fatalf("GET /schedule: %v", err)
	}
	var doc report.Document
	err = json.NewDecoder(resp.Body).Decode(&doc)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !doc.Solvable || doc.Scheduled != 2 {
		t.Fatalf("status=%d doc=%+v", resp.StatusCode, doc)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"?battery_j=-1", http.StatusBadRequest},
		{"?battery_j=abc", http.StatusBadRequest},
		{"?solver=annealing", http.StatusBadRequest},
		{"?format=xml", http.StatusBadRequest},
		{"?battery_j=100&format=text", http.StatusOK},
	}
	for _, tc := range tests {
		resp, err := http.Get(srv.URL + "/schedule" + tc.query)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.query, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("GET %s status = %d, want %d", tc.query, resp.StatusCode, tc.want)
		}
	}

	resp, err = http.Post(srv.URL+"/schedule", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d, want 405", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		`passplan_schedule_runs_total{outcome="solved",solver="greedy"} 1`,
		`passplan_schedule_runs_total{outcome="unsolvable",solver="greedy"} 1`,
		`passplan_battery_capacity_joules 100`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestHandleScheduleDisabledOverride(t *testing.T) {
	a := testApp(t)
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/schedule?disabled=esp32-aes128-cbc-hw,no-such-profile")
	if err != nil {
		t.Fatalf("GET /schedule: %v", err)
	}
	var doc report.Document
	err = json.NewDecoder(resp.Body).Decode(&doc)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || len(doc.Assignments) != 2 {
		t.Fatalf("status=%d doc=%+v", resp.StatusCode, doc)
	}
	for _, as := range doc.Assignments {
		if strings.Contains(as.Device, "ESP32") || strings.Contains(as.Device, "STM32F4") {
			t.Fatalf("disabled profile scheduled: %+v", as)
		}
	}
	if len(a.settings.DisabledProfiles) != 1 {
		t.Fatalf("request override leaked into settings: %v", a.settings.DisabledProfiles)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	a := testApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}
