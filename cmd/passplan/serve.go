package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/pass-scheduler/internal/config"
	"github.com/signalsfoundry/pass-scheduler/internal/logging"
	"github.com/signalsfoundry/pass-scheduler/internal/schedule"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /schedule and Prometheus /metrics over HTTP",
		Long: `serve recomputes the schedule from the scenario file on every GET /schedule,
so edits to the scenario are picked up without a restart. Query parameters
battery_j, solver, family and format override the settings for one request;
disabled takes comma separated profile ids switched off on top of the settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stopTracing, err := a.startTracing(ctx)
			if err != nil {
				return err
			}
			defer stopTracing()

			if !cmd.Flags().Changed("addr") {
				addr = a.settings.Metrics.Addr
			}
			return a.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	return cmd
}

func (a *app) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.collector.Handler())
	mux.HandleFunc("/schedule", a.handleSchedule)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// serve blocks until ctx is cancelled, then shuts the server down gracefully.
func (a *app) serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	a.log.Info(ctx, "serving schedules and Prometheus metrics", logging.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info(context.Background(), "shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	s := a.settings
	q := r.URL.Query()
	if v := q.Get("battery_j"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "battery_j must be a number", http.StatusBadRequest)
			return
		}
		s.BatteryCapacityJ = parsed
	}
	if v := q.Get("solver"); v != "" {
		s.Solver = v
	}
	if v := q.Get("family"); v != "" {
		s.Family = v
	}
	if v := q.Get("disabled"); v != "" {
		extra := strings.Split(v, ",")
		s.DisabledProfiles = append(append([]string(nil), s.DisabledProfiles...), extra...)
	}
	format := formatJSON
	if v := q.Get("format"); v != "" {
		format = v
	}
	if format != formatJSON && format != formatText {
		http.Error(w, "format must be json or text", http.StatusBadRequest)
		return
	}
	if err := s.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sc, err := a.loadScenario()
	if err != nil {
		a.log.Error(ctx, "failed to load scenario", logging.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if format == formatJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	if _, err := scheduleAndRender(ctx, a, s, sc, w, format); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, schedule.ErrInvalidInput) || errors.Is(err, config.ErrInvalidSettings) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
	}
}
