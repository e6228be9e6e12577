// statsd_coralogix receives StatsD metrics over UDP and forwards them to
// Coralogix through the Prometheus remote-write protocol.
//
// Every flush interval the aggregated counters, gauges, sets and timers are
// converted into Prometheus series:
//   - Counters become cumulative `_total` series
//   - Gauges are sent as-is, sets as the constant 1
//   - Timers become `_sum` and `_count`, plus `_bucket` series when configured
//
// Usage:
//
//	statsd_coralogix --config config.yaml [--debug]
//
// Configuration is provided via YAML file specifying:
//   - StatsD listener (address, flush interval, percent threshold)
//   - Coralogix target (private key, endpoint, application and subsystem)
//   - Optional status server, mappings and OpenTelemetry settings
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjacquet/statsd_coralogix/internal/config"
	"github.com/fjacquet/statsd_coralogix/internal/exporter"
	"github.com/fjacquet/statsd_coralogix/internal/logging"
	"github.com/fjacquet/statsd_coralogix/internal/models"
	"github.com/fjacquet/statsd_coralogix/internal/statsd"
	"github.com/fjacquet/statsd_coralogix/internal/telemetry"
	"github.com/fjacquet/statsd_coralogix/internal/utils"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	_ "go.uber.org/automaxprocs"
)

const (
	programName       = "statsd_coralogix" // Application name
	serviceName       = "statsd-coralogix" // OpenTelemetry service name
	serviceVersion    = "1.0.0"
	shutdownTimeout   = 10 * time.Second // Maximum time to wait for graceful shutdown
	readHeaderTimeout = 5 * time.Second  // HTTP server read header timeout
	telemetryTimeout  = 10 * time.Second
)

var (
	configFile string
	debug      bool
)

// Server wires the StatsD listener, the flush scheduler and the Coralogix
// exporter together, and serves /health, /status and /metrics when a status
// port is configured.
//
// Error Handling:
// Status server errors (such as port binding failures) are communicated
// through the ErrorChan() channel rather than calling log.Fatal. This allows
// the caller to perform graceful shutdown even when the server encounters
// errors.
//
// Usage:
//
//	server := NewServer(cfg, configPath)
//	if err := server.Start(); err != nil {
//	    return err
//	}
//
//	select {
//	case <-shutdownSignal:
//	    // Normal shutdown
//	case err := <-server.ErrorChan():
//	    log.Errorf("Server error: %v", err)
//	}
//
//	server.Shutdown()
type Server struct {
	configPath       string
	cfg              *models.SafeConfig
	startup          time.Time
	registry         *prometheus.Registry
	telemetryManager *telemetry.Manager // nil if disabled

	aggregator *statsd.Aggregator
	listener   *statsd.Listener
	exporter   *exporter.Exporter

	stopScheduler context.CancelFunc
	schedulerDone chan struct{}

	stopSIGHUP func()
	watcher    *fsnotify.Watcher

	httpSrv *http.Server
	// serverErrChan receives HTTP server errors. It is buffered (capacity 1)
	// to ensure the goroutine can send an error even if the main select
	// hasn't started listening yet (race between Start() return and select).
	serverErrChan chan error
}

// NewServer creates a new server instance with the provided configuration.
// configPath is the file reloaded on SIGHUP or change; it may be empty.
func NewServer(cfg *models.Config, configPath string) *Server {
	var telemetryMgr *telemetry.Manager
	if cfg.IsOTelEnabled() {
		telemetryMgr = telemetry.NewManager(telemetry.ConfigFromModel(cfg, serviceName, serviceVersion))
	}

	return &Server{
		configPath:       configPath,
		cfg:              models.NewSafeConfig(cfg),
		startup:          time.Now(),
		registry:         prometheus.NewRegistry(),
		telemetryManager: telemetryMgr,
		aggregator:       statsd.NewAggregator(cfg.Statsd.PercentThreshold),
		serverErrChan:    make(chan error, 1), // Buffered to prevent goroutine leak
	}
}

// Start brings the pipeline up in dependency order: tracing, exporter, self
// metrics, UDP listener, scheduler, reload triggers and finally the status
// server. The status server runs asynchronously; its errors arrive on
// ErrorChan.
func (s *Server) Start() error {
	cfg := s.cfg.Get()

	var exporterOpts []exporter.Option
	if s.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
		defer cancel()

		if err := s.telemetryManager.Initialize(ctx); err != nil {
			log.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
		}
		if s.telemetryManager.IsEnabled() {
			exporterOpts = append(exporterOpts, exporter.WithTracerProvider(s.telemetryManager.TracerProvider()))
		}
	}

	s.exporter = exporter.NewExporter(s.cfg, s.startup, exporterOpts...)

	if err := s.registerMetrics(); err != nil {
		return err
	}

	interval, err := cfg.GetFlushInterval()
	if err != nil {
		return fmt.Errorf("invalid flush interval: %w", err)
	}

	listener, err := statsd.Listen(cfg.Statsd.Address, s.aggregator)
	if err != nil {
		return err
	}
	s.listener = listener
	s.listener.Serve()

	scheduler := statsd.NewScheduler(interval, s.aggregator, s.exporter.Flush)
	ctx, cancel := context.WithCancel(context.Background())
	s.stopScheduler = cancel
	s.schedulerDone = make(chan struct{})
	go func() {
		defer close(s.schedulerDone)
		scheduler.Run(ctx)
	}()

	if s.configPath != "" {
		reloader := config.NewReloader(s.configPath, s.reload)
		s.stopSIGHUP = config.SetupSIGHUPHandler(reloader)
		watcher, err := config.WatchConfigFile(reloader)
		if err != nil {
			log.Warnf("Config file watch disabled: %v", err)
		} else {
			s.watcher = watcher
		}
	}

	go func() {
		if err := s.exporter.TestConnectivity(context.Background()); err != nil {
			log.Warn(err)
		}
	}()

	if cfg.HasStatusServer() {
		s.httpSrv = &http.Server{
			Addr:              cfg.GetServerAddress(),
			Handler:           s.routes(),
			ReadHeaderTimeout: readHeaderTimeout,
		}

		go func() {
			log.Infof("Starting status server on %s", cfg.GetServerAddress())
			if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
	}

	return nil
}

// registerMetrics exposes the exporter status and the listener counters.
func (s *Server) registerMetrics() error {
	collectors := []prometheus.Collector{
		exporter.NewCollector(s.exporter),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "statsd_coralogix",
			Name:      "statsd_lines_received_total",
			Help:      "StatsD lines accepted by the listener",
		}, func() float64 { return float64(s.aggregator.Received()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "statsd_coralogix",
			Name:      "statsd_bad_lines_total",
			Help:      "StatsD lines rejected by the parser",
		}, func() float64 { return float64(s.aggregator.BadLines()) }),
	}

	for _, c := range collectors {
		if err := s.registry.Register(c); err != nil {
			return fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return nil
}

// routes builds the status server handler.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/status", s.statusHandler)

	if s.telemetryManager != nil && s.telemetryManager.IsEnabled() {
		return s.extractTraceContextMiddleware(mux)
	}
	return mux
}

// reload applies a new configuration file. The exporter reads the config on
// every flush, so only the listener-side settings are pushed here.
func (s *Server) reload(path string) error {
	old := s.cfg.Get().Statsd
	if _, err := s.cfg.ReloadConfig(path); err != nil {
		return err
	}

	cfg := s.cfg.Get()
	logging.SetDebug(debug || cfg.Debug)
	s.aggregator.SetPercentThreshold(cfg.Statsd.PercentThreshold)
	if cfg.Statsd.Address != old.Address || cfg.Statsd.FlushInterval != old.FlushInterval {
		log.Warnf("StatsD address and flush interval changes require a restart (still listening on %s every %s)",
			old.Address, old.FlushInterval)
	}
	return nil
}

// ErrorChan returns the channel for receiving server errors.
// The main function should select on this channel to handle errors gracefully.
func (s *Server) ErrorChan() <-chan error {
	return s.serverErrChan
}

// Shutdown stops the components in the reverse order of the data flow.
//
// Shutdown Order:
//  1. Stop reload triggers
//  2. Close the UDP listener (no new packets)
//  3. Stop the scheduler, which flushes the partial interval
//  4. Close the exporter (waits for in-flight remote writes)
//  5. Stop the status server
//  6. Shutdown OpenTelemetry (flush pending spans)
//
// Telemetry goes last so that spans of the final remote write are exported.
//
// Returns the first error encountered.
func (s *Server) Shutdown() error {
	var errs []error

	if s.stopSIGHUP != nil {
		s.stopSIGHUP()
	}
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			log.Warnf("Config watcher close warning: %v", err)
		}
	}

	if s.listener != nil {
		log.Info("Closing StatsD listener...")
		if err := s.listener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("listener close: %w", err))
		}
	}

	if s.stopScheduler != nil {
		s.stopScheduler()
		<-s.schedulerDone
	}

	if s.exporter != nil {
		log.Info("Waiting for in-flight remote writes...")
		if err := s.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("exporter close: %w", err))
		}
	}

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down HTTP server...")
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	if s.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down telemetry...")
		if err := s.telemetryManager.Shutdown(ctx); err != nil {
			// Non-fatal.
			log.Warnf("Telemetry shutdown warning: %v", err)
		}
	}

	close(s.serverErrChan)

	if len(errs) > 0 {
		log.Errorf("Shutdown completed with %d errors", len(errs))
		return errs[0]
	}

	log.Info("Server stopped gracefully")
	return nil
}

// extractTraceContextMiddleware wraps an HTTP handler to extract W3C trace
// context from incoming requests. If no trace context is present, the
// handler operates normally without tracing.
func (s *Server) extractTraceContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// healthHandler returns 200 while the process runs. Delivery health is
// reported by /status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK\n")
}

type statusResponse struct {
	exporter.StatusSnapshot
	Healthy            bool `json:"healthy"`
	AccumulatorEntries int  `json:"accumulator_entries"`
}

// statusHandler reports the export status as JSON.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.exporter.ExportStatus()
	resp := statusResponse{
		StatusSnapshot:     snap,
		Healthy:            snap.Healthy(),
		AccumulatorEntries: s.exporter.AccumulatorLen(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Errorf("Failed to encode status: %v", err)
	}
}

// validateConfig loads the configuration file and validates its contents.
func validateConfig(configPath string) (*models.Config, error) {
	return utils.LoadConfig(configPath)
}

// setupLogging initializes the logging system with the configured log file.
// Debug level is enabled by the flag or by `debug: true` in the file.
func setupLogging(cfg *models.Config, debugMode bool) error {
	if err := logging.PrepareLogs(cfg.Server.LogName); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	logging.SetDebug(debugMode || cfg.Debug)
	logging.LogDebug("Debug mode enabled")
	return nil
}

// waitForShutdown blocks until either a shutdown signal is received
// or a server error occurs through the error channel.
//
// Signals handled:
//   - SIGINT (Ctrl+C)
//   - SIGTERM (kill command)
//
// SIGHUP is reserved for configuration reload.
func waitForShutdown(serverErr <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		log.Infof("Received signal %v, initiating graceful shutdown...", sig)
		return nil
	case err := <-serverErr:
		return err
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "StatsD backend for Coralogix",
		Long:  "statsd_coralogix aggregates StatsD metrics and pushes them to Coralogix with Prometheus remote write",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := validateConfig(configFile)
			if err != nil {
				return err
			}

			if err := setupLogging(cfg, debug); err != nil {
				return err
			}

			logging.LogInfo(fmt.Sprintf("Starting %s...", programName))
			log.Infof("StatsD address: %s", cfg.Statsd.Address)
			log.Infof("Remote write endpoint: %s", cfg.Coralogix.APIHost)
			log.Infof("Flush interval: %s", cfg.Statsd.FlushInterval)
			log.Debugf("Private key: %s", cfg.MaskPrivateKey())

			server := NewServer(cfg, configFile)
			if err := server.Start(); err != nil {
				// Releases whatever started before the failure, telemetry included.
				_ = server.Shutdown()
				return err
			}

			if err := waitForShutdown(server.ErrorChan()); err != nil {
				log.Errorf("Server error: %v", err)
				// Continue to graceful shutdown
			}

			return server.Shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (required)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug mode")
	_ = rootCmd.MarkPersistentFlagRequired("config")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
