package adjudicated

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"loadgate/emit"
	"loadgate/engine"
	"loadgate/observability/logging"
	"loadgate/record"
	"loadgate/scenario"
)

// Main initialises and runs the adjudication daemon: it builds the scenario,
// streams decisions from the configured input to the configured output, and
// serves the admin endpoints while the run is in flight.
func Main() error {
	var (
		cfgPath      string
		scenarioPath string
		inputPath    string
		outputPath   string
		auditPath    string
		listen       string
	)
	flag.StringVar(&cfgPath, "config", "", "path to adjudicated configuration")
	flag.StringVar(&scenarioPath, "scenario", "", "path to scenario definition (default: baseline)")
	flag.StringVar(&inputPath, "input", "", "input file (default: stdin)")
	flag.StringVar(&outputPath, "output", "", "output file (default: stdout)")
	flag.StringVar(&auditPath, "audit", "", "audit stream file (default: disabled)")
	flag.StringVar(&listen, "listen", "", "admin listen address (default: disabled)")
	flag.Parse()

	cfg := DefaultConfig()
	if cfgPath != "" {
		loaded, err := LoadConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if scenarioPath != "" {
		cfg.ScenarioPath = scenarioPath
	}
	if inputPath != "" {
		cfg.InputPath = inputPath
	}
	if outputPath != "" {
		cfg.OutputPath = outputPath
	}
	if auditPath != "" {
		cfg.AuditPath = auditPath
	}
	if listen != "" {
		cfg.ListenAddress = listen
	}

	env := strings.TrimSpace(os.Getenv("LOADGATE_ENV"))
	if env == "" {
		env = cfg.Environment
	}
	var fileCfg *logging.FileConfig
	if cfg.Log.File != "" {
		fileCfg = &logging.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}
	}
	logger := logging.Setup("adjudicated", env, fileCfg)
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	scenarioCfg := scenario.Baseline()
	if cfg.ScenarioPath != "" {
		loaded, err := scenario.Load(cfg.ScenarioPath)
		if err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
		scenarioCfg = loaded
	}
	params, err := scenarioCfg.Build()
	if err != nil {
		return fmt.Errorf("build scenario: %w", err)
	}

	input, closeInput, err := openInput(cfg.InputPath)
	if err != nil {
		return err
	}
	defer closeInput()
	output, closeOutput, err := openOutput(cfg.OutputPath)
	if err != nil {
		return err
	}
	defer closeOutput()

	sinks := emit.Tee{emit.NewWriter(output)}
	if cfg.AuditPath != "" {
		audit, closeAudit, err := openOutput(cfg.AuditPath)
		if err != nil {
			return err
		}
		defer closeAudit()
		sinks = append(sinks, emit.NewAuditWriter(audit))
	}

	eng := engine.New(params,
		engine.WithLogger(logger),
		engine.WithMetrics(NewMetrics()),
	)

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpServer *http.Server
	httpErrs := make(chan error, 1)
	if cfg.ListenAddress != "" {
		httpServer = &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      NewAdminServer(eng, runID, scenarioCfg.Name),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("admin listening", "addr", cfg.ListenAddress)
			httpErrs <- httpServer.ListenAndServe()
		}()
	}

	logger.Info("scenario run starting", "scenario", scenarioCfg.Name)
	stats, runErr := eng.Run(stopCtx, record.NewLineSource(input), sinks)
	logger.Info("scenario run finished",
		"records", stats.Records,
		"accepted", stats.Accepted,
		"declined", stats.Declined,
		"replays", stats.Replays,
		"conflicts", stats.Conflicts,
		"malformed", stats.Malformed,
	)

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace.Duration)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
		}
		select {
		case err := <-httpErrs:
			if err != nil && err != http.ErrServerClosed && runErr == nil {
				runErr = err
			}
		default:
		}
	}
	if runErr != nil && runErr != context.Canceled {
		return fmt.Errorf("run scenario: %w", runErr)
	}
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
