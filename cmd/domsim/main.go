package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/domsim/internal/config"
	"github.com/GriffinCanCode/domsim/internal/document"
	"github.com/GriffinCanCode/domsim/internal/logging"
	"github.com/GriffinCanCode/domsim/internal/monitoring"
	"github.com/GriffinCanCode/domsim/internal/sandbox"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// output is the line printed to stdout for every run
type output struct {
	SessionID  string      `json:"session_id"`
	Value      interface{} `json:"value"`
	DurationMs int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("domsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	htmlPath := fs.String("html", "", "HTML document to load")
	scriptPath := fs.String("script", "", "Script to evaluate")
	configPath := fs.String("config", "", "YAML or TOML config file")
	timeout := fs.Duration("timeout", 0, "Evaluation timeout (overrides config)")
	lenient := fs.Bool("lenient", false, "Return {} for invalid selectors instead of aborting")
	logLevel := fs.String("log-level", "", "Log level (overrides config)")
	metricsFile := fs.String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *htmlPath == "" || *scriptPath == "" {
		fmt.Fprintln(stderr, "domsim: -html and -script are required")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "domsim: %v\n", err)
		return 1
	}
	if *timeout > 0 {
		cfg.Sandbox.Timeout = config.Duration(*timeout)
	}
	if *lenient {
		cfg.Sandbox.LenientSelectors = true
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(stderr, "domsim: invalid log level: %v\n", err)
		return 1
	}
	defer logger.Sync()

	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled || *metricsFile != "" {
		metrics = monitoring.NewMetrics(cfg.Metrics.Namespace)
	}

	out, err := evaluate(ctx, cfg, logger, metrics, *htmlPath, *scriptPath)
	if err != nil {
		out.Error = err.Error()
	}

	data, merr := sonic.Marshal(out)
	if merr != nil {
		out.Value = nil
		out.Error = fmt.Sprintf("result is not serialisable: %v", merr)
		data, merr = sonic.Marshal(out)
		if merr != nil {
			fmt.Fprintf(stderr, "domsim: %v\n", merr)
			return 1
		}
		err = errors.New(out.Error)
	}
	fmt.Fprintln(stdout, string(data))

	if metrics != nil {
		if snap, serr := metrics.GetSnapshot(); serr != nil {
			logger.Warn("Failed to gather metrics", zap.Error(serr))
		} else {
			logger.Info("Run summary",
				zap.Int64("evaluations", snap.Evaluations),
				zap.Int64("failures", snap.Failures),
				zap.Int64("queries", snap.Queries))
		}
	}
	if *metricsFile != "" {
		if werr := metrics.WriteTextfile(*metricsFile); werr != nil {
			fmt.Fprintf(stderr, "domsim: %v\n", werr)
			return 1
		}
	}

	if err != nil {
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadOrDefault(), nil
}

// evaluate runs one session over the markup file. The returned output is
// filled as far as the run got, even on error.
func evaluate(ctx context.Context, cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics, htmlPath, scriptPath string) (output, error) {
	var out output

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return out, fmt.Errorf("failed to read script: %w", err)
	}

	f, err := os.Open(htmlPath)
	if err != nil {
		return out, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	loader := document.Loader{
		MaxSize:       cfg.Markup.MaxSizeBytes,
		DetectCharset: cfg.Markup.DetectCharset,
	}
	doc, err := loader.LoadReader(f)
	if err != nil {
		return out, fmt.Errorf("failed to load document: %w", err)
	}

	s, err := sandbox.New(sandbox.ConfigFrom(cfg.Sandbox), doc,
		sandbox.WithLogger(logger),
		sandbox.WithMetrics(metrics))
	if err != nil {
		return out, err
	}
	defer s.Close()

	out.SessionID = s.ID().String()
	result, err := s.Eval(ctx, string(script))
	if result != nil {
		out.Value = result.Value
		out.DurationMs = result.Duration.Milliseconds()
	}
	return out, err
}
