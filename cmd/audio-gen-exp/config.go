package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// appConfig holds every runtime setting, populated from flags then
// overridden by AUDIOGEN_* environment variables for anything the caller
// did not explicitly set on the command line (flag wins over env).
type appConfig struct {
	workerEntryPoint string
	workerEnv        []string
	hfAPIKey         string
	outputDirectory  string
	requestFile      string
	logFormat        string
	logLevel         string
	metricsAddr      string
	logMetricsEvery  time.Duration
	callTimeout      time.Duration
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	workerEntryPoint := flag.String("worker-entry-point", "", "Path to the diffusion worker executable")
	hfAPIKey := flag.String("hf-api-key", "", "Hugging Face API key injected into every run template")
	outputDirectory := flag.String("output-directory", os.TempDir(), "Directory the worker writes generated assets into")
	requestFile := flag.String("request-file", "", "Path to a JSON {model, template} request; if set, dispatch it once via RunDiffusionModelTemplateTask and exit instead of running as a long-lived bridge")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	callTimeout := flag.Duration("call-timeout", 0, "If >0, context deadline applied to each worker call (health checks and -request-file runs)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.workerEntryPoint = *workerEntryPoint
	cfg.hfAPIKey = *hfAPIKey
	cfg.outputDirectory = *outputDirectory
	cfg.requestFile = *requestFile
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.callTimeout = *callTimeout
	cfg.workerEnv = os.Environ()

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to spawn the worker or bind a listener – only checks
// values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.workerEntryPoint == "" {
		return errors.New("worker-entry-point must be set")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.logMetricsEvery < 0 {
		return fmt.Errorf("log-metrics-interval must be >= 0")
	}
	if c.callTimeout < 0 {
		return fmt.Errorf("call-timeout must be >= 0")
	}
	return nil
}

// applyEnvOverrides maps AUDIOGEN_* environment variables to config fields
// unless a corresponding flag was explicitly set. Flag wins over env.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["worker-entry-point"]; !ok {
		if v, ok := get("AUDIOGEN_WORKER_ENTRY_POINT"); ok && v != "" {
			c.workerEntryPoint = v
		}
	}
	if _, ok := set["hf-api-key"]; !ok {
		if v, ok := get("AUDIOGEN_HF_API_KEY"); ok && v != "" {
			c.hfAPIKey = v
		}
	}
	if _, ok := set["output-directory"]; !ok {
		if v, ok := get("AUDIOGEN_OUTPUT_DIRECTORY"); ok && v != "" {
			c.outputDirectory = v
		}
	}
	if _, ok := set["request-file"]; !ok {
		if v, ok := get("AUDIOGEN_REQUEST_FILE"); ok && v != "" {
			c.requestFile = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("AUDIOGEN_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("AUDIOGEN_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("AUDIOGEN_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("AUDIOGEN_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid AUDIOGEN_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["call-timeout"]; !ok {
		if v, ok := get("AUDIOGEN_CALL_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.callTimeout = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid AUDIOGEN_CALL_TIMEOUT: %w", err)
			}
		}
	}
	return firstErr
}
