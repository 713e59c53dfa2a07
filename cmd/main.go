// Package main is the entry point for the parallel ping sweeper.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/m0h1nd4/parallel-ping-sweeper/internal/api"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/config"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/hosts"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/publisher"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/report"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/sweeper"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/webhook"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("pingsweep", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pingsweep [flags] NETWORK\n\n"+
			"Sweep every host of an IPv4/IPv6 CIDR block with ICMP echo probes,\n"+
			"e.g. pingsweep 192.168.1.0/24 or pingsweep 2001:db8::/120\n\nFlags:\n")
		flags.PrintDefaults()
	}

	flags.IntP("concurrency", "c", 200, "number of concurrent probes")
	flags.Float64P("timeout", "t", 1.0, "per-host timeout in seconds")
	flags.Int("count", 1, "echo requests per host")
	flags.Bool("only-online", false, "print and export only online hosts")
	jsonPath := flags.String("json", "", "write results as JSON to this file path")
	csvPath := flags.String("csv", "", "write results as CSV to this file path")
	flags.Bool("quiet", false, "suppress console output")
	flags.String("probe", "icmp", "probe mechanism: icmp or system")
	flags.Int("rate-limit", 0, "maximum probe admissions per second, 0 disables")
	flags.Bool("privileged", false, "use raw ICMP sockets instead of UDP pings")
	serve := flags.Bool("serve", false, "run the HTTP sweep service instead of a one-shot sweep")
	flags.String("listen", ":8001", "service mode listen address")
	flags.String("amqp-url", "", "publish sweep events to this AMQP broker")
	flags.String("webhook-url", "", "POST a completion summary to this URL")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return exitFailure
	}

	logger, err := newLogger(cfg.Sweep.Quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if *serve {
		return runServe(cfg, sugar)
	}

	if flags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one NETWORK argument is required")
		flags.Usage()
		return exitUsage
	}

	return runSweep(flags.Arg(0), cfg, *jsonPath, *csvPath, sugar)
}

// newLogger builds the diagnostic logger. Diagnostics go to stderr so the
// report output on stdout stays clean; quiet mode raises the level so only
// real problems surface.
func newLogger(quiet bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if quiet {
		zcfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	return zcfg.Build()
}

func runSweep(networkArg string, cfg *config.Config, jsonPath, csvPath string, sugar *zap.SugaredLogger) int {
	if err := cfg.Sweep.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	network, err := hosts.ParseNetwork(networkArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	sweepID := uuid.New().String()
	sw := sweeper.New(cfg.Sweep, sweeper.NewExecutor(cfg.Sweep), sugar)
	sw.SetProgress(true)

	result, err := sw.Run(context.Background(), network)
	if err != nil {
		sugar.Errorw("Sweep failed", "network", networkArg, "error", err)
		return exitFailure
	}

	code := exitOK

	if jsonPath != "" {
		if err := report.WriteJSON(result, jsonPath); err != nil {
			sugar.Errorw("JSON export failed", "path", jsonPath, "error", err)
			code = exitFailure
		}
	}
	if csvPath != "" {
		if err := report.WriteCSV(result, csvPath); err != nil {
			sugar.Errorw("CSV export failed", "path", csvPath, "error", err)
			code = exitFailure
		}
	}

	if cfg.RabbitMQ.URL != "" {
		publishResult(sweepID, result, cfg.RabbitMQ, sugar)
	}
	if cfg.Webhook.URL != "" {
		notifier := webhook.NewNotifier(cfg.Webhook.URL, sugar)
		if err := notifier.NotifyComplete(sweepID, result); err != nil {
			sugar.Warnw("Completion webhook failed", "error", err)
		}
	}

	report.Console(os.Stdout, result)

	return code
}

func publishResult(sweepID string, result *sweeper.Result, cfg config.RabbitMQConfig, sugar *zap.SugaredLogger) {
	pub, err := publisher.New(cfg.URL, cfg.Exchange, sugar)
	if err != nil {
		sugar.Errorw("Failed to connect publisher", "error", err)
		return
	}
	defer pub.Close()

	if err := pub.PublishResult(sweepID, result); err != nil {
		sugar.Warnw("Publishing sweep events failed", "error", err)
	}
}

func runServe(cfg *config.Config, sugar *zap.SugaredLogger) int {
	sugar.Infow("Starting sweep service",
		"listen", cfg.Server.Listen,
		"concurrency", cfg.Sweep.Concurrency,
		"probe", cfg.Sweep.Probe,
	)

	server := api.New(cfg.Sweep, sugar)

	httpServer := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infof("HTTP server listening on %s", cfg.Server.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		sugar.Errorf("HTTP server error: %v", err)
		return exitFailure
	case <-quit:
	}

	sugar.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		sugar.Errorf("Server forced to shutdown: %v", err)
		return exitFailure
	}

	sugar.Info("Server stopped")
	return exitOK
}
