// Command flowlensd runs the flowlens passive MySQL wire-protocol observer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens/internal/api"
	"github.com/flowlens/flowlens/internal/capture"
	"github.com/flowlens/flowlens/internal/config"
	"github.com/flowlens/flowlens/internal/flow"
	applog "github.com/flowlens/flowlens/internal/log"
	"github.com/flowlens/flowlens/internal/metrics"
	"github.com/flowlens/flowlens/internal/pipeline"
	"github.com/flowlens/flowlens/internal/sink"
)

// Exit codes per spec.md §6.7.
const (
	exitOK             = 0
	exitCaptureFailure = 1
	exitConfigInvalid  = 2
	exitInterrupted    = 130
)

var configPath string

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if code, ok := err.(exitCodeError); ok {
			return int(code)
		}
		return exitConfigInvalid
	}
	return exitOK
}

// exitCodeError lets a subcommand propagate a specific process exit code
// through cobra's plain error-returning Execute().
type exitCodeError int

func (e exitCodeError) Error() string { return fmt.Sprintf("exit code %d", int(e)) }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowlensd",
		Short: "Passive MySQL wire-protocol observer",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a flowlens YAML config file")
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(newRunCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start capturing and decoding MySQL traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate the configuration file and print the resolved values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return exitCodeError(exitConfigInvalid)
			}
			out, err := cfg.ToYAML()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return exitCodeError(exitConfigInvalid)
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func runDaemon(parent context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeError(exitConfigInvalid)
	}

	logger, atom, err := applog.New(applog.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeError(exitConfigInvalid)
	}
	defer logger.Sync()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if err := config.Watch(configPath, func(updated *config.Config) {
		if err := applog.ChangeLevel(atom, updated.LogLevel); err != nil {
			logger.Warn("config reload: invalid log_level", zap.Error(err))
		}
	}, stopWatch); err != nil {
		logger.Warn("config hot-reload disabled", zap.Error(err))
	}

	ports, err := cfg.ParsePortMap()
	if err != nil {
		applog.LogError(logger, err, "invalid port_map")
		return exitCodeError(exitConfigInvalid)
	}
	portMap := make(flow.PortMap, len(ports))
	for port, dbType := range ports {
		portMap[port] = flow.DBType(dbType)
	}

	m := metrics.New()
	eventSink := sink.NewChannelSink(cfg.EventChannelCap, cfg.SinkHighWatermark, logger)
	go drainSink(eventSink, logger)

	coordinator := pipeline.New(pipeline.Config{
		Capture: capture.Config{
			Interface: cfg.Interface,
			BPF:       cfg.BPF,
			Promisc:   true,
		},
		PortMap:         portMap,
		IdleTimeout:     cfg.IdleTimeout(),
		MaxBufferedRows: cfg.MaxBufferedRows,
		SweepInterval:   cfg.IdleTimeout() / 10,
	}, m, eventSink, logger)

	admin := api.NewServer(cfg.AdminAddr, m, coordinator.Table(), logger)
	admin.Start()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("flowlens starting",
		zap.String("interface", cfg.Interface),
		zap.String("bpf", cfg.BPF),
		zap.String("admin_addr", cfg.AdminAddr),
	)

	runErr := coordinator.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = admin.Stop(shutdownCtx)
	_ = eventSink.Close()

	// Check ctx.Err() first and independently of runErr: errgroup.Wait
	// propagates the first goroutine's error, which on a signal-triggered
	// shutdown is exactly ctx.Err() itself (context.Canceled), so gating on
	// "runErr != context.Canceled" would never see the interrupted case.
	if ctx.Err() != nil {
		return exitCodeError(exitInterrupted)
	}
	if runErr != nil && runErr != context.Canceled {
		applog.LogError(logger, runErr, "pipeline exited")
		return exitCodeError(exitCaptureFailure)
	}
	return nil
}

func drainSink(s *sink.ChannelSink, logger *zap.Logger) {
	for event := range s.Events() {
		logger.Debug("event",
			zap.String("session_id", event.SessionID),
			zap.String("kind", event.Kind),
		)
	}
}
