// Command dpinet runs the capture/dissect/broadcast server described
// by a TOML configuration file, optionally overridden by flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dpinet.dev/dpinet/internal/config"
	"dpinet.dev/dpinet/internal/log"
	"dpinet.dev/dpinet/internal/pipeline"
)

var (
	configPath      string
	ifaceName       string
	port            int
	password        string
	compression     string
	promiscuous     bool
	workers         int
	statsIntervalMs int
)

func main() {
	os.Exit(run())
}

func run() int {
	exitCode := 0

	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Capture, dissect, and broadcast decoded network traffic",
		Long: `server captures raw frames from a network interface (or a pcap
file), decodes each frame's nested protocol layers, aggregates traffic
statistics, and broadcasts both over an authenticated TCP connection to
any number of subscribers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = runServer(cmd)
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.toml", "path to TOML config file")
	rootCmd.Flags().StringVar(&ifaceName, "interface", "", "capture interface name")
	rootCmd.Flags().IntVar(&port, "port", 0, "broadcast server TCP port")
	rootCmd.Flags().StringVar(&password, "password", "", "broadcast handshake password")
	rootCmd.Flags().StringVar(&compression, "compression", "", "none|zlib")
	rootCmd.Flags().BoolVar(&promiscuous, "promiscuous", false, "enable promiscuous capture")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "number of dissection worker threads")
	rootCmd.Flags().IntVar(&statsIntervalMs, "stats-interval", 0, "stats snapshot interval in milliseconds")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return exitCode
}

func runServer(cmd *cobra.Command) int {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 2
	}

	log.Init(&log.LoggerConfig{
		Level:    cfg.Log.Level,
		Pattern:  cfg.Log.Pattern,
		Time:     cfg.Log.Time,
		Appender: cfg.Log.Appender,
		FilePath: cfg.Log.FilePath,
	})

	ctx, cancel := context.WithCancel(context.Background())
	restart := false

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-signals
		if sig == syscall.SIGHUP {
			restart = true
		}
		log.GetLogger().WithField("signal", sig.String()).Info("shutdown signal received")
		cancel()
	}()

	p, err := pipeline.New(cfg)
	if err != nil {
		log.GetLogger().WithError(err).Error("failed to initialize pipeline")
		cancel()
		return 1
	}

	runErr := p.Run(ctx)
	cancel()

	if restart {
		return 42
	}
	if runErr != nil {
		log.GetLogger().WithError(runErr).Error("pipeline exited with error")
		return 1
	}
	return 0
}

// loadConfig reads the TOML config file named by --config and applies
// any flag the caller explicitly set on top of it.
func loadConfig(cmd *cobra.Command) (*config.GlobalConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("interface") {
		cfg.Capture.Interface = ifaceName
	}
	if flags.Changed("promiscuous") {
		cfg.Capture.Promiscuous = promiscuous
	}
	if flags.Changed("port") {
		cfg.Broadcast.Port = port
	}
	if flags.Changed("password") {
		cfg.Broadcast.Password = password
	}
	if flags.Changed("compression") {
		cfg.Broadcast.Compression = compression
	}
	if flags.Changed("workers") {
		cfg.Dissect.Workers = workers
	}
	if flags.Changed("stats-interval") {
		cfg.Stats.IntervalMs = statsIntervalMs
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}
