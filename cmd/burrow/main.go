package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/server"
	"github.com/cuemby/burrow/pkg/store"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow <database>",
	Short: "Burrow - durable memcached-protocol key-value store",
	Long: `Burrow is an in-memory key-value store speaking the memcached text
protocol, with durability through an append-only commit log and periodic
checkpoints into a SQLite table.

After a crash, Burrow reloads the last checkpoint and replays the commit log
to reconstruct its state.`,
	Version: Version,
	Args:    cobra.ExactArgs(1),
	RunE:    runServe,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.Flags().String("config", "", "Read configuration from this YAML file")
	rootCmd.Flags().String("bind", "127.0.0.1", "IP for the server to bind to")
	rootCmd.Flags().IntP("port", "p", 11211, "Port for the server to listen on")

	// Initialize logging before command execution
	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	dbPath := args[0]
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database path %s: %w", dbPath, err)
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	bind, _ := cmd.Flags().GetString("bind")
	if !cmd.Flags().Changed("bind") && cfg.Bind != "" {
		bind = cfg.Bind
	}
	port, _ := cmd.Flags().GetInt("port")
	if !cmd.Flags().Changed("port") && cfg.Port != 0 {
		port = cfg.Port
	}

	logPath := cfg.CommitLog
	if logPath == "" {
		logPath = dbPath + ".log"
	}

	st, err := store.Open(dbPath, logPath)
	if err != nil {
		return err
	}
	defer st.Close()

	flusher := store.NewFlusher(st, cfg.FlushInterval())
	flusher.Start()
	defer flusher.Stop()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			srv := &http.Server{
				Addr:        cfg.MetricsAddr,
				Handler:     mux,
				ReadTimeout: 5 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics server failed", err)
			}
		}()
	}

	if cfg.StatusAddr != "" {
		statusServer := api.NewStatusServer(st)
		go func() {
			if err := statusServer.Start(cfg.StatusAddr); err != nil && err != http.ErrServerClosed {
				log.Errorf("status server failed", err)
			}
		}()
	}

	srv := server.NewServer(st)
	if err := srv.Listen(fmt.Sprintf("%s:%d", bind, port)); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Logger.Info().Str("signal", sig.String()).Msg("stopping server")
		srv.Stop()
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	return nil
}
