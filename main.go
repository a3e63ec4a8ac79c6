package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexbotov/wurmstatus/internal/api"
	"github.com/alexbotov/wurmstatus/internal/auth"
	"github.com/alexbotov/wurmstatus/internal/config"
	"github.com/alexbotov/wurmstatus/internal/database"
	"github.com/alexbotov/wurmstatus/internal/history"
	"github.com/alexbotov/wurmstatus/internal/logger"
	"github.com/alexbotov/wurmstatus/internal/monitor"
	"github.com/alexbotov/wurmstatus/pkg/wurm"
)

const usage = `usage: wurmstatus <command> [flags]

commands:
  check          query the Wurm server status once and print a summary
  serve          poll the status endpoint and serve the status API
  hash-password  print a bcrypt hash for auth.password_hash
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "check":
		err = runCheck(os.Args[2:], os.Stdout)
	case "serve":
		err = runServe(os.Args[2:])
	case "hash-password":
		err = runHashPassword(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		if !errors.Is(err, errCheckFailed) {
			logger.Error("wurmstatus failed", "command", os.Args[1], "error", err)
		}
		os.Exit(1)
	}
}

// errCheckFailed marks a status check failure that has already been reported
var errCheckFailed = errors.New("status check failed")

// loadConfig reads the environment and the optional YAML file
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Load()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) error {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Format, level)
	return nil
}

func newStatusClient(cfg *config.Config) *wurm.Client {
	return wurm.NewClient(&wurm.ClientConfig{
		Host:         cfg.Wurm.Host,
		Port:         cfg.Wurm.Port,
		APIKey:       cfg.Wurm.APIKey,
		APIKeyHeader: cfg.Wurm.APIKeyHeader,
		Timeout:      cfg.Wurm.Timeout,
		Logger:       logger.Log,
	})
}

func runCheck(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	host := fs.String("host", "", "Wurm API host (overrides config)")
	port := fs.Int("port", 0, "Wurm API port (overrides config)")
	verbose := fs.Bool("v", false, "Log client diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *host != "" {
		cfg.Wurm.Host = *host
	}
	if *port != 0 {
		cfg.Wurm.Port = *port
	}
	if !*verbose {
		cfg.Log.Level = "error"
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Wurm.Timeout+time.Second)
	defer cancel()

	status, err := newStatusClient(cfg).GetStatus(ctx)
	if err != nil {
		fmt.Fprintf(out, "Error during status check: %s\n", err)
		return errCheckFailed
	}

	printStatus(out, status)
	return nil
}

func printStatus(out io.Writer, status *wurm.StatusResult) {
	fmt.Fprintf(out, "Status check as at %s:\n", status.TimeStamp)
	if status.Running {
		fmt.Fprintln(out, "Game server is running.")
	} else {
		fmt.Fprintln(out, "Game server is not running.")
	}
	if status.Connected {
		fmt.Fprintln(out, "API is connected")
	} else {
		fmt.Fprintln(out, "API is not connected")
	}
}

func runHashPassword(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: wurmstatus hash-password <password>")
	}
	hash, err := auth.HashPassword(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hash)
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return err
	}
	if cfg.UsesDefaultJWTSecret() {
		logger.Warn("Using the built-in JWT secret; set WURMSTATUS_JWT_SECRET or auth.jwt_secret before exposing the API")
	}

	db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}

	client := newStatusClient(cfg)
	historySvc := history.New(db.DB)
	mon := monitor.New(client, historySvc, cfg.Monitor.PollInterval, cfg.Monitor.Retention)
	handler := api.New(mon, historySvc, auth.New(&cfg.Auth))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go mon.Run(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.SetupRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", httpServer.Addr, "target", client.StatusURL(),
			"poll_interval", cfg.Monitor.PollInterval, "db_driver", cfg.Database.Driver)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
	return nil
}
