// Package main runs a mock Jushuitan open API server for local development.
// It issues tokens for one app and verifies signed business calls, so jst
// and the SDK can be exercised without real platform credentials.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/donaldgifford/jushuitan-go/internal/config"
	"github.com/donaldgifford/jushuitan-go/internal/mockserver"
	"github.com/donaldgifford/jushuitan-go/pkg/logger"
)

type options struct {
	configPath   string
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	appKey       string
	appSecret    string
	tokenTTL     time.Duration
	codes        []string
	issue        bool
	logLevel     string
	logFormat    string
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	log := logger.New(opts.logLevel, opts.logFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var (
		opts  options
		codes string
	)

	fs := flag.NewFlagSet("mock-server", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", "", "jst config file; its server section sets the address and timeouts")
	fs.StringVar(&opts.addr, "addr", "", "address to listen on (default server.host:server.port)")
	fs.StringVar(&opts.appKey, "app-key", envOr("JST_APP_KEY", "mock-app-key"), "accepted app key")
	fs.StringVar(&opts.appSecret, "app-secret", envOr("JST_APP_SECRET", "mock-app-secret"), "accepted app secret")
	fs.DurationVar(&opts.tokenTTL, "token-ttl", 7200*time.Second, "reported token lifetime")
	fs.StringVar(&codes, "codes", "", "comma-separated authorization codes to accept (default: any)")
	fs.BoolVar(&opts.issue, "issue", false, "issue a token pair at startup and log it")
	fs.StringVar(&opts.logLevel, "log-level", "debug", "log level")
	fs.StringVar(&opts.logFormat, "log-format", "text", "log format (text or json)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			fmt.Fprintln(out, err)
			return options{}, err
		}
		cfg = loaded
	}

	if !set["addr"] {
		opts.addr = cfg.Server.Addr()
	}
	opts.readTimeout = cfg.Server.ReadTimeout
	opts.writeTimeout = cfg.Server.WriteTimeout

	// Flags and JST_* variables win over the config file.
	if !set["app-key"] && os.Getenv("JST_APP_KEY") == "" && cfg.Jushuitan.AppKey != "" {
		opts.appKey = cfg.Jushuitan.AppKey
	}
	if !set["app-secret"] && os.Getenv("JST_APP_SECRET") == "" && cfg.Jushuitan.AppSecret != "" {
		opts.appSecret = cfg.Jushuitan.AppSecret
	}

	for _, c := range strings.Split(codes, ",") {
		if c = strings.TrimSpace(c); c != "" {
			opts.codes = append(opts.codes, c)
		}
	}
	return opts, nil
}

func newServer(opts options, log *slog.Logger) *mockserver.Server {
	s := mockserver.New(mockserver.Config{
		AppKey:    opts.appKey,
		AppSecret: opts.appSecret,
		TokenTTL:  opts.tokenTTL,
	}, log)
	for _, c := range opts.codes {
		s.AddAuthorizationCode(c)
	}
	if opts.issue {
		access, refresh := s.IssueToken()
		log.Info("issued startup token", "mock_access", access, "mock_refresh", refresh)
	}
	return s
}

func run(ctx context.Context, opts options, log *slog.Logger) error {
	s := newServer(opts, log)
	e := s.Echo()
	e.Server.ReadTimeout = opts.readTimeout
	e.Server.WriteTimeout = opts.writeTimeout

	log.Info("starting mock open API server", "addr", opts.addr, "app_key", opts.appKey)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(opts.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
