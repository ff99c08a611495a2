// Package cmd implements the jst CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/donaldgifford/jushuitan-go/internal/config"
	"github.com/donaldgifford/jushuitan-go/internal/notify"
	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan/component"
	"github.com/donaldgifford/jushuitan-go/pkg/logger"
	"github.com/donaldgifford/jushuitan-go/pkg/tokencache"
)

const (
	envPrefix    = "JST"
	closeTimeout = 5 * time.Second
)

// app holds the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string

	// promptSecret asks for the app secret when none is configured.
	promptSecret func(w io.Writer) (string, error)

	cfg      *config.Config
	log      *slog.Logger
	store    tokencache.Store
	comp     *component.Component
	shutdown func(context.Context) error
}

func newApp() *app {
	return &app{
		v:            viper.New(),
		promptSecret: promptSecret,
	}
}

// Root returns a fresh root command.
func Root() *cobra.Command {
	return newRootCmd(newApp())
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, newApp())
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes the command tree and releases what the invocation opened,
// whether or not the command failed.
func run(ctx context.Context, a *app) error {
	err := newRootCmd(a).ExecuteContext(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if cerr := a.close(closeCtx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "jst",
		Short: "CLI client for the Jushuitan open API",
		Long: "jst signs and sends requests to the Jushuitan open platform.\n" +
			"It exchanges and refreshes access tokens, keeps them in the\n" +
			"configured token cache, and makes signed business calls.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default $HOME/.config/jst/config.yaml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringP("output", "o", outputTable, "output format (table, json, yaml)")
	flags.String("app-key", "", "open platform app key")
	flags.String("base-url", "", "open API base URL")

	cobra.CheckErr(a.v.BindPFlag("output", flags.Lookup("output")))
	cobra.CheckErr(a.v.BindPFlag("app_key", flags.Lookup("app-key")))
	cobra.CheckErr(a.v.BindPFlag("base_url", flags.Lookup("base-url")))

	root.AddCommand(tokenCmd(a))
	root.AddCommand(callCmd(a))
	root.AddCommand(signCmd(a))
	root.AddCommand(versionCmd())

	return root
}

// setup loads the dotenv file and configuration, then applies flag and
// environment overrides.
func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", a.envFile, err)
		}
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.AutomaticEnv()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	if v := a.v.GetString("app_key"); v != "" {
		cfg.Jushuitan.AppKey = v
	}
	if v := a.v.GetString("app_secret"); v != "" {
		cfg.Jushuitan.AppSecret = v
	}
	if v := a.v.GetString("base_url"); v != "" {
		cfg.Jushuitan.BaseURL = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if format := a.output(); !lo.Contains(outputFormats, format) {
		return fmt.Errorf("unsupported output format %q (want one of: %s)", format, strings.Join(outputFormats, ", "))
	}

	var opts []logger.Option
	if cfg.Jushuitan.LogTokens {
		opts = append(opts, logger.WithoutRedaction())
	}
	a.log = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format, opts...)
	a.cfg = cfg

	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.cfgFile != "" {
		return config.Load(a.cfgFile)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return config.Default(), nil
	}
	path := filepath.Join(home, ".config", "jst", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

// openStore opens the configured token cache once per invocation.
func (a *app) openStore(ctx context.Context) (tokencache.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := tokencache.Open(ctx, a.cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("opening token cache: %w", err)
	}
	a.store = store
	return store, nil
}

// component builds the adapter, prompting for a missing secret.
func (a *app) component(ctx context.Context, w io.Writer) (*component.Component, error) {
	if a.comp != nil {
		return a.comp, nil
	}

	if err := a.requireSecret(w); err != nil {
		return nil, err
	}

	var extra []jushuitan.Option
	if a.cfg.Tracing.Enabled() {
		tp, err := newTracerProvider(ctx, a.cfg.Tracing)
		if err != nil {
			return nil, err
		}
		a.shutdown = tp.Shutdown
		extra = append(extra, jushuitan.WithTracerProvider(tp))
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	comp, err := component.New(a.cfg.Jushuitan.ComponentConfig(extra...), store, component.NewSlogLogger(a.log))
	if err != nil {
		return nil, err
	}
	a.comp = comp
	return comp, nil
}

// notifier reports scheduled refresh failures to the configured webhook.
func (a *app) notifier() notify.Notifier {
	if url := a.cfg.Notify.DiscordWebhookURL; url != "" {
		return notify.NewDiscordNotifier(url)
	}
	return notify.NewNoOpNotifier(a.log)
}

func (a *app) requireSecret(w io.Writer) error {
	if a.cfg.Jushuitan.AppSecret != "" {
		return nil
	}
	secret, err := a.promptSecret(w)
	if err != nil {
		return err
	}
	if secret == "" {
		return errors.New("app secret is required")
	}
	a.cfg.Jushuitan.AppSecret = secret
	return nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
		a.shutdown = nil
	}
	return errors.Join(errs...)
}

func promptSecret(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // stdin descriptor fits in int
	if !term.IsTerminal(fd) {
		return "", errors.New("app secret is required: set JST_APP_SECRET or jushuitan.app_secret")
	}

	fmt.Fprint(w, "App secret: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read app secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}
