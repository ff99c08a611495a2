package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/jushuitan-go/internal/refresher"
	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan/component"
	"github.com/donaldgifford/jushuitan-go/pkg/tokencache"
)

// tokenView is the printed form of a token pair.
type tokenView struct {
	CacheKey     string `json:"cache_key"               yaml:"cache_key"`
	AccessToken  string `json:"access_token,omitempty"  yaml:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"    yaml:"expires_in,omitempty"`
	CacheFile    string `json:"cache_file,omitempty"    yaml:"cache_file,omitempty"`
}

func newTokenView(cacheKey string, r jushuitan.Result, reveal bool) tokenView {
	return tokenView{
		CacheKey:     cacheKey,
		AccessToken:  shown(r.AccessToken(), reveal),
		RefreshToken: shown(r.RefreshToken(), reveal),
		ExpiresIn:    r.ExpiresIn(),
	}
}

func (v tokenView) fields() []field {
	fields := []field{{Key: "Cache Key", Value: v.CacheKey}}
	if v.AccessToken != "" {
		fields = append(fields, field{Key: "Access Token", Value: v.AccessToken})
	}
	if v.RefreshToken != "" {
		fields = append(fields, field{Key: "Refresh Token", Value: v.RefreshToken})
	}
	if v.ExpiresIn > 0 {
		fields = append(fields, field{Key: "Expires In", Value: strconv.Itoa(v.ExpiresIn) + "s"})
	}
	if v.CacheFile != "" {
		fields = append(fields, field{Key: "Cache File", Value: v.CacheFile})
	}
	return fields
}

func shown(token string, reveal bool) string {
	if reveal || token == "" {
		return token
	}
	return component.MaskToken(token)
}

func tokenCmd(a *app) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain, refresh, and inspect access tokens",
	}
	cmd.PersistentFlags().BoolVar(&reveal, "reveal", false, "print token values unmasked")

	cmd.AddCommand(tokenExchangeCmd(a, &reveal))
	cmd.AddCommand(tokenRefreshCmd(a, &reveal))
	cmd.AddCommand(tokenShowCmd(a, &reveal))
	cmd.AddCommand(tokenKeepCmd(a, &reveal))

	return cmd
}

func tokenExchangeCmd(a *app, reveal *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "exchange <code>",
		Short:   "Exchange an authorization code for an access token",
		Example: "  jst token exchange 5f2c9a --reveal",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.component(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			res, err := comp.ExchangeToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			view := newTokenView(comp.CacheKey(), res, *reveal)
			return a.print(cmd.OutOrStdout(), view, view.fields())
		},
	}
}

func tokenRefreshCmd(a *app, reveal *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <refresh-token>",
		Short: "Refresh the access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.component(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			res, err := comp.RefreshToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			view := newTokenView(comp.CacheKey(), res, *reveal)
			return a.print(cmd.OutOrStdout(), view, view.fields())
		},
	}
}

func tokenShowCmd(a *app, reveal *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cached access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Jushuitan.AppKey == "" {
				return errors.New("app key is required: set --app-key or JST_APP_KEY")
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}

			key := component.CacheKeyFor(a.cfg.Jushuitan.AppKey)
			token, ok, err := store.Get(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", key, err)
			}
			if !ok {
				return fmt.Errorf("no cached access token for app key %q", a.cfg.Jushuitan.AppKey)
			}

			view := tokenView{CacheKey: key, AccessToken: shown(token, *reveal)}
			if f, ok := store.(*tokencache.File); ok {
				view.CacheFile = f.Path()
			}
			return a.print(cmd.OutOrStdout(), view, view.fields())
		},
	}
}

func tokenKeepCmd(a *app, reveal *bool) *cobra.Command {
	var (
		refreshToken string
		schedule     string
		now          bool
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "keep",
		Short: "Refresh the access token on a schedule until interrupted",
		Long: "keep refreshes the access token on a cron schedule and stores each\n" +
			"new token in the cache. Rotated refresh tokens are followed, and the\n" +
			"latest one is printed on exit.",
		Example: "  jst token keep --refresh-token $REFRESH --schedule '@every 90m'",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			comp, err := a.component(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			r, err := refresher.New(comp, refreshToken, schedule, a.log)
			if err != nil {
				return err
			}
			r.AppKey = a.cfg.Jushuitan.AppKey
			r.Notifier = a.notifier()
			r.OnRefresh = logRefresh(a.log)

			if metricsAddr != "" {
				srv, err := startMetricsServer(metricsAddr, a.log)
				if err != nil {
					return err
				}
				defer func() {
					sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
					defer cancel()
					stopMetricsServer(sctx, srv, a.log)
				}()
			}

			if now {
				if _, err := r.RefreshNow(ctx); err != nil {
					return err
				}
			}

			r.Start()
			a.log.Info("waiting for next refresh", "next", r.Next())
			<-ctx.Done()
			<-r.Stop().Done()

			view := tokenView{CacheKey: comp.CacheKey(), RefreshToken: shown(r.RefreshToken(), *reveal)}
			return a.print(cmd.OutOrStdout(), view, view.fields())
		},
	}

	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token to start from")
	cmd.Flags().StringVar(&schedule, "schedule", refresher.DefaultSchedule, "cron schedule of refreshes")
	cmd.Flags().BoolVar(&now, "now", true, "refresh once before waiting for the schedule")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	cobra.CheckErr(cmd.MarkFlagRequired("refresh-token"))

	return cmd
}

// logRefresh records a scheduled refresh. The token itself is left to the
// component's audit entry, which masks it.
func logRefresh(log *slog.Logger) func(jushuitan.Result) {
	return func(res jushuitan.Result) {
		log.Info("scheduled refresh stored new token",
			"expires_in", res.ExpiresIn(),
			"refresh_token_rotated", res.RefreshToken() != "",
		)
	}
}
