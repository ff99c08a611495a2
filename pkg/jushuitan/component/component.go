// Package component wires a jushuitan.Client into a host application. It
// persists access tokens in an injected Cache, restores them on first use,
// and logs API traffic through an injected Logger.
package component

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/donaldgifford/jushuitan-go/internal/metrics"
	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
)

const (
	// DefaultTokenTTL is how long a stored access token is cached.
	DefaultTokenTTL = 7200 * time.Second
	// Channel is the log channel of every entry the component emits.
	Channel = "jushuitan"

	cacheKeyPrefix = "jushuitan"
	accessTokenKey = "access_token"
)

// Cache stores access tokens between process runs.
type Cache interface {
	// Get returns the value for key. A missing or expired key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Config configures a Component.
type Config struct {
	AppKey    string
	AppSecret string
	// TokenTTL is the cache lifetime of stored tokens. Defaults to
	// DefaultTokenTTL.
	TokenTTL time.Duration
	// LogTokens writes token values to the log unmasked.
	LogTokens bool
	// ClientOptions are passed to jushuitan.New.
	ClientOptions []jushuitan.Option
}

// Component is the host-facing adapter around a lazily built client.
type Component struct {
	cfg   Config
	cache Cache
	log   Logger

	mu     sync.Mutex
	client *jushuitan.Client
}

// New validates cfg and returns a Component. A nil log discards entries.
func New(cfg Config, cache Cache, log Logger) (*Component, error) {
	if cfg.AppKey == "" {
		return nil, &jushuitan.Error{Kind: jushuitan.KindConfiguration, Message: "app key must be set"}
	}
	if cfg.AppSecret == "" {
		return nil, &jushuitan.Error{Kind: jushuitan.KindConfiguration, Message: "app secret must be set"}
	}
	if cache == nil {
		return nil, &jushuitan.Error{Kind: jushuitan.KindConfiguration, Message: "cache must be set"}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if log == nil {
		log = NopLogger{}
	}

	return &Component{cfg: cfg, cache: cache, log: log}, nil
}

// CacheKey returns the key the access token is stored under.
func (c *Component) CacheKey() string {
	return CacheKeyFor(c.cfg.AppKey)
}

// CacheKeyFor returns the access token cache key for appKey.
func CacheKeyFor(appKey string) string {
	return cacheKeyPrefix + ":" + appKey + ":" + accessTokenKey
}

// Client returns the underlying client, building it on first use and
// restoring a cached access token without validating it.
func (c *Component) Client(ctx context.Context) (*jushuitan.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := jushuitan.New(c.cfg.AppKey, c.cfg.AppSecret, c.cfg.ClientOptions...)
	if err != nil {
		return nil, err
	}

	token, ok, err := c.cache.Get(ctx, c.CacheKey())
	switch {
	case err != nil:
		metrics.TokenCacheErrorsTotal.WithLabelValues("get").Inc()
		c.log.Log(fmt.Sprintf("Reading cached access token failed: %v", err), LevelWarning, Channel)
	case ok && token != "":
		metrics.TokenCacheHitsTotal.Inc()
		client.SetAccessToken(token)
	default:
		metrics.TokenCacheMissesTotal.Inc()
	}

	c.client = client
	return client, nil
}

// ExchangeToken exchanges an authorization code and caches the new token.
func (c *Component) ExchangeToken(ctx context.Context, code string) (jushuitan.Result, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}
	result, err := client.ExchangeToken(ctx, code)
	if err != nil {
		return nil, err
	}
	c.storeToken(ctx, result.AccessToken(), "Access token obtained")
	return result, nil
}

// RefreshToken refreshes the access token and caches the new one.
func (c *Component) RefreshToken(ctx context.Context, refreshToken string) (jushuitan.Result, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}
	result, err := client.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	c.storeToken(ctx, result.AccessToken(), "Access token refreshed")
	return result, nil
}

// Request logs and sends a business call. The client's result and error
// are returned unchanged.
func (c *Component) Request(ctx context.Context, method, path string, biz any) (jushuitan.Result, error) {
	verb := strings.ToUpper(method)
	if verb == "" {
		verb = "POST"
	}
	params, err := jushuitan.EncodeBiz(biz)
	if err != nil {
		params = fmt.Sprintf("%v", biz)
	}
	c.log.Log(fmt.Sprintf("API request: %s %s %s", verb, path, params), LevelInfo, Channel)

	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}
	result, err := client.Request(ctx, method, path, biz)
	if err != nil {
		return nil, err
	}

	c.log.Log("API response: "+encodeResult(result), LevelInfo, Channel)
	return result, nil
}

func (c *Component) storeToken(ctx context.Context, token, event string) {
	if err := c.cache.Set(ctx, c.CacheKey(), token, c.cfg.TokenTTL); err != nil {
		metrics.TokenCacheErrorsTotal.WithLabelValues("set").Inc()
		c.log.Log(fmt.Sprintf("Caching access token failed: %v", err), LevelWarning, Channel)
	}

	shown := token
	if !c.cfg.LogTokens {
		shown = MaskToken(token)
	}
	c.log.Log(event+": "+shown, LevelInfo, Channel)
}

func encodeResult(r jushuitan.Result) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Sprintf("%v", map[string]any(r))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
