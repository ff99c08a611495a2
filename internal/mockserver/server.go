// Package mockserver emulates the Jushuitan open API for local development
// and tests. It issues tokens for one configured app and verifies the
// signed envelope of every business call.
package mockserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Error envelope codes returned by the mock.
const (
	CodeInvalidSign        = 40001
	CodeInvalidAccessToken = 40002
	CodeInvalidAppKey      = 40003
	CodeInvalidGrant       = 40004
	CodeInvalidBiz         = 40005
)

const envelopeCodeKey = "envelope_code"

// Config holds the credentials the mock accepts.
type Config struct {
	AppKey    string
	AppSecret string
	// TokenTTL is reported as expires_in. Defaults to 7200s.
	TokenTTL time.Duration
}

// Server is the mock open API.
type Server struct {
	cfg  Config
	log  *slog.Logger
	echo *echo.Echo

	mu            sync.Mutex
	accessTokens  map[string]struct{}
	refreshTokens map[string]struct{}
	codes         map[string]struct{}
	// restrictCodes is set once any code is registered; from then on only
	// unused registered codes are accepted.
	restrictCodes bool
}

// New creates a Server with routes and middleware installed.
func New(cfg Config, log *slog.Logger) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7200 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:           cfg,
		log:           log,
		accessTokens:  make(map[string]struct{}),
		refreshTokens: make(map[string]struct{}),
		codes:         make(map[string]struct{}),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(Recovery(log))
	e.Use(RequestLog(log))
	e.Use(Metrics())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/auth/token", s.handleToken)
	e.Any("/*", s.handleBusiness)

	s.echo = e
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Echo returns the underlying Echo instance for Start and Shutdown.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// AddAuthorizationCode registers a one-time code accepted by the token
// endpoint. Until the first code is registered any non-empty code is
// accepted.
func (s *Server) AddAuthorizationCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = struct{}{}
	s.restrictCodes = true
}

// IssueToken creates a valid access/refresh token pair without a request.
func (s *Server) IssueToken() (accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked()
}

// RevokeAccessToken makes token invalid for business calls.
func (s *Server) RevokeAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessTokens, token)
}
