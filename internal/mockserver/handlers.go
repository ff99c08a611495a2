package mockserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
)

// envelope is the platform's response shape.
type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

type tokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

type echoData struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Biz    any    `json:"biz"`
}

func (s *Server) handleToken(c echo.Context) error {
	form, err := readParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if form.Get(jushuitan.FieldAppKey) != s.cfg.AppKey || form.Get("app_secret") != s.cfg.AppSecret {
		return s.fail(c, CodeInvalidAppKey, "invalid app key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch form.Get("grant_type") {
	case jushuitan.GrantAuthorizationCode:
		code := form.Get("code")
		if code == "" {
			return s.fail(c, CodeInvalidGrant, "missing authorization code")
		}
		if s.restrictCodes {
			if _, ok := s.codes[code]; !ok {
				return s.fail(c, CodeInvalidGrant, "invalid authorization code")
			}
			delete(s.codes, code)
		}

	case jushuitan.GrantRefreshToken:
		refresh := form.Get("refresh_token")
		if _, ok := s.refreshTokens[refresh]; !ok {
			return s.fail(c, CodeInvalidGrant, "invalid refresh token")
		}
		delete(s.refreshTokens, refresh)

	default:
		return s.fail(c, CodeInvalidGrant, fmt.Sprintf("unsupported grant_type %q", form.Get("grant_type")))
	}

	access, refresh := s.issueLocked()
	s.log.Debug("issued token", "grant_type", form.Get("grant_type"))

	return s.ok(c, tokenData{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.cfg.TokenTTL.Seconds()),
	})
}

func (s *Server) handleBusiness(c echo.Context) error {
	params, err := readParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	flat := make(map[string]string, len(params))
	for k := range params {
		flat[k] = params.Get(k)
	}

	if flat[jushuitan.FieldAppKey] != s.cfg.AppKey {
		return s.fail(c, CodeInvalidAppKey, "invalid app key")
	}
	if !s.validAccessToken(flat[jushuitan.FieldAccessToken]) {
		return s.fail(c, CodeInvalidAccessToken, "invalid access token")
	}
	if !jushuitan.Verify(s.cfg.AppSecret, flat) {
		return s.fail(c, CodeInvalidSign, "invalid sign")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(flat[jushuitan.FieldBiz])))
	dec.UseNumber()
	var biz any
	if err := dec.Decode(&biz); err != nil {
		return s.fail(c, CodeInvalidBiz, "invalid biz: "+err.Error())
	}

	return s.ok(c, echoData{
		Method: c.Request().Method,
		Path:   c.Request().URL.Path,
		Biz:    biz,
	})
}

func (s *Server) ok(c echo.Context, data any) error {
	c.Set(envelopeCodeKey, 0)
	return c.JSON(http.StatusOK, envelope{Code: 0, Msg: "ok", Data: data})
}

// fail answers with an error envelope. The platform reports errors with
// HTTP 200.
func (s *Server) fail(c echo.Context, code int, msg string) error {
	c.Set(envelopeCodeKey, code)
	return c.JSON(http.StatusOK, envelope{Code: code, Msg: msg})
}

func (s *Server) validAccessToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accessTokens[token]
	return ok
}

func (s *Server) issueLocked() (accessToken, refreshToken string) {
	accessToken = uuid.NewString()
	refreshToken = uuid.NewString()
	s.accessTokens[accessToken] = struct{}{}
	s.refreshTokens[refreshToken] = struct{}{}
	return accessToken, refreshToken
}

// readParams merges the query string with a form-encoded body regardless
// of method.
func readParams(c echo.Context) (url.Values, error) {
	params, err := url.ParseQuery(c.Request().URL.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("parsing query: %w", err)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(body) == 0 {
		return params, nil
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing form body: %w", err)
	}
	for k, vs := range form {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	return params, nil
}
