package jushuitan_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/donaldgifford/jushuitan-go/internal/metrics"
	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
)

const (
	testAppKey    = "test-app-key"
	testAppSecret = "test-app-secret"
	testToken     = "test-access-token"
)

var fixedNow = time.Unix(1700000000, 0)

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// capturedRequest is what a test server saw.
type capturedRequest struct {
	method      string
	path        string
	contentType string
	header      http.Header
	form        url.Values
}

// newServer starts a server that records the last request and answers with
// status and body.
func newServer(t *testing.T, status int, body string) (*httptest.Server, func() capturedRequest) {
	t.Helper()

	var (
		mu   sync.Mutex
		last capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		form, _ := url.ParseQuery(string(raw))

		mu.Lock()
		last = capturedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			header:      r.Header.Clone(),
			form:        form,
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, func() capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func newClient(t *testing.T, baseURL string, opts ...jushuitan.Option) *jushuitan.Client {
	t.Helper()

	opts = append([]jushuitan.Option{
		jushuitan.WithBaseURL(baseURL),
		jushuitan.WithNowFunc(func() time.Time { return fixedNow }),
	}, opts...)
	c, err := jushuitan.New(testAppKey, testAppSecret, opts...)
	require.NoError(t, err)
	return c
}

func flatten(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for k := range form {
		out[k] = form.Get(k)
	}
	return out
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		appKey    string
		appSecret string
		wantErr   bool
	}{
		{name: "valid credentials", appKey: "k", appSecret: "s"},
		{name: "missing app key", appSecret: "s", wantErr: true},
		{name: "missing app secret", appKey: "k", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := jushuitan.New(tt.appKey, tt.appSecret)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, jushuitan.IsConfiguration(err))
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.appKey, c.AppKey())
			_, ok := c.AccessToken()
			assert.False(t, ok)
		})
	}
}

func TestClient_Request_RequiresToken(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	spy := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, io.EOF
	})}

	c := newClient(t, "http://example.invalid", jushuitan.WithHTTPClient(spy))

	_, err := c.Request(context.Background(), http.MethodPost, "/open/orders/single/query", nil)
	require.Error(t, err)
	assert.True(t, jushuitan.IsConfiguration(err))
	assert.Contains(t, err.Error(), "access token not set")
	assert.Zero(t, calls.Load())
}

func TestClient_Request_Envelope(t *testing.T) {
	t.Parallel()

	type orderQuery struct {
		PageSize  int    `json:"page_size"`
		PageIndex int    `json:"page_index"`
		ShopName  string `json:"shop_name"`
	}

	tests := []struct {
		name     string
		method   string
		biz      any
		wantBiz  string
		wantVerb string
	}{
		{
			name:     "map sorted by key",
			method:   http.MethodPost,
			biz:      map[string]any{"page_size": 50, "page_index": 1},
			wantBiz:  `{"page_index":1,"page_size":50}`,
			wantVerb: http.MethodPost,
		},
		{
			name:     "struct keeps field order without html escaping",
			method:   "post",
			biz:      orderQuery{PageSize: 50, PageIndex: 1, ShopName: "<A&B>"},
			wantBiz:  `{"page_size":50,"page_index":1,"shop_name":"<A&B>"}`,
			wantVerb: http.MethodPost,
		},
		{
			name:     "raw json compacted",
			method:   http.MethodGet,
			biz:      json.RawMessage("{\n  \"so_ids\": [\"A1\", \"A2\"]\n}"),
			wantBiz:  `{"so_ids":["A1","A2"]}`,
			wantVerb: http.MethodGet,
		},
		{
			name:     "nil biz and empty method",
			biz:      nil,
			wantBiz:  `{}`,
			wantVerb: http.MethodPost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, last := newServer(t, http.StatusOK, `{"code":0,"msg":"ok","data":{"total":7,"amount":12.50}}`)
			c := newClient(t, srv.URL, jushuitan.WithHeaders(map[string]string{"X-Trace": "abc"}))
			c.SetAccessToken(testToken)

			res, err := c.Request(context.Background(), tt.method, "/open/orders/single/query", tt.biz)
			require.NoError(t, err)

			got := last()
			assert.Equal(t, tt.wantVerb, got.method)
			assert.Equal(t, "/open/orders/single/query", got.path)
			assert.Equal(t, "application/x-www-form-urlencoded;charset=UTF-8", got.contentType)
			assert.Equal(t, "abc", got.header.Get("X-Trace"))

			params := flatten(got.form)
			assert.Equal(t, testAppKey, params["app_key"])
			assert.Equal(t, testToken, params["access_token"])
			assert.Equal(t, "1700000000", params["timestamp"])
			assert.Equal(t, "2", params["version"])
			assert.Equal(t, "utf-8", params["charset"])
			assert.Equal(t, tt.wantBiz, params["biz"])
			assert.Len(t, params, 7)
			assert.True(t, jushuitan.Verify(testAppSecret, params), "sign must verify")

			assert.Zero(t, res.Code())
			assert.Equal(t, "ok", res.Msg())
			assert.Equal(t, json.Number("7"), res.Data()["total"])
			assert.Equal(t, json.Number("12.50"), res.Data()["amount"])
		})
	}
}

func TestClient_Request_Responses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		check    func(t *testing.T, err error)
		wantCode int
	}{
		{
			name:   "error envelope",
			status: http.StatusOK,
			body:   `{"code":40001,"msg":"invalid sign"}`,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, jushuitan.IsAPI(err))
				assert.Contains(t, err.Error(), "invalid sign")
			},
			wantCode: 40001,
		},
		{
			name:   "error envelope without msg",
			status: http.StatusOK,
			body:   `{"code":100}`,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, jushuitan.IsAPI(err))
				assert.Contains(t, err.Error(), "Unknown error")
			},
			wantCode: 100,
		},
		{
			name:   "string zero code is not success",
			status: http.StatusOK,
			body:   `{"code":"0","msg":"odd"}`,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, jushuitan.IsAPI(err))
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, jushuitan.IsProtocol(err))
				assert.Contains(t, err.Error(), "failed to parse response")
			},
		},
		{
			name:   "array body",
			status: http.StatusOK,
			body:   `[1,2,3]`,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, jushuitan.IsProtocol(err))
			},
		},
		{
			name:   "null body",
			status: http.StatusOK,
			body:   `null`,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, jushuitan.IsProtocol(err))
			},
		},
		{
			name:   "server error status",
			status: http.StatusBadGateway,
			body:   `upstream down`,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, jushuitan.IsTransport(err))
				assert.Contains(t, err.Error(), "upstream down")
			},
			wantCode: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newServer(t, tt.status, tt.body)
			c := newClient(t, srv.URL)
			c.SetAccessToken(testToken)

			res, err := c.Request(context.Background(), http.MethodPost, "/open/shops/query", nil)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.wantCode, jushuitan.CodeOf(err))
			tt.check(t, err)
		})
	}
}

func TestClient_Request_ReturnsEnvelopeUnchanged(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, http.StatusOK, `{"code":0,"msg":"ok","data":{"x":1}}`)
	c := newClient(t, srv.URL)
	c.SetAccessToken(testToken)

	res, err := c.Request(context.Background(), http.MethodPost, "/open/shops/query", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, jushuitan.Result{
		"code": json.Number("0"),
		"msg":  "ok",
		"data": map[string]any{"x": json.Number("1")},
	}, res)
}

func TestClient_Request_SuccessWithoutCode(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, http.StatusOK, `{"data":{"items":[]},"extra":null}`)
	c := newClient(t, srv.URL)
	c.SetAccessToken(testToken)

	res, err := c.Request(context.Background(), http.MethodPost, "/open/shops/query", nil)
	require.NoError(t, err)
	assert.Contains(t, res, "extra")
	assert.Equal(t, []any{}, res.Data()["items"])
}

func TestClient_Request_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := newClient(t, srv.URL)
	c.SetAccessToken(testToken)

	_, err := c.Request(context.Background(), http.MethodPost, "/open/shops/query", nil)
	require.Error(t, err)
	assert.True(t, jushuitan.IsTransport(err))
	assert.Zero(t, jushuitan.CodeOf(err))

	var jerr *jushuitan.Error
	require.ErrorAs(t, err, &jerr)
	assert.Error(t, jerr.Unwrap())
}

func TestClient_Request_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, http.StatusOK, `{"code":0}`)
	c := newClient(t, srv.URL)
	c.SetAccessToken(testToken)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Request(ctx, http.MethodPost, "/open/shops/query", nil)
	require.Error(t, err)
	assert.True(t, jushuitan.IsTransport(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_ExchangeToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantToken string
		wantErr   func(error) bool
	}{
		{
			name:      "top-level token",
			body:      `{"code":0,"access_token":"tok-1","refresh_token":"ref-1","expires_in":7200}`,
			wantToken: "tok-1",
		},
		{
			name:      "token nested under data",
			body:      `{"code":0,"msg":"ok","data":{"access_token":"tok-2","refresh_token":"ref-2","expires_in":86400}}`,
			wantToken: "tok-2",
		},
		{
			name:    "error envelope",
			body:    `{"code":40003,"msg":"invalid app key"}`,
			wantErr: jushuitan.IsAPI,
		},
		{
			name:    "no token in payload",
			body:    `{"code":0,"data":{}}`,
			wantErr: jushuitan.IsProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, last := newServer(t, http.StatusOK, tt.body)
			c := newClient(t, srv.URL)

			res, err := c.ExchangeToken(context.Background(), "auth-code")

			got := last()
			assert.Equal(t, http.MethodPost, got.method)
			assert.Equal(t, "/auth/token", got.path)
			assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
			assert.Equal(t, map[string]string{
				"grant_type": "authorization_code",
				"code":       "auth-code",
				"app_key":    testAppKey,
				"app_secret": testAppSecret,
			}, flatten(got.form))

			token, ok := c.AccessToken()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err))
				assert.False(t, ok)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, res.AccessToken())
			assert.NotEmpty(t, res.RefreshToken())
			assert.Positive(t, res.ExpiresIn())
			assert.True(t, ok)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestClient_RefreshToken(t *testing.T) {
	t.Parallel()

	srv, last := newServer(t, http.StatusOK, `{"code":0,"access_token":"tok-new","refresh_token":"ref-new"}`)
	c := newClient(t, srv.URL)
	c.SetAccessToken("tok-old")

	res, err := c.RefreshToken(context.Background(), "ref-old")
	require.NoError(t, err)
	assert.Equal(t, "ref-new", res.RefreshToken())

	assert.Equal(t, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": "ref-old",
		"app_key":       testAppKey,
		"app_secret":    testAppSecret,
	}, flatten(last().form))

	token, _ := c.AccessToken()
	assert.Equal(t, "tok-new", token)
}

func TestClient_TokenThenRequest(t *testing.T) {
	t.Parallel()

	var bizToken atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.URL.Path == "/auth/token" {
			_, _ = w.Write([]byte(`{"code":0,"access_token":"issued"}`))
			return
		}
		bizToken.Store(r.PostForm.Get("access_token"))
		_, _ = w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	_, err := c.ExchangeToken(context.Background(), "code")
	require.NoError(t, err)

	_, err = c.Request(context.Background(), "", "open/shops/query", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "issued", bizToken.Load())
}

func TestClient_Tracing(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	srv, _ := newServer(t, http.StatusOK, `{"code":40001,"msg":"invalid sign"}`)
	c := newClient(t, srv.URL, jushuitan.WithTracerProvider(tp))
	c.SetAccessToken(testToken)

	_, err := c.Request(context.Background(), http.MethodPost, "/open/trace/query", nil)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "jushuitan.request", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := make(map[string]string)
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "POST", attrs["http.request.method"])
	assert.Equal(t, "/open/trace/query", attrs["jushuitan.path"])
	assert.Equal(t, "40001", attrs["jushuitan.code"])
}

func TestClient_Metrics(t *testing.T) {
	t.Parallel()

	const path = "/open/metrics/query"
	ok := metrics.APIRequestsTotal.WithLabelValues(path, metrics.OutcomeSuccess)
	apiErr := metrics.APIRequestsTotal.WithLabelValues(path, metrics.OutcomeAPI)
	okBefore := counterValue(t, ok)
	errBefore := counterValue(t, apiErr)

	srvOK, _ := newServer(t, http.StatusOK, `{"code":0}`)
	srvErr, _ := newServer(t, http.StatusOK, `{"code":1,"msg":"no"}`)

	for _, base := range []string{srvOK.URL, srvErr.URL} {
		c := newClient(t, base)
		c.SetAccessToken(testToken)
		_, _ = c.Request(context.Background(), http.MethodPost, path, nil) //nolint:errcheck // counted below
	}

	assert.InDelta(t, okBefore+1, counterValue(t, ok), 0)
	assert.InDelta(t, errBefore+1, counterValue(t, apiErr), 0)
}
