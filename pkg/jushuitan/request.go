package jushuitan

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/jushuitan-go/internal/metrics"
)

// Request sends a signed business call and returns the decoded response.
//
// biz is serialized to compact JSON. Structs keep their field order, maps are
// sorted by key, and json.RawMessage or []byte values are taken as JSON text.
// A nil biz is sent as "{}". An empty method means POST.
//
// Request fails with a configuration error, without touching the network,
// when no access token is set.
func (c *Client) Request(ctx context.Context, method, path string, biz any) (Result, error) {
	if method == "" {
		method = http.MethodPost
	}
	method = strings.ToUpper(method)

	ctx, span := c.tracer.Start(ctx, "jushuitan.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("jushuitan.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := c.request(ctx, method, path, biz)
	metrics.APIRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	metrics.APIRequestsTotal.WithLabelValues(path, outcomeOf(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := CodeOf(err); code != 0 {
			span.SetAttributes(attribute.Int("jushuitan.code", code))
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) request(ctx context.Context, method, path string, biz any) (Result, error) {
	token, ok := c.AccessToken()
	if !ok {
		return nil, newConfigurationError("access token not set")
	}

	encoded, err := EncodeBiz(biz)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Message: "encoding biz: " + err.Error(), Err: err}
	}

	params := c.envelope(token, encoded)

	form := make(url.Values, len(params))
	for k, v := range params {
		form.Set(k, v)
	}

	return c.post(ctx, method, path, bizContentType, form)
}

// envelope builds the signed parameter set for a business call.
func (c *Client) envelope(token, biz string) map[string]string {
	params := map[string]string{
		FieldAppKey:      c.appKey,
		FieldAccessToken: token,
		FieldTimestamp:   strconv.FormatInt(c.nowFunc().Unix(), 10),
		FieldVersion:     envelopeVersion,
		FieldCharset:     envelopeCharset,
		FieldBiz:         biz,
	}
	params[FieldSign] = Sign(c.appSecret, params)
	return params
}

// EncodeBiz serializes business parameters the way Request sends them:
// compact JSON without HTML escaping.
func EncodeBiz(biz any) (string, error) {
	switch v := biz.(type) {
	case nil:
		return "{}", nil
	case json.RawMessage:
		return compactJSON(v)
	case []byte:
		return compactJSON(v)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(biz); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func compactJSON(raw []byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
