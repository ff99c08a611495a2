package jushuitan

import (
	"context"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/jushuitan-go/internal/metrics"
)

// Grant types accepted by the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// ExchangeToken exchanges an authorization code for an access token. On
// success the token becomes the client's current token and the full decoded
// payload is returned.
func (c *Client) ExchangeToken(ctx context.Context, code string) (Result, error) {
	return c.grant(ctx, GrantAuthorizationCode, url.Values{"code": {code}})
}

// RefreshToken obtains a new access token with a refresh token. On success
// the token becomes the client's current token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (Result, error) {
	return c.grant(ctx, GrantRefreshToken, url.Values{"refresh_token": {refreshToken}})
}

func (c *Client) grant(ctx context.Context, grantType string, form url.Values) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "jushuitan.token",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("jushuitan.grant_type", grantType)),
	)
	defer span.End()

	form.Set("grant_type", grantType)
	form.Set(FieldAppKey, c.appKey)
	form.Set("app_secret", c.appSecret)

	result, err := c.post(ctx, http.MethodPost, tokenPath, formContentType, form)
	if err == nil && result.AccessToken() == "" {
		err = newProtocolError("token response carries no access_token", nil)
	}

	metrics.TokenGrantsTotal.WithLabelValues(grantType, outcomeOf(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.SetAccessToken(result.AccessToken())
	return result, nil
}

// outcomeOf maps an error to its metrics outcome label.
func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch kindOf(err) {
	case KindConfiguration:
		return metrics.OutcomeConfiguration
	case KindProtocol:
		return metrics.OutcomeProtocol
	case KindAPI:
		return metrics.OutcomeAPI
	default:
		return metrics.OutcomeTransport
	}
}
