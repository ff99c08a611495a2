package jushuitan_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	tests := []struct {
		name     string
		err      error
		kind     jushuitan.Kind
		code     int
		contains string
	}{
		{
			name:     "configuration",
			err:      &jushuitan.Error{Kind: jushuitan.KindConfiguration, Message: "access token not set"},
			kind:     jushuitan.KindConfiguration,
			contains: "configuration error: access token not set",
		},
		{
			name:     "transport with cause",
			err:      &jushuitan.Error{Kind: jushuitan.KindTransport, Message: "dial", Err: cause},
			kind:     jushuitan.KindTransport,
			contains: "transport error: dial",
		},
		{
			name:     "api wrapped",
			err:      fmt.Errorf("querying orders: %w", &jushuitan.Error{Kind: jushuitan.KindAPI, Code: 40001, Message: "invalid sign"}),
			kind:     jushuitan.KindAPI,
			code:     40001,
			contains: "api error (code 40001): invalid sign",
		},
		{
			name:     "protocol",
			err:      &jushuitan.Error{Kind: jushuitan.KindProtocol, Message: "failed to parse response"},
			kind:     jushuitan.KindProtocol,
			contains: "protocol error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.kind == jushuitan.KindConfiguration, jushuitan.IsConfiguration(tt.err))
			assert.Equal(t, tt.kind == jushuitan.KindTransport, jushuitan.IsTransport(tt.err))
			assert.Equal(t, tt.kind == jushuitan.KindProtocol, jushuitan.IsProtocol(tt.err))
			assert.Equal(t, tt.kind == jushuitan.KindAPI, jushuitan.IsAPI(tt.err))
			assert.Equal(t, tt.code, jushuitan.CodeOf(tt.err))
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}

	t.Run("unwrap exposes cause", func(t *testing.T) {
		t.Parallel()
		err := &jushuitan.Error{Kind: jushuitan.KindTransport, Err: cause}
		assert.ErrorIs(t, err, cause)
	})

	t.Run("foreign errors", func(t *testing.T) {
		t.Parallel()
		err := errors.New("plain")
		assert.False(t, jushuitan.IsAPI(err))
		assert.Zero(t, jushuitan.CodeOf(err))
	})
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "configuration", jushuitan.KindConfiguration.String())
	assert.Equal(t, "transport", jushuitan.KindTransport.String())
	assert.Equal(t, "protocol", jushuitan.KindProtocol.String())
	assert.Equal(t, "api", jushuitan.KindAPI.String())
	assert.Equal(t, "unknown", jushuitan.Kind(0).String())
}
