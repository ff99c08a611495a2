package jushuitan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

const defaultErrorMessage = "Unknown error"

// Result is a decoded response envelope. The top-level "code" and "msg" keys
// are reserved; every other key is endpoint-specific payload. Numbers are
// kept as json.Number so the payload is passed through without loss.
type Result map[string]any

// Code returns the envelope code, or 0 when absent or not an integer.
func (r Result) Code() int {
	code, _ := integerValue(r["code"])
	return code
}

// Msg returns the envelope message, or "" when absent.
func (r Result) Msg() string {
	return stringValue(r["msg"])
}

// Data returns the "data" object, or nil when absent or not an object.
func (r Result) Data() map[string]any {
	data, _ := r["data"].(map[string]any)
	return data
}

// AccessToken returns the access token carried by a token response. The
// top-level field wins; the platform also nests it under "data".
func (r Result) AccessToken() string {
	return r.tokenField("access_token")
}

// RefreshToken returns the refresh token carried by a token response.
func (r Result) RefreshToken() string {
	return r.tokenField("refresh_token")
}

// ExpiresIn returns the token lifetime hint in seconds, or 0 when absent.
func (r Result) ExpiresIn() int {
	if v, ok := integerValue(r["expires_in"]); ok {
		return v
	}
	v, _ := integerValue(r.Data()["expires_in"])
	return v
}

func (r Result) tokenField(key string) string {
	if v := stringValue(r[key]); v != "" {
		return v
	}
	return stringValue(r.Data()[key])
}

// parseResult decodes and validates a response body.
func parseResult(body []byte) (Result, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var result Result
	if err := dec.Decode(&result); err != nil {
		return nil, newProtocolError("failed to parse response: "+err.Error(), err)
	}
	if dec.More() {
		return nil, newProtocolError("failed to parse response: trailing data after JSON object", nil)
	}
	if result == nil {
		return nil, newProtocolError("failed to parse response: body is not a JSON object", nil)
	}

	raw, ok := result["code"]
	if !ok || raw == nil {
		return result, nil
	}

	code, isInt := integerValue(raw)
	if isInt && code == 0 {
		return result, nil
	}

	msg := defaultErrorMessage
	if m, ok := result["msg"]; ok && m != nil {
		msg = stringValue(m)
	}
	return nil, newAPIError(code, msg)
}

// integerValue converts a decoded JSON value to int. The second result is
// true only for integral numbers.
func integerValue(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return int(i), true
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), false
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
