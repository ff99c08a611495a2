package jushuitan

import (
	"crypto/md5" //nolint:gosec // md5 is mandated by the platform signature scheme
	"crypto/subtle"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Envelope field names.
const (
	FieldAppKey      = "app_key"
	FieldAccessToken = "access_token"
	FieldTimestamp   = "timestamp"
	FieldVersion     = "version"
	FieldCharset     = "charset"
	FieldBiz         = "biz"
	FieldSign        = "sign"
)

const (
	envelopeVersion = "2"
	envelopeCharset = "utf-8"
)

// Sign computes the platform signature of params with the app secret.
//
// Keys are sorted ascending by byte order and appended to the secret as
// key+value pairs with no delimiter. The result is the lowercase hex MD5 of
// that buffer. A "sign" entry in params is skipped.
func Sign(secret string, params map[string]string) string {
	keys := lo.Keys(params)
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(secret)
	for _, k := range keys {
		if k == FieldSign {
			continue
		}
		b.WriteString(k)
		b.WriteString(params[k])
	}

	sum := md5.Sum([]byte(b.String())) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// Verify reports whether params carries a valid sign for secret.
func Verify(secret string, params map[string]string) bool {
	got, ok := params[FieldSign]
	if !ok {
		return false
	}
	want := Sign(secret, params)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
