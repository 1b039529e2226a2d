package oxpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"sort"
	"strings"
)

// SignatureField is excluded from the canonical string.
const SignatureField = "signature"

// Canonicalize joins the non-empty parameters as key=value pairs sorted by key.
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == SignatureField || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Sign returns the hex HMAC of the canonical form of params.
// v1 signs with SHA-512, v2 with SHA-256.
func Sign(version Version, secret string, params map[string]string) string {
	mac := hmac.New(hashFor(version), []byte(secret))
	mac.Write([]byte(Canonicalize(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the expected one in constant time.
func Verify(version Version, secret string, params map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(version, secret, params)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

func hashFor(version Version) func() hash.Hash {
	if version == V1 {
		return sha512.New
	}
	return sha256.New
}
