package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Canonicalization is kept as pure functions so the signing rules can be
// audited and pinned with fixture vectors independent of HTTP plumbing.

// CanonicalQuery sorts parameters by key ascending and URL-encodes them
// as a query string. This is the VNPay rule: the signed string is
// exactly what URLSearchParams produces over the sorted parameter set.
func CanonicalQuery(params map[string]string) string {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return values.Encode()
}

// CanonicalPairs sorts the keys ascending and joins raw k=v pairs with
// "&", without URL encoding. This is the PayOS webhook rule over the
// payload's own top-level keys.
func CanonicalPairs(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}
	return strings.Join(pairs, "&")
}

// CanonicalFixed joins raw k=v pairs in the given documented field
// order. This is the MoMo rule (and the PayOS create-checksum rule):
// the order comes from the gateway's specification, not from sorting.
func CanonicalFixed(order []string, params map[string]string) string {
	pairs := make([]string, 0, len(order))
	for _, key := range order {
		pairs = append(pairs, key+"="+params[key])
	}
	return strings.Join(pairs, "&")
}

// SignSHA256 returns the hex-encoded HMAC-SHA256 of the canonical
// string. Used by MoMo and PayOS.
func SignSHA256(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignSHA512 returns the hex-encoded HMAC-SHA512 of the canonical
// string. Used by VNPay.
func SignSHA512(secret, canonical string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHex compares a supplied hex digest against the expected one in
// constant time. Hex case is normalized first; some gateways send
// uppercase digests.
func VerifyHex(supplied, expected string) bool {
	if supplied == "" {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(supplied)), []byte(strings.ToLower(expected)))
}
