// Package b64 centralizes the URL-safe, unpadded base64 encoding the
// token and envelope wire formats require everywhere they touch bytes.
package b64

import "encoding/base64"

// Encode returns the URL-safe, unpadded base64 encoding of b.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode reverses Encode. It rejects padded input: the wire formats never
// emit padding, so accepting it would let two different strings decode to
// the same token.
func Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
