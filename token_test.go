package shlink

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTokenRoundTrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	exp := int64(1234567890)

	tok := Token{
		URL:   "https://example.org/shl/abc",
		Key:   key,
		Flag:  "LP",
		Exp:   &exp,
		Label: "my health link",
	}

	encoded, err := EncodeToken(tok)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "shlink:/"))

	decoded, err := DecodeToken(encoded)
	require.NoError(t, err)
	require.Equal(t, tok.URL, decoded.URL)
	require.Equal(t, tok.Key, decoded.Key)
	require.Equal(t, "LP", decoded.Flag)
	require.Equal(t, 1, decoded.V)
	require.NotNil(t, decoded.Exp)
	require.Equal(t, exp, *decoded.Exp)
	require.Equal(t, tok.Label, decoded.Label)
}

func TestEncodeTokenSortsFlags(t *testing.T) {
	var key [32]byte
	encoded, err := EncodeToken(Token{URL: "https://x/y", Key: key, Flag: "PL"})
	require.NoError(t, err)

	decoded, err := DecodeToken(encoded)
	require.NoError(t, err)
	require.Equal(t, "LP", decoded.Flag)
}

func TestEncodeTokenTruncatesLabelToEightyCodePoints(t *testing.T) {
	var key [32]byte
	long := strings.Repeat("é", 200) // multi-byte rune, must truncate by code point not byte
	encoded, err := EncodeToken(Token{URL: "https://x/y", Key: key, Label: long})
	require.NoError(t, err)

	decoded, err := DecodeToken(encoded)
	require.NoError(t, err)
	require.Equal(t, 80, len([]rune(decoded.Label)))
}

func TestDecodeTokenRejectsMissingPrefix(t *testing.T) {
	_, err := DecodeToken("nope")
	require.Error(t, err)
	var shlErr *Error
	require.ErrorAs(t, err, &shlErr)
	require.Equal(t, KindInvalidToken, shlErr.Kind)
}

func TestDecodeTokenRejectsBadBase64(t *testing.T) {
	_, err := DecodeToken("shlink:/!!!not-base64!!!")
	require.Error(t, err)
}

func TestDecodeTokenRejectsWrongKeyLength(t *testing.T) {
	encoded, err := EncodeToken(Token{URL: "https://x/y", Flag: "L"})
	require.NoError(t, err)
	_ = encoded

	// Hand-construct a payload with a short key.
	bad := mustEncodeTokenJSON(t, `{"url":"https://x/y","key":"YWJj","flag":"L"}`)
	_, err = DecodeToken(bad)
	require.Error(t, err)
}

func TestDecodeTokenRejectsMissingURL(t *testing.T) {
	bad := mustEncodeTokenJSON(t, `{"flag":"L","key":"`+strings.Repeat("A", 43)+`"}`)
	_, err := DecodeToken(bad)
	require.Error(t, err)
}

func mustEncodeTokenJSON(t *testing.T, js string) string {
	t.Helper()
	return "shlink:/" + base64.RawURLEncoding.EncodeToString([]byte(js))
}
