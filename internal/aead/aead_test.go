package aead

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) [KeySize]byte {
	t.Helper()
	var k [KeySize]byte
	_, err := rand.Read(k[:])
	require.NoError(t, err)
	return k
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := randomKey(t)
	plaintext := []byte(`{"resourceType":"Bundle","type":"document","entry":[]}`)

	envelope, err := Seal(key, "application/fhir+json", plaintext)
	require.NoError(t, err)

	segs := strings.Split(envelope, ".")
	require.Len(t, segs, 5)
	require.Empty(t, segs[1], "direct-key mode leaves the key segment empty")

	cty, data, err := Open(key, envelope)
	require.NoError(t, err)
	require.Equal(t, "application/fhir+json", cty)
	require.Equal(t, plaintext, data)
}

func TestOpenWrongKeyFails(t *testing.T) {
	key := randomKey(t)
	other := randomKey(t)

	envelope, err := Seal(key, "application/pdf", []byte("hello"))
	require.NoError(t, err)

	_, _, err = Open(other, envelope)
	require.Error(t, err)
}

func TestOpenTamperedCiphertextFails(t *testing.T) {
	key := randomKey(t)
	envelope, err := Seal(key, "application/pdf", []byte("hello world"))
	require.NoError(t, err)

	segs := strings.Split(envelope, ".")
	// Flip a character in the ciphertext segment.
	ct := []byte(segs[3])
	if ct[0] == 'A' {
		ct[0] = 'B'
	} else {
		ct[0] = 'A'
	}
	segs[3] = string(ct)
	tampered := strings.Join(segs, ".")

	_, _, err = Open(key, tampered)
	require.Error(t, err)
}

func TestOpenRejectsWrongSegmentCount(t *testing.T) {
	key := randomKey(t)
	_, _, err := Open(key, "a.b.c")
	require.Error(t, err)
}

func TestOpenRejectsNonEmptyKeySegment(t *testing.T) {
	key := randomKey(t)
	envelope, err := Seal(key, "application/pdf", []byte("hello"))
	require.NoError(t, err)

	segs := strings.Split(envelope, ".")
	segs[1] = "nonempty"
	_, _, err = Open(key, strings.Join(segs, "."))
	require.Error(t, err)
}

func TestSealCompressesLargeRepetitiveInput(t *testing.T) {
	key := randomKey(t)
	plaintext := []byte(strings.Repeat("FHIR ", 1000))

	envelope, err := Seal(key, "application/fhir+json", plaintext)
	require.NoError(t, err)
	require.Less(t, len(envelope), len(plaintext), "repetitive input should shrink under DEFLATE")

	_, data, err := Open(key, envelope)
	require.NoError(t, err)
	require.Equal(t, plaintext, data)
}
