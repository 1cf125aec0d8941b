// Package aead implements the single direct-key AES-256-GCM envelope
// format the SHL wire protocol requires: a five-segment dot-separated
// string "header..iv.ciphertext.tag", each non-empty segment URL-safe
// base64, AAD-bound to the header bytes, plaintext raw-DEFLATE
// compressed before sealing.
//
// This intentionally does not pull in a general JOSE/JWE library: only
// one alg/enc combination is ever produced or accepted, so the full
// compact-JWE state machine would be dead weight.
package aead

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/FHIRfly-io/shlink/internal/b64"
)

const (
	algDirect  = "dir"
	encA256GCM = "A256GCM"
	zipDeflate = "DEF"

	nonceSize = 12
	tagSize   = 16
	// KeySize is the required content-key length in bytes.
	KeySize = 32
)

// header is the JOSE-style header carried in the envelope's first
// segment. Field order here is the wire order: encoding/json emits
// struct fields in declaration order, so no separate canonicalization
// step is needed.
type header struct {
	Alg string `json:"alg"`
	Enc string `json:"enc"`
	Cty string `json:"cty"`
	Zip string `json:"zip"`
}

// Seal compresses plaintext with raw DEFLATE and encrypts it under key
// using AES-256-GCM with a fresh random nonce, returning the five-segment
// envelope string.
func Seal(key [KeySize]byte, contentType string, plaintext []byte) (string, error) {
	compressed, err := deflate(plaintext)
	if err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}

	hdrJSON, err := json.Marshal(header{Alg: algDirect, Enc: encA256GCM, Cty: contentType, Zip: zipDeflate})
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	h := b64.Encode(hdrJSON)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, compressed, []byte(h))
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		h,
		"",
		b64.Encode(nonce),
		b64.Encode(ciphertext),
		b64.Encode(tag),
	}, "."), nil
}

// Open parses and decrypts envelope, returning the content type from its
// header and the decompressed plaintext. Structural, authentication and
// inflate failures each return an error naming the failed step; an
// authentication failure reads the same whether the key is wrong or the
// ciphertext was tampered with, so the caller cannot tell the two apart.
func Open(key [KeySize]byte, envelope string) (contentType string, plaintext []byte, err error) {
	segs := strings.Split(envelope, ".")
	if len(segs) != 5 {
		return "", nil, fmt.Errorf("expected 5 segments, got %d", len(segs))
	}
	h, keySeg, ivSeg, ctSeg, tagSeg := segs[0], segs[1], segs[2], segs[3], segs[4]
	if keySeg != "" {
		return "", nil, fmt.Errorf("direct-key mode requires an empty key segment")
	}

	hdrJSON, err := b64.Decode(h)
	if err != nil {
		return "", nil, fmt.Errorf("decode header: %w", err)
	}
	var hdr header
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return "", nil, fmt.Errorf("unmarshal header: %w", err)
	}
	if hdr.Alg != algDirect {
		return "", nil, fmt.Errorf("unsupported alg %q", hdr.Alg)
	}
	if hdr.Enc != encA256GCM {
		return "", nil, fmt.Errorf("unsupported enc %q", hdr.Enc)
	}

	nonce, err := b64.Decode(ivSeg)
	if err != nil || len(nonce) != nonceSize {
		return "", nil, fmt.Errorf("invalid nonce")
	}
	ciphertext, err := b64.Decode(ctSeg)
	if err != nil {
		return "", nil, fmt.Errorf("invalid ciphertext")
	}
	tag, err := b64.Decode(tagSeg)
	if err != nil || len(tag) != tagSize {
		return "", nil, fmt.Errorf("invalid tag")
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", nil, fmt.Errorf("new gcm: %w", err)
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	compressed, err := gcm.Open(nil, nonce, sealed, []byte(h))
	if err != nil {
		return "", nil, fmt.Errorf("authenticate: %w", err)
	}

	cty := hdr.Cty
	if cty == "" {
		cty = "application/octet-stream"
	}

	if hdr.Zip != zipDeflate {
		return cty, compressed, nil
	}
	raw, err := inflate(compressed)
	if err != nil {
		return "", nil, fmt.Errorf("inflate: %w", err)
	}
	return cty, raw, nil
}

func deflate(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	return io.ReadAll(r)
}
