package shlink

import "github.com/FHIRfly-io/shlink/internal/aead"

// Decode is the public inverse of EncodeToken.
func Decode(token string) (Token, error) {
	return DecodeToken(token)
}

// DecryptedFile is the result of decrypting one envelope: its declared
// content type and the decompressed plaintext bytes.
type DecryptedFile struct {
	ContentType string
	Data        []byte
}

// DecryptContent decrypts one envelope (the primary document or an
// attachment) using key. Any authentication or format failure returns a
// KindEncryption error; the caller cannot distinguish a wrong key from
// tampered ciphertext, by design.
func DecryptContent(envelope string, key [aead.KeySize]byte) (DecryptedFile, error) {
	cty, data, err := aead.Open(key, envelope)
	if err != nil {
		return DecryptedFile{}, encryptionErr("decrypt", err)
	}
	return DecryptedFile{ContentType: cty, Data: data}, nil
}

// DecryptPrimary decrypts the primary document envelope, returning its
// raw JSON bytes.
func DecryptPrimary(envelope string, key [aead.KeySize]byte) ([]byte, error) {
	f, err := DecryptContent(envelope, key)
	if err != nil {
		return nil, err
	}
	return f.Data, nil
}
