package shlink

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/FHIRfly-io/shlink/internal/aead"
	"github.com/FHIRfly-io/shlink/internal/b64"
)

// tokenPrefix is the literal prefix every shlink token begins with.
const tokenPrefix = "shlink:/"

// maxLabelRunes is the label's code-point truncation limit.
const maxLabelRunes = 80

// Token is the decoded payload of a shlink: the manifest URL, the
// content key, and the flags/metadata a consumer needs to know before
// it ever talks to the server.
type Token struct {
	URL   string
	Key   [aead.KeySize]byte
	Flag  string
	V     int
	Exp   *int64
	Label string
}

// tokenJSON mirrors the wire JSON object inside a shlink token.
type tokenJSON struct {
	URL   string `json:"url"`
	Key   string `json:"key"`
	Flag  string `json:"flag"`
	V     *int   `json:"v,omitempty"`
	Exp   *int64 `json:"exp,omitempty"`
	Label string `json:"label,omitempty"`
}

// flags composes the sorted flag string: "L" always present, "P" added
// when a passcode gate applies.
func flags(passcodeSet bool) string {
	letters := []byte{'L'}
	if passcodeSet {
		letters = append(letters, 'P')
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return string(letters)
}

// truncateLabel cuts s to at most maxLabelRunes Unicode code points.
func truncateLabel(s string) string {
	runes := []rune(s)
	if len(runes) <= maxLabelRunes {
		return s
	}
	return string(runes[:maxLabelRunes])
}

// EncodeToken assembles and serializes a Token into its "shlink:/..."
// wire form.
func EncodeToken(t Token) (string, error) {
	v := t.V
	if v == 0 {
		v = 1
	}

	body := tokenJSON{
		URL:   t.URL,
		Key:   b64.Encode(t.Key[:]),
		Flag:  flags(strings.Contains(t.Flag, "P")),
		Exp:   t.Exp,
		Label: truncateLabel(t.Label),
	}
	if v != 1 {
		body.V = &v
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", validationErr("encode token", err)
	}
	return tokenPrefix + b64.Encode(raw), nil
}

// DecodeToken parses and strictly validates a "shlink:/..." token.
// Every failure mode returns KindInvalidToken.
func DecodeToken(token string) (Token, error) {
	if !strings.HasPrefix(token, tokenPrefix) {
		return Token{}, invalidTokenErr("decode token", fmt.Errorf("missing %q prefix", tokenPrefix))
	}
	payload := strings.TrimPrefix(token, tokenPrefix)
	if payload == "" {
		return Token{}, invalidTokenErr("decode token", fmt.Errorf("empty payload"))
	}

	raw, err := b64.Decode(payload)
	if err != nil {
		return Token{}, invalidTokenErr("decode token", fmt.Errorf("base64: %w", err))
	}

	var body tokenJSON
	if err := json.Unmarshal(raw, &body); err != nil {
		return Token{}, invalidTokenErr("decode token", fmt.Errorf("json: %w", err))
	}

	if body.URL == "" {
		return Token{}, invalidTokenErr("decode token", fmt.Errorf("missing url"))
	}
	if body.Flag == "" {
		return Token{}, invalidTokenErr("decode token", fmt.Errorf("missing flag"))
	}
	keyBytes, err := b64.Decode(body.Key)
	if err != nil {
		return Token{}, invalidTokenErr("decode token", fmt.Errorf("key base64: %w", err))
	}
	if len(keyBytes) != aead.KeySize {
		return Token{}, invalidTokenErr("decode token", fmt.Errorf("key must decode to %d bytes, got %d", aead.KeySize, len(keyBytes)))
	}

	v := 1
	if body.V != nil {
		v = *body.V
	}

	out := Token{
		URL:   body.URL,
		Flag:  body.Flag,
		V:     v,
		Exp:   body.Exp,
		Label: body.Label,
	}
	copy(out.Key[:], keyBytes)
	return out, nil
}
