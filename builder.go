package shlink

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FHIRfly-io/shlink/internal/aead"
	"github.com/FHIRfly-io/shlink/internal/b64"
	"github.com/FHIRfly-io/shlink/storage"
)

// Attachment is one additional file bundled alongside the primary
// document. Attachments are encrypted and listed in the manifest in
// the order given.
type Attachment struct {
	ContentType string
	Data        []byte
}

// BuildOptions enumerates every option the builder accepts as an
// explicit configuration record rather than a dynamic option bag.
type BuildOptions struct {
	// Storage is where the encrypted artifacts, manifest and metadata
	// are written. Required.
	Storage storage.ServerStorage

	// Passcode, if set, gates every manifest access behind its SHA-256
	// hash (never the passcode itself is stored).
	Passcode string
	// ExpiresAt, if set, is the absolute expiration instant.
	ExpiresAt *time.Time
	// MaxAccesses, if set, caps the number of granted manifest accesses.
	// A value of 0 means "nobody may ever access", a deliberate corner
	// case rather than an oversight.
	MaxAccesses *int
	// Label is a human-readable caption, truncated to 80 Unicode code
	// points.
	Label string
	// Attachments are encrypted and listed after the primary document,
	// preserving this slice's order.
	Attachments []Attachment
	// Debug logs every storage call this builder makes.
	Debug bool
	// Clock overrides time.Now, for deterministic tests. Defaults to
	// time.Now.
	Clock func() time.Time
}

// BuildResult is what a successful Build returns: the token a consumer
// needs, plus the identifiers a producer may want to keep around (e.g.
// to revoke the SHL later without re-parsing the token).
type BuildResult struct {
	Token     string
	ShlID     string
	Passcode  string
	ExpiresAt *time.Time
}

// Build encrypts document (and any attachments) under a fresh content
// key, writes the manifest and metadata, and assembles a shareable
// token.
func Build(ctx context.Context, document []byte, opts BuildOptions) (BuildResult, error) {
	if opts.Storage == nil {
		return BuildResult{}, validationErr("build", fmt.Errorf("Storage is required"))
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	var key [aead.KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return BuildResult{}, validationErr("build", fmt.Errorf("generate content key: %w", err))
	}
	shlIDBytes := make([]byte, aead.KeySize)
	if _, err := rand.Read(shlIDBytes); err != nil {
		return BuildResult{}, validationErr("build", fmt.Errorf("generate shl id: %w", err))
	}
	shlID := b64.Encode(shlIDBytes)

	store := func(key string, blob []byte) error {
		if opts.Debug {
			logf("builder", "store %s (%d bytes)", key, len(blob))
		}
		if err := opts.Storage.Store(ctx, key, blob); err != nil {
			return storageErr("store", err)
		}
		return nil
	}

	primaryEnvelope, err := aead.Seal(key, primaryContentType, document)
	if err != nil {
		return BuildResult{}, encryptionErr("encrypt primary", err)
	}
	if err := store(shlID+"/content.jwe", []byte(primaryEnvelope)); err != nil {
		return BuildResult{}, err
	}

	attachmentTypes := make([]string, len(opts.Attachments))
	for i, a := range opts.Attachments {
		env, err := aead.Seal(key, a.ContentType, a.Data)
		if err != nil {
			return BuildResult{}, encryptionErr(fmt.Sprintf("encrypt attachment %d", i), err)
		}
		if err := store(fmt.Sprintf("%s/attachment-%d.jwe", shlID, i), []byte(env)); err != nil {
			return BuildResult{}, err
		}
		attachmentTypes[i] = a.ContentType
	}

	manifest := buildManifest(opts.Storage.BaseURL(), shlID, attachmentTypes)
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return BuildResult{}, validationErr("build", fmt.Errorf("marshal manifest: %w", err))
	}
	if err := store(shlID+"/manifest.json", manifestJSON); err != nil {
		return BuildResult{}, err
	}

	md := Metadata{
		CreatedAt:   clock().UTC(),
		MaxAccesses: opts.MaxAccesses,
		AccessCount: 0,
		ExpiresAt:   opts.ExpiresAt,
	}
	if opts.Passcode != "" {
		md.Passcode = hashPasscode(opts.Passcode)
	}
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return BuildResult{}, validationErr("build", fmt.Errorf("marshal metadata: %w", err))
	}
	if err := store(shlID+"/metadata.json", mdJSON); err != nil {
		return BuildResult{}, err
	}

	var exp *int64
	if opts.ExpiresAt != nil {
		e := opts.ExpiresAt.Unix()
		exp = &e
	}

	token, err := EncodeToken(Token{
		URL:   opts.Storage.BaseURL() + "/" + shlID,
		Key:   key,
		Flag:  flags(opts.Passcode != ""),
		Exp:   exp,
		Label: opts.Label,
	})
	if err != nil {
		return BuildResult{}, err
	}

	return BuildResult{
		Token:     token,
		ShlID:     shlID,
		Passcode:  opts.Passcode,
		ExpiresAt: opts.ExpiresAt,
	}, nil
}
