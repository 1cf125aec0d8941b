// Package storage defines the pluggable persistence contracts the
// access-control engine and builder operate over, plus four concrete
// backends: a local filesystem directory, a SQLite file, a generic
// conditional-write object store, and a hosted API-key service that is
// write-only from this SDK's point of view.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read for a missing key, and by
// UpdateMetadata when the {shlId}/metadata.json blob does not exist.
// Implementations must return this sentinel, never panic or return a
// zero-value blob, for a missing key.
var ErrNotFound = errors.New("storage: not found")

// WriteOnlyStorage is the producer-side contract: a fixed HTTPS origin
// under which this SHL's files are served, plus idempotent store/delete.
type WriteOnlyStorage interface {
	// BaseURL is a fixed HTTPS origin (no trailing slash) under which
	// this SHL's files are served.
	BaseURL() string
	// Store writes blob under key, replacing any existing content at
	// that key. Idempotent.
	Store(ctx context.Context, key string, blob []byte) error
	// Delete removes every key beginning with prefix. Must not error for
	// a prefix that matches nothing.
	Delete(ctx context.Context, prefix string) error
}

// ServerStorage extends WriteOnlyStorage with the read and atomic
// metadata-update operations the access-control engine needs.
type ServerStorage interface {
	WriteOnlyStorage
	// Read returns the blob stored at key, or ErrNotFound if absent.
	Read(ctx context.Context, key string) ([]byte, error)
	// UpdateMetadata atomically reads {shlId}/metadata.json, applies
	// updater to it, and commits the result if updater returns a Commit
	// UpdateResult. It is re-invoked from scratch on optimistic-
	// concurrency contention, so updater must be a pure function of the
	// metadata blob it is given.
	//
	// Returns ErrNotFound if no metadata exists for shlID, or if updater
	// itself returns NotFound(). Result.Committed is false (with a nil
	// error) when updater returns Deny(reason); the caller inspects
	// Result.Reason.
	UpdateMetadata(ctx context.Context, shlID string, updater MetadataUpdater) (Result, error)
}

// MetadataUpdater is invoked with the current metadata blob as raw JSON
// bytes (the updater decodes it into whatever shape it uses — this
// package stays agnostic of the shlink.Metadata type to avoid an import
// cycle) and returns a discriminated UpdateResult.
type MetadataUpdater func(current []byte) UpdateResult

// resultKind discriminates the three MetadataUpdater outcomes.
type resultKind int

const (
	kindCommit resultKind = iota
	kindDeny
	kindNotFound
)

// UpdateResult is the value a MetadataUpdater returns: exactly one of
// "commit this new metadata blob", "deny with a reason", or "not found".
type UpdateResult struct {
	kind     resultKind
	newValue []byte
	reason   string
}

// Commit requests that newValue replace the current metadata blob.
func Commit(newValue []byte) UpdateResult { return UpdateResult{kind: kindCommit, newValue: newValue} }

// Deny requests that nothing be written; reason is threaded back to the
// caller through Result.Reason.
func Deny(reason string) UpdateResult { return UpdateResult{kind: kindDeny, reason: reason} }

// NotFound requests that nothing be written and that the caller observe
// ErrNotFound, as if no metadata existed at all.
func NotFound() UpdateResult { return UpdateResult{kind: kindNotFound} }

// Result is what UpdateMetadata returns to its caller after interpreting
// a MetadataUpdater's UpdateResult.
type Result struct {
	// Committed is true iff the updater's Commit value was written.
	Committed bool
	// Value is the newly committed blob when Committed is true.
	Value []byte
	// Reason carries a Deny's reason when Committed is false and the
	// update was not a not-found outcome.
	Reason string
}

func (u UpdateResult) isNotFound() bool { return u.kind == kindNotFound }
func (u UpdateResult) isDeny() bool     { return u.kind == kindDeny }
func (u UpdateResult) isCommit() bool   { return u.kind == kindCommit }
