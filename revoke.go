package shlink

import (
	"context"
	"fmt"

	"github.com/FHIRfly-io/shlink/storage"
)

// Revoke deletes every stored artifact for shlID. Idempotent: revoking
// an already-revoked (or never-created) SHL succeeds, since the
// storage contract requires Delete to be a no-op for a prefix that
// matches nothing.
func Revoke(ctx context.Context, shlID string, store storage.WriteOnlyStorage) error {
	if err := store.Delete(ctx, shlID+"/"); err != nil {
		return storageErr("delete", fmt.Errorf("revoke %s: %w", shlID, err))
	}
	return nil
}
