package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
)

// ErrPrecondition is returned by Client.PutIfMatch when the supplied
// ETag no longer matches the object's current generation.
var ErrPrecondition = errors.New("storage: precondition failed")

// Client is the minimal conditional-write object-store contract
// ObjectStore needs. Any bucket/blob SDK (S3, GCS, Azure Blob, ...) can
// satisfy it with a thin adapter; this package deliberately does not
// depend on a specific cloud SDK.
type Client interface {
	// Get returns an object's bytes and its current ETag, or ErrNotFound.
	Get(ctx context.Context, key string) (data []byte, etag string, err error)
	// Put writes an object unconditionally, returning its new ETag.
	Put(ctx context.Context, key string, data []byte) (etag string, err error)
	// PutIfMatch writes an object only if its current ETag equals etag,
	// returning ErrPrecondition otherwise.
	PutIfMatch(ctx context.Context, key string, data []byte, etag string) error
	// Delete removes a single object. Must not error if key is absent.
	Delete(ctx context.Context, key string) error
	// List returns every object key beginning with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ObjectStore is a generic ServerStorage backend keyed by
// {bucket, region, prefix}, over an injected Client. The metadata CAS
// retries on ErrPrecondition with an exponential backoff, since a
// conditional write against a remote object store can lose a race to
// another writer at any point.
type ObjectStore struct {
	Bucket string
	Region string
	Prefix string
	Base   string
	Client Client

	// NewBackOff, if set, overrides the retry policy (tests use a
	// zero-wait policy). Defaults to backoff.NewExponentialBackOff.
	NewBackOff func() backoff.BackOff
}

// NewObjectStore constructs an ObjectStore serving files under baseURL.
func NewObjectStore(bucket, region, prefix, baseURL string, client Client) *ObjectStore {
	return &ObjectStore{
		Bucket: bucket,
		Region: region,
		Prefix: prefix,
		Base:   strings.TrimSuffix(baseURL, "/"),
		Client: client,
	}
}

func (o *ObjectStore) BaseURL() string { return o.Base }

func (o *ObjectStore) key(k string) string { return o.Prefix + k }

func (o *ObjectStore) Store(ctx context.Context, k string, blob []byte) error {
	_, err := o.Client.Put(ctx, o.key(k), blob)
	return err
}

func (o *ObjectStore) Read(ctx context.Context, k string) ([]byte, error) {
	data, _, err := o.Client.Get(ctx, o.key(k))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (o *ObjectStore) Delete(ctx context.Context, prefix string) error {
	keys, err := o.Client.List(ctx, o.key(prefix))
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	for _, k := range keys {
		if err := o.Client.Delete(ctx, k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}

func (o *ObjectStore) backOff() backoff.BackOff {
	if o.NewBackOff != nil {
		return o.NewBackOff()
	}
	return backoff.NewExponentialBackOff()
}

func (o *ObjectStore) UpdateMetadata(ctx context.Context, shlID string, updater MetadataUpdater) (Result, error) {
	metaKey := o.key(shlID + "/metadata.json")

	var result Result
	var resultErr error

	attempt := func() error {
		current, etag, err := o.Client.Get(ctx, metaKey)
		if errors.Is(err, ErrNotFound) {
			resultErr = ErrNotFound
			return backoff.Permanent(resultErr)
		}
		if err != nil {
			return err // transient read failure: retry
		}

		upd := updater(current)
		switch {
		case upd.isNotFound():
			resultErr = ErrNotFound
			return backoff.Permanent(resultErr)
		case upd.isDeny():
			result = Result{Reason: upd.reason}
			return nil
		case upd.isCommit():
			if err := o.Client.PutIfMatch(ctx, metaKey, upd.newValue, etag); err != nil {
				if errors.Is(err, ErrPrecondition) {
					return err // retry: someone else committed first
				}
				return backoff.Permanent(err)
			}
			result = Result{Committed: true, Value: upd.newValue}
			return nil
		default:
			resultErr = fmt.Errorf("storage: updater returned no result")
			return backoff.Permanent(resultErr)
		}
	}

	if err := backoff.Retry(attempt, o.backOff()); err != nil {
		if resultErr != nil {
			return Result{}, resultErr
		}
		return Result{}, err
	}
	return result, nil
}
