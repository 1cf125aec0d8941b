package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Local is a filesystem-backed ServerStorage. Keys map directly onto
// paths under Dir, written with 0o600 permissions; the
// {shlId}/metadata.json read-modify-write is made atomic per shlId with
// an in-process per-id mutex.
//
// A per-process mutex is sufficient when one server process owns Dir
// (the common embedding for this backend); an operator who fronts the
// same directory with multiple processes should use the sqlite or
// objectstore backend instead, both of which use a real CAS primitive.
type Local struct {
	Dir    string
	Base   string
	Prefix string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocal creates a Local backend rooted at dir, serving files under
// baseURL. prefix, if non-empty, is applied to every key uniformly.
func NewLocal(dir, baseURL, prefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &Local{
		Dir:    dir,
		Base:   strings.TrimSuffix(baseURL, "/"),
		Prefix: prefix,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (l *Local) BaseURL() string { return l.Base }

func (l *Local) path(key string) string {
	return filepath.Join(l.Dir, filepath.FromSlash(l.Prefix+key))
}

func (l *Local) Store(_ context.Context, key string, blob []byte) error {
	p := l.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (l *Local) Read(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(l.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (l *Local) Delete(_ context.Context, prefix string) error {
	root := l.path(prefix)
	// prefix may name a directory-like namespace ("{shlId}/") or a bare
	// file key; RemoveAll handles both and is a no-op for a missing path.
	return os.RemoveAll(strings.TrimSuffix(root, "/"))
}

func (l *Local) idLock(shlID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[shlID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[shlID] = m
	}
	return m
}

func (l *Local) UpdateMetadata(ctx context.Context, shlID string, updater MetadataUpdater) (Result, error) {
	lock := l.idLock(shlID)
	lock.Lock()
	defer lock.Unlock()

	key := shlID + "/metadata.json"
	current, err := l.Read(ctx, key)
	if err != nil {
		return Result{}, err
	}

	upd := updater(current)
	switch {
	case upd.isNotFound():
		return Result{}, ErrNotFound
	case upd.isDeny():
		return Result{Reason: upd.reason}, nil
	case upd.isCommit():
		if err := l.Store(ctx, key, upd.newValue); err != nil {
			return Result{}, err
		}
		return Result{Committed: true, Value: upd.newValue}, nil
	default:
		return Result{}, fmt.Errorf("storage: updater returned no result")
	}
}
