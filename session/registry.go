package session

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Kind selects a storage medium. The value matches the scheme of the
// storage URLs used in configuration ("file:///var/sessions" selects
// KindFile), so ParseKind accepts either a bare kind name or a full URL.
type Kind string

const (
	KindFile     Kind = "file"
	KindDir      Kind = "dir"
	KindPostgres Kind = "postgres"
	KindRedis    Kind = "redis"
	KindMongo    Kind = "mongodb"
)

// OpenFunc builds a Store from an already-open connection handle. The
// expected handle type is backend-specific: a path string for file and dir
// storage, a querier for Postgres, a client for Redis, a collection for
// MongoDB. An incompatible handle yields an error wrapping
// ErrUnsupportedStorage.
type OpenFunc func(handle any) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Kind]OpenFunc)
)

// Register makes a storage backend available under the given kind. Backend
// packages call it from init, so importing a backend (a blank import
// suffices) is what enables it; kinds that were never imported stay absent
// from the registry. Register panics on a nil OpenFunc or a duplicate kind,
// both of which indicate a programming error.
func Register(kind Kind, open OpenFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if open == nil {
		panic("session: Register open func is nil")
	}
	if _, dup := registry[kind]; dup {
		panic("session: Register called twice for kind " + string(kind))
	}
	registry[kind] = open
}

// Open resolves kind to its registered backend and builds a Store over the
// supplied handle. It returns ErrUnsupportedStorage for kinds without a
// registered backend.
func Open(kind Kind, handle any) (Store, error) {
	registryMu.RLock()
	open, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no backend registered for kind %q", ErrUnsupportedStorage, kind)
	}
	return open(handle)
}

// Kinds returns the registered storage kinds in sorted order.
func Kinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// ParseKind extracts the storage kind from a selector, which may be a bare
// kind name ("redis") or a storage URL ("redis://localhost:6379/1"). The
// "postgresql" scheme is accepted as an alias for postgres.
func ParseKind(selector string) (Kind, error) {
	scheme := strings.ToLower(strings.TrimSpace(selector))
	if i := strings.Index(scheme, "://"); i >= 0 {
		scheme = scheme[:i]
	}

	switch Kind(scheme) {
	case KindFile, KindDir, KindPostgres, KindRedis, KindMongo:
		return Kind(scheme), nil
	}
	if scheme == "postgresql" {
		return KindPostgres, nil
	}
	return "", fmt.Errorf("%w: unknown storage selector %q", ErrUnsupportedStorage, selector)
}
