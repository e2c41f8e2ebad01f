// Package storetest provides an in-memory SQLite store for unit tests
// across the cache packages.
package storetest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ethcache/fetcher/pkg/store"
)

// Open returns a *store.Store backed by a fresh in-memory SQLite database,
// migrated and closed automatically via t.Cleanup.
func Open(t *testing.T) *store.Store {
	uri := "file::" + uuid.NewString() + ":?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000"
	s, err := store.Open(uri)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
