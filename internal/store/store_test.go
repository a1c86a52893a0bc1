package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellomail/internal/store"
	_ "github.com/dropDatabas3/hellomail/internal/store/adapters/memory"
)

func TestOpen_DefaultsToMemory(t *testing.T) {
	s, err := store.Open(context.Background(), store.AdapterConfig{})
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, "memory", s.Name())
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpen_UnknownAdapter(t *testing.T) {
	_, err := store.Open(context.Background(), store.AdapterConfig{Name: "cassandra"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not registered")
}

func TestGetAdapter_Aliases(t *testing.T) {
	_, ok := store.GetAdapter("")
	require.True(t, ok)

	_, ok = store.GetAdapter("memory")
	require.True(t, ok)

	require.Contains(t, store.ListAdapters(), "memory")
}

func TestClose_NilSafe(t *testing.T) {
	var s *store.Store
	require.NoError(t, s.Close())
}
