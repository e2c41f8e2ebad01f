package erc20meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/store/storetest"
)

func TestSaveAndGet(t *testing.T) {
	s := storetest.Open(t)
	r := NewRepo(s.Queries)

	_, ok, err := r.Get(context.Background(), chain.ID(1), "0xabc")
	require.NoError(t, err)
	require.False(t, ok)

	m := Meta{ChainID: chain.ID(1), Address: "0xabc", Name: "USD Coin", Symbol: "USDC", Decimals: 6}
	require.NoError(t, r.Save(context.Background(), m))

	got, ok, err := r.Get(context.Background(), chain.ID(1), "0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m, got)
}

func TestSaveUpserts(t *testing.T) {
	s := storetest.Open(t)
	r := NewRepo(s.Queries)

	require.NoError(t, r.Save(context.Background(), Meta{
		ChainID: chain.ID(1), Address: "0xabc", Name: "old", Symbol: "OLD", Decimals: 18,
	}))
	require.NoError(t, r.Save(context.Background(), Meta{
		ChainID: chain.ID(1), Address: "0xabc", Name: "new", Symbol: "NEW", Decimals: 8,
	}))

	got, ok, err := r.Get(context.Background(), chain.ID(1), "0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new", got.Name)
	require.EqualValues(t, 8, got.Decimals)
}

func TestList(t *testing.T) {
	s := storetest.Open(t)
	r := NewRepo(s.Queries)

	require.NoError(t, r.Save(context.Background(), Meta{ChainID: chain.ID(1), Address: "0xa", Symbol: "A"}))
	require.NoError(t, r.Save(context.Background(), Meta{ChainID: chain.ID(1), Address: "0xb", Symbol: "B"}))
	require.NoError(t, r.Save(context.Background(), Meta{ChainID: chain.ID(2), Address: "0xa", Symbol: "C"}))

	got, err := r.List(context.Background(), chain.ID(1))
	require.NoError(t, err)
	require.Len(t, got, 2)
}
