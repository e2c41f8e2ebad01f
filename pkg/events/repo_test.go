package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethcache/fetcher/pkg/eventindex"
	"github.com/ethcache/fetcher/pkg/store/storetest"
)

func TestRepoInsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	repo := NewRepo(s.Queries)

	args := eventindex.NewObject(map[string]eventindex.Value{
		"from": eventindex.NewScalar("0xaaa"),
	})
	e1 := Event{ChainID: 1, BlockNumber: 100, TxHash: "0x1", LogIndex: 0, Address: "0xc", EventName: "Transfer", Args: args}
	e2 := Event{ChainID: 1, BlockNumber: 101, TxHash: "0x2", LogIndex: 0, Address: "0xc", EventName: "Transfer", Args: args}
	require.NoError(t, repo.Insert(ctx, e1))
	require.NoError(t, repo.Insert(ctx, e2))

	found, err := repo.Find(ctx, 1, "0xc", "Transfer", 0, 200)
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, int64(100), found[0].BlockNumber)
	require.Equal(t, int64(101), found[1].BlockNumber)
}

func TestRepoInsertDuplicateIgnored(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	repo := NewRepo(s.Queries)

	e := Event{ChainID: 1, BlockNumber: 1, TxHash: "0x1", LogIndex: 0, Address: "0xc", EventName: "Transfer", Args: eventindex.Null()}
	require.NoError(t, repo.Insert(ctx, e))
	require.NoError(t, repo.Insert(ctx, e))

	found, err := repo.Find(ctx, 1, "0xc", "Transfer", 0, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestRepoFindRangeIsExclusiveUpperBound(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	repo := NewRepo(s.Queries)

	e := Event{ChainID: 1, BlockNumber: 3000, TxHash: "0x1", LogIndex: 0, Address: "0xc", EventName: "Transfer", Args: eventindex.Null()}
	require.NoError(t, repo.Insert(ctx, e))

	found, err := repo.Find(ctx, 1, "0xc", "Transfer", 0, 3000)
	require.NoError(t, err)
	require.Empty(t, found)

	found, err = repo.Find(ctx, 1, "0xc", "Transfer", 0, 3001)
	require.NoError(t, err)
	require.Len(t, found, 1)
}
