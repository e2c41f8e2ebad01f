package blockresolver

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/store/storetest"
)

const (
	genesisTimestamp = int64(1438200000)
	blockTimeSecs    = int64(13)
	latestBlock      = int64(1_000_000)
)

// linearChainClient simulates a chain with a constant block time, counting
// every HeaderByNumber call it serves.
type linearChainClient struct {
	calls int
}

func (c *linearChainClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.calls++
	n := latestBlock
	if number != nil {
		n = number.Int64()
		if n > latestBlock {
			return nil, fmt.Errorf("block %d not found", n)
		}
	}
	ts := genesisTimestamp + n*blockTimeSecs
	return &types.Header{
		Number: big.NewInt(n),
		Time:   uint64(ts),
	}, nil
}

func (c *linearChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	return uint64(latestBlock), nil
}

func (c *linearChainClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *linearChainClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *linearChainClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *linearChainClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func TestGetBlockCachesOnMiss(t *testing.T) {
	s := storetest.Open(t)
	client := &linearChainClient{}
	r := New(chain.ID(1), client, s)

	b, err := r.GetBlock(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), b.Number)
	require.Equal(t, genesisTimestamp+42*blockTimeSecs, b.Timestamp)
	require.Equal(t, 1, client.calls)

	b2, err := r.GetBlock(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, b, b2)
	require.Equal(t, 1, client.calls, "second lookup should be served from cache")
}

func TestLatestBlockNeverCached(t *testing.T) {
	s := storetest.Open(t)
	client := &linearChainClient{}
	r := New(chain.ID(1), client, s)

	_, err := r.LatestBlock(context.Background())
	require.NoError(t, err)
	_, err = r.LatestBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, client.calls, "latest block must always hit rpc")
}

func TestGetBlockTimestampsInterpolates(t *testing.T) {
	s := storetest.Open(t)
	client := &linearChainClient{}
	r := New(chain.ID(1), client, s)

	// 1500 is not grid-aligned to 1000; expect interpolation between
	// blocks 1000 and 2000, fetching exactly those two.
	out, err := r.GetBlockTimestamps(context.Background(), []int64{1500}, 1000)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, genesisTimestamp+1500*blockTimeSecs, out[0])
	require.Equal(t, 2, client.calls)
}

func TestGetBlockTimestampsGridAligned(t *testing.T) {
	s := storetest.Open(t)
	client := &linearChainClient{}
	r := New(chain.ID(1), client, s)

	out, err := r.GetBlockTimestamps(context.Background(), []int64{2000}, 1000)
	require.NoError(t, err)
	require.Equal(t, genesisTimestamp+2000*blockTimeSecs, out[0])
	require.Equal(t, 1, client.calls)
}

func TestGetBlockTimestampsZeroGridFetchesExact(t *testing.T) {
	s := storetest.Open(t)
	client := &linearChainClient{}
	r := New(chain.ID(1), client, s)

	out, err := r.GetBlockTimestamps(context.Background(), []int64{123, 456}, 0)
	require.NoError(t, err)
	require.Equal(t, genesisTimestamp+123*blockTimeSecs, out[0])
	require.Equal(t, genesisTimestamp+456*blockTimeSecs, out[1])
	require.Equal(t, 2, client.calls)
}

// TestGetBlockAtOrAfterInterpolationSearch mirrors the scenario of a linear
// 13s-per-block chain with a known genesis and a head at block 1,000,000:
// querying for a timestamp just after block 500,000 must resolve to block
// 500,001 in at most ceil(log2(1,000,000)) probes.
func TestGetBlockAtOrAfterInterpolationSearch(t *testing.T) {
	s := storetest.Open(t)
	client := &linearChainClient{}
	r := New(chain.ID(1), client, s)

	target := genesisTimestamp + 500_000*blockTimeSecs + 7
	b, ok, err := r.GetBlockAtOrAfter(context.Background(), target)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(500_001), b.Number)

	maxProbes := int(math.Ceil(math.Log2(float64(latestBlock)))) + 2 // +2 for the initial left/right head lookups
	require.LessOrEqual(t, client.calls, maxProbes)
}

func TestGetBlockAtOrAfterBeforeGenesis(t *testing.T) {
	s := storetest.Open(t)
	client := &linearChainClient{}
	r := New(chain.ID(1), client, s)

	b, ok, err := r.GetBlockAtOrAfter(context.Background(), genesisTimestamp-1000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), b.Number)
}

func TestGetBlockAtOrAfterPastChainHead(t *testing.T) {
	s := storetest.Open(t)
	client := &linearChainClient{}
	r := New(chain.ID(1), client, s)

	farFuture := genesisTimestamp + (latestBlock+1000)*blockTimeSecs
	_, ok, err := r.GetBlockAtOrAfter(context.Background(), farFuture)
	require.NoError(t, err)
	require.False(t, ok)
}
