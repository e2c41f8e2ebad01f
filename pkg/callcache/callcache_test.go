package callcache

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/store/storetest"
)

type countingClient struct {
	calls int32
}

func (c *countingClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *countingClient) BlockNumber(ctx context.Context) (uint64, error) {
	return 0, fmt.Errorf("not implemented")
}

func (c *countingClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *countingClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	atomic.AddInt32(&c.calls, 1)
	return []byte{0xde, 0xad, 0xbe, 0xef}, nil
}

func (c *countingClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *countingClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func TestGetCallCachesOnMiss(t *testing.T) {
	s := storetest.Open(t)
	client := &countingClient{}
	cache := New(chain.ID(1), client, s)
	addr := common.HexToAddress("0xC0FFEE0000000000000000000000000000C0FF")
	calldata := []byte{0x70, 0xa0, 0x82, 0x31}

	resp, err := cache.GetCall(context.Background(), addr, calldata, 15_632_000)
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, resp)
	require.EqualValues(t, 1, client.calls)

	resp2, err := cache.GetCall(context.Background(), addr, calldata, 15_632_000)
	require.NoError(t, err)
	require.Equal(t, resp, resp2)
	require.EqualValues(t, 1, client.calls, "repeat lookup must not re-issue the call")
}

func TestGetCallsPreservesOrderAndDedupsFetches(t *testing.T) {
	s := storetest.Open(t)
	client := &countingClient{}
	cache := New(chain.ID(1), client, s)
	addrA := common.HexToAddress("0xAAAA000000000000000000000000000000AAAA")
	addrB := common.HexToAddress("0xBBBB000000000000000000000000000000BBBB")
	calldata := []byte{0x70, 0xa0, 0x82, 0x31}

	reqs := []CallRequest{
		{Address: addrB, Calldata: calldata, BlockNumber: 100},
		{Address: addrA, Calldata: calldata, BlockNumber: 100},
		{Address: addrA, Calldata: calldata, BlockNumber: 200},
	}
	out, err := cache.GetCalls(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, addrB, out[0].Address)
	require.Equal(t, addrA, out[1].Address)
	require.EqualValues(t, 200, out[2].BlockNumber)
	require.EqualValues(t, 3, client.calls)

	// Re-running the same requests should hit cache for all three.
	_, err = cache.GetCalls(context.Background(), reqs)
	require.NoError(t, err)
	require.EqualValues(t, 3, client.calls)
}
