package eventfetcher

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/eventindex"
	"github.com/ethcache/fetcher/pkg/fetchererrors"
	"github.com/ethcache/fetcher/pkg/store/storetest"
)

const transferABIJSON = `[{
	"anonymous": false,
	"inputs": [
		{"indexed": true, "name": "from", "type": "address"},
		{"indexed": true, "name": "to", "type": "address"},
		{"indexed": false, "name": "value", "type": "uint256"}
	],
	"name": "Transfer",
	"type": "event"
}]`

func mustParseTransferABI(t *testing.T) *abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(transferABIJSON))
	require.NoError(t, err)
	return &parsed
}

// fakeClient records every FilterLogs call and fails the ones whose
// requested range spans more than maxChunksPerCall grid chunks, mimicking a
// provider enforcing a result-size cap.
type fakeClient struct {
	gridStep         int64
	maxChunksPerCall int64
	calls            []ethereum.FilterQuery
	logsByRange      map[[2]int64][]types.Log
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	return 0, fmt.Errorf("not implemented")
}

func (f *fakeClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	f.calls = append(f.calls, query)
	from := query.FromBlock.Int64()
	to := query.ToBlock.Int64() + 1
	chunks := (to - from) / f.gridStep
	if chunks > f.maxChunksPerCall {
		return nil, fmt.Errorf("query returned more than %d results, is greater than the limit", 10000)
	}
	return f.logsByRange[[2]int64{from, to}], nil
}

func (f *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func TestPrefetchEventsChunkHalvingOnOversizedResponse(t *testing.T) {
	s := storetest.Open(t)
	client := &fakeClient{gridStep: 1000, maxChunksPerCall: 2, logsByRange: map[[2]int64][]types.Log{}}

	sched, err := New(chain.ID(1), client, s, 1000)
	require.NoError(t, err)

	parsedABI := mustParseTransferABI(t)
	addr := common.HexToAddress("0xC0FFEE0000000000000000000000000000C0FF")

	err = sched.PrefetchEvents(
		context.Background(), parsedABI, addr, "Transfer", 0, 8000, eventindex.Null(),
	)
	require.NoError(t, err)

	// First attempt spans the whole range in one 8-chunk call (fails),
	// second halves to 4 chunks (still fails on the first stride), third
	// halves to 2 chunks and succeeds across four strides.
	require.Len(t, client.calls, 6)

	idx, ok, err := sched.idxRepo.GetExact(context.Background(), chain.ID(1), normalizeAddress(addr), "Transfer", eventindex.Null())
	require.NoError(t, err)
	require.True(t, ok)
	for b := int64(0); b < 8000; b += 1000 {
		require.True(t, idx.Data.Get(b), "block %d should be marked fetched", b)
	}
}

func TestPrefetchEventsSkipsCoveredRange(t *testing.T) {
	s := storetest.Open(t)
	client := &fakeClient{gridStep: 1000, maxChunksPerCall: 100, logsByRange: map[[2]int64][]types.Log{}}

	sched, err := New(chain.ID(1), client, s, 1000)
	require.NoError(t, err)
	parsedABI := mustParseTransferABI(t)
	addr := common.HexToAddress("0xC0FFEE0000000000000000000000000000C0FF")

	// A broader, "softer" filter (no argument constraint) already covers
	// [0, 4000). A query using the same empty filter over [0, 8000) should
	// only need to fetch the uncovered remainder.
	err = sched.PrefetchEvents(context.Background(), parsedABI, addr, "Transfer", 0, 4000, eventindex.Null())
	require.NoError(t, err)
	require.Len(t, client.calls, 1)

	err = sched.PrefetchEvents(context.Background(), parsedABI, addr, "Transfer", 0, 8000, eventindex.Null())
	require.NoError(t, err)

	// Only the uncovered [4000, 8000) range should have produced a new call.
	require.Len(t, client.calls, 2)
	last := client.calls[len(client.calls)-1]
	require.Equal(t, int64(4000), last.FromBlock.Int64())
	require.Equal(t, int64(7999), last.ToBlock.Int64())
}

func TestPrefetchEventsChunkExhausted(t *testing.T) {
	s := storetest.Open(t)
	client := &fakeClient{gridStep: 1000, maxChunksPerCall: 0, logsByRange: map[[2]int64][]types.Log{}}

	sched, err := New(chain.ID(1), client, s, 1000, WithChainAPIBackoff(time.Millisecond))
	require.NoError(t, err)
	parsedABI := mustParseTransferABI(t)
	addr := common.HexToAddress("0xC0FFEE0000000000000000000000000000C0FF")

	err = sched.PrefetchEvents(context.Background(), parsedABI, addr, "Transfer", 0, 4000, eventindex.Null())
	require.Error(t, err)
	require.ErrorIs(t, err, fetchererrors.ErrChunkExhausted)
}
