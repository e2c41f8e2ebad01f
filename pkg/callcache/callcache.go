// Package callcache caches eth_call responses keyed by
// (chain_id, address, calldata, block_number), fanning out cache misses to
// the RPC endpoint with bounded concurrency.
package callcache

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/abiutil"
	"github.com/ethcache/fetcher/pkg/rpc"
	"github.com/ethcache/fetcher/pkg/store"
	"github.com/ethcache/fetcher/pkg/store/db"
)

// maxConcurrentFetches bounds how many cache-miss eth_call requests a bulk
// lookup issues at once, so a large key set doesn't open unbounded
// connections against the RPC endpoint.
const maxConcurrentFetches = 8

// Call is one resolved eth_call key/response pair.
type Call struct {
	Address     common.Address
	Calldata    []byte
	BlockNumber int64
	Response    []byte
}

// Cache resolves and caches eth_call responses for a single chain.
type Cache struct {
	log     zerolog.Logger
	chainID chain.ID
	client  rpc.ChainClient
	store   *store.Store
}

// New returns a Cache for chainID.
func New(chainID chain.ID, client rpc.ChainClient, s *store.Store) *Cache {
	log := logger.With().
		Str("component", "callcache").
		Int64("chain_id", int64(chainID)).
		Logger()
	return &Cache{log: log, chainID: chainID, client: client, store: s}
}

// GetCall returns the eth_call response for (address, calldata, blockNumber),
// serving from cache and persisting on a miss.
func (c *Cache) GetCall(ctx context.Context, address common.Address, calldata []byte, blockNumber int64) ([]byte, error) {
	addr := normalizeAddress(address)
	key := abiutil.CalldataHex(calldata)

	row, ok, err := c.store.Queries.GetCall(ctx, int64(c.chainID), addr, key, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("looking up cached call: %s", err)
	}
	if ok {
		return common.FromHex(row.ResponseJSON), nil
	}
	return c.fetchAndSaveCall(ctx, address, calldata, blockNumber)
}

// CallRequest is one (address, calldata, blockNumber) key in a bulk lookup.
type CallRequest struct {
	Address     common.Address
	Calldata    []byte
	BlockNumber int64
}

// GetCalls resolves every request in reqs, preserving input order in the
// returned slice so callers can zip results back against their own index
// rather than deduplicating into a set.
func (c *Cache) GetCalls(ctx context.Context, reqs []CallRequest) ([]Call, error) {
	out := make([]Call, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			resp, err := c.GetCall(gctx, req.Address, req.Calldata, req.BlockNumber)
			if err != nil {
				return err
			}
			out[i] = Call{
				Address:     req.Address,
				Calldata:    req.Calldata,
				BlockNumber: req.BlockNumber,
				Response:    resp,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Cache) fetchAndSaveCall(ctx context.Context, address common.Address, calldata []byte, blockNumber int64) ([]byte, error) {
	resp, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &address,
		Data: calldata,
	}, big.NewInt(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("calling contract: %s", err)
	}
	if err := c.store.Queries.InsertCall(ctx, db.Call{
		ChainID:      int64(c.chainID),
		Address:      normalizeAddress(address),
		Calldata:     abiutil.CalldataHex(calldata),
		BlockNumber:  blockNumber,
		ResponseJSON: common.Bytes2Hex(resp),
	}); err != nil {
		return nil, fmt.Errorf("saving call response: %s", err)
	}
	return resp, nil
}

func normalizeAddress(a common.Address) string {
	return toLowerHex(a.Hex())
}

func toLowerHex(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if ch >= 'A' && ch <= 'Z' {
			b[i] = ch + ('a' - 'A')
		}
	}
	return string(b)
}
