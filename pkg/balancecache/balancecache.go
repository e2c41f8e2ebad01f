// Package balancecache caches eth_getBalance responses keyed by
// (chain_id, address, block_number), fanning out cache misses to the RPC
// endpoint with bounded concurrency.
package balancecache

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/rpc"
	"github.com/ethcache/fetcher/pkg/store"
	"github.com/ethcache/fetcher/pkg/store/db"
)

// maxConcurrentFetches bounds how many cache-miss eth_getBalance requests a
// bulk lookup issues at once.
const maxConcurrentFetches = 8

// Balance is one resolved (address, block_number) -> wei pair.
type Balance struct {
	Address     common.Address
	BlockNumber int64
	Wei         *big.Int
}

// Cache resolves and caches ETH balances for a single chain.
type Cache struct {
	log     zerolog.Logger
	chainID chain.ID
	client  rpc.ChainClient
	store   *store.Store
}

// New returns a Cache for chainID.
func New(chainID chain.ID, client rpc.ChainClient, s *store.Store) *Cache {
	log := logger.With().
		Str("component", "balancecache").
		Int64("chain_id", int64(chainID)).
		Logger()
	return &Cache{log: log, chainID: chainID, client: client, store: s}
}

// GetBalance returns the balance of address at blockNumber, serving from
// cache and persisting on a miss.
func (c *Cache) GetBalance(ctx context.Context, address common.Address, blockNumber int64) (*big.Int, error) {
	addr := normalizeAddress(address)
	row, ok, err := c.store.Queries.GetBalance(ctx, int64(c.chainID), addr, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("looking up cached balance: %s", err)
	}
	if ok {
		wei, ok := new(big.Int).SetString(row.Wei, 10)
		if !ok {
			return nil, fmt.Errorf("corrupt cached balance %q", row.Wei)
		}
		return wei, nil
	}
	return c.fetchAndSaveBalance(ctx, address, blockNumber)
}

// BalanceRequest is one (address, block_number) key in a bulk lookup.
type BalanceRequest struct {
	Address     common.Address
	BlockNumber int64
}

// GetBalances resolves every request in reqs, preserving input order in the
// returned slice.
func (c *Cache) GetBalances(ctx context.Context, reqs []BalanceRequest) ([]Balance, error) {
	out := make([]Balance, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			wei, err := c.GetBalance(gctx, req.Address, req.BlockNumber)
			if err != nil {
				return err
			}
			out[i] = Balance{Address: req.Address, BlockNumber: req.BlockNumber, Wei: wei}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Cache) fetchAndSaveBalance(ctx context.Context, address common.Address, blockNumber int64) (*big.Int, error) {
	wei, err := c.client.BalanceAt(ctx, address, big.NewInt(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("fetching balance: %s", err)
	}
	if err := c.store.Queries.InsertBalance(ctx, db.Balance{
		ChainID:     int64(c.chainID),
		Address:     normalizeAddress(address),
		BlockNumber: blockNumber,
		Wei:         wei.String(),
	}); err != nil {
		return nil, fmt.Errorf("saving balance: %s", err)
	}
	return wei, nil
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
