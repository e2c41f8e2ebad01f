// Package blockresolver resolves block numbers to timestamps and timestamps
// to blocks, caching every block it fetches and interpolating across a
// configurable grid to avoid fetching one block per query.
package blockresolver

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/rpc"
	"github.com/ethcache/fetcher/pkg/store"
	"github.com/ethcache/fetcher/pkg/store/db"
)

// Block is a resolved (number, timestamp) pair for one chain.
type Block struct {
	Number    int64
	Timestamp int64
}

// Resolver resolves blocks for a single chain, backed by a Store cache and
// an RPC client for misses.
type Resolver struct {
	log     zerolog.Logger
	chainID chain.ID
	client  rpc.ChainClient
	store   *store.Store
}

// New returns a Resolver for chainID.
func New(chainID chain.ID, client rpc.ChainClient, s *store.Store) *Resolver {
	log := logger.With().
		Str("component", "blockresolver").
		Int64("chain_id", int64(chainID)).
		Logger()
	return &Resolver{log: log, chainID: chainID, client: client, store: s}
}

// GetBlock returns the block with the given number, serving from cache when
// present and persisting on a miss.
func (r *Resolver) GetBlock(ctx context.Context, number int64) (Block, error) {
	row, ok, err := r.store.Queries.GetBlock(ctx, int64(r.chainID), number)
	if err != nil {
		return Block{}, fmt.Errorf("looking up cached block: %s", err)
	}
	if ok {
		return Block{Number: row.Number, Timestamp: row.Timestamp}, nil
	}
	return r.fetchAndSaveBlock(ctx, big.NewInt(number))
}

// LatestBlock always issues an RPC call; the chain head is never served
// from cache since it changes on every new block. The fetched block is
// still persisted like any other.
func (r *Resolver) LatestBlock(ctx context.Context) (Block, error) {
	return r.fetchAndSaveBlock(ctx, nil)
}

func (r *Resolver) fetchAndSaveBlock(ctx context.Context, number *big.Int) (Block, error) {
	header, err := r.client.HeaderByNumber(ctx, number)
	if err != nil {
		return Block{}, fmt.Errorf("fetching block header: %s", err)
	}
	b := Block{Number: header.Number.Int64(), Timestamp: int64(header.Time)}
	if err := r.store.Queries.InsertBlock(ctx, db.Block{
		ChainID:   int64(r.chainID),
		Number:    b.Number,
		Timestamp: b.Timestamp,
	}); err != nil {
		return Block{}, fmt.Errorf("saving fetched block: %s", err)
	}
	return b, nil
}

// GetBlockTimestamps returns a timestamp per entry of blockNumbers, fetching
// at most two grid-aligned blocks per distinct grid bucket instead of one
// block per entry. gridStep = 0 disables interpolation entirely (every
// block is fetched exactly).
func (r *Resolver) GetBlockTimestamps(ctx context.Context, blockNumbers []int64, gridStep int64) ([]int64, error) {
	needed := map[int64]struct{}{}
	for _, bn := range blockNumbers {
		if gridStep == 0 || bn%gridStep == 0 {
			needed[bn] = struct{}{}
			continue
		}
		rounded := bn - mod(bn, gridStep)
		needed[rounded] = struct{}{}
		needed[rounded+gridStep] = struct{}{}
	}

	numbers := make([]int64, 0, len(needed))
	for bn := range needed {
		numbers = append(numbers, bn)
	}

	index, err := r.resolveBlocks(ctx, numbers)
	if err != nil {
		return nil, err
	}

	out := make([]int64, len(blockNumbers))
	for i, bn := range blockNumbers {
		if gridStep == 0 || bn%gridStep == 0 {
			out[i] = index[bn]
			continue
		}
		rounded := bn - mod(bn, gridStep)
		w := float64(mod(bn, gridStep)) / float64(gridStep)
		lo, hi := index[rounded], index[rounded+gridStep]
		out[i] = int64(float64(lo)*(1-w) + float64(hi)*w)
	}
	return out, nil
}

// resolveBlocks returns a number->timestamp map for numbers, serving
// whatever is cached and fetching the rest.
func (r *Resolver) resolveBlocks(ctx context.Context, numbers []int64) (map[int64]int64, error) {
	index := make(map[int64]int64, len(numbers))
	rows, err := r.store.Queries.FindBlocks(ctx, int64(r.chainID), numbers)
	if err != nil {
		return nil, fmt.Errorf("finding cached blocks: %s", err)
	}
	for _, row := range rows {
		index[row.Number] = row.Timestamp
	}
	for _, bn := range numbers {
		if _, ok := index[bn]; ok {
			continue
		}
		b, err := r.fetchAndSaveBlock(ctx, big.NewInt(bn))
		if err != nil {
			return nil, err
		}
		index[bn] = b.Timestamp
	}
	return index, nil
}

// GetBlockAtOrAfter returns the earliest block whose timestamp is greater
// than or equal to timestamp, using an interpolation search bracketed by
// the closest known-below and known-above blocks. Returns ok=false if even
// the chain head is before timestamp.
func (r *Resolver) GetBlockAtOrAfter(ctx context.Context, timestamp int64) (Block, bool, error) {
	rightRow, ok, err := r.store.Queries.GetBlockAfterTimestamp(ctx, int64(r.chainID), timestamp)
	var right Block
	if err != nil {
		return Block{}, false, fmt.Errorf("looking up cached block after timestamp: %s", err)
	}
	if ok {
		right = Block{Number: rightRow.Number, Timestamp: rightRow.Timestamp}
	} else {
		right, err = r.LatestBlock(ctx)
		if err != nil {
			return Block{}, false, err
		}
	}
	if right.Timestamp < timestamp {
		return Block{}, false, nil
	}

	leftRow, ok, err := r.store.Queries.GetBlockBeforeTimestamp(ctx, int64(r.chainID), timestamp)
	var left Block
	if err != nil {
		return Block{}, false, fmt.Errorf("looking up cached block before timestamp: %s", err)
	}
	if ok {
		left = Block{Number: leftRow.Number, Timestamp: leftRow.Timestamp}
	} else {
		left, err = r.GetBlock(ctx, 1)
		if err != nil {
			return Block{}, false, err
		}
	}

	if left.Timestamp >= timestamp {
		return left, true, nil
	}
	if right.Number-left.Number <= 1 {
		return right, true, nil
	}

	for hop := 1; right.Number-left.Number > 1; hop++ {
		estimatedHops := int(math.Ceil(math.Log2(float64(right.Number - left.Number))))
		r.log.Debug().
			Int("hop", hop).
			Int("estimated_hops", estimatedHops).
			Msg("narrowing block search range")

		w := float64(timestamp-left.Timestamp) / float64(right.Timestamp-left.Timestamp)
		num := int64(float64(left.Number)*(1-w) + float64(right.Number)*w)
		if num == left.Number {
			num++
		} else if num == right.Number {
			num--
		}
		b, err := r.GetBlock(ctx, num)
		if err != nil {
			return Block{}, false, err
		}
		if b.Timestamp >= timestamp {
			right = b
		} else {
			left = b
		}
	}
	return right, true, nil
}

// mod is the floor-mod of a by b for non-negative b, matching Python's %
// for the non-negative block numbers this package deals with.
func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
