// Package eventfetcher implements the event-fetch scheduler: a retry/chunk-
// halving loop that respects RPC result-size limits, uses the coverage
// index to skip already-fetched ranges, and writes back both events and the
// updated index atomically.
package eventfetcher

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/abiutil"
	"github.com/ethcache/fetcher/pkg/eventindex"
	"github.com/ethcache/fetcher/pkg/events"
	"github.com/ethcache/fetcher/pkg/fetchererrors"
	"github.com/ethcache/fetcher/pkg/rpc"
	"github.com/ethcache/fetcher/pkg/store"
	"github.com/ethcache/fetcher/pkg/store/db"
)

// Scheduler is the fetch scheduler for one chain's events. A single
// Scheduler is shared across however many (contract, event, filter) keys a
// consumer queries; there is no per-key parallelism (spec: single active
// fetch worker per key).
type Scheduler struct {
	log      zerolog.Logger
	chainID  chain.ID
	client   rpc.ChainClient
	store    *store.Store
	idxRepo  *eventindex.Repo
	evRepo   *events.Repo
	gridStep int64
	config   *Config
	metrics  *schedulerMetrics
}

// New returns a Scheduler for chainID, reading/writing through s and
// fetching through client.
func New(
	chainID chain.ID,
	client rpc.ChainClient,
	s *store.Store,
	gridStep int64,
	opts ...Option,
) (*Scheduler, error) {
	config := DefaultConfig()
	for _, o := range opts {
		o(config)
	}
	m, err := newSchedulerMetrics(chainID)
	if err != nil {
		return nil, fmt.Errorf("initializing metrics instruments: %s", err)
	}
	log := logger.With().
		Str("component", "eventfetcher").
		Int64("chain_id", int64(chainID)).
		Logger()
	return &Scheduler{
		log:      log,
		chainID:  chainID,
		client:   client,
		store:    s,
		idxRepo:  eventindex.NewRepo(s.Queries, gridStep),
		evRepo:   events.NewRepo(s.Queries),
		gridStep: gridStep,
		config:   config,
		metrics:  m,
	}, nil
}

// GetEvents ensures every chunk in [fromBlock, toBlock) is fetched and
// persisted, then serves the query by scanning the Events table and
// applying argumentFilter in memory.
func (s *Scheduler) GetEvents(
	ctx context.Context,
	parsedABI *abi.ABI,
	address common.Address,
	eventName string,
	fromBlock, toBlock int64,
	argumentFilter eventindex.Value,
) ([]events.Event, error) {
	if err := s.PrefetchEvents(ctx, parsedABI, address, eventName, fromBlock, toBlock, argumentFilter); err != nil {
		return nil, err
	}
	addr := normalizeAddress(address)
	all, err := s.evRepo.Find(ctx, s.chainID, addr, eventName, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	out := make([]events.Event, 0, len(all))
	for _, e := range all {
		if e.MatchesFilter(argumentFilter) {
			out = append(out, e)
		}
	}
	return out, nil
}

// PrefetchEvents fetches and persists every chunk in [fromBlock, toBlock)
// not already covered by a softer stored index, without reading the
// results back. On failure it returns the partial-progress error: whatever
// chunks already committed remain cached.
func (s *Scheduler) PrefetchEvents(
	ctx context.Context,
	parsedABI *abi.ABI,
	address common.Address,
	eventName string,
	fromBlock, toBlock int64,
	argumentFilter eventindex.Value,
) error {
	addr := normalizeAddress(address)

	readIndices, err := s.idxRepo.FindCovering(ctx, s.chainID, addr, eventName, argumentFilter)
	if err != nil {
		return fmt.Errorf("finding covering indices: %s", err)
	}

	writeIndex, ok, err := s.idxRepo.GetExact(ctx, s.chainID, addr, eventName, argumentFilter)
	if err != nil {
		return fmt.Errorf("getting write index: %s", err)
	}
	if !ok {
		writeIndex = &eventindex.EventIndex{
			ChainID:   s.chainID,
			Address:   addr,
			EventName: eventName,
			Args:      argumentFilter,
			Data:      eventindex.New(s.gridStep),
		}
	}

	topic0, err := abiutil.EventTopic0(parsedABI, eventName)
	if err != nil {
		return fmt.Errorf("deriving event topic0: %s", err)
	}
	indexedTopics, err := abiutil.IndexedArgTopics(parsedABI, eventName, argumentFilter)
	if err != nil {
		return fmt.Errorf("deriving indexed arg topics: %s", err)
	}
	topics := append([][]common.Hash{{topic0}}, indexedTopics...)

	chunkSizeInSteps := (toBlock-fromBlock)/s.gridStep + 1
	var lastErr error
	for chunkSizeInSteps > 0 {
		err := s.fetchEventsForChunkSize(
			ctx, chunkSizeInSteps, parsedABI, address, eventName, topics,
			fromBlock, toBlock, readIndices, writeIndex,
		)
		if err == nil {
			return nil
		}
		lastErr = err
		s.metrics.mChunkRetries.Add(ctx, 1, s.metrics.baseLabels...)
		s.log.Warn().
			Err(err).
			Int64("chunk_size_in_steps", chunkSizeInSteps).
			Msg("chunk fetch failed, halving chunk size")
		chunkSizeInSteps /= 2
		if chunkSizeInSteps > 0 {
			time.Sleep(s.config.ChainAPIBackoff)
		}
	}
	return pkgerrors.Wrapf(fetchererrors.ErrChunkExhausted, "%s", lastErr)
}

func (s *Scheduler) fetchEventsForChunkSize(
	ctx context.Context,
	chunkSizeInSteps int64,
	parsedABI *abi.ABI,
	address common.Address,
	eventName string,
	topics [][]common.Hash,
	fromBlock, toBlock int64,
	readIndices []*eventindex.EventIndex,
	writeIndex *eventindex.EventIndex,
) error {
	f := writeIndex.Data.SnapToGrid(fromBlock)
	offset := int64(0)
	if toBlock != writeIndex.Data.SnapToGrid(toBlock) {
		offset = 1
	}
	t := writeIndex.Data.SnapToGrid(toBlock) + offset*s.gridStep
	step := chunkSizeInSteps * s.gridStep

	for start := f; start < t; start += step {
		end := start + step
		if end > t {
			end = t
		}
		shrunkStart, shrunkEnd := shrinkRange(readIndices, start, end)
		if shrunkStart >= shrunkEnd {
			continue
		}
		if err := s.fetchAndSaveChunk(
			ctx, parsedABI, address, eventName, topics, shrunkStart, shrunkEnd, writeIndex,
		); err != nil {
			return err
		}
	}
	return nil
}

// shrinkRange advances from past the leading grid-aligned chunks, and
// retreats to past the trailing ones, already covered by the union of
// readIndices. Covered chunks between two uncovered ones stay inside the
// returned range and are fetched again.
func shrinkRange(readIndices []*eventindex.EventIndex, from, to int64) (int64, int64) {
	if len(readIndices) == 0 {
		return from, to
	}
	step := readIndices[0].Step()
	start, end := from, to
	for start <= end && blockIsCovered(readIndices, start) {
		start += step
	}
	for start <= end && blockIsCovered(readIndices, end-step) {
		end -= step
	}
	return start, end
}

func blockIsCovered(indices []*eventindex.EventIndex, block int64) bool {
	if block < 0 {
		return false
	}
	for _, idx := range indices {
		if idx.Data.Get(block) {
			return true
		}
	}
	return false
}

func (s *Scheduler) fetchAndSaveChunk(
	ctx context.Context,
	parsedABI *abi.ABI,
	address common.Address,
	eventName string,
	topics [][]common.Hash,
	from, to int64,
	writeIndex *eventindex.EventIndex,
) error {
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(from),
		ToBlock:   big.NewInt(to - 1),
		Addresses: []common.Address{address},
		Topics:    topics,
	}
	fctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	logs, err := s.client.FilterLogs(fctx, query)
	if err != nil {
		if rpc.IsResponseTooLarge(err) {
			return pkgerrors.Wrapf(fetchererrors.ErrRpcResponseTooLarge, "%s", err)
		}
		return pkgerrors.Wrapf(fetchererrors.ErrRpcTransient, "%s", err)
	}

	decoded := make([]events.Event, 0, len(logs))
	for _, l := range logs {
		args, err := abiutil.DecodeLogArgs(parsedABI, eventName, l)
		if err != nil {
			return fmt.Errorf("decoding log args: %s", err)
		}
		decoded = append(decoded, events.Event{
			ChainID:     s.chainID,
			BlockNumber: int64(l.BlockNumber),
			TxHash:      normalizeHash(l.TxHash),
			LogIndex:    int64(l.Index),
			Address:     normalizeAddress(l.Address),
			EventName:   eventName,
			Args:        args,
		})
	}

	return s.store.WithinTx(ctx, func(txQueries *db.Queries) error {
		evRepoTx := s.evRepo.WithQueries(txQueries)
		for _, e := range decoded {
			if err := evRepoTx.Insert(ctx, e); err != nil {
				return err
			}
		}
		if err := writeIndex.Data.SetRange(from, to, true); err != nil {
			return err
		}
		idxRepoTx := s.idxRepo.WithQueries(txQueries)
		if err := idxRepoTx.Save(ctx, writeIndex); err != nil {
			return err
		}
		s.metrics.mChunksFetched.Add(ctx, 1, s.metrics.baseLabels...)
		s.metrics.mEventsPersisted.Add(ctx, int64(len(decoded)), s.metrics.baseLabels...)
		s.metrics.mLastFetchedBlock.Store(to - 1)
		return nil
	})
}

func normalizeAddress(a common.Address) string {
	return toLowerHex(a.Hex())
}

func normalizeHash(h common.Hash) string {
	return toLowerHex(h.Hex())
}

func toLowerHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
