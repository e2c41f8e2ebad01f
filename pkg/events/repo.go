package events

import (
	"context"
	"fmt"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/eventindex"
	"github.com/ethcache/fetcher/pkg/store/db"
)

// Repo persists and retrieves decoded Event rows.
type Repo struct {
	q *db.Queries
}

// NewRepo returns a Repo backed by q.
func NewRepo(q *db.Queries) *Repo {
	return &Repo{q: q}
}

// WithQueries returns a Repo bound to a different Queries, typically one
// scoped to an open transaction.
func (r *Repo) WithQueries(q *db.Queries) *Repo {
	return &Repo{q: q}
}

// Insert writes e, silently ignoring a duplicate
// (chain_id, tx_hash, log_index).
func (r *Repo) Insert(ctx context.Context, e Event) error {
	argsJSON, err := eventindex.MarshalCanonicalJSON(e.Args)
	if err != nil {
		return fmt.Errorf("marshaling event args: %s", err)
	}
	row := db.Event{
		ChainID:     int64(e.ChainID),
		BlockNumber: e.BlockNumber,
		TxHash:      e.TxHash,
		LogIndex:    e.LogIndex,
		Address:     e.Address,
		EventName:   e.EventName,
		ArgsJSON:    string(argsJSON),
	}
	if err := r.q.InsertEvent(ctx, row); err != nil {
		return fmt.Errorf("inserting event: %s", err)
	}
	return nil
}

// Find returns every event for (chainID, address, eventName) in
// [fromBlock, toBlock), ordered by (block_number, log_index).
func (r *Repo) Find(
	ctx context.Context, chainID chain.ID, address, eventName string, fromBlock, toBlock int64,
) ([]Event, error) {
	rows, err := r.q.FindEvents(ctx, int64(chainID), address, eventName, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("finding events: %s", err)
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		args, err := eventindex.UnmarshalCanonicalJSON([]byte(row.ArgsJSON))
		if err != nil {
			return nil, fmt.Errorf("unmarshaling event args: %s", err)
		}
		out = append(out, Event{
			ChainID:     chain.ID(row.ChainID),
			BlockNumber: row.BlockNumber,
			TxHash:      row.TxHash,
			LogIndex:    row.LogIndex,
			Address:     row.Address,
			EventName:   row.EventName,
			Args:        args,
		})
	}
	return out, nil
}

// Purge deletes every row in the events table.
func (r *Repo) Purge(ctx context.Context) error {
	return r.q.PurgeEvents(ctx)
}
