package eventindex

import (
	"context"
	"fmt"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/store/db"
)

// Repo persists and retrieves EventIndex rows, including the subset-aware
// "covering" lookup that lets a query served by a softer stored filter skip
// an RPC fetch entirely.
type Repo struct {
	q        *db.Queries
	gridStep int64
}

// NewRepo returns a Repo backed by q, decoding every IndexData with
// gridStep.
func NewRepo(q *db.Queries, gridStep int64) *Repo {
	return &Repo{q: q, gridStep: gridStep}
}

// WithQueries returns a Repo bound to a different Queries (typically one
// scoped to an open transaction via store.Store.WithinTx), keeping this
// Repo's grid step.
func (r *Repo) WithQueries(q *db.Queries) *Repo {
	return &Repo{q: q, gridStep: r.gridStep}
}

// GetExact returns the row matching chainID, address, eventName and the
// normalized args exactly, or ok=false if none is stored.
func (r *Repo) GetExact(
	ctx context.Context, chainID chain.ID, address, eventName string, args Value,
) (*EventIndex, bool, error) {
	argsJSON, err := MarshalCanonicalJSON(args)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling args: %s", err)
	}
	row, ok, err := r.q.GetEventIndex(ctx, int64(chainID), address, eventName, string(argsJSON))
	if err != nil {
		return nil, false, fmt.Errorf("getting event index: %s", err)
	}
	if !ok {
		return nil, false, nil
	}
	idx, err := r.fromRow(row)
	if err != nil {
		return nil, false, err
	}
	return idx, true, nil
}

// FindCovering returns every stored index for (chainID, address, eventName)
// whose filter is softer than args: the union of their covered chunks is
// what a fetch for args may skip.
func (r *Repo) FindCovering(
	ctx context.Context, chainID chain.ID, address, eventName string, args Value,
) ([]*EventIndex, error) {
	rows, err := r.q.FindEventIndices(ctx, int64(chainID), address, eventName)
	if err != nil {
		return nil, fmt.Errorf("finding event indices: %s", err)
	}
	normalizedArgs := Normalize(args)
	var out []*EventIndex
	for _, row := range rows {
		idx, err := r.fromRow(row)
		if err != nil {
			return nil, err
		}
		if IsSofterThan(idx.Args, normalizedArgs) {
			out = append(out, idx)
		}
	}
	return out, nil
}

// Save upserts idx on (chain_id, address, event_name, normalized_args),
// replacing the data blob only.
func (r *Repo) Save(ctx context.Context, idx *EventIndex) error {
	argsJSON, err := MarshalCanonicalJSON(idx.Args)
	if err != nil {
		return fmt.Errorf("marshaling args: %s", err)
	}
	row := db.EventIndex{
		ChainID:   int64(idx.ChainID),
		Address:   idx.Address,
		EventName: idx.EventName,
		ArgsJSON:  string(argsJSON),
		DataBlob:  idx.Data.Serialize(),
	}
	if err := r.q.SaveEventIndex(ctx, row); err != nil {
		return fmt.Errorf("saving event index: %s", err)
	}
	return nil
}

// Purge deletes every stored index row.
func (r *Repo) Purge(ctx context.Context) error {
	return r.q.PurgeEventIndices(ctx)
}

func (r *Repo) fromRow(row db.EventIndex) (*EventIndex, error) {
	args, err := UnmarshalCanonicalJSON([]byte(row.ArgsJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling args: %s", err)
	}
	return &EventIndex{
		ChainID:   chain.ID(row.ChainID),
		Address:   row.Address,
		EventName: row.EventName,
		Args:      args,
		Data:      Deserialize(r.gridStep, row.DataBlob),
	}, nil
}
