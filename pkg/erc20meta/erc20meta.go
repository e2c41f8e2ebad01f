// Package erc20meta is a minimal read/write repository over the
// erc20_metas table. It holds no on-chain lookup logic: resolving a
// token's name/symbol/decimals from chain data is an external
// collaborator's job; this package only persists whatever that
// collaborator resolves, through the same Store/transaction machinery as
// every other cache table.
package erc20meta

import (
	"context"
	"fmt"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/store/db"
)

// Meta is one token's cached name/symbol/decimals.
type Meta struct {
	ChainID  chain.ID
	Address  string
	Name     string
	Symbol   string
	Decimals int64
}

// Repo persists and retrieves Meta rows.
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

// Get returns the cached metadata for (chainID, address), or ok=false on a
// cache miss.
func (r *Repo) Get(ctx context.Context, chainID chain.ID, address string) (Meta, bool, error) {
	row, ok, err := r.q.GetERC20Meta(ctx, int64(chainID), address)
	if err != nil {
		return Meta{}, false, fmt.Errorf("getting erc20 meta: %s", err)
	}
	if !ok {
		return Meta{}, false, nil
	}
	return fromRow(row), true, nil
}

// List returns every cached token metadata row for chainID.
func (r *Repo) List(ctx context.Context, chainID chain.ID) ([]Meta, error) {
	rows, err := r.q.ListERC20Metas(ctx, int64(chainID))
	if err != nil {
		return nil, fmt.Errorf("listing erc20 metas: %s", err)
	}
	out := make([]Meta, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// Save upserts m on (chain_id, address).
func (r *Repo) Save(ctx context.Context, m Meta) error {
	if err := r.q.SaveERC20Meta(ctx, db.ERC20Meta{
		ChainID:  int64(m.ChainID),
		Address:  m.Address,
		Name:     m.Name,
		Symbol:   m.Symbol,
		Decimals: m.Decimals,
	}); err != nil {
		return fmt.Errorf("saving erc20 meta: %s", err)
	}
	return nil
}

// Purge deletes every row in the erc20_metas table.
func (r *Repo) Purge(ctx context.Context) error {
	return r.q.PurgeERC20Metas(ctx)
}

func fromRow(row db.ERC20Meta) Meta {
	return Meta{
		ChainID:  chain.ID(row.ChainID),
		Address:  row.Address,
		Name:     row.Name,
		Symbol:   row.Symbol,
		Decimals: row.Decimals,
	}
}
