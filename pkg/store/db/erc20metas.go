package db

import (
	"context"
	"database/sql"
	"fmt"
)

// ERC20Meta mirrors one row of the erc20_metas table.
type ERC20Meta struct {
	ChainID  int64
	Address  string
	Name     string
	Symbol   string
	Decimals int64
}

const upsertERC20Meta = `
INSERT INTO erc20_metas (chain_id, address, name, symbol, decimals)
VALUES (?1, ?2, ?3, ?4, ?5)
ON CONFLICT (chain_id, address) DO UPDATE SET
  name = excluded.name, symbol = excluded.symbol, decimals = excluded.decimals
`

// SaveERC20Meta upserts the token metadata for (chain_id, address).
func (q *Queries) SaveERC20Meta(ctx context.Context, m ERC20Meta) error {
	_, err := q.exec(ctx, upsertERC20Meta, m.ChainID, m.Address, m.Name, m.Symbol, m.Decimals)
	if err != nil {
		return fmt.Errorf("saving erc20 meta: %s", err)
	}
	return nil
}

const getERC20Meta = `
SELECT chain_id, address, name, symbol, decimals
FROM erc20_metas
WHERE chain_id = ?1 AND address = ?2
`

// GetERC20Meta returns the cached token metadata, or ok=false on a cache miss.
func (q *Queries) GetERC20Meta(ctx context.Context, chainID int64, address string) (ERC20Meta, bool, error) {
	row := q.queryRow(ctx, getERC20Meta, chainID, address)
	var m ERC20Meta
	err := row.Scan(&m.ChainID, &m.Address, &m.Name, &m.Symbol, &m.Decimals)
	if err == sql.ErrNoRows {
		return ERC20Meta{}, false, nil
	}
	if err != nil {
		return ERC20Meta{}, false, fmt.Errorf("querying erc20 meta: %s", err)
	}
	return m, true, nil
}

const listERC20Metas = `
SELECT chain_id, address, name, symbol, decimals
FROM erc20_metas
WHERE chain_id = ?1
`

// ListERC20Metas returns every cached token metadata row for chainID.
func (q *Queries) ListERC20Metas(ctx context.Context, chainID int64) ([]ERC20Meta, error) {
	rows, err := q.query(ctx, listERC20Metas, chainID)
	if err != nil {
		return nil, fmt.Errorf("querying erc20 metas: %s", err)
	}
	defer rows.Close()

	var out []ERC20Meta
	for rows.Next() {
		var m ERC20Meta
		if err := rows.Scan(&m.ChainID, &m.Address, &m.Name, &m.Symbol, &m.Decimals); err != nil {
			return nil, fmt.Errorf("scanning erc20 meta row: %s", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating erc20 meta rows: %s", err)
	}
	return out, nil
}

const purgeERC20Metas = `DELETE FROM erc20_metas`

// PurgeERC20Metas deletes every row in the erc20_metas table.
func (q *Queries) PurgeERC20Metas(ctx context.Context) error {
	if _, err := q.exec(ctx, purgeERC20Metas); err != nil {
		return fmt.Errorf("purging erc20 metas: %s", err)
	}
	return nil
}
