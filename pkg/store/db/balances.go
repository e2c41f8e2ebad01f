package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Balance mirrors one row of the balances table. Wei is the canonical decimal
// string representation of the balance; scaling to a human unit happens at
// the edge, never in storage.
type Balance struct {
	ChainID     int64
	Address     string
	BlockNumber int64
	Wei         string
}

const insertBalance = `
INSERT INTO balances (chain_id, address, block_number, wei)
VALUES (?1, ?2, ?3, ?4)
ON CONFLICT (chain_id, address, block_number) DO NOTHING
`

// InsertBalance inserts a cached balance, silently ignoring a duplicate
// (chain_id, address, block_number).
func (q *Queries) InsertBalance(ctx context.Context, b Balance) error {
	if _, err := q.exec(ctx, insertBalance, b.ChainID, b.Address, b.BlockNumber, b.Wei); err != nil {
		return fmt.Errorf("inserting balance: %s", err)
	}
	return nil
}

const getBalance = `
SELECT chain_id, address, block_number, wei
FROM balances
WHERE chain_id = ?1 AND address = ?2 AND block_number = ?3
`

// GetBalance returns the cached balance for (chainID, address, blockNumber),
// or ok=false on a cache miss.
func (q *Queries) GetBalance(ctx context.Context, chainID int64, address string, blockNumber int64) (Balance, bool, error) {
	row := q.queryRow(ctx, getBalance, chainID, address, blockNumber)
	var b Balance
	err := row.Scan(&b.ChainID, &b.Address, &b.BlockNumber, &b.Wei)
	if err == sql.ErrNoRows {
		return Balance{}, false, nil
	}
	if err != nil {
		return Balance{}, false, fmt.Errorf("querying balance: %s", err)
	}
	return b, true, nil
}

const purgeBalances = `DELETE FROM balances`

// PurgeBalances deletes every row in the balances table.
func (q *Queries) PurgeBalances(ctx context.Context) error {
	if _, err := q.exec(ctx, purgeBalances); err != nil {
		return fmt.Errorf("purging balances: %s", err)
	}
	return nil
}
