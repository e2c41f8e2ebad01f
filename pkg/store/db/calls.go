package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Call mirrors one row of the calls table.
type Call struct {
	ChainID      int64
	Address      string
	Calldata     string
	BlockNumber  int64
	ResponseJSON string
}

const insertCall = `
INSERT INTO calls (chain_id, address, calldata, block_number, response_json)
VALUES (?1, ?2, ?3, ?4, ?5)
ON CONFLICT (chain_id, address, calldata, block_number) DO NOTHING
`

// InsertCall inserts a cached eth_call response.
func (q *Queries) InsertCall(ctx context.Context, c Call) error {
	if _, err := q.exec(ctx, insertCall, c.ChainID, c.Address, c.Calldata, c.BlockNumber, c.ResponseJSON); err != nil {
		return fmt.Errorf("inserting call: %s", err)
	}
	return nil
}

const getCall = `
SELECT chain_id, address, calldata, block_number, response_json
FROM calls
WHERE chain_id = ?1 AND address = ?2 AND calldata = ?3 AND block_number = ?4
`

// GetCall returns the cached response for (chainID, address, calldata,
// blockNumber), or ok=false on a cache miss.
func (q *Queries) GetCall(ctx context.Context, chainID int64, address, calldata string, blockNumber int64) (Call, bool, error) {
	row := q.queryRow(ctx, getCall, chainID, address, calldata, blockNumber)
	var c Call
	err := row.Scan(&c.ChainID, &c.Address, &c.Calldata, &c.BlockNumber, &c.ResponseJSON)
	if err == sql.ErrNoRows {
		return Call{}, false, nil
	}
	if err != nil {
		return Call{}, false, fmt.Errorf("querying call: %s", err)
	}
	return c, true, nil
}

const purgeCalls = `DELETE FROM calls`

// PurgeCalls deletes every row in the calls table.
func (q *Queries) PurgeCalls(ctx context.Context) error {
	if _, err := q.exec(ctx, purgeCalls); err != nil {
		return fmt.Errorf("purging calls: %s", err)
	}
	return nil
}
