package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Block mirrors one row of the blocks table.
type Block struct {
	ChainID   int64
	Number    int64
	Timestamp int64
}

const insertBlock = `
INSERT INTO blocks (chain_id, number, timestamp)
VALUES (?1, ?2, ?3)
ON CONFLICT (chain_id, number) DO NOTHING
`

// InsertBlock inserts a block, silently ignoring a duplicate (chain_id, number).
func (q *Queries) InsertBlock(ctx context.Context, b Block) error {
	if _, err := q.exec(ctx, insertBlock, b.ChainID, b.Number, b.Timestamp); err != nil {
		return fmt.Errorf("inserting block: %s", err)
	}
	return nil
}

const getBlock = `SELECT chain_id, number, timestamp FROM blocks WHERE chain_id = ?1 AND number = ?2`

// GetBlock returns the cached block by number, or ok=false on a cache miss.
func (q *Queries) GetBlock(ctx context.Context, chainID, number int64) (Block, bool, error) {
	row := q.queryRow(ctx, getBlock, chainID, number)
	var b Block
	err := row.Scan(&b.ChainID, &b.Number, &b.Timestamp)
	if err == sql.ErrNoRows {
		return Block{}, false, nil
	}
	if err != nil {
		return Block{}, false, fmt.Errorf("querying block: %s", err)
	}
	return b, true, nil
}

// FindBlocks returns the cached blocks among numbers, in no particular order;
// callers that need input order must re-index by Number.
func (q *Queries) FindBlocks(ctx context.Context, chainID int64, numbers []int64) ([]Block, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(numbers))
	args := make([]interface{}, 0, len(numbers)+1)
	args = append(args, chainID)
	for i, n := range numbers {
		placeholders[i] = fmt.Sprintf("?%d", i+2)
		args = append(args, n)
	}
	query := fmt.Sprintf(
		"SELECT chain_id, number, timestamp FROM blocks WHERE chain_id = ?1 AND number IN (%s)",
		strings.Join(placeholders, ","),
	)
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying blocks: %s", err)
	}
	defer rows.Close()

	var out []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ChainID, &b.Number, &b.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning block row: %s", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating block rows: %s", err)
	}
	return out, nil
}

const getBlockBeforeTimestamp = `
SELECT chain_id, number, timestamp FROM blocks
WHERE chain_id = ?1 AND timestamp < ?2
ORDER BY timestamp DESC LIMIT 1
`

// GetBlockBeforeTimestamp returns the cached block with the highest
// timestamp strictly less than ts, or ok=false if none is cached.
func (q *Queries) GetBlockBeforeTimestamp(ctx context.Context, chainID, ts int64) (Block, bool, error) {
	row := q.queryRow(ctx, getBlockBeforeTimestamp, chainID, ts)
	var b Block
	err := row.Scan(&b.ChainID, &b.Number, &b.Timestamp)
	if err == sql.ErrNoRows {
		return Block{}, false, nil
	}
	if err != nil {
		return Block{}, false, fmt.Errorf("querying block before timestamp: %s", err)
	}
	return b, true, nil
}

const getBlockAfterTimestamp = `
SELECT chain_id, number, timestamp FROM blocks
WHERE chain_id = ?1 AND timestamp >= ?2
ORDER BY timestamp ASC LIMIT 1
`

// GetBlockAfterTimestamp returns the cached block with the lowest timestamp
// greater than or equal to ts, or ok=false if none is cached.
func (q *Queries) GetBlockAfterTimestamp(ctx context.Context, chainID, ts int64) (Block, bool, error) {
	row := q.queryRow(ctx, getBlockAfterTimestamp, chainID, ts)
	var b Block
	err := row.Scan(&b.ChainID, &b.Number, &b.Timestamp)
	if err == sql.ErrNoRows {
		return Block{}, false, nil
	}
	if err != nil {
		return Block{}, false, fmt.Errorf("querying block after timestamp: %s", err)
	}
	return b, true, nil
}

const purgeBlocks = `DELETE FROM blocks`

// PurgeBlocks deletes every row in the blocks table.
func (q *Queries) PurgeBlocks(ctx context.Context) error {
	if _, err := q.exec(ctx, purgeBlocks); err != nil {
		return fmt.Errorf("purging blocks: %s", err)
	}
	return nil
}
