package db

import (
	"context"
	"fmt"
)

// Event mirrors one row of the events table.
type Event struct {
	ChainID     int64
	BlockNumber int64
	TxHash      string
	LogIndex    int64
	Address     string
	EventName   string
	ArgsJSON    string
}

const insertEvent = `
INSERT INTO events (chain_id, block_number, tx_hash, log_index, address, event_name, args_json)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7)
ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
`

// InsertEvent inserts an event, silently ignoring a duplicate
// (chain_id, tx_hash, log_index).
func (q *Queries) InsertEvent(ctx context.Context, e Event) error {
	_, err := q.exec(ctx, insertEvent,
		e.ChainID, e.BlockNumber, e.TxHash, e.LogIndex, e.Address, e.EventName, e.ArgsJSON)
	if err != nil {
		return fmt.Errorf("inserting event: %s", err)
	}
	return nil
}

const findEvents = `
SELECT chain_id, block_number, tx_hash, log_index, address, event_name, args_json
FROM events
WHERE chain_id = ?1 AND address = ?2 AND event_name = ?3
  AND block_number >= ?4 AND block_number < ?5
ORDER BY block_number ASC, log_index ASC
`

// FindEvents returns every event for (chainID, address, eventName) in
// [fromBlock, toBlock), ordered by (block_number, log_index) by the query
// itself so memory stays bounded for large ranges.
func (q *Queries) FindEvents(
	ctx context.Context, chainID int64, address, eventName string, fromBlock, toBlock int64,
) ([]Event, error) {
	rows, err := q.query(ctx, findEvents, chainID, address, eventName, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("querying events: %s", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ChainID, &e.BlockNumber, &e.TxHash, &e.LogIndex, &e.Address, &e.EventName, &e.ArgsJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning event row: %s", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %s", err)
	}
	return out, nil
}

const purgeEvents = `DELETE FROM events`

// PurgeEvents deletes every row in the events table.
func (q *Queries) PurgeEvents(ctx context.Context) error {
	if _, err := q.exec(ctx, purgeEvents); err != nil {
		return fmt.Errorf("purging events: %s", err)
	}
	return nil
}
