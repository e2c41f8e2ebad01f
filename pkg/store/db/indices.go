package db

import (
	"context"
	"database/sql"
	"fmt"
)

// EventIndex mirrors one row of the events_indices table.
type EventIndex struct {
	ChainID   int64
	Address   string
	EventName string
	ArgsJSON  string
	DataBlob  []byte
}

const getEventIndex = `
SELECT chain_id, address, event_name, args_json, data_blob
FROM events_indices
WHERE chain_id = ?1 AND address = ?2 AND event_name = ?3 AND args_json = ?4
`

// GetEventIndex returns the row matching the normalized args exactly.
func (q *Queries) GetEventIndex(
	ctx context.Context, chainID int64, address, eventName, argsJSON string,
) (EventIndex, bool, error) {
	row := q.queryRow(ctx, getEventIndex, chainID, address, eventName, argsJSON)
	var idx EventIndex
	err := row.Scan(&idx.ChainID, &idx.Address, &idx.EventName, &idx.ArgsJSON, &idx.DataBlob)
	if err == sql.ErrNoRows {
		return EventIndex{}, false, nil
	}
	if err != nil {
		return EventIndex{}, false, fmt.Errorf("querying event index: %s", err)
	}
	return idx, true, nil
}

const findEventIndices = `
SELECT chain_id, address, event_name, args_json, data_blob
FROM events_indices
WHERE chain_id = ?1 AND address = ?2 AND event_name = ?3
`

// FindEventIndices returns every stored index for (chainID, address,
// eventName), regardless of its argument filter. The caller decides which
// ones are "softer" than a given query filter.
func (q *Queries) FindEventIndices(
	ctx context.Context, chainID int64, address, eventName string,
) ([]EventIndex, error) {
	rows, err := q.query(ctx, findEventIndices, chainID, address, eventName)
	if err != nil {
		return nil, fmt.Errorf("querying event indices: %s", err)
	}
	defer rows.Close()

	var out []EventIndex
	for rows.Next() {
		var idx EventIndex
		if err := rows.Scan(&idx.ChainID, &idx.Address, &idx.EventName, &idx.ArgsJSON, &idx.DataBlob); err != nil {
			return nil, fmt.Errorf("scanning event index row: %s", err)
		}
		out = append(out, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event index rows: %s", err)
	}
	return out, nil
}

const upsertEventIndex = `
INSERT INTO events_indices (chain_id, address, event_name, args_json, data_blob)
VALUES (?1, ?2, ?3, ?4, ?5)
ON CONFLICT (chain_id, address, event_name, args_json) DO UPDATE SET data_blob = excluded.data_blob
`

// SaveEventIndex upserts on (chain_id, address, event_name, args_json),
// replacing the data_blob field only.
func (q *Queries) SaveEventIndex(ctx context.Context, idx EventIndex) error {
	_, err := q.exec(ctx, upsertEventIndex,
		idx.ChainID, idx.Address, idx.EventName, idx.ArgsJSON, idx.DataBlob)
	if err != nil {
		return fmt.Errorf("saving event index: %s", err)
	}
	return nil
}

const purgeEventIndices = `DELETE FROM events_indices`

// PurgeEventIndices deletes every row in the events_indices table.
func (q *Queries) PurgeEventIndices(ctx context.Context) error {
	if _, err := q.exec(ctx, purgeEventIndices); err != nil {
		return fmt.Errorf("purging event indices: %s", err)
	}
	return nil
}
