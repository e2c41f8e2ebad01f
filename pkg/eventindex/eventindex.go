package eventindex

import "github.com/ethcache/fetcher/internal/chain"

// EventIndex records which block chunks have already been fetched for a
// specific (chain, contract, event, argument-filter) key.
type EventIndex struct {
	ChainID   chain.ID
	Address   string
	EventName string
	Args      Value
	Data      *IndexData
}

// Step returns the grid granularity of the underlying IndexData.
func (idx *EventIndex) Step() int64 {
	return idx.Data.GridStep()
}
