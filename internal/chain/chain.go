// Package chain defines the chain identifier type shared by every cache
// table and service in the module.
package chain

// ID is an EVM chain id. Every row in the Store is keyed by one of these,
// but lookups never join across them (spec Non-goal: no cross-chain joins).
type ID int64
