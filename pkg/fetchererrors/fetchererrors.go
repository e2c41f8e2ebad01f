// Package fetchererrors defines the sentinel error kinds produced by the
// cache core. Call sites either return them bare or wrap them, with
// fmt.Errorf("...: %w", ErrX) or github.com/pkg/errors' Wrapf, so callers
// can still match with errors.Is while getting a readable message.
package fetchererrors

import "errors"

var (
	// ErrNotConfigured is returned when a required option (RPC url, cache
	// path) has no explicit value and no environment fallback.
	ErrNotConfigured = errors.New("not configured")

	// ErrRpcTransient marks a network error, timeout, or rate-limit response
	// from the chain endpoint. Recovered locally by chunk halving.
	ErrRpcTransient = errors.New("transient rpc error")

	// ErrRpcResponseTooLarge marks a refusal by the endpoint because the
	// requested log range would return too large a response. Recovered the
	// same way as ErrRpcTransient: by chunk halving.
	ErrRpcResponseTooLarge = errors.New("rpc response too large")

	// ErrChunkExhausted is surfaced when the chunk size has been halved to
	// zero without a successful fetch. The text of the error that caused
	// the last halving is included in the message; that error itself is
	// not in the errors.Is chain.
	ErrChunkExhausted = errors.New("chunk size exhausted")

	// ErrAlignment marks an attempt to set a bit range at block numbers that
	// are not aligned to the grid step.
	ErrAlignment = errors.New("block range is not grid-aligned")

	// ErrRange marks an invalid bit range (end before start, or negative).
	ErrRange = errors.New("invalid bit range")

	// ErrTokenNotFound is surfaced by the (out-of-scope) ERC-20 metadata
	// collaborator when a symbol/address can't be resolved from the
	// preloaded map or on-chain calls. The core never raises it itself.
	ErrTokenNotFound = errors.New("token not found")
)
