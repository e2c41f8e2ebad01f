package rpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthClient is a ChainClient backed by go-ethereum's ethclient.Client.
type EthClient struct {
	c *ethclient.Client
}

// Dial connects to the JSON-RPC endpoint at rawurl.
func Dial(rawurl string) (*EthClient, error) {
	c, err := ethclient.Dial(rawurl)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc endpoint: %s", err)
	}
	return &EthClient{c: c}, nil
}

// HeaderByNumber returns the block header at number, or the latest header
// if number is nil.
func (e *EthClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return e.c.HeaderByNumber(ctx, number)
}

// BlockNumber returns the current chain head's block number.
func (e *EthClient) BlockNumber(ctx context.Context) (uint64, error) {
	return e.c.BlockNumber(ctx)
}

// FilterLogs executes eth_getLogs for query.
func (e *EthClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return e.c.FilterLogs(ctx, query)
}

// CallContract executes eth_call against msg at blockNumber.
func (e *EthClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return e.c.CallContract(ctx, msg, blockNumber)
}

// BalanceAt executes eth_getBalance for account at blockNumber.
func (e *EthClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return e.c.BalanceAt(ctx, account, blockNumber)
}

// ChainID executes eth_chainId.
func (e *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	return e.c.ChainID(ctx)
}

// Close releases the underlying connection.
func (e *EthClient) Close() {
	e.c.Close()
}

// logResponseTooLargeSubstrings are the error-message fragments known JSON-RPC
// providers return when an eth_getLogs response (or its underlying query)
// would exceed their configured size or range limit. Matched the same way
// the teacher's event feed classifies a "shrink the range and retry" error.
var logResponseTooLargeSubstrings = []string{
	"read limit exceeded",
	"Log response size exceeded",
	"is greater than the limit",
	"eth_getLogs and eth_newFilter are limited to a 10,000 blocks range",
	"block range is too wide",
	"query returned more than",
}

// IsResponseTooLarge reports whether err indicates the RPC provider refused
// to serve a request because its result would be too large, the signal the
// EventFetcher's chunk-halving loop keys off of.
func IsResponseTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, frag := range logResponseTooLargeSubstrings {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
