// Package env is the single constructed-once value threaded into every
// service: chain id, RPC client, cache store, and grid step. It mirrors the
// teacher's per-class lazy singleton pattern, generalized from a
// process-global cache keyed by nothing into an explicit value whose
// fields are resolved lazily and memoized with sync.Once guards.
package env

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	logger "github.com/rs/zerolog/log"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/fetchererrors"
	"github.com/ethcache/fetcher/pkg/logging"
	"github.com/ethcache/fetcher/pkg/metrics"
	"github.com/ethcache/fetcher/pkg/rpc"
	"github.com/ethcache/fetcher/pkg/store"
)

// DefaultBlockGridStep matches the teacher ecosystem's default block grid
// width used when neither WithBlockGridStep nor WEB3_BLOCK_GRID_STEP gives
// one.
const DefaultBlockGridStep = 1000

// defaultServiceName names this process in logs and metrics when neither
// WithServiceName nor WEB3_SERVICE_NAME is given.
const defaultServiceName = "web3cache"

var (
	clientCacheMu sync.Mutex
	clientCache   = map[string]rpc.ChainClient{}

	storeCacheMu sync.Mutex
	storeCache   = map[string]*store.Store{}

	loggingBootstrapOnce sync.Once
	metricsBootstrapOnce sync.Once
)

// Env lazily resolves and shares the RPC client, cache store, chain id, and
// grid step every cache package needs. New builds a fresh Env on every call;
// Env values over the same rpc url share one RPC client, and those over the
// same cache path share one Store.
type Env struct {
	rpcURL        string
	cachePath     string
	blockGridStep int64
	serviceName   string
	logDebug      bool
	logHuman      bool
	metricsAddr   string

	clientOnce sync.Once
	client     rpc.ChainClient
	clientErr  error

	storeOnce sync.Once
	store     *store.Store
	storeErr  error

	chainIDOnce sync.Once
	chainID     chain.ID
	chainIDErr  error
}

// Option configures an Env at construction time.
type Option func(*Env)

// WithRPCURL sets the JSON-RPC endpoint explicitly, bypassing the
// WEB3_PROVIDER_URI environment fallback.
func WithRPCURL(url string) Option {
	return func(e *Env) { e.rpcURL = url }
}

// WithCachePath sets the cache database path explicitly, bypassing the
// WEB3_CACHE_PATH environment fallback.
func WithCachePath(path string) Option {
	return func(e *Env) { e.cachePath = path }
}

// WithBlockGridStep sets the block grid step explicitly, bypassing the
// WEB3_BLOCK_GRID_STEP environment fallback.
func WithBlockGridStep(step int64) Option {
	return func(e *Env) { e.blockGridStep = step }
}

// WithServiceName sets the name attached to exported metrics as their
// "component" attribute and to global log lines as their "version" field,
// bypassing the WEB3_SERVICE_NAME environment fallback.
func WithServiceName(name string) Option {
	return func(e *Env) { e.serviceName = name }
}

// WithLogDebug(true) enables debug-level logging regardless of
// WEB3_LOG_DEBUG; with false, the WEB3_LOG_DEBUG environment fallback still
// applies.
func WithLogDebug(debug bool) Option {
	return func(e *Env) { e.logDebug = debug }
}

// WithLogHuman(true) switches to a human-readable console log writer
// instead of JSON regardless of WEB3_LOG_HUMAN; with false, the
// WEB3_LOG_HUMAN environment fallback still applies.
func WithLogHuman(human bool) Option {
	return func(e *Env) { e.logHuman = human }
}

// WithMetricsAddr starts the Prometheus metrics endpoint at addr, bypassing
// the WEB3_METRICS_ADDR environment fallback. Leaving both unset disables
// metrics instrumentation entirely.
func WithMetricsAddr(addr string) Option {
	return func(e *Env) { e.metricsAddr = addr }
}

// New returns an Env with the given options applied. Resolution of the RPC
// client, store, and chain id is deferred to first use; New never dials a
// connection or opens a database.
func New(opts ...Option) (*Env, error) {
	e := &Env{}
	for _, o := range opts {
		o(e)
	}
	if e.rpcURL == "" {
		e.rpcURL = os.Getenv("WEB3_PROVIDER_URI")
	}
	if e.cachePath == "" {
		e.cachePath = os.Getenv("WEB3_CACHE_PATH")
	}
	if e.blockGridStep == 0 {
		if v := os.Getenv("WEB3_BLOCK_GRID_STEP"); v != "" {
			step, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing WEB3_BLOCK_GRID_STEP: %s", err)
			}
			e.blockGridStep = step
		}
	}
	if e.blockGridStep == 0 {
		e.blockGridStep = DefaultBlockGridStep
	}
	if e.serviceName == "" {
		e.serviceName = os.Getenv("WEB3_SERVICE_NAME")
	}
	if e.serviceName == "" {
		e.serviceName = defaultServiceName
	}
	if !e.logDebug {
		if v := os.Getenv("WEB3_LOG_DEBUG"); v != "" {
			debug, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("parsing WEB3_LOG_DEBUG: %s", err)
			}
			e.logDebug = debug
		}
	}
	if !e.logHuman {
		if v := os.Getenv("WEB3_LOG_HUMAN"); v != "" {
			human, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("parsing WEB3_LOG_HUMAN: %s", err)
			}
			e.logHuman = human
		}
	}
	if e.metricsAddr == "" {
		e.metricsAddr = os.Getenv("WEB3_METRICS_ADDR")
	}
	bootstrap(e.serviceName, e.logDebug, e.logHuman, e.metricsAddr)
	return e, nil
}

// bootstrap wires the ambient logging and metrics stack exactly once per
// process, mirroring the single logging.SetupLogger/metrics.SetupInstrumentation
// call pair the teacher's cmd/*/main.go entrypoints made at startup — this
// module has no cmd/ of its own, so Env's constructor is that entrypoint.
// Metrics stays disabled until a caller actually configures metricsAddr, so
// constructing an Env for tests or one-off scripts never opens a listener.
func bootstrap(serviceName string, debug, human bool, metricsAddr string) {
	loggingBootstrapOnce.Do(func() {
		logging.SetupLogger(serviceName, debug, human)
	})
	if metricsAddr == "" {
		return
	}
	metricsBootstrapOnce.Do(func() {
		if err := metrics.SetupInstrumentation(metricsAddr, serviceName); err != nil {
			logger.Error().Err(err).Msg("setting up instrumentation")
		}
	})
}

// BlockGridStep returns the configured block grid step.
func (e *Env) BlockGridStep() int64 {
	return e.blockGridStep
}

// ServiceName returns the name attached to metrics (as "component") and to
// global log lines (as "version").
func (e *Env) ServiceName() string {
	return e.serviceName
}

// Client returns the RPC client, dialing and memoizing it on first use. A
// missing RPC URL raises fetchererrors.ErrNotConfigured.
func (e *Env) Client() (rpc.ChainClient, error) {
	e.clientOnce.Do(func() {
		if e.rpcURL == "" {
			e.clientErr = fmt.Errorf(
				"%w: rpc url (pass WithRPCURL or set WEB3_PROVIDER_URI)", fetchererrors.ErrNotConfigured,
			)
			return
		}
		e.client, e.clientErr = dialShared(e.rpcURL)
	})
	return e.client, e.clientErr
}

// Store returns the cache store, opening and memoizing it on first use. A
// missing cache path raises fetchererrors.ErrNotConfigured.
func (e *Env) Store() (*store.Store, error) {
	e.storeOnce.Do(func() {
		if e.cachePath == "" {
			e.storeErr = fmt.Errorf(
				"%w: cache path (pass WithCachePath or set WEB3_CACHE_PATH)", fetchererrors.ErrNotConfigured,
			)
			return
		}
		e.store, e.storeErr = openShared(e.cachePath)
	})
	return e.store, e.storeErr
}

// ChainID returns the connected chain's id, issuing eth_chainId once and
// memoizing the result.
func (e *Env) ChainID(ctx context.Context) (chain.ID, error) {
	e.chainIDOnce.Do(func() {
		client, err := e.Client()
		if err != nil {
			e.chainIDErr = err
			return
		}
		id, err := client.ChainID(ctx)
		if err != nil {
			e.chainIDErr = fmt.Errorf("fetching chain id: %s", err)
			return
		}
		e.chainID = chain.ID(id.Int64())
	})
	return e.chainID, e.chainIDErr
}

// dialShared returns the shared ChainClient for rpcURL, dialing it once per
// process regardless of how many Env values reference the same endpoint.
func dialShared(rpcURL string) (rpc.ChainClient, error) {
	clientCacheMu.Lock()
	defer clientCacheMu.Unlock()
	if c, ok := clientCache[rpcURL]; ok {
		return c, nil
	}
	c, err := rpc.Dial(rpcURL)
	if err != nil {
		return nil, err
	}
	clientCache[rpcURL] = c
	return c, nil
}

// openShared returns the shared Store for path, opening it once per process
// regardless of how many Env values reference the same path.
func openShared(path string) (*store.Store, error) {
	storeCacheMu.Lock()
	defer storeCacheMu.Unlock()
	if s, ok := storeCache[path]; ok {
		return s, nil
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	storeCache[path] = s
	return s, nil
}
