package eventfetcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.uber.org/atomic"

	"github.com/ethcache/fetcher/internal/chain"
	"github.com/ethcache/fetcher/pkg/metrics"
)

type schedulerMetrics struct {
	baseLabels        []attribute.KeyValue
	mChunkRetries     instrument.Int64Counter
	mChunksFetched    instrument.Int64Counter
	mEventsPersisted  instrument.Int64Counter
	mLastFetchedBlock atomic.Int64
}

func newSchedulerMetrics(chainID chain.ID) (*schedulerMetrics, error) {
	meter := global.MeterProvider().Meter("web3cache")
	m := &schedulerMetrics{
		baseLabels: append([]attribute.KeyValue{attribute.Int64("chain_id", int64(chainID))}, metrics.BaseAttrs...),
	}

	var err error
	m.mChunkRetries, err = meter.Int64Counter("web3cache.eventfetcher.chunk_retries.count")
	if err != nil {
		return nil, fmt.Errorf("creating chunk retries counter: %s", err)
	}
	m.mChunksFetched, err = meter.Int64Counter("web3cache.eventfetcher.chunks_fetched.count")
	if err != nil {
		return nil, fmt.Errorf("creating chunks fetched counter: %s", err)
	}
	m.mEventsPersisted, err = meter.Int64Counter("web3cache.eventfetcher.events_persisted.count")
	if err != nil {
		return nil, fmt.Errorf("creating events persisted counter: %s", err)
	}

	mLastBlock, err := meter.Int64ObservableGauge("web3cache.eventfetcher.last_fetched_block")
	if err != nil {
		return nil, fmt.Errorf("creating last fetched block gauge: %s", err)
	}
	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(mLastBlock, m.mLastFetchedBlock.Load(), m.baseLabels...)
			return nil
		}, []instrument.Asynchronous{mLastBlock}...,
	)
	if err != nil {
		return nil, fmt.Errorf("registering last fetched block callback: %s", err)
	}
	return m, nil
}
