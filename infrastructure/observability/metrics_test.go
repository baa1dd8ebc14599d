package observability

import (
	"context"
	"testing"
	"time"

	"lootledger/config"
	"lootledger/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	return totals
}

func TestMetricsProvider_DisabledIsNoop(t *testing.T) {
	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.Initialize(context.Background()))

	assert.NotPanics(t, func() {
		mp.RecordWager("committed", time.Millisecond)
		mp.RecordConflictRetry("record_transaction")
		mp.MeasureDatabaseQuery("user", "GetByID")()
	})
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.MetricsExporter = "carrier-pigeon"

	err := NewMetricsProvider(cfg).Initialize(context.Background())
	assert.Error(t, err)
}

func TestMetricsProvider_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.InitializeWithReader(reader))
	defer mp.Shutdown(context.Background())

	mp.RecordWager("committed", 20*time.Millisecond)
	mp.RecordWager("aborted", 5*time.Millisecond)
	mp.RecordConflictRetry("place_wager")
	mp.MeasureDatabaseQuery("box_nonce", "Next")()
	mp.RecordVerification("verified")

	totals := collectSums(t, reader)
	assert.Equal(t, int64(2), totals[WagersTotal])
	assert.Equal(t, int64(1), totals[ConflictRetriesTotal])
	assert.Equal(t, int64(1), totals[DatabaseQueriesTotal])
	assert.Equal(t, int64(1), totals[VerifyRequests])
}

func TestMetricsProvider_SubscribeToEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.InitializeWithReader(reader))
	defer mp.Shutdown(context.Background())

	bus := events.NewBus()
	mp.SubscribeToEvents(bus)

	bus.Emit(context.Background(), events.BalanceChangedEvent{UserID: 1, Category: "deposit", Direction: "credit", Amount: 10})
	bus.Emit(context.Background(), events.WagerResoldEvent{OutcomeID: 3, UserID: 1, CreditAmount: 8})

	// Bus handlers run on their own goroutines
	assert.Eventually(t, func() bool {
		totals := collectSums(t, reader)
		return totals[BalanceTransactionsTotal] == 1 && totals[ResellsTotal] == 1
	}, time.Second, 10*time.Millisecond)
}
