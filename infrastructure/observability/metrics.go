package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lootledger/config"
	"lootledger/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const exportInterval = 15 * time.Second

// MetricsProvider manages OpenTelemetry metrics for the ledger service
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	balanceTransactionsCounter   metric.Int64Counter
	conflictRetriesCounter       metric.Int64Counter
	wagersCounter                metric.Int64Counter
	wagerDurationHist            metric.Float64Histogram
	resellsCounter               metric.Int64Counter
	verificationsCounter         metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
	databaseQueriesCounter       metric.Int64Counter
	databaseQueryDurationHist    metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.MetricsExporter {
	case "", "none":
		log.Info("Metrics export disabled")
		mp.initialized = true
		return nil

	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTLPEndpoint).Info("Using OTLP metric exporter")

	default:
		return fmt.Errorf("unknown metrics exporter: %s", mp.config.MetricsExporter)
	}

	return mp.start(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval)))
}

// InitializeWithReader wires the provider to a caller-supplied reader
func (mp *MetricsProvider) InitializeWithReader(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.start(reader)
}

// start must be called with mu held
func (mp *MetricsProvider) start(reader sdkmetric.Reader) error {
	// Schemaless so the merge never conflicts with the SDK default schema
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName("lootledger"),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("lootledger")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create metric instruments: %w", err)
	}

	mp.initialized = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// instrumentBuilder creates instruments on one meter and keeps every failure
type instrumentBuilder struct {
	meter metric.Meter
	errs  []error
}

func (b *instrumentBuilder) counter(name, description string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit("1"))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s: %w", name, err))
	}
	return c
}

func (b *instrumentBuilder) seconds(name, description string, bounds ...float64) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(description),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s: %w", name, err))
	}
	return h
}

func (mp *MetricsProvider) createInstruments() error {
	b := &instrumentBuilder{meter: mp.meter}

	mp.balanceTransactionsCounter = b.counter(BalanceTransactionsTotal, "Committed ledger records by category and direction")
	mp.conflictRetriesCounter = b.counter(ConflictRetriesTotal, "Units of work retried after a storage conflict")
	mp.wagersCounter = b.counter(WagersTotal, "Finished wagers by result")
	mp.wagerDurationHist = b.seconds(WagerDuration, "End to end wager duration",
		0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5)
	mp.resellsCounter = b.counter(ResellsTotal, "Winning items exchanged for credit")
	mp.verificationsCounter = b.counter(VerifyRequests, "Spin verification requests by result")
	mp.natsMessagesPublishedCounter = b.counter(NATSMessagesPublishedTotal, "Ledger events published to NATS")
	mp.databaseQueriesCounter = b.counter(DatabaseQueriesTotal, "Repository queries by repository and method")
	mp.databaseQueryDurationHist = b.seconds(DatabaseQueryDuration, "Repository query duration",
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5)

	return errors.Join(b.errs...)
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordBalanceTransaction counts a committed ledger record
func (mp *MetricsProvider) RecordBalanceTransaction(category, direction string) {
	if mp.isEnabled() {
		mp.balanceTransactionsCounter.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String(LabelCategory, category),
			attribute.String(LabelDirection, direction),
		))
	}
}

// RecordConflictRetry counts one retried unit of work
func (mp *MetricsProvider) RecordConflictRetry(operation string) {
	if mp.isEnabled() {
		mp.conflictRetriesCounter.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String(LabelOperation, operation)))
	}
}

// RecordWager counts a finished wager and observes its latency
func (mp *MetricsProvider) RecordWager(result string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String(LabelResult, result))
	mp.wagersCounter.Add(context.Background(), 1, attrs)
	mp.wagerDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordResell counts a winning item exchanged for credit
func (mp *MetricsProvider) RecordResell() {
	if mp.isEnabled() {
		mp.resellsCounter.Add(context.Background(), 1)
	}
}

// RecordVerification counts a verification request by result
func (mp *MetricsProvider) RecordVerification(result string) {
	if mp.isEnabled() {
		mp.verificationsCounter.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String(LabelResult, result)))
	}
}

// RecordNATSMessagePublished counts an event accepted by the stream
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if mp.isEnabled() {
		mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String(LabelEventType, eventType)))
	}
}

// RecordDatabaseQuery counts a repository query and observes its latency
func (mp *MetricsProvider) RecordDatabaseQuery(repository, method string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(LabelRepository, repository),
		attribute.String(LabelMethod, method),
	)
	mp.databaseQueriesCounter.Add(context.Background(), 1, attrs)
	mp.databaseQueryDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// MeasureDatabaseQuery starts a timer; call the result when the query returns.
//
//	defer mp.MeasureDatabaseQuery("transaction_record", "GetLatest")()
func (mp *MetricsProvider) MeasureDatabaseQuery(repository, method string) func() {
	start := time.Now()
	return func() {
		mp.RecordDatabaseQuery(repository, method, time.Since(start))
	}
}

// SubscribeToEvents counts committed ledger events off the in-process bus
func (mp *MetricsProvider) SubscribeToEvents(bus *events.Bus) {
	bus.Subscribe(events.EventTypeBalanceChanged, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.BalanceChangedEvent); ok {
			mp.RecordBalanceTransaction(e.Category, e.Direction)
		}
	})
	bus.Subscribe(events.EventTypeWagerResold, func(ctx context.Context, event events.Event) {
		mp.RecordResell()
	})
}

func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meter != nil
}
