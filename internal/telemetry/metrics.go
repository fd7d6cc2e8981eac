package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/assettrack"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Lifecycle engine metrics
	OperationsTotal      metric.Int64Counter
	OperationErrorsTotal metric.Int64Counter
	OperationDuration    metric.Float64Histogram
	RepresentationMoves  metric.Int64Counter
	DeleteRetriesTotal   metric.Int64Counter

	// Tenant router metrics
	HandleOpensTotal       metric.Int64Counter
	HandleOpenErrorsTotal  metric.Int64Counter
	HandleOpenDuration     metric.Float64Histogram
	HandlesActive          metric.Int64UpDownCounter
	HandleOpensCoalesced   metric.Int64Counter
	HandleEvictionsTotal   metric.Int64Counter
	SerialConflictsTotal   metric.Int64Counter
	AuditRecordsTotal      metric.Int64Counter
	AuditWriteErrorsTotal  metric.Int64Counter
	EventsPublishedTotal   metric.Int64Counter
	EventPublishErrorTotal metric.Int64Counter
	ConfigCacheHitsTotal   metric.Int64Counter
	ConfigCacheMissesTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Lifecycle engine metrics
	m.OperationsTotal, _ = meter.Int64Counter(
		"assettrack.lifecycle.operations.total",
		metric.WithDescription("Total number of asset lifecycle operations"),
		metric.WithUnit("{operation}"),
	)

	m.OperationErrorsTotal, _ = meter.Int64Counter(
		"assettrack.lifecycle.operations.errors.total",
		metric.WithDescription("Total number of failed asset lifecycle operations"),
		metric.WithUnit("{error}"),
	)

	m.OperationDuration, _ = meter.Float64Histogram(
		"assettrack.lifecycle.operations.duration",
		metric.WithDescription("Duration of asset lifecycle operations"),
		metric.WithUnit("ms"),
	)

	m.RepresentationMoves, _ = meter.Int64Counter(
		"assettrack.lifecycle.moves.total",
		metric.WithDescription("Total number of products moved between standalone and embedded storage"),
		metric.WithUnit("{move}"),
	)

	m.DeleteRetriesTotal, _ = meter.Int64Counter(
		"assettrack.lifecycle.delete.retries.total",
		metric.WithDescription("Total number of soft delete transactions retried after a transient conflict"),
		metric.WithUnit("{retry}"),
	)

	// Tenant router metrics
	m.HandleOpensTotal, _ = meter.Int64Counter(
		"assettrack.tenant.opens.total",
		metric.WithDescription("Total number of tenant store handles opened"),
		metric.WithUnit("{handle}"),
	)

	m.HandleOpenErrorsTotal, _ = meter.Int64Counter(
		"assettrack.tenant.opens.errors.total",
		metric.WithDescription("Total number of failed tenant store opens"),
		metric.WithUnit("{error}"),
	)

	m.HandleOpenDuration, _ = meter.Float64Histogram(
		"assettrack.tenant.opens.duration",
		metric.WithDescription("Duration of tenant store opens"),
		metric.WithUnit("ms"),
	)

	m.HandlesActive, _ = meter.Int64UpDownCounter(
		"assettrack.tenant.handles.active",
		metric.WithDescription("Number of cached tenant store handles"),
		metric.WithUnit("{handle}"),
	)

	m.HandleOpensCoalesced, _ = meter.Int64Counter(
		"assettrack.tenant.opens.coalesced.total",
		metric.WithDescription("Total number of resolves that waited on an open already in flight"),
		metric.WithUnit("{resolve}"),
	)

	m.HandleEvictionsTotal, _ = meter.Int64Counter(
		"assettrack.tenant.evictions.total",
		metric.WithDescription("Total number of tenant store handles evicted"),
		metric.WithUnit("{handle}"),
	)

	// Serial guard metrics
	m.SerialConflictsTotal, _ = meter.Int64Counter(
		"assettrack.serial.conflicts.total",
		metric.WithDescription("Total number of rejected duplicate serial numbers"),
		metric.WithUnit("{conflict}"),
	)

	// Audit metrics
	m.AuditRecordsTotal, _ = meter.Int64Counter(
		"assettrack.audit.records.total",
		metric.WithDescription("Total number of audit records written"),
		metric.WithUnit("{record}"),
	)

	m.AuditWriteErrorsTotal, _ = meter.Int64Counter(
		"assettrack.audit.write.errors.total",
		metric.WithDescription("Total number of audit records that could not be written"),
		metric.WithUnit("{error}"),
	)

	// Event metrics
	m.EventsPublishedTotal, _ = meter.Int64Counter(
		"assettrack.events.published.total",
		metric.WithDescription("Total number of domain events published"),
		metric.WithUnit("{event}"),
	)

	m.EventPublishErrorTotal, _ = meter.Int64Counter(
		"assettrack.events.publish.errors.total",
		metric.WithDescription("Total number of domain events that could not be published"),
		metric.WithUnit("{error}"),
	)

	// Tenant config cache metrics
	m.ConfigCacheHitsTotal, _ = meter.Int64Counter(
		"assettrack.tenantconfig.cache.hits.total",
		metric.WithDescription("Total number of tenant config cache hits"),
		metric.WithUnit("{lookup}"),
	)

	m.ConfigCacheMissesTotal, _ = meter.Int64Counter(
		"assettrack.tenantconfig.cache.misses.total",
		metric.WithDescription("Total number of tenant config cache misses"),
		metric.WithUnit("{lookup}"),
	)

	return m
}
