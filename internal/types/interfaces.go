package types

import (
	"context"
	"time"
)

// GroupRow maps a tenant to its mee group.
type GroupRow struct {
	Tenant     string `json:"tenant" msgpack:"tenant" cbor:"tenant"`
	MeeGroupID string `json:"meeGroupId" msgpack:"meeGroupId" cbor:"meeGroupId"`
}

// ExperimentRow is an experiment as stored, before blob parsing.
type ExperimentRow struct {
	StartTime       time.Time `json:"startTime" msgpack:"startTime" cbor:"startTime"`
	EndTime         time.Time `json:"endTime" msgpack:"endTime" cbor:"endTime"`
	Name            string    `json:"name" msgpack:"name" cbor:"name"`
	Kind            string    `json:"kind" msgpack:"kind" cbor:"kind"`
	Status          string    `json:"status" msgpack:"status" cbor:"status"`
	AttributeFilter []byte    `json:"attributeFilter" msgpack:"attributeFilter" cbor:"attributeFilter"`
	ID              int64     `json:"id" msgpack:"id" cbor:"id"`
}

// VariantRow is a variant as stored, before blob parsing.
type VariantRow struct {
	Key          string  `json:"key" msgpack:"key" cbor:"key"`
	Value        []byte  `json:"value" msgpack:"value" cbor:"value"`
	ID           int64   `json:"id" msgpack:"id" cbor:"id"`
	ExperimentID int64   `json:"experimentId" msgpack:"experimentId" cbor:"experimentId"`
	RangeStart   float64 `json:"rangeStart" msgpack:"rangeStart" cbor:"rangeStart"`
	RangeEnd     float64 `json:"rangeEnd" msgpack:"rangeEnd" cbor:"rangeEnd"`
}

// Gateway is the backing store for experiment configuration.
type Gateway interface {
	// MeeGroupID returns the tenant's group id. ok is false when the tenant
	// has no active group.
	MeeGroupID(ctx context.Context, tenant string) (id string, ok bool, err error)
	ExperimentsByTenant(ctx context.Context, tenant string) ([]ExperimentRow, error)
	VariantsByExperimentIDs(ctx context.Context, ids []int64) ([]VariantRow, error)
	ListTenants(ctx context.Context) ([]string, error)
}

// SetLoader produces a fresh ExperimentSet for a tenant.
type SetLoader interface {
	Load(ctx context.Context, tenant string) (*ExperimentSet, error)
}

type MetricsRecorder interface {
	RecordHit(tenant string)
	RecordMiss(tenant string)
	RecordLoad(tenant string, latency time.Duration, err error)
	RecordEviction(tenant string)
	RecordInvalidation(tenant string)
	RecordCircuitBreakerStateChange(from, to string)
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher sends metrics to an external backend such as DogStatsD.
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text, alertType string, tags ...string)
	PublishHealthMetrics(m *PublisherHealthMetrics)
	Close() error
}
