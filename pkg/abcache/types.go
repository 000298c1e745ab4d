package abcache

import (
	"github.com/LavishGent/abcache/internal/repository"
	"github.com/LavishGent/abcache/internal/types"
)

type (
	// ExperimentSet is an immutable snapshot of one tenant's configuration.
	ExperimentSet = types.ExperimentSet
	Experiment    = types.Experiment
	Variant       = types.Variant
	// Blob is an opaque JSON value such as an attribute filter or payload.
	Blob             = types.Blob
	ExperimentKind   = types.ExperimentKind
	ExperimentStatus = types.ExperimentStatus
	ExperimentRow    = types.ExperimentRow
	VariantRow       = types.VariantRow
	// Gateway is the backing store for experiment configuration.
	Gateway = types.Gateway
	// MemoryGateway is an in-process Gateway for tests and examples.
	MemoryGateway = repository.MemoryGateway
	// TenantData is one tenant's rows as stored in a MemoryGateway or
	// published to Redis.
	TenantData = repository.TenantData
	// MetricsRecorder receives per-operation metric events.
	MetricsRecorder = types.MetricsRecorder
	// Logger provides logging operations.
	Logger = types.Logger
)

const (
	KindSegment  = types.KindSegment
	KindRandom   = types.KindRandom
	KindTargeted = types.KindTargeted

	StatusActive    = types.StatusActive
	StatusInactive  = types.StatusInactive
	StatusCompleted = types.StatusCompleted
)
