// Package transform turns stored experiment rows into immutable experiment sets.
package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/LavishGent/abcache/internal/types"
)

// Fields reported in MalformedDataError.Field.
const (
	FieldAttributeFilter = "attributeFilter"
	FieldPayload         = "payload"
	FieldRange           = "range"
)

const fullRange = 100.0

// Options configures a Transformer.
type Options struct {
	Logger *slog.Logger
	// ValidateRanges rejects variant lists that do not partition [0,100).
	ValidateRanges bool
}

// Transformer builds ExperimentSets. It holds no mutable state and is safe
// for concurrent use.
type Transformer struct {
	logger         *slog.Logger
	validateRanges bool
}

func New(opts Options) *Transformer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{
		logger:         logger.With("component", "transformer"),
		validateRanges: opts.ValidateRanges,
	}
}

// Build assembles the tenant's experiments and their variants. Variants are
// attached by ExperimentID in row order; rows for unknown experiments are
// ignored. group is nil when the tenant has no mee group.
//
// Any blob or range problem fails the whole build with a *MalformedDataError.
func (t *Transformer) Build(tenant string, group *types.GroupRow, expRows []types.ExperimentRow, varRows []types.VariantRow, now time.Time) (*types.ExperimentSet, error) {
	byExperiment := make(map[int64][]types.VariantRow, len(expRows))
	for _, row := range varRows {
		byExperiment[row.ExperimentID] = append(byExperiment[row.ExperimentID], row)
	}

	experiments := make([]types.Experiment, 0, len(expRows))
	attached := 0
	for _, row := range expRows {
		exp, err := t.buildExperiment(tenant, row, byExperiment[row.ID])
		if err != nil {
			return nil, err
		}
		attached += len(exp.Variants)
		experiments = append(experiments, exp)
	}

	if orphans := len(varRows) - attached; orphans > 0 {
		t.logger.Debug("Ignoring variants of unknown experiments", "tenant", tenant, "count", orphans)
	}

	var groupID string
	hasGroup := group != nil
	if hasGroup {
		groupID = group.MeeGroupID
	}

	return types.NewExperimentSet(uuid.NewString(), tenant, groupID, hasGroup, experiments, now), nil
}

func (t *Transformer) buildExperiment(tenant string, row types.ExperimentRow, varRows []types.VariantRow) (types.Experiment, error) {
	filter, err := types.ParseBlob(row.AttributeFilter)
	if err != nil {
		return types.Experiment{}, malformed(tenant, row.ID, 0, FieldAttributeFilter, err)
	}
	if !filter.IsObject() && !filter.IsNull() {
		return types.Experiment{}, malformed(tenant, row.ID, 0, FieldAttributeFilter,
			errors.New("attribute filter must be a JSON object or null"))
	}

	variants := make([]types.Variant, 0, len(varRows))
	for _, vr := range varRows {
		payload, err := types.ParseBlob(vr.Value)
		if err != nil {
			return types.Experiment{}, malformed(tenant, row.ID, vr.ID, FieldPayload, err)
		}
		variants = append(variants, types.Variant{
			ID:         vr.ID,
			Key:        vr.Key,
			RangeStart: vr.RangeStart,
			RangeEnd:   vr.RangeEnd,
			Payload:    payload,
		})
	}

	if t.validateRanges {
		if err := ValidateRanges(variants); err != nil {
			return types.Experiment{}, malformed(tenant, row.ID, 0, FieldRange, err)
		}
	}

	return types.Experiment{
		ID:              row.ID,
		Name:            row.Name,
		Kind:            types.ExperimentKind(row.Kind),
		Status:          types.ExperimentStatus(row.Status),
		AttributeFilter: filter,
		StartTime:       row.StartTime,
		EndTime:         row.EndTime,
		Variants:        variants,
	}, nil
}

// ValidateRanges checks that a non-empty variant list partitions [0,100):
// every range lies inside [0,100] with start < end, and the ranges sorted
// by start are disjoint and leave no gap. An empty list is valid.
func ValidateRanges(variants []types.Variant) error {
	if len(variants) == 0 {
		return nil
	}

	for _, v := range variants {
		if math.IsNaN(v.RangeStart) || math.IsNaN(v.RangeEnd) {
			return fmt.Errorf("variant %q range [%g,%g) is not a number", v.Key, v.RangeStart, v.RangeEnd)
		}
	}

	sorted := slices.Clone(variants)
	slices.SortStableFunc(sorted, func(a, b types.Variant) int {
		switch {
		case a.RangeStart < b.RangeStart:
			return -1
		case a.RangeStart > b.RangeStart:
			return 1
		default:
			return 0
		}
	})

	for _, v := range sorted {
		if v.RangeStart < 0 || v.RangeEnd > fullRange {
			return fmt.Errorf("variant %q range [%g,%g) outside [0,100)", v.Key, v.RangeStart, v.RangeEnd)
		}
		if v.RangeStart >= v.RangeEnd {
			return fmt.Errorf("variant %q range [%g,%g) is empty", v.Key, v.RangeStart, v.RangeEnd)
		}
	}

	cursor := 0.0
	for _, v := range sorted {
		switch {
		case v.RangeStart > cursor:
			return fmt.Errorf("scores [%g,%g) are not covered", cursor, v.RangeStart)
		case v.RangeStart < cursor:
			return fmt.Errorf("variant %q range [%g,%g) overlaps a previous range", v.Key, v.RangeStart, v.RangeEnd)
		}
		cursor = v.RangeEnd
	}
	if cursor != fullRange {
		return fmt.Errorf("scores [%g,100) are not covered", cursor)
	}
	return nil
}

func malformed(tenant string, experimentID, variantID int64, field string, err error) *types.MalformedDataError {
	return &types.MalformedDataError{
		Tenant:       tenant,
		ExperimentID: experimentID,
		VariantID:    variantID,
		Field:        field,
		Err:          err,
	}
}
