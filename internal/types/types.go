// Package types provides shared types for the abcache library.
// This package breaks import cycles between pkg/abcache and the internal packages.
package types

import (
	"time"
)

// ExperimentKind is the targeting strategy of an experiment.
// Unknown values read from storage are preserved verbatim.
type ExperimentKind string

const (
	KindSegment  ExperimentKind = "SEGMENT"
	KindRandom   ExperimentKind = "RANDOM"
	KindTargeted ExperimentKind = "TARGETED"
)

func (k ExperimentKind) Known() bool {
	switch k {
	case KindSegment, KindRandom, KindTargeted:
		return true
	default:
		return false
	}
}

// ExperimentStatus is the lifecycle status of an experiment.
type ExperimentStatus string

const (
	StatusActive    ExperimentStatus = "ACTIVE"
	StatusInactive  ExperimentStatus = "INACTIVE"
	StatusCompleted ExperimentStatus = "COMPLETED"
)

func (s ExperimentStatus) Known() bool {
	switch s {
	case StatusActive, StatusInactive, StatusCompleted:
		return true
	default:
		return false
	}
}

// Variant is one arm of an experiment owning the half-open score range
// [RangeStart, RangeEnd) inside [0,100).
type Variant struct {
	ID         int64   `json:"id"`
	Key        string  `json:"key"`
	RangeStart float64 `json:"rangeStart"`
	RangeEnd   float64 `json:"rangeEnd"`
	Payload    Blob    `json:"payload"`
}

// Contains reports whether score falls inside the variant range.
func (v Variant) Contains(score float64) bool {
	return v.RangeStart <= score && score < v.RangeEnd
}

// Experiment is a configured test with its variants in storage order.
type Experiment struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Kind            ExperimentKind   `json:"type"`
	Status          ExperimentStatus `json:"status"`
	AttributeFilter Blob             `json:"attributeFilter"`
	StartTime       time.Time        `json:"startDate"`
	EndTime         time.Time        `json:"endDate"`
	Variants        []Variant        `json:"variants"`
}

// ActiveAt reports whether the experiment is ACTIVE and now lies inside
// [StartTime, EndTime]. Both bounds are inclusive.
func (e *Experiment) ActiveAt(now time.Time) bool {
	if e.Status != StatusActive {
		return false
	}
	return !now.Before(e.StartTime) && !now.After(e.EndTime)
}

// clone returns a copy whose variant slice is not shared with e.
func (e *Experiment) clone() Experiment {
	c := *e
	c.Variants = append([]Variant(nil), e.Variants...)
	return c
}

// ExperimentSet is an immutable snapshot of one tenant's configuration.
// A refresh always produces a new ExperimentSet; existing values are never
// modified after NewExperimentSet returns.
type ExperimentSet struct {
	id          string
	tenant      string
	meeGroupID  string
	hasMeeGroup bool
	experiments []Experiment
	byID        map[int64]int
	loadedAt    time.Time
}

// NewExperimentSet takes ownership of experiments. Callers must not retain
// or modify the slice afterwards.
func NewExperimentSet(id, tenant string, group string, hasGroup bool, experiments []Experiment, loadedAt time.Time) *ExperimentSet {
	byID := make(map[int64]int, len(experiments))
	for i := range experiments {
		if _, dup := byID[experiments[i].ID]; !dup {
			byID[experiments[i].ID] = i
		}
	}
	return &ExperimentSet{
		id:          id,
		tenant:      tenant,
		meeGroupID:  group,
		hasMeeGroup: hasGroup,
		experiments: experiments,
		byID:        byID,
		loadedAt:    loadedAt,
	}
}

// ID uniquely identifies this snapshot.
func (s *ExperimentSet) ID() string { return s.id }

func (s *ExperimentSet) Tenant() string { return s.tenant }

// MeeGroupID returns the tenant's group id and whether one exists.
func (s *ExperimentSet) MeeGroupID() (string, bool) { return s.meeGroupID, s.hasMeeGroup }

func (s *ExperimentSet) LoadedAt() time.Time { return s.loadedAt }

// Len returns the number of experiments.
func (s *ExperimentSet) Len() int { return len(s.experiments) }

// Experiments returns a copy of all experiments in storage order.
func (s *ExperimentSet) Experiments() []Experiment {
	out := make([]Experiment, len(s.experiments))
	for i := range s.experiments {
		out[i] = s.experiments[i].clone()
	}
	return out
}

// Experiment looks up an experiment by id.
func (s *ExperimentSet) Experiment(id int64) (Experiment, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Experiment{}, false
	}
	return s.experiments[i].clone(), true
}

// Active returns the experiments that are ACTIVE at now.
func (s *ExperimentSet) Active(now time.Time) []Experiment {
	var out []Experiment
	for i := range s.experiments {
		if s.experiments[i].ActiveAt(now) {
			out = append(out, s.experiments[i].clone())
		}
	}
	return out
}

// Snapshot is the serializable view of an ExperimentSet.
type Snapshot struct {
	ID          string       `json:"id"`
	Tenant      string       `json:"tenant"`
	MeeGroupID  *string      `json:"meeGroupId"`
	Experiments []Experiment `json:"tests"`
	LoadedAt    time.Time    `json:"loadedAt"`
}

// Snapshot returns a detached, serializable copy of the set.
func (s *ExperimentSet) Snapshot() Snapshot {
	snap := Snapshot{
		ID:          s.id,
		Tenant:      s.tenant,
		Experiments: s.Experiments(),
		LoadedAt:    s.loadedAt,
	}
	if s.hasMeeGroup {
		g := s.meeGroupID
		snap.MeeGroupID = &g
	}
	return snap
}
