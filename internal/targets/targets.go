package targets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"dietboard/internal/catalog"
	applog "dietboard/internal/log"
)

// ErrUnknownNutrient reports a nutrient id outside the loaded catalog.
var ErrUnknownNutrient = errors.New("targets: unknown nutrient")

// Field selects which half of a target an edit applies to.
type Field string

const (
	FieldGoal Field = "goal"
	FieldMax  Field = "max"
)

// ParseField validates a user-supplied field name.
func ParseField(raw string) (Field, error) {
	switch Field(strings.ToLower(strings.TrimSpace(raw))) {
	case FieldGoal:
		return FieldGoal, nil
	case FieldMax:
		return FieldMax, nil
	default:
		return "", fmt.Errorf("targets: unknown field %q", raw)
	}
}

// Target holds the user-configured goal and max thresholds for one nutrient.
// Nil means unset.
type Target struct {
	Goal *float64 `json:"goal"`
	Max  *float64 `json:"max"`
}

// Repository persists the full target map under a single versioned key.
type Repository interface {
	Save(ctx context.Context, targets map[uint]Target) error
	Load(ctx context.Context) (map[uint]Target, error)
}

// Store is the user-editable target map, seeded from nutrient defaults and
// overlaid with persisted overrides when a valid prior map exists.
type Store struct {
	mu        sync.RWMutex
	nutrients *catalog.NutrientCatalog
	repo      Repository
	targets   map[uint]Target
}

// NewStore seeds targets from catalog defaults and rehydrates persisted
// overrides. A malformed or missing persisted map falls back to the seeded
// defaults without failing startup.
func NewStore(ctx context.Context, nutrients *catalog.NutrientCatalog, repo Repository) *Store {
	s := &Store{
		nutrients: nutrients,
		repo:      repo,
		targets:   seedDefaults(nutrients),
	}

	if repo == nil {
		return s
	}

	persisted, err := repo.Load(ctx)
	if err != nil {
		applog.Warn(ctx, "ignoring persisted targets", "error", err)
		return s
	}
	for nutrientID, target := range persisted {
		if _, ok := nutrients.ByID(nutrientID); !ok {
			continue
		}
		s.targets[nutrientID] = sanitize(target)
	}
	return s
}

func seedDefaults(nutrients *catalog.NutrientCatalog) map[uint]Target {
	targets := make(map[uint]Target, nutrients.Len())
	for _, nutrient := range nutrients.All() {
		targets[nutrient.ID] = Target{
			Goal: copyFinite(nutrient.DefaultGoal),
			Max:  copyFinite(nutrient.DefaultMax),
		}
	}
	return targets
}

func copyFinite(v *float64) *float64 {
	if v == nil || math.IsInf(*v, 0) || math.IsNaN(*v) {
		return nil
	}
	value := *v
	return &value
}

func sanitize(target Target) Target {
	return Target{Goal: copyFinite(target.Goal), Max: copyFinite(target.Max)}
}

// Set parses the raw value and updates one field of the nutrient's target,
// leaving the other field untouched. Unparsable or non-finite input stores
// nil, never NaN. The change is applied in memory first; a persistence
// failure is returned for surfacing but does not roll the change back.
func (s *Store) Set(ctx context.Context, nutrientID uint, field Field, raw string) (Target, error) {
	if _, ok := s.nutrients.ByID(nutrientID); !ok {
		return Target{}, ErrUnknownNutrient
	}

	var value *float64
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		value = copyFinite(&parsed)
	}

	s.mu.Lock()
	target := s.targets[nutrientID]
	switch field {
	case FieldGoal:
		target.Goal = value
	case FieldMax:
		target.Max = value
	default:
		s.mu.Unlock()
		return Target{}, fmt.Errorf("targets: unknown field %q", field)
	}
	s.targets[nutrientID] = target
	snapshot := s.copyLocked()
	s.mu.Unlock()

	return target, s.persist(ctx, snapshot)
}

// ResetToDefaults discards all overrides and re-seeds the map from nutrient
// defaults. Calling it repeatedly is idempotent.
func (s *Store) ResetToDefaults(ctx context.Context) error {
	s.mu.Lock()
	s.targets = seedDefaults(s.nutrients)
	snapshot := s.copyLocked()
	s.mu.Unlock()

	return s.persist(ctx, snapshot)
}

// Get returns the target for one nutrient, zero-valued when the nutrient is
// unknown.
func (s *Store) Get(nutrientID uint) Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.targets[nutrientID]
}

// All returns a copy of the full target map.
func (s *Store) All() map[uint]Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// IsOverMax reports whether the total strictly exceeds the configured max.
// An unset max never warns, whatever the total.
func (s *Store) IsOverMax(nutrientID uint, total float64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	target := s.targets[nutrientID]
	return target.Max != nil && total > *target.Max
}

func (s *Store) copyLocked() map[uint]Target {
	out := make(map[uint]Target, len(s.targets))
	for nutrientID, target := range s.targets {
		out[nutrientID] = target
	}
	return out
}

func (s *Store) persist(ctx context.Context, snapshot map[uint]Target) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(ctx, snapshot); err != nil {
		applog.Error(ctx, "failed to persist targets", "error", err)
		return fmt.Errorf("persist targets: %w", err)
	}
	return nil
}
