package targets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dietboard/models"
)

// PreferenceKey namespaces the persisted target map. Bump the version suffix
// when the serialized shape changes.
const PreferenceKey = "dietboard:targets:v1"

// PreferenceRepository stores the target map as a JSON blob in the
// preferences table.
type PreferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository wraps a database handle.
func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Save upserts the serialized map under the versioned key.
func (r *PreferenceRepository) Save(ctx context.Context, targets map[uint]Target) error {
	if r.db == nil {
		return gorm.ErrInvalidDB
	}

	payload, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("encode targets: %w", err)
	}

	pref := models.Preference{Key: PreferenceKey, Value: string(payload)}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&pref).Error
	if err != nil {
		return fmt.Errorf("save targets: %w", err)
	}
	return nil
}

// Load reads the persisted map. A missing row yields an empty map; a
// malformed blob yields an error the caller may safely ignore in favour of
// defaults.
func (r *PreferenceRepository) Load(ctx context.Context) (map[uint]Target, error) {
	if r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var pref models.Preference
	err := r.db.WithContext(ctx).Where("key = ?", PreferenceKey).First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return map[uint]Target{}, nil
		}
		return nil, fmt.Errorf("load targets: %w", err)
	}

	targets := make(map[uint]Target)
	if err := json.Unmarshal([]byte(pref.Value), &targets); err != nil {
		return nil, fmt.Errorf("decode targets: %w", err)
	}
	return targets, nil
}
