package targets

import (
	"context"
	"math"
	"reflect"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dietboard/internal/catalog"
	"dietboard/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

func testCatalog() *catalog.NutrientCatalog {
	return catalog.NewNutrientCatalog([]models.Nutrient{
		{
			Model:       gorm.Model{ID: 10},
			Key:         "calories",
			DisplayName: "Calories",
			Unit:        "kcal",
			DefaultGoal: floatPtr(2000),
			DefaultMax:  floatPtr(2500),
		},
		{
			Model:       gorm.Model{ID: 11},
			Key:         "protein",
			DisplayName: "Protein",
			Unit:        "g",
			DefaultGoal: floatPtr(50),
		},
		{
			Model:       gorm.Model{ID: 12},
			Key:         "fiber",
			DisplayName: "Fiber",
			Unit:        "g",
		},
	})
}

func withTargetTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	if err := db.AutoMigrate(&models.Preference{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestNewStoreSeedsFromDefaults(t *testing.T) {
	t.Parallel()

	store := NewStore(context.Background(), testCatalog(), nil)

	calories := store.Get(10)
	if calories.Goal == nil || *calories.Goal != 2000 {
		t.Fatalf("expected default goal 2000, got %+v", calories.Goal)
	}
	if calories.Max == nil || *calories.Max != 2500 {
		t.Fatalf("expected default max 2500, got %+v", calories.Max)
	}

	fiber := store.Get(12)
	if fiber.Goal != nil || fiber.Max != nil {
		t.Fatalf("expected missing defaults to seed as unset, got %+v", fiber)
	}
}

func TestSetParsesValueOrStoresNil(t *testing.T) {
	t.Parallel()

	store := NewStore(context.Background(), testCatalog(), nil)
	ctx := context.Background()

	target, err := store.Set(ctx, 11, FieldMax, "120.5")
	if err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if target.Max == nil || *target.Max != 120.5 {
		t.Fatalf("expected parsed max 120.5, got %+v", target.Max)
	}
	if target.Goal == nil || *target.Goal != 50 {
		t.Fatalf("expected goal untouched by max edit, got %+v", target.Goal)
	}

	// Unparsable input stores nil, never NaN.
	target, err = store.Set(ctx, 11, FieldMax, "not a number")
	if err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if target.Max != nil {
		t.Fatalf("expected unparsable input stored as unset, got %v", *target.Max)
	}

	target, err = store.Set(ctx, 11, FieldGoal, "NaN")
	if err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if target.Goal != nil {
		t.Fatalf("expected NaN input stored as unset, got %v", *target.Goal)
	}

	if _, err := store.Set(ctx, 99, FieldGoal, "1"); err != ErrUnknownNutrient {
		t.Fatalf("expected ErrUnknownNutrient, got %v", err)
	}
}

func TestIsOverMaxStrictBoundary(t *testing.T) {
	t.Parallel()

	store := NewStore(context.Background(), testCatalog(), nil)
	ctx := context.Background()

	if _, err := store.Set(ctx, 10, FieldMax, "150"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if !store.IsOverMax(10, 167) {
		t.Fatal("expected warning for 167 > 150")
	}
	if store.IsOverMax(10, 150) {
		t.Fatal("expected no warning when total equals max")
	}
	if store.IsOverMax(10, 0) {
		t.Fatal("expected no warning for zero total")
	}

	// Unset max never warns, whatever the total.
	if _, err := store.Set(ctx, 10, FieldMax, ""); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	for _, total := range []float64{0, 150, math.MaxFloat64} {
		if store.IsOverMax(10, total) {
			t.Fatalf("expected no warning with unset max for total %v", total)
		}
	}
}

func TestResetToDefaultsIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewStore(context.Background(), testCatalog(), nil)
	ctx := context.Background()

	if _, err := store.Set(ctx, 10, FieldMax, "10"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if _, err := store.Set(ctx, 12, FieldGoal, "99"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if err := store.ResetToDefaults(ctx); err != nil {
		t.Fatalf("ResetToDefaults returned error: %v", err)
	}
	first := store.All()

	if err := store.ResetToDefaults(ctx); err != nil {
		t.Fatalf("ResetToDefaults returned error: %v", err)
	}
	second := store.All()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected idempotent reset, got %+v then %+v", first, second)
	}
	if target := store.Get(10); target.Max == nil || *target.Max != 2500 {
		t.Fatalf("expected default max restored, got %+v", target.Max)
	}
	if target := store.Get(12); target.Goal != nil {
		t.Fatalf("expected override discarded, got %+v", target.Goal)
	}
}

func TestParseField(t *testing.T) {
	t.Parallel()

	if field, err := ParseField(" Goal "); err != nil || field != FieldGoal {
		t.Fatalf("expected goal field, got %v %v", field, err)
	}
	if field, err := ParseField("MAX"); err != nil || field != FieldMax {
		t.Fatalf("expected max field, got %v %v", field, err)
	}
	if _, err := ParseField("ceiling"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestStorePersistsAndRehydrates(t *testing.T) {
	db := withTargetTestDatabase(t)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()

	store := NewStore(ctx, testCatalog(), repo)
	if _, err := store.Set(ctx, 11, FieldMax, "80"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	// A fresh store over the same repository sees the override.
	rehydrated := NewStore(ctx, testCatalog(), repo)
	target := rehydrated.Get(11)
	if target.Max == nil || *target.Max != 80 {
		t.Fatalf("expected persisted max 80 after rehydration, got %+v", target.Max)
	}
	// Seeded defaults survive for untouched nutrients.
	if target := rehydrated.Get(10); target.Goal == nil || *target.Goal != 2000 {
		t.Fatalf("expected default goal for untouched nutrient, got %+v", target.Goal)
	}
}

func TestStoreIgnoresMalformedPersistedState(t *testing.T) {
	db := withTargetTestDatabase(t)
	if err := db.Create(&models.Preference{Key: PreferenceKey, Value: "{corrupt"}).Error; err != nil {
		t.Fatalf("failed to seed malformed preference: %v", err)
	}

	store := NewStore(context.Background(), testCatalog(), NewPreferenceRepository(db))
	if target := store.Get(10); target.Goal == nil || *target.Goal != 2000 {
		t.Fatalf("expected fallback to defaults on malformed state, got %+v", target)
	}
}

func TestStoreDropsPersistedUnknownNutrients(t *testing.T) {
	db := withTargetTestDatabase(t)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()

	if err := repo.Save(ctx, map[uint]Target{
		11: {Max: floatPtr(80)},
		99: {Max: floatPtr(5)},
	}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	store := NewStore(ctx, testCatalog(), repo)
	if target := store.Get(11); target.Max == nil || *target.Max != 80 {
		t.Fatalf("expected known override applied, got %+v", target.Max)
	}
	if target := store.Get(99); target.Goal != nil || target.Max != nil {
		t.Fatalf("expected unknown nutrient override dropped, got %+v", target)
	}
}
