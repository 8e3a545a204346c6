package mock

import (
	"context"
	"testing"

	"dietboard/models"
)

func TestNewSeedsExpectedRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := New(ctx)
	if err != nil {
		t.Fatalf("mock database initialization failed: %v", err)
	}

	var nutrients []models.Nutrient
	if err := db.WithContext(ctx).Find(&nutrients).Error; err != nil {
		t.Fatalf("query nutrients: %v", err)
	}
	if len(nutrients) == 0 {
		t.Fatal("expected seeded nutrients")
	}

	var foods []models.Food
	if err := db.WithContext(ctx).Find(&foods).Error; err != nil {
		t.Fatalf("query foods: %v", err)
	}
	if len(foods) == 0 {
		t.Fatal("expected seeded foods")
	}
	for _, food := range foods {
		if food.FoldedName == "" {
			t.Fatalf("expected folded name for %q", food.Name)
		}
	}

	var facts []models.FoodNutrient
	if err := db.WithContext(ctx).Find(&facts).Error; err != nil {
		t.Fatalf("query food nutrients: %v", err)
	}
	if len(facts) == 0 {
		t.Fatal("expected seeded food nutrients")
	}
	// The catalog stays sparse: foods without a measured nutrient carry no row.
	if len(facts) >= len(foods)*len(nutrients) {
		t.Fatalf("expected a sparse fact table, got %d rows for %d foods and %d nutrients",
			len(facts), len(foods), len(nutrients))
	}
}
