package mock

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dietboard/internal/catalog"
	applog "dietboard/internal/log"
	"dietboard/models"
)

// New returns an in-memory sqlite database seeded with a small food
// composition catalog, enough to exercise the board end to end.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	db, err := gorm.Open(sqlite.Open("file:dietboard-mock?mode=memory&cache=shared"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.Nutrient{},
		&models.Food{},
		&models.FoodNutrient{},
		&models.Preference{},
	); err != nil {
		return nil, err
	}

	if err := seed(ctx, db); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return db, nil
}

func floatPtr(v float64) *float64 {
	return &v
}

func seed(ctx context.Context, db *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	nutrients := []*models.Nutrient{
		{Key: "calories", DisplayName: "Calories", Unit: "kcal", DefaultGoal: floatPtr(2000), DefaultMax: floatPtr(2500)},
		{Key: "protein", DisplayName: "Protein", Unit: "g", DefaultGoal: floatPtr(50)},
		{Key: "carbohydrates", DisplayName: "Carbohydrates", Unit: "g", DefaultMax: floatPtr(300)},
		{Key: "fat", DisplayName: "Fat", Unit: "g", DefaultMax: floatPtr(70)},
		{Key: "sugar", DisplayName: "Sugar", Unit: "g", DefaultMax: floatPtr(50)},
		{Key: "sodium", DisplayName: "Sodium", Unit: "mg", DefaultMax: floatPtr(2300)},
		{Key: "fiber", DisplayName: "Fiber", Unit: "g", DefaultGoal: floatPtr(30)},
	}
	for _, nutrient := range nutrients {
		if err := db.WithContext(ctx).Create(nutrient).Error; err != nil {
			return err
		}
	}

	apple := models.Food{Name: "Apple", FoldedName: catalog.FoldName("Apple"), PricePer100g: floatPtr(0.40)}
	banana := models.Food{Name: "Banana", FoldedName: catalog.FoldName("Banana"), PricePer100g: floatPtr(0.25)}
	oats := models.Food{Name: "Rolled Oats", FoldedName: catalog.FoldName("Rolled Oats"), PricePer100g: floatPtr(0.30)}
	yogurt := models.Food{Name: "Greek Yoghurt", FoldedName: catalog.FoldName("Greek Yoghurt")}

	foods := []*models.Food{&apple, &banana, &oats, &yogurt}
	for _, food := range foods {
		if err := db.WithContext(ctx).Create(food).Error; err != nil {
			return err
		}
	}

	byKey := make(map[string]uint, len(nutrients))
	for _, nutrient := range nutrients {
		byKey[nutrient.Key] = nutrient.ID
	}

	// Sparse on purpose: not every food carries every nutrient row.
	facts := []models.FoodNutrient{
		{FoodID: apple.ID, NutrientID: byKey["calories"], AmountPer100g: 52},
		{FoodID: apple.ID, NutrientID: byKey["protein"], AmountPer100g: 0.3},
		{FoodID: apple.ID, NutrientID: byKey["carbohydrates"], AmountPer100g: 13.8},
		{FoodID: apple.ID, NutrientID: byKey["sugar"], AmountPer100g: 10.4},
		{FoodID: banana.ID, NutrientID: byKey["calories"], AmountPer100g: 89},
		{FoodID: banana.ID, NutrientID: byKey["protein"], AmountPer100g: 1.1},
		{FoodID: banana.ID, NutrientID: byKey["carbohydrates"], AmountPer100g: 22.8},
		{FoodID: oats.ID, NutrientID: byKey["calories"], AmountPer100g: 379},
		{FoodID: oats.ID, NutrientID: byKey["protein"], AmountPer100g: 13.2},
		{FoodID: oats.ID, NutrientID: byKey["fiber"], AmountPer100g: 10.1},
		{FoodID: yogurt.ID, NutrientID: byKey["calories"], AmountPer100g: 59},
		{FoodID: yogurt.ID, NutrientID: byKey["protein"], AmountPer100g: 10},
	}

	for _, fact := range facts {
		factCopy := fact
		if err := db.WithContext(ctx).Create(&factCopy).Error; err != nil {
			return err
		}
	}

	applog.Debug(ctx, "mock database seeded")
	return nil
}
