package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dietboard/internal/catalog"
	"dietboard/internal/engine"
	"dietboard/internal/targets"
	"dietboard/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

func withHandlerTestState(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	if err := db.AutoMigrate(&models.Nutrient{}, &models.Food{}, &models.FoodNutrient{}, &models.Preference{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	seedHandlerFixtures(t, db)

	ctx := context.Background()
	nutrientCatalog, err := catalog.LoadNutrients(ctx, db)
	if err != nil {
		t.Fatalf("failed to load nutrient catalog: %v", err)
	}
	foodCatalog := catalog.NewFoodCatalog(db)
	store := targets.NewStore(ctx, nutrientCatalog, targets.NewPreferenceRepository(db))

	originals := struct {
		sm          *scs.SessionManager
		db          *gorm.DB
		nutrients   *catalog.NutrientCatalog
		foods       *catalog.FoodCatalog
		store       *targets.Store
		searchLimit int
	}{sessionManager, database, nutrients, foods, targetStore, searchLimit}

	Configure(scs.New(), db, nutrientCatalog, foodCatalog, store, 20, time.Hour)

	t.Cleanup(func() {
		Configure(originals.sm, originals.db, originals.nutrients, originals.foods, originals.store, originals.searchLimit, time.Hour)
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

func seedHandlerFixtures(t *testing.T, db *gorm.DB) {
	t.Helper()

	seedNutrients := []*models.Nutrient{
		{Key: "calories", DisplayName: "Calories", Unit: "kcal", DefaultGoal: floatPtr(2000), DefaultMax: floatPtr(2500)},
		{Key: "protein", DisplayName: "Protein", Unit: "g", DefaultGoal: floatPtr(50)},
		{Key: "fiber", DisplayName: "Fiber", Unit: "g"},
	}
	for _, nutrient := range seedNutrients {
		if err := db.Create(nutrient).Error; err != nil {
			t.Fatalf("failed to seed nutrient: %v", err)
		}
	}

	apple := models.Food{Name: "Apple", FoldedName: catalog.FoldName("Apple"), PricePer100g: floatPtr(0.40)}
	banana := models.Food{Name: "Banana", FoldedName: catalog.FoldName("Banana")}
	for _, food := range []*models.Food{&apple, &banana} {
		if err := db.Create(food).Error; err != nil {
			t.Fatalf("failed to seed food: %v", err)
		}
	}

	facts := []models.FoodNutrient{
		{FoodID: apple.ID, NutrientID: seedNutrients[0].ID, AmountPer100g: 52},
		{FoodID: apple.ID, NutrientID: seedNutrients[1].ID, AmountPer100g: 0.3},
		{FoodID: banana.ID, NutrientID: seedNutrients[0].ID, AmountPer100g: 89},
	}
	for _, fact := range facts {
		factCopy := fact
		if err := db.Create(&factCopy).Error; err != nil {
			t.Fatalf("failed to seed food nutrient: %v", err)
		}
	}
}

func TestBoardRegistryEvictsIdleBoards(t *testing.T) {
	withHandlerTestState(t)

	registry := newBoardRegistry(time.Hour)
	defer registry.close()

	newBoard := func() *engine.Board {
		return engine.NewBoard(nutrients, foods, foods, targetStore)
	}

	first := registry.get("session-board", newBoard)
	if first == nil {
		t.Fatal("expected registry to create a board on first access")
	}

	registry.evictStale(time.Now().Add(30 * time.Minute))
	if got := registry.get("session-board", newBoard); got != first {
		t.Fatal("expected board inside the TTL to survive a sweep")
	}

	// The access above refreshed lastSeen, so only a sweep past the full TTL
	// from now may drop the board.
	registry.evictStale(time.Now().Add(2 * time.Hour))
	registry.mu.Lock()
	_, retained := registry.boards["session-board"]
	registry.mu.Unlock()
	if retained {
		t.Fatal("expected board idle past the TTL to be evicted")
	}

	if got := registry.get("session-board", newBoard); got == first {
		t.Fatal("expected a fresh board after eviction")
	}
}

// sessionRequest loads a session context onto the request so session-scoped
// handlers can read and write board state.
func sessionRequest(t *testing.T, req *http.Request) *http.Request {
	t.Helper()
	ctx, err := sessionManager.Load(req.Context(), "")
	if err != nil {
		t.Fatalf("failed to load session context: %v", err)
	}
	return req.WithContext(ctx)
}
