package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	applog "dietboard/internal/log"
	"dietboard/models"
)

// ErrFoodNotFound reports a food id that does not exist in the catalog.
var ErrFoodNotFound = errors.New("catalog: food not found")

// NutrientCatalog is the read-only nutrient index, loaded once per process.
type NutrientCatalog struct {
	byID  map[uint]models.Nutrient
	byKey map[string]models.Nutrient
	all   []models.Nutrient
}

// LoadNutrients reads the full nutrient table. A load failure yields no
// partial catalog; callers must treat the error as fatal for startup.
func LoadNutrients(ctx context.Context, db *gorm.DB) (*NutrientCatalog, error) {
	if db == nil {
		return nil, fmt.Errorf("load nutrients: %w", gorm.ErrInvalidDB)
	}

	var nutrients []models.Nutrient
	if err := db.WithContext(ctx).Find(&nutrients).Error; err != nil {
		return nil, fmt.Errorf("load nutrients: %w", err)
	}

	applog.Debug(ctx, "nutrient catalog loaded", "count", len(nutrients))
	return NewNutrientCatalog(nutrients), nil
}

// NewNutrientCatalog indexes an already loaded nutrient list, ordering it by
// display name.
func NewNutrientCatalog(nutrients []models.Nutrient) *NutrientCatalog {
	sorted := make([]models.Nutrient, len(nutrients))
	copy(sorted, nutrients)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DisplayName < sorted[j].DisplayName
	})

	c := &NutrientCatalog{
		byID:  make(map[uint]models.Nutrient, len(sorted)),
		byKey: make(map[string]models.Nutrient, len(sorted)),
		all:   sorted,
	}
	for _, nutrient := range sorted {
		c.byID[nutrient.ID] = nutrient
		c.byKey[nutrient.Key] = nutrient
	}
	return c
}

// ByID returns the nutrient with the given id.
func (c *NutrientCatalog) ByID(id uint) (models.Nutrient, bool) {
	nutrient, ok := c.byID[id]
	return nutrient, ok
}

// ByKey returns the nutrient with the given slug key.
func (c *NutrientCatalog) ByKey(key string) (models.Nutrient, bool) {
	nutrient, ok := c.byKey[key]
	return nutrient, ok
}

// All returns every nutrient ordered by display name.
func (c *NutrientCatalog) All() []models.Nutrient {
	return c.all
}

// Len returns the number of loaded nutrients.
func (c *NutrientCatalog) Len() int {
	return len(c.all)
}

// FoodCatalog resolves food ids and serves folded-name searches. It also
// implements the batched amount-fact fetch consumed by the engine resolver.
type FoodCatalog struct {
	db *gorm.DB
}

// NewFoodCatalog wraps the database handle behind the catalog read interface.
func NewFoodCatalog(db *gorm.DB) *FoodCatalog {
	return &FoodCatalog{db: db}
}

// Resolve returns the food with the given id, or ErrFoodNotFound.
func (c *FoodCatalog) Resolve(ctx context.Context, id uint) (models.Food, error) {
	if c.db == nil {
		return models.Food{}, gorm.ErrInvalidDB
	}

	var food models.Food
	if err := c.db.WithContext(ctx).First(&food, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Food{}, ErrFoodNotFound
		}
		return models.Food{}, fmt.Errorf("resolve food %d: %w", id, err)
	}
	return food, nil
}

// Search matches foods whose folded name contains every folded query token.
// Results are ordered by name and capped at limit.
func (c *FoodCatalog) Search(ctx context.Context, query string, limit int) ([]models.Food, error) {
	if c.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	if limit <= 0 {
		limit = 25
	}

	folded := FoldName(query)
	if folded == "" {
		return []models.Food{}, nil
	}

	tx := c.db.WithContext(ctx).Model(&models.Food{})
	for _, token := range strings.Fields(folded) {
		tx = tx.Where("folded_name LIKE ?", "%"+token+"%")
	}

	var foods []models.Food
	if err := tx.Order("name asc").Limit(limit).Find(&foods).Error; err != nil {
		return nil, fmt.Errorf("search foods %q: %w", query, err)
	}
	return foods, nil
}

// FetchAmounts returns the amount facts that exist for the cross product of
// the given id sets. Missing pairs simply produce no row.
func (c *FoodCatalog) FetchAmounts(ctx context.Context, foodIDs, nutrientIDs []uint) ([]models.FoodNutrient, error) {
	if c.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	if len(foodIDs) == 0 || len(nutrientIDs) == 0 {
		return []models.FoodNutrient{}, nil
	}

	var facts []models.FoodNutrient
	err := c.db.WithContext(ctx).
		Where("food_id IN ?", foodIDs).
		Where("nutrient_id IN ?", nutrientIDs).
		Find(&facts).Error
	if err != nil {
		return nil, fmt.Errorf("fetch amounts: %w", err)
	}
	return facts, nil
}
