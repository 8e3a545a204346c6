package models

import (
	"gorm.io/gorm"
)

// FoodNutrient is one amount fact: how much of a nutrient is present in 100g
// of a food. The table is sparse; a missing row means the amount is unknown
// and aggregates as zero.
type FoodNutrient struct {
	gorm.Model
	FoodID        uint    `gorm:"not null;uniqueIndex:idx_food_nutrient" json:"food_id"`
	NutrientID    uint    `gorm:"not null;uniqueIndex:idx_food_nutrient" json:"nutrient_id"`
	AmountPer100g float64 `gorm:"not null" json:"amount_per_100g"`
}
