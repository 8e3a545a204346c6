package models

import (
	"gorm.io/gorm"
)

// Food is a catalog item that can be added to a diet. Names may repeat across
// ids; identity is the primary key. FoldedName is the search key derived from
// Name and kept in sync by the importer and seeders.
type Food struct {
	gorm.Model
	Name         string   `gorm:"not null" json:"name"`
	FoldedName   string   `gorm:"index" json:"-"`
	PricePer100g *float64 `json:"price_per_100g,omitempty"`
}
