package models

import (
	"gorm.io/gorm"
)

// Nutrient describes one column the board can display. Records are loaded
// once per process and treated as immutable afterwards.
type Nutrient struct {
	gorm.Model
	Key         string   `gorm:"uniqueIndex;not null" json:"key"`
	DisplayName string   `gorm:"not null" json:"display_name"`
	Unit        string   `gorm:"not null" json:"unit"`
	InfoText    string   `gorm:"type:text" json:"info_text"`
	DefaultGoal *float64 `json:"default_goal,omitempty"`
	DefaultMax  *float64 `json:"default_max,omitempty"`
}
