package models

import (
	"gorm.io/gorm"
)

// Preference is a durable key/value row used for small persisted state such
// as target overrides. Values are JSON blobs namespaced by a versioned key.
type Preference struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}
