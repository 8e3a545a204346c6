package engine

import (
	"errors"
	"math"

	"github.com/google/uuid"

	"dietboard/models"
)

var (
	// ErrInvalidGrams reports a grams value that cannot create an entry.
	ErrInvalidGrams = errors.New("engine: grams must be a positive finite number")
	// ErrEntryNotFound reports an unknown entry id.
	ErrEntryNotFound = errors.New("engine: entry not found")
)

// Entry is one diet line: a resolved food reference plus a gram quantity.
// The id is generated at creation and never reused. Invalid marks an entry
// whose grams were edited to a non-usable value; it stays visible but
// contributes zero to totals until corrected.
type Entry struct {
	ID           string
	FoodID       uint
	FoodName     string
	PricePer100g *float64
	Grams        float64
	Invalid      bool
}

// Ledger is the ordered list of diet entries, the unit of user edits.
type Ledger struct {
	entries []Entry
}

func validGrams(grams float64) bool {
	return grams > 0 && !math.IsInf(grams, 0) && !math.IsNaN(grams)
}

// Add appends an entry for the given food. The food must already be resolved
// by the caller; grams must be positive and finite.
func (l *Ledger) Add(food models.Food, grams float64) (Entry, error) {
	if !validGrams(grams) {
		return Entry{}, ErrInvalidGrams
	}

	entry := Entry{
		ID:           uuid.NewString(),
		FoodID:       food.ID,
		FoodName:     food.Name,
		PricePer100g: food.PricePer100g,
		Grams:        grams,
	}
	l.entries = append(l.entries, entry)
	return entry, nil
}

// SetGrams updates an entry in place. A non-positive or non-finite value is
// stored as a transient invalid state rather than rejected, matching a field
// being cleared mid-edit; non-finite input is coerced to zero.
func (l *Ledger) SetGrams(id string, grams float64) (Entry, error) {
	for i := range l.entries {
		if l.entries[i].ID != id {
			continue
		}
		if validGrams(grams) {
			l.entries[i].Grams = grams
			l.entries[i].Invalid = false
		} else {
			if math.IsInf(grams, 0) || math.IsNaN(grams) {
				grams = 0
			}
			l.entries[i].Grams = grams
			l.entries[i].Invalid = true
		}
		return l.entries[i], nil
	}
	return Entry{}, ErrEntryNotFound
}

// Remove deletes the entry with the given id.
func (l *Ledger) Remove(id string) error {
	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

// Entries returns a copy of the current entries in insertion order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// FoodIDs returns the distinct food ids referenced by the ledger, in first
// appearance order.
func (l *Ledger) FoodIDs() []uint {
	seen := make(map[uint]bool, len(l.entries))
	ids := make([]uint, 0, len(l.entries))
	for _, entry := range l.entries {
		if seen[entry.FoodID] {
			continue
		}
		seen[entry.FoodID] = true
		ids = append(ids, entry.FoodID)
	}
	return ids
}
