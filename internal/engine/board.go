package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dietboard/internal/catalog"
	applog "dietboard/internal/log"
	"dietboard/internal/targets"
	"dietboard/models"
)

// ErrUnknownNutrient reports a nutrient id outside the loaded catalog.
var ErrUnknownNutrient = errors.New("engine: unknown nutrient")

// maxColumns caps the visible column count.
const maxColumns = 6

// preferredColumnKeys drives the initial column selection, in display order.
var preferredColumnKeys = []string{"calories", "protein", "carbohydrates", "fat", "sugar", "sodium"}

// FoodResolver validates food references at entry creation time.
type FoodResolver interface {
	Resolve(ctx context.Context, id uint) (models.Food, error)
}

// DefaultColumns returns the initial column selection: the preferred keys
// present in the catalog in preferred order, or the first catalog nutrients
// by display name when none match, capped at maxColumns.
func DefaultColumns(nutrients *catalog.NutrientCatalog) []uint {
	columns := make([]uint, 0, maxColumns)
	for _, key := range preferredColumnKeys {
		if len(columns) == maxColumns {
			return columns
		}
		if nutrient, ok := nutrients.ByKey(key); ok {
			columns = append(columns, nutrient.ID)
		}
	}
	if len(columns) > 0 {
		return columns
	}
	for _, nutrient := range nutrients.All() {
		if len(columns) == maxColumns {
			break
		}
		columns = append(columns, nutrient.ID)
	}
	return columns
}

// Board owns one diet: the entry ledger, the visible column selection, and
// the resolver cache feeding aggregation. Every mutation funnels through a
// Board method under one lock and re-reconciles the resolver with the new
// interest set.
type Board struct {
	mu        sync.Mutex
	nutrients *catalog.NutrientCatalog
	foods     FoodResolver
	resolver  *Resolver
	targets   *targets.Store
	ledger    Ledger
	columns   []uint
}

// NewBoard builds a Board with the default column selection.
func NewBoard(nutrients *catalog.NutrientCatalog, foods FoodResolver, fetcher Fetcher, targetStore *targets.Store) *Board {
	return &Board{
		nutrients: nutrients,
		foods:     foods,
		resolver:  NewResolver(fetcher),
		targets:   targetStore,
		columns:   DefaultColumns(nutrients),
	}
}

// AddEntry validates the food reference and grams, appends an entry, and
// kicks off amount resolution for any newly needed facts.
func (b *Board) AddEntry(ctx context.Context, foodID uint, grams float64) (Entry, error) {
	if !validGrams(grams) {
		return Entry{}, ErrInvalidGrams
	}

	food, err := b.foods.Resolve(ctx, foodID)
	if err != nil {
		return Entry{}, fmt.Errorf("add entry: %w", err)
	}

	b.mu.Lock()
	entry, err := b.ledger.Add(food, grams)
	if err != nil {
		b.mu.Unlock()
		return Entry{}, err
	}
	interest := b.interestLocked()
	b.mu.Unlock()

	applog.Debug(ctx, "entry added", "entryID", entry.ID, "foodID", foodID, "grams", grams)
	b.resolver.Recompute(ctx, interest)
	return entry, nil
}

// SetGrams edits an entry in place. Invalid values are stored as a transient
// flagged state rather than rejected.
func (b *Board) SetGrams(ctx context.Context, id string, grams float64) (Entry, error) {
	b.mu.Lock()
	entry, err := b.ledger.SetGrams(id, grams)
	if err != nil {
		b.mu.Unlock()
		return Entry{}, err
	}
	interest := b.interestLocked()
	b.mu.Unlock()

	b.resolver.Recompute(ctx, interest)
	return entry, nil
}

// RemoveEntry deletes an entry.
func (b *Board) RemoveEntry(ctx context.Context, id string) error {
	b.mu.Lock()
	if err := b.ledger.Remove(id); err != nil {
		b.mu.Unlock()
		return err
	}
	interest := b.interestLocked()
	b.mu.Unlock()

	applog.Debug(ctx, "entry removed", "entryID", id)
	b.resolver.Recompute(ctx, interest)
	return nil
}

// ToggleColumn adds or removes a nutrient from the visible selection.
// Removing a column hides it from rows and totals immediately but keeps its
// cached facts for a later re-add.
func (b *Board) ToggleColumn(ctx context.Context, nutrientID uint) error {
	if _, ok := b.nutrients.ByID(nutrientID); !ok {
		return ErrUnknownNutrient
	}

	b.mu.Lock()
	removed := false
	for i, id := range b.columns {
		if id == nutrientID {
			b.columns = append(b.columns[:i], b.columns[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		b.columns = append(b.columns, nutrientID)
	}
	interest := b.interestLocked()
	b.mu.Unlock()

	applog.Debug(ctx, "column toggled", "nutrientID", nutrientID, "removed", removed)
	b.resolver.Recompute(ctx, interest)
	return nil
}

// Columns returns the current selection in display order.
func (b *Board) Columns() []uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint, len(b.columns))
	copy(out, b.columns)
	return out
}

// Wait blocks until no amount fetch is outstanding. Intended for tests and
// shutdown paths.
func (b *Board) Wait() {
	b.resolver.Wait()
}

func (b *Board) interestLocked() Interest {
	columns := make([]uint, len(b.columns))
	copy(columns, b.columns)
	return Interest{
		FoodIDs:     b.ledger.FoodIDs(),
		NutrientIDs: columns,
	}
}

// ColumnView is one nutrient column with its display-rounded total and the
// target evaluation for the unrounded value.
type ColumnView struct {
	NutrientID  uint
	Key         string
	DisplayName string
	Unit        string
	Total       float64
	Goal        *float64
	Max         *float64
	OverMax     bool
}

// RowView is one ledger entry with its display-rounded scaled values aligned
// with the snapshot's column order.
type RowView struct {
	EntryID  string
	FoodID   uint
	FoodName string
	Grams    float64
	Invalid  bool
	Values   []float64
	Cost     *float64
}

// Snapshot is the externally visible board state: rows, totals, warning
// flags, and the resolver's loading/error state.
type Snapshot struct {
	Rows       []RowView
	Columns    []ColumnView
	TotalCost  *float64
	Resolving  bool
	FetchError string
}

// Snapshot aggregates the current ledger against the resolved facts and
// evaluates totals against targets. Warning flags use full-precision totals;
// displayed values are rounded to two digits.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	entries := b.ledger.Entries()
	columns := make([]uint, len(b.columns))
	copy(columns, b.columns)
	b.mu.Unlock()

	result := Aggregate(entries, b.resolver, columns)

	snapshot := Snapshot{
		Rows:      make([]RowView, 0, len(result.Rows)),
		Columns:   make([]ColumnView, 0, len(columns)),
		Resolving: b.resolver.Resolving(),
	}
	if err := b.resolver.Err(); err != nil {
		snapshot.FetchError = err.Error()
	}

	for _, row := range result.Rows {
		view := RowView{
			EntryID:  row.Entry.ID,
			FoodID:   row.Entry.FoodID,
			FoodName: row.Entry.FoodName,
			Grams:    row.Entry.Grams,
			Invalid:  row.Entry.Invalid,
			Values:   make([]float64, len(columns)),
		}
		for i, nutrientID := range columns {
			view.Values[i] = Round2(row.Values[nutrientID])
		}
		if row.Cost != nil {
			cost := Round2(*row.Cost)
			view.Cost = &cost
		}
		snapshot.Rows = append(snapshot.Rows, view)
	}

	for _, nutrientID := range columns {
		nutrient, ok := b.nutrients.ByID(nutrientID)
		if !ok {
			continue
		}
		total := result.Totals[nutrientID]
		target := b.targets.Get(nutrientID)
		snapshot.Columns = append(snapshot.Columns, ColumnView{
			NutrientID:  nutrientID,
			Key:         nutrient.Key,
			DisplayName: nutrient.DisplayName,
			Unit:        nutrient.Unit,
			Total:       Round2(total),
			Goal:        target.Goal,
			Max:         target.Max,
			OverMax:     b.targets.IsOverMax(nutrientID, total),
		})
	}

	if result.TotalCost != nil {
		cost := Round2(*result.TotalCost)
		snapshot.TotalCost = &cost
	}
	return snapshot
}
