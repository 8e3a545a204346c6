package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	applog "dietboard/internal/log"
	"dietboard/models"
)

// Fetcher is the remote amount-fact source. Requests are scoped by explicit
// id sets and return only the rows that exist.
type Fetcher interface {
	FetchAmounts(ctx context.Context, foodIDs, nutrientIDs []uint) ([]models.FoodNutrient, error)
}

// Interest is the set of (food, nutrient) pairs whose per-100g amounts are
// currently needed to render rows and totals.
type Interest struct {
	FoodIDs     []uint
	NutrientIDs []uint
}

// Empty reports whether either dimension of the interest set is empty.
func (i Interest) Empty() bool {
	return len(i.FoodIDs) == 0 || len(i.NutrientIDs) == 0
}

func (i Interest) key() string {
	return idSetKey(i.FoodIDs) + "|" + idSetKey(i.NutrientIDs)
}

func idSetKey(ids []uint) string {
	sorted := make([]uint, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })
	parts := make([]string, len(sorted))
	for idx, id := range sorted {
		parts[idx] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// Resolver maintains the amount-fact cache backing aggregation. Fetches run
// asynchronously; a monotonically increasing generation counter ties each
// fetch to the interest snapshot that issued it, and results from a superseded
// generation are discarded rather than applied over newer state.
type Resolver struct {
	mu      sync.Mutex
	cond    *sync.Cond
	fetcher Fetcher

	// amounts holds real facts only; covered marks every requested pair so
	// a missing fact (zero) stays distinguishable from a pair never fetched.
	amounts map[uint]map[uint]float64
	covered map[uint]map[uint]bool

	gen         uint64
	pendingKey  string
	outstanding int
	lastErr     error
}

// NewResolver builds a Resolver on top of the given fetcher.
func NewResolver(fetcher Fetcher) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		amounts: make(map[uint]map[uint]float64),
		covered: make(map[uint]map[uint]bool),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Amount returns the cached per-100g amount for the pair, zero when the fact
// is missing or not yet resolved.
func (r *Resolver) Amount(foodID, nutrientID uint) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.amounts[foodID][nutrientID]
}

// Lookup reports the cached amount together with whether a real fact exists,
// keeping "missing fact" distinguishable from "fact is zero".
func (r *Resolver) Lookup(foodID, nutrientID uint) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byNutrient, ok := r.amounts[foodID]
	if !ok {
		return 0, false
	}
	amount, ok := byNutrient[nutrientID]
	return amount, ok
}

// Err returns the error from the most recent applied fetch attempt, nil after
// a successful one. The cache preceding a failed fetch stays intact.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Resolving reports whether a fetch is currently outstanding.
func (r *Resolver) Resolving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstanding > 0
}

// Wait blocks until no fetch is outstanding.
func (r *Resolver) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.outstanding > 0 {
		r.cond.Wait()
	}
}

// Recompute reconciles the cache with the interest set. An empty interest
// clears the cache without fetching. Otherwise the pairs not yet covered are
// fetched in a single batch; re-issuing is skipped while an identical
// interest is already in flight.
func (r *Resolver) Recompute(ctx context.Context, interest Interest) {
	r.mu.Lock()

	if interest.Empty() {
		r.amounts = make(map[uint]map[uint]float64)
		r.covered = make(map[uint]map[uint]bool)
		r.gen++ // invalidate anything in flight
		r.pendingKey = ""
		r.mu.Unlock()
		return
	}

	missingFoods, missingNutrients := r.missingLocked(interest)
	if len(missingFoods) == 0 || len(missingNutrients) == 0 {
		r.mu.Unlock()
		return
	}

	key := interest.key()
	if r.outstanding > 0 && r.pendingKey == key {
		r.mu.Unlock()
		return
	}

	r.gen++
	gen := r.gen
	r.pendingKey = key
	r.outstanding++
	r.mu.Unlock()

	// The fetch must outlive the triggering request.
	go r.fetch(context.WithoutCancel(ctx), gen, missingFoods, missingNutrients)
}

// missingLocked returns the id sets scoping the uncovered portion of the
// interest. Caller holds the lock.
func (r *Resolver) missingLocked(interest Interest) ([]uint, []uint) {
	foodSet := make(map[uint]bool)
	nutrientSet := make(map[uint]bool)
	for _, foodID := range interest.FoodIDs {
		for _, nutrientID := range interest.NutrientIDs {
			if !r.covered[foodID][nutrientID] {
				foodSet[foodID] = true
				nutrientSet[nutrientID] = true
			}
		}
	}

	foods := make([]uint, 0, len(foodSet))
	for id := range foodSet {
		foods = append(foods, id)
	}
	nutrients := make([]uint, 0, len(nutrientSet))
	for id := range nutrientSet {
		nutrients = append(nutrients, id)
	}
	sort.Slice(foods, func(a, b int) bool { return foods[a] < foods[b] })
	sort.Slice(nutrients, func(a, b int) bool { return nutrients[a] < nutrients[b] })
	return foods, nutrients
}

func (r *Resolver) fetch(ctx context.Context, gen uint64, foodIDs, nutrientIDs []uint) {
	facts, err := r.fetcher.FetchAmounts(ctx, foodIDs, nutrientIDs)

	r.mu.Lock()
	defer func() {
		r.outstanding--
		r.cond.Broadcast()
		r.mu.Unlock()
	}()

	if gen != r.gen {
		applog.Debug(ctx, "discarding superseded amount fetch", "generation", gen, "current", r.gen)
		return
	}
	r.pendingKey = ""

	if err != nil {
		applog.Error(ctx, "amount fetch failed", "error", err, "foods", len(foodIDs), "nutrients", len(nutrientIDs))
		r.lastErr = err
		return
	}
	r.lastErr = nil

	for _, foodID := range foodIDs {
		if r.covered[foodID] == nil {
			r.covered[foodID] = make(map[uint]bool, len(nutrientIDs))
		}
		for _, nutrientID := range nutrientIDs {
			r.covered[foodID][nutrientID] = true
		}
	}
	for _, fact := range facts {
		if r.amounts[fact.FoodID] == nil {
			r.amounts[fact.FoodID] = make(map[uint]float64)
		}
		r.amounts[fact.FoodID][fact.NutrientID] = fact.AmountPer100g
	}
	applog.Debug(ctx, "amount cache updated", "facts", len(facts), "generation", gen)
}
