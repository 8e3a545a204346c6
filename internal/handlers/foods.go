package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"dietboard/models"

	applog "dietboard/internal/log"
)

type nutrientResponse struct {
	ID          uint     `json:"id"`
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name"`
	Unit        string   `json:"unit"`
	InfoText    string   `json:"info_text,omitempty"`
	DefaultGoal *float64 `json:"default_goal"`
	DefaultMax  *float64 `json:"default_max"`
	Goal        *float64 `json:"goal"`
	Max         *float64 `json:"max"`
}

type foodResponse struct {
	ID           uint     `json:"id"`
	Name         string   `json:"name"`
	PricePer100g *float64 `json:"price_per_100g"`
}

// Nutrients lists the nutrient catalog together with the current targets.
func Nutrients(w http.ResponseWriter, r *http.Request) {
	if !configured() {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	all := nutrients.All()
	responses := make([]nutrientResponse, 0, len(all))
	for _, nutrient := range all {
		target := targetStore.Get(nutrient.ID)
		responses = append(responses, nutrientResponse{
			ID:          nutrient.ID,
			Key:         nutrient.Key,
			DisplayName: nutrient.DisplayName,
			Unit:        nutrient.Unit,
			InfoText:    nutrient.InfoText,
			DefaultGoal: nutrient.DefaultGoal,
			DefaultMax:  nutrient.DefaultMax,
			Goal:        target.Goal,
			Max:         target.Max,
		})
	}

	writeJSON(w, http.StatusOK, responses)
}

// FoodSearch matches foods against a folded-name query. A blank query returns
// an empty list without touching the database.
func FoodSearch(w http.ResponseWriter, r *http.Request) {
	if !configured() {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, []foodResponse{})
		return
	}

	limit := searchLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	results, err := foods.Search(ctx, query, limit)
	if err != nil {
		applog.Error(ctx, "food search failed", "error", err, "query", query)
		writeJSONError(w, http.StatusInternalServerError, "unable to search foods")
		return
	}

	responses := make([]foodResponse, 0, len(results))
	for _, food := range results {
		responses = append(responses, projectFood(food))
	}
	writeJSON(w, http.StatusOK, responses)
}

func projectFood(food models.Food) foodResponse {
	return foodResponse{
		ID:           food.ID,
		Name:         food.Name,
		PricePer100g: food.PricePer100g,
	}
}
