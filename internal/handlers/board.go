package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"dietboard/internal/catalog"
	"dietboard/internal/engine"
	applog "dietboard/internal/log"
)

type boardEntryRequest struct {
	FoodID uint    `json:"food_id"`
	Grams  float64 `json:"grams"`
}

type boardGramsRequest struct {
	Grams float64 `json:"grams"`
}

type boardColumnRequest struct {
	NutrientID uint `json:"nutrient_id"`
}

type rowResponse struct {
	ID       string    `json:"id"`
	FoodID   uint      `json:"food_id"`
	FoodName string    `json:"food_name"`
	Grams    float64   `json:"grams"`
	Invalid  bool      `json:"invalid"`
	Values   []float64 `json:"values"`
	Cost     *float64  `json:"cost"`
}

type columnResponse struct {
	NutrientID  uint     `json:"nutrient_id"`
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name"`
	Unit        string   `json:"unit"`
	Total       float64  `json:"total"`
	Goal        *float64 `json:"goal"`
	Max         *float64 `json:"max"`
	OverMax     bool     `json:"over_max"`
}

type boardResponse struct {
	Rows       []rowResponse    `json:"rows"`
	Columns    []columnResponse `json:"columns"`
	TotalCost  *float64         `json:"total_cost"`
	Resolving  bool             `json:"resolving"`
	FetchError string           `json:"fetch_error,omitempty"`
}

// BoardState returns the current snapshot for the session's board.
func BoardState(w http.ResponseWriter, r *http.Request) {
	if !configured() {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, projectSnapshot(boardFor(r).Snapshot()))
}

// BoardEntryResource handles entry creation, grams edits, and removal for the
// session's board. Every mutation responds with the refreshed snapshot.
func BoardEntryResource(w http.ResponseWriter, r *http.Request) {
	if !configured() {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/board/entries")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		createBoardEntry(w, r)
		return
	}

	if _, err := uuid.Parse(path); err != nil {
		applog.Debug(r.Context(), "invalid board entry identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut:
		updateBoardEntry(w, r, path)
	case http.MethodDelete:
		deleteBoardEntry(w, r, path)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func createBoardEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload boardEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid board entry create payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	board := boardFor(r)
	if _, err := board.AddEntry(ctx, payload.FoodID, payload.Grams); err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidGrams):
			writeJSONError(w, http.StatusBadRequest, "grams must be a positive number")
		case errors.Is(err, catalog.ErrFoodNotFound):
			writeJSONError(w, http.StatusNotFound, "food not found")
		default:
			applog.Error(ctx, "failed to add board entry", "error", err, "foodID", payload.FoodID)
			writeJSONError(w, http.StatusInternalServerError, "unable to add entry")
		}
		return
	}

	writeJSON(w, http.StatusCreated, projectSnapshot(board.Snapshot()))
}

func updateBoardEntry(w http.ResponseWriter, r *http.Request, entryID string) {
	ctx := r.Context()
	var payload boardGramsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid board entry update payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	board := boardFor(r)
	if _, err := board.SetGrams(ctx, entryID, payload.Grams); err != nil {
		if errors.Is(err, engine.ErrEntryNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to update board entry", "error", err, "entryID", entryID)
		writeJSONError(w, http.StatusInternalServerError, "unable to update entry")
		return
	}

	writeJSON(w, http.StatusOK, projectSnapshot(board.Snapshot()))
}

func deleteBoardEntry(w http.ResponseWriter, r *http.Request, entryID string) {
	ctx := r.Context()
	board := boardFor(r)
	if err := board.RemoveEntry(ctx, entryID); err != nil {
		if errors.Is(err, engine.ErrEntryNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to remove board entry", "error", err, "entryID", entryID)
		writeJSONError(w, http.StatusInternalServerError, "unable to remove entry")
		return
	}

	writeJSON(w, http.StatusOK, projectSnapshot(board.Snapshot()))
}

// BoardColumnToggle adds or removes a nutrient column on the session's board.
func BoardColumnToggle(w http.ResponseWriter, r *http.Request) {
	if !configured() {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	var payload boardColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid column toggle payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	board := boardFor(r)
	if err := board.ToggleColumn(ctx, payload.NutrientID); err != nil {
		if errors.Is(err, engine.ErrUnknownNutrient) {
			writeJSONError(w, http.StatusNotFound, "nutrient not found")
			return
		}
		applog.Error(ctx, "failed to toggle column", "error", err, "nutrientID", payload.NutrientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to toggle column")
		return
	}

	writeJSON(w, http.StatusOK, projectSnapshot(board.Snapshot()))
}

func projectSnapshot(snapshot engine.Snapshot) boardResponse {
	response := boardResponse{
		Rows:       make([]rowResponse, 0, len(snapshot.Rows)),
		Columns:    make([]columnResponse, 0, len(snapshot.Columns)),
		TotalCost:  snapshot.TotalCost,
		Resolving:  snapshot.Resolving,
		FetchError: snapshot.FetchError,
	}

	for _, row := range snapshot.Rows {
		response.Rows = append(response.Rows, rowResponse{
			ID:       row.EntryID,
			FoodID:   row.FoodID,
			FoodName: row.FoodName,
			Grams:    row.Grams,
			Invalid:  row.Invalid,
			Values:   row.Values,
			Cost:     row.Cost,
		})
	}

	for _, column := range snapshot.Columns {
		response.Columns = append(response.Columns, columnResponse{
			NutrientID:  column.NutrientID,
			Key:         column.Key,
			DisplayName: column.DisplayName,
			Unit:        column.Unit,
			Total:       column.Total,
			Goal:        column.Goal,
			Max:         column.Max,
			OverMax:     column.OverMax,
		})
	}

	return response
}
