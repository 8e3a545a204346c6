package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	applog "dietboard/internal/log"
	"dietboard/internal/targets"
)

type targetUpdateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type targetResponse struct {
	NutrientID uint     `json:"nutrient_id"`
	Goal       *float64 `json:"goal"`
	Max        *float64 `json:"max"`
}

// TargetResource updates a single target field or resets the whole map to
// nutrient defaults.
func TargetResource(w http.ResponseWriter, r *http.Request) {
	if !configured() {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/targets")
	path = strings.Trim(path, "/")

	if path == "reset" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resetTargets(w, r)
		return
	}

	idValue, err := strconv.ParseUint(path, 10, 64)
	if err != nil {
		applog.Debug(r.Context(), "invalid target identifier", "identifier", path, "error", err)
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	updateTarget(w, r, uint(idValue))
}

func updateTarget(w http.ResponseWriter, r *http.Request, nutrientID uint) {
	ctx := r.Context()
	var payload targetUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid target update payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	field, err := targets.ParseField(payload.Field)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "field must be goal or max")
		return
	}

	target, err := targetStore.Set(ctx, nutrientID, field, payload.Value)
	if err != nil {
		if errors.Is(err, targets.ErrUnknownNutrient) {
			writeJSONError(w, http.StatusNotFound, "nutrient not found")
			return
		}
		applog.Error(ctx, "failed to update target", "error", err, "nutrientID", nutrientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to save target")
		return
	}

	writeJSON(w, http.StatusOK, targetResponse{
		NutrientID: nutrientID,
		Goal:       target.Goal,
		Max:        target.Max,
	})
}

func resetTargets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := targetStore.ResetToDefaults(ctx); err != nil {
		applog.Error(ctx, "failed to reset targets", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to reset targets")
		return
	}

	all := targetStore.All()
	responses := make([]targetResponse, 0, len(all))
	for _, nutrient := range nutrients.All() {
		target := all[nutrient.ID]
		responses = append(responses, targetResponse{
			NutrientID: nutrient.ID,
			Goal:       target.Goal,
			Max:        target.Max,
		})
	}
	writeJSON(w, http.StatusOK, responses)
}
