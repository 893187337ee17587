package api

import (
	"encoding/json"
	"net/http"

	"github.com/warp/workforce-engine/factory"
)

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the preset scenarios and the one currently loaded.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	presets := factory.Scenarios()
	resp := ScenariosResponse{
		Current:   h.Sim.Scenario(),
		Scenarios: make([]factory.Summary, len(presets)),
	}
	for i, sc := range presets {
		resp.Scenarios[i] = sc.Summary()
	}
	writeJSON(w, http.StatusOK, resp)
}

// LoadScenario wipes the store and starts the given scenario at tick 0.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	sc, ok := factory.Lookup(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Scenario not found: "+req.ScenarioID, nil)
		return
	}

	if err := h.Sim.Load(r.Context(), sc, req.Seed); err != nil {
		h.writeDomainError(w, err)
		return
	}
	state, err := h.Sim.State()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.log.Info("scenario loaded via API", "scenario", sc.ID)
	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		Scenario: sc.Summary(),
		Seed:     state.Seed,
		Pending:  len(h.Sim.Pending()),
	})
}
