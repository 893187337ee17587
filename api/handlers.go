/*
handlers.go - HTTP API handlers for the workforce simulation

PURPOSE:
  Exposes the running simulation over REST. Handlers parse the request,
  call into Simulation, and serialize the result. No domain logic lives
  here.

ENDPOINTS:
  State:
    GET    /api/state                  Full current WorkforceState
    GET    /api/state/digest?tick=     SHA-256 digest (current or stored tick)
    GET    /api/kpis?limit=            Most recent KPI snapshots
    GET    /api/warnings?limit=&severity=
    GET    /api/payroll                Current day, history, ledger

  Roster and work:
    GET    /api/employees              Roster sorted by id
    GET    /api/employees/{id}
    GET    /api/tasks?status=          Task queue, optionally filtered
    GET    /api/market                 Scan counters and candidates

  Ticks:
    GET    /api/intents                Intents queued for the next tick
    POST   /api/intents                Queue intents (schema-validated)
    POST   /api/ticks                  Step and commit N ticks
    GET    /api/events?from=&topic=    Committed telemetry from the store

ERROR HANDLING:
  Errors are returned as JSON with an HTTP status derived from the error:
  - 400: Malformed body, invalid intent
  - 404: Unknown employee, task, candidate or snapshot
  - 409: No scenario loaded, duplicate idempotency key
  - 500: Invariant violations and store failures

SEE ALSO:
  - simulation.go: The state these handlers read and advance
  - scenarios.go: Scenario listing and loading
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/workforce-engine/workforce"
)

// MaxTicksPerRequest bounds POST /api/ticks.
const MaxTicksPerRequest = 24 * 30

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Sim *Simulation

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Telemetry serves GET /ws/telemetry when set.
	Telemetry http.Handler

	log *slog.Logger
}

func NewHandler(sim *Simulation, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Sim: sim, log: logger.With("component", "api")}
}

// =============================================================================
// STATE HANDLERS
// =============================================================================

// GetState returns the full current state.
// GET /api/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.Sim.State()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetDigest returns the digest of the current state, or of a committed
// tick when ?tick= is given.
// GET /api/state/digest
func (h *Handler) GetDigest(w http.ResponseWriter, r *http.Request) {
	var (
		state workforce.WorkforceState
		err   error
	)
	if raw := r.URL.Query().Get("tick"); raw != "" {
		tick, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid tick", perr)
			return
		}
		state, err = h.Sim.Store().LoadSnapshot(r.Context(), tick)
	} else {
		state, err = h.Sim.State()
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	digest, err := workforce.Digest(state)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute digest", err)
		return
	}
	writeJSON(w, http.StatusOK, DigestResponse{Tick: state.Tick, Digest: digest})
}

// GetKPIs returns the most recent KPI snapshots, oldest first.
// GET /api/kpis?limit=24
func (h *Handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 24)
	if !ok {
		return
	}
	state, err := h.Sim.State()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	kpis := tail(state.KPIs, limit)
	if kpis == nil {
		kpis = []workforce.KpiSnapshot{}
	}
	writeJSON(w, http.StatusOK, KPIsResponse{Tick: state.Tick, KPIs: kpis})
}

// GetWarnings returns the most recent warnings, optionally filtered by
// severity.
// GET /api/warnings?limit=50&severity=critical
func (h *Handler) GetWarnings(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 50)
	if !ok {
		return
	}
	severity := workforce.Severity(r.URL.Query().Get("severity"))
	switch severity {
	case "", workforce.SeverityInfo, workforce.SeverityWarning, workforce.SeverityCritical:
	default:
		writeError(w, http.StatusBadRequest, "Invalid severity", nil)
		return
	}

	state, err := h.Sim.State()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	warnings := make([]workforce.Warning, 0, len(state.Warnings))
	for _, wr := range state.Warnings {
		if severity == "" || wr.Severity == severity {
			warnings = append(warnings, wr)
		}
	}
	writeJSON(w, http.StatusOK, WarningsResponse{Tick: state.Tick, Warnings: tail(warnings, limit)})
}

// GetPayroll returns the open payroll day, closed days and the ledger.
// GET /api/payroll
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	state, err := h.Sim.State()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	totals := make(map[workforce.LedgerKind]decimal.Decimal)
	for _, kind := range []workforce.LedgerKind{
		workforce.LedgerPayroll, workforce.LedgerScanCost, workforce.LedgerBonus, workforce.LedgerSeverance,
	} {
		totals[kind] = workforce.LedgerTotal(state.Ledger, kind)
	}

	resp := PayrollResponse{
		Tick:         state.Tick,
		Current:      state.Payroll,
		History:      state.PayrollHistory,
		LedgerTotals: totals,
		Ledger:       state.Ledger,
	}
	if resp.History == nil {
		resp.History = []workforce.PayrollState{}
	}
	if resp.Ledger == nil {
		resp.Ledger = []workforce.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ROSTER / QUEUE HANDLERS
// =============================================================================

// ListEmployees returns the roster.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	state, err := h.Sim.State()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	employees := state.Employees
	if employees == nil {
		employees = []workforce.Employee{}
	}
	writeJSON(w, http.StatusOK, employees)
}

// GetEmployee returns a single employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	state, err := h.Sim.State()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	emp, ok := state.Employee(workforce.EmployeeID(chi.URLParam(r, "id")))
	if !ok {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// ListTasks returns the task queue in queue order.
// GET /api/tasks?status=queued
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := workforce.TaskStatus(r.URL.Query().Get("status"))
	switch status {
	case "", workforce.TaskQueued, workforce.TaskInProgress, workforce.TaskCompleted, workforce.TaskCancelled:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status", nil)
		return
	}

	state, err := h.Sim.State()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	tasks := state.TaskQueue
	if status != "" {
		tasks = state.TasksByStatus(status)
	}
	if tasks == nil {
		tasks = []workforce.TaskInstance{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetMarket returns scan counters and candidates.
// GET /api/market
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	state, err := h.Sim.State()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MarketResponse{Tick: state.Tick, Market: state.Market})
}

// =============================================================================
// TICK HANDLERS
// =============================================================================

// ListPendingIntents returns what the next tick will apply.
// GET /api/intents
func (h *Handler) ListPendingIntents(w http.ResponseWriter, r *http.Request) {
	pending := h.Sim.Pending()
	if pending == nil {
		pending = []workforce.Intent{}
	}
	writeJSON(w, http.StatusOK, pending)
}

// SubmitIntents queues intents for the next tick.
// POST /api/intents
func (h *Handler) SubmitIntents(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	intents, err := decodeIntents(raw)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	pending, err := h.Sim.Submit(intents)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitIntentsResponse{Accepted: len(intents), Pending: pending})
}

// StepTicks steps and commits count ticks (default 1).
// POST /api/ticks
func (h *Handler) StepTicks(w http.ResponseWriter, r *http.Request) {
	req := StepRequest{Count: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if req.Count < 1 || req.Count > MaxTicksPerRequest {
		writeError(w, http.StatusBadRequest, "count must be between 1 and "+strconv.Itoa(MaxTicksPerRequest), nil)
		return
	}

	results, err := h.Sim.Advance(r.Context(), req.Count)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := StepResponse{Ticks: make([]TickSummaryDTO, len(results))}
	for i, res := range results {
		resp.Ticks[i] = toTickSummary(res)
		resp.Tick = res.State.Tick
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListEvents returns committed telemetry from the store.
// GET /api/events?from=0&topic=telemetry.workforce.kpi.v1
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var from int64
	if raw := r.URL.Query().Get("from"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from", err)
			return
		}
		from = v
	}
	topic := r.URL.Query().Get("topic")

	events, err := h.Sim.Store().Events(r.Context(), from)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load events", err)
		return
	}
	out := make([]workforce.Event, 0, len(events))
	for _, ev := range events {
		if topic == "" || ev.Topic == topic {
			out = append(out, ev)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine and store errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMalformedBody):
		writeError(w, http.StatusBadRequest, "Malformed request", err)
	case workforce.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Invalid intent", err)
	case workforce.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, ErrNoScenario):
		writeError(w, http.StatusConflict, "No scenario loaded", err)
	case errors.Is(err, workforce.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, "Duplicate idempotency key", err)
	case workforce.IsInvariant(err):
		h.log.Error("invariant violation, tick discarded", "err", err)
		writeError(w, http.StatusInternalServerError, "Invariant violation", err)
	default:
		h.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return 0, false
	}
	return n, true
}

// tail returns the last n items. n == 0 means all.
func tail[T any](xs []T, n int) []T {
	if n == 0 || len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
