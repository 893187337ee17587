/*
dto.go - Request and response bodies for the HTTP API

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response / *DTO: Response types returned to clients

  Domain types (Employee, TaskInstance, KpiSnapshot, ...) already carry
  JSON tags and are embedded as-is. DTOs only exist where the API shape
  differs from the state shape.

VALIDATION:
  Intent bodies are checked against intentSchema (schema.go) before they
  are decoded. Everything else is validated in handlers.
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/workforce"
)

// =============================================================================
// REQUESTS
// =============================================================================

type SubmitIntentsRequest struct {
	Intents []workforce.Intent `json:"intents"`
}

type StepRequest struct {
	Count int `json:"count"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
	Seed       string `json:"seed,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type SubmitIntentsResponse struct {
	Accepted int `json:"accepted"`
	Pending  int `json:"pending"`
}

// TickSummaryDTO is one committed tick without the full state.
type TickSummaryDTO struct {
	Tick     int64                      `json:"tick"`
	KPI      workforce.KpiSnapshot      `json:"kpi"`
	Warnings []workforce.Warning        `json:"warnings,omitempty"`
	Rejected []workforce.RejectedIntent `json:"rejected,omitempty"`
	Dropped  []workforce.Intent         `json:"dropped,omitempty"`
	Events   int                        `json:"events"`
	Assigned int                        `json:"assigned"`
}

type StepResponse struct {
	Tick  int64            `json:"tick"`
	Ticks []TickSummaryDTO `json:"ticks"`
}

type DigestResponse struct {
	Tick   int64  `json:"tick"`
	Digest string `json:"digest"`
}

type KPIsResponse struct {
	Tick int64                   `json:"tick"`
	KPIs []workforce.KpiSnapshot `json:"kpis"`
}

type WarningsResponse struct {
	Tick     int64               `json:"tick"`
	Warnings []workforce.Warning `json:"warnings"`
}

type PayrollResponse struct {
	Tick         int64                                    `json:"tick"`
	Current      workforce.PayrollState                   `json:"current"`
	History      []workforce.PayrollState                 `json:"history"`
	LedgerTotals map[workforce.LedgerKind]decimal.Decimal `json:"ledgerTotals"`
	Ledger       []workforce.LedgerEntry                  `json:"ledger"`
}

type MarketResponse struct {
	Tick   int64                 `json:"tick"`
	Market workforce.MarketState `json:"market"`
}

type ScenariosResponse struct {
	Current   string            `json:"current,omitempty"`
	Scenarios []factory.Summary `json:"scenarios"`
}

type LoadScenarioResponse struct {
	Scenario factory.Summary `json:"scenario"`
	Seed     string          `json:"seed"`
	Pending  int             `json:"pending"`
}

func toTickSummary(res *workforce.TickResult) TickSummaryDTO {
	return TickSummaryDTO{
		Tick:     res.State.Tick,
		KPI:      res.KPI,
		Warnings: res.Warnings,
		Rejected: res.Rejected,
		Dropped:  res.Dropped,
		Events:   len(res.Events),
		Assigned: len(res.Assignments.Records),
	}
}
