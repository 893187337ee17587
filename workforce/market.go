/*
market.go - Hiring market scans and hires

PURPOSE:
  A hiring.market.scan advances a structure's scan counter, charges the scan
  fee to the finance ledger and generates a batch of candidates. A
  hiring.market.hire turns a still-valid candidate into an employee.

CANDIDATE PROFILE BOUNDS:
  main skill        [0.25, 0.50)
  secondary skills  [0.01, 0.35)
  trait strength    [0.30, 0.70)

VALIDITY:
  A candidate generated at scan counter c carries
  ValidUntilScanCounter = c + ValidityScans and expires as soon as the
  structure's counter exceeds that value. Expired candidates are pruned on
  the next scan of their structure and rejected by hire.

DETERMINISM:
  Each scan draws from the stream "hiring:market:<structure>:<counter>".
  Candidate ids and RNG seed UUIDs are name-based (uuid.NewSHA1), so the
  same seed and intent sequence always yields the same candidates.
*/
package workforce

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/workforce-engine/rng"
)

const (
	candidateMainMin      = 0.25
	candidateMainMax      = 0.5
	candidateSecondaryMin = 0.01
	candidateSecondaryMax = 0.35
	candidateTraitMin     = 0.3
	candidateTraitMax     = 0.7

	// HireMorale is the starting morale of a freshly hired employee.
	HireMorale = 0.8
)

var marketNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("workforce-engine/hiring-market"))

type MarketCandidate struct {
	ID                    CandidateID       `json:"id"`
	StructureID           StructureID       `json:"structureId"`
	RoleSlug              string            `json:"roleSlug"`
	RngSeedUUID           string            `json:"rngSeedUuid"`
	SkillTriad            SkillTriad        `json:"skillTriad"`
	Skills                SkillLevels       `json:"skills"`
	Traits                []TraitAssignment `json:"traits,omitempty"`
	ExpectedHourlyRate    *float64          `json:"expectedHourlyRate,omitempty"`
	ScanCounter           int               `json:"scanCounter"`
	ValidUntilScanCounter int               `json:"validUntilScanCounter"`
}

func (c MarketCandidate) clone() MarketCandidate {
	out := c
	out.Skills = make(SkillLevels, len(c.Skills))
	for k, v := range c.Skills {
		out.Skills[k] = v
	}
	out.Traits = append([]TraitAssignment(nil), c.Traits...)
	out.ExpectedHourlyRate = cloneFloatPtr(c.ExpectedHourlyRate)
	return out
}

// Expired reports whether the candidate is past its window at counter.
func (c MarketCandidate) Expired(counter int) bool {
	return counter > c.ValidUntilScanCounter
}

type MarketState struct {
	ScanCounters map[StructureID]int `json:"scanCounters"`
	Candidates   []MarketCandidate   `json:"candidates"`
}

func NewMarketState() MarketState {
	return MarketState{ScanCounters: make(map[StructureID]int)}
}

func (m MarketState) clone() MarketState {
	out := MarketState{ScanCounters: make(map[StructureID]int, len(m.ScanCounters))}
	for k, v := range m.ScanCounters {
		out.ScanCounters[k] = v
	}
	if m.Candidates != nil {
		out.Candidates = make([]MarketCandidate, len(m.Candidates))
		for i, c := range m.Candidates {
			out.Candidates[i] = c.clone()
		}
	}
	return out
}

// Candidate returns the candidate with the given id.
func (m MarketState) Candidate(id CandidateID) (MarketCandidate, bool) {
	for _, c := range m.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return MarketCandidate{}, false
}

// =============================================================================
// SCAN
// =============================================================================

// ScanResult is what one market scan produced.
type ScanResult struct {
	StructureID StructureID       `json:"structureId"`
	ScanCounter int               `json:"scanCounter"`
	Cost        decimal.Decimal   `json:"cost"`
	Candidates  []MarketCandidate `json:"candidates"`
	Expired     []CandidateID     `json:"expired,omitempty"`
}

// scanMarket applies a hiring.market.scan to s. s must be the engine's
// private copy; on error it may be partially modified and must be dropped.
func scanMarket(s *WorkforceState, cat *CatalogIndex, t Tuning, streams *rng.Provider, structure StructureID) (*ScanResult, error) {
	const intent = IntentMarketScan
	if _, ok := cat.Structure(structure); !ok {
		return nil, invalid(intent, "structureId", ErrUnknownStructure, "unknown structure %q", structure)
	}
	roles := cat.SortedRoles()
	if len(roles) == 0 {
		return nil, invalid(intent, "", ErrUnknownRole, "catalog has no roles to hire for")
	}
	pool := append([]string(nil), cat.Catalog().Skills...)
	sort.Strings(pool)
	if len(pool) < 3 {
		return nil, invalid(intent, "", nil, "catalog needs at least three skills, has %d", len(pool))
	}

	if s.Market.ScanCounters == nil {
		s.Market.ScanCounters = make(map[StructureID]int)
	}
	counter := s.Market.ScanCounters[structure] + 1
	s.Market.ScanCounters[structure] = counter

	res := &ScanResult{StructureID: structure, ScanCounter: counter, Cost: decimal.NewFromFloat(t.Market.ScanCostCc)}

	kept := s.Market.Candidates[:0:0]
	for _, c := range s.Market.Candidates {
		if c.StructureID == structure && c.Expired(counter) {
			res.Expired = append(res.Expired, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	s.Market.Candidates = kept

	stream, err := streams.Stream(fmt.Sprintf("hiring:market:%s:%d", structure, counter))
	if err != nil {
		return nil, err
	}

	traits := append([]string(nil), cat.Catalog().Traits...)
	sort.Strings(traits)

	for i := 0; i < t.Market.CandidatesPerScan; i++ {
		c := generateCandidate(stream, s.Seed, structure, counter, i, roles, pool, traits, t)
		res.Candidates = append(res.Candidates, c)
		s.Market.Candidates = append(s.Market.Candidates, c.clone())
	}

	if err := s.appendLedger(LedgerEntry{
		ID:             fmt.Sprintf("scan:%s:%d", structure, counter),
		Tick:           s.Tick,
		Kind:           LedgerScanCost,
		Amount:         res.Cost,
		StructureID:    structure,
		Reason:         "hiring market scan",
		IdempotencyKey: fmt.Sprintf("scan:%s:%d", structure, counter),
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func generateCandidate(stream *rng.Stream, seed string, structure StructureID, counter, index int, roles []Role, pool, traits []string, t Tuning) MarketCandidate {
	name := fmt.Sprintf("%s|%s|%d|%d", seed, structure, counter, index)
	id := uuid.NewSHA1(marketNamespace, []byte(name))
	seedUUID := uuid.NewSHA1(marketNamespace, []byte(name+"|rng"))

	role := roles[stream.Intn(len(roles))]

	// Main skill: the role's first core skill when it has one.
	main := ""
	if len(role.CoreSkills) > 0 {
		main = role.CoreSkills[0].SkillKey
	}
	if main == "" || !containsString(pool, main) {
		main = pool[stream.Intn(len(pool))]
	}
	rest := make([]string, 0, len(pool)-1)
	for _, k := range pool {
		if k != main {
			rest = append(rest, k)
		}
	}
	a := stream.Intn(len(rest))
	first := rest[a]
	rest = append(rest[:a:a], rest[a+1:]...)
	second := rest[stream.Intn(len(rest))]

	c := MarketCandidate{
		ID:          CandidateID(id.String()),
		StructureID: structure,
		RoleSlug:    role.Slug,
		RngSeedUUID: seedUUID.String(),
		SkillTriad:  SkillTriad{Main: main, Secondary: [2]string{first, second}},
		Skills: SkillLevels{
			main:   stream.Range(candidateMainMin, candidateMainMax),
			first:  stream.Range(candidateSecondaryMin, candidateSecondaryMax),
			second: stream.Range(candidateSecondaryMin, candidateSecondaryMax),
		},
		ScanCounter:           counter,
		ValidUntilScanCounter: counter + t.Market.ValidityScans,
	}

	if len(traits) > 0 {
		n := 1 + stream.Intn(minInt(2, len(traits)))
		picked := append([]string(nil), traits...)
		for j := 0; j < n; j++ {
			k := stream.Intn(len(picked))
			c.Traits = append(c.Traits, TraitAssignment{
				TraitID:    picked[k],
				Strength01: stream.Range(candidateTraitMin, candidateTraitMax),
			})
			picked = append(picked[:k:k], picked[k+1:]...)
		}
	}

	rate := t.Pay.BaseHourlyRateCc * role.RateMultiplier() * stream.Range(0.9, 1.1)
	rate = math.Round(rate*100) / 100
	c.ExpectedHourlyRate = &rate
	return c
}

// =============================================================================
// HIRE
// =============================================================================

// hireCandidate converts a valid candidate into an employee and removes it
// from the market.
func hireCandidate(s *WorkforceState, cat *CatalogIndex, t Tuning, id CandidateID) (Employee, error) {
	const intent = IntentMarketHire
	idx := -1
	for i, c := range s.Market.Candidates {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Employee{}, invalid(intent, "candidateId", ErrCandidateNotFound, "candidate %q not found", id)
	}
	c := s.Market.Candidates[idx]
	if c.Expired(s.Market.ScanCounters[c.StructureID]) {
		return Employee{}, invalid(intent, "candidateId", ErrCandidateExpired,
			"candidate %q expired at scan %d", id, c.ValidUntilScanCounter)
	}
	role, ok := cat.RoleBySlug(c.RoleSlug)
	if !ok {
		return Employee{}, invalid(intent, "roleSlug", ErrUnknownRole, "unknown role slug %q", c.RoleSlug)
	}

	empID := EmployeeID("emp-" + string(c.ID))
	if _, exists := s.Employee(empID); exists {
		return Employee{}, invalid(intent, "candidateId", nil, "candidate %q already hired", id)
	}

	triad := c.SkillTriad
	e := Employee{
		ID:                    empID,
		Name:                  fmt.Sprintf("Hire %s", string(c.ID)[:8]),
		StructureID:           c.StructureID,
		RoleID:                role.ID,
		RngSeedUUID:           c.RngSeedUUID,
		Morale01:              HireMorale,
		Skills:                c.clone().Skills,
		SkillTriad:            &triad,
		Traits:                append([]TraitAssignment(nil), c.Traits...),
		Schedule:              t.Market.DefaultSchedule,
		BaseRateMultiplier:    1,
		LaborMarketFactor:     1,
		TimePremiumMultiplier: 1,
		EmploymentStartTick:   s.Tick,
		Usage:                 DayUsage{DayIndex: DayIndex(s.Tick, t.TickHours)},
	}
	if c.ExpectedHourlyRate != nil {
		e.SalaryExpectationPerH = *c.ExpectedHourlyRate
	} else {
		e.SalaryExpectationPerH, _ = HourlyRate(e, role, t).Float64()
	}
	e.normalize()

	s.Market.Candidates = append(s.Market.Candidates[:idx:idx], s.Market.Candidates[idx+1:]...)
	s.Employees = append(s.Employees, e)
	s.sortEmployees()
	return e.clone(), nil
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
