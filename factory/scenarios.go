/*
scenarios.go - Seed scenarios for demos, tests and the simulate command

PURPOSE:
  A scenario is a seed, a starting roster and the intents to submit on the
  first tick (task enqueues, market scans). Built against an engine it
  yields a tick-0 state plus opening intents; stepping the engine from
  there is fully deterministic.

AVAILABLE SCENARIOS:
  greenhouse-basic:  Balanced crew across two greenhouses, mixed work
  overtime-crunch:   Small crew, heavy harvest backlog, overtime burn
  hiring-drive:      Empty roster, market scans in both greenhouses
  veteran-raises:    Long-tenured crew eligible for raise decisions

HOW SCENARIOS WORK:
 1. engine.NewState(seed)
 2. Employees are added through WithEmployees (clamped, sorted by id)
 3. Build returns the opening intents; the caller passes them to the
    first Step

ADDING NEW SCENARIOS:
 1. Add an entry to the presets slice
 2. Or drop a YAML/JSON file next to the catalog and LoadScenario it

SEE ALSO:
  - factory/catalog.go: GreenhouseCatalog
  - api/scenarios.go: HTTP loader
*/
package factory

import (
	"fmt"
	"os"
	"sort"

	"github.com/warp/workforce-engine/workforce"
)

// =============================================================================
// SCENARIO TYPES
// =============================================================================

type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Seed        string `json:"seed"`

	Employees []EmployeeSpec `json:"employees"`
	Tasks     []TaskSpec     `json:"tasks,omitempty"`
	// Scans lists structures to scan on the first tick.
	Scans []workforce.StructureID `json:"scans,omitempty"`
}

// EmployeeSpec describes one employee, or Count copies with numbered ids.
type EmployeeSpec struct {
	ID          workforce.EmployeeID  `json:"id"`
	Name        string                `json:"name,omitempty"`
	StructureID workforce.StructureID `json:"structureId"`
	RoleID      workforce.RoleID      `json:"roleId"`
	Skills      workforce.SkillLevels `json:"skills"`
	Morale01    *float64              `json:"morale01,omitempty"`
	Fatigue01   float64               `json:"fatigue01,omitempty"`
	Schedule    *workforce.Schedule   `json:"schedule,omitempty"`

	// StartTick may be negative for staff hired before the simulation began.
	StartTick  int64   `json:"startTick,omitempty"`
	SalaryPerH float64 `json:"salaryPerH,omitempty"`
	Count      int     `json:"count,omitempty"`
}

// TaskSpec enqueues Count copies of a task on the first tick.
type TaskSpec struct {
	TaskCode workforce.TaskCode    `json:"taskCode"`
	Context  workforce.TaskContext `json:"context"`
	DueTick  *int64                `json:"dueTick,omitempty"`
	Count    int                   `json:"count,omitempty"`
}

// Summary is the listing view of a scenario.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Employees   int    `json:"employees"`
	Tasks       int    `json:"tasks"`
}

// =============================================================================
// BUILD
// =============================================================================

// Build returns the tick-0 state and the intents to submit with the first
// Step. Employees are checked against the engine's catalog.
func (sc Scenario) Build(e *workforce.Engine) (workforce.WorkforceState, []workforce.Intent, error) {
	seed := sc.Seed
	if seed == "" {
		seed = sc.ID
	}
	t := e.Tuning()
	cat := e.Catalog()

	var emps []workforce.Employee
	seen := make(map[workforce.EmployeeID]bool)
	for _, spec := range sc.Employees {
		for _, emp := range spec.expand(seed, t) {
			if seen[emp.ID] {
				return workforce.WorkforceState{}, nil, fmt.Errorf("scenario %s: duplicate employee %s", sc.ID, emp.ID)
			}
			seen[emp.ID] = true
			if _, ok := cat.Structure(emp.StructureID); !ok {
				return workforce.WorkforceState{}, nil, fmt.Errorf("scenario %s: employee %s: %w %q", sc.ID, emp.ID, workforce.ErrUnknownStructure, emp.StructureID)
			}
			if _, ok := cat.Role(emp.RoleID); !ok {
				return workforce.WorkforceState{}, nil, fmt.Errorf("scenario %s: employee %s: %w %q", sc.ID, emp.ID, workforce.ErrUnknownRole, emp.RoleID)
			}
			if err := emp.Schedule.Validate(); err != nil {
				return workforce.WorkforceState{}, nil, fmt.Errorf("scenario %s: employee %s: %w", sc.ID, emp.ID, err)
			}
			emps = append(emps, emp)
		}
	}

	state := e.NewState(seed).WithEmployees(emps...)

	var intents []workforce.Intent
	for _, structure := range sc.Scans {
		intents = append(intents, workforce.Intent{Type: workforce.IntentMarketScan, StructureID: structure})
	}
	for _, task := range sc.Tasks {
		for i := 0; i < max(task.Count, 1); i++ {
			ctx := task.Context
			intents = append(intents, workforce.Intent{
				Type:     workforce.IntentTaskEnqueue,
				TaskCode: task.TaskCode,
				DueTick:  task.DueTick,
				Context:  &ctx,
			})
		}
	}
	return state, intents, nil
}

func (spec EmployeeSpec) expand(seed string, t workforce.Tuning) []workforce.Employee {
	n := max(spec.Count, 1)
	out := make([]workforce.Employee, 0, n)
	for i := 0; i < n; i++ {
		id := spec.ID
		if spec.Count > 1 {
			id = workforce.EmployeeID(fmt.Sprintf("%s-%02d", spec.ID, i+1))
		}
		name := spec.Name
		if name == "" {
			name = string(id)
		}
		schedule := t.Market.DefaultSchedule
		if spec.Schedule != nil {
			schedule = *spec.Schedule
		}
		morale := 0.8
		if spec.Morale01 != nil {
			morale = *spec.Morale01
		}
		salary := spec.SalaryPerH
		if salary == 0 {
			salary = t.Pay.BaseHourlyRateCc
		}
		skills := make(workforce.SkillLevels, len(spec.Skills))
		for k, v := range spec.Skills {
			skills[k] = v
		}
		out = append(out, workforce.Employee{
			ID:                    id,
			Name:                  name,
			StructureID:           spec.StructureID,
			RoleID:                spec.RoleID,
			RngSeedUUID:           seed + "/" + string(id),
			Morale01:              morale,
			Fatigue01:             spec.Fatigue01,
			Skills:                skills,
			Schedule:              schedule,
			BaseRateMultiplier:    1,
			LaborMarketFactor:     1,
			TimePremiumMultiplier: 1,
			EmploymentStartTick:   spec.StartTick,
			SalaryExpectationPerH: salary,
		})
	}
	return out
}

// Summary counts expanded employees and tasks.
func (sc Scenario) Summary() Summary {
	s := Summary{ID: sc.ID, Name: sc.Name, Description: sc.Description}
	for _, e := range sc.Employees {
		s.Employees += max(e.Count, 1)
	}
	for _, t := range sc.Tasks {
		s.Tasks += max(t.Count, 1)
	}
	return s
}

// =============================================================================
// PARSING
// =============================================================================

// ParseScenario parses a scenario document.
func ParseScenario(raw []byte, format Format) (Scenario, error) {
	var sc Scenario
	if err := decode(raw, format, &sc); err != nil {
		return Scenario{}, fmt.Errorf("scenario: %w", err)
	}
	if sc.ID == "" {
		return Scenario{}, fmt.Errorf("scenario: id is required")
	}
	return sc, nil
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	sc, err := ParseScenario(raw, FormatFromPath(path))
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// =============================================================================
// PRESET SCENARIOS
// =============================================================================

func structureCtx(id workforce.StructureID) workforce.TaskContext {
	return workforce.TaskContext{Scope: workforce.ScopeStructure, StructureID: id}
}

func plantsCtx(id workforce.StructureID, zone string, plants float64) workforce.TaskContext {
	return workforce.TaskContext{Scope: workforce.ScopeZone, StructureID: id, ZoneID: zone, PlantCount: &plants}
}

func areaCtx(id workforce.StructureID, room string, m2 float64) workforce.TaskContext {
	return workforce.TaskContext{Scope: workforce.ScopeRoom, StructureID: id, RoomID: room, AreaSquareMeters: &m2}
}

func deviceCtx(id workforce.StructureID, device string) workforce.TaskContext {
	return workforce.TaskContext{Scope: workforce.ScopeDevice, StructureID: id, DeviceID: device}
}

func morale(v float64) *float64 { return &v }

var presets = []Scenario{
	{
		ID:          "greenhouse-basic",
		Name:        "Greenhouse Basic",
		Description: "Balanced crew across two greenhouses with mixed cultivation, maintenance and cleaning work",
		Seed:        "greenhouse-basic",
		Employees: []EmployeeSpec{
			{ID: "gardener-north", StructureID: GreenhouseNorth, RoleID: RoleGardener, Count: 3,
				Skills: workforce.SkillLevels{"gardening": 0.6, "logistics": 0.2}},
			{ID: "gardener-south", StructureID: GreenhouseSouth, RoleID: RoleGardener, Count: 2,
				Skills: workforce.SkillLevels{"gardening": 0.55}},
			{ID: "tech-north", StructureID: GreenhouseNorth, RoleID: RoleTechnician,
				Skills: workforce.SkillLevels{"maintenance": 0.7, "logistics": 0.3}},
			{ID: "janitor-south", StructureID: GreenhouseSouth, RoleID: RoleJanitor,
				Skills: workforce.SkillLevels{"cleanliness": 0.5}},
		},
		Tasks: []TaskSpec{
			{TaskCode: "water_plants", Context: plantsCtx(GreenhouseNorth, "zone-a", 240), Count: 3},
			{TaskCode: "water_plants", Context: plantsCtx(GreenhouseSouth, "zone-b", 180), Count: 2},
			{TaskCode: "harvest_plants", Context: plantsCtx(GreenhouseNorth, "zone-a", 60)},
			{TaskCode: "prune_plants", Context: plantsCtx(GreenhouseSouth, "zone-b", 40)},
			{TaskCode: "repair_device", Context: deviceCtx(GreenhouseNorth, "pump-1")},
			{TaskCode: "inspect_device", Context: deviceCtx(GreenhouseNorth, "hvac-1"), Count: 2},
			{TaskCode: "clean_zone", Context: areaCtx(GreenhouseSouth, "room-1", 120)},
			{TaskCode: "restock_supplies", Context: structureCtx(GreenhouseNorth)},
			{TaskCode: "breakroom_rest", Context: structureCtx(GreenhouseNorth)},
		},
	},
	{
		ID:          "overtime-crunch",
		Name:        "Overtime Crunch",
		Description: "Two gardeners facing a harvest backlog larger than their regular shifts",
		Seed:        "overtime-crunch",
		Employees: []EmployeeSpec{
			{ID: "gardener", StructureID: GreenhouseNorth, RoleID: RoleGardener, Count: 2,
				Skills:   workforce.SkillLevels{"gardening": 0.7},
				Schedule: &workforce.Schedule{HoursPerDay: 8, OvertimeHoursPerDay: 4, DaysPerWeek: 6}},
		},
		Tasks: []TaskSpec{
			{TaskCode: "harvest_plants", Context: plantsCtx(GreenhouseNorth, "zone-a", 200), Count: 6},
			{TaskCode: "water_plants", Context: plantsCtx(GreenhouseNorth, "zone-b", 300), Count: 4},
		},
	},
	{
		ID:          "hiring-drive",
		Name:        "Hiring Drive",
		Description: "No staff yet: scan both greenhouses for candidates while work queues up",
		Seed:        "hiring-drive",
		Scans:       []workforce.StructureID{GreenhouseNorth, GreenhouseSouth},
		Tasks: []TaskSpec{
			{TaskCode: "water_plants", Context: plantsCtx(GreenhouseNorth, "zone-a", 120), Count: 4},
			{TaskCode: "inspect_device", Context: deviceCtx(GreenhouseSouth, "hvac-2")},
		},
	},
	{
		ID:          "veteran-raises",
		Name:        "Veteran Raises",
		Description: "Crew hired a year before the simulation started, eligible for raise decisions",
		Seed:        "veteran-raises",
		Employees: []EmployeeSpec{
			{ID: "veteran-gardener", StructureID: GreenhouseNorth, RoleID: RoleGardener, Count: 2,
				Skills: workforce.SkillLevels{"gardening": 0.8}, Morale01: morale(0.7), StartTick: -365 * 24, SalaryPerH: 18},
			{ID: "veteran-tech", StructureID: GreenhouseSouth, RoleID: RoleTechnician,
				Skills: workforce.SkillLevels{"maintenance": 0.8, "logistics": 0.4}, Morale01: morale(0.6), StartTick: -400 * 24, SalaryPerH: 24},
			{ID: "rookie-gardener", StructureID: GreenhouseSouth, RoleID: RoleGardener,
				Skills: workforce.SkillLevels{"gardening": 0.4}, SalaryPerH: 15},
		},
		Tasks: []TaskSpec{
			{TaskCode: "water_plants", Context: plantsCtx(GreenhouseNorth, "zone-a", 200), Count: 2},
			{TaskCode: "inspect_device", Context: deviceCtx(GreenhouseSouth, "pump-2")},
		},
	},
}

// Scenarios returns the preset scenarios ordered by id.
func Scenarios() []Scenario {
	out := append([]Scenario(nil), presets...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup returns the preset with the given id.
func Lookup(id string) (Scenario, bool) {
	for _, sc := range presets {
		if sc.ID == id {
			return sc, true
		}
	}
	return Scenario{}, false
}
