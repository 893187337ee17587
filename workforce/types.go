/*
Package workforce provides the deterministic workforce scheduling and
labor-economics engine.

PURPOSE:
  Runs once per simulation tick. Matches a bounded pool of employees to a
  prioritized queue of labor tasks, respects per-employee time budgets,
  evolves morale and fatigue, negotiates raises, handles terminations,
  accumulates payroll and emits KPI/warning telemetry. Everything is
  bit-reproducible from a seed.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: roster entry with skills, schedule, compensation, raise cadence
  - Role / TaskDefinition: immutable catalog data
  - TaskInstance: a unit of queued work with a tagged-union context
  - KpiSnapshot / Warning: append-only telemetry records

DESIGN PRINCIPLES:
  1. Copy-on-write: engine calls take a state value and return a new one.
     The previous snapshot is never mutated.
  2. Determinism: no map iteration order, clock or system entropy leaks into
     a decision. Randomness comes only from package rng.
  3. Explicit catalog: roles and task definitions are passed in through
     Catalog, never looked up from package-level state.
  4. Backpressure is not an error: a task nobody can take stays queued.

SEE ALSO:
  - state.go: WorkforceState and cloning
  - engine.go: Tick orchestration
  - assignment.go: Priority matching
*/
package workforce

import (
	"fmt"
	"math"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type StructureID string
type RoleID string
type TaskID string
type TaskCode string
type CandidateID string

// =============================================================================
// EMPLOYEE
// =============================================================================

// SkillLevels maps a skill key to a level in [0,1].
type SkillLevels map[string]float64

// SkillTriad is one main skill plus two secondary skills.
type SkillTriad struct {
	Main      string    `json:"main"`
	Secondary [2]string `json:"secondary"`
}

type TraitAssignment struct {
	TraitID    string  `json:"traitId"`
	Strength01 float64 `json:"strength01"`
}

// Schedule bounds: hours per day [5,16], overtime [0,5], days per week [1,7].
type Schedule struct {
	HoursPerDay         float64 `json:"hoursPerDay" yaml:"hoursPerDay"`
	OvertimeHoursPerDay float64 `json:"overtimeHoursPerDay" yaml:"overtimeHoursPerDay"`
	DaysPerWeek         int     `json:"daysPerWeek" yaml:"daysPerWeek"`
}

const (
	MinHoursPerDay         = 5.0
	MaxHoursPerDay         = 16.0
	MaxOvertimeHoursPerDay = 5.0
	MinBaseRateMultiplier  = 0.1
	MaxBaseRateMultiplier  = 10.0
)

// Validate checks the schedule against its declared bounds.
func (s Schedule) Validate() error {
	if s.HoursPerDay < MinHoursPerDay || s.HoursPerDay > MaxHoursPerDay || math.IsNaN(s.HoursPerDay) {
		return fmt.Errorf("hoursPerDay %v outside [%v,%v]", s.HoursPerDay, MinHoursPerDay, MaxHoursPerDay)
	}
	if s.OvertimeHoursPerDay < 0 || s.OvertimeHoursPerDay > MaxOvertimeHoursPerDay || math.IsNaN(s.OvertimeHoursPerDay) {
		return fmt.Errorf("overtimeHoursPerDay %v outside [0,%v]", s.OvertimeHoursPerDay, MaxOvertimeHoursPerDay)
	}
	if s.DaysPerWeek < 1 || s.DaysPerWeek > 7 {
		return fmt.Errorf("daysPerWeek %d outside [1,7]", s.DaysPerWeek)
	}
	return nil
}

// WorksOn reports whether the schedule includes the given day.
func (s Schedule) WorksOn(dayIndex int) bool {
	return floorMod(dayIndex, 7) < s.DaysPerWeek
}

type Experience struct {
	HoursAccrued float64 `json:"hoursAccrued"`
	Level01      float64 `json:"level01"`
}

// RaiseState tracks how many raise decisions an employee has gone through.
type RaiseState struct {
	CadenceSequence int  `json:"cadenceSequence"`
	LastDecisionDay *int `json:"lastDecisionDay,omitempty"`
	NextEligibleDay *int `json:"nextEligibleDay,omitempty"`
}

// DayUsage is the time budget consumed on one simulation day.
type DayUsage struct {
	DayIndex        int     `json:"dayIndex"`
	BaseMinutes     float64 `json:"baseMinutes"`
	OvertimeMinutes float64 `json:"overtimeMinutes"`
}

type Employee struct {
	ID          EmployeeID  `json:"id"`
	Name        string      `json:"name"`
	StructureID StructureID `json:"structureId"`
	RoleID      RoleID      `json:"roleId"`

	// RngSeedUUID keys this employee's private random streams.
	RngSeedUUID string `json:"rngSeedUuid"`

	Morale01  float64 `json:"morale01"`
	Fatigue01 float64 `json:"fatigue01"`

	Skills     SkillLevels       `json:"skills"`
	SkillTriad *SkillTriad       `json:"skillTriad,omitempty"`
	Traits     []TraitAssignment `json:"traits,omitempty"`
	Schedule   Schedule          `json:"schedule"`

	BaseRateMultiplier    float64    `json:"baseRateMultiplier"`
	Experience            Experience `json:"experience"`
	LaborMarketFactor     float64    `json:"laborMarketFactor"`
	TimePremiumMultiplier float64    `json:"timePremiumMultiplier"`
	EmploymentStartTick   int64      `json:"employmentStartTick"`
	SalaryExpectationPerH float64    `json:"salaryExpectation_per_h"`
	Raise                 RaiseState `json:"raise"`

	Usage DayUsage `json:"usage"`
}

// SkillLevel returns the employee's level for key, 0 when absent.
func (e Employee) SkillLevel(key string) float64 {
	return e.Skills[key]
}

func (e Employee) clone() Employee {
	out := e
	if e.Skills != nil {
		out.Skills = make(SkillLevels, len(e.Skills))
		for k, v := range e.Skills {
			out.Skills[k] = v
		}
	}
	if e.SkillTriad != nil {
		t := *e.SkillTriad
		out.SkillTriad = &t
	}
	if e.Traits != nil {
		out.Traits = append([]TraitAssignment(nil), e.Traits...)
	}
	out.Raise.LastDecisionDay = cloneIntPtr(e.Raise.LastDecisionDay)
	out.Raise.NextEligibleDay = cloneIntPtr(e.Raise.NextEligibleDay)
	return out
}

// normalize clamps every bounded field into its declared range.
func (e *Employee) normalize() {
	e.Morale01 = Clamp01(e.Morale01)
	e.Fatigue01 = Clamp01(e.Fatigue01)
	e.Experience.Level01 = Clamp01(e.Experience.Level01)
	for k, v := range e.Skills {
		e.Skills[k] = Clamp01(v)
	}
	for i := range e.Traits {
		e.Traits[i].Strength01 = Clamp01(e.Traits[i].Strength01)
	}
	e.BaseRateMultiplier = clamp(e.BaseRateMultiplier, MinBaseRateMultiplier, MaxBaseRateMultiplier)
}

// =============================================================================
// CATALOG DATA - Roles and task definitions
// =============================================================================

type SkillRequirement struct {
	SkillKey   string  `json:"skillKey" yaml:"skillKey"`
	MinSkill01 float64 `json:"minSkill01" yaml:"minSkill01"`
}

type Role struct {
	ID                 RoleID             `json:"id" yaml:"id"`
	Slug               string             `json:"slug" yaml:"slug"`
	Name               string             `json:"name" yaml:"name"`
	CoreSkills         []SkillRequirement `json:"coreSkills" yaml:"coreSkills"`
	BaseRateMultiplier *float64           `json:"baseRateMultiplier,omitempty" yaml:"baseRateMultiplier,omitempty"`
}

// RateMultiplier returns the role's base-rate multiplier, 1 when unset.
func (r Role) RateMultiplier() float64 {
	if r.BaseRateMultiplier == nil {
		return 1
	}
	return *r.BaseRateMultiplier
}

type CostBasis string

const (
	BasisPerAction      CostBasis = "perAction"
	BasisPerPlant       CostBasis = "perPlant"
	BasisPerSquareMeter CostBasis = "perSquareMeter"
)

type CostModel struct {
	Basis        CostBasis `json:"basis" yaml:"basis"`
	LaborMinutes float64   `json:"laborMinutes" yaml:"laborMinutes"`
}

type TaskCategory string

const (
	CategoryGeneral     TaskCategory = "general"
	CategoryMaintenance TaskCategory = "maintenance"
	CategoryCultivation TaskCategory = "cultivation"
	CategoryHarvest     TaskCategory = "harvest"
	CategoryCleaning    TaskCategory = "cleaning"
	CategoryBreakroom   TaskCategory = "breakroom"
)

type TaskDefinition struct {
	TaskCode         TaskCode           `json:"taskCode" yaml:"taskCode"`
	Description      string             `json:"description" yaml:"description"`
	Category         TaskCategory       `json:"category" yaml:"category"`
	RequiredRoleSlug string             `json:"requiredRoleSlug" yaml:"requiredRoleSlug"`
	RequiredSkills   []SkillRequirement `json:"requiredSkills" yaml:"requiredSkills"`
	Priority         int                `json:"priority" yaml:"priority"`
	CostModel        CostModel          `json:"costModel" yaml:"costModel"`
}

// IsBreakroom reports whether the task is rest rather than work.
func (d TaskDefinition) IsBreakroom() bool { return d.Category == CategoryBreakroom }

// =============================================================================
// TASK INSTANCE
// =============================================================================

type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether the status can no longer change.
func (s TaskStatus) IsTerminal() bool { return s == TaskCompleted || s == TaskCancelled }

type TaskScope string

const (
	ScopeStructure TaskScope = "structure"
	ScopeRoom      TaskScope = "room"
	ScopeZone      TaskScope = "zone"
	ScopeDevice    TaskScope = "device"
)

// TaskContext is a tagged union keyed by Scope. Only the fields the scope
// needs are meaningful; Validate enforces that they are present.
type TaskContext struct {
	Scope       TaskScope   `json:"scope"`
	StructureID StructureID `json:"structureId"`
	RoomID      string      `json:"roomId,omitempty"`
	ZoneID      string      `json:"zoneId,omitempty"`
	DeviceID    string      `json:"deviceId,omitempty"`

	PlantCount       *float64 `json:"plantCount,omitempty"`
	AreaSquareMeters *float64 `json:"areaSquareMeters,omitempty"`
}

// Validate checks the union discriminator against the populated fields.
func (c TaskContext) Validate() error {
	if c.StructureID == "" {
		return fmt.Errorf("%w: structureId is required", ErrInvalidContext)
	}
	switch c.Scope {
	case ScopeStructure:
	case ScopeRoom:
		if c.RoomID == "" {
			return fmt.Errorf("%w: room scope requires roomId", ErrInvalidContext)
		}
	case ScopeZone:
		if c.ZoneID == "" {
			return fmt.Errorf("%w: zone scope requires zoneId", ErrInvalidContext)
		}
	case ScopeDevice:
		if c.DeviceID == "" {
			return fmt.Errorf("%w: device scope requires deviceId", ErrInvalidContext)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidContext, c.Scope)
	}
	if !validCount(c.PlantCount) {
		return fmt.Errorf("%w: plantCount must be a finite non-negative number", ErrInvalidContext)
	}
	if !validCount(c.AreaSquareMeters) {
		return fmt.Errorf("%w: areaSquareMeters must be a finite non-negative number", ErrInvalidContext)
	}
	return nil
}

// LaborMinutes scales the cost model by the context-provided count.
func (c TaskContext) LaborMinutes(cm CostModel) (float64, error) {
	switch cm.Basis {
	case BasisPerAction, "":
		return cm.LaborMinutes, nil
	case BasisPerPlant:
		if c.PlantCount == nil {
			return 0, fmt.Errorf("%w: perPlant task without plantCount", ErrInvalidContext)
		}
		return cm.LaborMinutes * *c.PlantCount, nil
	case BasisPerSquareMeter:
		if c.AreaSquareMeters == nil {
			return 0, fmt.Errorf("%w: perSquareMeter task without areaSquareMeters", ErrInvalidContext)
		}
		return cm.LaborMinutes * *c.AreaSquareMeters, nil
	default:
		return 0, fmt.Errorf("%w: unknown cost basis %q", ErrInvalidContext, cm.Basis)
	}
}

type TaskInstance struct {
	ID                 TaskID      `json:"id"`
	TaskCode           TaskCode    `json:"taskCode"`
	Status             TaskStatus  `json:"status"`
	CreatedAtTick      int64       `json:"createdAtTick"`
	DueTick            *int64      `json:"dueTick,omitempty"`
	AssignedEmployeeID EmployeeID  `json:"assignedEmployeeId,omitempty"`
	CompletedAtTick    *int64      `json:"completedAtTick,omitempty"`
	Context            TaskContext `json:"context"`
}

func (t TaskInstance) clone() TaskInstance {
	out := t
	out.DueTick = cloneInt64Ptr(t.DueTick)
	out.CompletedAtTick = cloneInt64Ptr(t.CompletedAtTick)
	out.Context.PlantCount = cloneFloatPtr(t.Context.PlantCount)
	out.Context.AreaSquareMeters = cloneFloatPtr(t.Context.AreaSquareMeters)
	return out
}

// =============================================================================
// TELEMETRY RECORDS
// =============================================================================

type KpiSnapshot struct {
	SimTimeHours           float64 `json:"simTimeHours"`
	TasksCompleted         int     `json:"tasksCompleted"`
	QueueDepth             int     `json:"queueDepth"`
	LaborHoursCommitted    float64 `json:"laborHoursCommitted"`
	OvertimeHoursCommitted float64 `json:"overtimeHoursCommitted"`
	OvertimeMinutes        float64 `json:"overtimeMinutes"`
	Utilization            float64 `json:"utilization"`
	P95WaitTimeHours       float64 `json:"p95WaitTimeHours"`
	MaintenanceBacklog     int     `json:"maintenanceBacklog"`
	AverageMorale          float64 `json:"averageMorale"`
	AverageFatigue         float64 `json:"averageFatigue"`
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Warning struct {
	SimTimeHours float64           `json:"simTimeHours"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	Severity     Severity          `json:"severity"`
	StructureID  StructureID       `json:"structureId,omitempty"`
	EmployeeID   EmployeeID        `json:"employeeId,omitempty"`
	TaskID       TaskID            `json:"taskId,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// =============================================================================
// HELPERS
// =============================================================================

// Clamp01 clamps x into [0,1]. NaN maps to 0.
func Clamp01(x float64) float64 { return clamp(x, 0, 1) }

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func validCount(p *float64) bool {
	return p == nil || (!math.IsNaN(*p) && !math.IsInf(*p, 0) && *p >= 0)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64Ptr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
