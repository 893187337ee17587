package workforce_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/workforce"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func ptr[T any](v T) *T { return &v }

func testCatalog() workforce.Catalog {
	return workforce.Catalog{
		Structures: []workforce.Structure{
			{ID: "s-1", Name: "North Greenhouse"},
			{ID: "s-2", Name: "South Greenhouse"},
		},
		Roles: []workforce.Role{
			{ID: "role-gardener", Slug: "gardener", Name: "Gardener",
				CoreSkills: []workforce.SkillRequirement{{SkillKey: "gardening", MinSkill01: 0.2}}},
			{ID: "role-technician", Slug: "technician", Name: "Technician",
				CoreSkills:         []workforce.SkillRequirement{{SkillKey: "maintenance", MinSkill01: 0.3}},
				BaseRateMultiplier: ptr(1.2)},
		},
		TaskDefinitions: []workforce.TaskDefinition{
			{TaskCode: "veg_high_priority", Category: workforce.CategoryCultivation, RequiredRoleSlug: "gardener",
				Priority: 90, CostModel: workforce.CostModel{Basis: workforce.BasisPerAction, LaborMinutes: 300}},
			{TaskCode: "veg_low_priority", Category: workforce.CategoryCultivation, RequiredRoleSlug: "gardener",
				Priority: 30, CostModel: workforce.CostModel{Basis: workforce.BasisPerAction, LaborMinutes: 300}},
			{TaskCode: "water_plants", Category: workforce.CategoryCultivation, RequiredRoleSlug: "gardener",
				Priority: 50, CostModel: workforce.CostModel{Basis: workforce.BasisPerPlant, LaborMinutes: 2}},
			{TaskCode: "repair_device", Category: workforce.CategoryMaintenance, RequiredRoleSlug: "technician",
				RequiredSkills: []workforce.SkillRequirement{{SkillKey: "maintenance", MinSkill01: 0.5}},
				Priority:       70, CostModel: workforce.CostModel{Basis: workforce.BasisPerAction, LaborMinutes: 60}},
			{TaskCode: "long_shift", Category: workforce.CategoryGeneral, RequiredRoleSlug: "gardener",
				Priority: 40, CostModel: workforce.CostModel{Basis: workforce.BasisPerAction, LaborMinutes: 420}},
			{TaskCode: "coffee_break", Category: workforce.CategoryBreakroom,
				Priority: 10, CostModel: workforce.CostModel{Basis: workforce.BasisPerAction, LaborMinutes: 30}},
		},
		Skills: []string{"gardening", "maintenance", "cleanliness", "logistics"},
		Traits: []string{"diligent", "frugal", "cheerful"},
	}
}

func testEmployee(id workforce.EmployeeID, structure workforce.StructureID, role workforce.RoleID) workforce.Employee {
	return workforce.Employee{
		ID:                    id,
		Name:                  string(id),
		StructureID:           structure,
		RoleID:                role,
		RngSeedUUID:           "seed-" + string(id),
		Morale01:              0.9,
		Skills:                workforce.SkillLevels{"gardening": 0.8, "maintenance": 0.6},
		Schedule:              workforce.Schedule{HoursPerDay: 8, OvertimeHoursPerDay: 0, DaysPerWeek: 7},
		BaseRateMultiplier:    1,
		LaborMarketFactor:     1,
		TimePremiumMultiplier: 1,
		SalaryExpectationPerH: 18,
	}
}

func newTestEngine(t *testing.T) *workforce.Engine {
	t.Helper()
	e, err := workforce.NewEngine(testCatalog(), workforce.DefaultTuning(),
		workforce.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return e
}

func enqueue(code workforce.TaskCode, structure workforce.StructureID) workforce.Intent {
	return workforce.Intent{
		Type:     workforce.IntentTaskEnqueue,
		TaskCode: code,
		Context:  &workforce.TaskContext{Scope: workforce.ScopeStructure, StructureID: structure},
	}
}

func step(t *testing.T, e *workforce.Engine, s workforce.WorkforceState, intents ...workforce.Intent) *workforce.TickResult {
	t.Helper()
	res, err := e.Step(context.Background(), s, intents)
	require.NoError(t, err)
	return res
}

func taskByCode(t *testing.T, s workforce.WorkforceState, code workforce.TaskCode) workforce.TaskInstance {
	t.Helper()
	for _, task := range s.TaskQueue {
		if task.TaskCode == code {
			return task
		}
	}
	t.Fatalf("no task with code %s", code)
	return workforce.TaskInstance{}
}

func topics(events []workforce.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Topic)
	}
	return out
}
