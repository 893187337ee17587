package factory_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/workforce"
)

func newEngine(t *testing.T) *workforce.Engine {
	t.Helper()
	e, err := workforce.NewEngine(factory.GreenhouseCatalog(), workforce.DefaultTuning(),
		workforce.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return e
}

func build(t *testing.T, e *workforce.Engine, id string) (workforce.WorkforceState, []workforce.Intent) {
	t.Helper()
	sc, ok := factory.Lookup(id)
	require.True(t, ok, "scenario %s", id)
	state, intents, err := sc.Build(e)
	require.NoError(t, err)
	return state, intents
}

// =============================================================================
// CATALOG
// =============================================================================

func TestGreenhouseCatalog_IsValid(t *testing.T) {
	idx, err := workforce.NewCatalogIndex(factory.GreenhouseCatalog())
	require.NoError(t, err)

	_, ok := idx.Structure(factory.GreenhouseNorth)
	assert.True(t, ok)
	role, ok := idx.RoleBySlug("technician")
	require.True(t, ok)
	assert.InDelta(t, 1.25, role.RateMultiplier(), 1e-9)

	rest, ok := idx.TaskDefinition("breakroom_rest")
	require.True(t, ok)
	assert.True(t, rest.IsBreakroom())
}

func TestParseCatalog_YAML(t *testing.T) {
	raw := []byte(`
structures:
  - id: shed
    name: Tool Shed
roles:
  - id: role-hand
    slug: hand
    name: Farm Hand
    coreSkills:
      - skillKey: gardening
        minSkill01: 0.1
    baseRateMultiplier: 1.1
taskDefinitions:
  - taskCode: sweep
    category: cleaning
    requiredRoleSlug: hand
    priority: 5
    costModel: {basis: perSquareMeter, laborMinutes: 0.25}
skills: [gardening, cleanliness, logistics]
traits: [tidy]
`)

	cat, err := factory.ParseCatalog(raw, factory.FormatYAML)
	require.NoError(t, err)

	require.Len(t, cat.TaskDefinitions, 1)
	def := cat.TaskDefinitions[0]
	assert.Equal(t, workforce.TaskCode("sweep"), def.TaskCode)
	assert.Equal(t, workforce.CategoryCleaning, def.Category)
	assert.Equal(t, workforce.BasisPerSquareMeter, def.CostModel.Basis)
	assert.Equal(t, 0.25, def.CostModel.LaborMinutes)
	require.NotNil(t, cat.Roles[0].BaseRateMultiplier)
	assert.Equal(t, 1.1, *cat.Roles[0].BaseRateMultiplier)
	assert.Equal(t, []string{"gardening", "cleanliness", "logistics"}, cat.Skills)
}

func TestParseCatalog_RejectsUnknownRoleSlug(t *testing.T) {
	raw := []byte(`{
		"structures": [{"id": "s-1", "name": "One"}],
		"taskDefinitions": [{"taskCode": "x", "requiredRoleSlug": "ghost", "costModel": {"basis": "perAction", "laborMinutes": 5}}]
	}`)

	_, err := factory.ParseCatalog(raw, factory.FormatJSON)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role ghost")
}

func TestLoadCatalog_FormatsAgree(t *testing.T) {
	// GIVEN: The preset catalog written as JSON and as YAML
	// WHEN: Both files are loaded
	// THEN: They describe the same structures, roles and task definitions

	dir := t.TempDir()
	preset := factory.GreenhouseCatalog()

	for _, f := range []struct {
		name   string
		format factory.Format
	}{
		{"catalog.json", factory.FormatJSON},
		{"catalog.yaml", factory.FormatYAML},
	} {
		raw, err := factory.MarshalCatalog(preset, f.format)
		require.NoError(t, err)
		path := filepath.Join(dir, f.name)
		require.NoError(t, os.WriteFile(path, raw, 0o644))

		cat, err := factory.LoadCatalog(path)
		require.NoError(t, err, f.name)

		assert.Equal(t, preset.Structures, cat.Structures, f.name)
		require.Len(t, cat.TaskDefinitions, len(preset.TaskDefinitions), f.name)
		for i, def := range cat.TaskDefinitions {
			assert.Equal(t, preset.TaskDefinitions[i].TaskCode, def.TaskCode)
			assert.Equal(t, preset.TaskDefinitions[i].CostModel, def.CostModel)
			assert.Equal(t, preset.TaskDefinitions[i].Priority, def.Priority)
		}
		assert.Equal(t, preset.Traits, cat.Traits, f.name)
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, factory.FormatJSON, factory.FormatFromPath("a/b.JSON"))
	assert.Equal(t, factory.FormatYAML, factory.FormatFromPath("a/b.yml"))
	assert.Equal(t, factory.FormatYAML, factory.FormatFromPath("catalog"))
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_AllBuildAndStepWithoutRejections(t *testing.T) {
	e := newEngine(t)

	for _, sc := range factory.Scenarios() {
		t.Run(sc.ID, func(t *testing.T) {
			state, intents, err := sc.Build(e)
			require.NoError(t, err)

			res, err := e.Step(context.Background(), state, intents)
			require.NoError(t, err)
			assert.Empty(t, res.Rejected)

			summary := sc.Summary()
			assert.Len(t, res.State.Employees, summary.Employees)
			assert.Len(t, res.State.TaskQueue, summary.Tasks)
		})
	}
}

func TestScenario_GreenhouseBasicExpandsCounts(t *testing.T) {
	e := newEngine(t)

	state, intents := build(t, e, "greenhouse-basic")

	assert.Len(t, state.Employees, 7)
	_, ok := state.Employee("gardener-north-03")
	assert.True(t, ok)
	_, ok = state.Employee("tech-north")
	assert.True(t, ok, "single employees keep their id")
	assert.Len(t, intents, 13)
	for i := 1; i < len(state.Employees); i++ {
		assert.Less(t, state.Employees[i-1].ID, state.Employees[i].ID)
	}
}

func TestScenario_HiringDriveScansBothGreenhouses(t *testing.T) {
	e := newEngine(t)
	state, intents := build(t, e, "hiring-drive")

	res, err := e.Step(context.Background(), state, intents)
	require.NoError(t, err)

	assert.Equal(t, 1, res.State.Market.ScanCounters[factory.GreenhouseNorth])
	assert.Equal(t, 1, res.State.Market.ScanCounters[factory.GreenhouseSouth])
	assert.Len(t, res.State.Market.Candidates, 6)
	assert.Equal(t, "2000", workforce.LedgerTotal(res.State.Ledger, workforce.LedgerScanCost).String())
}

func TestScenario_VeteransCanNegotiateRookiesCannot(t *testing.T) {
	// GIVEN: The veteran-raises scenario
	// WHEN: A veteran and the rookie both get an accept intent on tick 1
	// THEN: The veteran's raise applies and the rookie's is dropped

	e := newEngine(t)
	state, intents := build(t, e, "veteran-raises")
	intents = append(intents,
		workforce.Intent{Type: workforce.IntentRaiseAccept, EmployeeID: "veteran-gardener-01"},
		workforce.Intent{Type: workforce.IntentRaiseAccept, EmployeeID: "rookie-gardener"},
	)

	res, err := e.Step(context.Background(), state, intents)
	require.NoError(t, err)

	vet, _ := res.State.Employee("veteran-gardener-01")
	assert.Equal(t, 1, vet.Raise.CadenceSequence)
	assert.InDelta(t, 18.9, vet.SalaryExpectationPerH, 1e-9)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, workforce.EmployeeID("rookie-gardener"), res.Dropped[0].EmployeeID)
}

func TestScenario_ReplayIsDeterministic(t *testing.T) {
	e := newEngine(t)

	run := func() string {
		state, intents := build(t, e, "greenhouse-basic")
		res, err := e.Step(context.Background(), state, intents)
		require.NoError(t, err)
		final, err := e.Run(context.Background(), res.State, 47, nil)
		require.NoError(t, err)
		digest, err := workforce.Digest(final)
		require.NoError(t, err)
		return digest
	}

	assert.Equal(t, run(), run())
}

func TestScenario_UnknownRoleFailsBuild(t *testing.T) {
	e := newEngine(t)
	sc := factory.Scenario{
		ID: "broken",
		Employees: []factory.EmployeeSpec{
			{ID: "x", StructureID: factory.GreenhouseNorth, RoleID: "role-astronaut"},
		},
	}

	_, _, err := sc.Build(e)

	assert.ErrorIs(t, err, workforce.ErrUnknownRole)
}

func TestLoadScenario_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "night-shift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
id: night-shift
name: Night Shift
seed: moon
employees:
  - id: owl
    structureId: greenhouse-south
    roleId: role-gardener
    skills: {gardening: 0.5}
    schedule: {hoursPerDay: 6, overtimeHoursPerDay: 1, daysPerWeek: 7}
tasks:
  - taskCode: water_plants
    count: 2
    context:
      scope: zone
      structureId: greenhouse-south
      zoneId: zone-n
      plantCount: 100
`), 0o644))

	sc, err := factory.LoadScenario(path)
	require.NoError(t, err)
	state, intents, err := sc.Build(newEngine(t))
	require.NoError(t, err)

	assert.Equal(t, "moon", state.Seed)
	owl, ok := state.Employee("owl")
	require.True(t, ok)
	assert.Equal(t, 6.0, owl.Schedule.HoursPerDay)
	require.Len(t, intents, 2)
	require.NotNil(t, intents[0].Context.PlantCount)
	assert.Equal(t, 100.0, *intents[0].Context.PlantCount)
}
