package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/telemetry"
	"github.com/warp/workforce-engine/workforce"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSimulate_JSON(t *testing.T) {
	out, err := execute(t, "simulate", "--scenario", "hiring-drive", "--ticks", "3", "--json")
	require.NoError(t, err)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "hiring-drive", report.Scenario)
	assert.Equal(t, int64(3), report.Ticks)
	require.Len(t, report.KPIs, 3)
	assert.Equal(t, int64(1), report.KPIs[0].Tick)
	assert.Len(t, report.Digest, 64)
	assert.Equal(t, "2000", report.LedgerTotals[workforce.LedgerScanCost].String())
}

func TestSimulate_Table(t *testing.T) {
	out, err := execute(t, "simulate", "--ticks", "6", "--every", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "greenhouse-basic")
	assert.Contains(t, out, "P95 WAIT H")
	assert.Contains(t, out, "Digest")
}

func TestSimulate_SeedAndTelemetryDir(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "simulate", "--scenario", "overtime-crunch", "--ticks", "2", "--json",
		"--seed", "moon", "--telemetry-dir", dir)
	require.NoError(t, err)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "moon", report.Seed)

	records, err := telemetry.ReadJSONL(filepath.Join(dir, "overtime-crunch-day-0000.jsonl.zst"))
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestSimulate_ScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
id: solo
seed: solo
employees:
  - id: ada
    structureId: greenhouse-north
    roleId: role-gardener
    skills: {gardening: 0.9}
tasks:
  - taskCode: water_plants
    context: {scope: zone, structureId: greenhouse-north, zoneId: z1, plantCount: 10}
`), 0o644))

	out, err := execute(t, "simulate", "--scenario", path, "--ticks", "1", "--json")
	require.NoError(t, err)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "solo", report.Scenario)
	assert.Equal(t, 1, report.Headcount)
}

func TestSimulate_Errors(t *testing.T) {
	_, err := execute(t, "simulate", "--scenario", "moon-base", "--ticks", "1")
	assert.ErrorContains(t, err, "unknown scenario")

	_, err = execute(t, "simulate", "--ticks", "0")
	assert.Error(t, err)

	_, err = execute(t, "simulate", "--log.level", "chatty")
	assert.Error(t, err)
}

func TestDigest_Match(t *testing.T) {
	out, err := execute(t, "digest", "--scenario", "veteran-raises", "--ticks", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "match")
}

func TestScenarios_List(t *testing.T) {
	out, err := execute(t, "scenarios")
	require.NoError(t, err)
	for _, id := range []string{"greenhouse-basic", "hiring-drive", "overtime-crunch", "veteran-raises"} {
		assert.Contains(t, out, id)
	}
}
