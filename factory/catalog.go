/*
Package factory converts catalog and scenario definitions into engine input.

PURPOSE:
  Catalogs (structures, roles, task definitions, skill and trait
  vocabularies) and scenarios (seed roster plus opening intents) are data.
  Operators edit them as YAML or JSON files; the factory turns them into
  workforce.Catalog values and tick-0 states without code changes.

FILE FORMATS:
  .yaml / .yml and .json are accepted. Both go through the same JSON field
  names, so a catalog can be moved between formats without renaming keys:

    structures:
      - id: greenhouse-north
        name: North Greenhouse
    roles:
      - id: role-gardener
        slug: gardener
        name: Gardener
        coreSkills:
          - skillKey: gardening
            minSkill01: 0.2
    taskDefinitions:
      - taskCode: water_plants
        category: cultivation
        requiredRoleSlug: gardener
        priority: 50
        costModel: {basis: perPlant, laborMinutes: 0.5}

VALIDATION:
  Every parsed catalog is run through workforce.NewCatalogIndex, so a file
  that loads is a file the engine accepts.

USAGE:
  cat, err := factory.LoadCatalog("catalogs/greenhouse.yaml")
  if err != nil {
      log.Fatal(err)
  }
  engine, err := workforce.NewEngine(cat, workforce.DefaultTuning())

SEE ALSO:
  - factory/scenarios.go: Scenario definitions
  - workforce/catalog.go: Catalog type and index
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/warp/workforce-engine/workforce"
)

// Format names a definition file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format by file extension. Unknown extensions are
// treated as YAML, which also parses plain JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// decode unmarshals raw into out using JSON field names for both formats.
// YAML is first decoded generically and re-encoded as JSON.
func decode(raw []byte, format Format, out any) error {
	if format == FormatYAML {
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to convert YAML: %w", err)
		}
		raw = converted
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// =============================================================================
// CATALOG PARSING
// =============================================================================

// ParseCatalog parses and validates a catalog document.
func ParseCatalog(raw []byte, format Format) (workforce.Catalog, error) {
	var cat workforce.Catalog
	if err := decode(raw, format, &cat); err != nil {
		return workforce.Catalog{}, fmt.Errorf("catalog: %w", err)
	}
	if _, err := workforce.NewCatalogIndex(cat); err != nil {
		return workforce.Catalog{}, err
	}
	return cat, nil
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (workforce.Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return workforce.Catalog{}, err
	}
	cat, err := ParseCatalog(raw, FormatFromPath(path))
	if err != nil {
		return workforce.Catalog{}, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// MarshalCatalog encodes a catalog in the given format.
func MarshalCatalog(cat workforce.Catalog, format Format) ([]byte, error) {
	if format == FormatJSON {
		return json.MarshalIndent(cat, "", "  ")
	}
	return yaml.Marshal(cat)
}

// =============================================================================
// PRESET CATALOG
// =============================================================================

// Structure ids used by the preset catalog and scenarios.
const (
	GreenhouseNorth workforce.StructureID = "greenhouse-north"
	GreenhouseSouth workforce.StructureID = "greenhouse-south"
)

// Role ids used by the preset catalog and scenarios.
const (
	RoleGardener   workforce.RoleID = "role-gardener"
	RoleTechnician workforce.RoleID = "role-technician"
	RoleJanitor    workforce.RoleID = "role-janitor"
)

func rate(v float64) *float64 { return &v }

// GreenhouseCatalog returns the stock two-greenhouse catalog.
func GreenhouseCatalog() workforce.Catalog {
	return workforce.Catalog{
		Structures: []workforce.Structure{
			{ID: GreenhouseNorth, Name: "North Greenhouse"},
			{ID: GreenhouseSouth, Name: "South Greenhouse"},
		},
		Roles: []workforce.Role{
			{
				ID:   RoleGardener,
				Slug: "gardener",
				Name: "Gardener",
				CoreSkills: []workforce.SkillRequirement{
					{SkillKey: "gardening", MinSkill01: 0.2},
				},
			},
			{
				ID:   RoleTechnician,
				Slug: "technician",
				Name: "Technician",
				CoreSkills: []workforce.SkillRequirement{
					{SkillKey: "maintenance", MinSkill01: 0.3},
					{SkillKey: "logistics", MinSkill01: 0.1},
				},
				BaseRateMultiplier: rate(1.25),
			},
			{
				ID:   RoleJanitor,
				Slug: "janitor",
				Name: "Janitor",
				CoreSkills: []workforce.SkillRequirement{
					{SkillKey: "cleanliness", MinSkill01: 0.2},
				},
				BaseRateMultiplier: rate(0.9),
			},
		},
		TaskDefinitions: []workforce.TaskDefinition{
			{
				TaskCode:         "repair_device",
				Description:      "Repair a failed device",
				Category:         workforce.CategoryMaintenance,
				RequiredRoleSlug: "technician",
				RequiredSkills:   []workforce.SkillRequirement{{SkillKey: "maintenance", MinSkill01: 0.4}},
				Priority:         90,
				CostModel:        workforce.CostModel{Basis: workforce.BasisPerAction, LaborMinutes: 90},
			},
			{
				TaskCode:         "inspect_device",
				Description:      "Routine device inspection",
				Category:         workforce.CategoryMaintenance,
				RequiredRoleSlug: "technician",
				Priority:         60,
				CostModel:        workforce.CostModel{Basis: workforce.BasisPerAction, LaborMinutes: 30},
			},
			{
				TaskCode:         "harvest_plants",
				Description:      "Harvest ripe plants",
				Category:         workforce.CategoryHarvest,
				RequiredRoleSlug: "gardener",
				RequiredSkills:   []workforce.SkillRequirement{{SkillKey: "gardening", MinSkill01: 0.3}},
				Priority:         80,
				CostModel:        workforce.CostModel{Basis: workforce.BasisPerPlant, LaborMinutes: 1.5},
			},
			{
				TaskCode:         "water_plants",
				Description:      "Water and feed plants",
				Category:         workforce.CategoryCultivation,
				RequiredRoleSlug: "gardener",
				Priority:         50,
				CostModel:        workforce.CostModel{Basis: workforce.BasisPerPlant, LaborMinutes: 0.5},
			},
			{
				TaskCode:         "prune_plants",
				Description:      "Prune and train canopy",
				Category:         workforce.CategoryCultivation,
				RequiredRoleSlug: "gardener",
				RequiredSkills:   []workforce.SkillRequirement{{SkillKey: "gardening", MinSkill01: 0.5}},
				Priority:         40,
				CostModel:        workforce.CostModel{Basis: workforce.BasisPerPlant, LaborMinutes: 2},
			},
			{
				TaskCode:         "clean_zone",
				Description:      "Sanitize a growing zone",
				Category:         workforce.CategoryCleaning,
				RequiredRoleSlug: "janitor",
				Priority:         30,
				CostModel:        workforce.CostModel{Basis: workforce.BasisPerSquareMeter, LaborMinutes: 0.2},
			},
			{
				TaskCode:         "restock_supplies",
				Description:      "Restock nutrients and consumables",
				Category:         workforce.CategoryGeneral,
				Priority:         20,
				CostModel:        workforce.CostModel{Basis: workforce.BasisPerAction, LaborMinutes: 45},
			},
			{
				TaskCode:    "breakroom_rest",
				Description: "Rest in the breakroom",
				Category:    workforce.CategoryBreakroom,
				Priority:    10,
				CostModel:   workforce.CostModel{Basis: workforce.BasisPerAction, LaborMinutes: 30},
			},
		},
		Skills: []string{"gardening", "maintenance", "cleanliness", "logistics", "administration"},
		Traits: []string{"diligent", "frugal", "cheerful", "meticulous", "night_owl"},
	}
}
