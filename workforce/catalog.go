package workforce

import (
	"fmt"
	"sort"
)

// =============================================================================
// CATALOG - Immutable reference data passed into every engine call
// =============================================================================

type Structure struct {
	ID   StructureID `json:"id" yaml:"id"`
	Name string      `json:"name" yaml:"name"`
}

// Catalog is the static reference data for a simulation: structures, roles,
// task definitions and the skill/trait vocabularies the hiring market draws
// from. It is never mutated by the engine.
type Catalog struct {
	Structures      []Structure      `json:"structures" yaml:"structures"`
	Roles           []Role           `json:"roles" yaml:"roles"`
	TaskDefinitions []TaskDefinition `json:"taskDefinitions" yaml:"taskDefinitions"`
	Skills          []string         `json:"skills" yaml:"skills"`
	Traits          []string         `json:"traits" yaml:"traits"`
}

// CatalogIndex is a validated, lookup-friendly view over a Catalog.
type CatalogIndex struct {
	catalog     Catalog
	structures  map[StructureID]Structure
	roles       map[RoleID]Role
	rolesBySlug map[string]Role
	defs        map[TaskCode]TaskDefinition
}

// NewCatalogIndex validates c and builds lookup maps.
func NewCatalogIndex(c Catalog) (*CatalogIndex, error) {
	idx := &CatalogIndex{
		catalog:     c,
		structures:  make(map[StructureID]Structure, len(c.Structures)),
		roles:       make(map[RoleID]Role, len(c.Roles)),
		rolesBySlug: make(map[string]Role, len(c.Roles)),
		defs:        make(map[TaskCode]TaskDefinition, len(c.TaskDefinitions)),
	}

	for _, s := range c.Structures {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog: structure with empty id")
		}
		if _, dup := idx.structures[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate structure %s", s.ID)
		}
		idx.structures[s.ID] = s
	}

	for _, r := range c.Roles {
		if r.ID == "" || r.Slug == "" {
			return nil, fmt.Errorf("catalog: role needs id and slug")
		}
		if _, dup := idx.roles[r.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate role %s", r.ID)
		}
		if _, dup := idx.rolesBySlug[r.Slug]; dup {
			return nil, fmt.Errorf("catalog: duplicate role slug %s", r.Slug)
		}
		if m := r.BaseRateMultiplier; m != nil && (*m < MinBaseRateMultiplier || *m > MaxBaseRateMultiplier) {
			return nil, fmt.Errorf("catalog: role %s baseRateMultiplier %v out of bounds", r.ID, *m)
		}
		idx.roles[r.ID] = r
		idx.rolesBySlug[r.Slug] = r
	}

	for _, d := range c.TaskDefinitions {
		if d.TaskCode == "" {
			return nil, fmt.Errorf("catalog: task definition with empty code")
		}
		if _, dup := idx.defs[d.TaskCode]; dup {
			return nil, fmt.Errorf("catalog: duplicate task code %s", d.TaskCode)
		}
		if d.CostModel.LaborMinutes < 0 {
			return nil, fmt.Errorf("catalog: task %s has negative labor minutes", d.TaskCode)
		}
		switch d.CostModel.Basis {
		case BasisPerAction, BasisPerPlant, BasisPerSquareMeter:
		default:
			return nil, fmt.Errorf("catalog: task %s has unknown cost basis %q", d.TaskCode, d.CostModel.Basis)
		}
		if d.RequiredRoleSlug != "" {
			if _, ok := idx.rolesBySlug[d.RequiredRoleSlug]; !ok {
				return nil, fmt.Errorf("catalog: task %s requires unknown role %s", d.TaskCode, d.RequiredRoleSlug)
			}
		}
		idx.defs[d.TaskCode] = d
	}

	return idx, nil
}

// MustCatalogIndex is NewCatalogIndex for fixtures and presets.
func MustCatalogIndex(c Catalog) *CatalogIndex {
	idx, err := NewCatalogIndex(c)
	if err != nil {
		panic(err)
	}
	return idx
}

func (ci *CatalogIndex) Catalog() Catalog { return ci.catalog }

func (ci *CatalogIndex) Structure(id StructureID) (Structure, bool) {
	s, ok := ci.structures[id]
	return s, ok
}

func (ci *CatalogIndex) Role(id RoleID) (Role, bool) {
	r, ok := ci.roles[id]
	return r, ok
}

func (ci *CatalogIndex) RoleBySlug(slug string) (Role, bool) {
	r, ok := ci.rolesBySlug[slug]
	return r, ok
}

func (ci *CatalogIndex) TaskDefinition(code TaskCode) (TaskDefinition, bool) {
	d, ok := ci.defs[code]
	return d, ok
}

// SortedRoles returns roles ordered by id.
func (ci *CatalogIndex) SortedRoles() []Role {
	out := append([]Role(nil), ci.catalog.Roles...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
