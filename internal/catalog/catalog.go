// Package catalog holds the static world definition: the location graph,
// crafting recipes, and the resource price table. The catalog is immutable
// after load; runtime state (occupancy, pool amounts) lives in the world store.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ResourceType identifies a kind of gatherable or crafted resource.
type ResourceType string

const (
	ResourceWood    ResourceType = "wood"
	ResourceStone   ResourceType = "stone"
	ResourceOre     ResourceType = "ore"
	ResourceHerb    ResourceType = "herb"
	ResourceFish    ResourceType = "fish"
	ResourceCrystal ResourceType = "crystal"

	// Crafted goods. Not gatherable; produced by recipes only.
	ResourceTool   ResourceType = "tool"
	ResourcePotion ResourceType = "potion"
	ResourceWeapon ResourceType = "weapon"
)

// Quality grades a gathered or crafted item.
type Quality string

const (
	QualityCommon    Quality = "common"
	QualityRare      Quality = "rare"
	QualityLegendary Quality = "legendary"
)

// ResourcePool describes a location's capacity for one resource type.
type ResourcePool struct {
	Max       float64 `yaml:"max"`
	RegenRate float64 `yaml:"regen_rate"` // Units regenerated per second.
}

// Location is a node in the world graph.
type Location struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`

	SafeZone       bool `yaml:"safe_zone"`
	AllowsCrafting bool `yaml:"allows_crafting"`
	PvPZone        bool `yaml:"pvp_zone"`

	GatherDifficulty float64 `yaml:"gather_difficulty"` // 0 (trivial) .. 1 (near impossible)
	MonReward        float64 `yaml:"mon_reward"`        // MON credited per unit gathered here.
	RestBonus        float64 `yaml:"rest_bonus"`        // Skill recovery multiplier when resting.

	Connections []string                      `yaml:"connections"`
	Resources   map[ResourceType]ResourcePool `yaml:"resources"`
}

// RecipeOutput is the fixed product of a successful craft.
type RecipeOutput struct {
	Type     ResourceType `yaml:"type"`
	Quantity int          `yaml:"quantity"`
	Quality  Quality      `yaml:"quality"`
}

// Recipe is a static crafting formula.
type Recipe struct {
	ID            string               `yaml:"id"`
	Name          string               `yaml:"name"`
	Inputs        map[ResourceType]int `yaml:"inputs"`
	Output        RecipeOutput         `yaml:"output"`
	BaseRate      float64              `yaml:"base_rate"`      // Success probability at RequiredSkill.
	RequiredSkill int                  `yaml:"required_skill"` // Crafting skill the BaseRate assumes.
	MonReward     float64              `yaml:"mon_reward"`
}

// Catalog bundles the full static world definition.
type Catalog struct {
	HubID     string                   `yaml:"hub_id"`
	Locations map[string]*Location     `yaml:"locations"`
	Recipes   map[string]*Recipe       `yaml:"recipes"`
	Prices    map[ResourceType]float64 `yaml:"prices"`
}

// Load reads a catalog from a YAML file. An empty path returns the
// compiled-in default world.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	// The map key is the canonical id; per-entry id fields are optional.
	for id, loc := range c.Locations {
		if loc.ID == "" {
			loc.ID = id
		}
	}
	for id, r := range c.Recipes {
		if r.ID == "" {
			r.ID = id
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return &c, nil
}

// Validate checks internal consistency: hub exists, edges are symmetric and
// resolve, recipe inputs/outputs name known resources.
func (c *Catalog) Validate() error {
	if _, ok := c.Locations[c.HubID]; !ok {
		return fmt.Errorf("hub location %q not defined", c.HubID)
	}
	for id, loc := range c.Locations {
		if loc.ID != id {
			return fmt.Errorf("location %q keyed as %q", loc.ID, id)
		}
		if loc.Capacity <= 0 {
			return fmt.Errorf("location %q has capacity %d", id, loc.Capacity)
		}
		for _, other := range loc.Connections {
			target, ok := c.Locations[other]
			if !ok {
				return fmt.Errorf("location %q connects to unknown %q", id, other)
			}
			if !contains(target.Connections, id) {
				return fmt.Errorf("asymmetric edge: %q -> %q has no reverse", id, other)
			}
		}
	}
	for id, r := range c.Recipes {
		for rt := range r.Inputs {
			if _, ok := c.Prices[rt]; !ok {
				return fmt.Errorf("recipe %q input %q has no price entry", id, rt)
			}
		}
		if _, ok := c.Prices[r.Output.Type]; !ok {
			return fmt.Errorf("recipe %q output %q has no price entry", id, r.Output.Type)
		}
		if r.Output.Quantity <= 0 {
			return fmt.Errorf("recipe %q output quantity %d", id, r.Output.Quantity)
		}
	}
	return nil
}

// Connected reports whether two locations share an edge. The lookup is
// symmetric: either side listing the other counts.
func (c *Catalog) Connected(a, b string) bool {
	la, ok := c.Locations[a]
	if !ok {
		return false
	}
	lb, ok := c.Locations[b]
	if !ok {
		return false
	}
	return contains(la.Connections, b) || contains(lb.Connections, a)
}

// Location returns a location by id, or nil.
func (c *Catalog) Location(id string) *Location {
	return c.Locations[id]
}

// Recipe returns a recipe by id, or nil.
func (c *Catalog) Recipe(id string) *Recipe {
	return c.Recipes[id]
}

// Value prices one unit of a resource at a given quality tier.
func (c *Catalog) Value(rt ResourceType, q Quality) float64 {
	return c.Prices[rt] * QualityMultiplier(q)
}

// QualityMultiplier scales a base price by item quality.
func QualityMultiplier(q Quality) float64 {
	switch q {
	case QualityRare:
		return 2.5
	case QualityLegendary:
		return 6.0
	default:
		return 1.0
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
