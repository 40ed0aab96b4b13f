// Compiled-in default world: eight locations around the spawn plaza hub,
// three recipes, and the base price table.
package catalog

// Default returns the built-in world definition used when no catalog file
// is supplied.
func Default() *Catalog {
	locations := []*Location{
		{
			ID:       "spawn_plaza",
			Name:     "Spawn Plaza",
			Capacity: 50,
			SafeZone: true, AllowsCrafting: true,
			RestBonus:   1.5,
			Connections: []string{"market_square", "forest", "riverbank"},
		},
		{
			ID:       "market_square",
			Name:     "Market Square",
			Capacity: 40,
			SafeZone: true, AllowsCrafting: true,
			RestBonus:   1.2,
			Connections: []string{"spawn_plaza", "forest", "arena_grounds"},
		},
		{
			ID:               "forest",
			Name:             "Whisperwood Forest",
			Capacity:         30,
			GatherDifficulty: 0.3,
			MonReward:        5,
			Connections:      []string{"spawn_plaza", "market_square", "riverbank", "quarry"},
			Resources: map[ResourceType]ResourcePool{
				ResourceWood: {Max: 200, RegenRate: 0.5},
				ResourceHerb: {Max: 80, RegenRate: 0.2},
			},
		},
		{
			ID:               "riverbank",
			Name:             "Riverbank",
			Capacity:         30,
			SafeZone:         true,
			GatherDifficulty: 0.25,
			MonReward:        4,
			RestBonus:        1.0,
			Connections:      []string{"spawn_plaza", "forest"},
			Resources: map[ResourceType]ResourcePool{
				ResourceFish: {Max: 150, RegenRate: 0.4},
				ResourceHerb: {Max: 60, RegenRate: 0.15},
			},
		},
		{
			ID:               "quarry",
			Name:             "Greystone Quarry",
			Capacity:         25,
			GatherDifficulty: 0.4,
			MonReward:        6,
			Connections:      []string{"forest", "iron_mine"},
			Resources: map[ResourceType]ResourcePool{
				ResourceStone: {Max: 180, RegenRate: 0.3},
			},
		},
		{
			ID:               "iron_mine",
			Name:             "Deepvein Mine",
			Capacity:         20,
			GatherDifficulty: 0.55,
			MonReward:        8,
			Connections:      []string{"quarry", "crystal_caves"},
			Resources: map[ResourceType]ResourcePool{
				ResourceOre: {Max: 120, RegenRate: 0.25},
			},
		},
		{
			ID:               "crystal_caves",
			Name:             "Crystal Caves",
			Capacity:         15,
			PvPZone:          true,
			GatherDifficulty: 0.7,
			MonReward:        12,
			Connections:      []string{"iron_mine"},
			Resources: map[ResourceType]ResourcePool{
				ResourceCrystal: {Max: 60, RegenRate: 0.1},
				ResourceOre:     {Max: 40, RegenRate: 0.1},
			},
		},
		{
			ID:          "arena_grounds",
			Name:        "Arena Grounds",
			Capacity:    30,
			PvPZone:     true,
			Connections: []string{"market_square"},
		},
	}

	recipes := []*Recipe{
		{
			ID:            "craft_tool",
			Name:          "Craft Tool",
			Inputs:        map[ResourceType]int{ResourceOre: 2, ResourceWood: 1},
			Output:        RecipeOutput{Type: ResourceTool, Quantity: 1, Quality: QualityCommon},
			BaseRate:      0.70,
			RequiredSkill: 0,
			MonReward:     10,
		},
		{
			ID:            "brew_potion",
			Name:          "Brew Potion",
			Inputs:        map[ResourceType]int{ResourceHerb: 2, ResourceFish: 1},
			Output:        RecipeOutput{Type: ResourcePotion, Quantity: 1, Quality: QualityCommon},
			BaseRate:      0.75,
			RequiredSkill: 5,
			MonReward:     8,
		},
		{
			ID:            "forge_weapon",
			Name:          "Forge Weapon",
			Inputs:        map[ResourceType]int{ResourceOre: 3, ResourceWood: 2, ResourceCrystal: 1},
			Output:        RecipeOutput{Type: ResourceWeapon, Quantity: 1, Quality: QualityRare},
			BaseRate:      0.55,
			RequiredSkill: 15,
			MonReward:     25,
		},
	}

	locIndex := make(map[string]*Location, len(locations))
	for _, l := range locations {
		locIndex[l.ID] = l
	}
	recipeIndex := make(map[string]*Recipe, len(recipes))
	for _, r := range recipes {
		recipeIndex[r.ID] = r
	}

	return &Catalog{
		HubID:     "spawn_plaza",
		Locations: locIndex,
		Recipes:   recipeIndex,
		Prices: map[ResourceType]float64{
			ResourceWood:    2,
			ResourceStone:   3,
			ResourceFish:    2,
			ResourceHerb:    4,
			ResourceOre:     5,
			ResourceCrystal: 12,
			ResourceTool:    20,
			ResourcePotion:  15,
			ResourceWeapon:  40,
		},
	}
}
