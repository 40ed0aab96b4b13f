// Package action validates and executes agent intents against the world
// store and token ledger, consulting the location catalog for rules and the
// faction manager for yield bonuses. One intent runs to completion at a
// time: the processor's mutex is the serialization boundary that keeps
// compound inventory+ledger+stats updates from interleaving.
package action

import (
	"github.com/moncraft/monworld/internal/catalog"
)

// Kind dispatches an action to its handler.
type Kind string

const (
	KindMove   Kind = "move"
	KindGather Kind = "gather"
	KindCraft  Kind = "craft"
	KindTrade  Kind = "trade"
	KindRest   Kind = "rest"
)

// TradeLine is one offered inventory position in a trade action.
type TradeLine struct {
	Resource catalog.ResourceType `json:"resource"`
	Quality  catalog.Quality      `json:"quality"`
	Quantity int                  `json:"quantity"`
}

// Action is one agent intent.
type Action struct {
	AgentID string `json:"agent_id"`
	Kind    Kind   `json:"kind"`

	// Move.
	TargetLocation string `json:"target_location,omitempty"`

	// Gather.
	Resource catalog.ResourceType `json:"resource,omitempty"`

	// Craft.
	RecipeID string `json:"recipe_id,omitempty"`

	// Trade.
	Offer []TradeLine `json:"offer,omitempty"`
}

// ItemGain is one inventory credit reported on a result.
type ItemGain struct {
	Resource catalog.ResourceType `json:"resource"`
	Quality  catalog.Quality      `json:"quality"`
	Quantity int                  `json:"quantity"`
}

// Result is the typed outcome of one action. Rule violations are reported
// here with Success=false and a code, never as Go errors.
type Result struct {
	Success     bool       `json:"success"`
	Code        string     `json:"code,omitempty"`
	Message     string     `json:"message"`
	MonEarned   float64    `json:"mon_earned,omitempty"`
	ItemsGained []ItemGain `json:"items_gained,omitempty"`
	NewLocation string     `json:"new_location,omitempty"`
	TravelTime  int        `json:"travel_time,omitempty"` // Seconds.
	SkillGained int        `json:"skill_gained,omitempty"`
}

func fail(code, message string) Result {
	return Result{Success: false, Code: code, Message: message}
}
