package config

import (
	"github.com/bnema/fungame/internal/application"
	"github.com/bnema/fungame/internal/domain"
)

func (c Config) Rules() domain.Rules {
	return domain.Rules{
		WorldProperties:    c.Game.Engine.WorldProperties,
		CoreMechanics:      c.Game.Engine.CoreMechanics,
		Do:                 c.Game.Engine.InteractionRules.Do,
		Dont:               c.Game.Engine.InteractionRules.Dont,
		ResponseGuidelines: c.Game.Engine.ResponseGuidelines,
	}
}

func (c Config) Gate() application.GateConfig {
	verdict, err := domain.ParseVerdict(c.Game.Filter.DefaultBehavior)
	if err != nil {
		verdict = domain.VerdictAdmit
	}

	return application.GateConfig{
		Examples: domain.ClassifierExamples{
			Accept: c.Game.Filter.Examples.Accept,
			Reject: c.Game.Filter.Examples.Reject,
		},
		Default:         verdict,
		Threshold:       c.Classifier.Threshold,
		Timeout:         c.Classifier.Timeout,
		CommandPrefixes: []string{c.Channel.CommandPrefix},
		Mentions:        c.Channel.Mentions,
	}
}

func (c Config) Controller() application.ControllerConfig {
	inventories := make(map[domain.PlayerID]domain.Inventory, len(c.Game.Start.Inventories))
	for player, items := range c.Game.Start.Inventories {
		inventory := domain.Inventory{}
		for item, quantity := range items {
			inventory[item] = quantity
		}
		inventories[domain.PlayerID(player)] = inventory
	}

	operators := make([]domain.PlayerID, 0, len(c.Channel.Operators))
	for _, operator := range c.Channel.Operators {
		operators = append(operators, domain.PlayerID(operator))
	}

	return application.ControllerConfig{
		Start: application.StartConfig{
			World:       c.Game.Start.World,
			Inventories: inventories,
		},
		Arbitration: application.ArbitratorConfig{
			Window:           c.Arbitration.Window,
			FairnessRotation: c.Arbitration.FairnessRotation,
			EarlyResolve:     c.Arbitration.EarlyResolve,
			ActiveWithin:     c.Arbitration.ActiveWithin,
			NarratorAttempts: c.Narrator.Attempts,
			NarratorTimeout:  c.Narrator.Timeout,
			RetryInitial:     c.Narrator.RetryInitial,
			RetryMax:         c.Narrator.RetryMax,
			MaxRequeues:      c.Narrator.MaxRequeues,
			ContextTurns:     c.Narrator.ContextTurns,
			Rules:            c.Rules(),
		},
		IdleTimeout:   c.Session.IdleTimeout,
		CommandPrefix: c.Channel.CommandPrefix,
		Operators:     operators,
		RefusalMode:   application.RefusalMode(c.Refusal.Mode),
		Notices:       application.Notices{Refusal: c.Refusal.Text},
	}
}
