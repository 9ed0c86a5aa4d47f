package scheduler

import "github.com/finsight-ai/finsight/internal/invoker"

// defaultAgents is the full analysis pipeline. Enabling or disabling an
// agent is an edit to this table, not a code branch; the stage structure
// is derived from the dependency sets.
var defaultAgents = []invoker.TaskDescriptor{
	// Analysts read raw data and form independent views.
	{
		AgentID: "market_analyst",
		Role:    "a market technician specializing in price action and momentum",
		Prompt:  "Assess the instrument's recent price trend, momentum, and key technical levels.",
		Tier:    invoker.TierCore,
	},
	{
		AgentID: "news_analyst",
		Role:    "a financial news analyst",
		Prompt:  "Summarize recent company and market news and judge its likely price impact.",
		Tier:    invoker.TierCore,
	},
	{
		AgentID: "fundamentals_analyst",
		Role:    "a fundamentals analyst focused on financial statements",
		Prompt:  "Evaluate revenue, margins, cash flow, and balance-sheet quality.",
		Tier:    invoker.TierCore,
	},
	{
		AgentID: "sentiment_analyst",
		Role:    "a social and retail sentiment analyst",
		Prompt:  "Gauge investor sentiment and crowding around the instrument.",
		Tier:    invoker.TierImportant,
	},
	{
		AgentID: "industry_analyst",
		Role:    "a sector specialist",
		Prompt:  "Place the company within its industry: competitive position, cycle phase, peers.",
		Tier:    invoker.TierImportant,
	},
	{
		AgentID: "valuation_analyst",
		Role:    "a valuation specialist",
		Prompt:  "Judge whether the current price is cheap or expensive versus history and peers.",
		Tier:    invoker.TierImportant,
	},
	{
		AgentID: "macro_analyst",
		Role:    "a macro strategist",
		Prompt:  "Assess the macro backdrop (rates, currency, policy) relevant to this instrument.",
		Tier:    invoker.TierOptional,
	},
	{
		AgentID: "insider_analyst",
		Role:    "an analyst tracking insider and institutional activity",
		Prompt:  "Review recent insider transactions and institutional positioning.",
		Tier:    invoker.TierOptional,
	},

	// Researchers argue opposing cases from the analysts' views.
	{
		AgentID:      "bull_researcher",
		Role:         "a researcher building the strongest possible bull case",
		Prompt:       "Using the prior analysis, argue the best case for buying.",
		Dependencies: []string{"market_analyst", "news_analyst", "fundamentals_analyst", "sentiment_analyst"},
		Tier:         invoker.TierCore,
	},
	{
		AgentID:      "bear_researcher",
		Role:         "a researcher building the strongest possible bear case",
		Prompt:       "Using the prior analysis, argue the best case for selling or avoiding.",
		Dependencies: []string{"market_analyst", "news_analyst", "fundamentals_analyst", "sentiment_analyst"},
		Tier:         invoker.TierCore,
	},
	{
		AgentID:      "contrarian_researcher",
		Role:         "a contrarian researcher",
		Prompt:       "Identify where the consensus view from prior analysis is most likely wrong.",
		Dependencies: []string{"news_analyst", "sentiment_analyst"},
		Tier:         invoker.TierOptional,
	},

	// The research manager reconciles the debate.
	{
		AgentID:      "research_manager",
		Role:         "a research director weighing the bull and bear arguments",
		Prompt:       "Weigh both cases and issue a single directional research view with conviction level.",
		Dependencies: []string{"bull_researcher", "bear_researcher"},
		Tier:         invoker.TierCore,
	},

	// The trader turns the view into a plan.
	{
		AgentID:      "trader",
		Role:         "a trader translating research into an actionable plan",
		Prompt:       "Propose a concrete trade plan: direction, sizing, entry, and exit conditions.",
		Dependencies: []string{"research_manager"},
		Tier:         invoker.TierCore,
	},

	// Risk debators stress the plan from three postures.
	{
		AgentID:      "risky_debator",
		Role:         "an aggressive risk debator arguing for maximum upside capture",
		Prompt:       "Critique the trade plan from an aggressive, return-maximizing stance.",
		Dependencies: []string{"trader"},
		Tier:         invoker.TierImportant,
	},
	{
		AgentID:      "neutral_debator",
		Role:         "a balanced risk debator",
		Prompt:       "Critique the trade plan from a balanced risk/reward stance.",
		Dependencies: []string{"trader"},
		Tier:         invoker.TierImportant,
	},
	{
		AgentID:      "safe_debator",
		Role:         "a conservative risk debator focused on capital preservation",
		Prompt:       "Critique the trade plan from a capital-preservation stance.",
		Dependencies: []string{"trader"},
		Tier:         invoker.TierImportant,
	},

	// The risk judge rules on the debate.
	{
		AgentID:      "risk_judge",
		Role:         "a chief risk officer ruling on the risk debate",
		Prompt:       "Rule on the risk debate and set binding risk constraints for the plan.",
		Dependencies: []string{"risky_debator", "neutral_debator", "safe_debator"},
		Tier:         invoker.TierCore,
	},

	// The portfolio manager signs off the final decision.
	{
		AgentID:      "portfolio_manager",
		Role:         "a portfolio manager making the final call",
		Prompt:       "Issue the final decision: buy, sell, or hold, with the approved plan and constraints.",
		Dependencies: []string{"trader", "risk_judge"},
		Tier:         invoker.TierCore,
	},
}

// DefaultAgents returns a copy of the built-in agent table.
func DefaultAgents() []invoker.TaskDescriptor {
	out := make([]invoker.TaskDescriptor, len(defaultAgents))
	copy(out, defaultAgents)
	return out
}

// filterByTier drops optional agents when includeOptional is false,
// then prunes dangling dependencies so the remaining graph stays valid.
func filterByTier(tasks []invoker.TaskDescriptor, includeOptional bool) []invoker.TaskDescriptor {
	if includeOptional {
		return tasks
	}

	kept := make(map[string]struct{})
	var out []invoker.TaskDescriptor
	for _, t := range tasks {
		if t.Tier == invoker.TierOptional {
			continue
		}
		kept[t.AgentID] = struct{}{}
		out = append(out, t)
	}

	for i := range out {
		var deps []string
		for _, d := range out[i].Dependencies {
			if _, ok := kept[d]; ok {
				deps = append(deps, d)
			}
		}
		out[i].Dependencies = deps
	}
	return out
}
