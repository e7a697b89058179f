package routing

import (
	"context"
)

// RuleFetcher retrieves an organization's rules for a payload category.
type RuleFetcher interface {
	FetchRules(ctx context.Context, organizationID string, category Category) ([]RoutingRule, error)
}

// DecisionService resolves the destination adapters for a payload by
// composing the rule fetcher and the rule engine. Every call re-fetches the
// organization's rules: decisions never share state across messages, at the
// cost of repeated registry load under high message volume.
type DecisionService struct {
	fetcher RuleFetcher
	engine  *Engine
}

// NewDecisionService creates a decision service over the given fetcher.
func NewDecisionService(fetcher RuleFetcher) *DecisionService {
	return &DecisionService{
		fetcher: fetcher,
		engine:  NewEngine(),
	}
}

// DetermineDestinations returns the resolved destination adapter identifiers
// for the payload. Fetcher failures (registry unavailable, no rules
// configured) and engine failures (no route found) propagate unchanged as
// their typed errors.
func (s *DecisionService) DetermineDestinations(ctx context.Context, payload interface{}, organizationID string, category Category) ([]string, error) {
	rules, err := s.fetcher.FetchRules(ctx, organizationID, category)
	if err != nil {
		return nil, err
	}
	return s.engine.Run(payload, rules, organizationID)
}
