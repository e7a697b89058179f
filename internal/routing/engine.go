package routing

import (
	"sort"

	"epcis-hub/internal/common/errors"
	"epcis-hub/internal/common/logging"
)

// Engine evaluates an organization's rules against a fact document and
// accumulates the union of all matching rules' destinations. Every rule is
// checked; matching is not first-match-wins. Duplicate destinations across
// matching rules flow through unchanged so downstream dispatch counts stay
// faithful to the configured rules.
type Engine struct {
	logger logging.Logger
}

// NewEngine creates a rule engine.
func NewEngine() *Engine {
	return &Engine{
		logger: logging.WithFields(logging.String("component", "rule_engine")),
	}
}

// Run evaluates every rule against the fact document, in priority order, and
// returns the accumulated destinations of all matching rules. A rule whose
// field path resolves to nothing is a non-match, not an error. When no rule
// matches, Run fails with a no-route-found error; an empty destination list
// is never a success.
func (e *Engine) Run(doc interface{}, rules []RoutingRule, organizationID string) ([]string, error) {
	ordered := make([]RoutingRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	var destinations []string
	for _, rule := range ordered {
		resolved := ResolveFieldPath(doc, rule.FieldPath)
		if !Evaluate(rule.Operator, resolved, rule.Value) {
			continue
		}
		e.logger.Debug("Routing rule matched",
			logging.String("rule_id", rule.ID),
			logging.String("organization_id", organizationID),
			logging.Strings("destinations", rule.Destinations),
		)
		destinations = append(destinations, rule.Destinations...)
	}

	if len(destinations) == 0 {
		return nil, errors.NoRouteFoundError(organizationID)
	}
	return destinations, nil
}
