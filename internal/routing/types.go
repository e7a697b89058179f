// Package routing implements the destination resolution core of the EPCIS
// messaging hub: organization-configured routing rules are fetched from the
// rules registry, evaluated against an inbound payload, and the union of all
// matching rules' destinations is returned.
//
// The package is split along its collaborators:
//
// 1. Condition evaluation: operator dispatch over JSONPath-resolved values
// 2. Engine: union-of-matches accumulation over an ordered rule list
// 3. RegistryClient: rules registry HTTP client with category filtering
// 4. DecisionService: the public contract consumed by the queue processor
package routing

import "strconv"

// Category identifies the payload type a rule applies to. Rules of the wrong
// category for the active payload are filtered out before evaluation.
type Category string

const (
	// CategoryMasterdata applies to EPCIS master-data payloads
	CategoryMasterdata Category = "masterdata"
	// CategoryEvent applies to EPCIS event payloads
	CategoryEvent Category = "event"
)

// Valid reports whether the category is one of the known payload types.
func (c Category) Valid() bool {
	return c == CategoryMasterdata || c == CategoryEvent
}

// AdapterPath returns the destination adapter URL path segment for the
// category. Event payloads post to the plural "events" segment.
func (c Category) AdapterPath() string {
	if c == CategoryEvent {
		return "events"
	}
	return "masterdata"
}

// IDKey returns the payload identifier key used in envelopes and adapter
// request bodies for this category.
func (c Category) IDKey() string {
	if c == CategoryEvent {
		return "eventid"
	}
	return "masterdataid"
}

// Operator is the closed set of rule comparison semantics. Only "equals" and
// "isLike" are exercised by organization rules today; adding an operator means
// adding a constant here and an entry in the matcher dispatch table.
type Operator string

const (
	// OperatorEqual matches when any resolved value string-equals the comparand
	OperatorEqual Operator = "equals"
	// OperatorLike matches when any resolved value matches the comparand as a
	// wildcard pattern, with '*' standing for any run of characters
	OperatorLike Operator = "isLike"
)

// RoutingRule is a single organization-configured rule in its evaluated form.
type RoutingRule struct {
	ID           string   `json:"id"`
	Category     Category `json:"category"`
	FieldPath    string   `json:"field_path"`   // JSONPath selecting values from the payload
	Operator     Operator `json:"operator"`     // comparison semantics
	Value        string   `json:"value"`        // comparand, prefix already applied
	Destinations []string `json:"destinations"` // adapter identifiers activated on match
	Priority     int      `json:"priority"`     // evaluation-order hint only
}

// RuleRecord is the raw rule shape returned by the rules registry.
type RuleRecord struct {
	ID                  int64    `json:"id"`
	OrganizationID      int64    `json:"organization_id"`
	DatafieldType       string   `json:"datafield_type"`
	DatafieldPath       string   `json:"datafield_path"`
	DatafieldPrefix     string   `json:"datafield_prefix"`
	ComparatorOperation string   `json:"comparator_operation"`
	Value               string   `json:"value"`
	Destinations        []string `json:"destinations"`
	Order               int      `json:"order"`
}

// toRule translates a registry record into its evaluated form. The comparand
// is the record value with the legacy prefix applied; a non-positive order
// falls back to priority 1.
func (r RuleRecord) toRule() RoutingRule {
	priority := r.Order
	if priority <= 0 {
		priority = 1
	}
	return RoutingRule{
		ID:           strconv.FormatInt(r.ID, 10),
		Category:     Category(r.DatafieldType),
		FieldPath:    r.DatafieldPath,
		Operator:     Operator(r.ComparatorOperation),
		Value:        r.DatafieldPrefix + r.Value,
		Destinations: r.Destinations,
		Priority:     priority,
	}
}
