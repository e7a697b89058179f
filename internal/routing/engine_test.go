package routing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epcis-hub/internal/common/errors"
)

func factDocument(t *testing.T) interface{} {
	t.Helper()
	var doc interface{}
	err := json.Unmarshal([]byte(`{
		"epcisBody": {
			"eventList": [
				{"type": "ObjectEvent", "epcList": ["urn:epc:id:sgtin:8806555.600301.100000043536"], "bizStep": "urn:epcglobal:cbv:bizstep:commissioning"}
			]
		}
	}`), &doc)
	require.NoError(t, err)
	return doc
}

func TestEngine_Run_UnionOfMatches(t *testing.T) {
	engine := NewEngine()
	doc := factDocument(t)

	rules := []RoutingRule{
		{
			ID:           "1",
			FieldPath:    `$..epcList[*]`,
			Operator:     OperatorLike,
			Value:        "urn:epc:id:sgtin:8806555.600301.*",
			Destinations: []string{"a"},
			Priority:     1,
		},
		{
			ID:           "2",
			FieldPath:    `$..bizStep`,
			Operator:     OperatorEqual,
			Value:        "urn:epcglobal:cbv:bizstep:commissioning",
			Destinations: []string{"b"},
			Priority:     2,
		},
	}

	destinations, err := engine.Run(doc, rules, "37")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, destinations)
}

func TestEngine_Run_NoMatchFailsWithNoRouteFound(t *testing.T) {
	engine := NewEngine()
	doc := factDocument(t)

	rules := []RoutingRule{
		{
			ID:           "1",
			FieldPath:    `$..epcList[*]`,
			Operator:     OperatorLike,
			Value:        "urn:epc:id:sgtin:9906555.*",
			Destinations: []string{"a"},
			Priority:     1,
		},
	}

	destinations, err := engine.Run(doc, rules, "37")
	require.Error(t, err)
	assert.Nil(t, destinations)
	assert.True(t, errors.IsType(err, errors.ErrTypeNoRouteFound))
}

func TestEngine_Run_EmptyRuleListFailsWithNoRouteFound(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Run(factDocument(t), nil, "37")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNoRouteFound))
}

func TestEngine_Run_DuplicateDestinationsPreserved(t *testing.T) {
	engine := NewEngine()
	doc := factDocument(t)

	rules := []RoutingRule{
		{ID: "1", FieldPath: `$..bizStep`, Operator: OperatorEqual, Value: "urn:epcglobal:cbv:bizstep:commissioning", Destinations: []string{"ledger-a"}, Priority: 1},
		{ID: "2", FieldPath: `$..epcList[*]`, Operator: OperatorLike, Value: "urn:epc:id:sgtin:8806555.*", Destinations: []string{"ledger-a", "ledger-b"}, Priority: 2},
	}

	destinations, err := engine.Run(doc, rules, "37")
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger-a", "ledger-a", "ledger-b"}, destinations)
}

func TestEngine_Run_PriorityOrdersAccumulation(t *testing.T) {
	engine := NewEngine()
	doc := factDocument(t)

	rules := []RoutingRule{
		{ID: "2", FieldPath: `$..bizStep`, Operator: OperatorEqual, Value: "urn:epcglobal:cbv:bizstep:commissioning", Destinations: []string{"second"}, Priority: 5},
		{ID: "1", FieldPath: `$..bizStep`, Operator: OperatorEqual, Value: "urn:epcglobal:cbv:bizstep:commissioning", Destinations: []string{"first"}, Priority: 1},
	}

	destinations, err := engine.Run(doc, rules, "37")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, destinations)
}

func TestEngine_Run_UnresolvableFieldPathIsNonMatch(t *testing.T) {
	engine := NewEngine()
	doc := factDocument(t)

	rules := []RoutingRule{
		{ID: "1", FieldPath: `$.missing.path`, Operator: OperatorEqual, Value: "x", Destinations: []string{"a"}, Priority: 1},
		{ID: "2", FieldPath: `$..bizStep`, Operator: OperatorEqual, Value: "urn:epcglobal:cbv:bizstep:commissioning", Destinations: []string{"b"}, Priority: 2},
	}

	destinations, err := engine.Run(doc, rules, "37")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, destinations)
}
