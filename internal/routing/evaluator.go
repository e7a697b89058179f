package routing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// MatcherFunc evaluates one operator: given the values a rule's field path
// resolved from the fact document and the rule's comparand, it reports
// whether the condition holds. Implementations must be pure and must treat
// malformed input as a non-match, never as an error.
type MatcherFunc func(resolved []interface{}, comparand string) bool

// matchers is the operator dispatch table. All matchers share the
// any-element-wins contract: a condition holds if at least one resolved
// value satisfies it.
var matchers = map[Operator]MatcherFunc{
	OperatorEqual: matchEqual,
	OperatorLike:  matchLike,
}

// SupportedOperators returns the operators the evaluator can dispatch.
func SupportedOperators() []Operator {
	ops := make([]Operator, 0, len(matchers))
	for op := range matchers {
		ops = append(ops, op)
	}
	return ops
}

// Evaluate applies the operator to the resolved values. An unknown operator
// or an empty resolution is a non-match.
func Evaluate(op Operator, resolved []interface{}, comparand string) bool {
	matcher, ok := matchers[op]
	if !ok {
		return false
	}
	if len(resolved) == 0 {
		return false
	}
	return matcher(resolved, comparand)
}

func matchEqual(resolved []interface{}, comparand string) bool {
	for _, value := range resolved {
		if coerceString(value) == comparand {
			return true
		}
	}
	return false
}

func matchLike(resolved []interface{}, comparand string) bool {
	if comparand == "" {
		return false
	}
	pattern, err := compileWildcard(comparand)
	if err != nil {
		return false
	}
	for _, value := range resolved {
		if pattern.MatchString(coerceString(value)) {
			return true
		}
	}
	return false
}

// compileWildcard turns a comparand into an anchored matcher: every regexp
// metacharacter is escaped except '*', which stands for any run of characters.
func compileWildcard(comparand string) (*regexp.Regexp, error) {
	escaped := regexp.QuoteMeta(comparand)
	return regexp.Compile("^" + strings.ReplaceAll(escaped, `\*`, ".*") + "$")
}

// ResolveFieldPath applies a rule's JSONPath expression to the fact document
// and returns the selected leaf values. An unparsable path or a path that
// selects nothing resolves to an empty slice; rule paths are organization
// data, so neither is an error here.
func ResolveFieldPath(doc interface{}, fieldPath string) []interface{} {
	if fieldPath == "" {
		return nil
	}
	expr, err := jp.ParseString(fieldPath)
	if err != nil {
		return nil
	}
	return expr.Get(doc)
}

func coerceString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
