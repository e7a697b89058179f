// Package alerts resolves stable numeric error codes into operator-readable
// messages and forwards them to the alert sink. The code table is an
// immutable package-level table: loaded once, read-only thereafter.
package alerts

import "fmt"

// Code identifies an operator-visible failure condition. Codes are stable:
// operators and downstream tooling key on them, so existing values never
// change meaning.
type Code int

const (
	// CodeMissingOrganizationID - envelope lacks the organization id header
	CodeMissingOrganizationID Code = 1001
	// CodeMissingMessageID - envelope lacks the masterdata/event id header
	CodeMissingMessageID Code = 1002
	// CodeMissingClientID - envelope lacks the client id header
	CodeMissingClientID Code = 1003
	// CodeEmptyPayload - message body is missing or empty
	CodeEmptyPayload Code = 1004
	// CodeInvalidPayload - message body is not valid JSON
	CodeInvalidPayload Code = 1005
	// CodeRegistryUnavailable - rules registry call failed or returned non-2xx
	CodeRegistryUnavailable Code = 2001
	// CodeNoRulesConfigured - organization has no applicable routing rules
	CodeNoRulesConfigured Code = 2002
	// CodeNoRouteFound - rules evaluated, none matched the payload
	CodeNoRouteFound Code = 2003
	// CodeDispatchFailed - a destination adapter POST failed
	CodeDispatchFailed Code = 3001
	// CodePersistenceFailed - best-effort status update failed
	CodePersistenceFailed Code = 4001
	// CodeUnexpected - unclassified processing failure
	CodeUnexpected Code = 9001
)

type definition struct {
	severity string
	template string
}

// definitions is the error-code table. Templates take the positional params
// passed to Describe/Report.
var definitions = map[Code]definition{
	CodeMissingOrganizationID: {"ERROR", "message %s rejected: organization id missing from envelope"},
	CodeMissingMessageID:      {"ERROR", "message rejected for organization %s: masterdata/event id missing from envelope"},
	CodeMissingClientID:       {"ERROR", "message %s rejected for organization %s: client id missing from envelope"},
	CodeEmptyPayload:          {"ERROR", "message %s rejected for organization %s: payload missing or empty"},
	CodeInvalidPayload:        {"ERROR", "message %s rejected for organization %s: payload is not valid JSON"},
	CodeRegistryUnavailable:   {"ERROR", "routing failed for message %s, organization %s: rules registry unavailable"},
	CodeNoRulesConfigured:     {"ERROR", "routing failed for message %s: organization %s has no routing rules configured"},
	CodeNoRouteFound:          {"ERROR", "routing failed for message %s, organization %s: no routing rule matched"},
	CodeDispatchFailed:        {"ERROR", "dispatch failed for message %s, organization %s: destination adapter %s did not accept the payload"},
	CodePersistenceFailed:     {"WARNING", "status update failed for message %s, organization %s"},
	CodeUnexpected:            {"ERROR", "unexpected failure processing message %s for organization %s"},
}

// Describe resolves a code against the table and formats its message with
// the given params. Unknown codes fall back to a generic description so a
// reporting path never fails.
func Describe(code Code, params ...interface{}) string {
	def, ok := definitions[code]
	if !ok {
		return fmt.Sprintf("unknown error code %d", code)
	}
	return fmt.Sprintf(def.template, params...)
}

// Severity returns the table severity for a code, defaulting to ERROR.
func Severity(code Code) string {
	if def, ok := definitions[code]; ok {
		return def.severity
	}
	return "ERROR"
}
