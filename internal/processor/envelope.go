package processor

import "fmt"

// Envelope is the validated transport metadata for one inbound message. The
// processor owns the envelope and the raw transport message; the routing
// core only ever sees the decoded payload and the organization id.
type Envelope struct {
	MessageID       string // masterdata or event identifier, by category
	OrganizationID  string
	ClientID        string
	ContentType     string
	ContentEncoding string
}

const (
	headerOrganizationID = "organizationid"
	headerClientID       = "clientid"

	defaultContentType     = "application/json"
	defaultContentEncoding = "UTF-8"
)

// headerString reads a transport header as a string, coercing non-string
// values the way AMQP tables deliver them. Absent or nil headers read as "".
func headerString(headers map[string]interface{}, key string) string {
	value, ok := headers[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
