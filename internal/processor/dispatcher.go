package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"epcis-hub/internal/common/errors"
	"epcis-hub/internal/common/logging"
	"epcis-hub/internal/routing"
)

// HTTPDispatcher posts routed payloads to destination adapter services.
// Destinations resolve to http://{name}:8080 by convention; a deployment can
// override any destination's base URL through the {NAME_UPPERCASE}_SERVICE
// environment variable.
type HTTPDispatcher struct {
	client *http.Client
	logger logging.Logger
}

// NewHTTPDispatcher creates a dispatcher with an explicit per-request
// timeout. The timeout is required: an unbounded adapter call would stall
// the single-message-at-a-time consumer.
func NewHTTPDispatcher(timeout time.Duration) *HTTPDispatcher {
	return &HTTPDispatcher{
		client: &http.Client{Timeout: timeout},
		logger: logging.WithFields(logging.String("component", "dispatcher")),
	}
}

// Dispatch posts the payload to one destination adapter. The request body
// carries the category-specific id key, the organization id, and the decoded
// payload under "json". Non-2xx responses and transport errors fail with a
// typed dispatch error naming the destination.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, destination string, category routing.Category, envelope *Envelope, payload interface{}) error {
	body := map[string]interface{}{
		category.IDKey(): envelope.MessageID,
		"organizationid": envelope.OrganizationID,
		"json":           payload,
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return errors.DispatchError(destination, err)
	}

	url := adapterURL(destination, category)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return errors.DispatchError(destination, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.DispatchError(destination, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.DispatchError(destination, fmt.Errorf("adapter returned status %d", resp.StatusCode))
	}

	d.logger.Debug("Payload dispatched to adapter",
		logging.String("destination", destination),
		logging.String("url", url),
	)
	return nil
}

// adapterURL resolves the adapter endpoint for a destination, honoring the
// environment override when set.
func adapterURL(destination string, category routing.Category) string {
	base := "http://" + destination + ":8080"
	if override := os.Getenv(overrideKey(destination)); override != "" {
		base = strings.TrimRight(override, "/")
	}
	return base + "/adapter/" + category.AdapterPath()
}

// overrideKey maps a destination name to its service-override environment
// variable, e.g. "mock-adapter" to MOCK_ADAPTER_SERVICE.
func overrideKey(destination string) string {
	upper := strings.ToUpper(destination)
	mapped := strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, upper)
	return mapped + "_SERVICE"
}
