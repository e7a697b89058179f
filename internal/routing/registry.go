package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sony/gobreaker"

	"epcis-hub/internal/common/errors"
	"epcis-hub/internal/common/logging"
)

// RegistryClient fetches an organization's routing rules from the external
// rules registry. Calls run through a circuit breaker so a down registry
// fails fast instead of holding up the single-message-at-a-time consumer;
// an open breaker surfaces as the same registry-unavailable failure as a
// direct transport error.
type RegistryClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// NewRegistryClient creates a registry client for the given base URL with an
// explicit request timeout.
func NewRegistryClient(baseURL string, timeout time.Duration) *RegistryClient {
	return &RegistryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "rules-registry",
			Timeout: 30 * time.Second,
		}),
		logger: logging.WithFields(logging.String("component", "rules_registry")),
	}
}

// FetchRules retrieves the organization's rules, keeps only records of the
// given category, and translates them into their evaluated form. Transport
// errors and non-2xx responses fail with a registry-unavailable error; an
// organization whose retained rule set is empty fails with
// no-rules-configured, which is a configuration gap distinct from a routing
// miss.
func (c *RegistryClient) FetchRules(ctx context.Context, organizationID string, category Category) ([]RoutingRule, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, organizationID)
	})
	if err != nil {
		return nil, errors.RegistryUnavailableError("rules registry request failed", err).
			WithContext("organization_id", organizationID)
	}

	records := result.([]RuleRecord)
	retained := lo.Filter(records, func(record RuleRecord, _ int) bool {
		return Category(record.DatafieldType) == category
	})
	rules := lo.Map(retained, func(record RuleRecord, _ int) RoutingRule {
		return record.toRule()
	})

	if len(rules) == 0 {
		return nil, errors.NoRulesConfiguredError(organizationID).
			WithContext("category", string(category))
	}

	c.logger.Debug("Fetched routing rules",
		logging.String("organization_id", organizationID),
		logging.String("category", string(category)),
		logging.Int("rules", len(rules)),
	)
	return rules, nil
}

// Health reports whether the registry breaker is accepting calls.
func (c *RegistryClient) Health() error {
	if c.breaker.State() == gobreaker.StateOpen {
		return errors.RegistryUnavailableError("rules registry circuit breaker is open", nil)
	}
	return nil
}

func (c *RegistryClient) fetch(ctx context.Context, organizationID string) ([]RuleRecord, error) {
	url := fmt.Sprintf("%s/organization/%s/routingrules", c.baseURL, organizationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rules registry returned status %d", resp.StatusCode)
	}

	var records []RuleRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode rules registry response: %w", err)
	}
	return records, nil
}
