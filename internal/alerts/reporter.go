package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"epcis-hub/internal/common/logging"
)

// Alert is the payload forwarded to the alert sink.
type Alert struct {
	OrganizationID string `json:"organizationid"`
	ClientID       string `json:"clientid"`
	Code           int    `json:"code"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	StackTrace     string `json:"stacktrace,omitempty"`
	RaisedAt       string `json:"raisedat"`
}

// Reporter resolves alert codes, logs them, and forwards them to the alert
// sink when one is configured. Forwarding is fire-and-forget: a sink outage
// never blocks or fails message processing.
type Reporter struct {
	sinkURL string
	client  *http.Client
	logger  logging.Logger
}

// NewReporter creates a reporter. An empty sinkURL disables forwarding;
// alerts are still logged.
func NewReporter(sinkURL string, timeout time.Duration) *Reporter {
	return &Reporter{
		sinkURL: sinkURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logging.WithFields(logging.String("component", "alerts")),
	}
}

// Report resolves the code with its params, logs the alert, posts it to the
// sink in the background, and returns the human-readable message for reuse
// in logs or HTTP responses.
func (r *Reporter) Report(ctx context.Context, organizationID, clientID string, code Code, stackTrace string, params ...interface{}) string {
	message := Describe(code, params...)

	fields := []logging.Field{
		logging.Int("code", int(code)),
		logging.String("organization_id", organizationID),
		logging.String("client_id", clientID),
		logging.String("message", message),
	}
	if Severity(code) == "WARNING" {
		r.logger.Warn("Alert raised", fields...)
	} else {
		r.logger.Error("Alert raised", nil, fields...)
	}

	if r.sinkURL != "" {
		alert := Alert{
			OrganizationID: organizationID,
			ClientID:       clientID,
			Code:           int(code),
			Severity:       Severity(code),
			Message:        message,
			StackTrace:     stackTrace,
			RaisedAt:       time.Now().UTC().Format(time.RFC3339),
		}
		go r.forward(alert)
	}

	return message
}

func (r *Reporter) forward(alert Alert) {
	body, err := json.Marshal(alert)
	if err != nil {
		r.logger.Warn("Failed to encode alert", logging.Err(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.sinkURL, bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("Failed to build alert request", logging.Err(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("Failed to forward alert to sink", logging.Err(err), logging.Int("code", alert.Code))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Warn("Alert sink rejected alert",
			logging.Int("status", resp.StatusCode),
			logging.Int("code", alert.Code),
		)
	}
}
