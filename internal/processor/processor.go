// Package processor implements the per-message orchestration of the hub:
// envelope validation, payload parsing, routing decision, destination
// dispatch, and the final acknowledgment decision. Each message runs the
// state machine to one of two terminal dispositions, Ack or DeadLetter.
package processor

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"epcis-hub/internal/alerts"
	"epcis-hub/internal/brokers"
	"epcis-hub/internal/common/errors"
	"epcis-hub/internal/common/logging"
	"epcis-hub/internal/routing"
	"epcis-hub/internal/storage"
)

// unresolvedDestination labels the outcome record written when routing
// fails before any destination is known.
const unresolvedDestination = "unresolved"

// DestinationResolver resolves the destination adapters for a payload.
type DestinationResolver interface {
	DetermineDestinations(ctx context.Context, payload interface{}, organizationID string, category routing.Category) ([]string, error)
}

// Dispatcher delivers a payload to one destination adapter.
type Dispatcher interface {
	Dispatch(ctx context.Context, destination string, category routing.Category, envelope *Envelope, payload interface{}) error
}

// Store persists message status and per-destination outcomes. All store
// calls from the processor are best-effort: failures are reported but never
// change a disposition already decided by validation, routing, or dispatch.
type Store interface {
	UpsertPending(ctx context.Context, messageID, organizationID, clientID, category string) error
	SetStatus(ctx context.Context, messageID string, status storage.MessageStatus) error
	RecordOutcome(ctx context.Context, messageID, destination string, success bool, detail string) error
}

// AlertReporter raises operator-visible alerts with stable numeric codes.
type AlertReporter interface {
	Report(ctx context.Context, organizationID, clientID string, code alerts.Code, stackTrace string, params ...interface{}) string
}

// Processor consumes one payload category's queue messages and runs each
// through the routing pipeline. Messages are handled strictly one at a time
// per instance; horizontal scaling runs more instances against the queue.
type Processor struct {
	category   routing.Category
	resolver   DestinationResolver
	dispatcher Dispatcher
	store      Store
	reporter   AlertReporter
	logger     logging.Logger
}

// New creates a processor for the given payload category.
func New(category routing.Category, resolver DestinationResolver, dispatcher Dispatcher, store Store, reporter AlertReporter) *Processor {
	return &Processor{
		category:   category,
		resolver:   resolver,
		dispatcher: dispatcher,
		store:      store,
		reporter:   reporter,
		logger: logging.WithFields(
			logging.String("component", "processor"),
			logging.String("category", string(category)),
		),
	}
}

// Handle implements brokers.Handler. Every failure path raises exactly one
// alert for the failing step; validation failures dead-letter before the
// payload is parsed or the decision service is invoked, and a partial
// dispatch failure dead-letters the whole message even when other
// destinations succeeded.
func (p *Processor) Handle(ctx context.Context, delivery *brokers.Delivery) brokers.Outcome {
	logger := p.logger.WithFields(logging.String("processing_id", uuid.NewString()))

	organizationID := headerString(delivery.Headers, headerOrganizationID)
	clientID := headerString(delivery.Headers, headerClientID)
	messageID := headerString(delivery.Headers, p.category.IDKey())
	if messageID == "" {
		messageID = delivery.MessageID
	}

	if organizationID == "" {
		p.reporter.Report(ctx, "", clientID, alerts.CodeMissingOrganizationID, "", messageID)
		return brokers.DeadLetter
	}
	if messageID == "" {
		p.reporter.Report(ctx, organizationID, clientID, alerts.CodeMissingMessageID, "", organizationID)
		return brokers.DeadLetter
	}
	if clientID == "" {
		p.reporter.Report(ctx, organizationID, "", alerts.CodeMissingClientID, "", messageID, organizationID)
		return brokers.DeadLetter
	}
	if len(delivery.Body) == 0 {
		p.reporter.Report(ctx, organizationID, clientID, alerts.CodeEmptyPayload, "", messageID, organizationID)
		return brokers.DeadLetter
	}

	envelope := &Envelope{
		MessageID:       messageID,
		OrganizationID:  organizationID,
		ClientID:        clientID,
		ContentType:     delivery.ContentType,
		ContentEncoding: delivery.ContentEncoding,
	}
	if envelope.ContentType == "" {
		envelope.ContentType = defaultContentType
		logger.Warn("Content type missing from envelope, using default",
			logging.String("message_id", messageID),
			logging.String("default", defaultContentType),
		)
	}
	if envelope.ContentEncoding == "" {
		envelope.ContentEncoding = defaultContentEncoding
		logger.Warn("Content encoding missing from envelope, using default",
			logging.String("message_id", messageID),
			logging.String("default", defaultContentEncoding),
		)
	}

	p.persistPending(ctx, envelope)

	var payload interface{}
	if err := json.Unmarshal(delivery.Body, &payload); err != nil {
		p.reporter.Report(ctx, organizationID, clientID, alerts.CodeInvalidPayload, err.Error(), messageID, organizationID)
		p.markFailed(ctx, envelope)
		return brokers.DeadLetter
	}

	destinations, err := p.resolver.DetermineDestinations(ctx, payload, organizationID, p.category)
	if err != nil {
		p.reporter.Report(ctx, organizationID, clientID, routingAlertCode(err), err.Error(), messageID, organizationID)
		p.markFailed(ctx, envelope)
		p.recordOutcome(ctx, envelope, unresolvedDestination, false, err.Error())
		return brokers.DeadLetter
	}

	logger.Info("Destinations resolved",
		logging.String("message_id", messageID),
		logging.String("organization_id", organizationID),
		logging.Strings("destinations", destinations),
	)

	allSucceeded := true
	for _, destination := range destinations {
		if err := p.dispatcher.Dispatch(ctx, destination, p.category, envelope, payload); err != nil {
			allSucceeded = false
			p.reporter.Report(ctx, organizationID, clientID, alerts.CodeDispatchFailed, err.Error(), messageID, organizationID, destination)
			p.markFailed(ctx, envelope)
			p.recordOutcome(ctx, envelope, destination, false, err.Error())
			continue
		}
		p.recordOutcome(ctx, envelope, destination, true, "")
	}

	if !allSucceeded {
		return brokers.DeadLetter
	}

	p.markOnLedger(ctx, envelope)
	logger.Info("Message processed",
		logging.String("message_id", messageID),
		logging.Int("destinations", len(destinations)),
	)
	return brokers.Ack
}

// routingAlertCode maps a decision-service failure to its alert code.
func routingAlertCode(err error) alerts.Code {
	switch errors.GetType(err) {
	case errors.ErrTypeRegistryUnavailable:
		return alerts.CodeRegistryUnavailable
	case errors.ErrTypeNoRulesConfigured:
		return alerts.CodeNoRulesConfigured
	case errors.ErrTypeNoRouteFound:
		return alerts.CodeNoRouteFound
	default:
		return alerts.CodeUnexpected
	}
}

func (p *Processor) persistPending(ctx context.Context, envelope *Envelope) {
	err := p.store.UpsertPending(ctx, envelope.MessageID, envelope.OrganizationID, envelope.ClientID, string(p.category))
	if err != nil {
		p.reportPersistence(ctx, envelope, err)
	}
}

func (p *Processor) markFailed(ctx context.Context, envelope *Envelope) {
	if err := p.store.SetStatus(ctx, envelope.MessageID, storage.StatusFailed); err != nil {
		p.reportPersistence(ctx, envelope, err)
	}
}

func (p *Processor) markOnLedger(ctx context.Context, envelope *Envelope) {
	if err := p.store.SetStatus(ctx, envelope.MessageID, storage.StatusOnLedger); err != nil {
		p.reportPersistence(ctx, envelope, err)
	}
}

func (p *Processor) recordOutcome(ctx context.Context, envelope *Envelope, destination string, success bool, detail string) {
	if err := p.store.RecordOutcome(ctx, envelope.MessageID, destination, success, detail); err != nil {
		p.reportPersistence(ctx, envelope, err)
	}
}

func (p *Processor) reportPersistence(ctx context.Context, envelope *Envelope, err error) {
	p.logger.Error("Best-effort persistence update failed", err,
		logging.String("message_id", envelope.MessageID),
	)
	p.reporter.Report(ctx, envelope.OrganizationID, envelope.ClientID, alerts.CodePersistenceFailed, err.Error(),
		envelope.MessageID, envelope.OrganizationID)
}
