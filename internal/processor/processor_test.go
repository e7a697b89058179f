package processor

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epcis-hub/internal/alerts"
	"epcis-hub/internal/brokers"
	"epcis-hub/internal/common/errors"
	"epcis-hub/internal/routing"
	"epcis-hub/internal/storage"
)

type stubResolver struct {
	destinations []string
	err          error
	calls        int
}

func (s *stubResolver) DetermineDestinations(_ context.Context, _ interface{}, _ string, _ routing.Category) ([]string, error) {
	s.calls++
	return s.destinations, s.err
}

type dispatchCall struct {
	destination string
	envelope    Envelope
}

type stubDispatcher struct {
	failing map[string]error
	calls   []dispatchCall
}

func (s *stubDispatcher) Dispatch(_ context.Context, destination string, _ routing.Category, envelope *Envelope, _ interface{}) error {
	s.calls = append(s.calls, dispatchCall{destination: destination, envelope: *envelope})
	if err, ok := s.failing[destination]; ok {
		return err
	}
	return nil
}

type outcomeCall struct {
	destination string
	success     bool
}

type stubStore struct {
	err      error
	pending  int
	statuses []storage.MessageStatus
	outcomes []outcomeCall
}

func (s *stubStore) UpsertPending(_ context.Context, _, _, _, _ string) error {
	s.pending++
	return s.err
}

func (s *stubStore) SetStatus(_ context.Context, _ string, status storage.MessageStatus) error {
	s.statuses = append(s.statuses, status)
	return s.err
}

func (s *stubStore) RecordOutcome(_ context.Context, _, destination string, success bool, _ string) error {
	s.outcomes = append(s.outcomes, outcomeCall{destination: destination, success: success})
	return s.err
}

type stubReporter struct {
	codes []alerts.Code
}

func (s *stubReporter) Report(_ context.Context, _, _ string, code alerts.Code, _ string, params ...interface{}) string {
	s.codes = append(s.codes, code)
	return alerts.Describe(code, params...)
}

type fixture struct {
	resolver   *stubResolver
	dispatcher *stubDispatcher
	store      *stubStore
	reporter   *stubReporter
	processor  *Processor
}

func newFixture(category routing.Category, destinations []string, resolveErr error) *fixture {
	f := &fixture{
		resolver:   &stubResolver{destinations: destinations, err: resolveErr},
		dispatcher: &stubDispatcher{},
		store:      &stubStore{},
		reporter:   &stubReporter{},
	}
	f.processor = New(category, f.resolver, f.dispatcher, f.store, f.reporter)
	return f
}

func validDelivery() *brokers.Delivery {
	return &brokers.Delivery{
		Headers: map[string]interface{}{
			"organizationid": "37",
			"clientid":       "client-1",
			"masterdataid":   "md-100",
		},
		ContentType:     "application/json",
		ContentEncoding: "UTF-8",
		Body:            []byte(`{"epcisbody":{}}`),
	}
}

func TestHandleMissingOrganizationID(t *testing.T) {
	f := newFixture(routing.CategoryMasterdata, []string{"mock-adapter"}, nil)
	delivery := validDelivery()
	delete(delivery.Headers, "organizationid")

	outcome := f.processor.Handle(context.Background(), delivery)

	assert.Equal(t, brokers.DeadLetter, outcome)
	assert.Equal(t, []alerts.Code{alerts.CodeMissingOrganizationID}, f.reporter.codes)
	// Rejected before the payload is parsed or any rules fetched.
	assert.Equal(t, 0, f.resolver.calls)
	assert.Equal(t, 0, f.store.pending)
}

func TestHandleMissingMessageID(t *testing.T) {
	f := newFixture(routing.CategoryMasterdata, []string{"mock-adapter"}, nil)
	delivery := validDelivery()
	delete(delivery.Headers, "masterdataid")

	outcome := f.processor.Handle(context.Background(), delivery)

	assert.Equal(t, brokers.DeadLetter, outcome)
	assert.Equal(t, []alerts.Code{alerts.CodeMissingMessageID}, f.reporter.codes)
	assert.Equal(t, 0, f.resolver.calls)
}

func TestHandleMessageIDFallsBackToTransportID(t *testing.T) {
	f := newFixture(routing.CategoryMasterdata, []string{"mock-adapter"}, nil)
	delivery := validDelivery()
	delete(delivery.Headers, "masterdataid")
	delivery.MessageID = "transport-7"

	outcome := f.processor.Handle(context.Background(), delivery)

	assert.Equal(t, brokers.Ack, outcome)
	require.Len(t, f.dispatcher.calls, 1)
	assert.Equal(t, "transport-7", f.dispatcher.calls[0].envelope.MessageID)
}

func TestHandleMissingClientID(t *testing.T) {
	f := newFixture(routing.CategoryMasterdata, []string{"mock-adapter"}, nil)
	delivery := validDelivery()
	delete(delivery.Headers, "clientid")

	outcome := f.processor.Handle(context.Background(), delivery)

	assert.Equal(t, brokers.DeadLetter, outcome)
	assert.Equal(t, []alerts.Code{alerts.CodeMissingClientID}, f.reporter.codes)
	assert.Equal(t, 0, f.resolver.calls)
}

func TestHandleEmptyPayload(t *testing.T) {
	f := newFixture(routing.CategoryMasterdata, []string{"mock-adapter"}, nil)
	delivery := validDelivery()
	delivery.Body = nil

	outcome := f.processor.Handle(context.Background(), delivery)

	assert.Equal(t, brokers.DeadLetter, outcome)
	assert.Equal(t, []alerts.Code{alerts.CodeEmptyPayload}, f.reporter.codes)
	assert.Equal(t, 0, f.resolver.calls)
}

func TestHandleInvalidJSON(t *testing.T) {
	f := newFixture(routing.CategoryMasterdata, []string{"mock-adapter"}, nil)
	delivery := validDelivery()
	delivery.Body = []byte(`{"epcisbody":`)

	outcome := f.processor.Handle(context.Background(), delivery)

	assert.Equal(t, brokers.DeadLetter, outcome)
	assert.Equal(t, []alerts.Code{alerts.CodeInvalidPayload}, f.reporter.codes)
	assert.Equal(t, 0, f.resolver.calls)
	assert.Equal(t, []storage.MessageStatus{storage.StatusFailed}, f.store.statuses)
}

func TestHandleRoutingFailureCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code alerts.Code
	}{
		{"registry unavailable", errors.RegistryUnavailableError("registry down", nil), alerts.CodeRegistryUnavailable},
		{"no rules configured", errors.NoRulesConfiguredError("37"), alerts.CodeNoRulesConfigured},
		{"no route found", errors.NoRouteFoundError("37"), alerts.CodeNoRouteFound},
		{"untyped failure", stderrors.New("boom"), alerts.CodeUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(routing.CategoryMasterdata, nil, tt.err)

			outcome := f.processor.Handle(context.Background(), validDelivery())

			assert.Equal(t, brokers.DeadLetter, outcome)
			assert.Equal(t, []alerts.Code{tt.code}, f.reporter.codes)
			assert.Empty(t, f.dispatcher.calls)
			assert.Equal(t, []storage.MessageStatus{storage.StatusFailed}, f.store.statuses)
		})
	}
}

func TestHandleDispatchesToAllDestinations(t *testing.T) {
	f := newFixture(routing.CategoryMasterdata, []string{"adapter-a", "adapter-b"}, nil)

	outcome := f.processor.Handle(context.Background(), validDelivery())

	assert.Equal(t, brokers.Ack, outcome)
	require.Len(t, f.dispatcher.calls, 2)
	assert.Equal(t, "adapter-a", f.dispatcher.calls[0].destination)
	assert.Equal(t, "adapter-b", f.dispatcher.calls[1].destination)
	assert.Equal(t, []outcomeCall{
		{destination: "adapter-a", success: true},
		{destination: "adapter-b", success: true},
	}, f.store.outcomes)
	assert.Equal(t, []storage.MessageStatus{storage.StatusOnLedger}, f.store.statuses)
	assert.Empty(t, f.reporter.codes)
}

func TestHandlePartialDispatchFailure(t *testing.T) {
	f := newFixture(routing.CategoryMasterdata, []string{"adapter-a", "adapter-b", "adapter-c"}, nil)
	f.dispatcher.failing = map[string]error{
		"adapter-b": errors.DispatchError("adapter-b", stderrors.New("status 503")),
	}

	outcome := f.processor.Handle(context.Background(), validDelivery())

	// One failed destination dead-letters the message even though the other
	// two succeeded, with exactly one dispatch alert.
	assert.Equal(t, brokers.DeadLetter, outcome)
	assert.Equal(t, []alerts.Code{alerts.CodeDispatchFailed}, f.reporter.codes)
	require.Len(t, f.dispatcher.calls, 3)
	assert.Equal(t, []outcomeCall{
		{destination: "adapter-a", success: true},
		{destination: "adapter-b", success: false},
		{destination: "adapter-c", success: true},
	}, f.store.outcomes)
	assert.Equal(t, []storage.MessageStatus{storage.StatusFailed}, f.store.statuses)
}

func TestHandleDefaultsContentTypeAndEncoding(t *testing.T) {
	f := newFixture(routing.CategoryMasterdata, []string{"adapter-a"}, nil)
	delivery := validDelivery()
	delivery.ContentType = ""
	delivery.ContentEncoding = ""

	outcome := f.processor.Handle(context.Background(), delivery)

	assert.Equal(t, brokers.Ack, outcome)
	require.Len(t, f.dispatcher.calls, 1)
	assert.Equal(t, "application/json", f.dispatcher.calls[0].envelope.ContentType)
	assert.Equal(t, "UTF-8", f.dispatcher.calls[0].envelope.ContentEncoding)
	assert.Empty(t, f.reporter.codes)
}

func TestHandlePersistenceFailureDoesNotChangeDisposition(t *testing.T) {
	f := newFixture(routing.CategoryMasterdata, []string{"adapter-a"}, nil)
	f.store.err = errors.PersistenceError("database locked", nil)

	outcome := f.processor.Handle(context.Background(), validDelivery())

	assert.Equal(t, brokers.Ack, outcome)
	require.Len(t, f.dispatcher.calls, 1)
	// Every failed store call raises the persistence warning and nothing more.
	for _, code := range f.reporter.codes {
		assert.Equal(t, alerts.CodePersistenceFailed, code)
	}
	assert.NotEmpty(t, f.reporter.codes)
}

func TestHandleEventCategoryUsesEventIDHeader(t *testing.T) {
	f := newFixture(routing.CategoryEvent, []string{"adapter-a"}, nil)
	delivery := validDelivery()
	delete(delivery.Headers, "masterdataid")
	delivery.Headers["eventid"] = "ev-9"

	outcome := f.processor.Handle(context.Background(), delivery)

	assert.Equal(t, brokers.Ack, outcome)
	require.Len(t, f.dispatcher.calls, 1)
	assert.Equal(t, "ev-9", f.dispatcher.calls[0].envelope.MessageID)
}
