package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		code   Code
		params []interface{}
		want   string
	}{
		{
			name:   "missing organization id",
			code:   CodeMissingOrganizationID,
			params: []interface{}{"md-1"},
			want:   "message md-1 rejected: organization id missing from envelope",
		},
		{
			name:   "dispatch failure names the destination",
			code:   CodeDispatchFailed,
			params: []interface{}{"evt-9", "37", "mock-adapter"},
			want:   "dispatch failed for message evt-9, organization 37: destination adapter mock-adapter did not accept the payload",
		},
		{
			name:   "unknown code falls back",
			code:   Code(424242),
			params: nil,
			want:   "unknown error code 424242",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.code, tt.params...))
		})
	}
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, "WARNING", Severity(CodePersistenceFailed))
	assert.Equal(t, "ERROR", Severity(CodeNoRouteFound))
	assert.Equal(t, "ERROR", Severity(Code(424242)))
}

func TestReporter_Report_ReturnsMessageWithoutSink(t *testing.T) {
	reporter := NewReporter("", time.Second)

	msg := reporter.Report(context.Background(), "37", "client-1", CodeNoRouteFound, "", "evt-9", "37")
	assert.Equal(t, "routing failed for message evt-9, organization 37: no routing rule matched", msg)
}

func TestReporter_Report_ForwardsToSink(t *testing.T) {
	received := make(chan Alert, 1)
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		received <- alert
		w.WriteHeader(http.StatusAccepted)
	}))
	defer sink.Close()

	reporter := NewReporter(sink.URL, time.Second)
	reporter.Report(context.Background(), "37", "client-1", CodeDispatchFailed, "stack", "evt-9", "37", "mock-adapter")

	select {
	case alert := <-received:
		assert.Equal(t, "37", alert.OrganizationID)
		assert.Equal(t, "client-1", alert.ClientID)
		assert.Equal(t, int(CodeDispatchFailed), alert.Code)
		assert.Equal(t, "stack", alert.StackTrace)
		assert.Contains(t, alert.Message, "mock-adapter")
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not forwarded to sink")
	}
}

func TestReporter_Report_SinkOutageDoesNotFail(t *testing.T) {
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	sink.Close()

	reporter := NewReporter(sink.URL, 100*time.Millisecond)
	msg := reporter.Report(context.Background(), "37", "client-1", CodeEmptyPayload, "", "md-1", "37")
	assert.NotEmpty(t, msg)
}
