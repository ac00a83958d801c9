package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordGuidanceLookup(t *testing.T) {
	before := testutil.ToFloat64(guidanceLookups.WithLabelValues("hit"))
	RecordGuidanceLookup("hit")
	after := testutil.ToFloat64(guidanceLookups.WithLabelValues("hit"))
	if after != before+1 {
		t.Fatalf("hit counter = %v, want %v", after, before+1)
	}
}

func TestObserveProviderCallOutcome(t *testing.T) {
	okBefore := testutil.ToFloat64(providerCalls.WithLabelValues("test", "success"))
	errBefore := testutil.ToFloat64(providerCalls.WithLabelValues("test", "error"))

	ObserveProviderCall("test", 10*time.Millisecond, nil)
	ObserveProviderCall("test", 10*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(providerCalls.WithLabelValues("test", "success")); got != okBefore+1 {
		t.Errorf("success = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(providerCalls.WithLabelValues("test", "error")); got != errBefore+1 {
		t.Errorf("error = %v, want %v", got, errBefore+1)
	}
}

func TestSetCircuitBreakerState(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			SetCircuitBreakerState("unit", tt.state)
			if got := testutil.ToFloat64(breakerState.WithLabelValues("unit")); got != tt.want {
				t.Fatalf("gauge = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("unmatched", "404"))
	RecordHTTPRequest("", 404)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("unmatched", "404")); got != before+1 {
		t.Fatalf("counter = %v, want %v", got, before+1)
	}
}
