package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func resetRegistry() {
	// Create a new registry for each test to avoid conflicts
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
}

func TestNew(t *testing.T) {
	resetRegistry()

	m := New()

	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.LookupsTotal == nil {
		t.Error("LookupsTotal not initialized")
	}
	if m.LookupDuration == nil {
		t.Error("LookupDuration not initialized")
	}
	if m.CloudCallsTotal == nil {
		t.Error("CloudCallsTotal not initialized")
	}
	if m.SKUCacheEvents == nil {
		t.Error("SKUCacheEvents not initialized")
	}
}

func TestHandler(t *testing.T) {
	handler := Handler()

	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestMetrics_RecordLookup(t *testing.T) {
	resetRegistry()
	m := New()

	// Should not panic
	m.RecordLookup("aws_cnr", "instance", "matched", 0.8)
	m.RecordLookup("azure_cnr", "instance", "not_matched", 1.2)
	m.RecordLookup("alibaba_cnr", "rds_instance", "error", 0.1)
}

func TestMetrics_RecordCloudCall(t *testing.T) {
	resetRegistry()
	m := New()

	m.RecordCloudCall("aws_cnr", "get_pricing", "ok")
	m.RecordCloudCall("aws_cnr", "get_pricing", "error")
}

func TestMetrics_RecordCacheEvent(t *testing.T) {
	resetRegistry()
	m := New()

	m.RecordCacheEvent("hit")
	m.RecordCacheEvent("miss")
	m.RecordCacheEvent("refresh")
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	resetRegistry()
	m := New()

	m.RecordHTTPRequest("POST", "/api/v1/flavors/search", "200", 0.1)
	m.RecordHTTPRequest("GET", "/api/v1/recommendations/migration", "200", 0.2)
	m.RecordHTTPRequest("POST", "/api/v1/flavors/search", "400", 0.05)
}
