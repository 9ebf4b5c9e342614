package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// initMetrics installs a fresh provider and returns a scrape function.
func initMetrics(t *testing.T) func() string {
	t.Helper()

	handler, shutdown, err := InitMetrics(context.Background(), "helios-test")
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = shutdown(ctx)
	})

	return func() string {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
		return rr.Body.String()
	}
}

// exported reports whether a metric named with dots appears in Prometheus output.
func exported(body, dotted string) bool {
	return strings.Contains(body, strings.ReplaceAll(dotted, ".", "_")) || strings.Contains(body, dotted)
}

func TestInitMetrics_RuntimeCollectors(t *testing.T) {
	body := initMetrics(t)()

	if !strings.Contains(body, "go_goroutines") {
		t.Errorf("expected Go runtime metrics in output, got:\n%s", body)
	}
}

func TestCounter_AppearsInOutput(t *testing.T) {
	scrape := initMetrics(t)

	counter := Counter(otel.Meter("test"), "ring_outcomes_test", "Outcomes")
	counter.Add(context.Background(), 42, metric.WithAttributes(attribute.String("outcome", "dismissed")))

	body := scrape()
	if !strings.Contains(body, "ring_outcomes_test") {
		t.Errorf("expected counter in output, got:\n%s", body)
	}
	if !strings.Contains(body, `outcome="dismissed"`) || !strings.Contains(body, "42") {
		t.Errorf("expected labelled value 42 in output, got:\n%s", body)
	}
}

func TestCounter_InvalidNameIsNoop(t *testing.T) {
	initMetrics(t)

	// Instrument names must start with a letter.
	counter := Counter(otel.Meter("test"), "1-invalid", "")
	counter.Add(context.Background(), 1)
}

func TestHistogram_AppearsInOutput(t *testing.T) {
	scrape := initMetrics(t)

	Histogram(otel.Meter("test"), "ring_duration_test", "Duration").Record(context.Background(), 1.5)

	if body := scrape(); !strings.Contains(body, "ring_duration_test") {
		t.Errorf("expected histogram in output, got:\n%s", body)
	}
}

func TestRegisterGauges(t *testing.T) {
	scrape := initMetrics(t)

	err := RegisterGauges(otel.Meter("test"), Gauges{
		Stored: func(context.Context) (int, error) { return 3, nil },
		Armed:  func() int { return 2 },
		Live:   func() int { return 1 },
	})
	if err != nil {
		t.Fatalf("RegisterGauges failed: %v", err)
	}

	body := scrape()
	for _, name := range []string{"helios.alarms.stored", "helios.alarms.armed", "helios.ring.live"} {
		if !exported(body, name) {
			t.Errorf("expected gauge %s in output, got:\n%s", name, body)
		}
	}
}

func TestRegisterGauges_StoreErrorSkipsSample(t *testing.T) {
	scrape := initMetrics(t)

	err := RegisterGauges(otel.Meter("test"), Gauges{
		Stored: func(context.Context) (int, error) { return 0, errors.New("db down") },
	})
	if err != nil {
		t.Fatalf("RegisterGauges failed: %v", err)
	}

	if body := scrape(); exported(body, "helios.alarms.stored") {
		t.Errorf("expected no stored sample after a failed read, got:\n%s", body)
	}
}
