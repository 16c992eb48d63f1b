package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPayPalCallLabelsStatus(t *testing.T) {
	before := testutil.ToFloat64(PayPalAPICalls.WithLabelValues("create_subscription", "error"))
	PayPalCall("create_subscription", errors.New("timeout"))
	PayPalCall("create_subscription", nil)

	if got := testutil.ToFloat64(PayPalAPICalls.WithLabelValues("create_subscription", "error")); got != before+1 {
		t.Fatalf("error counter = %v, want %v", got, before+1)
	}
}

func TestFeatureDefaultsTier(t *testing.T) {
	before := testutil.ToFloat64(FeatureUsage.WithLabelValues("job_match", "free"))
	Feature("job_match", "")
	if got := testutil.ToFloat64(FeatureUsage.WithLabelValues("job_match", "free")); got != before+1 {
		t.Fatalf("feature counter = %v, want %v", got, before+1)
	}
}

func TestRegistryGathers(t *testing.T) {
	PayPalWebhook("PAYMENT.SALE.COMPLETED", true)
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"paypal_webhooks_total", "go_goroutines"} {
		if !names[want] {
			t.Fatalf("expected %s in registry", want)
		}
	}
}
