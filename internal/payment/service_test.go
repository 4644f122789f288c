package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/internal/observe"
)

const testWebhookSecret = "whsec_test"

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Book{
		{ID: "entangled-pipes", Title: "The Entangled Pipes", PriceCents: 199},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func testService(t *testing.T, purchases PurchaseStore) *Service {
	t.Helper()
	s, err := NewService(Config{
		SecretKey:     "sk_test",
		WebhookSecret: testWebhookSecret,
		SuccessURL:    "https://shop.example/?payment_success=true&book_id={book_id}",
		CancelURL:     "https://shop.example/",
	}, testCatalog(t), purchases)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return s
}

// signPayload produces a valid Stripe-Signature header for payload, in the
// documented t=...,v1=... format.
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func completedEvent(sessionID, bookID, userID string, amount int64) []byte {
	return fmt.Appendf(nil, `{
		"id": "evt_1",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": %q,
				"amount_total": %d,
				"metadata": {"book_id": %q, "user_id": %q}
			}
		}
	}`, stripe.APIVersion, sessionID, amount, bookID, userID)
}

func TestCheckout_CreatesSession(t *testing.T) {
	s := testService(t, NewMemoryPurchases())

	var captured *stripe.CheckoutSessionParams
	s.createSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		captured = p
		return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/pay/cs_1"}, nil
	}

	url, err := s.Checkout(context.Background(), "entangled-pipes", "user-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://checkout.stripe.com/pay/cs_1" {
		t.Errorf("url: got %q", url)
	}

	if captured == nil {
		t.Fatal("session params not captured")
	}
	if got := *captured.Mode; got != string(stripe.CheckoutSessionModePayment) {
		t.Errorf("mode: got %q", got)
	}
	if len(captured.LineItems) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(captured.LineItems))
	}
	if got := *captured.LineItems[0].PriceData.UnitAmount; got != 199 {
		t.Errorf("unit amount: got %d, want 199", got)
	}
	if got := captured.Metadata["book_id"]; got != "entangled-pipes" {
		t.Errorf("metadata book_id: got %q", got)
	}
	if got := captured.Metadata["user_id"]; got != "user-7" {
		t.Errorf("metadata user_id: got %q", got)
	}
	if got := *captured.SuccessURL; got != "https://shop.example/?payment_success=true&book_id=entangled-pipes" {
		t.Errorf("success url: got %q", got)
	}
}

func TestCheckout_AnonymousUser(t *testing.T) {
	s := testService(t, NewMemoryPurchases())
	s.createSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		if got := p.Metadata["user_id"]; got != "anonymous" {
			t.Errorf("user_id: got %q, want anonymous", got)
		}
		return &stripe.CheckoutSession{URL: "https://checkout.stripe.com/x"}, nil
	}
	if _, err := s.Checkout(context.Background(), "entangled-pipes", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckout_UnknownBook(t *testing.T) {
	s := testService(t, NewMemoryPurchases())
	_, err := s.Checkout(context.Background(), "missing", "user-7")
	if !errors.Is(err, ErrUnknownBook) {
		t.Errorf("expected ErrUnknownBook, got %v", err)
	}
}

func TestCheckout_StripeFailureSurfaces(t *testing.T) {
	s := testService(t, NewMemoryPurchases())
	s.createSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("stripe is down")
	}
	if _, err := s.Checkout(context.Background(), "entangled-pipes", "u"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleWebhook_RecordsPurchase(t *testing.T) {
	purchases := NewMemoryPurchases()
	s := testService(t, purchases)

	payload := completedEvent("cs_9", "entangled-pipes", "user-7", 199)
	err := s.HandleWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := purchases.ByUser(context.Background(), "user-7")
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 purchase, got %d", len(got))
	}
	p := got[0]
	if p.BookID != "entangled-pipes" || p.StripeSessionID != "cs_9" || p.AmountTotal != 199 || p.Status != "completed" {
		t.Errorf("unexpected purchase: %+v", p)
	}
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	purchases := NewMemoryPurchases()
	s := testService(t, purchases)

	payload := completedEvent("cs_9", "entangled-pipes", "user-7", 199)
	err := s.HandleWebhook(context.Background(), payload, signPayload(payload, "whsec_wrong"))
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
	if purchases.Len() != 0 {
		t.Error("no purchase should be recorded")
	}
}

func TestHandleWebhook_AmountMismatch(t *testing.T) {
	purchases := NewMemoryPurchases()
	s := testService(t, purchases)

	payload := completedEvent("cs_9", "entangled-pipes", "user-7", 99)
	err := s.HandleWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	if !errors.Is(err, ErrAmountMismatch) {
		t.Errorf("expected ErrAmountMismatch, got %v", err)
	}
	if purchases.Len() != 0 {
		t.Error("mismatched amount must not be recorded")
	}
}

func TestHandleWebhook_IgnoresOtherEvents(t *testing.T) {
	purchases := NewMemoryPurchases()
	s := testService(t, purchases)

	payload := fmt.Appendf(nil, `{"id":"evt_2","api_version":%q,"type":"payment_intent.created","data":{"object":{}}}`, stripe.APIVersion)
	if err := s.HandleWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purchases.Len() != 0 {
		t.Error("ignored event should record nothing")
	}
}

func TestHandleWebhook_IdempotentOnRetry(t *testing.T) {
	purchases := NewMemoryPurchases()
	s := testService(t, purchases)

	payload := completedEvent("cs_9", "entangled-pipes", "user-7", 199)
	sig := signPayload(payload, testWebhookSecret)
	for i := 0; i < 3; i++ {
		if err := s.HandleWebhook(context.Background(), payload, sig); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if purchases.Len() != 1 {
		t.Errorf("expected 1 purchase after retries, got %d", purchases.Len())
	}
}

func TestHandleWebhook_CountsPurchase(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	purchases := NewMemoryPurchases()
	s, err := NewService(Config{
		SecretKey:     "sk_test",
		WebhookSecret: testWebhookSecret,
		SuccessURL:    "https://shop.example/?book_id={book_id}",
		CancelURL:     "https://shop.example/",
		Metrics:       metrics,
	}, testCatalog(t), purchases)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	payload := completedEvent("cs_42", "entangled-pipes", "user-7", 199)
	if err := s.HandleWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "waveform.purchases" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("waveform.purchases data type = %T", met.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 1 {
		t.Errorf("purchase count = %d, want 1", total)
	}
}
