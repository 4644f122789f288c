package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/internal/observe"
)

// Sentinel errors for webhook rejection. The server maps both to 400.
var (
	// ErrBadSignature means the webhook payload failed Stripe signature
	// verification.
	ErrBadSignature = errors.New("payment: webhook signature verification failed")

	// ErrAmountMismatch means a completed checkout charged a different amount
	// than the catalog price. Treated as a fraud signal: no purchase record.
	ErrAmountMismatch = errors.New("payment: amount mismatch")
)

// ErrUnknownBook is returned by Checkout for ids not in the catalog.
var ErrUnknownBook = errors.New("payment: unknown book")

// Config carries the Stripe credentials and redirect URLs.
type Config struct {
	// SecretKey is the Stripe API secret key.
	SecretKey string

	// WebhookSecret verifies webhook signatures.
	WebhookSecret string

	// SuccessURL receives the buyer after payment; `{book_id}` in the URL is
	// replaced with the purchased book id.
	SuccessURL string

	// CancelURL receives the buyer after an abandoned checkout.
	CancelURL string

	// Metrics overrides the metrics sink. Nil means [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Service creates checkout sessions and fulfils webhook events.
type Service struct {
	cfg       Config
	catalog   *catalog.Catalog
	purchases PurchaseStore
	metrics   *observe.Metrics

	// createSession indirects session.New so tests can intercept the Stripe
	// call.
	createSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewService creates a payment service. The Stripe client key is set
// process-wide, matching the stripe-go usage model.
func NewService(cfg Config, cat *catalog.Catalog, purchases PurchaseStore) (*Service, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("payment: secret key must not be empty")
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, errors.New("payment: success and cancel URLs must not be empty")
	}
	stripe.Key = cfg.SecretKey
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Service{
		cfg:           cfg,
		catalog:       cat,
		purchases:     purchases,
		metrics:       metrics,
		createSession: session.New,
	}, nil
}

// Checkout creates a Stripe checkout session for a book and returns the
// hosted payment page URL. Failures surface to the caller; there is no
// automatic retry.
func (s *Service) Checkout(ctx context.Context, bookID, userID string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "payment.checkout")
	defer span.End()

	book, ok := s.catalog.Get(bookID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBook, bookID)
	}
	if userID == "" {
		userID = "anonymous"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(book.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("The Waveform Handyman: %s", book.Title)),
						Metadata: map[string]string{
							"book_id": book.ID,
						},
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(expandBookID(s.cfg.SuccessURL, book.ID)),
		CancelURL:  stripe.String(s.cfg.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("book_id", book.ID)
	params.AddMetadata("user_id", userID)

	sess, err := s.createSession(params)
	if err != nil {
		return "", fmt.Errorf("payment: create checkout session for %q: %w", bookID, err)
	}
	slog.Info("checkout session created", "book_id", book.ID, "user_id", userID, "session_id", sess.ID)
	return sess.URL, nil
}

// HandleWebhook verifies and fulfils one webhook delivery. It returns
// ErrBadSignature or ErrAmountMismatch for rejected deliveries and nil for
// both fulfilled and ignored events.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if event.Type != "checkout.session.completed" {
		slog.Debug("ignoring webhook event", "type", event.Type)
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("payment: decode checkout session: %w", err)
	}

	bookID := sess.Metadata["book_id"]
	userID := sess.Metadata["user_id"]

	book, ok := s.catalog.Get(bookID)
	if !ok || sess.AmountTotal != book.PriceCents {
		slog.Error("webhook amount mismatch", "book_id", bookID, "amount_total", sess.AmountTotal)
		return ErrAmountMismatch
	}

	if bookID == "" || userID == "" {
		slog.Warn("completed checkout without metadata, skipping record", "session_id", sess.ID)
		return nil
	}

	err = s.purchases.Record(ctx, Purchase{
		UserID:          userID,
		BookID:          bookID,
		StripeSessionID: sess.ID,
		AmountTotal:     sess.AmountTotal,
		Status:          "completed",
	})
	if err != nil {
		return fmt.Errorf("payment: record purchase: %w", err)
	}
	s.metrics.RecordPurchase(ctx, bookID)
	slog.Info("purchase recorded", "book_id", bookID, "user_id", userID, "session_id", sess.ID)
	return nil
}

// expandBookID substitutes the book id into a redirect URL template.
func expandBookID(url, bookID string) string {
	return strings.ReplaceAll(url, "{book_id}", bookID)
}
