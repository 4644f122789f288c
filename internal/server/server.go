// Package server exposes the Waveform HTTP API: the book catalog, Stripe
// checkout and webhook fulfilment, narration session control with a websocket
// event stream, and generated assets (covers, ebooks).
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/internal/content"
	"github.com/elfinch/waveform/internal/health"
	"github.com/elfinch/waveform/internal/narrate"
	"github.com/elfinch/waveform/internal/observe"
	"github.com/elfinch/waveform/internal/payment"
	"github.com/elfinch/waveform/internal/scriptgen"
	"github.com/elfinch/waveform/pkg/provider/image"
)

// Config assembles a [Server]. Catalog, Store, Narrator, and Scripts are
// required; Payment, Images, and Purchases are optional and their endpoints
// respond 503 when absent.
type Config struct {
	Catalog   *catalog.Catalog
	Store     content.Store
	Narrator  *narrate.Manager
	Scripts   scriptgen.Generator
	Payment   *payment.Service
	Purchases payment.PurchaseStore
	Images    image.Provider

	// Health overrides the health handler. Nil means a checker-less default.
	Health *health.Handler

	// Metrics overrides the metrics sink. Nil means [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Server handles the Waveform HTTP API.
type Server struct {
	catalog   *catalog.Catalog
	store     content.Store
	narrator  *narrate.Manager
	scripts   scriptgen.Generator
	payment   *payment.Service
	purchases payment.PurchaseStore
	images    image.Provider
	health    *health.Handler
	metrics   *observe.Metrics
}

// New validates cfg and returns a ready Server.
func New(cfg Config) (*Server, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("server: catalog is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("server: content store is required")
	}
	if cfg.Narrator == nil {
		return nil, errors.New("server: narration manager is required")
	}
	if cfg.Scripts == nil {
		return nil, errors.New("server: script generator is required")
	}
	h := cfg.Health
	if h == nil {
		h = health.New()
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Server{
		catalog:   cfg.Catalog,
		store:     cfg.Store,
		narrator:  cfg.Narrator,
		scripts:   cfg.Scripts,
		payment:   cfg.Payment,
		purchases: cfg.Purchases,
		images:    cfg.Images,
		health:    h,
		metrics:   m,
	}, nil
}

// Handler returns the fully routed HTTP handler, wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/books", s.handleListBooks)
	mux.HandleFunc("GET /api/books/{id}", s.handleGetBook)
	mux.HandleFunc("GET /api/books/{id}/cover", s.handleGetCover)
	mux.HandleFunc("POST /api/books/{id}/cover", s.handleGenerateCover)
	mux.HandleFunc("GET /api/books/{id}/ebook", s.handleGetEbook)

	mux.HandleFunc("POST /api/books/{id}/narrate", s.handleStartNarration)
	mux.HandleFunc("GET /api/narrate/{id}", s.handleNarrationStatus)
	mux.HandleFunc("GET /api/narrate/{id}/events", s.handleNarrationEvents)
	mux.HandleFunc("POST /api/narrate/{id}/stop", s.handleStopNarration)

	mux.HandleFunc("POST /api/checkout", s.handleCheckout)
	mux.HandleFunc("POST /api/stripe/webhook", s.handleStripeWebhook)
	mux.HandleFunc("GET /api/purchases", s.handleListPurchases)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// writeJSON encodes v with the given status. Encoding failures degrade to a
// plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
