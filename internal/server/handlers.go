package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/internal/content"
	"github.com/elfinch/waveform/internal/narrate"
	"github.com/elfinch/waveform/internal/observe"
	"github.com/elfinch/waveform/internal/payment"
)

// maxWebhookBody bounds the Stripe webhook payload, matching Stripe's own
// recommended limit.
const maxWebhookBody = 64 * 1024

// bookResponse is the catalog entry shape served to the storefront.
type bookResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Problem    string `json:"problem,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	PriceCents int64  `json:"price_cents"`
	WordCount  int    `json:"word_count,omitempty"`
	HasCover   bool   `json:"has_cover"`
}

func (s *Server) bookResponse(ctx context.Context, b catalog.Book) bookResponse {
	_, err := content.Cover(ctx, s.store, b.ID)
	return bookResponse{
		ID:         b.ID,
		Title:      b.Title,
		Problem:    b.Problem,
		Resolution: b.Resolution,
		PriceCents: b.PriceCents,
		WordCount:  b.WordCount,
		HasCover:   err == nil,
	}
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books := s.catalog.List()
	out := make([]bookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, s.bookResponse(r.Context(), b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": out})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	b, ok := s.catalog.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown book")
		return
	}
	writeJSON(w, http.StatusOK, s.bookResponse(r.Context(), b))
}

// script returns the stored narration script for the book, generating and
// storing one on first use.
func (s *Server) script(ctx context.Context, book catalog.Book) (string, error) {
	script, err := content.Script(ctx, s.store, book.ID)
	if err == nil {
		return script, nil
	}
	if !errors.Is(err, content.ErrNotFound) {
		return "", err
	}

	start := time.Now()
	script, err = s.scripts.Script(ctx, book)
	if err != nil {
		return "", err
	}
	s.metrics.ScriptDuration.Record(ctx, time.Since(start).Seconds())

	if err := s.store.PutAsset(ctx, book.ID, content.KindScript, []byte(script)); err != nil {
		observe.Logger(ctx).Warn("storing generated script failed",
			"book_id", book.ID, "error", err)
	}
	return script, nil
}

func (s *Server) handleStartNarration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	book, ok := s.catalog.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown book")
		return
	}

	script, err := s.script(ctx, book)
	if err != nil {
		observe.Logger(ctx).Error("script generation failed",
			"book_id", book.ID, "error", err)
		writeError(w, http.StatusBadGateway, "script generation failed")
		return
	}

	// The session outlives this request. Detach from the request's
	// cancellation so background synthesis keeps its context values but
	// survives the handler returning.
	id, sess, err := s.narrator.Start(context.WithoutCancel(ctx), book, script)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	snap := sess.Snapshot()
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"book_id":    book.ID,
		"state":      snap.State,
		"segments":   snap.Total,
		"ambience":   snap.Ambience,
		"music":      snap.Music,
	})
}

func (s *Server) handleNarrationStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.narrator.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, narrate.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleStopNarration(w http.ResponseWriter, r *http.Request) {
	err := s.narrator.Stop(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, narrate.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeError(w, http.StatusInternalServerError, "stopping session failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.payment == nil {
		writeError(w, http.StatusServiceUnavailable, "checkout is not configured")
		return
	}

	var req struct {
		BookID string `json:"book_id"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BookID == "" {
		writeError(w, http.StatusBadRequest, "book_id is required")
		return
	}

	url, err := s.payment.Checkout(r.Context(), req.BookID, req.UserID)
	switch {
	case errors.Is(err, payment.ErrUnknownBook):
		writeError(w, http.StatusNotFound, "unknown book")
		return
	case err != nil:
		observe.Logger(r.Context()).Error("checkout failed",
			"book_id", req.BookID, "error", err)
		writeError(w, http.StatusBadGateway, "checkout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.payment == nil {
		writeError(w, http.StatusServiceUnavailable, "checkout is not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	err = s.payment.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrBadSignature),
		errors.Is(err, payment.ErrAmountMismatch),
		errors.Is(err, payment.ErrUnknownBook):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		observe.Logger(r.Context()).Error("webhook handling failed", "error", err)
		writeError(w, http.StatusInternalServerError, "webhook handling failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	if s.purchases == nil {
		writeError(w, http.StatusServiceUnavailable, "purchases are not configured")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	purchases, err := s.purchases.ByUser(r.Context(), userID)
	if err != nil {
		observe.Logger(r.Context()).Error("listing purchases failed",
			"user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "listing purchases failed")
		return
	}
	out := make([]map[string]any, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, map[string]any{
			"book_id":      p.BookID,
			"amount_total": p.AmountTotal,
			"status":       p.Status,
			"created_at":   p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": out})
}

func (s *Server) handleGenerateCover(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		writeError(w, http.StatusServiceUnavailable, "image generation is not configured")
		return
	}
	ctx := r.Context()
	book, ok := s.catalog.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown book")
		return
	}

	script, err := s.script(ctx, book)
	if err != nil {
		writeError(w, http.StatusBadGateway, "script generation failed")
		return
	}
	prompts, err := s.scripts.StoryboardPrompts(ctx, script)
	if err != nil || len(prompts) == 0 {
		writeError(w, http.StatusBadGateway, "storyboard generation failed")
		return
	}

	// One request per panel; the first panel becomes the cover.
	panels := make([][]byte, len(prompts))
	g, gctx := errgroup.WithContext(ctx)
	for i, prompt := range prompts {
		g.Go(func() error {
			img, err := s.images.Generate(gctx, prompt)
			if err != nil {
				return err
			}
			panels[i] = img.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observe.Logger(ctx).Error("storyboard rendering failed",
			"book_id", book.ID, "error", err)
		writeError(w, http.StatusBadGateway, "storyboard rendering failed")
		return
	}

	if err := s.store.PutAsset(ctx, book.ID, content.KindCover, panels[0]); err != nil {
		writeError(w, http.StatusInternalServerError, "storing cover failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"book_id": book.ID,
		"panels":  len(panels),
	})
}

func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	data, err := content.Cover(r.Context(), s.store, r.PathValue("id"))
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no cover stored")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading cover failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func (s *Server) handleGetEbook(w http.ResponseWriter, r *http.Request) {
	data, err := content.Ebook(r.Context(), s.store, r.PathValue("id"))
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no ebook stored")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading ebook failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}
