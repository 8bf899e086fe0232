// Package handler exposes the cart over a JSON HTTP API. Every request
// restores the session cart from the store, applies one mutation, saves the
// session and responds with the priced cart.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/tax"
)

// DefaultSessionHeader is the request header carrying the cart session id.
const DefaultSessionHeader = "X-Cart-Session"

// Discounts validates codes applied by shoppers and resolves codes restored
// from a session.
type Discounts interface {
	discount.Validator
	discount.Source
}

var (
	_ Discounts = (*discount.RepoValidator)(nil)
	_ Discounts = discount.MapSource(nil)
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// SessionHeader defaults to DefaultSessionHeader.
	SessionHeader string
	Cart          cart.Settings
	Tax           tax.Settings
}

// Handler serves the cart API.
type Handler struct {
	cfg       Config
	resolver  cart.Resolver
	sessions  cart.SessionStore
	discounts Discounts
	taxes     *tax.Resolver
	metrics   *pricing.Metrics
	mux       *http.ServeMux
}

// NewHandler constructs a Handler with the required domain dependencies. A nil
// tax resolver taxes nothing and nil metrics are not recorded.
func NewHandler(
	cfg Config,
	resolver cart.Resolver,
	sessions cart.SessionStore,
	discounts Discounts,
	taxes *tax.Resolver,
	metrics *pricing.Metrics,
) *Handler {
	if cfg.SessionHeader == "" {
		cfg.SessionHeader = DefaultSessionHeader
	}
	h := &Handler{
		cfg:       cfg,
		resolver:  resolver,
		sessions:  sessions,
		discounts: discounts,
		taxes:     taxes,
		metrics:   metrics,
		mux:       http.NewServeMux(),
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	h.handle("GET /api/cart", h.getCart)
	h.handle("DELETE /api/cart", h.emptyCart)
	h.handle("POST /api/cart/items", h.addItem)
	h.handle("PATCH /api/cart/items/{index}", h.updateItem)
	h.handle("DELETE /api/cart/items/{index}", h.removeItem)
	h.handle("POST /api/cart/discounts", h.applyDiscount)
	h.handle("DELETE /api/cart/discounts/{code}", h.removeDiscount)
	h.handle("POST /api/cart/fees", h.addFee)
	h.handle("DELETE /api/cart/fees/{id}", h.removeFee)
	h.handle("PUT /api/cart/jurisdiction", h.setJurisdiction)
	h.handle("GET /api/cart/stats", h.stats)
}

// handle registers fn and labels its span and request metrics with the
// matched route.
func (h *Handler) handle(pattern string, fn http.HandlerFunc) {
	h.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		route := attribute.String("http.route", r.Pattern)
		span := trace.SpanFromContext(r.Context())
		span.SetName(r.Pattern)
		span.SetAttributes(route)
		if l, ok := otelhttp.LabelerFromContext(r.Context()); ok {
			l.Add(route)
		}
		fn(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// mutation changes a restored cart. A nil mutation only reads the cart.
type mutation func(r *http.Request, c *cart.Cart) error

// serve runs the restore, mutate, save and price cycle for one request.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, status int, mutate mutation) {
	ctx := r.Context()
	sessionID, err := h.session(w, r)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	c, err := h.restore(ctx, sessionID)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	if mutate != nil {
		if err := mutate(r, c); err != nil {
			h.fail(ctx, w, err)
			return
		}
		if err := c.Save(ctx, h.sessions, sessionID); err != nil {
			h.fail(ctx, w, err)
			return
		}
	}

	res, err := c.Calculate()
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	writeJSON(w, status, func(e *encoder) { e.cart(sessionID, c, res) })
}

func (h *Handler) restore(ctx context.Context, sessionID string) (*cart.Cart, error) {
	lg := zctx.From(ctx).With(zap.String("session_id", sessionID))
	c := cart.New(h.resolver, h.cfg.Cart,
		cart.WithLogger(lg),
		cart.WithTaxes(h.taxes, h.cfg.Tax),
		cart.WithMetrics(h.metrics),
	)
	if err := c.Load(ctx, h.sessions, h.discounts, sessionID); err != nil {
		return nil, err
	}
	return c, nil
}

// session returns the session id of the request, issuing a new one when the
// header is absent. The id is echoed back on the response.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, error) {
	id := r.Header.Get(h.cfg.SessionHeader)
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return "", badRequest(err, "invalid session id")
	}
	w.Header().Set(h.cfg.SessionHeader, id)
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("cart.session_id", id))
	return id, nil
}
