package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/domain/fee"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/product"
)

// requestError is a malformed request. It maps to 400.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error, msg string) error {
	return &requestError{msg: msg, err: err}
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, errDiscountNotApplied),
		errors.Is(err, errFeeNotFound):
		return http.StatusNotFound
	case errors.Is(err, errFeeExists):
		return http.StatusConflict
	case errors.Is(err, product.ErrConfiguration),
		errors.Is(err, discount.ErrInvalidDiscount),
		errors.Is(err, discount.ErrExpired),
		errors.Is(err, discount.ErrUsageLimitReached),
		errors.Is(err, discount.ErrAlreadyApplied),
		errors.Is(err, discount.ErrMultipleNotAllowed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(ctx).Error("cart request failed", zap.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, func(e *encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

type encoder struct {
	*jx.Encoder
}

func writeJSON(w http.ResponseWriter, status int, write func(e *encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	write(&encoder{Encoder: e})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status is already sent; a failed write means the client is gone.
	_, _ = w.Write(e.Bytes())
}

// cart writes the session state along with its pricing.
func (e *encoder) cart(sessionID string, c *cart.Cart, res *pricing.Result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("sessionId", func(e *jx.Encoder) { e.Str(sessionID) })
		e.Field("items", func(e *jx.Encoder) { cart.EncodeItems(e, c.Contents()) })
		e.Field("discounts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, d := range c.Discounts() {
					e.Obj(func(e *jx.Encoder) {
						e.Field("code", func(e *jx.Encoder) { e.Str(d.Code) })
						if d.Description != "" {
							e.Field("description", func(e *jx.Encoder) { e.Str(d.Description) })
						}
					})
				}
			})
		})
		e.Field("fees", func(e *jx.Encoder) { fee.EncodeList(e, c.Fees().Fees(fee.Filter{})) })
		if j := c.Jurisdiction(); !j.IsZero() {
			e.Field("jurisdiction", func(e *jx.Encoder) { e.Str(j.Key()) })
		}
		e.Field("taxRate", func(e *jx.Encoder) { e.Str(c.TaxRate().String()) })
		e.Field("pricing", res.Encode)
	})
}
