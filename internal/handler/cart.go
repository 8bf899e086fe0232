package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/fee"
	"github.com/xenking/kart-pricing/internal/domain/tax"
)

// maxBodySize bounds request bodies. Cart requests are tiny.
const maxBodySize = 64 << 10

var (
	errDiscountNotApplied = errors.New("discount not applied")
	errFeeNotFound        = errors.New("fee not found")
	errFeeExists          = errors.New("fee already exists")
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, nil)
}

func (h *Handler) emptyCart(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(_ *http.Request, c *cart.Cart) error {
		c.Empty()
		return nil
	})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusCreated, func(r *http.Request, c *cart.Cart) error {
		var item cart.Item
		if err := decodeBody(r, item.Decode); err != nil {
			return err
		}
		if item.ProductID == "" {
			return badRequest(nil, "productId is required")
		}
		_, err := c.Add(item)
		return err
	})
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(r *http.Request, c *cart.Cart) error {
		index, err := pathIndex(r)
		if err != nil {
			return err
		}
		quantity := -1
		if err := decodeBody(r, func(d *jx.Decoder) error {
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "quantity" {
					return d.Skip()
				}
				v, err := d.Int()
				quantity = v
				return err
			})
		}); err != nil {
			return err
		}
		if quantity < 0 {
			return badRequest(nil, "quantity must be zero or positive")
		}
		return c.SetQuantity(index, quantity)
	})
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(r *http.Request, c *cart.Cart) error {
		index, err := pathIndex(r)
		if err != nil {
			return err
		}
		return c.Remove(index)
	})
}

func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(r *http.Request, c *cart.Cart) error {
		var code string
		if err := decodeBody(r, func(d *jx.Decoder) error {
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "code" {
					return d.Skip()
				}
				v, err := d.Str()
				code = v
				return err
			})
		}); err != nil {
			return err
		}
		d, err := h.discounts.Validate(r.Context(), code)
		if err != nil {
			return err
		}
		return c.ApplyDiscount(*d)
	})
}

func (h *Handler) removeDiscount(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(r *http.Request, c *cart.Cart) error {
		code := r.PathValue("code")
		if !c.RemoveDiscount(code) {
			return errors.Wrapf(errDiscountNotApplied, "code %q", code)
		}
		return nil
	})
}

func (h *Handler) addFee(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusCreated, func(r *http.Request, c *cart.Cart) error {
		var f fee.Fee
		if err := decodeBody(r, f.Decode); err != nil {
			return err
		}
		ok, err := c.AddFee(f)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(errFeeExists, "id %q", f.ID)
		}
		return nil
	})
}

func (h *Handler) removeFee(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(r *http.Request, c *cart.Cart) error {
		id := r.PathValue("id")
		if !c.RemoveFee(id) {
			return errors.Wrapf(errFeeNotFound, "id %q", id)
		}
		return nil
	})
}

func (h *Handler) setJurisdiction(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, func(r *http.Request, c *cart.Cart) error {
		var j tax.Jurisdiction
		if err := decodeBody(r, func(d *jx.Decoder) error {
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "country":
					v, err := d.Str()
					j.Country = v
					return err
				case "region":
					v, err := d.Str()
					j.Region = v
					return err
				default:
					return d.Skip()
				}
			})
		}); err != nil {
			return err
		}
		c.SetJurisdiction(j)
		return nil
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
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
	if _, err := c.Calculate(); err != nil {
		h.fail(ctx, w, err)
		return
	}
	s := c.CalculationStats()
	writeJSON(w, http.StatusOK, func(e *encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("cached", func(e *jx.Encoder) { e.Bool(s.Cached) })
			e.Field("cacheSize", func(e *jx.Encoder) { e.Int(s.CacheSize) })
			e.Field("cacheEnabled", func(e *jx.Encoder) { e.Bool(h.cfg.Cart.CacheEnabled) })
		})
	})
}

func pathIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(err, "invalid item index")
	}
	return index, nil
}

// decodeBody reads the whole request body and runs decode over it.
func decodeBody(r *http.Request, decode func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return badRequest(err, "read body")
	}
	if len(body) == 0 {
		return badRequest(nil, "request body is required")
	}
	if err := decode(jx.DecodeBytes(body)); err != nil {
		return badRequest(err, "invalid JSON body")
	}
	return nil
}
