package discount

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/money"
)

// Decode reads a discount definition such as
//
//	{"code":"SAVE10","type":"percent","amount":"10","scope":"excluded",
//	 "products":["gift-card"],"active":true,"validUntil":"2026-12-31T23:59:59Z"}
//
// Active defaults to true. Unknown fields are skipped.
func (r *Rule) Decode(d *jx.Decoder) error {
	var (
		typ      = TypePercent
		amount   decimal.Decimal
		scope    string
		products []string
	)
	*r = Rule{Active: true}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			r.Discount.Code = NormalizeCode(v)
			return err
		case "description":
			v, err := d.Str()
			r.Discount.Description = v
			return err
		case "type":
			v, err := d.Str()
			typ = v
			return err
		case "amount":
			v, err := money.Decode(d)
			amount = v
			return err
		case "scope":
			v, err := d.Str()
			scope = v
			return err
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				v, err := d.Str()
				products = append(products, v)
				return err
			})
		case "notGlobal":
			v, err := d.Bool()
			r.Discount.NotGlobal = v
			return err
		case "minCartPrice":
			v, err := money.Decode(d)
			r.Discount.MinCartPrice = v
			return err
		case "active":
			v, err := d.Bool()
			r.Active = v
			return err
		case "validFrom":
			v, err := decodeTime(d)
			r.ValidFrom = v
			return err
		case "validUntil":
			v, err := decodeTime(d)
			r.ValidUntil = v
			return err
		case "maxUses":
			v, err := d.Int()
			r.MaxUses = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}

	if r.Discount.Code == "" {
		return errors.Wrap(ErrInvalidDiscount, "code is required")
	}
	if r.Discount.Kind, err = NewKind(typ, amount); err != nil {
		return errors.Wrapf(err, "discount %q", r.Discount.Code)
	}
	if r.Discount.Scope, err = NewScope(scope, products); err != nil {
		return errors.Wrapf(err, "discount %q", r.Discount.Code)
	}
	return nil
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.Wrapf(err, "time %q", v)
	}
	return &t, nil
}
