package fee

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/domain/money"
)

// Encode writes the fee as a JSON object. Amounts are decimal strings.
func (f Fee) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(f.ID) })
		e.Field("amount", func(e *jx.Encoder) { e.Str(f.Amount.String()) })
		e.Field("label", func(e *jx.Encoder) { e.Str(f.Label) })
		e.Field("scope", func(e *jx.Encoder) { e.Str(string(f.Scope)) })
		if f.TargetProductID != "" {
			e.Field("targetProductId", func(e *jx.Encoder) { e.Str(f.TargetProductID) })
		}
		e.Field("taxable", func(e *jx.Encoder) { e.Bool(f.Taxable) })
		e.Field("noTax", func(e *jx.Encoder) { e.Bool(f.NoTax) })
	})
}

// Decode reads a fee object. The amount may be a string or a number and the
// scope defaults to cart. Unknown fields are skipped.
func (f *Fee) Decode(d *jx.Decoder) error {
	*f = Fee{Scope: ScopeCart}
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			f.ID = v
			return err
		case "amount":
			v, err := money.Decode(d)
			f.Amount = v
			return err
		case "label":
			v, err := d.Str()
			f.Label = v
			return err
		case "scope":
			v, err := d.Str()
			f.Scope = Scope(v)
			return err
		case "targetProductId":
			v, err := d.Str()
			f.TargetProductID = v
			return err
		case "taxable":
			v, err := d.Bool()
			f.Taxable = v
			return err
		case "noTax":
			v, err := d.Bool()
			f.NoTax = v
			return err
		default:
			return d.Skip()
		}
	})
}

// EncodeList writes fees as a JSON array.
func EncodeList(e *jx.Encoder, fees []Fee) {
	e.Arr(func(e *jx.Encoder) {
		for _, f := range fees {
			f.Encode(e)
		}
	})
}

// DecodeList reads a JSON array of fees.
func DecodeList(d *jx.Decoder) ([]Fee, error) {
	var fees []Fee
	err := d.Arr(func(d *jx.Decoder) error {
		var f Fee
		if err := f.Decode(d); err != nil {
			return err
		}
		fees = append(fees, f)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode fees")
	}
	return fees, nil
}
