package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/domain/money"
)

// Decode reads a catalog entry such as
//
//	{"id":"course","name":"Course","variablePricing":true,"defaultOptionId":"basic",
//	 "options":[{"id":"basic","name":"Basic","price":"49.00"}]}
//
// Unknown fields are skipped.
func (p *Product) Decode(d *jx.Decoder) error {
	*p = Product{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			p.ID = v
			return err
		case "name":
			v, err := d.Str()
			p.Name = v
			return err
		case "price":
			v, err := money.Decode(d)
			p.Price = v
			return err
		case "options":
			return d.Arr(func(d *jx.Decoder) error {
				var o Option
				if err := o.decode(d); err != nil {
					return err
				}
				p.Options = append(p.Options, o)
				return nil
			})
		case "defaultOptionId":
			v, err := d.Str()
			p.DefaultOptionID = v
			return err
		case "variablePricing":
			v, err := d.Bool()
			p.VariablePricing = v
			return err
		case "quantityDisabled":
			v, err := d.Bool()
			p.QuantityDisabled = v
			return err
		case "taxExempt":
			v, err := d.Bool()
			p.TaxExempt = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	if p.ID == "" {
		return errors.New("product id is required")
	}
	if p.DefaultOptionID != "" {
		if _, ok := p.Option(p.DefaultOptionID); !ok {
			return errors.Errorf("product %s: default option %q is not defined", p.ID, p.DefaultOptionID)
		}
	}
	return nil
}

func (o *Option) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			o.ID = v
			return err
		case "name":
			v, err := d.Str()
			o.Name = v
			return err
		case "price":
			v, err := money.Decode(d)
			o.Price = v
			return err
		default:
			return d.Skip()
		}
	})
}

// DecodeList reads a JSON array of products.
func DecodeList(d *jx.Decoder) ([]Product, error) {
	var products []Product
	err := d.Arr(func(d *jx.Decoder) error {
		var p Product
		if err := p.Decode(d); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}
