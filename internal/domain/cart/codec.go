package cart

import (
	"maps"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Encode writes the item as a JSON object. Extra options are written in key
// order.
func (i Item) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(i.ProductID) })
		if i.OptionID != nil {
			e.Field("optionId", func(e *jx.Encoder) { e.Str(*i.OptionID) })
		}
		e.Field("quantity", func(e *jx.Encoder) { e.Int(i.Quantity) })
		if len(i.Options) > 0 {
			e.Field("options", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for _, k := range slices.Sorted(maps.Keys(i.Options)) {
						e.Field(k, func(e *jx.Encoder) { e.Str(i.Options[k]) })
					}
				})
			})
		}
	})
}

// Decode reads an item object. A missing quantity decodes as 1; a null
// optionId selects the product default. Unknown fields are skipped.
func (i *Item) Decode(d *jx.Decoder) error {
	*i = Item{Quantity: 1}
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			i.ProductID = v
			return err
		case "optionId":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			i.OptionID = &v
			return nil
		case "quantity":
			v, err := d.Int()
			i.Quantity = v
			return err
		case "options":
			i.Options = make(map[string]string)
			return d.Obj(func(d *jx.Decoder, key string) error {
				v, err := d.Str()
				i.Options[key] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
}

// EncodeItems writes items as a JSON array.
func EncodeItems(e *jx.Encoder, items []Item) {
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			it.Encode(e)
		}
	})
}

// DecodeItems reads a JSON array of items.
func DecodeItems(d *jx.Decoder) ([]Item, error) {
	var items []Item
	err := d.Arr(func(d *jx.Decoder) error {
		var it Item
		if err := it.Decode(d); err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cart items")
	}
	return items, nil
}
