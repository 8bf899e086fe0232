package postgres

import (
	"slices"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/fee"
)

// Session payloads are stored as JSONB. The jx encoders are pooled, so the
// bytes are copied before the encoder is returned.

func encodeItems(items []cart.Item) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	cart.EncodeItems(e, items)
	return slices.Clone(e.Bytes())
}

func decodeItems(raw []byte) ([]cart.Item, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return cart.DecodeItems(jx.DecodeBytes(raw))
}

func encodeFees(fees []fee.Fee) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fee.EncodeList(e, fees)
	return slices.Clone(e.Bytes())
}

func decodeFees(raw []byte) ([]fee.Fee, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return fee.DecodeList(jx.DecodeBytes(raw))
}
