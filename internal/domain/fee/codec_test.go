package fee

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFee_Decode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Fee
		amount  string
		wantErr bool
	}{
		{
			name:   "string amount defaults to cart scope",
			input:  `{"id":"ship","amount":"4.99","label":"Shipping","taxable":true}`,
			want:   Fee{ID: "ship", Label: "Shipping", Scope: ScopeCart, Taxable: true},
			amount: "4.99",
		},
		{
			name:   "number amount",
			input:  `{"id":"wrap","amount":-1.5,"scope":"item","targetProductId":"p1","noTax":true,"extra":[1]}`,
			want:   Fee{ID: "wrap", Scope: ScopeItem, TargetProductID: "p1", NoTax: true},
			amount: "-1.5",
		},
		{name: "bad amount", input: `{"id":"x","amount":"lots"}`, wantErr: true},
		{name: "bool amount", input: `{"id":"x","amount":true}`, wantErr: true},
		{name: "not an object", input: `[]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Fee
			err := f.Decode(jx.DecodeStr(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, f.Amount.String())
			f.Amount = tt.want.Amount
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestEncodeList(t *testing.T) {
	var e jx.Encoder
	EncodeList(&e, []Fee{{ID: "ship", Label: "Shipping", Scope: ScopeCart}})
	assert.JSONEq(t,
		`[{"id":"ship","amount":"0","label":"Shipping","scope":"cart","taxable":false,"noTax":false}]`,
		e.String())

	fees, err := DecodeList(jx.DecodeStr(e.String()))
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.Equal(t, "ship", fees[0].ID)
}
