package money

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: `"4.99"`, want: "4.99"},
		{input: `"-0.005"`, want: "-0.005"},
		{input: `12.5`, want: "12.5"},
		{input: `1e2`, want: "100"},
		{input: `"ten"`, wantErr: true},
		{input: `true`, wantErr: true},
		{input: `null`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Decode(jx.DecodeStr(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
