package cmd

import (
	"testing"

	"github.com/etnz/cryptofolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignments(t *testing.T) {
	raw, err := parseAssignments([]string{"btc=0.5", " USDT = 1000"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"BTC": "0.5", "USDT": " 1000"}, raw)

	update, err := cryptofolio.ParseUpdate(raw)
	require.NoError(t, err)
	assert.True(t, update["BTC"].Equal(cryptofolio.Q(0.5)))
	assert.True(t, update["USDT"].Equal(cryptofolio.Q(1000)))
}

func TestParseAssignments_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"none", nil, "no asset"},
		{"no equal sign", []string{"BTC"}, "expected SYMBOL=QUANTITY"},
		{"twice", []string{"BTC=1", "btc=2"}, "assigned twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAssignments(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseAssignments_InvalidQuantity(t *testing.T) {
	raw, err := parseAssignments([]string{"BTC=-1", "ETH=abc"})
	require.NoError(t, err, "quantities are validated by ParseUpdate")

	_, err = cryptofolio.ParseUpdate(raw)
	require.ErrorIs(t, err, cryptofolio.ErrInvalidAmount)
	assert.Contains(t, err.Error(), "BTC")
}

func TestCompletion(t *testing.T) {
	assert.Contains(t, Completion.Sub, "update")
	assert.Contains(t, Completion.Sub["history"].Flags, "png")
}
