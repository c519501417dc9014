package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGatewayCapture(t *testing.T) {
	gw := NewMockGateway()
	amount := decimal.RequireFromString("59.97")

	result, err := gw.Capture(context.Background(), amount, CardInstrument{
		CardNumber: "4242424242424242",
		Expiry:     "12/27",
		CVV:        "123",
	})

	require.NoError(t, err)
	assert.Equal(t, CaptureSucceeded, result.Status)
	assert.Regexp(t, `^TXN-[0-9A-F]{8}$`, result.ProviderTxID)
}

func TestMockGatewayDeclinesTestCard(t *testing.T) {
	gw := NewMockGateway()

	result, err := gw.Capture(context.Background(), decimal.NewFromInt(10), CardInstrument{
		CardNumber: "4000000000000002",
		Expiry:     "12/27",
		CVV:        "123",
	})

	require.NoError(t, err)
	assert.Equal(t, CaptureDeclined, result.Status)
	assert.Empty(t, result.ProviderTxID)
}

func TestMockGatewayRefund(t *testing.T) {
	gw := NewMockGateway()

	result, err := gw.Refund(context.Background(), "TXN-DEADBEEF")
	require.NoError(t, err)
	assert.Equal(t, RefundSucceeded, result.Status)
}
