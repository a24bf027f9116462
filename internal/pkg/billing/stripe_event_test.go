package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCheckoutCompleted(t *testing.T) {
	raw := []byte(`{"id":"cs_1","amount_total":2500,"payment_status":"paid","customer":"cus_9","metadata":{"user_id":"u-1"}}`)
	got, err := ParseCheckoutCompleted(raw)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", got.SessionID)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, "cus_9", got.CustomerID)
	assert.True(t, got.Paid)
	assert.Equal(t, 25.0, got.AmountEUR())
}

func TestParseCheckoutCompleted_ClientReferenceFallback(t *testing.T) {
	got, err := ParseCheckoutCompleted([]byte(`{"id":"cs_2","amount_total":100,"payment_status":"unpaid","client_reference_id":"u-2"}`))
	require.NoError(t, err)
	assert.Equal(t, "u-2", got.UserID)
	assert.False(t, got.Paid)
}

func TestParseCheckoutCompleted_Errors(t *testing.T) {
	_, err := ParseCheckoutCompleted([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseCheckoutCompleted([]byte(`{"id":"cs_3"}`))
	assert.Error(t, err)
}
