package oxpay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storefront/internal/payment/oxpay"
)

func TestCanonicalize(t *testing.T) {
	params := map[string]string{
		"referenceNo": "ord-1",
		"amount":      "25.00",
		"currency":    "SGD",
		"description": "",
		"signature":   "ignored",
	}
	assert.Equal(t, "amount=25.00&currency=SGD&referenceNo=ord-1", oxpay.Canonicalize(params))
}

func TestSign(t *testing.T) {
	params := map[string]string{"a": "1", "b": "2"}

	v1 := oxpay.Sign(oxpay.V1, "secret", params)
	v2 := oxpay.Sign(oxpay.V2, "secret", params)

	assert.Len(t, v1, 128, "v1 signs with HMAC-SHA512")
	assert.Len(t, v2, 64, "v2 signs with HMAC-SHA256")
	assert.Equal(t, v2, oxpay.Sign(oxpay.V2, "secret", map[string]string{"b": "2", "a": "1"}))
	assert.NotEqual(t, v2, oxpay.Sign(oxpay.V2, "other", params))
}

func TestVerify(t *testing.T) {
	params := map[string]string{"merchant_reference": "ord-1", "status": "captured"}
	sig := oxpay.Sign(oxpay.V2, "secret", params)

	assert.True(t, oxpay.Verify(oxpay.V2, "secret", params, sig))
	assert.False(t, oxpay.Verify(oxpay.V2, "secret", params, ""))
	assert.False(t, oxpay.Verify(oxpay.V1, "secret", params, sig))

	tampered := map[string]string{"merchant_reference": "ord-1", "status": "refunded"}
	assert.False(t, oxpay.Verify(oxpay.V2, "secret", tampered, sig))
}
