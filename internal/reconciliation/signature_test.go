package reconciliation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"order_id":"x"}`)
	sig := Sign("whsec", body)

	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature("whsec", body, sig))
	assert.True(t, VerifySignature("whsec", body, " "+strings.ToUpper(sig)+" "))
	assert.False(t, VerifySignature("whsec", []byte(`{"order_id":"y"}`), sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("whsec", body, ""))
}

func TestEmptySecretNeverVerifies(t *testing.T) {
	body := []byte(`{}`)
	assert.False(t, VerifySignature("", body, Sign("", body)))
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "https://shop.example/done?order_id=42&status=paid", withQuery("https://shop.example/done", "42", "paid"))
	assert.Equal(t, "https://shop.example/fail?lang=en&status=invalid_order", withQuery("https://shop.example/fail?lang=en", "", "invalid_order"))
}
