package collection_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/esaar/collection-engine/billing"
	"github.com/esaar/collection-engine/collection"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0300-1234567":    "923001234567", // local with separator
		"03001234567":     "923001234567",
		"+92 300 1234567": "923001234567", // already international
		"923001234567":    "923001234567",
		"":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, collection.NormalizePhone(in), "input %q", in)
	}
}

func TestReceiptMessage_NamesDonorAndAmount(t *testing.T) {
	msg := collection.ReceiptMessage("Ahmed Khan", billing.NewAmount(1500))
	assert.Contains(t, msg, "*Ahmed Khan*")
	assert.Contains(t, msg, "*Rs. 1500*")
	assert.Contains(t, msg, "Esaar Blood Bank")
}

func TestReceiptLink_EncodedWaMeURL(t *testing.T) {
	donor := billing.Donor{
		Name:  "Ahmed Khan",
		Phone: "0300-1234567",
	}
	link := collection.ReceiptLink(donor, billing.NewAmount(1000))

	assert.True(t, strings.HasPrefix(link, "https://wa.me/923001234567?text="))
	// The message is query-escaped; raw spaces and asterisks must not
	// leak into the URL.
	assert.NotContains(t, link[len("https://wa.me/923001234567?text="):], " ")
	assert.Contains(t, link, "Ahmed")
}
