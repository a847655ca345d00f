/*
receipt.go - WhatsApp receipt text

PURPOSE:
  Builds the thank-you message a collector sends after a successful
  visit, and the wa.me link that opens it. Pure string work; actually
  opening the link is the client's job.
*/
package collection

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/esaar/collection-engine/billing"
)

// Pakistani country code, applied when a local number starts with 0.
const phoneCountryCode = "92"

// NormalizePhone strips non-digits and rewrites a leading 0 to the
// country code, the format wa.me expects.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if strings.HasPrefix(cleaned, "0") {
		cleaned = phoneCountryCode + cleaned[1:]
	}
	return cleaned
}

// ReceiptMessage is the donation acknowledgement text.
func ReceiptMessage(donorName string, amount billing.Amount) string {
	return fmt.Sprintf(
		"Assalam-o-Alaikum *%s*, JazakAllah! We have successfully received your monthly donation of *Rs. %s* for *Esaar Blood Bank*. Your contribution helps us save lives.",
		donorName, amount,
	)
}

// ReceiptLink builds the wa.me URL carrying the receipt message.
func ReceiptLink(donor billing.Donor, amount billing.Amount) string {
	return fmt.Sprintf("https://wa.me/%s?text=%s",
		NormalizePhone(donor.Phone),
		url.QueryEscape(ReceiptMessage(donor.Name, amount)),
	)
}
