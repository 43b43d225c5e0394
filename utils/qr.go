package utils

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// TicketPayload is the string encoded in a ticket QR code:
// "<EVENT-TAG>|<registrationId>|<email>".
func TicketPayload(eventTag, registrationID, email string) string {
	return fmt.Sprintf("%s|%s|%s", eventTag, registrationID, email)
}

// ParseTicketPayload returns the registration id segment of a ticket payload.
func ParseTicketPayload(code string) (tag, registrationID, email string, ok bool) {
	parts := strings.Split(code, "|")
	if len(parts) != 3 || parts[1] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// TicketPNG renders payload as a QR code PNG.
func TicketPNG(payload string, size int) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, size)
}
