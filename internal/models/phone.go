package models

import (
	"errors"
	"strings"
)

var ErrInvalidPhone = errors.New("phone number must contain only digits")

// CanonicalPhone strips formatting characters and any WhatsApp JID suffix
// from a phone number and validates that only digits (plus an optional
// leading +) remain.
func CanonicalPhone(raw string) (string, error) {
	phone := raw
	for _, suffix := range []string{"@s.whatsapp.net", "@g.us"} {
		phone = strings.TrimSuffix(phone, suffix)
	}
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	phone = replacer.Replace(phone)

	digits := strings.TrimPrefix(phone, "+")
	if digits == "" || strings.Contains(digits, "+") {
		return "", ErrInvalidPhone
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhone
		}
	}
	return phone, nil
}

// WhatsAppJID returns the canonical WhatsApp id for a phone number.
func WhatsAppJID(phone string) string {
	return strings.TrimPrefix(phone, "+") + "@s.whatsapp.net"
}
