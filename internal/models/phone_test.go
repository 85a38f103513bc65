package models

import (
	"errors"
	"testing"
)

func TestCanonicalPhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+49 1555 1234", "+4915551234", false},
		{"(030) 123-4567", "0301234567", false},
		{"4915551234@s.whatsapp.net", "4915551234", false},
		{"4915551234@g.us", "4915551234", false},
		{"+49x1234", "", true},
		{"", "", true},
		{"+", "", true},
	}
	for _, tc := range cases {
		got, err := CanonicalPhone(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidPhone) {
				t.Errorf("CanonicalPhone(%q) err = %v, want ErrInvalidPhone", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("CanonicalPhone(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CanonicalPhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWhatsAppJID(t *testing.T) {
	if got := WhatsAppJID("+4915551234"); got != "4915551234@s.whatsapp.net" {
		t.Errorf("WhatsAppJID = %q", got)
	}
}
