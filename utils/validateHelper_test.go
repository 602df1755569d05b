package utils

import "testing"

func TestValidatePhoneNumber(t *testing.T) {
	// Blank is allowed; optional fields stay optional.
	if err := ValidatePhoneNumber(""); err != nil {
		t.Fatalf("blank phone should pass: %v", err)
	}

	if err := ValidatePhoneNumber("+919876543210"); err != nil {
		t.Fatalf("valid E.164 number should pass: %v", err)
	}

	if err := ValidatePhoneNumber("not-a-phone"); err == nil {
		t.Fatalf("expected garbage phone to fail")
	}

	if err := ValidatePhoneNumber("+91123"); err == nil {
		t.Fatalf("expected too-short number to fail")
	}
}
