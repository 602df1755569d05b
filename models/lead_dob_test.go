package models

import (
	"testing"
	"time"
)

func TestDateOfBirthFromAge(t *testing.T) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	got := dateOfBirthFromAge(30, now)
	want := time.Date(1996, 8, 23, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("dateOfBirthFromAge(30) = %s; want %s", got, want)
	}

	// Unknown age falls back to the conversion date itself.
	if got := dateOfBirthFromAge(0, now); !got.Equal(now) {
		t.Fatalf("dateOfBirthFromAge(0) = %s; want %s", got, now)
	}
	if got := dateOfBirthFromAge(-1, now); !got.Equal(now) {
		t.Fatalf("dateOfBirthFromAge(-1) = %s; want %s", got, now)
	}
}
