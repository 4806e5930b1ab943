package audit

import (
	"strings"
	"testing"
)

func TestScrub_UUID(t *testing.T) {
	in := "viewed patient 550e8400-e29b-41d4-a716-446655440000 chart"
	got := Scrub(in)
	if strings.Contains(got, "550e8400") {
		t.Errorf("uuid survived scrub: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Errorf("expected redaction marker, got %q", got)
	}
}

func TestScrub_Email(t *testing.T) {
	got := Scrub("login for jane.doe+test@example.co.uk succeeded")
	if strings.Contains(got, "example.co.uk") || strings.Contains(got, "jane.doe") {
		t.Errorf("email survived scrub: %q", got)
	}
}

func TestScrub_Phone(t *testing.T) {
	for _, in := range []string{
		"called +1 (555) 123-4567 about results",
		"phone updated to 555-123-4567",
		"contact 5551234567",
	} {
		got := Scrub(in)
		if strings.ContainsAny(got, "0123456789") {
			t.Errorf("Scrub(%q) = %q, digits survived", in, got)
		}
	}
}

func TestScrub_KeepsShortCounts(t *testing.T) {
	got := Scrub("recorded 3 vitals")
	if got != "recorded 3 vitals" {
		t.Errorf("short digit runs must survive, got %q", got)
	}
}

func TestScrub_Idempotent(t *testing.T) {
	in := "user a@b.io updated 550e8400-e29b-41d4-a716-446655440000"
	once := Scrub(in)
	if Scrub(once) != once {
		t.Errorf("scrub not idempotent: %q -> %q", once, Scrub(once))
	}
}
