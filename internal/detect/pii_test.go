package detect

import (
	"strings"
	"testing"
)

func TestPIIDetector_TruePositives(t *testing.T) {
	d := NewPIIDetector()

	tests := []struct {
		name     string
		text     string
		category PIICategory
	}{
		// Email
		{"email simple", "Contact me at john.doe@example.com", PIIEmail},
		{"email with plus", "Email: user+tag@company.org", PIIEmail},
		{"email uppercase", "Send it to ALICE@BIGCORP.IO please", PIIEmail},

		// Phone (French national format)
		{"phone compact", "Appelez le 0612345678", PIIPhone},
		{"phone spaced", "Mon numero est 06 12 34 56 78", PIIPhone},
		{"phone dotted", "Tel: 01.42.68.53.00", PIIPhone},

		// Credit cards
		{"card dashes", "Card number: 4111-1111-1111-1111", PIICreditCard},
		{"card spaces", "4532 0151 1283 0366", PIICreditCard},
		{"card compact", "Pay with 4111111111111111", PIICreditCard},

		// National identification number
		{"insee number", "Numero de securite sociale: 185057800608481", PIINationalID},

		// IBAN
		{"iban fr", "Transfer to FR7630006000011234567890189", PIIIBAN},
		{"iban de", "IBAN: DE89370400440532013000", PIIIBAN},

		// IP address
		{"ipv4 private", "Server at 192.168.1.1 is down", PIIIPAddress},
		{"ipv4 public", "Connect to 8.8.8.8", PIIIPAddress},

		// Date of birth
		{"dob slashes", "Born on 14/07/1989", PIIDateOfBirth},
		{"dob dashes", "DOB: 01-12-2001", PIIDateOfBirth},

		// Name mention heuristics
		{"name english", "My name is Alice", PIIName},
		{"name french", "Je m'appelle Jean Dupont", PIIName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := d.Detect(tt.text)
			if _, ok := found[tt.category]; !ok {
				t.Errorf("expected category %q in findings %v for text: %s", tt.category, found.Categories(), tt.text)
			}
		})
	}
}

func TestPIIDetector_ExactEmailMatch(t *testing.T) {
	d := NewPIIDetector()

	found := d.Detect("Contact me at john.doe@example.com")
	matches, ok := found[PIIEmail]
	if !ok {
		t.Fatalf("expected email finding, got %v", found.Categories())
	}
	if len(matches) != 1 || matches[0] != "john.doe@example.com" {
		t.Errorf("got %v, want exactly [john.doe@example.com]", matches)
	}
}

func TestPIIDetector_TrueNegatives(t *testing.T) {
	d := NewPIIDetector()

	tests := []struct {
		name string
		text string
	}{
		{"normal text", "The weather today is sunny and warm"},
		{"order number", "Order #12345 shipped yesterday"},
		{"year", "The company was founded in 2024"},
		{"version string", "Upgrade to version 2.4.1 before Friday"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := d.Detect(tt.text)
			if found.Count() != 0 {
				t.Errorf("expected no findings, got %v for text: %s", found, tt.text)
			}
		})
	}
}

func TestPIIDetector_MultipleCategories(t *testing.T) {
	d := NewPIIDetector()

	found := d.Detect("My name is Bob, email bob@example.com, call 0612345678")
	for _, want := range []PIICategory{PIIEmail, PIIPhone, PIIName} {
		if _, ok := found[want]; !ok {
			t.Errorf("expected category %q, got %v", want, found.Categories())
		}
	}
	if found.Count() < 3 {
		t.Errorf("expected at least 3 matches, got %d", found.Count())
	}
}

func TestPIIDetector_CategoriesOrderStable(t *testing.T) {
	d := NewPIIDetector()

	text := "je suis Paul, ip 10.0.0.1, mail paul@example.fr"
	for i := 0; i < 10; i++ {
		cats := d.Detect(text).Categories()
		want := []PIICategory{PIIEmail, PIIIPAddress, PIIName}
		if len(cats) != len(want) {
			t.Fatalf("got %v, want %v", cats, want)
		}
		for j := range want {
			if cats[j] != want[j] {
				t.Fatalf("iteration %d: got %v, want %v", i, cats, want)
			}
		}
	}
}

func TestPIIDetector_Redact(t *testing.T) {
	d := NewPIIDetector()

	tests := []struct {
		name        string
		text        string
		notContains []string
		contains    []string
	}{
		{
			"email redacted",
			"Contact john.doe@example.com today",
			[]string{"john.doe@example.com"},
			[]string{"[REDACTED_EMAIL]"},
		},
		{
			"repeated match fully redacted",
			"mail a@b.io or a@b.io again",
			[]string{"a@b.io"},
			[]string{"[REDACTED_EMAIL]"},
		},
		{
			"multiple categories",
			"Card 4111-1111-1111-1111 from 192.168.1.1",
			[]string{"4111-1111-1111-1111", "192.168.1.1"},
			[]string{"[REDACTED_CREDIT_CARD]", "[REDACTED_IP_ADDRESS]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := d.Detect(tt.text)
			redacted := d.Redact(tt.text, found)
			for _, s := range tt.notContains {
				if strings.Contains(redacted, s) {
					t.Errorf("redacted text still contains %q: %s", s, redacted)
				}
			}
			for _, s := range tt.contains {
				if !strings.Contains(redacted, s) {
					t.Errorf("redacted text missing %q: %s", s, redacted)
				}
			}
		})
	}
}

func TestPIIDetector_RedactNoFindings(t *testing.T) {
	d := NewPIIDetector()

	text := "nothing sensitive here"
	if got := d.Redact(text, PIIFindings{}); got != text {
		t.Errorf("expected text unchanged, got %q", got)
	}
}

func TestPIIDetector_UnicodeInput(t *testing.T) {
	d := NewPIIDetector()

	// Must not panic or mangle multi-byte input.
	text := "Résumé envoyé à rémi@exemple.fr — 日本語テキスト"
	found := d.Detect(text)
	if _, ok := found[PIIEmail]; !ok {
		t.Errorf("expected email finding in unicode text, got %v", found)
	}
	redacted := d.Redact(text, found)
	if !strings.Contains(redacted, "日本語テキスト") {
		t.Errorf("redaction mangled unrelated unicode: %s", redacted)
	}
}

func BenchmarkPIIDetector_Clean(b *testing.B) {
	d := NewPIIDetector()
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Detect(text)
	}
}

func BenchmarkPIIDetector_Mixed(b *testing.B) {
	d := NewPIIDetector()
	text := "My name is Bob, email bob@example.com, card 4111-1111-1111-1111, ip 10.0.0.1 " +
		strings.Repeat("filler words here ", 30)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Detect(text)
	}
}
