package detect

import (
	"regexp"
	"strings"
)

// PIICategory identifies a class of personally identifiable information.
type PIICategory string

const (
	PIIEmail       PIICategory = "email"
	PIIPhone       PIICategory = "phone"
	PIICreditCard  PIICategory = "credit_card"
	PIINationalID  PIICategory = "ssn"
	PIIIBAN        PIICategory = "iban"
	PIIIPAddress   PIICategory = "ip_address"
	PIIDateOfBirth PIICategory = "date_of_birth"
	PIIName        PIICategory = "name"
)

// Pre-compiled PII patterns, compiled once at startup and never during a request.
// Categories are evaluated independently and in this fixed order; a substring
// may legally match more than one category.
var piiPatterns = []struct {
	category PIICategory
	re       *regexp.Regexp
}{
	{PIIEmail, regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	// French national format plus international prefix
	{PIIPhone, regexp.MustCompile(`(?i)\b(?:\+33|0033|0)[1-9](?:[.\-\s]?\d{2}){4}\b`)},
	{PIICreditCard, regexp.MustCompile(`\b(?:\d{4}[.\-\s]?){3}\d{4}\b`)},
	// INSEE-style 15-digit national identification number
	{PIINationalID, regexp.MustCompile(`\b[12][0-9]{2}[0-1][0-9][0-9]{2}[0-9]{3}[0-9]{3}[0-9]{2}\b`)},
	{PIIIBAN, regexp.MustCompile(`(?i)\b[A-Z]{2}\d{2}[A-Z0-9]{4}\d{7}[A-Z0-9]{0,16}\b`)},
	{PIIIPAddress, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{PIIDateOfBirth, regexp.MustCompile(`\b(?:0[1-9]|[12][0-9]|3[01])[/\-](?:0[1-9]|1[0-2])[/\-](?:19|20)\d{2}\b`)},
}

// Name mentions have no reliable shape, so they are matched by a keyword
// heuristic: the first matching keyword yields at most one NAME entry.
var nameKeywords = []string{
	"je m'appelle", "mon nom est", "my name is", "i am", "je suis",
	"prénom", "firstname", "lastname", "nom de famille",
}

// PIIFindings maps each detected category to the ordered list of matched
// substrings.
type PIIFindings map[PIICategory][]string

// Count sums match counts across all categories.
func (f PIIFindings) Count() int {
	n := 0
	for _, matches := range f {
		n += len(matches)
	}
	return n
}

// Categories returns the detected categories in pattern-table order.
func (f PIIFindings) Categories() []PIICategory {
	out := make([]PIICategory, 0, len(f))
	for _, p := range piiPatterns {
		if _, ok := f[p.category]; ok {
			out = append(out, p.category)
		}
	}
	if _, ok := f[PIIName]; ok {
		out = append(out, PIIName)
	}
	return out
}

// PIIDetector scans free text for personally identifiable information.
// Stateless and safe for concurrent use.
type PIIDetector struct{}

func NewPIIDetector() *PIIDetector {
	return &PIIDetector{}
}

// Detect scans text against every category independently. Empty text yields
// an empty result. Arbitrary Unicode input must not fail.
func (d *PIIDetector) Detect(text string) PIIFindings {
	found := PIIFindings{}
	if text == "" {
		return found
	}

	for _, p := range piiPatterns {
		if matches := p.re.FindAllString(text, -1); len(matches) > 0 {
			found[p.category] = matches
		}
	}

	lower := strings.ToLower(text)
	for _, keyword := range nameKeywords {
		if strings.Contains(lower, keyword) {
			found[PIIName] = []string{keyword}
			break
		}
	}

	return found
}

// Redact replaces every occurrence of every matched substring with a
// per-category placeholder token. Repeat occurrences are all replaced.
func (d *PIIDetector) Redact(text string, findings PIIFindings) string {
	redacted := text
	for _, category := range findings.Categories() {
		placeholder := "[REDACTED_" + strings.ToUpper(string(category)) + "]"
		for _, match := range findings[category] {
			redacted = strings.ReplaceAll(redacted, match, placeholder)
		}
	}
	return redacted
}
