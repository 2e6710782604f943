// Package contact pulls a (name, phone) pair out of user supplied text and
// validates the phone against the domestic numbering rules.
package contact

import (
	"regexp"
	"strings"
)

// Outcome classifies an extraction attempt.
type Outcome uint8

const (
	// OutcomeNoPhone means nothing phone-like was found.
	OutcomeNoPhone Outcome = iota
	// OutcomeInvalidPhone means a phone-like run was found but failed validation.
	OutcomeInvalidPhone
	// OutcomeExtracted carries a valid phone and the (possibly empty) name.
	OutcomeExtracted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalidPhone:
		return "invalid_phone"
	case OutcomeExtracted:
		return "extracted"
	}
	return "no_phone"
}

// Result is the extractor output. Name and Phone are set only for OutcomeExtracted.
type Result struct {
	Outcome Outcome
	Name    string
	Phone   string
}

// Ordered: first match wins.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+?7[\s\-]?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2}`),
	regexp.MustCompile(`\+?\d{10,12}`),
	regexp.MustCompile(`8[\s\-]?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2}`),
	// Catches short or oddly grouped numbers so they are reported as invalid
	// rather than as "no phone".
	regexp.MustCompile(`\+?\(?\d[\d\s\-()]{3,}\d`),
}

var (
	separators  = regexp.MustCompile(`[\s\-()]`)
	nameNoise   = regexp.MustCompile(`[^\p{L}\p{N}_\s\-]`)
	spaceCollap = regexp.MustCompile(`\s{2,}`)
)

// Extract scans free-form text for a phone number and treats the rest as the name.
func Extract(text string) Result {
	var match string
	for _, re := range phonePatterns {
		if m := re.FindString(text); m != "" {
			match = m
			break
		}
	}
	if match == "" {
		return Result{Outcome: OutcomeNoPhone}
	}

	phone := NormalizePhone(match)
	if !ValidatePhone(phone) {
		return Result{Outcome: OutcomeInvalidPhone}
	}

	rest := strings.TrimSpace(strings.ReplaceAll(text, match, ""))
	return Result{
		Outcome: OutcomeExtracted,
		Name:    cleanName(rest),
		Phone:   phone,
	}
}

// FromPayload validates a contact the transport already split into fields.
func FromPayload(name, phone string) Result {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return Result{Outcome: OutcomeNoPhone}
	}
	if !ValidatePhone(normalized) {
		return Result{Outcome: OutcomeInvalidPhone}
	}
	return Result{Outcome: OutcomeExtracted, Name: cleanName(name), Phone: normalized}
}

// NormalizePhone strips spaces, hyphens, parentheses and a leading plus.
func NormalizePhone(raw string) string {
	cleaned := separators.ReplaceAllString(strings.TrimSpace(raw), "")
	return strings.TrimLeft(cleaned, "+")
}

// ValidatePhone checks a normalized phone: 10-12 digits, and exactly 11 when
// it starts with the 7 or 8 trunk prefix.
func ValidatePhone(phone string) bool {
	if phone == "" {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	if len(phone) < 10 || len(phone) > 12 {
		return false
	}
	if phone[0] == '7' || phone[0] == '8' {
		return len(phone) == 11
	}
	return true
}

func cleanName(s string) string {
	s = nameNoise.ReplaceAllString(s, "")
	s = spaceCollap.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
