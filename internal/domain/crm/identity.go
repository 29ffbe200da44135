package crm

import (
	"regexp"
	"strings"
)

// iinPattern extracts a national identifier from a free-text sender field.
// The label is ИИН for individuals and БИН for businesses, followed by a
// 10-12 digit number.
var iinPattern = regexp.MustCompile(`(?i)(?:ИИН|БИН): ?(\d{10,12})`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize lower-cases a candidate string, trims it, and collapses
// internal whitespace runs to a single space. Empty input yields "".
func Normalize(value string) string {
	if value == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(whitespaceRun.ReplaceAllString(value, " ")))
}

// ExtractIdentity pulls the donor name and national identifier out of a
// compound sender string. The first line carries the full name; the
// identifier, when present, follows an ИИН/БИН label anywhere in the text.
// Either result may be empty.
func ExtractIdentity(sender string) (name string, nationalID string) {
	if sender == "" {
		return "", ""
	}
	name = strings.TrimSpace(strings.SplitN(sender, "\n", 2)[0])
	if m := iinPattern.FindStringSubmatch(sender); m != nil {
		nationalID = m[1]
	}
	return name, nationalID
}

// IsNationalID reports whether a key looks like an IIN/BIN: all digits,
// 10 or 12 characters.
func IsNationalID(key string) bool {
	if len(key) != 10 && len(key) != 12 {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// matchCandidate compares one normalized candidate against a normalized
// key. Numeric identifiers and e-mail addresses match only on exact
// equality; everything else uses bidirectional substring containment, a
// deliberately loose policy that tolerates partial names and typos.
func matchCandidate(candidate, key string) bool {
	if candidate == "" || key == "" {
		return false
	}
	if IsNationalID(key) || strings.Contains(key, "@") {
		return candidate == key
	}
	return candidate == key ||
		strings.Contains(candidate, key) ||
		strings.Contains(key, candidate)
}

// identityCandidates collects every string on a row that may identify the
// donor: the explicit identifier, full name and contact fields, plus the
// name, identifier and raw text of the compound sender field.
func identityCandidates(row Row) []string {
	candidates := []string{
		row.String(KeyIIN),
		row.String(KeyFullName),
		row.String(KeyContact),
		row.String(KeyPhoneNumber),
	}
	if sender := row.String(KeySender); sender != "" {
		name, id := ExtractIdentity(sender)
		candidates = append(candidates, name, id, sender)
	}
	return candidates
}

// Match reports whether the row plausibly belongs to the donor identified
// by key. The key is normalized once by the caller via Normalize.
func Match(row Row, normalizedKey string) bool {
	if normalizedKey == "" {
		return false
	}
	for _, cand := range identityCandidates(row) {
		if matchCandidate(Normalize(cand), normalizedKey) {
			return true
		}
	}
	return false
}

// NationalID returns the row's definite national identifier: the explicit
// field when present, otherwise one extracted from the sender text.
func NationalID(row Row) string {
	if id := row.String(KeyIIN); id != "" {
		return id
	}
	_, id := ExtractIdentity(row.String(KeySender))
	return id
}
