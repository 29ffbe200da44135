package crm

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// genderAliases folds the accepted request spellings onto canonical labels.
var genderAliases = map[string]string{
	"муж":    GenderMale,
	"жен":    GenderFemale,
	"male":   GenderMale,
	"female": GenderFemale,
}

var languageAliases = map[string]string{
	"английский язык": LanguageEnglish,
	"english":         LanguageEnglish,
	"other":           LanguageOther,
}

// NormalizeGender folds a raw gender value onto its canonical label.
func NormalizeGender(raw string) string {
	n := Normalize(raw)
	if canonical, ok := genderAliases[n]; ok {
		return canonical
	}
	return n
}

// NormalizeLanguage folds a raw language value onto its canonical label.
func NormalizeLanguage(raw string) string {
	n := Normalize(raw)
	if canonical, ok := languageAliases[n]; ok {
		return canonical
	}
	return n
}

// Criteria is the immutable set of optional predicates for one query.
// Absent predicates (nil pointers, empty sets) do not constrain the
// result; present ones compose as logical AND, and membership inside a
// multi-valued predicate is logical OR.
type Criteria struct {
	Classes    []FrequencyClass
	DateFrom   *time.Time
	DateTo     *time.Time
	AmountFrom *decimal.Decimal
	AmountTo   *decimal.Decimal
	Genders    []string
	Languages  []string
	Sources    []string
	Year       *int
	Month      string
}

// IsZero reports whether no predicate is set.
func (c Criteria) IsZero() bool {
	return len(c.Classes) == 0 && c.DateFrom == nil && c.DateTo == nil &&
		c.AmountFrom == nil && c.AmountTo == nil &&
		len(c.Genders) == 0 && len(c.Languages) == 0 && len(c.Sources) == 0 &&
		c.Year == nil && c.Month == ""
}

// Apply runs the filtering pipeline over the entries. Each predicate
// narrows the set; rows whose relevant field is unparseable are excluded
// from that predicate's matches rather than treated as zero values.
func Apply(entries []Entry, c Criteria) []Entry {
	filtered := entries

	if len(c.Sources) > 0 {
		accepted := normalizedSet(c.Sources)
		filtered = keep(filtered, func(e Entry) bool {
			return accepted[Normalize(e.Source)]
		})
	}

	if len(c.Classes) > 0 {
		accepted := make(map[FrequencyClass]bool, len(c.Classes))
		for _, cl := range c.Classes {
			accepted[cl] = true
		}
		filtered = FilterByClass(filtered, accepted, nil)
	}

	if c.DateFrom != nil || c.DateTo != nil || c.Year != nil {
		filtered = keep(filtered, func(e Entry) bool {
			t, err := e.Data.Date()
			if err != nil {
				return false
			}
			if c.DateFrom != nil && t.Before(*c.DateFrom) {
				return false
			}
			if c.DateTo != nil && t.After(*c.DateTo) {
				return false
			}
			if c.Year != nil && t.Year() != *c.Year {
				return false
			}
			return true
		})
	}

	if c.Month != "" {
		wanted := Normalize(c.Month)
		filtered = keep(filtered, func(e Entry) bool {
			return Normalize(e.Data.MonthLabel()) == wanted
		})
	}

	if c.AmountFrom != nil || c.AmountTo != nil {
		filtered = keep(filtered, func(e Entry) bool {
			amount, ok := e.Data.Amount()
			if !ok {
				return false
			}
			if c.AmountFrom != nil && amount.LessThan(*c.AmountFrom) {
				return false
			}
			if c.AmountTo != nil && amount.GreaterThan(*c.AmountTo) {
				return false
			}
			return true
		})
	}

	if len(c.Genders) > 0 {
		accepted := make(map[string]bool, len(c.Genders))
		for _, g := range c.Genders {
			accepted[NormalizeGender(g)] = true
		}
		filtered = keep(filtered, func(e Entry) bool {
			return accepted[Normalize(RowGender(e.Data))]
		})
	}

	if len(c.Languages) > 0 {
		accepted := make(map[string]bool, len(c.Languages))
		for _, l := range c.Languages {
			accepted[NormalizeLanguage(l)] = true
		}
		filtered = keep(filtered, func(e Entry) bool {
			lang := Normalize(RowLanguage(e.Data))
			if accepted[LanguageOther] && !isKnownLanguage(lang) {
				return true
			}
			return accepted[lang]
		})
	}

	return filtered
}

func isKnownLanguage(normalized string) bool {
	switch normalized {
	case LanguageKazakh, LanguageRussian, LanguageEnglish:
		return true
	}
	return false
}

func normalizedSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[Normalize(v)] = true
	}
	return set
}

func keep(entries []Entry, pred func(Entry) bool) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// ParseClasses validates raw frequency class values from a request.
func ParseClasses(raw []string) ([]FrequencyClass, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	classes := make([]FrequencyClass, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		cl, err := ParseFrequencyClass(r)
		if err != nil {
			return nil, err
		}
		classes = append(classes, cl)
	}
	return classes, nil
}
