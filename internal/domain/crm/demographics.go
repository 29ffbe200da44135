package crm

import "strings"

// Gender and language labels. These are API values, kept in the language
// of the product's reporting UI.
const (
	GenderMale    = "мужчина"
	GenderFemale  = "женщина"
	GenderUnknown = "неизвестно"

	LanguageKazakh  = "казахский"
	LanguageRussian = "русский"
	LanguageEnglish = "английский"
	LanguageOther   = "другой"
	LanguageUnknown = "неизвестно"
)

// Morphological suffix sets for Slavic and Kazakh naming patterns.
// Feminine rules are checked before masculine ones.
var (
	femaleSurnameSuffixes    = []string{"ова", "ева", "ина", "ая", "ская", "цкая"}
	femalePatronymicSuffixes = []string{"овна", "евна", "ична", "қызы", "кызы", "гызи", "гулы"}
	maleSurnameSuffixes      = []string{"ов", "ев", "ин", "ский", "цкий"}
	malePatronymicSuffixes   = []string{"ович", "евич", "ич", "улы", "оглы"}

	kazakhLetters = "әөүқғңұhі"

	kazakhNameEndings = []string{
		"улы", "қызы", "кызы", "оглы", "гулы",
		"бек", "хан", "бай", "жан", "гали", "мырза", "нур",
	}
	russianNameEndings = []string{
		"ов", "ова", "ев", "ева", "ин", "ина",
		"ский", "ская", "цкий", "цкая",
		"ович", "овна", "евич", "евна", "ич", "ична",
	}
)

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// GuessGender infers a donor's gender from the full name using surname and
// patronymic suffixes. It is a fallback only: explicit gender fields always
// win. Names with fewer than two tokens are unknown.
func GuessGender(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) < 2 {
		return GenderUnknown
	}

	surname := strings.ToLower(parts[0])
	patronymic := ""
	if len(parts) > 2 {
		patronymic = strings.ToLower(parts[len(parts)-1])
	}

	if hasAnySuffix(surname, femaleSurnameSuffixes) || hasAnySuffix(patronymic, femalePatronymicSuffixes) {
		return GenderFemale
	}
	if hasAnySuffix(surname, maleSurnameSuffixes) || hasAnySuffix(patronymic, malePatronymicSuffixes) {
		return GenderMale
	}
	return GenderUnknown
}

// GuessLanguage infers the donor's language from the full name: Kazakh
// when Kazakh-specific letters or name endings are present, Russian when
// Russian name endings are, unknown otherwise. Priority order matters:
// letters, then Kazakh endings, then Russian endings.
func GuessLanguage(fullName string) string {
	if strings.TrimSpace(fullName) == "" {
		return LanguageUnknown
	}
	name := strings.ToLower(fullName)

	if strings.ContainsAny(name, kazakhLetters) {
		return LanguageKazakh
	}
	if hasAnySuffix(name, kazakhNameEndings) {
		return LanguageKazakh
	}
	if hasAnySuffix(name, russianNameEndings) {
		return LanguageRussian
	}
	return LanguageUnknown
}

// RowGender returns the explicit gender of a row, falling back to
// inference from the full name when the field is absent.
func RowGender(row Row) string {
	if g := row.FirstNonEmpty(KeyGender, KeyGenderAlt); g != "" {
		return g
	}
	return GuessGender(row.String(KeyFullName))
}

// RowLanguage returns the explicit language of a row, falling back to
// inference when the field is absent or explicitly unknown.
func RowLanguage(row Row) string {
	if l := row.String(KeyLanguage); l != "" && !strings.EqualFold(l, LanguageUnknown) {
		return l
	}
	return GuessLanguage(row.String(KeyFullName))
}
