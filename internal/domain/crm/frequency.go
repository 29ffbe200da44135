package crm

import "errors"

// FrequencyClass labels a donor by how many donations the store holds for
// them. Thresholds are fixed: 1 donation, 2-4, and 5 or more.
type FrequencyClass string

const (
	FrequencySingle   FrequencyClass = "single"
	FrequencyPeriodic FrequencyClass = "periodic"
	FrequencyFrequent FrequencyClass = "frequent"
)

// ErrUnsupportedClass rejects a filter request naming a frequency class
// outside single/periodic/frequent.
var ErrUnsupportedClass = errors.New("unsupported donor type value")

// ClassifySize maps a donor group size to its frequency class.
func ClassifySize(n int) FrequencyClass {
	switch {
	case n <= 1:
		return FrequencySingle
	case n <= 4:
		return FrequencyPeriodic
	default:
		return FrequencyFrequent
	}
}

// ParseFrequencyClass validates a raw class value from a request.
func ParseFrequencyClass(raw string) (FrequencyClass, error) {
	switch FrequencyClass(Normalize(raw)) {
	case FrequencySingle:
		return FrequencySingle, nil
	case FrequencyPeriodic:
		return FrequencyPeriodic, nil
	case FrequencyFrequent:
		return FrequencyFrequent, nil
	default:
		return "", ErrUnsupportedClass
	}
}

// GroupKeyFunc selects the grouping key for a row; rows with an empty key
// are left out of frequency grouping.
type GroupKeyFunc func(Row) string

// DefaultGroupKey resolves a donor identity key by priority: national
// identifier, full name, contact string, phone number.
func DefaultGroupKey(row Row) string {
	return row.FirstNonEmpty(KeyIIN, KeyFullName, KeyContact, KeyPhoneNumber)
}

// GroupByDonor buckets entries by resolved donor identity. Membership is
// best-effort string identity; false merges and splits are an accepted
// approximation.
func GroupByDonor(entries []Entry, keyFn GroupKeyFunc) map[string][]Entry {
	if keyFn == nil {
		keyFn = DefaultGroupKey
	}
	groups := make(map[string][]Entry)
	for _, e := range entries {
		key := keyFn(e.Data)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], e)
	}
	return groups
}

// Classify computes the frequency class of every donor group.
func Classify(entries []Entry, keyFn GroupKeyFunc) map[string]FrequencyClass {
	classes := make(map[string]FrequencyClass)
	for key, group := range GroupByDonor(entries, keyFn) {
		classes[key] = ClassifySize(len(group))
	}
	return classes
}

// FilterByClass keeps only the entries whose donor group falls in one of
// the accepted classes. Rows from excluded groups are dropped entirely,
// as are rows with no resolvable group key.
func FilterByClass(entries []Entry, accepted map[FrequencyClass]bool, keyFn GroupKeyFunc) []Entry {
	if len(accepted) == 0 {
		return entries
	}
	if keyFn == nil {
		keyFn = DefaultGroupKey
	}

	sizes := make(map[string]int)
	for _, e := range entries {
		if key := keyFn(e.Data); key != "" {
			sizes[key]++
		}
	}

	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		key := keyFn(e.Data)
		if key == "" {
			continue
		}
		if accepted[ClassifySize(sizes[key])] {
			kept = append(kept, e)
		}
	}
	return kept
}
