package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/donorflow/donorflow/pkg/metrics"
)

// ErrDonorNotFound is returned when no stored row matches a profile key.
// A miss is a normal outcome of a lookup, not a system failure.
var ErrDonorNotFound = errors.New("donor not found")

// ErrEmptyEntry rejects manual entries that carry no data at all.
var ErrEmptyEntry = errors.New("entry has no fields")

// DonorNotFoundError wraps ErrDonorNotFound with close-name suggestions
// so the caller can offer corrections for a mistyped key.
type DonorNotFoundError struct {
	Key         string
	Suggestions []string
}

func (e *DonorNotFoundError) Error() string {
	return fmt.Sprintf("donor %q not found", e.Key)
}

func (e *DonorNotFoundError) Unwrap() error { return ErrDonorNotFound }

// maxSuggestions caps the number of close names offered on a miss.
const maxSuggestions = 5

// Profile is the aggregated view of one donor: resolved identity fields,
// every matched donation row, and the summary statistics over them.
type Profile struct {
	Name       string         `json:"ФИО,omitempty"`
	NationalID string         `json:"ИИН,omitempty"`
	Gender     string         `json:"пол"`
	Language   string         `json:"язык"`
	Class      FrequencyClass `json:"тип донора"`
	Donations  []Row          `json:"donations"`
	Stats      Stats          `json:"stats"`
}

// Service answers queries over the stored donation rows. It never mutates
// rows except through explicit append and patch operations, and it does no
// I/O of its own beyond the injected store.
type Service struct {
	store  EntryStore
	logger *slog.Logger
}

// NewService creates the CRM query service.
func NewService(store EntryStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// ListAll returns every stored row in id order.
func (s *Service) ListAll(ctx context.Context) ([]Row, error) {
	metrics.QueriesServed.WithLabelValues("list_all").Inc()

	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	return payloads(entries), nil
}

// Filter returns the rows matching the criteria, in id order. Zero
// criteria behave like ListAll.
func (s *Service) Filter(ctx context.Context, c Criteria) ([]Row, error) {
	metrics.QueriesServed.WithLabelValues("filter").Inc()

	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	return payloads(Apply(entries, c)), nil
}

// DonorProfile resolves one donor by a free-form key. When any matched
// row carries a national id, that id becomes the donor's identity and the
// donation set is rebuilt from id equality alone, superseding the looser
// key matches.
func (s *Service) DonorProfile(ctx context.Context, key string) (Profile, error) {
	metrics.QueriesServed.WithLabelValues("donor_profile").Inc()

	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load entries: %w", err)
	}

	normalized := Normalize(key)
	if normalized == "" {
		return Profile{}, &DonorNotFoundError{Key: key}
	}

	var matched []Entry
	var foundID string
	for _, e := range entries {
		if !Match(e.Data, normalized) {
			continue
		}
		matched = append(matched, e)
		if id := NationalID(e.Data); id != "" && foundID == "" {
			foundID = id
		}
	}

	if foundID != "" {
		matched = matched[:0]
		for _, e := range entries {
			if NationalID(e.Data) == foundID {
				matched = append(matched, e)
			}
		}
	}

	if len(matched) == 0 {
		nf := &DonorNotFoundError{Key: key, Suggestions: s.suggestNames(entries, key)}
		s.logger.Info("donor lookup missed", slog.String("key", key),
			slog.Int("suggestions", len(nf.Suggestions)))
		return Profile{}, nf
	}

	return buildProfile(matched), nil
}

// AddEntry appends one manually entered row under the given source tag.
func (s *Service) AddEntry(ctx context.Context, row Row, source string) (Row, error) {
	metrics.QueriesServed.WithLabelValues("add_entry").Inc()

	cleaned := Row{}
	for k, v := range row {
		if k == KeyID || k == KeySource || IsEmptyValue(v) {
			continue
		}
		cleaned[k] = v
	}
	if len(cleaned) == 0 {
		return nil, ErrEmptyEntry
	}
	if source == "" {
		source = "manual"
	}

	stored, err := s.store.AppendBatch(ctx, source, []Row{cleaned})
	if err != nil {
		return nil, fmt.Errorf("failed to store entry: %w", err)
	}
	metrics.RowsIngested.WithLabelValues(source).Inc()
	s.logger.Info("manual entry added",
		slog.Int64("id", stored[0].ID), slog.String("source", source))
	return stored[0].Payload(), nil
}

// UpdateRow merges the patch into the row's data. The id and source tag
// cannot be patched.
func (s *Service) UpdateRow(ctx context.Context, id int64, patch Row) (Row, error) {
	metrics.QueriesServed.WithLabelValues("update_row").Inc()

	cleaned := Row{}
	for k, v := range patch {
		if k == KeyID || k == KeySource {
			continue
		}
		cleaned[k] = v
	}

	entry, err := s.store.UpdateByID(ctx, id, cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to update entry %d: %w", id, err)
	}
	s.logger.Info("entry updated", slog.Int64("id", id), slog.Int("fields", len(cleaned)))
	return entry.Payload(), nil
}

// UnknownGender returns the rows for which neither an explicit gender
// field nor the name suffixes yield a gender.
func (s *Service) UnknownGender(ctx context.Context) ([]Row, error) {
	metrics.QueriesServed.WithLabelValues("unknown_gender").Inc()

	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	var out []Row
	for _, e := range entries {
		if RowGender(e.Data) == GenderUnknown {
			out = append(out, e.Payload())
		}
	}
	return out, nil
}

// suggestNames ranks distinct donor names against the missed key and
// returns the closest ones.
func (s *Service) suggestNames(entries []Entry, key string) []string {
	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		name := e.Data.String(KeyFullName)
		if name == "" || seen[Normalize(name)] {
			continue
		}
		seen[Normalize(name)] = true
		names = append(names, name)
	}

	ranks := fuzzy.RankFindNormalizedFold(key, names)
	sort.Sort(ranks)
	var out []string
	for _, r := range ranks {
		out = append(out, r.Target)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// buildProfile assembles the donor view from the matched rows. Identity
// fields come from the first row that has them; the frequency class is
// sized from the matched set itself.
func buildProfile(matched []Entry) Profile {
	p := Profile{
		Class:     ClassifySize(len(matched)),
		Donations: payloads(matched),
		Stats:     Aggregate(matched),
	}
	for _, e := range matched {
		if p.Name == "" {
			p.Name = e.Data.String(KeyFullName)
			if p.Name == "" {
				if name, _ := ExtractIdentity(e.Data.String(KeySender)); name != "" {
					p.Name = name
				}
			}
		}
		if p.NationalID == "" {
			p.NationalID = NationalID(e.Data)
		}
		if p.Gender == "" || p.Gender == GenderUnknown {
			p.Gender = RowGender(e.Data)
		}
		if p.Language == "" || p.Language == LanguageUnknown {
			p.Language = RowLanguage(e.Data)
		}
	}
	return p
}

func payloads(entries []Entry) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.Payload())
	}
	return rows
}
