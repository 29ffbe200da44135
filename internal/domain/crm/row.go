// Package crm implements the donor-relationship reporting core: the
// canonical row model, donor identity resolution, demographic inference,
// donation-frequency classification, and the query/filter engine.
package crm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/donorflow/donorflow/pkg/dates"
)

// Canonical field names. The exports this system ingests use Cyrillic
// column headers; the trailing space in KeyPhoneNumber is present in the
// source spreadsheets and must be preserved to match their columns.
const (
	KeyDate        = "Дата"
	KeyAmount      = "Сумма"
	KeyFullName    = "ФИО"
	KeyIIN         = "ИИН"
	KeyEmail       = "E-mail"
	KeyContact     = "E-mail & phone number"
	KeyPhoneNumber = "Номер телефон "
	KeyPhone       = "телефон"
	KeyLanguage    = "язык"
	KeyGender      = "gender"
	KeyGenderAlt   = "пол"
	KeySource      = "источник"
	KeyMonth       = "month"
	KeyID          = "id"
	KeySender      = "Отправитель (Наименование, БИК, ИИК, БИН/ИИН)"
)

// dateFieldOrder lists the columns consulted when extracting a row's date.
var dateFieldOrder = []string{KeyDate, "Дата платежа", "Дата и время"}

// amountFieldOrder lists the columns consulted when extracting a row's
// amount; the first value that parses as a number wins.
var amountFieldOrder = []string{KeyAmount, "Сумма операции", "Кредит", "Дебет"}

// Row is the canonical, schema-unified representation of one donation
// record: a known set of semantic fields plus passthrough of whatever
// other columns the origin sheet carried.
type Row map[string]any

// Entry is the persisted unit: a row plus its store identity and source tag.
type Entry struct {
	ID     int64
	Source string
	Data   Row
}

// IsEmptyValue reports whether a cell value counts as absent when choosing
// among synonyms: nil, empty string, empty slice, empty map.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value under key rendered as a trimmed string, or ""
// when the field is absent or empty.
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || IsEmptyValue(v) {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		// Spreadsheet numerics (IINs, phone numbers) decode as float64;
		// render without a fractional part when whole.
		d := decimal.NewFromFloat(t)
		return d.String()
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// FirstNonEmpty returns the first non-empty string value among keys.
func (r Row) FirstNonEmpty(keys ...string) string {
	for _, k := range keys {
		if s := r.String(k); s != "" {
			return s
		}
	}
	return ""
}

// DateString returns the raw date string of the row, trying the known
// date columns in order.
func (r Row) DateString() string {
	return r.FirstNonEmpty(dateFieldOrder...)
}

// Date parses the row's date. An unparseable or absent date returns
// dates.ErrUnparsable; callers exclude such rows from date-bounded
// computations instead of failing.
func (r Row) Date() (time.Time, error) {
	raw := r.DateString()
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: no date field", dates.ErrUnparsable)
	}
	return dates.Parse(raw)
}

// Amount extracts the row's numeric amount, trying the canonical column
// and its legacy aliases in order. The boolean is false when no candidate
// parses as a number.
func (r Row) Amount() (decimal.Decimal, bool) {
	for _, key := range amountFieldOrder {
		v, ok := r[key]
		if !ok || IsEmptyValue(v) {
			continue
		}
		switch t := v.(type) {
		case float64:
			return decimal.NewFromFloat(t), true
		case int:
			return decimal.NewFromInt(int64(t)), true
		case int64:
			return decimal.NewFromInt(t), true
		case json.Number:
			if d, err := decimal.NewFromString(t.String()); err == nil {
				return d, true
			}
		case string:
			s := strings.ReplaceAll(strings.TrimSpace(t), " ", "")
			s = strings.ReplaceAll(s, ",", ".")
			if d, err := decimal.NewFromString(s); err == nil {
				return d, true
			}
		}
	}
	return decimal.Decimal{}, false
}

// MonthLabel returns the Cyrillic month label for the row: the stored
// month field when present, otherwise derived from the row's date.
func (r Row) MonthLabel() string {
	if m := r.String(KeyMonth); m != "" {
		return m
	}
	t, err := r.Date()
	if err != nil {
		return ""
	}
	return dates.MonthName(t.Month())
}

// orderedKeys returns the row's keys in presentation order: non-empty
// fields first, then empty ones, with источник and id always last. The
// order is a presentation concern only and never influences filtering.
func (r Row) orderedKeys() []string {
	var filled, empty []string
	for k := range r {
		if k == KeySource || k == KeyID {
			continue
		}
		if IsEmptyValue(r[k]) {
			empty = append(empty, k)
		} else {
			filled = append(filled, k)
		}
	}
	sort.Strings(filled)
	sort.Strings(empty)

	keys := append(filled, empty...)
	if _, ok := r[KeySource]; ok {
		keys = append(keys, KeySource)
	}
	if _, ok := r[KeyID]; ok {
		keys = append(keys, KeyID)
	}
	return keys
}

// MarshalJSON emits the row with its presentation ordering preserved.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.orderedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Payload renders the entry as an API row: its data plus the source tag
// and store id, with the derived month label filled in when the row has a
// parseable date.
func (e Entry) Payload() Row {
	row := e.Data.Clone()
	row[KeySource] = e.Source
	row[KeyID] = e.ID
	if _, ok := row[KeyMonth]; !ok || IsEmptyValue(row[KeyMonth]) {
		if t, err := row.Date(); err == nil {
			row[KeyMonth] = dates.MonthName(t.Month())
		}
	}
	return row
}
