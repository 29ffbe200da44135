// Package unifier folds raw spreadsheet rows from heterogeneous sources
// into one coherent column set.
package unifier

import (
	"github.com/donorflow/donorflow/internal/domain/crm"
)

// Batch groups the rows parsed from one uploaded file with its source tag.
type Batch struct {
	Source string
	Rows   []crm.Row
}

// synonyms maps a canonical column to the variants seen across bank and
// payment-provider exports. The first non-empty variant wins; losing
// variants are removed from the row.
var synonyms = map[string][]string{
	crm.KeyDate:   {crm.KeyDate, "Дата платежа"},
	crm.KeyEmail:  {crm.KeyEmail, "Электронная почта"},
	crm.KeyAmount: {crm.KeyAmount, "Сумма платежа"},
}

// alwaysPresent are columns every unified row carries even when no source
// provides them.
var alwaysPresent = []string{crm.KeyPhone, crm.KeyLanguage}

// Unify normalizes every batch against the union of all columns seen
// across the whole upload: synonyms collapse to their canonical column,
// missing columns are padded with nil, and the handful of always-present
// columns are guaranteed. Source association is preserved.
func Unify(batches []Batch) []Batch {
	for _, b := range batches {
		for _, row := range b.Rows {
			collapseSynonyms(row)
		}
	}

	columns := columnUnion(batches)

	out := make([]Batch, 0, len(batches))
	for _, b := range batches {
		unified := make([]crm.Row, 0, len(b.Rows))
		for _, row := range b.Rows {
			padded := row.Clone()
			for _, c := range columns {
				if _, ok := padded[c]; !ok {
					padded[c] = nil
				}
			}
			unified = append(unified, padded)
		}
		out = append(out, Batch{Source: b.Source, Rows: unified})
	}
	return out
}

// collapseSynonyms rewrites variant columns onto their canonical name in
// place. The first variant with a value wins; a row that carries any
// variant always ends up with the canonical key, nil when every variant
// is empty.
func collapseSynonyms(row crm.Row) {
	for canonical, variants := range synonyms {
		var value any
		found := false
		present := false
		for _, v := range variants {
			raw, ok := row[v]
			if !ok {
				continue
			}
			present = true
			if !found && !crm.IsEmptyValue(raw) {
				value = raw
				found = true
			}
			if v != canonical {
				delete(row, v)
			}
		}
		if present {
			row[canonical] = value
		}
	}
}

// columnUnion collects every column present in any row, plus the
// always-present set.
func columnUnion(batches []Batch) []string {
	seen := map[string]bool{}
	var columns []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			columns = append(columns, c)
		}
	}

	for _, b := range batches {
		for _, row := range b.Rows {
			for c := range row {
				add(c)
			}
		}
	}
	for _, c := range alwaysPresent {
		add(c)
	}
	return columns
}
