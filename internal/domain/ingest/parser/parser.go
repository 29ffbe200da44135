// Package parser reads uploaded spreadsheets into raw donation rows. It
// keeps every column the file carries; schema unification happens later.
package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/donorflow/donorflow/internal/domain/crm"
	"github.com/donorflow/donorflow/pkg/dates"
)

// SheetRows holds the rows of one workbook sheet. Month carries the
// canonical label when the sheet name or the row dates resolve to one.
type SheetRows struct {
	Sheet string
	Month string
	Rows  []crm.Row
}

// ParseResult is the outcome of reading one workbook: parsed sheets plus
// per-row failures. Failures never abort the file.
type ParseResult struct {
	Sheets    []SheetRows
	TotalRows int
	Errors    []ParseError
}

// ParseError records one skipped row.
type ParseError struct {
	Sheet string
	Row   int
	Err   error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("sheet %q row %d: %v", e.Sheet, e.Row, e.Err)
}

// monthColumns are dropped from parsed rows; the month is derived, not
// stored.
var monthColumns = []string{"month", "месяц", "Месяц"}

// ParseWorkbook reads every sheet of an xlsx file. The first row of each
// sheet is the header; cells are kept as strings. Rows whose cells are all
// empty are skipped.
func ParseWorkbook(reader io.Reader) (*ParseResult, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	result := &ParseResult{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}

		sr := SheetRows{Sheet: sheet, Month: sheetMonth(sheet)}
		header := rows[0]
		for i := 1; i < len(rows); i++ {
			result.TotalRows++
			row := cellsToRow(header, rows[i], sr.Month)
			if len(row) == 0 {
				result.Errors = append(result.Errors, ParseError{
					Sheet: sheet, Row: i + 1, Err: fmt.Errorf("empty row"),
				})
				continue
			}
			if sr.Month == "" {
				// The sheet name gave no month, so the row's date must.
				month := row.MonthLabel()
				if month == "" {
					result.Errors = append(result.Errors, ParseError{
						Sheet: sheet, Row: i + 1, Err: fmt.Errorf("no resolvable month"),
					})
					continue
				}
				row[crm.KeyMonth] = month
			}
			sr.Rows = append(sr.Rows, row)
		}
		if len(sr.Rows) > 0 {
			result.Sheets = append(result.Sheets, sr)
		}
	}
	return result, nil
}

// Months lists the sheets of a workbook whose names are month labels, in
// workbook order.
func Months(reader io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var months []string
	for _, sheet := range f.GetSheetList() {
		if label := sheetMonth(sheet); label != "" {
			months = append(months, label)
		}
	}
	return months, nil
}

// sheetMonth canonicalizes a sheet name into a month label, or "".
func sheetMonth(sheet string) string {
	if m, ok := dates.MonthIndex(sheet); ok {
		return dates.MonthName(m)
	}
	return ""
}

// cellsToRow zips a header with one data row. Short rows are padded, the
// month columns are dropped, and a sheet-level month is attached when
// known. A nil map signals a row with no values at all.
func cellsToRow(header, cells []string, month string) crm.Row {
	row := crm.Row{}
	empty := true
	for i, name := range header {
		name = strings.TrimRight(name, "\n")
		if name == "" || isMonthColumn(name) {
			continue
		}
		var value string
		if i < len(cells) {
			value = strings.TrimSpace(cells[i])
		}
		if value == "" {
			row[name] = nil
			continue
		}
		row[name] = value
		empty = false
	}
	if empty {
		return nil
	}
	if month != "" {
		row[crm.KeyMonth] = month
	}
	return row
}

func isMonthColumn(name string) bool {
	for _, c := range monthColumns {
		if strings.EqualFold(strings.TrimSpace(name), c) {
			return true
		}
	}
	return false
}

// csvRecord is the canonical CSV layout produced by earlier exports.
type csvRecord struct {
	Date     string `csv:"Дата"`
	Amount   string `csv:"Сумма"`
	FullName string `csv:"ФИО"`
	IIN      string `csv:"ИИН"`
	Email    string `csv:"E-mail"`
	Phone    string `csv:"телефон"`
	Language string `csv:"язык"`
}

// ParseCSV reads a canonical-format CSV export. Unlike workbooks, CSV
// files carry a fixed column set.
func ParseCSV(reader io.Reader) ([]crm.Row, error) {
	var records []csvRecord
	if err := gocsv.Unmarshal(reader, &records); err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	rows := make([]crm.Row, 0, len(records))
	for _, rec := range records {
		row := crm.Row{}
		put := func(key, value string) {
			if v := strings.TrimSpace(value); v != "" {
				row[key] = v
			} else {
				row[key] = nil
			}
		}
		put(crm.KeyDate, rec.Date)
		put(crm.KeyAmount, rec.Amount)
		put(crm.KeyFullName, rec.FullName)
		put(crm.KeyIIN, rec.IIN)
		put(crm.KeyEmail, rec.Email)
		put(crm.KeyPhone, rec.Phone)
		put(crm.KeyLanguage, rec.Language)

		if allEmpty(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func allEmpty(row crm.Row) bool {
	for _, v := range row {
		if !crm.IsEmptyValue(v) {
			return false
		}
	}
	return true
}
