package crm

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/donorflow/donorflow/pkg/metrics"
)

// ErrNoExportRows is returned when an export matches nothing.
var ErrNoExportRows = errors.New("no rows match the export criteria")

const exportSheet = "CRM"

// Export renders the rows matching the criteria as an xlsx workbook.
func (s *Service) Export(ctx context.Context, c Criteria) (*excelize.File, error) {
	metrics.QueriesServed.WithLabelValues("export").Inc()

	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	rows := payloads(Apply(entries, c))
	if len(rows) == 0 {
		return nil, ErrNoExportRows
	}
	return WriteWorkbook(rows)
}

// WriteWorkbook builds a single-sheet workbook from the rows. Columns
// follow each row's presentation order, unioned in the order they are
// first encountered across the set.
func WriteWorkbook(rows []Row) (*excelize.File, error) {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for _, k := range row.orderedKeys() {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	f := excelize.NewFile()
	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := writeRow(f, 1, header); err != nil {
		return nil, err
	}

	for i, row := range rows {
		values := make([]any, len(columns))
		for j, c := range columns {
			values[j] = row.String(c)
		}
		if err := writeRow(f, i+2, values); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func writeRow(f *excelize.File, n int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", n, err)
	}
	if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", n, err)
	}
	return nil
}
