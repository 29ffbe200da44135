// Package service orchestrates spreadsheet ingestion: parse, unify,
// commit per source.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/donorflow/donorflow/internal/domain/crm"
	"github.com/donorflow/donorflow/internal/domain/ingest/parser"
	"github.com/donorflow/donorflow/internal/domain/ingest/unifier"
	"github.com/donorflow/donorflow/pkg/metrics"
	"github.com/donorflow/donorflow/pkg/storage"
)

// Upload is one file of an ingestion request with the source tag the
// operator assigned to it.
type Upload struct {
	Name   string
	Source string
	Reader io.Reader
}

// SourceReport summarizes what one upload contributed.
type SourceReport struct {
	Source       string   `json:"source"`
	FileName     string   `json:"file_name"`
	RowsIngested int      `json:"rows_ingested"`
	RowsSkipped  int      `json:"rows_skipped"`
	FirstID      int64    `json:"first_id,omitempty"`
	LastID       int64    `json:"last_id,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// Report is the outcome of one ingestion request. Batches commit
// independently: a failing file leaves earlier files' rows in place.
type Report struct {
	BatchID string         `json:"batch_id"`
	Total   int            `json:"total_rows"`
	Sources []SourceReport `json:"sources"`
}

// Service runs ingestion against the shared entry store.
type Service struct {
	store   crm.EntryStore
	archive storage.Archive
	logger  *slog.Logger
}

// NewService creates the ingestion service.
func NewService(store crm.EntryStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// WithArchive keeps a copy of every ingested file under the batch id so
// an ingestion can be audited or replayed later.
func (s *Service) WithArchive(archive storage.Archive) *Service {
	s.archive = archive
	return s
}

// Ingest parses every uploaded workbook, unifies the columns across the
// whole request, and commits one atomic batch per source.
func (s *Service) Ingest(ctx context.Context, uploads []Upload) (Report, error) {
	report := Report{BatchID: uuid.NewString()}

	batches := make([]unifier.Batch, 0, len(uploads))
	reports := make([]SourceReport, 0, len(uploads))
	contents := make([][]byte, 0, len(uploads))
	for _, u := range uploads {
		content, err := io.ReadAll(u.Reader)
		if err != nil {
			return Report{}, fmt.Errorf("failed to read %q: %w", u.Name, err)
		}
		contents = append(contents, content)

		result, err := parser.ParseWorkbook(bytes.NewReader(content))
		if err != nil {
			return Report{}, fmt.Errorf("failed to parse %q: %w", u.Name, err)
		}

		sr := SourceReport{Source: u.Source, FileName: u.Name}
		var rows []crm.Row
		for _, sheet := range result.Sheets {
			rows = append(rows, sheet.Rows...)
		}
		for _, perr := range result.Errors {
			sr.Errors = append(sr.Errors, perr.Error())
		}
		sr.RowsSkipped = len(result.Errors)
		metrics.IngestErrors.Add(float64(len(result.Errors)))

		batches = append(batches, unifier.Batch{Source: u.Source, Rows: rows})
		reports = append(reports, sr)
	}

	for i, b := range unifier.Unify(batches) {
		if len(b.Rows) == 0 {
			report.Sources = append(report.Sources, reports[i])
			continue
		}

		stored, err := s.store.AppendBatch(ctx, b.Source, b.Rows)
		if err != nil {
			return Report{}, fmt.Errorf("failed to commit batch for %q: %w", b.Source, err)
		}

		reports[i].RowsIngested = len(stored)
		reports[i].FirstID = stored[0].ID
		reports[i].LastID = stored[len(stored)-1].ID
		report.Total += len(stored)
		metrics.RowsIngested.WithLabelValues(b.Source).Add(float64(len(stored)))

		s.logger.Info("batch ingested",
			slog.String("batch_id", report.BatchID),
			slog.String("source", b.Source),
			slog.Int("rows", len(stored)))
		report.Sources = append(report.Sources, reports[i])
	}

	if s.archive != nil {
		for i, u := range uploads {
			if _, err := s.archive.Save(ctx, report.BatchID, u.Name, bytes.NewReader(contents[i])); err != nil {
				s.logger.Warn("failed to archive upload",
					slog.String("batch_id", report.BatchID),
					slog.String("file", u.Name),
					slog.Any("error", err))
			}
		}
	}
	return report, nil
}

// IngestCSV commits rows from one canonical-format CSV file.
func (s *Service) IngestCSV(ctx context.Context, upload Upload) (Report, error) {
	rows, err := parser.ParseCSV(upload.Reader)
	if err != nil {
		return Report{}, fmt.Errorf("failed to parse %q: %w", upload.Name, err)
	}

	report := Report{BatchID: uuid.NewString()}
	sr := SourceReport{Source: upload.Source, FileName: upload.Name}
	if len(rows) > 0 {
		stored, err := s.store.AppendBatch(ctx, upload.Source, rows)
		if err != nil {
			return Report{}, fmt.Errorf("failed to commit batch for %q: %w", upload.Source, err)
		}
		sr.RowsIngested = len(stored)
		sr.FirstID = stored[0].ID
		sr.LastID = stored[len(stored)-1].ID
		report.Total = len(stored)
		metrics.RowsIngested.WithLabelValues(upload.Source).Add(float64(len(stored)))
	}
	report.Sources = append(report.Sources, sr)
	return report, nil
}

// SheetMonths previews which month sheets each uploaded workbook carries.
func (s *Service) SheetMonths(_ context.Context, uploads []Upload) (map[string][]string, error) {
	months := make(map[string][]string, len(uploads))
	for _, u := range uploads {
		found, err := parser.Months(u.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", u.Name, err)
		}
		months[u.Name] = found
	}
	return months, nil
}
