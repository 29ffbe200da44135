package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/donorflow/donorflow/internal/domain/crm"
	"github.com/donorflow/donorflow/internal/domain/crm/repository"
	"github.com/donorflow/donorflow/pkg/storage"
)

func workbookOf(t *testing.T, sheet string, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func newTestService() (*Service, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, logger), store
}

func TestService_Ingest(t *testing.T) {
	t.Run("commits one batch per source", func(t *testing.T) {
		svc, store := newTestService()

		kaspi := workbookOf(t, "Январь", [][]any{
			{"Дата платежа", "ФИО", "Сумма платежа"},
			{"10.01.2025", "Иванов Иван", "1000"},
			{"11.01.2025", "Петрова Анна", "2000"},
		})
		halyk := workbookOf(t, "Февраль", [][]any{
			{"Дата", "ИИН", "Сумма"},
			{"12.02.2025", "880101300123", "3000"},
		})

		report, err := svc.Ingest(context.Background(), []Upload{
			{Name: "kaspi.xlsx", Source: "kaspi", Reader: kaspi},
			{Name: "halyk.xlsx", Source: "halyk", Reader: halyk},
		})
		require.NoError(t, err)

		assert.NotEmpty(t, report.BatchID)
		assert.Equal(t, 3, report.Total)
		require.Len(t, report.Sources, 2)
		assert.Equal(t, 2, report.Sources[0].RowsIngested)
		assert.Equal(t, int64(1), report.Sources[0].FirstID)
		assert.Equal(t, 1, report.Sources[1].RowsIngested)

		entries, err := store.ListAll(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 3)

		// Synonym columns are unified and the union is padded.
		first := entries[0].Data
		assert.Equal(t, "10.01.2025", first.String(crm.KeyDate))
		assert.Equal(t, "1000", first.String(crm.KeyAmount))
		_, hasIIN := first[crm.KeyIIN]
		assert.True(t, hasIIN)
		assert.Equal(t, "Январь", first.String(crm.KeyMonth))
		assert.Equal(t, "kaspi", entries[0].Source)
		assert.Equal(t, "halyk", entries[2].Source)
	})

	t.Run("parse failure aborts before any commit", func(t *testing.T) {
		svc, store := newTestService()

		good := workbookOf(t, "Январь", [][]any{
			{"Дата", "ФИО"},
			{"10.01.2025", "Иванов Иван"},
		})

		_, err := svc.Ingest(context.Background(), []Upload{
			{Name: "good.xlsx", Source: "kaspi", Reader: good},
			{Name: "bad.xlsx", Source: "halyk", Reader: bytes.NewReader([]byte("мусор"))},
		})
		require.Error(t, err)

		n, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("handles a large generated workbook", func(t *testing.T) {
		svc, store := newTestService()
		gofakeit.Seed(11)

		rows := [][]any{{"Дата", "ФИО", "Сумма", "E-mail"}}
		for i := 0; i < 200; i++ {
			rows = append(rows, []any{
				fmt.Sprintf("%02d.03.2025", i%28+1),
				gofakeit.Name(),
				fmt.Sprintf("%d", gofakeit.Number(100, 100000)),
				gofakeit.Email(),
			})
		}

		report, err := svc.Ingest(context.Background(), []Upload{
			{Name: "bulk.xlsx", Source: "bulk", Reader: workbookOf(t, "Март", rows)},
		})
		require.NoError(t, err)
		assert.Equal(t, 200, report.Total)

		n, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 200, n)
	})
}

func TestService_Ingest_Archive(t *testing.T) {
	svc, _ := newTestService()
	archive, err := storage.NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	svc = svc.WithArchive(archive)

	buf := workbookOf(t, "Январь", [][]any{
		{"Дата", "ФИО", "Сумма"},
		{"10.01.2025", "Иванов Иван", "1000"},
	})

	report, err := svc.Ingest(context.Background(), []Upload{
		{Name: "kaspi.xlsx", Source: "kaspi", Reader: buf},
	})
	require.NoError(t, err)

	files, err := archive.List(context.Background(), report.BatchID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "kaspi.xlsx", files[0].Name)

	rc, info, err := archive.Open(context.Background(), report.BatchID, files[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "kaspi.xlsx", info.Name)
	defer rc.Close()

	f, err := excelize.OpenReader(rc)
	require.NoError(t, err)
	rows, err := f.GetRows("Январь")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestService_IngestCSV(t *testing.T) {
	svc, store := newTestService()

	csv := "Дата,Сумма,ФИО,ИИН,E-mail,телефон,язык\n" +
		"10.01.2025,1000,Иванов Иван,,,,\n"

	report, err := svc.IngestCSV(context.Background(), Upload{
		Name:   "export.csv",
		Source: "archive",
		Reader: bytes.NewReader([]byte(csv)),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)

	entries, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "archive", entries[0].Source)
}

func TestService_SheetMonths(t *testing.T) {
	svc, _ := newTestService()

	buf := workbookOf(t, "Январь", [][]any{
		{"Дата"},
		{"10.01.2025"},
	})

	months, err := svc.SheetMonths(context.Background(), []Upload{
		{Name: "report.xlsx", Reader: buf},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Январь"}, months["report.xlsx"])
}
