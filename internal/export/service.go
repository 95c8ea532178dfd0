package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/acidbase/abgassist/internal/jobs"
)

// Service is a tiny façade over the job store that produces XLSX bytes for
// audit exports of the job history.
type Service struct {
	store  jobs.Store
	logger *slog.Logger
}

func NewService(store jobs.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// JobsXLSX returns an XLSX workbook (as bytes) listing the most recent
// jobs, newest first. Result payloads are omitted; the sheet is an audit
// trail, not a data export.
func (s *Service) JobsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	records, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Jobs"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{"Job ID", "Kind", "Status", "Error", "Created", "Finished"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range records {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.ID.String())
		write(2, string(r.Kind))
		write(3, string(r.Status))
		write(4, r.Error)
		write(5, r.CreatedAt.UTC().Format(time.RFC3339))
		if r.FinishedAt != nil {
			write(6, r.FinishedAt.UTC().Format(time.RFC3339))
		} else {
			write(6, "")
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.jobs.ok", "rows", len(records), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
