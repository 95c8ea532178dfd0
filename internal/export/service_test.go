package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/acidbase/abgassist/constants"
	"github.com/acidbase/abgassist/internal/jobs"
)

func TestJobsXLSX(t *testing.T) {
	store := jobs.NewMemoryStore()
	ctx := context.Background()

	put := func(job jobs.Job) {
		t.Helper()
		if err := store.Put(ctx, job); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	now := time.Now().UTC()
	put(jobs.Job{
		ID: uuid.New(), Kind: constants.JobKindAnalysis, Status: constants.JobStatusComplete,
		Data: json.RawMessage(`{"r":1}`), CreatedAt: now.Add(-time.Minute), FinishedAt: &now,
	})
	put(jobs.Job{
		ID: uuid.New(), Kind: constants.JobKindOCR, Status: constants.JobStatusFailed,
		Error: "upstream returned 503", CreatedAt: now, FinishedAt: &now,
	})

	data, err := NewService(store, nil).JobsXLSX(ctx, 100)
	if err != nil {
		t.Fatalf("JobsXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Jobs")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "Job ID" || rows[0][2] != "Status" {
		t.Fatalf("header row = %v", rows[0])
	}

	var sawFailed bool
	for _, row := range rows[1:] {
		if len(row) > 3 && row[3] == "upstream returned 503" {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Fatal("failed job reason missing from sheet")
	}
}

func TestJobsXLSXEmptyStore(t *testing.T) {
	data, err := NewService(jobs.NewMemoryStore(), nil).JobsXLSX(context.Background(), 100)
	if err != nil {
		t.Fatalf("JobsXLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Jobs")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("empty store produced %d rows", len(rows))
	}
}
