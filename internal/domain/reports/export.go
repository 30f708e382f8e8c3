package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportStock renders the org's current stock levels to an xlsx sheet.
// Returns the file bytes and a suggested filename.
func (r *Repo) ExportStock(ctx context.Context, orgID int64) ([]byte, string, error) {
	list, err := r.items.List(ctx, orgID, true)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"code", "name", "kind",
		"current", "clean", "soiled", "in_laundry", "damaged",
		"total", "status",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, "", err
	}

	row := 2
	for _, it := range list {
		excelRow := []interface{}{
			it.Code,
			it.Name,
			string(it.Kind),
			it.Buckets.Current,
			it.Buckets.Clean,
			it.Buckets.Soiled,
			it.Buckets.InLaundry,
			it.Buckets.Damaged,
			it.Total,
			string(it.Status()),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, "", err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, "", err
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, "", err
	}
	name := fmt.Sprintf("stock_%d_%s.xlsx", orgID, time.Now().Format("20060102_150405"))
	return buf.Bytes(), name, nil
}

// ExportHistory renders an item's journal (most recent first) to xlsx.
func (r *Repo) ExportHistory(ctx context.Context, orgID, itemID int64, limit int) ([]byte, string, error) {
	history, err := r.History(ctx, orgID, itemID, limit)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"id", "created_at", "type", "quantity", "delta",
		"actor_id", "recipient_type", "recipient_id", "note", "reference",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, "", err
	}

	row := 2
	for _, t := range history {
		excelRow := []interface{}{
			t.ID,
			t.CreatedAt.Format(time.RFC3339),
			string(t.Type),
			t.Quantity,
			t.Delta,
			t.ActorID,
			t.RecipientType,
			t.RecipientID,
			t.Note,
			t.Reference,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, "", err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, "", err
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, "", err
	}
	name := fmt.Sprintf("history_%d_%s.xlsx", itemID, time.Now().Format("20060102_150405"))
	return buf.Bytes(), name, nil
}
