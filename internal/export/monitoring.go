package export

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	sheets "google.golang.org/api/sheets/v4"
)

// buildMonitoringRows builds the header row and one data row for the MONITORING sheet.
// Column A is the cycle timestamp; the remaining columns follow the asset order.
func buildMonitoringRows(rows []RateRow, at time.Time) (header []any, data []any) {
	header = append([]any{"Date"}, lo.Map(rows, func(r RateRow, _ int) any { return r.Code })...)

	data = make([]any, 1+len(rows))
	data[0] = at.UTC().Format("02.01.2006 15:04")
	for i, r := range rows {
		if r.Rate.IsPositive() {
			data[i+1] = toFloat(r.Rate)
		} else {
			data[i+1] = nil
		}
	}

	return header, data
}

// AppendMonitoring ensures the MONITORING sheet exists, writes the header row if the
// sheet is new or empty, then appends one data row for the cycle.
func (w *SheetsWriter) AppendMonitoring(ctx context.Context, rows []RateRow, at time.Time) error {
	meta, err := w.ensureSheets(ctx, "MONITORING")
	if err != nil {
		return fmt.Errorf("ensuring MONITORING sheet: %w", err)
	}

	header, dataRow := buildMonitoringRows(rows, at)

	existing, err := w.svc.Spreadsheets.Values.Get(
		w.spreadsheetID, "MONITORING!A1:A1",
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading MONITORING header: %w", err)
	}

	if len(existing.Values) == 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID,
			"MONITORING!A1",
			&sheets.ValueRange{Values: [][]any{header}},
		).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing MONITORING header: %w", err)
		}
		if err := w.applyMonitoringFormatting(ctx, meta["MONITORING"], len(header)); err != nil {
			return fmt.Errorf("formatting MONITORING sheet: %w", err)
		}
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID,
		"MONITORING!A:A",
		&sheets.ValueRange{Values: [][]any{dataRow}},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending MONITORING row: %w", err)
	}

	return nil
}

// applyMonitoringFormatting freezes the header row and date column and bolds the header.
func (w *SheetsWriter) applyMonitoringFormatting(ctx context.Context, mon sheetMeta, totalCols int) error {
	reqs := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          mon.id,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(totalCols),
				},
				Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
					TextFormat:          &sheets.TextFormat{Bold: true},
					HorizontalAlignment: "CENTER",
				}},
				Fields: "userEnteredFormat(textFormat,horizontalAlignment)",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: mon.id,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount:    1,
						FrozenColumnCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount,gridProperties.frozenColumnCount",
			},
		},
	}

	_, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs},
	).Context(ctx).Do()
	return err
}
