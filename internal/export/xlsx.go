// Package export renders batch results as spreadsheets.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/idcard-reader/internal/batch"
	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
)

const SheetName = "Cards"

// Headers lists the workbook columns in order.
var Headers = func() []string {
	h := []string{"File"}
	for _, f := range idcard.AllFields {
		h = append(h, string(f))
	}
	return append(h, "CNP Valid", "Source", "Status", "Error")
}()

// RecordsXLSX returns an XLSX workbook (as bytes) with one row per batch result.
func RecordsXLSX(rows []batch.FileResult, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// Rename the default sheet instead of leaving an empty "Sheet1" behind.
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("%w: rename sheet: %v", common.ErrInternal, err)
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for i, fr := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}

		write(1, fr.Path)
		if fr.Result != nil {
			for j, fld := range idcard.AllFields {
				v, _ := fr.Result.Record.Get(fld)
				write(j+2, v)
			}
			switch {
			case fr.Result.CodeValid == nil:
				write(len(idcard.AllFields)+2, "")
			case *fr.Result.CodeValid:
				write(len(idcard.AllFields)+2, "yes")
			default:
				write(len(idcard.AllFields)+2, "no")
			}
			write(len(idcard.AllFields)+3, string(fr.Result.Source))
		}
		write(len(idcard.AllFields)+4, string(fr.Status))
		write(len(idcard.AllFields)+5, fr.Err)
	}

	// Column widths
	_ = f.SetColWidth(SheetName, "A", "A", 40)
	_ = f.SetColWidth(SheetName, "B", "K", 22)
	_ = f.SetColWidth(SheetName, "L", "O", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: write xlsx: %v", common.ErrInternal, err)
	}

	logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"bytes", buf.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
