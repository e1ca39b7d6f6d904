package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel writes one line per non-empty row, cells separated by tabs. Workbooks with
// more than one sheet get a "# <sheet>" heading per sheet.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var buf strings.Builder
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		if len(sheets) > 1 {
			writeLine(&buf, sheet, 1)
		}
		for _, row := range rows {
			writeLine(&buf, strings.Join(row, "\t"), 0)
		}
	}
	return strings.TrimSpace(buf.String()), nil
}
