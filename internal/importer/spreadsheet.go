package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/smart-student/edu-import-api/pkg/errors"
)

// ParseWorkbook lowers the first sheet of an XLSX workbook to the same
// Table shape the delimited parser emits.
func ParseWorkbook(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnsupportedFormat.Code, apperrors.ErrUnsupportedFormat.Status, "could not open workbook")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.ErrEmptyInput
	}

	rawRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	nonEmpty := make([][]string, 0, len(rawRows))
	for _, row := range rawRows {
		if !rowIsBlank(row) {
			nonEmpty = append(nonEmpty, row)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, apperrors.ErrEmptyInput
	}

	headers := make([]string, len(nonEmpty[0]))
	for i, cell := range nonEmpty[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(RepairMojibake(cell)))
	}

	rows := make([][]string, 0, len(nonEmpty)-1)
	for _, raw := range nonEmpty[1:] {
		fields := make([]string, len(headers))
		for i := range headers {
			if i < len(raw) {
				fields[i] = strings.TrimSpace(RepairMojibake(raw[i]))
			}
		}
		rows = append(rows, fields)
	}

	return &Table{Headers: headers, Rows: rows}, nil
}

func rowIsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
