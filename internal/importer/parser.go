package importer

import (
	"strings"

	apperrors "github.com/smart-student/edu-import-api/pkg/errors"
)

// Table is the shape every input format is lowered to before extraction:
// a trimmed lower-cased header row plus rows of equal arity.
type Table struct {
	Headers []string
	Rows    [][]string
}

var delimiterCandidates = []rune{';', ',', '\t', '|'}

// DetectDelimiter counts candidate separators in the first non-empty line
// and picks the most frequent one, defaulting to a comma.
func DetectDelimiter(line string) rune {
	best := ','
	bestCount := 0
	for _, candidate := range delimiterCandidates {
		count := strings.Count(line, string(candidate))
		if count > bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best
}

// ParseDelimited tokenizes delimited text into a Table. Quoted fields may
// contain the delimiter and doubled quotes; short rows are padded with
// empty strings rather than rejected.
func ParseDelimited(text string) (*Table, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := make([]string, 0, 64)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, apperrors.ErrEmptyInput
	}

	delimiter := DetectDelimiter(lines[0])

	headers := tokenizeLine(normalizeWrappingQuotes(lines[0], delimiter), delimiter)
	for i, header := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(header))
	}
	if len(headers) == 0 {
		return nil, apperrors.ErrNoHeader
	}

	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := tokenizeLine(normalizeWrappingQuotes(line, delimiter), delimiter)
		for len(fields) < len(headers) {
			fields = append(fields, "")
		}
		rows = append(rows, fields)
	}

	return &Table{Headers: headers, Rows: rows}, nil
}

// tokenizeLine splits one line on the delimiter, honouring quoted fields
// where "" escapes a literal quote.
func tokenizeLine(line string, delimiter rune) []string {
	fields := make([]string, 0, 8)
	var field strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == delimiter && !inQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteRune(ch)
		}
	}
	fields = append(fields, strings.TrimSpace(field.String()))

	return fields
}

// normalizeWrappingQuotes unwraps lines that some spreadsheet exports emit
// fully wrapped in quotes with every inner quote doubled.
func normalizeWrappingQuotes(line string, delimiter rune) string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 2 || !strings.HasPrefix(trimmed, `"`) || !strings.HasSuffix(trimmed, `"`) {
		return line
	}

	inner := trimmed[1 : len(trimmed)-1]
	// A genuine quoted first field keeps its closing quote before the first
	// delimiter; a wrapped line does not.
	if strings.ContainsRune(inner, delimiter) && !strings.Contains(inner, `"`+string(delimiter)) {
		return strings.ReplaceAll(inner, `""`, `"`)
	}
	return line
}

// RowMap pairs a row's fields with the table headers, which is the shape
// field extraction works on.
func (t *Table) RowMap(index int) map[string]string {
	row := t.Rows[index]
	m := make(map[string]string, len(t.Headers))
	for i, header := range t.Headers {
		if i < len(row) {
			m[header] = row[i]
		} else {
			m[header] = ""
		}
	}
	return m
}
