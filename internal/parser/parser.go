package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/vrp-import-service/internal/errors"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DefaultMaxBytes is the upload ceiling when Options.MaxBytes is unset
const DefaultMaxBytes int64 = 10 << 20

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Delimiters are the separators tried when sniffing a delimited file
var Delimiters = []rune{',', ';', '\t', '|'}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Issue is a row or cell level problem found while parsing. Row 0 is the header.
type Issue struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// Row is one data row; Index is 1-based
type Row struct {
	Index       int               `json:"index"`
	Values      map[string]string `json:"values"`
	Placeholder bool              `json:"placeholder,omitempty"`
}

// ParsedFile is immutable once returned from Parse
type ParsedFile struct {
	FileName    string   `json:"file_name"`
	Format      Format   `json:"format"`
	Delimiter   string   `json:"delimiter,omitempty"`
	Size        int64    `json:"size"`
	Headers     []string `json:"headers"`
	Rows        []Row    `json:"rows"`
	RowCount    int      `json:"row_count"`
	ColumnCount int      `json:"column_count"`
	Errors      []Issue  `json:"errors"`
	Warnings    []Issue  `json:"warnings"`
}

// RowErrors returns the parse errors of one data row
func (p *ParsedFile) RowErrors(index int) []Issue {
	var out []Issue
	for _, e := range p.Errors {
		if e.Row == index {
			out = append(out, e)
		}
	}
	return out
}

type Options struct {
	MaxBytes int64
	// Delimiter forces the separator for delimited files; zero means sniff
	Delimiter rune
}

// Parse reads a CSV (or other delimited text) or XLSX upload.
// Only file-level problems are returned as *errors.ParseError; row problems are collected.
func Parse(ctx context.Context, r io.Reader, fileName string, opts Options) (*ParsedFile, error) {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, errors.NewParseError(errors.ReasonUnreadable, "failed to read upload", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, errors.NewParseError(errors.ReasonTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", maxBytes), nil)
	}
	if len(bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))) == 0 {
		return nil, errors.NewParseError(errors.ReasonNoRows, "file is empty", nil)
	}

	file := &ParsedFile{FileName: fileName, Size: int64(len(data))}

	var records []record
	mtype := mimetype.Detect(data)
	switch {
	case isSpreadsheet(mtype, fileName):
		file.Format = FormatXLSX
		records, err = readWorkbook(data)
	case isText(mtype):
		file.Format = FormatCSV
		delim := opts.Delimiter
		if delim == 0 {
			delim = sniffDelimiter(data)
		}
		file.Delimiter = string(delim)
		records, err = readDelimited(ctx, data, delim)
	default:
		return nil, errors.NewParseError(errors.ReasonUnsupportedFormat,
			fmt.Sprintf("unsupported file type %s", mtype.String()), nil)
	}
	if err != nil {
		return nil, err
	}

	if err := build(file, records); err != nil {
		return nil, err
	}
	return file, nil
}

func isSpreadsheet(m *mimetype.MIME, fileName string) bool {
	if m.Is(xlsxMIME) {
		return true
	}
	return m.Is("application/zip") && strings.EqualFold(filepath.Ext(fileName), ".xlsx")
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// record is one raw line; err is set when the line could not be read
type record struct {
	cells []string
	err   error
	// padded marks sources that drop trailing blank cells
	padded bool
}

func readDelimited(ctx context.Context, data []byte, delim rune) ([]record, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	totalLines := bytes.Count(bytes.TrimRight(data, "\r\n"), []byte("\n")) + 1

	newReader := func(b []byte) *csv.Reader {
		reader := csv.NewReader(bytes.NewReader(b))
		reader.Comma = delim
		reader.FieldsPerRecord = -1
		return reader
	}
	reader := newReader(data)
	// base is the number of lines skipped before the current reader started
	base := 0

	var out []record
	for {
		if len(out)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !stderrors.As(err, &perr) {
				return nil, errors.NewParseError(errors.ReasonUnreadable, "failed to read delimited file", err)
			}
			if len(out) == 0 {
				return nil, errors.NewParseError(errors.ReasonUnreadable, "header row is malformed", err)
			}
			located := *perr
			located.StartLine += base
			located.Line += base
			out = append(out, record{err: &located})

			// an unterminated quote swallows the rest of the file; resume on the line after it started
			if located.Line >= totalLines && located.StartLine < located.Line {
				base = located.StartLine
				reader = newReader(afterLine(data, base))
			}
			continue
		}
		out = append(out, record{cells: cells})
	}
	return out, nil
}

// afterLine returns data following the first n lines
func afterLine(data []byte, n int) []byte {
	for i := 0; i < n; i++ {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return nil
		}
		data = data[idx+1:]
	}
	return data
}

func readWorkbook(data []byte) ([]record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewParseError(errors.ReasonUnreadable, "failed to open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewParseError(errors.ReasonNoRows, "workbook has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.NewParseError(errors.ReasonUnreadable, "failed to read workbook rows", err)
	}

	out := make([]record, 0, len(rows))
	for _, cells := range rows {
		if isBlank(cells) {
			continue
		}
		out = append(out, record{cells: cells, padded: true})
	}
	return out, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks the candidate occurring most often outside quotes on the header line
func sniffDelimiter(data []byte) rune {
	data = bytes.TrimPrefix(data, utf8BOM)
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		data = data[:i]
	}

	counts := make(map[rune]int, len(Delimiters))
	inQuotes := false
	for _, r := range string(data) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best := Delimiters[0]
	for _, d := range Delimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

func build(file *ParsedFile, records []record) error {
	if len(records) == 0 {
		return errors.NewParseError(errors.ReasonNoRows, "file has no header row", nil)
	}
	if len(records) == 1 {
		return errors.NewParseError(errors.ReasonNoRows, "file has a header row but no data rows", nil)
	}

	headers, warnings := uniqueHeaders(records[0].cells)
	file.Headers = headers
	file.ColumnCount = len(headers)
	file.Warnings = append(file.Warnings, warnings...)
	if w, ok := casingWarning(headers); ok {
		file.Warnings = append(file.Warnings, w)
	}

	for i, rec := range records[1:] {
		index := i + 1
		row := Row{Index: index, Values: make(map[string]string, len(headers))}

		if rec.err != nil {
			row.Placeholder = true
			for _, h := range headers {
				row.Values[h] = ""
			}
			file.Errors = append(file.Errors, Issue{Row: index, Message: fmt.Sprintf("malformed row: %v", rec.err)})
			file.Rows = append(file.Rows, row)
			continue
		}

		for c, h := range headers {
			if c < len(rec.cells) {
				row.Values[h] = rec.cells[c]
			} else {
				row.Values[h] = ""
			}
		}

		switch {
		case len(rec.cells) > len(headers):
			extra := rec.cells[len(headers):]
			file.Errors = append(file.Errors, Issue{
				Row: index,
				Message: fmt.Sprintf("row has %d columns, expected %d; dropped values: %s",
					len(rec.cells), len(headers), strings.Join(extra, ", ")),
			})
		case len(rec.cells) < len(headers) && !rec.padded:
			file.Errors = append(file.Errors, Issue{
				Row:     index,
				Message: fmt.Sprintf("row has %d columns, expected %d", len(rec.cells), len(headers)),
			})
		}

		var empty []string
		for _, h := range headers {
			if strings.TrimSpace(row.Values[h]) == "" {
				empty = append(empty, h)
			}
		}
		if len(empty) > 0 {
			file.Warnings = append(file.Warnings, Issue{
				Row:     index,
				Message: fmt.Sprintf("empty cells: %s", strings.Join(empty, ", ")),
			})
		}

		file.Rows = append(file.Rows, row)
	}

	file.RowCount = len(file.Rows)
	return nil
}

func uniqueHeaders(raw []string) ([]string, []Issue) {
	var warnings []Issue
	seen := make(map[string]int, len(raw))
	headers := make([]string, len(raw))

	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
			warnings = append(warnings, Issue{Column: name, Message: fmt.Sprintf("column %d has no header; named %s", i+1, name)})
		}

		key := strings.ToLower(name)
		if n, dup := seen[key]; dup {
			unique := fmt.Sprintf("%s_%d", name, n+1)
			for seen[strings.ToLower(unique)] > 0 {
				n++
				unique = fmt.Sprintf("%s_%d", name, n+1)
			}
			seen[key] = n + 1
			warnings = append(warnings, Issue{Column: unique, Message: fmt.Sprintf("duplicate header %q renamed to %q", name, unique)})
			name = unique
			key = strings.ToLower(name)
		}
		seen[key]++
		headers[i] = name
	}
	return headers, warnings
}

type casing int

const (
	caseNone casing = iota
	caseLower
	caseUpper
	caseMixed
)

func casingWarning(headers []string) (Issue, bool) {
	styles := make(map[casing]bool)
	for _, h := range headers {
		if c := classify(h); c != caseNone {
			styles[c] = true
		}
	}
	if len(styles) <= 1 {
		return Issue{}, false
	}
	return Issue{Message: "headers use inconsistent casing"}, true
}

func classify(s string) casing {
	var lower, upper bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		}
	}
	switch {
	case lower && upper:
		return caseMixed
	case lower:
		return caseLower
	case upper:
		return caseUpper
	default:
		return caseNone
	}
}
