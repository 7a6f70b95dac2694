package feed

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"catalog/importer/internal/domain"
)

var (
	ErrEmptyFile     = errors.New("feed file is empty")
	ErrMissingHeader = errors.New("feed file missing header row")
)

// Row is one record together with the line it started on.
type Row struct {
	Line   int
	Record domain.Record
}

// Table is a parsed delimited file.
type Table struct {
	Header []string
	Rows   []Row
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

type readerOptions struct {
	delimiter rune
}

type ReaderOption func(*readerOptions)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ReaderOption {
	return func(o *readerOptions) {
		if d != 0 {
			o.delimiter = d
		}
	}
}

// ReadRecords reads a delimited file with a header row into records keyed by
// header name. A UTF-8 BOM is dropped, headers are trimmed, quotes are
// parsed lazily and rows may have fewer or more fields than the header.
func ReadRecords(r io.Reader, opts ...ReaderOption) (*Table, error) {
	o := &readerOptions{delimiter: ','}
	for _, apply := range opts {
		apply(o)
	}

	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.Comma = o.delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) == 0 || (len(header) == 1 && header[0] == "") {
		return nil, ErrMissingHeader
	}

	table := &Table{Header: header}
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		line, _ := reader.FieldPos(0)
		record := make(domain.Record, len(header))
		empty := true
		for i, name := range header {
			if i >= len(fields) {
				break
			}
			value := strings.TrimSpace(fields[i])
			if value != "" {
				empty = false
			}
			record[name] = value
		}
		if empty {
			continue
		}

		table.Rows = append(table.Rows, Row{Line: line, Record: record})
	}

	return table, nil
}
