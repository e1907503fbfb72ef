// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// This package describes the columns of delimited data files, producing the
// data dictionaries embedded in study readmes.
package dictionary

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/frictionlessdata/tableschema-go/schema"
	"github.com/frictionlessdata/tableschema-go/table"
)

// indicates that a file's format can't be described
type UnsupportedFormatError struct {
	Path string
}

func (e UnsupportedFormatError) Error() string {
	return fmt.Sprintf("Can't describe %s: unsupported format", e.Path)
}

// field delimiters by (lower-case) file extension
var delimiters = map[string]rune{
	".csv": ',',
	".tsv": '\t',
	".tab": '\t',
}

// summary statistics for one column of a data file
type Column struct {
	Name string `json:"name"`
	// Table Schema type inferred from the column's values ("integer",
	// "number", "string", "date", ...)
	Type string `json:"type"`
	// number of non-empty values
	Count   int `json:"count"`
	Missing int `json:"missing"`
	Unique  int `json:"unique"`
	// set for numeric columns only
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Mean *float64 `json:"mean,omitempty"`
}

// returns true if the column holds numbers
func (c Column) Numeric() bool {
	return c.Type == string(schema.IntegerType) || c.Type == string(schema.NumberType)
}

// A Dictionary describes the columns of a data file.
type Dictionary struct {
	Rows    int      `json:"rows"`
	Columns []Column `json:"columns"`
}

// returns true if files with the given name can be described
func Supported(filename string) bool {
	_, found := delimiters[strings.ToLower(filepath.Ext(filename))]
	return found
}

// Describes the columns of the delimited text file at the given path. The
// first row holds the column names.
func Describe(path string) (*Dictionary, error) {
	delimiter, found := delimiters[strings.ToLower(filepath.Ext(path))]
	if !found {
		return nil, &UnsupportedFormatError{Path: path}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, delimiter)
}

// Describes delimited text read from r, whose first row holds the column
// names.
func Read(r io.Reader, delimiter rune) (*Dictionary, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	// short rows count as missing values
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("No header row")
	}
	headers, rows := rows[0], rows[1:]
	rows = rectangular(rows, len(headers))

	sch, err := schema.Infer(table.FromSlices(headers, rows))
	if err != nil {
		return nil, err
	}

	dict := &Dictionary{Rows: len(rows), Columns: make([]Column, len(headers))}
	for i, name := range headers {
		column := Column{Name: name, Type: string(schema.StringType)}
		if i < len(sch.Fields) {
			column.Type = string(sch.Fields[i].Type)
		}
		summarize(&column, rows, i)
		dict.Columns[i] = column
	}
	return dict, nil
}

// pads short rows with empty cells and cuts long ones to the given width,
// since schema inference needs one cell per header
func rectangular(rows [][]string, width int) [][]string {
	for i, row := range rows {
		switch {
		case len(row) < width:
			rows[i] = append(row, make([]string, width-len(row))...)
		case len(row) > width:
			rows[i] = row[:width]
		}
	}
	return rows
}

// fills in the counts and (for numeric columns) statistics of the column at
// the given index
func summarize(column *Column, rows [][]string, index int) {
	unique := make(map[string]bool)
	numeric := column.Numeric()
	var sum float64
	var n int
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		if strings.TrimSpace(row[index]) == "" {
			column.Missing++
			continue
		}
		value := strings.TrimSpace(row[index])
		column.Count++
		unique[value] = true
		if !numeric {
			continue
		}
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		sum += x
		n++
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	column.Unique = len(unique)
	if numeric && n > 0 {
		mean := sum / float64(n)
		column.Min, column.Max, column.Mean = &lo, &hi, &mean
	}
}
