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

package readme

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dvutils/dvutils/dictionary"
	"github.com/dvutils/dvutils/metadata"
)

// ends a line within a Markdown paragraph
const lineBreak = "  \n"

// returns the document's title, falling back to its persistent identifier
func (d Document) heading() string {
	if d.Title != "" {
		return d.Title
	}
	if entry, found := d.Entry(metadata.PIDKey); found {
		return entry.Values[0]
	}
	return "Untitled study"
}

// returns the label of an entry as it appears before its value
func (e Entry) label() string {
	if e.Group {
		return e.Label + "(s)"
	}
	return e.Label
}

// Renders the document as Markdown.
func (d Document) Markdown() string {
	var paragraphs []string
	paragraphs = append(paragraphs, "# "+d.heading())
	if len(d.Description) > 0 {
		paragraphs = append(paragraphs, "## Description")
		paragraphs = append(paragraphs, d.Description...)
	}
	for _, entry := range d.Entries {
		if entry.Group {
			paragraphs = append(paragraphs, fmt.Sprintf("**%s:**%s%s", entry.label(), lineBreak,
				strings.Join(entry.Values, lineBreak)))
		} else {
			paragraphs = append(paragraphs, fmt.Sprintf("**%s:** %s", entry.label(),
				strings.Join(entry.Values, lineBreak)))
		}
	}
	if d.Licence != "" {
		paragraphs = append(paragraphs, "## Licence")
		if d.LicenceLink != "" {
			paragraphs = append(paragraphs, fmt.Sprintf("[%s](%s)", d.Licence, d.LicenceLink))
		} else {
			paragraphs = append(paragraphs, d.Licence)
		}
	}
	if d.TermsOfUse != "" {
		paragraphs = append(paragraphs, "## Terms of Use", d.TermsOfUse)
	}
	if len(d.Files) > 0 {
		paragraphs = append(paragraphs, "## Files")
		for _, file := range d.Files {
			paragraphs = append(paragraphs, file.markdown()...)
		}
	}
	return strings.Join(paragraphs, "\n\n") + "\n"
}

// returns the label/value lines describing a file
func (f File) details() [][2]string {
	var lines [][2]string
	if f.Label != "" && f.Label != f.Filename {
		lines = append(lines, [2]string{"Label", f.Label})
	}
	if f.DirectoryLabel != "" {
		lines = append(lines, [2]string{"Folder", f.DirectoryLabel})
	}
	if f.Description != "" {
		lines = append(lines, [2]string{"Description", f.Description})
	}
	lines = append(lines, [2]string{"Size", fmt.Sprintf("%d bytes", f.SizeBytes)})
	if f.ChecksumType != "" {
		lines = append(lines, [2]string{"Checksum",
			fmt.Sprintf("%s: %s", f.ChecksumType, f.ChecksumDigest)})
	}
	if f.PID != "" {
		lines = append(lines, [2]string{"Persistent Identifier", f.PID})
	}
	return lines
}

func (f File) markdown() []string {
	paragraphs := []string{"### " + f.Filename}
	var lines []string
	for _, line := range f.details() {
		lines = append(lines, fmt.Sprintf("**%s:** %s", line[0], line[1]))
	}
	paragraphs = append(paragraphs, strings.Join(lines, lineBreak))
	if f.Dictionary != nil {
		paragraphs = append(paragraphs, "#### Data Dictionary",
			dictionaryTable(f.Dictionary))
	}
	return paragraphs
}

// the columns of a data dictionary table
var dictionaryHeaders = []string{"Column", "Type", "Count", "Missing", "Unique", "Min", "Max", "Mean"}

// returns the cells of a data dictionary table, one row per column
func dictionaryRows(dict *dictionary.Dictionary) [][]string {
	rows := make([][]string, len(dict.Columns))
	for i, column := range dict.Columns {
		rows[i] = []string{
			column.Name,
			column.Type,
			strconv.Itoa(column.Count),
			strconv.Itoa(column.Missing),
			strconv.Itoa(column.Unique),
			formatStat(column.Min),
			formatStat(column.Max),
			formatStat(column.Mean),
		}
	}
	return rows
}

func formatStat(x *float64) string {
	if x == nil {
		return ""
	}
	return strconv.FormatFloat(*x, 'g', 6, 64)
}

// renders a data dictionary as a Markdown table
func dictionaryTable(dict *dictionary.Dictionary) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(dictionaryHeaders, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(dictionaryHeaders)) + "\n")
	for _, row := range dictionaryRows(dict) {
		for i, cell := range row {
			row[i] = strings.ReplaceAll(cell, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	fmt.Fprintf(&b, "\n%d rows", dict.Rows)
	return b.String()
}
