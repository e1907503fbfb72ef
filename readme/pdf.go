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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
)

// page layout (millimetres and points)
const (
	pdfMargin     = 20.0
	pdfLineHeight = 5.5
	pdfBodySize   = 10.0
	pdfFont       = "Helvetica"
)

// indicates that a readme can't be written in the format implied by a file
// name
type UnsupportedOutputError struct {
	Path string
}

func (e UnsupportedOutputError) Error() string {
	return fmt.Sprintf("Can't write a readme to %s: the extension must be one of .md, .txt or .pdf",
		e.Path)
}

// a PDF under construction, with text translated from UTF-8 to the core
// fonts' code page
type pdfWriter struct {
	*fpdf.Fpdf
	tr func(string) string
}

func (w pdfWriter) heading(text string, size float64) {
	w.SetFont(pdfFont, "B", size)
	w.MultiCell(0, size*0.5, w.tr(text), "", "L", false)
	w.Ln(2)
}

func (w pdfWriter) paragraph(text string) {
	w.SetFont(pdfFont, "", pdfBodySize)
	w.MultiCell(0, pdfLineHeight, w.tr(text), "", "L", false)
	w.Ln(2)
}

// writes a bold label followed by its value on the same line
func (w pdfWriter) labelled(label, value string) {
	w.SetFont(pdfFont, "B", pdfBodySize)
	w.Write(pdfLineHeight, w.tr(label+": "))
	w.SetFont(pdfFont, "", pdfBodySize)
	w.Write(pdfLineHeight, w.tr(value))
	w.Ln(pdfLineHeight + 1)
}

func (w pdfWriter) table(headers []string, rows [][]string) {
	width := (210.0 - 2*pdfMargin) / float64(len(headers))
	w.SetFont(pdfFont, "B", pdfBodySize-2)
	for _, header := range headers {
		w.CellFormat(width, pdfLineHeight, w.tr(header), "1", 0, "L", false, 0, "")
	}
	w.Ln(-1)
	w.SetFont(pdfFont, "", pdfBodySize-2)
	for _, row := range rows {
		for _, cell := range row {
			w.CellFormat(width, pdfLineHeight, w.tr(cell), "1", 0, "L", false, 0, "")
		}
		w.Ln(-1)
	}
	w.Ln(2)
}

// Renders the document as a PDF.
func (d Document) PDF() ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(d.heading(), true)
	pdf.SetCreator("dvutils", true)
	pdf.AddPage()
	w := pdfWriter{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	w.heading(d.heading(), 16)
	if len(d.Description) > 0 {
		w.heading("Description", 13)
		for _, paragraph := range d.Description {
			w.paragraph(paragraph)
		}
	}
	for _, entry := range d.Entries {
		if entry.Group {
			w.SetFont(pdfFont, "B", pdfBodySize)
			w.MultiCell(0, pdfLineHeight, w.tr(entry.label()+":"), "", "L", false)
			w.paragraph(strings.Join(entry.Values, "\n"))
		} else {
			w.labelled(entry.label(), strings.Join(entry.Values, "\n"))
		}
	}
	if d.Licence != "" {
		w.heading("Licence", 13)
		if d.LicenceLink != "" {
			w.paragraph(fmt.Sprintf("%s (%s)", d.Licence, d.LicenceLink))
		} else {
			w.paragraph(d.Licence)
		}
	}
	if d.TermsOfUse != "" {
		w.heading("Terms of Use", 13)
		w.paragraph(d.TermsOfUse)
	}
	if len(d.Files) > 0 {
		w.heading("Files", 13)
		for _, file := range d.Files {
			w.heading(file.Filename, 11)
			for _, line := range file.details() {
				w.labelled(line[0], line[1])
			}
			if file.Dictionary != nil {
				w.table(dictionaryHeaders, dictionaryRows(file.Dictionary))
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Writes the document to the given file, as a PDF if its extension is .pdf
// and as Markdown if it's .md or .txt.
func (d Document) WriteFile(path string) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		data = []byte(d.Markdown())
	case ".pdf":
		var err error
		if data, err = d.PDF(); err != nil {
			return err
		}
	default:
		return &UnsupportedOutputError{Path: path}
	}
	return os.WriteFile(path, data, 0644)
}
