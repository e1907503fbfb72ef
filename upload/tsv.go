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

// This package uploads local files, with their descriptions and tags, to
// Dataverse studies, driven by tab-separated upload manifests that it can
// also generate from a directory.
package upload

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path/filepath"
	"slices"
	"strings"
)

// columns of an upload manifest; "mimetype" and "path" are optional
const (
	FileColumn        = "file"
	DescriptionColumn = "description"
	TagsColumn        = "tags"
	MimeTypeColumn    = "mimetype"
	PathColumn        = "path"
)

// tags given to scanned files unless others are requested
var DefaultTags = []string{"Data"}

// An Entry is one file to upload, as listed in an upload manifest.
type Entry struct {
	// local path of the file
	File        string
	Description string
	// file categories, e.g. "Data" or "Documentation"
	Tags []string
	// MIME type to upload the file with (guessed from its name if empty)
	MimeType string
	// folder within the study (derived from File if empty)
	Path string
}

// options for Scan
type ScanOptions struct {
	// descend into subdirectories
	Recursive bool
	// include files and directories whose names begin with '.'
	Hidden bool
	// tags for every file (DefaultTags if nil)
	Tags []string
	// fill in each entry's MIME type
	MimeTypes bool
}

// Lists the files under the given directory as upload entries sorted by path,
// each described by its name without extension.
func Scan(root string, opts ScanOptions) ([]Entry, error) {
	tags := opts.Tags
	if tags == nil {
		tags = DefaultTags
	}
	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		hidden := strings.HasPrefix(d.Name(), ".") && path != root
		if d.IsDir() {
			if path != root && (!opts.Recursive || (hidden && !opts.Hidden)) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden && !opts.Hidden {
			return nil
		}
		entry := Entry{
			File:        path,
			Description: strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Tags:        slices.Clone(tags),
		}
		if opts.MimeTypes {
			entry.MimeType = MimeType(path)
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.File, b.File) })
	return entries, nil
}

// returns the MIME type for a file name, or application/octet-stream if it
// can't be guessed
func MimeType(filename string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if t == "" {
		return "application/octet-stream"
	}
	t, _, _ = strings.Cut(t, ";")
	return t
}

// options for WriteTSV
type WriteOptions struct {
	// leave out the header row
	NoHeader bool
	// add a mimetype column
	MimeTypes bool
	// add a path column
	Paths bool
}

// Writes entries as a tab-separated upload manifest.
func WriteTSV(w io.Writer, entries []Entry, opts WriteOptions) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	header := []string{FileColumn, DescriptionColumn, TagsColumn}
	if opts.MimeTypes {
		header = append(header, MimeTypeColumn)
	}
	if opts.Paths {
		header = append(header, PathColumn)
	}
	if !opts.NoHeader {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	for _, entry := range entries {
		row := []string{entry.File, entry.Description, strings.Join(entry.Tags, ", ")}
		if opts.MimeTypes {
			row = append(row, entry.MimeType)
		}
		if opts.Paths {
			row = append(row, entry.Path)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// indicates that an upload manifest lacks a required column
type MissingColumnError struct {
	Column string
}

func (e MissingColumnError) Error() string {
	return fmt.Sprintf("Upload manifest has no '%s' column", e.Column)
}

// Reads a tab-separated upload manifest whose first row names its columns.
// Tags are separated by commas; rows without a file are skipped.
func ReadTSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &MissingColumnError{Column: FileColumn}
	}
	columns := make(map[string]int)
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, found := columns[FileColumn]; !found {
		return nil, &MissingColumnError{Column: FileColumn}
	}
	cell := func(row []string, column string) string {
		i, found := columns[column]
		if !found || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	entries := []Entry{}
	for _, row := range rows[1:] {
		file := cell(row, FileColumn)
		if file == "" {
			continue
		}
		entries = append(entries, Entry{
			File:        file,
			Description: cell(row, DescriptionColumn),
			Tags:        splitTags(cell(row, TagsColumn)),
			MimeType:    cell(row, MimeTypeColumn),
			Path:        cell(row, PathColumn),
		})
	}
	return entries, nil
}

func splitTags(tags string) []string {
	var split []string
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			split = append(split, tag)
		}
	}
	return split
}

// Returns the study folder for a local file: its directory, with the given
// prefix removed. Files at the top level have no folder.
func DirectoryLabel(file, trim string) string {
	dir := filepath.ToSlash(filepath.Dir(filepath.Clean(file)))
	trim = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(trim)), "/")
	if trim != "" && trim != "." {
		if dir == trim {
			return ""
		}
		dir = strings.TrimPrefix(dir, trim+"/")
	}
	dir = strings.TrimPrefix(dir, "/")
	if dir == "." {
		return ""
	}
	return dir
}
