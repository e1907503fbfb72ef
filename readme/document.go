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

// This package renders the metadata of a Dataverse study as a readme, in
// Markdown or PDF.
package readme

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dvutils/dvutils/dictionary"
	"github.com/dvutils/dvutils/metadata"
)

// record keys given their own sections or handled with the files
const (
	titleKey       = "title"
	descriptionKey = "dsDescriptionValue"
	termsKey       = "termsOfUse"
)

// labels that RenameField doesn't produce
var labels = map[string]string{
	metadata.PIDKey:     "Persistent Identifier",
	metadata.VersionKey: "Version",
}

// An Entry is one labelled field of a readme.
type Entry struct {
	// record key (or group name)
	Key   string
	Label string
	// the field's value, or one row per repetition of a group
	Values []string
	// true for repeatable groups, which are labelled "Label(s)"
	Group bool
}

// A File describes one file of a study in a readme.
type File struct {
	metadata.FileEntry
	// nil if the file wasn't (or couldn't be) described
	Dictionary *dictionary.Dictionary
}

// A Document is a study readme, ready to be written as Markdown or PDF.
type Document struct {
	Title       string
	Description []string
	Entries     []Entry
	Licence     string
	LicenceLink string
	TermsOfUse  string
	Files       []File
}

// A Describer produces a data dictionary for a file. Failures leave the
// dictionary out of the readme.
type Describer func(ctx context.Context, file metadata.FileEntry) (*dictionary.Dictionary, error)

type options struct {
	groups      []Group
	describer   Describer
	description []string
}

// an option for New and FromRecord
type Option func(*options)

// sets the repeatable groups (DefaultGroups if not given)
func WithGroups(groups []Group) Option {
	return func(o *options) {
		o.groups = groups
	}
}

// adds a data dictionary to each file the given describer can describe
func WithDescriber(describer Describer) Option {
	return func(o *options) {
		o.describer = describer
	}
}

// sets the paragraphs of the description, which is otherwise the record's
// dsDescriptionValue as a single paragraph
func WithDescription(paragraphs []string) Option {
	return func(o *options) {
		o.description = paragraphs
	}
}

// Creates a readme for the given study.
func New(ctx context.Context, study *metadata.Study, opts ...Option) (*Document, error) {
	files, err := study.Files()
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithDescription(study.Values(descriptionKey))}, opts...)
	return FromRecord(ctx, study.Record(), study.Fields(), files, opts...), nil
}

// Creates a readme from a flattened record whose keys are shown in the given
// order (remaining keys follow in sorted order), and the given files.
func FromRecord(ctx context.Context, record metadata.FlatRecord, order []string,
	files []metadata.FileEntry, opts ...Option) *Document {
	o := options{groups: DefaultGroups}
	for _, opt := range opts {
		opt(&o)
	}

	keys := make([]string, 0, len(record))
	for _, key := range order {
		if _, found := record[key]; found && !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	for _, key := range record.Keys() {
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}

	doc := &Document{}
	used := make(map[string]bool)
	for _, key := range keys {
		if used[key] {
			continue
		}
		used[key] = true
		value := strings.TrimSpace(record[key])

		if isBoundingBoxKey(key) {
			for _, k := range []string{westLongitude, southLatitude, eastLongitude, northLatitude} {
				used[k] = true
			}
			doc.addEntry(Entry{
				Key:    boundingBox,
				Label:  RenameField(boundingBox),
				Values: boundingBoxRows(record),
				Group:  true,
			})
			continue
		}
		if i := slices.IndexFunc(o.groups, func(g Group) bool { return g.Contains(key) }); i >= 0 {
			group := o.groups[i]
			var members []string
			for _, k := range keys {
				if group.Contains(k) {
					members = append(members, k)
					used[k] = true
				}
			}
			doc.addEntry(Entry{
				Key:    group.Name,
				Label:  RenameField(group.Name),
				Values: groupRows(record, members),
				Group:  true,
			})
			continue
		}

		switch key {
		case titleKey:
			doc.Title = value
		case descriptionKey:
			paragraphs := o.description
			if paragraphs == nil {
				paragraphs = []string{value}
			}
			for _, paragraph := range paragraphs {
				if paragraph = strings.TrimSpace(paragraph); paragraph != "" {
					doc.Description = append(doc.Description, paragraph)
				}
			}
		case metadata.LicenceKey:
			doc.Licence = value
		case metadata.LicenceLinkKey:
			doc.LicenceLink = value
		case termsKey:
			doc.TermsOfUse = value
		default:
			label, found := labels[key]
			if !found {
				label = RenameField(key)
			}
			doc.addEntry(Entry{Key: key, Label: label, Values: []string{value}})
		}
	}

	doc.Files = make([]File, len(files))
	for i, file := range files {
		doc.Files[i] = File{FileEntry: file}
		if o.describer != nil {
			doc.Files[i].Dictionary = describe(ctx, o.describer, file)
		}
	}
	return doc
}

// adds an entry with at least one non-empty value
func (d *Document) addEntry(entry Entry) {
	if len(entry.Values) == 0 || (len(entry.Values) == 1 && entry.Values[0] == "") {
		return
	}
	d.Entries = append(d.Entries, entry)
}

// returns the entry with the given key, if present
func (d Document) Entry(key string) (Entry, bool) {
	for _, entry := range d.Entries {
		if entry.Key == key {
			return entry, true
		}
	}
	return Entry{}, false
}

// calls the describer, dropping any failure
func describe(ctx context.Context, describer Describer, file metadata.FileEntry) *dictionary.Dictionary {
	dict, err := describer(ctx, file)
	if err != nil {
		slog.Debug(fmt.Sprintf("No data dictionary for %s: %s", file.Filename, err))
		return nil
	}
	return dict
}
