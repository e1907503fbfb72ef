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

package metadata

import (
	"maps"
	"slices"
	"strings"
)

// separates the values of a multiple-valued field in a FlatRecord
const Delimiter = "; "

// A FlatRecord maps raw field names (typeNames) to single string values, with
// the values of multiple-valued fields joined by Delimiter.
type FlatRecord map[string]string

// returns the record's keys in sorted order
func (r FlatRecord) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

// returns the values of the given field, split on Delimiter; absent fields
// have no values
func (r FlatRecord) Split(key string) []string {
	value, found := r[key]
	if !found {
		return nil
	}
	return strings.Split(value, Delimiter)
}

// merges the entries of one field into the given record (last write wins)
func extractField(record FlatRecord, field Field) {
	switch field.Kind {
	case KindPrimitive:
		record[field.TypeName] = field.Value
	case KindPrimitiveList:
		record[field.TypeName] = strings.Join(field.Values, Delimiter)
	case KindVocabulary:
		if field.Values != nil {
			record[field.TypeName] = strings.Join(field.Values, Delimiter)
		} else {
			record[field.TypeName] = field.Value
		}
	case KindCompound:
		for _, subfield := range field.Subfields {
			extractField(record, subfield)
		}
	case KindCompoundList:
		names, groups := groupEntries(field.Entries)
		for _, name := range names {
			record[name] = strings.Join(groups[name], Delimiter)
		}
	}
}

// flattens each entry of a multiple compound field separately, then groups
// values by sub-field name across all entries. Every group has one value per
// entry, in entry order; an entry lacking a sub-field contributes "". Names
// are returned in order of first appearance.
func groupEntries(entries [][]Field) ([]string, map[string][]string) {
	flattened := make([]FlatRecord, len(entries))
	var names []string
	seen := make(map[string]bool)
	for i, entry := range entries {
		flattened[i] = make(FlatRecord)
		for _, subfield := range entry {
			extractField(flattened[i], subfield)
		}
		for _, subfield := range entry {
			for _, name := range fieldNames(subfield) {
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
	}
	groups := make(map[string][]string, len(names))
	for _, name := range names {
		values := make([]string, len(entries))
		for i := range entries {
			values[i] = flattened[i][name]
		}
		groups[name] = values
	}
	return names, groups
}

// returns the names of the record keys a field produces when flattened, in
// order
func fieldNames(field Field) []string {
	switch field.Kind {
	case KindCompound:
		var names []string
		for _, subfield := range field.Subfields {
			names = append(names, fieldNames(subfield)...)
		}
		return names
	case KindCompoundList:
		names, _ := groupEntries(field.Entries)
		return names
	default:
		return []string{field.TypeName}
	}
}

// returns the values a field holds for the given typeName, one per entry of
// a multiple compound field, without joining them
func fieldValues(field Field, name string) ([]string, bool) {
	switch field.Kind {
	case KindCompound:
		var values []string
		var found bool
		for _, subfield := range field.Subfields {
			if v, ok := fieldValues(subfield, name); ok {
				values, found = v, true
			}
		}
		return values, found
	case KindCompoundList:
		var values []string
		var found bool
		for _, entry := range field.Entries {
			var entryValues []string
			var inEntry bool
			for _, subfield := range entry {
				if v, ok := fieldValues(subfield, name); ok {
					entryValues, inEntry = v, true
				}
			}
			if inEntry {
				values = append(values, entryValues...)
				found = true
			}
		}
		return values, found
	}
	if field.TypeName != name {
		return nil, false
	}
	if field.IsList() {
		return slices.Clone(field.Values), true
	}
	return []string{field.Value}, true
}
