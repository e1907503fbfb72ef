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
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dvutils/dvutils/metadata"
)

// A Group is a repeatable compound field whose sub-fields are flattened into
// separate record keys (e.g. authorName and authorAffiliation for "author").
// A readme shows a group as one row per repetition.
type Group struct {
	// the group's canonical field name, used for its label
	Name string
	// record keys beginning with this prefix (followed by an upper-case
	// letter) belong to the group
	Prefix string
	// if given, exactly these record keys belong to the group
	Members []string
}

// the repeatable groups of Dataverse's citation and geospatial blocks
var DefaultGroups = []Group{
	{Name: "author", Prefix: "author"},
	{Name: "datasetContact", Prefix: "datasetContact"},
	{Name: "keyword", Prefix: "keyword"},
	{Name: "producer", Prefix: "producer"},
	{Name: "distributor", Prefix: "distributor"},
	{Name: "contributor", Prefix: "contributor"},
	{Name: "grantNumber", Prefix: "grantNumber"},
	{Name: "topicClassification", Prefix: "topicClass"},
	{Name: "publication", Prefix: "publication"},
	{Name: "otherId", Prefix: "otherId"},
	{Name: "software", Prefix: "software"},
	{Name: "series", Prefix: "series"},
	{Name: "timePeriodCovered", Prefix: "timePeriodCovered"},
	{Name: "dateOfCollection", Prefix: "dateOfCollection"},
	{Name: "geographicCoverage",
		Members: []string{"country", "state", "city", "otherGeographicCoverage"}},
}

// creates groups named by the given field name prefixes
func GroupsFromPrefixes(prefixes []string) []Group {
	groups := make([]Group, len(prefixes))
	for i, prefix := range prefixes {
		groups[i] = Group{Name: prefix, Prefix: prefix}
	}
	return groups
}

// returns true if the given record key belongs to the group
func (g Group) Contains(key string) bool {
	if len(g.Members) > 0 {
		for _, member := range g.Members {
			if member == key {
				return true
			}
		}
		return false
	}
	rest, found := strings.CutPrefix(key, g.Prefix)
	if !found || rest == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsUpper(r)
}

// the bounding box fields, in tuple order
const (
	westLongitude = "westLongitude"
	southLatitude = "southLatitude"
	eastLongitude = "eastLongitude"
	northLatitude = "northLatitude"
	boundingBox   = "geographicBoundingBox"
)

func isBoundingBoxKey(key string) bool {
	switch key {
	case westLongitude, southLatitude, eastLongitude, northLatitude:
		return true
	}
	return false
}

// Zips columns of values into rows. Every row has one cell per column; the
// number of rows is the length of the longest column, and shorter columns
// are padded with empty strings.
func zipRows(columns [][]string) [][]string {
	n := 0
	for _, column := range columns {
		n = max(n, len(column))
	}
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = make([]string, len(columns))
		for j, column := range columns {
			if i < len(column) {
				rows[i][j] = column[i]
			}
		}
	}
	return rows
}

// renders the given group members of a record as rows of "a - b - c", in
// member order. Empty cells are left out, as are rows with no values.
func groupRows(record metadata.FlatRecord, members []string) []string {
	columns := make([][]string, len(members))
	for i, member := range members {
		columns[i] = record.Split(member)
	}
	var rows []string
	for _, row := range zipRows(columns) {
		var cells []string
		for _, cell := range row {
			if cell = strings.TrimSpace(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " - "))
		}
	}
	return rows
}

// renders the bounding box fields of a record as one "(west south) (east
// north)" row per box
func boundingBoxRows(record metadata.FlatRecord) []string {
	columns := [][]string{
		record.Split(westLongitude),
		record.Split(southLatitude),
		record.Split(eastLongitude),
		record.Split(northLatitude),
	}
	var rows []string
	for _, box := range zipRows(columns) {
		var points []string
		for i := 0; i < len(box); i += 2 {
			lon, lat := strings.TrimSpace(box[i]), strings.TrimSpace(box[i+1])
			if lon != "" || lat != "" {
				points = append(points, fmt.Sprintf("(%s %s)", lon, lat))
			}
		}
		if len(points) > 0 {
			rows = append(rows, strings.Join(points, " "))
		}
	}
	return rows
}
