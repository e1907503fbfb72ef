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

// This package exports the flattened metadata of every study in a collection
// tree, as a delimited spreadsheet or an SQLite database.
package inventory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dvutils/dvutils/collections"
	"github.com/dvutils/dvutils/metadata"
)

// the fields exported when none are requested
var DefaultFields = []string{"title", "authorName"}

// requests every field found in any study
const AllFields = "all"

// An Inventory holds the collections below a root collection and the studies
// found in all of them.
type Inventory struct {
	Root        string
	Collections []collections.Node
	Studies     []*metadata.Study
}

// Walks the given collection (the walker's root if empty), gathering its
// sub-collections and studies.
func Collect(ctx context.Context, walker *collections.Walker, root string) (*Inventory, error) {
	if root == "" {
		root = walker.Root
	}
	nodes, err := walker.Collections(ctx, root)
	if err != nil {
		return nil, err
	}
	studies, err := walker.Studies(ctx, root)
	if err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("Found %d studies in %d collections below %s", len(studies),
		len(nodes), root))
	return &Inventory{Root: root, Collections: nodes, Studies: studies}, nil
}

// Resolves the requested field names: "all" (in any case) selects the
// sorted union of every study's fields, and no fields selects DefaultFields.
func (inv Inventory) FieldNames(fields []string) []string {
	if len(fields) == 0 {
		return slices.Clone(DefaultFields)
	}
	for _, field := range fields {
		if strings.EqualFold(field, AllFields) {
			var names []string
			for _, study := range inv.Studies {
				names = append(names, study.Fields()...)
			}
			slices.Sort(names)
			return slices.Compact(names)
		}
	}
	return slices.Clone(fields)
}

// replaces tabs and line breaks, which break spreadsheet rows
var scrubber = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

// Writes one row per study holding the requested fields (see FieldNames),
// separated by the given delimiter. Fields a study lacks are left empty.
func (inv Inventory) WriteDelimited(w io.Writer, delimiter rune, fields []string) error {
	names := inv.FieldNames(fields)
	writer := csv.NewWriter(w)
	writer.Comma = delimiter
	if err := writer.Write(names); err != nil {
		return err
	}
	row := make([]string, len(names))
	for _, study := range inv.Studies {
		for i, name := range names {
			value, _ := study.Get(name)
			row[i] = scrubber.Replace(value)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

const schema = `
DROP TABLE IF EXISTS studies;
DROP TABLE IF EXISTS collections;
CREATE TABLE studies (
  pid   TEXT NOT NULL,
  field TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (pid, field)
);
CREATE TABLE collections (
  alias   TEXT PRIMARY KEY,
  title   TEXT NOT NULL,
  parent  TEXT NOT NULL
);
`

// Saves the inventory to the SQLite database at the given path, replacing
// its studies and collections tables. Each study field is one row of
// studies(pid, field, value).
func (inv Inventory) SaveSQLite(path string) (err error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err = sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("creating inventory tables: %s", err.Error())
	}

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endFn(&err)

	for _, node := range inv.Collections {
		parent := inv.Root
		if len(node.Parents) > 0 {
			parent = node.Parents[len(node.Parents)-1]
		}
		err = sqlitex.Execute(conn,
			"INSERT OR REPLACE INTO collections (alias, title, parent) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{node.Alias, node.Title, parent}})
		if err != nil {
			return err
		}
	}
	for _, study := range inv.Studies {
		for _, field := range study.Fields() {
			value, _ := study.Get(field)
			err = sqlitex.Execute(conn,
				"INSERT OR REPLACE INTO studies (pid, field, value) VALUES (?, ?, ?)",
				&sqlitex.ExecOptions{Args: []any{study.PID(), field, value}})
			if err != nil {
				return err
			}
		}
	}
	slog.Debug(fmt.Sprintf("Saved %d studies to %s", len(inv.Studies), path))
	return nil
}
