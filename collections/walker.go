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

// This package walks Dataverse collection trees, listing sub-collections and
// gathering the flattened metadata of the studies they contain.
package collections

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/dvutils/dvutils/dataverse"
	"github.com/dvutils/dvutils/metadata"
)

// A Source provides the collection listings and study documents a Walker
// reads. *dataverse.Client is a Source.
type Source interface {
	Contents(ctx context.Context, collection string) ([]dataverse.ContentItem, error)
	CollectionAlias(ctx context.Context, id int64) (string, error)
	Study(ctx context.Context, pid string) ([]byte, error)
}

// A sub-collection found during a walk
type Node struct {
	Id    int64  `json:"id"`
	Alias string `json:"alias"`
	Title string `json:"title"`
	// aliases of the collections above this one, from the walk's root down
	Parents []string `json:"parents"`
}

// A Walker traverses a collection tree depth-first. Walks are sequential:
// each request completes before the next is issued.
type Walker struct {
	Source Source
	// short name or numeric ID of the default root collection
	Root string
}

// creates a walker reading from the given source, rooted at the given
// collection
func NewWalker(source Source, root string) *Walker {
	return &Walker{Source: source, Root: root}
}

func (w Walker) root(node string) string {
	if node == "" {
		return w.Root
	}
	return node
}

// Returns every collection below the given one (the walker's root if node is
// empty). The direct children of a collection are listed before their own
// descendants, and each call returns a new slice. A child whose short name
// can't be looked up aborts the walk with a *WalkError.
func (w Walker) Collections(ctx context.Context, node string) ([]Node, error) {
	return w.collections(ctx, w.root(node), nil)
}

func (w Walker) collections(ctx context.Context, node string, parents []string) ([]Node, error) {
	slog.Debug(fmt.Sprintf("Listing collection %s", node))
	items, err := w.Source.Contents(ctx, node)
	if err != nil {
		return nil, &WalkError{Collection: node, Parents: parents, Err: err}
	}

	chain := append(slices.Clone(parents), node)
	children := []Node{}
	for _, item := range items {
		if item.Type != dataverse.CollectionType {
			continue
		}
		alias, err := w.Source.CollectionAlias(ctx, item.Id)
		if err != nil {
			slog.Error(fmt.Sprintf("Can't look up short name of collection %d in %s: %s",
				item.Id, node, err))
			return nil, &WalkError{
				Collection: strconv.FormatInt(item.Id, 10),
				Parents:    chain,
				Err:        err,
			}
		}
		children = append(children, Node{
			Id:      item.Id,
			Alias:   alias,
			Title:   item.Title,
			Parents: chain,
		})
	}

	result := slices.Clone(children)
	for _, child := range children {
		descendants, err := w.collections(ctx, child.Alias, chain)
		if err != nil {
			return nil, err
		}
		result = append(result, descendants...)
	}
	return result, nil
}

// Returns the persistent IDs of the studies directly inside the given
// collection, in listing order.
func (w Walker) StudyIDs(ctx context.Context, collection string) ([]string, error) {
	items, err := w.Source.Contents(ctx, collection)
	if err != nil {
		return nil, &WalkError{Collection: collection, Err: err}
	}
	pids := []string{}
	for _, item := range items {
		if item.Type == dataverse.StudyType {
			pids = append(pids, item.PID())
		}
	}
	return pids, nil
}

// Returns the flattened metadata of the studies directly inside the given
// collection, each decorated with its persistent ID.
func (w Walker) Listing(ctx context.Context, collection string) ([]*metadata.Study, error) {
	pids, err := w.StudyIDs(ctx, collection)
	if err != nil {
		return nil, err
	}
	studies := make([]*metadata.Study, 0, len(pids))
	for _, pid := range pids {
		study, err := w.Study(ctx, pid)
		if err != nil {
			return nil, err
		}
		studies = append(studies, study)
	}
	return studies, nil
}

// fetches and flattens a single study
func (w Walker) Study(ctx context.Context, pid string) (*metadata.Study, error) {
	slog.Debug(fmt.Sprintf("Reading study %s", pid))
	raw, err := w.Source.Study(ctx, pid)
	if err != nil {
		return nil, err
	}
	return metadata.NewStudy(raw, metadata.WithPID(pid))
}

// Returns the studies of the given collection (the walker's root if empty)
// followed by those of every collection below it, in walk order.
func (w Walker) Studies(ctx context.Context, root string) ([]*metadata.Study, error) {
	root = w.root(root)
	studies, err := w.Listing(ctx, root)
	if err != nil {
		return nil, err
	}
	nodes, err := w.Collections(ctx, root)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		listing, err := w.Listing(ctx, node.Alias)
		if err != nil {
			return nil, err
		}
		studies = append(studies, listing...)
	}
	return studies, nil
}
