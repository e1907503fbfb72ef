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

package collections

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// A DraftStore deletes draft studies. *dataverse.Client is a DraftStore.
type DraftStore interface {
	DeleteDraft(ctx context.Context, pid string) error
	StorageSize(ctx context.Context, pid string) (string, error)
}

// the outcome of deleting one draft
type Deletion struct {
	PID string
	// bytes stored by the study before deletion (0 if unknown)
	Size int64
	// true if the draft was deleted
	Deleted bool
	// why the draft wasn't deleted, if it wasn't
	Err error
}

// A Deleter removes the draft versions of studies, pausing periodically so as
// not to overload the server.
type Deleter struct {
	Store DraftStore
	// number of deletions between pauses (no pauses if non-positive)
	Batch int
	Pause time.Duration
	// if set, called before each deletion; returning false skips the study
	Confirm func(pid string) bool
}

// Deletes the drafts of the given studies in order. A failure to delete one
// study is recorded in its Deletion and doesn't stop the others.
func (d Deleter) Delete(ctx context.Context, pids []string) []Deletion {
	deletions := make([]Deletion, 0, len(pids))
	for i, pid := range pids {
		if i > 0 && d.Batch > 0 && i%d.Batch == 0 && d.Pause > 0 {
			select {
			case <-ctx.Done():
				return deletions
			case <-time.After(d.Pause):
			}
		}
		deletion := Deletion{PID: pid}
		if d.Confirm != nil && !d.Confirm(pid) {
			deletions = append(deletions, deletion)
			continue
		}
		if message, err := d.Store.StorageSize(ctx, pid); err == nil {
			deletion.Size, _ = ParseStorageSize(message)
		}
		if err := d.Store.DeleteDraft(ctx, pid); err != nil {
			slog.Error(fmt.Sprintf("Failed to delete %s: %s", pid, err))
			deletion.Err = err
		} else {
			slog.Info(fmt.Sprintf("Deleted %s", pid))
			deletion.Deleted = true
		}
		deletions = append(deletions, deletion)
	}
	return deletions
}

// Extracts the number of bytes from a storage size message like "Total size
// of the files stored in this dataset: 1,234 bytes".
func ParseStorageSize(message string) (int64, error) {
	_, size, found := strings.Cut(message, ": ")
	if !found {
		return 0, fmt.Errorf("Unrecognized storage size: %s", message)
	}
	size = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(size), "bytes"))
	return strconv.ParseInt(strings.ReplaceAll(size, ",", ""), 10, 64)
}
