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
	"fmt"
	"strings"
)

// A WalkError indicates that a collection tree couldn't be walked in full.
// It identifies the collection at which the walk stopped and the chain of
// collections leading to it, and wraps the underlying cause.
type WalkError struct {
	// alias or numeric ID of the collection that couldn't be read
	Collection string
	// aliases of the collections above it, from the root down
	Parents []string
	Err     error
}

func (e WalkError) Error() string {
	if len(e.Parents) == 0 {
		return fmt.Sprintf("Can't walk collection '%s': %s", e.Collection, e.Err)
	}
	return fmt.Sprintf("Can't walk collection '%s' (in %s): %s", e.Collection,
		strings.Join(e.Parents, " > "), e.Err)
}

func (e WalkError) Unwrap() error {
	return e.Err
}
