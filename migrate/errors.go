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

package migrate

import (
	"fmt"
)

// indicates that a study has no version that could be migrated (e.g. it has
// been deaccessioned)
type EmptyStudyError struct {
	PID string
}

func (e EmptyStudyError) Error() string {
	return fmt.Sprintf("Study %s has no accessible version to migrate", e.PID)
}

// indicates that a downloaded file doesn't match the checksum recorded for it
type ChecksumMismatchError struct {
	File     string
	Type     string
	Expected string
	Actual   string
}

func (e ChecksumMismatchError) Error() string {
	return fmt.Sprintf("Checksum mismatch for %s: expected %s %s, got %s",
		e.File, e.Type, e.Expected, e.Actual)
}
