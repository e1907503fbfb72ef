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
	"fmt"
)

// A MetadataError indicates that a study document couldn't be parsed. This
// commonly means that the caller's API key doesn't permit reading restricted
// metadata, so the offending document is included for diagnosis.
type MetadataError struct {
	// the key that was missing or malformed, if known
	Key string
	// the underlying parse error
	Err error
	// the offending study document
	Raw []byte
}

func (e MetadataError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("Unable to parse study metadata. Do you need an API key?\n"+
			"'%s' key not found.\nOffending JSON: %s", e.Key, string(e.Raw))
	}
	return fmt.Sprintf("Unable to parse study metadata. Do you need an API key?\n"+
		"%s\nOffending JSON: %s", e.Err, string(e.Raw))
}

func (e MetadataError) Unwrap() error {
	return e.Err
}

// indicates that a required key is absent from a study document
type missingKeyError struct {
	Key string
}

func (e missingKeyError) Error() string {
	return fmt.Sprintf("'%s' key not found", e.Key)
}
