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

// This package replaces the terms of use (licence text) of published studies.
package terms

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dvutils/dvutils/dataverse"
)

// the earliest Dataverse version with the semantic metadata API
const MinVersion = 5.006

// A Store replaces terms of use. *dataverse.Client is a Store.
type Store interface {
	Version(ctx context.Context) (float64, error)
	ReplaceTerms(ctx context.Context, pid, terms string) error
	Republish(ctx context.Context, pid string) error
}

// indicates that a server is too old to replace terms of use
type UnsupportedServerError struct {
	Version float64
}

func (e UnsupportedServerError) Error() string {
	return fmt.Sprintf("Replacing terms of use requires Dataverse 5.6 or later (server is %.6f)",
		e.Version)
}

// indicates that the replacement text is empty
type EmptyTermsError struct{}

func (e EmptyTermsError) Error() string {
	return "The replacement terms of use are empty"
}

// the outcome of replacing one study's terms
type Replacement struct {
	PID         string
	Replaced    bool
	Republished bool
	// why the study wasn't updated (or republished), if it wasn't
	Err error
}

// A Replacer sets the terms of use of studies, optionally republishing each
// one as its current version. Republishing requires a superuser's key.
type Replacer struct {
	Store     Store
	Republish bool
}

// Replaces the terms of use of the given studies with the given text, which
// is stored as given (plain text or HTML). A failure for one study is
// recorded in its Replacement and doesn't stop the others; an unsupported
// server stops everything.
func (r Replacer) Replace(ctx context.Context, pids []string, text string) ([]Replacement, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &EmptyTermsError{}
	}
	version, err := r.Store.Version(ctx)
	if err != nil {
		return nil, err
	}
	if !dataverse.AtLeast(version, MinVersion) {
		return nil, &UnsupportedServerError{Version: version}
	}

	replacements := make([]Replacement, 0, len(pids))
	for _, pid := range pids {
		replacement := Replacement{PID: pid}
		if err := r.Store.ReplaceTerms(ctx, pid, text); err != nil {
			slog.Error(fmt.Sprintf("Failed to replace the terms of %s: %s", pid, err))
			replacement.Err = err
			replacements = append(replacements, replacement)
			continue
		}
		replacement.Replaced = true
		slog.Info(fmt.Sprintf("Replaced the terms of %s", pid))
		if r.Republish {
			if err := r.Store.Republish(ctx, pid); err != nil {
				slog.Error(fmt.Sprintf("Failed to republish %s: %s", pid, err))
				replacement.Err = err
			} else {
				replacement.Republished = true
			}
		}
		replacements = append(replacements, replacement)
	}
	return replacements, nil
}
