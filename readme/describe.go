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
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dvutils/dvutils/dataverse"
	"github.com/dvutils/dvutils/dictionary"
	"github.com/dvutils/dvutils/metadata"
)

// Returns a describer that reads files from the given local directory, where
// they're found under their folder (directory label) or directly.
func LocalFiles(dir string) Describer {
	return func(ctx context.Context, file metadata.FileEntry) (*dictionary.Dictionary, error) {
		candidates := []string{
			filepath.Join(dir, file.DirectoryLabel, file.Filename),
			filepath.Join(dir, file.Filename),
		}
		var err error
		for _, path := range candidates {
			var dict *dictionary.Dictionary
			if dict, err = dictionary.Describe(path); err == nil {
				return dict, nil
			}
		}
		return nil, err
	}
}

// Returns a describer that downloads the originals of describable files from
// the given installation into a temporary directory (the system default if
// tempDir is empty).
func Downloads(client *dataverse.Client, tempDir string) Describer {
	return func(ctx context.Context, file metadata.FileEntry) (*dictionary.Dictionary, error) {
		if !dictionary.Supported(file.Filename) {
			return nil, &dictionary.UnsupportedFormatError{Path: file.Filename}
		}
		dir := tempDir
		if dir == "" {
			dir = os.TempDir()
		}
		path := filepath.Join(dir, uuid.NewString()+filepath.Ext(file.Filename))
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		defer os.Remove(path)
		_, err = client.DownloadFile(ctx, file.ID, f)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return nil, err
		}
		return dictionary.Describe(path)
	}
}
