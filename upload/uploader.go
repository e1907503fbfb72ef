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

package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dvutils/dvutils/checksum"
	"github.com/dvutils/dvutils/dataverse"
)

// indicates that the server's checksum of an uploaded file doesn't match the
// local file's
type ChecksumMismatchError struct {
	File     string
	Type     string
	Expected string
	Actual   string
}

func (e ChecksumMismatchError) Error() string {
	return fmt.Sprintf("Checksum mismatch after uploading %s: local %s %s, server %s",
		e.File, e.Type, e.Expected, e.Actual)
}

// the outcome of uploading one file
type Result struct {
	Entry Entry
	Added dataverse.AddedFile
	// folder the file was placed in
	DirectoryLabel string
}

// An Uploader adds local files to a study.
type Uploader struct {
	Client *dataverse.Client
	// prefix removed from local directories to give study folders
	Trim string
	// restrict access to the uploaded files
	Restrict bool
	// interval between checks of the study's lock status
	PollInterval time.Duration
	// maximum number of lock checks before giving up
	MaxPolls int
}

// creates an uploader for the given installation
func NewUploader(client *dataverse.Client) *Uploader {
	return &Uploader{
		Client:       client,
		PollInterval: 10 * time.Second,
		MaxPolls:     180,
	}
}

// Uploads the given entries to the study with the given persistent ID in
// order, waiting for each file's ingest to finish before sending the next.
// The first failure stops the upload; results for files already uploaded are
// returned with it.
func (u Uploader) Upload(ctx context.Context, pid string, entries []Entry) ([]Result, error) {
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		result, err := u.uploadFile(ctx, pid, entry)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (u Uploader) uploadFile(ctx context.Context, pid string, entry Entry) (Result, error) {
	result := Result{Entry: entry, DirectoryLabel: entry.Path}
	if result.DirectoryLabel == "" {
		result.DirectoryLabel = DirectoryLabel(entry.File, u.Trim)
	}
	mimeType := entry.MimeType
	if mimeType == "" {
		mimeType = MimeType(entry.File)
	}

	if err := u.Client.WaitUnlocked(ctx, pid, u.PollInterval, u.MaxPolls); err != nil {
		return result, err
	}
	slog.Info(fmt.Sprintf("Uploading %s to %s", entry.File, pid))
	added, err := u.Client.AddFile(ctx, pid, entry.File, mimeType, dataverse.FileMetadata{
		Label:          filepath.Base(entry.File),
		Description:    entry.Description,
		DirectoryLabel: result.DirectoryLabel,
		Categories:     entry.Tags,
		Restrict:       u.Restrict,
	})
	if err != nil {
		return result, err
	}
	result.Added = added

	if added.Checksum.Value != "" {
		digest, err := checksum.File(entry.File, added.Checksum.Type)
		if err != nil {
			return result, err
		}
		if !checksum.Equal(digest, added.Checksum.Value) {
			slog.Error(fmt.Sprintf("Checksum mismatch in %s", entry.File))
			return result, &ChecksumMismatchError{
				File:     entry.File,
				Type:     added.Checksum.Type,
				Expected: digest,
				Actual:   added.Checksum.Value,
			}
		}
	}

	// ingest of tabular files locks the study until it finishes
	if err := u.Client.WaitUnlocked(ctx, pid, u.PollInterval, u.MaxPolls); err != nil {
		return result, err
	}
	return result, nil
}
