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

// This package prepares study metadata for upload to Dataverse installations
// of different versions and migrates studies (metadata and files) between
// installations.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dvutils/dvutils/checksum"
	"github.com/dvutils/dvutils/dataverse"
	"github.com/dvutils/dvutils/metadata"
)

// A Migrator copies studies from a source installation to a target one.
type Migrator struct {
	Source *dataverse.Client
	Target *dataverse.Client
	// directory for downloaded files (the system default if empty)
	TempDir string
	// interval between checks of a study's lock status
	PollInterval time.Duration
	// maximum number of lock checks before giving up
	MaxPolls int
}

// describes a file copied during a migration
type FileResult struct {
	Source metadata.FileEntry
	Added  dataverse.AddedFile
	// hex digest of the downloaded file, verified against the source
	Digest string
}

// describes a completed migration
type Result struct {
	Id        uuid.UUID
	SourcePID string
	TargetPID string
	// encoded version of the target server
	TargetVersion float64
	Files         []FileResult
}

// creates a migrator between the given installations
func NewMigrator(source, target *dataverse.Client) *Migrator {
	return &Migrator{
		Source:       source,
		Target:       target,
		PollInterval: 2 * time.Second,
		MaxPolls:     150,
	}
}

// Fetches the given study from the source and builds a payload for the
// target's version.
func (m Migrator) Prepare(ctx context.Context, pid string) (*metadata.Study, Payload, float64, error) {
	raw, err := m.Source.Study(ctx, pid)
	if err != nil {
		return nil, Payload{}, 0, err
	}
	study, err := metadata.NewStudy(raw, metadata.WithPID(pid))
	if err != nil {
		return nil, Payload{}, 0, err
	}
	payload, err := NewPayload(study)
	if err != nil {
		return nil, Payload{}, 0, err
	}
	target, err := m.Target.Version(ctx)
	if err != nil {
		return nil, Payload{}, 0, err
	}
	return study, Rewrite(payload, target), target, nil
}

// Creates a copy of the given study in the given target collection. If
// withFiles is set, the study's files are copied as well.
func (m Migrator) Create(ctx context.Context, pid, collection string, withFiles bool) (Result, error) {
	result := Result{Id: uuid.New(), SourcePID: pid}
	study, payload, target, err := m.Prepare(ctx, pid)
	if err != nil {
		return result, err
	}
	result.TargetVersion = target
	body, err := json.Marshal(payload)
	if err != nil {
		return result, err
	}
	result.TargetPID, err = m.Target.CreateStudy(ctx, collection, body)
	if err != nil {
		return result, err
	}
	slog.Info(fmt.Sprintf("Migration %s: created %s from %s in %s", result.Id,
		result.TargetPID, pid, collection))
	if withFiles {
		result.Files, err = m.CopyFiles(ctx, study, result.TargetPID)
	}
	return result, err
}

// Replaces the metadata of the draft of targetPID with that of the given
// study. If withFiles is set, the study's files are added to the draft.
func (m Migrator) Replace(ctx context.Context, pid, targetPID string, withFiles bool) (Result, error) {
	result := Result{Id: uuid.New(), SourcePID: pid, TargetPID: targetPID}
	study, payload, target, err := m.Prepare(ctx, pid)
	if err != nil {
		return result, err
	}
	result.TargetVersion = target
	blocks, err := json.Marshal(payload.MetadataBlocks)
	if err != nil {
		return result, err
	}
	if err := m.Target.UpdateDraft(ctx, targetPID, blocks); err != nil {
		return result, err
	}
	slog.Info(fmt.Sprintf("Migration %s: replaced metadata of %s with %s", result.Id,
		targetPID, pid))
	if withFiles {
		result.Files, err = m.CopyFiles(ctx, study, targetPID)
	}
	return result, err
}

// Copies the files of the given study's latest version to the target study,
// in their original formats. Each file is downloaded, checked against its
// recorded checksum and uploaded; the first failure stops the copy.
func (m Migrator) CopyFiles(ctx context.Context, study *metadata.Study,
	targetPID string) ([]FileResult, error) {
	files, err := study.Files()
	if err != nil {
		return nil, err
	}
	results := make([]FileResult, 0, len(files))
	for _, file := range files {
		result, err := m.copyFile(ctx, file, targetPID)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (m Migrator) copyFile(ctx context.Context, file metadata.FileEntry,
	targetPID string) (FileResult, error) {
	result := FileResult{Source: file}
	path, digest, err := m.download(ctx, file)
	if path != "" {
		defer os.Remove(path)
	}
	if err != nil {
		return result, err
	}
	result.Digest = digest

	if err := m.Target.WaitUnlocked(ctx, targetPID, m.PollInterval, m.MaxPolls); err != nil {
		return result, err
	}
	result.Added, err = m.Target.AddFile(ctx, targetPID, path, contentType(file),
		dataverse.FileMetadata{
			Label:          file.Filename,
			Description:    file.Description,
			DirectoryLabel: file.DirectoryLabel,
			Categories:     file.Categories,
			Restrict:       file.Restricted,
		})
	if err != nil {
		return result, err
	}
	slog.Debug(fmt.Sprintf("Copied %s (%d) to %s as %d", file.Filename, file.ID,
		targetPID, result.Added.Id))
	return result, nil
}

// downloads a file to a temporary location, returning its path and verified
// digest
func (m Migrator) download(ctx context.Context, file metadata.FileEntry) (string, string, error) {
	hash, err := checksum.New(file.ChecksumType)
	if err != nil {
		return "", "", err
	}
	dir := m.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "dvutils-"+uuid.NewString())
	f, err := os.Create(path)
	if err != nil {
		return "", "", err
	}
	_, err = m.Source.DownloadFile(ctx, file.ID, io.MultiWriter(f, hash))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return path, "", err
	}
	digest := fmt.Sprintf("%x", hash.Sum(nil))
	if !checksum.Equal(digest, file.ChecksumDigest) {
		slog.Error(fmt.Sprintf("Checksum mismatch in %s", file.Filename))
		return path, digest, &ChecksumMismatchError{
			File:     file.Filename,
			Type:     file.ChecksumType,
			Expected: file.ChecksumDigest,
			Actual:   digest,
		}
	}
	return path, digest, nil
}

// the MIME type under which a file's original is uploaded
func contentType(file metadata.FileEntry) string {
	if file.Tabular || file.ContentType == "" {
		if t := mime.TypeByExtension(filepath.Ext(file.Filename)); t != "" {
			return t
		}
		return "application/octet-stream"
	}
	return file.ContentType
}
