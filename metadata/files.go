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
	"encoding/json"
	"fmt"
)

// A FileEntry describes one file of a study version.
type FileEntry struct {
	// the original name of the file (before any ingest)
	Filename string `json:"filename"`
	// the file's label, which may differ from its name for ingested files
	Label       string `json:"file_label"`
	Description string `json:"description"`
	// the size of the original file in bytes
	SizeBytes int64 `json:"filesize_bytes"`
	// checksum algorithm, as reported by the server (e.g. "MD5", "SHA-1")
	ChecksumType   string `json:"chk_type"`
	ChecksumDigest string `json:"chk_digest"`
	// database ID
	ID int64 `json:"id"`
	// file persistent ID, if the server mints them
	PID string `json:"pid,omitempty"`
	// true if the server ingested the file as tabular data
	Tabular bool `json:"has_tab_file"`
	// persistent ID of the study the file belongs to
	StudyPID       string   `json:"study_pid"`
	DirectoryLabel string   `json:"directory_label,omitempty"`
	ContentType    string   `json:"content_type,omitempty"`
	Restricted     bool     `json:"restricted"`
	Categories     []string `json:"categories,omitempty"`
}

// the JSON layout of a file in a study version
type rawFile struct {
	Label          string   `json:"label"`
	Description    string   `json:"description"`
	Restricted     bool     `json:"restricted"`
	DirectoryLabel string   `json:"directoryLabel"`
	Categories     []string `json:"categories"`
	DataFile       *struct {
		Id               *int64 `json:"id"`
		PersistentId     string `json:"persistentId"`
		Filename         string `json:"filename"`
		ContentType      string `json:"contentType"`
		Filesize         int64  `json:"filesize"`
		Description      string `json:"description"`
		OriginalFileName string `json:"originalFileName"`
		OriginalFileSize *int64 `json:"originalFileSize"`
		TabularData      bool   `json:"tabularData"`
		Checksum         *struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"checksum"`
	} `json:"dataFile"`
}

// parses the "files" array of a study version
func parseFiles(data json.RawMessage, studyPID string) ([]FileEntry, error) {
	entries := []FileEntry{}
	if isNull(data) {
		return entries, nil
	}
	var files []rawFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, err
	}
	for i, file := range files {
		entry, err := file.entry(studyPID)
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (f rawFile) entry(studyPID string) (FileEntry, error) {
	df := f.DataFile
	if df == nil {
		return FileEntry{}, &missingKeyError{Key: "dataFile"}
	}
	if df.Id == nil {
		return FileEntry{}, &missingKeyError{Key: "id"}
	}
	entry := FileEntry{
		Filename:       df.OriginalFileName,
		Label:          f.Label,
		Description:    f.Description,
		SizeBytes:      df.Filesize,
		ID:             *df.Id,
		PID:            df.PersistentId,
		Tabular:        df.TabularData,
		StudyPID:       studyPID,
		DirectoryLabel: f.DirectoryLabel,
		ContentType:    df.ContentType,
		Restricted:     f.Restricted,
		Categories:     f.Categories,
	}
	if entry.Filename == "" {
		entry.Filename = df.Filename
	}
	if df.OriginalFileSize != nil {
		entry.SizeBytes = *df.OriginalFileSize
	}
	if entry.Description == "" {
		entry.Description = df.Description
	}
	if df.Checksum != nil {
		entry.ChecksumType = df.Checksum.Type
		entry.ChecksumDigest = df.Checksum.Value
	}
	return entry, nil
}

// A Version is one version of a study along with its files, as listed by
// /api/datasets/:persistentId/versions.
type Version struct {
	// "major.minor" for released versions, otherwise the version state
	Number string
	State  string
	Files  []FileEntry
}

// parses a study's version listing (with its "status"/"data" envelope, or
// the bare array of versions) into versions, newest first as the server
// lists them
func Versions(raw []byte, studyPID string) ([]Version, error) {
	data := json.RawMessage(raw)
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Data == nil {
			return nil, &MetadataError{Key: "data", Err: &missingKeyError{Key: "data"}, Raw: raw}
		}
		data = env.Data
	}
	var versions []struct {
		VersionNumber      *int            `json:"versionNumber"`
		VersionMinorNumber *int            `json:"versionMinorNumber"`
		VersionState       string          `json:"versionState"`
		Files              json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(data, &versions); err != nil {
		return nil, &MetadataError{Err: err, Raw: raw}
	}
	result := make([]Version, 0, len(versions))
	for _, v := range versions {
		version := Version{State: v.VersionState, Number: v.VersionState}
		if v.VersionNumber != nil && v.VersionMinorNumber != nil {
			version.Number = fmt.Sprintf("%d.%d", *v.VersionNumber, *v.VersionMinorNumber)
		}
		files, err := parseFiles(v.Files, studyPID)
		if err != nil {
			return nil, &MetadataError{Err: err, Raw: raw}
		}
		version.Files = files
		result = append(result, version)
	}
	return result, nil
}
