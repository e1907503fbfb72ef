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

// This package lists the files of every version of a Dataverse study, and
// exports the current version's files as a Frictionless data package.
package manifest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/frictionlessdata/datapackage-go/datapackage"

	"github.com/dvutils/dvutils/dataverse"
	"github.com/dvutils/dvutils/frictionless"
	"github.com/dvutils/dvutils/metadata"
)

// the columns of a delimited file listing
var Headers = []string{"file", "description", "pid_url", "download_url", "version", "state"}

// FileInfo describes one file of one version of a study.
type FileInfo struct {
	// path of the file within the study (folder and original name)
	File        string `json:"file"`
	Description string `json:"description"`
	// landing page of the file
	PIDURL string `json:"pid_url"`
	// download link for the file's original format
	DownloadURL string `json:"download_url"`
	Version     string `json:"version"`
	State       string `json:"state"`
}

func (f FileInfo) row() []string {
	return []string{f.File, f.Description, f.PIDURL, f.DownloadURL, f.Version, f.State}
}

// A Manifest holds the versions of a study, newest first.
type Manifest struct {
	// base URL of the installation holding the study
	URL      string
	PID      string
	Versions []metadata.Version
}

// Retrieves the versions of a study. Drafts are only visible to clients with
// an API key.
func Fetch(ctx context.Context, client *dataverse.Client, pid string) (*Manifest, error) {
	raw, err := client.StudyVersions(ctx, pid)
	if err != nil {
		return nil, err
	}
	versions, err := metadata.Versions(raw, pid)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, &NoVersionsError{PID: pid}
	}
	slog.Debug(fmt.Sprintf("Found %d versions of %s", len(versions), pid))
	return &Manifest{URL: client.URL, PID: pid, Versions: versions}, nil
}

// returns the number (or state) of the study's most recent version
func (m Manifest) Current() string {
	if len(m.Versions) == 0 {
		return ""
	}
	return m.Versions[0].Number
}

// returns the version numbers of the study, newest first
func (m Manifest) VersionList() []string {
	list := make([]string, len(m.Versions))
	for i, v := range m.Versions {
		list[i] = v.Number
	}
	return list
}

// returns the landing page of a file: its resolved persistent ID, or the
// installation's file page
func (m Manifest) pidURL(file metadata.FileEntry) string {
	if protocol, id, found := strings.Cut(file.PID, ":"); found {
		switch protocol {
		case "doi":
			return "https://doi.org/" + id
		case "hdl":
			return "https://hdl.handle.net/" + id
		}
	}
	return fmt.Sprintf("%s/file.xhtml?fileId=%d", m.URL, file.ID)
}

func (m Manifest) fileInfo(file metadata.FileEntry, version metadata.Version) FileInfo {
	return FileInfo{
		File:        path.Join(file.DirectoryLabel, file.Filename),
		Description: strings.TrimSpace(file.Description),
		PIDURL:      m.pidURL(file),
		DownloadURL: fmt.Sprintf("%s/api/access/datafile/%d?format=original", m.URL, file.ID),
		Version:     version.Number,
		State:       version.State,
	}
}

// returns the files of the current version, or of all versions (newest
// first) if all is true
func (m Manifest) Files(all bool) []FileInfo {
	var infos []FileInfo
	for i, version := range m.Versions {
		if i > 0 && !all {
			break
		}
		for _, file := range version.Files {
			infos = append(infos, m.fileInfo(file, version))
		}
	}
	return infos
}

// the JSON layout of a manifest, keyed by version
type jsonManifest struct {
	PID            string                `json:"pid"`
	CurrentVersion string                `json:"current_version"`
	VersionList    []string              `json:"version_list"`
	Headers        []string              `json:"headers"`
	Files          map[string][]FileInfo `json:"files"`
}

// Writes the file listing in the given format ("tsv", "csv" or "json").
// Delimited listings hold the current version's files unless all is true;
// JSON listings always hold every version.
func (m Manifest) Write(w io.Writer, format string, all bool) error {
	switch strings.ToLower(format) {
	case "tsv":
		return m.writeDelimited(w, '\t', all)
	case "csv":
		return m.writeDelimited(w, ',', all)
	case "json":
		doc := jsonManifest{
			PID:            m.PID,
			CurrentVersion: m.Current(),
			VersionList:    m.VersionList(),
			Headers:        Headers,
			Files:          make(map[string][]FileInfo),
		}
		for _, version := range m.Versions {
			infos := []FileInfo{}
			for _, file := range version.Files {
				infos = append(infos, m.fileInfo(file, version))
			}
			doc.Files[version.Number] = infos
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return &UnsupportedFormatError{Format: format}
	}
}

func (m Manifest) writeDelimited(w io.Writer, delimiter rune, all bool) error {
	writer := csv.NewWriter(w)
	writer.Comma = delimiter
	if err := writer.Write(Headers); err != nil {
		return err
	}
	for _, info := range m.Files(all) {
		if err := writer.Write(info.row()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// returns a Frictionless description of the current version's files
func (m Manifest) Describe() frictionless.DataPackage {
	pkg := frictionless.DataPackage{
		Name:      frictionless.Name(m.PID),
		Title:     m.PID,
		Created:   time.Now().Format(time.RFC3339),
		Profile:   "data-package",
		Keywords:  []string{"dataverse", "manifest"},
		Resources: []frictionless.DataResource{},
		Sources: []frictionless.DataSource{
			{Title: m.PID, Path: fmt.Sprintf("%s/dataset.xhtml?persistentId=%s", m.URL, m.PID)},
		},
	}
	if len(m.Versions) > 0 {
		pkg.Version = m.Versions[0].Number
		for _, file := range m.Versions[0].Files {
			res := frictionless.NewDataResource(file)
			res.Sources = []frictionless.DataSource{{Title: file.Filename, Path: m.pidURL(file)}}
			pkg.Resources = append(pkg.Resources, res)
		}
	}
	return pkg
}

// creates a validated data package for the current version's files
func (m Manifest) DataPackage() (*datapackage.Package, error) {
	descriptor, err := m.Describe().Descriptor()
	if err != nil {
		return nil, err
	}
	return datapackage.New(descriptor, ".")
}

// writes the data package descriptor for the current version's files to the
// given path
func (m Manifest) SaveDataPackage(filename string) error {
	pkg, err := m.DataPackage()
	if err != nil {
		return fmt.Errorf("creating data package: %s", err.Error())
	}
	return pkg.SaveDescriptor(filename)
}
