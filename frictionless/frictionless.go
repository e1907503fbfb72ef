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

package frictionless

import (
	"encoding/json"
	"path"
	"strconv"
	"strings"

	"github.com/dvutils/dvutils/metadata"
)

// A DataPackage describes the files of one study version as a Frictionless
// data package (https://specs.frictionlessdata.io/data-package/).
type DataPackage struct {
	// RFC 3339 creation time
	Created     string `json:"created,omitempty"`
	Description string `json:"description,omitempty"`
	Keywords    []string      `json:"keywords,omitempty"`
	Licenses    []DataLicense `json:"licenses,omitempty"`
	// lower case alphanumerics and "-._/" only (see Name)
	Name string `json:"name"`
	// "data-package" or a custom profile
	Profile   string         `json:"profile,omitempty"`
	Resources []DataResource `json:"resources"`
	// where the study lives
	Sources []DataSource `json:"sources,omitempty"`
	Title   string       `json:"title,omitempty"`
	// the study version number
	Version string `json:"version,omitempty"`
}

// returns the package as a generic JSON descriptor, suitable for
// datapackage.New
func (pkg DataPackage) Descriptor() (map[string]any, error) {
	data, err := json.Marshal(pkg)
	if err != nil {
		return nil, err
	}
	var descriptor map[string]any
	err = json.Unmarshal(data, &descriptor)
	return descriptor, err
}

// A DataResource describes one file of a study
// (https://specs.frictionlessdata.io/data-resource/).
type DataResource struct {
	// size of the original file
	Bytes       int64  `json:"bytes"`
	Description string `json:"description,omitempty"`
	// lower case file extension, e.g. "csv"
	Format string `json:"format"`
	// checksum, prefixed with "<algorithm>:" unless it's MD5 (see Hash)
	Hash string `json:"hash"`
	// the file's persistent ID, or its database ID if it has none
	Id        string        `json:"id"`
	Licenses  []DataLicense `json:"licenses,omitempty"`
	MediaType string        `json:"mediatype,omitempty"`
	// the file name without its extension (see Name)
	Name string `json:"name"`
	// folder and file name within the study
	Path    string       `json:"path"`
	Sources []DataSource `json:"sources,omitempty"`
	// the file's label, if it differs from its name
	Title string `json:"title,omitempty"`
}

// creates a data resource for a file in a study version
func NewDataResource(file metadata.FileEntry) DataResource {
	ext := path.Ext(file.Filename)
	id := file.PID
	if id == "" {
		id = strconv.FormatInt(file.ID, 10)
	}
	res := DataResource{
		Bytes:       file.SizeBytes,
		Description: file.Description,
		Format:      strings.TrimPrefix(strings.ToLower(ext), "."),
		Hash:        Hash(file.ChecksumType, file.ChecksumDigest),
		Id:          id,
		MediaType:   file.ContentType,
		Name:        Name(strings.TrimSuffix(file.Filename, ext)),
		Path:        path.Join(file.DirectoryLabel, file.Filename),
	}
	if file.Label != file.Filename {
		res.Title = file.Label
	}
	return res
}

// call this to get a string containing the name of the hashing algorithm used
// by the receiver
func (res DataResource) HashAlgorithm() string {
	colon := strings.Index(res.Hash, ":")
	if colon != -1 {
		return res.Hash[:colon]
	} else {
		return "md5"
	}
}

// formats a checksum reported by Dataverse ("MD5", "SHA-1", ...) as a
// resource hash
func Hash(checksumType, digest string) string {
	if digest == "" {
		return ""
	}
	algorithm := strings.ToLower(strings.ReplaceAll(checksumType, "-", ""))
	if algorithm == "" || algorithm == "md5" {
		return digest
	}
	return algorithm + ":" + digest
}

// converts a string to a valid package or resource name (lower case
// alphanumerics, '-', '_', '.' and '/')
func Name(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case 'a' <= r && r <= 'z', '0' <= r && r <= '9', r == '-', r == '_', r == '.', r == '/':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// where a package or resource comes from
type DataSource struct {
	Email string `json:"email,omitempty"`
	// URL of the source
	Path  string `json:"path,omitempty"`
	Title string `json:"title"`
}

// a licence under which a package or resource is available
type DataLicense struct {
	// abbreviated name, e.g. "CC0-1.0"
	Name string `json:"name"`
	// URL of the licence text
	Path  string `json:"path,omitempty"`
	Title string `json:"title,omitempty"`
}
