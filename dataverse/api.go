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

package dataverse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// an entry in the listing of a collection's contents
type ContentItem struct {
	// "dataverse" for a sub-collection, "dataset" for a study
	Type string `json:"type"`
	// numeric identifier
	Id int64 `json:"id"`
	// title (collections only)
	Title string `json:"title,omitempty"`
	// components of a study's persistent identifier
	Protocol   string `json:"protocol,omitempty"`
	Authority  string `json:"authority,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	// resolvable URL of the study's persistent identifier
	PersistentURL string `json:"persistentUrl,omitempty"`
}

// content item types
const (
	CollectionType = "dataverse"
	StudyType      = "dataset"
)

// returns the persistent identifier (protocol:authority/identifier) of a study
// entry
func (item ContentItem) PID() string {
	return fmt.Sprintf("%s:%s/%s", item.Protocol, item.Authority, item.Identifier)
}

// fetches the version string of the server, e.g. "5.13" or "v5.13.9-SP"
func (c Client) VersionString(ctx context.Context) (string, error) {
	var info struct {
		Version string `json:"version"`
	}
	if err := c.getData(ctx, "api/info/version", nil, &info); err != nil {
		return "", err
	}
	return info.Version, nil
}

// fetches the server's version, encoded by EncodeVersion
func (c Client) Version(ctx context.Context) (float64, error) {
	version, err := c.VersionString(ctx)
	if err != nil {
		return 0, err
	}
	return EncodeVersion(version)
}

// lists the direct contents (sub-collections and studies) of the collection
// with the given short name or numeric ID
func (c Client) Contents(ctx context.Context, collection string) ([]ContentItem, error) {
	var items []ContentItem
	err := c.getData(ctx, fmt.Sprintf("api/dataverses/%s/contents", collection), nil, &items)
	return items, err
}

// fetches the short name (alias) of the collection with the given ID
func (c Client) CollectionAlias(ctx context.Context, id int64) (string, error) {
	var collection struct {
		Alias string `json:"alias"`
	}
	err := c.getData(ctx, fmt.Sprintf("api/dataverses/%d", id), nil, &collection)
	if err == nil && collection.Alias == "" {
		err = &InvalidResponseError{
			URL:     fmt.Sprintf("api/dataverses/%d", id),
			Message: "no alias in collection record",
		}
	}
	return collection.Alias, err
}

// fetches the raw JSON document (including the response envelope) describing
// the study with the given persistent ID
func (c Client) Study(ctx context.Context, pid string) ([]byte, error) {
	return c.Get(ctx, "api/datasets/:persistentId", url.Values{"persistentId": {pid}})
}

// fetches the raw JSON document describing all versions of the study with the
// given persistent ID
func (c Client) StudyVersions(ctx context.Context, pid string) ([]byte, error) {
	return c.Get(ctx, "api/datasets/:persistentId/versions", url.Values{"persistentId": {pid}})
}

// creates a study in the given collection from the given upload payload,
// returning the new study's persistent ID
func (c Client) CreateStudy(ctx context.Context, collection string, payload []byte) (string, error) {
	resource := fmt.Sprintf("api/dataverses/%s/datasets", collection)
	body, err := c.Post(ctx, resource, nil, payload)
	if err != nil {
		return "", err
	}
	d, err := data(resource, body)
	if err != nil {
		return "", err
	}
	var created struct {
		Id           int64  `json:"id"`
		PersistentId string `json:"persistentId"`
	}
	if err := json.Unmarshal(d, &created); err != nil {
		return "", &InvalidResponseError{URL: resource, Message: err.Error()}
	}
	return created.PersistentId, nil
}

// replaces the metadata of the draft version of the given study
func (c Client) UpdateDraft(ctx context.Context, pid string, metadataBlocks []byte) error {
	payload, err := json.Marshal(map[string]json.RawMessage{"metadataBlocks": metadataBlocks})
	if err != nil {
		return err
	}
	_, err = c.Put(ctx, "api/datasets/:persistentId/versions/:draft",
		url.Values{"persistentId": {pid}}, payload)
	return err
}

// deletes the draft version of the given study (for a study that has never been
// published, this deletes the study)
func (c Client) DeleteDraft(ctx context.Context, pid string) error {
	_, err := c.Delete(ctx, "api/datasets/:persistentId/versions/:draft",
		url.Values{"persistentId": {pid}})
	return err
}

// returns the server's description of the storage used by the given study
func (c Client) StorageSize(ctx context.Context, pid string) (string, error) {
	var size struct {
		Message string `json:"message"`
	}
	err := c.getData(ctx, "api/datasets/:persistentId/storagesize",
		url.Values{"persistentId": {pid}}, &size)
	return size.Message, err
}

// returns true if the given study is locked (e.g. while ingesting a file)
func (c Client) Locked(ctx context.Context, pid string) (bool, error) {
	var locks []json.RawMessage
	err := c.getData(ctx, "api/datasets/:persistentId/locks",
		url.Values{"persistentId": {pid}}, &locks)
	return len(locks) > 0, err
}

// polls the given study's locks at the given interval until it's unlocked,
// giving up with a LockedError after maxPolls checks
func (c Client) WaitUnlocked(ctx context.Context, pid string, interval time.Duration,
	maxPolls int) error {
	for i := 0; i < max(maxPolls, 1); i++ {
		locked, err := c.Locked(ctx, pid)
		if err != nil || !locked {
			return err
		}
		slog.Debug(fmt.Sprintf("Study %s is locked; waiting", pid))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return &LockedError{PID: pid}
}

// the JSON-LD context of Dataverse's core terms
const coreTermsContext = "https://dataverse.org/schema/core#"

// replaces the terms of use of the given study's draft (creating one if
// needed) through the semantic metadata API (Dataverse 5.6 and later)
func (c Client) ReplaceTerms(ctx context.Context, pid, terms string) error {
	payload, err := json.Marshal(map[string]any{
		"dvcore:termsOfUse": terms,
		"@context":          map[string]string{"dvcore": coreTermsContext},
	})
	if err != nil {
		return err
	}
	_, err = c.send(ctx, http.MethodPut, "api/datasets/:persistentId/metadata",
		url.Values{"persistentId": {pid}, "replace": {"true"}}, payload, "application/ld+json")
	return err
}

// publishes the given study's draft as its current version, without
// incrementing the version number (superusers only)
func (c Client) Republish(ctx context.Context, pid string) error {
	_, err := c.Post(ctx, "api/datasets/:persistentId/actions/:publish",
		url.Values{"persistentId": {pid}, "type": {"updatecurrent"}}, nil)
	return err
}

// downloads the file with the given ID in its original (pre-ingest) format
func (c Client) DownloadFile(ctx context.Context, id int64, w io.Writer) (int64, error) {
	return c.Download(ctx, fmt.Sprintf("api/access/datafile/%d", id),
		url.Values{"format": {"original"}}, w)
}

// file-level metadata sent along with an uploaded file
type FileMetadata struct {
	Label          string   `json:"label,omitempty"`
	Description    string   `json:"description,omitempty"`
	DirectoryLabel string   `json:"directoryLabel,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	Restrict       bool     `json:"restrict,omitempty"`
}

// describes a file that has been added to a study
type AddedFile struct {
	Id       int64  `json:"id"`
	Filename string `json:"filename"`
	Checksum struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"checksum"`
}

// uploads the file at the given path to the given study with the given
// metadata, streaming it as a multipart body
func (c Client) AddFile(ctx context.Context, pid, path, mimeType string,
	metadata FileMetadata) (AddedFile, error) {
	jsonData, err := json.Marshal(metadata)
	if err != nil {
		return AddedFile{}, err
	}
	filename := metadata.Label
	if filename == "" {
		filename = filepath.Base(path)
	}

	// the multipart body is rebuilt for every attempt
	boundary := multipart.NewWriter(io.Discard).Boundary()
	body := func() (io.Reader, error) {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		pr, pw := io.Pipe()
		go func() {
			defer file.Close()
			w := multipart.NewWriter(pw)
			w.SetBoundary(boundary)
			header := make(textproto.MIMEHeader)
			header.Set("Content-Disposition",
				fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
			header.Set("Content-Type", mimeType)
			part, err := w.CreatePart(header)
			if err == nil {
				_, err = io.Copy(part, file)
			}
			if err == nil {
				err = w.WriteField("jsonData", string(jsonData))
			}
			if err == nil {
				err = w.Close()
			}
			pw.CloseWithError(err)
		}()
		return pr, nil
	}

	resource := "api/datasets/:persistentId/add"
	respBody, err := c.Upload(ctx, resource, url.Values{"persistentId": {pid}}, body,
		"multipart/form-data; boundary="+boundary)
	if err != nil {
		return AddedFile{}, err
	}
	d, err := data(resource, respBody)
	if err != nil {
		return AddedFile{}, err
	}
	var added struct {
		Files []struct {
			DataFile AddedFile `json:"dataFile"`
		} `json:"files"`
	}
	if err := json.Unmarshal(d, &added); err != nil || len(added.Files) == 0 {
		return AddedFile{}, &InvalidResponseError{URL: resource, Message: "no file in upload response"}
	}
	return added.Files[0].DataFile, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
