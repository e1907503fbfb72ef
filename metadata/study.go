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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// fields relating to licences and terms of use, copied into a study's record
// if present
var licenseFields = []string{
	"termsOfUse",
	"confidentialityDeclaration",
	"specialPermissions",
	"restrictions",
	"citationRequirements",
	"depositorRequirements",
	"conditions",
	"disclaimer",
	"dataAccessPlace",
	"originalArchive",
	"availabilityStatus",
	"contactForAccess",
	"sizeOfCollection",
	"studyCompletion",
	"fileAccessRequest",
}

// keys of the derived entries in a study's record
const (
	PIDKey         = "pid"
	LicenceKey     = "licence"
	LicenceLinkKey = "licence_link"
	VersionKey     = "study_version"
)

// A License is a study's licence, which older servers give as a plain string
// (e.g. "CC0" or "NONE") and newer ones as an object with a name and URI.
type License struct {
	Name    string `json:"name"`
	URI     string `json:"uri,omitempty"`
	IconURI string `json:"iconUri,omitempty"`
	// set for licences given as plain strings
	Plain bool `json:"-"`
}

func (l *License) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*l = License{Name: name, Plain: true}
		return nil
	}
	type license License
	var lic license
	if err := json.Unmarshal(data, &lic); err != nil {
		return err
	}
	*l = License(lic)
	return nil
}

func (l License) MarshalJSON() ([]byte, error) {
	if l.Plain {
		return json.Marshal(l.Name)
	}
	type license License
	return json.Marshal(license(l))
}

// the parts of a study version that we interpret
type DatasetVersion struct {
	VersionNumber      *int            `json:"versionNumber"`
	VersionMinorNumber *int            `json:"versionMinorNumber"`
	VersionState       string          `json:"versionState"`
	License            *License        `json:"license"`
	TermsOfUse         string          `json:"termsOfUse"`
	MetadataBlocks     Blocks          `json:"metadataBlocks"`
	Files              json.RawMessage `json:"files"`
}

// the parts of a study document that we interpret
type studyDocument struct {
	Data *struct {
		Id            *int64          `json:"id"`
		Identifier    string          `json:"identifier"`
		Protocol      string          `json:"protocol"`
		Authority     string          `json:"authority"`
		LatestVersion json.RawMessage `json:"latestVersion"`
	} `json:"data"`
}

// A Study holds the flattened metadata of the latest version of a Dataverse
// study. It's built once from the JSON document returned by
// /api/datasets/:persistentId and not modified afterward.
type Study struct {
	raw    []byte
	pid    string
	record FlatRecord
	// record keys in order of first appearance in the document
	order []string
	// nil for studies with no latest version (e.g. deaccessioned ones)
	latest *DatasetVersion
	// version keys copied verbatim (licence fields)
	latestRaw map[string]json.RawMessage

	filesOnce sync.Once
	files     []FileEntry
	filesErr  error
}

// an option for NewStudy
type Option func(*Study)

// sets the study's persistent ID (recorded under "pid"), overriding any ID
// derived from the document
func WithPID(pid string) Option {
	return func(s *Study) {
		s.pid = pid
	}
}

// Builds a Study from a study document. A document with no study data at all
// yields a MetadataError; one describing a study with no accessible latest
// version (deaccessioned or deleted) yields an empty record.
func NewStudy(raw []byte, options ...Option) (*Study, error) {
	s := &Study{
		raw:    raw,
		record: make(FlatRecord),
	}
	var doc studyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, s.metadataError(err)
	}
	if doc.Data == nil {
		return nil, s.metadataError(&missingKeyError{Key: "data"})
	}
	if doc.Data.Protocol != "" && doc.Data.Authority != "" && doc.Data.Identifier != "" {
		s.pid = fmt.Sprintf("%s:%s/%s", doc.Data.Protocol, doc.Data.Authority, doc.Data.Identifier)
	}
	for _, option := range options {
		option(s)
	}
	if s.pid != "" {
		s.record[PIDKey] = s.pid
		s.order = append(s.order, PIDKey)
	}

	// without real data, there's nothing more to do
	if doc.Data.Id == nil || doc.Data.Identifier == "" || doc.Data.Authority == "" ||
		isNull(doc.Data.LatestVersion) {
		return s, nil
	}

	var latest DatasetVersion
	if err := json.Unmarshal(doc.Data.LatestVersion, &latest); err != nil {
		return nil, s.metadataError(err)
	}
	if err := json.Unmarshal(doc.Data.LatestVersion, &s.latestRaw); err != nil {
		return nil, s.metadataError(err)
	}
	s.latest = &latest

	for _, block := range latest.MetadataBlocks {
		for _, field := range block.Fields {
			extractField(s.record, field)
			s.addToOrder(fieldNames(field)...)
		}
	}
	s.extractLicenseInfo()
	if err := s.extractVersion(); err != nil {
		return nil, s.metadataError(err)
	}
	s.addToOrder(licenseFields...)
	s.addToOrder(LicenceKey, LicenceLinkKey, VersionKey)
	return s, nil
}

// appends the given keys to the record order if they're in the record and
// not already ordered
func (s *Study) addToOrder(keys ...string) {
	for _, key := range keys {
		if _, found := s.record[key]; found && !slices.Contains(s.order, key) {
			s.order = append(s.order, key)
		}
	}
}

func (s *Study) metadataError(err error) *MetadataError {
	var missing *missingKeyError
	if errors.As(err, &missing) {
		return &MetadataError{Key: missing.Key, Err: err, Raw: s.raw}
	}
	return &MetadataError{Err: err, Raw: s.raw}
}

// copies licence-related fields, then resolves the study's licence
func (s *Study) extractLicenseInfo() {
	for _, field := range licenseFields {
		if value, found := s.latestRaw[field]; found && !isNull(value) {
			s.record[field] = rawString(value)
		}
	}
	if lic := s.latest.License; lic != nil {
		if lic.Plain {
			if lic.Name != "NONE" {
				s.record[LicenceKey] = lic.Name
			}
		} else {
			s.record[LicenceKey] = lic.Name
			if lic.URI != "" {
				s.record[LicenceLinkKey] = lic.URI
			}
		}
	}
}

// records "major.minor" for released versions, otherwise the version state
func (s *Study) extractVersion() error {
	if s.latest.VersionState == "" {
		return &missingKeyError{Key: "versionState"}
	}
	if s.latest.VersionState == "RELEASED" {
		if s.latest.VersionNumber == nil {
			return &missingKeyError{Key: "versionNumber"}
		}
		if s.latest.VersionMinorNumber == nil {
			return &missingKeyError{Key: "versionMinorNumber"}
		}
		s.record[VersionKey] = fmt.Sprintf("%d.%d", *s.latest.VersionNumber,
			*s.latest.VersionMinorNumber)
		return nil
	}
	s.record[VersionKey] = s.latest.VersionState
	return nil
}

// renders a JSON value as a string: strings are unquoted, anything else is
// left as compact JSON
func rawString(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return string(value)
	}
	return buf.String()
}

// returns the study's persistent ID
func (s *Study) PID() string {
	return s.pid
}

// returns a copy of the study's flattened metadata
func (s *Study) Record() FlatRecord {
	record := make(FlatRecord, len(s.record))
	for k, v := range s.record {
		record[k] = v
	}
	return record
}

// returns the keys of the study's record in document order: the persistent
// ID, metadata fields in block order, then licence and version fields
func (s *Study) Fields() []string {
	return slices.Clone(s.order)
}

// returns the value of a single field of the flattened metadata
func (s *Study) Get(key string) (string, bool) {
	value, found := s.record[key]
	return value, found
}

// returns the separate values of a field in the latest version (one per
// entry of a repeated compound field), or nil if the field isn't present.
// Unlike Split, values containing the record delimiter stay whole.
func (s *Study) Values(typeName string) []string {
	if s.latest == nil {
		return nil
	}
	var values []string
	for _, block := range s.latest.MetadataBlocks {
		for _, field := range block.Fields {
			if v, found := fieldValues(field, typeName); found {
				values = v
			}
		}
	}
	return values
}

// returns true if the study has no accessible latest version
func (s *Study) Empty() bool {
	return s.latest == nil
}

// returns the study's resolved licence name ("" if none)
func (s *Study) License() string {
	return s.record[LicenceKey]
}

// returns "major.minor" for a released study, or its state otherwise
func (s *Study) Version() string {
	return s.record[VersionKey]
}

// returns the parsed latest version of the study, or nil if it has none
func (s *Study) LatestVersion() *DatasetVersion {
	return s.latest
}

// returns the raw study document
func (s *Study) Raw() []byte {
	return s.raw
}

// returns the files of the study's latest version, computed once
func (s *Study) Files() ([]FileEntry, error) {
	s.filesOnce.Do(func() {
		if s.latest == nil {
			s.files = []FileEntry{}
			return
		}
		s.files, s.filesErr = parseFiles(s.latest.Files, s.pid)
		if s.filesErr != nil {
			s.filesErr = s.metadataError(s.filesErr)
		}
	})
	return s.files, s.filesErr
}
