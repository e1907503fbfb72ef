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

package dvtest

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"strings"
)

// a study document exercising every field kind: primitive, primitive-multiple,
// compound, compound-multiple and controlled vocabulary fields, an old-style
// singular productionPlace, a contact without an email, a geospatial bounding
// box and two files (one of them ingested as tabular data)
const studyTemplate = `{
  "status": "OK",
  "data": {
    "id": DBID,
    "identifier": "IDENTIFIER",
    "persistentUrl": "https://hdl.handle.net/AUTHORITY/IDENTIFIER",
    "protocol": "PROTOCOL",
    "authority": "AUTHORITY",
    "publisher": "Test Dataverse",
    "storageIdentifier": "file://AUTHORITY/IDENTIFIER",
    "latestVersion": {
      "id": DBID,
      "datasetId": DBID,
      "datasetPersistentId": "PID",
      "versionNumber": 2,
      "versionMinorNumber": 1,
      "versionState": "RELEASED",
      "license": "NONE",
      "termsOfUse": "",
      "fileAccessRequest": false,
      "metadataBlocks": {
        "citation": {
          "displayName": "Citation Metadata",
          "name": "citation",
          "fields": [
            {"typeName": "title", "multiple": false, "typeClass": "primitive", "value": "TITLE"},
            {"typeName": "author", "multiple": true, "typeClass": "compound", "value": [
              {"authorName": {"typeName": "authorName", "multiple": false, "typeClass": "primitive", "value": "Shelley, Mary"},
               "authorAffiliation": {"typeName": "authorAffiliation", "multiple": false, "typeClass": "primitive", "value": "University of Ingolstadt"}},
              {"authorName": {"typeName": "authorName", "multiple": false, "typeClass": "primitive", "value": "Frankenstein, Victor"}}
            ]},
            {"typeName": "datasetContact", "multiple": true, "typeClass": "compound", "value": [
              {"datasetContactName": {"typeName": "datasetContactName", "multiple": false, "typeClass": "primitive", "value": "Walton, Robert"},
               "datasetContactEmail": {"typeName": "datasetContactEmail", "multiple": false, "typeClass": "primitive", "value": "walton@example.com"}},
              {"datasetContactName": {"typeName": "datasetContactName", "multiple": false, "typeClass": "primitive", "value": "Clerval, Henry"}}
            ]},
            {"typeName": "dsDescription", "multiple": true, "typeClass": "compound", "value": [
              {"dsDescriptionValue": {"typeName": "dsDescriptionValue", "multiple": false, "typeClass": "primitive", "value": "A study of animated matter."}}
            ]},
            {"typeName": "subject", "multiple": true, "typeClass": "controlledVocabulary", "value": ["Medicine, Health and Life Sciences", "Other"]},
            {"typeName": "keyword", "multiple": true, "typeClass": "compound", "value": [
              {"keywordValue": {"typeName": "keywordValue", "multiple": false, "typeClass": "primitive", "value": "galvanism"}},
              {"keywordValue": {"typeName": "keywordValue", "multiple": false, "typeClass": "primitive", "value": "reanimation"}}
            ]},
            {"typeName": "productionPlace", "multiple": false, "typeClass": "primitive", "value": "Geneva"},
            {"typeName": "kindOfData", "multiple": true, "typeClass": "primitive", "value": ["survey data", "notes"]},
            {"typeName": "series", "multiple": false, "typeClass": "compound", "value": {
              "seriesName": {"typeName": "seriesName", "multiple": false, "typeClass": "primitive", "value": "Gothic Studies"},
              "seriesInformation": {"typeName": "seriesInformation", "multiple": false, "typeClass": "primitive", "value": "Volume 1"}
            }}
          ]
        },
        "geospatial": {
          "displayName": "Geospatial Metadata",
          "name": "geospatial",
          "fields": [
            {"typeName": "geographicBoundingBox", "multiple": true, "typeClass": "compound", "value": [
              {"westLongitude": {"typeName": "westLongitude", "multiple": false, "typeClass": "primitive", "value": "6.1"},
               "eastLongitude": {"typeName": "eastLongitude", "multiple": false, "typeClass": "primitive", "value": "6.2"},
               "northLatitude": {"typeName": "northLatitude", "multiple": false, "typeClass": "primitive", "value": "46.3"},
               "southLatitude": {"typeName": "southLatitude", "multiple": false, "typeClass": "primitive", "value": "46.1"}}
            ]}
          ]
        }
      },
      "files": [
        {
          "label": "observations.tab",
          "description": "Laboratory observations",
          "restricted": false,
          "directoryLabel": "data",
          "version": 1,
          "datasetVersionId": DBID,
          "dataFile": {
            "id": FILEID1,
            "persistentId": "",
            "filename": "observations.tab",
            "contentType": "text/tab-separated-values",
            "filesize": 120,
            "storageIdentifier": "file://18a0",
            "originalFileFormat": "text/csv",
            "originalFormatLabel": "Comma Separated Values",
            "originalFileSize": 100,
            "originalFileName": "observations.csv",
            "rootDataFileId": -1,
            "checksum": {"type": "MD5", "value": "CHECKSUM1"},
            "tabularData": true
          }
        },
        {
          "label": "letters.txt",
          "restricted": false,
          "version": 1,
          "datasetVersionId": DBID,
          "dataFile": {
            "id": FILEID2,
            "filename": "letters.txt",
            "contentType": "text/plain",
            "filesize": 28,
            "storageIdentifier": "file://18a1",
            "rootDataFileId": -1,
            "checksum": {"type": "SHA-1", "value": "CHECKSUM2"}
          }
        }
      ]
    }
  }
}`

// contents of the two files of a test study
const (
	ObservationsCSV = "subject,voltage,outcome\nfrog,12.5,twitch\nfrog,14.0,twitch\nox,30.25,none\n"
	LettersTXT      = "To Mrs. Saville, England.\n"
)

// the parameters of a test study document
type StudyParams struct {
	// persistent identifier (protocol:authority/identifier)
	PID string
	// database ID of the study
	Id int
	// title of the study
	Title string
	// IDs of the study's two files
	FileIds [2]int64
}

// generates a study document (as returned by /api/datasets/:persistentId)
// with the given parameters
func StudyJSON(params StudyParams) []byte {
	protocol, rest, _ := strings.Cut(params.PID, ":")
	authority, identifier, _ := strings.Cut(rest, "/")
	replacer := strings.NewReplacer(
		"DBID", itoa(int64(params.Id)),
		"FILEID1", itoa(params.FileIds[0]),
		"FILEID2", itoa(params.FileIds[1]),
		"PROTOCOL", protocol,
		"AUTHORITY", authority,
		"IDENTIFIER", identifier,
		"PID", params.PID,
		"TITLE", params.Title,
		"CHECKSUM1", fmt.Sprintf("%x", md5.Sum([]byte(ObservationsCSV))),
		"CHECKSUM2", fmt.Sprintf("%x", sha1.Sum([]byte(LettersTXT))),
	)
	return []byte(replacer.Replace(studyTemplate))
}

// a study document for a deaccessioned study, which has no latest version
const DeaccessionedStudyJSON = `{
  "status": "OK",
  "data": {
    "id": 99,
    "identifier": "GONE",
    "protocol": "hdl",
    "authority": "11272.1"
  }
}`

// adds a study generated by StudyJSON (and its files) to the server
func (s *Server) AddStudy(params StudyParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Studies[params.PID] = StudyJSON(params)
	s.Versions[params.PID] = VersionsJSON(params)
	s.Files[params.FileIds[0]] = []byte(ObservationsCSV)
	s.Files[params.FileIds[1]] = []byte(LettersTXT)
}

// generates a version listing (as returned by
// /api/datasets/:persistentId/versions) for a study generated by StudyJSON:
// its latest version 2.1 and an earlier version 1.0 holding only the first
// file
func VersionsJSON(params StudyParams) []byte {
	var doc struct {
		Data struct {
			LatestVersion map[string]any `json:"latestVersion"`
		} `json:"data"`
	}
	if err := json.Unmarshal(StudyJSON(params), &doc); err != nil {
		panic(err)
	}
	latest := doc.Data.LatestVersion
	earlier := make(map[string]any)
	for k, v := range latest {
		earlier[k] = v
	}
	earlier["versionNumber"] = 1
	earlier["versionMinorNumber"] = 0
	earlier["files"] = latest["files"].([]any)[:1]
	data, err := json.Marshal(map[string]any{
		"status": "OK",
		"data":   []any{latest, earlier},
	})
	if err != nil {
		panic(err)
	}
	return data
}
