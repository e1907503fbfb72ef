package metadata

import (
	"crypto/md5"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dvutils/dvutils/dvtest"
)

const testPID = "doi:10.5072/FK2/ABCDEF"

var testStudy []byte

// this runs setup, runs all tests, and does breakdown
func TestMain(m *testing.M) {
	setup()
	status := m.Run()
	breakdown()
	os.Exit(status)
}

func setup() {
	dvtest.EnableDebugLogging()
	testStudy = dvtest.StudyJSON(dvtest.StudyParams{
		PID:     testPID,
		Id:      42,
		Title:   "Electricity and Life",
		FileIds: [2]int64{11, 12},
	})
}

func breakdown() {
}

func TestNewStudy(t *testing.T) {
	study, err := NewStudy(testStudy)
	assert.Nil(t, err)
	assert.False(t, study.Empty())
	assert.Equal(t, testPID, study.PID())

	record := study.Record()
	assert.Equal(t, testPID, record[PIDKey])
	assert.Equal(t, "Electricity and Life", record["title"])
	assert.Equal(t, "Shelley, Mary; Frankenstein, Victor", record["authorName"])
	assert.Equal(t, "University of Ingolstadt; ", record["authorAffiliation"])
	assert.Equal(t, "walton@example.com; ", record["datasetContactEmail"])
	assert.Equal(t, "Medicine, Health and Life Sciences; Other", record["subject"])
	assert.Equal(t, "galvanism; reanimation", record["keywordValue"])
	assert.Equal(t, "Geneva", record["productionPlace"])
	assert.Equal(t, "survey data; notes", record["kindOfData"])
	assert.Equal(t, "Gothic Studies", record["seriesName"])
	assert.Equal(t, "6.1", record["westLongitude"])
	assert.Equal(t, "46.1", record["southLatitude"])

	// blocks aren't distinguished in the record
	_, found := record["citation"]
	assert.False(t, found)

	// licence fields
	terms, found := study.Get("termsOfUse")
	assert.True(t, found)
	assert.Equal(t, "", terms)
	assert.Equal(t, "false", record["fileAccessRequest"])
	assert.Equal(t, "", study.License())
	_, found = record[LicenceKey]
	assert.False(t, found)

	assert.Equal(t, "2.1", study.Version())
}

func TestRecordIsACopy(t *testing.T) {
	study, err := NewStudy(testStudy)
	assert.Nil(t, err)
	record := study.Record()
	record["title"] = "changed"
	assert.Equal(t, "Electricity and Life", study.Record()["title"])
}

func TestWithPID(t *testing.T) {
	study, err := NewStudy(testStudy, WithPID("hdl:1/2"))
	assert.Nil(t, err)
	assert.Equal(t, "hdl:1/2", study.PID())
	assert.Equal(t, "hdl:1/2", study.Record()[PIDKey])
}

// a deaccessioned study has no latest version and yields an empty record
func TestDeaccessionedStudy(t *testing.T) {
	study, err := NewStudy([]byte(dvtest.DeaccessionedStudyJSON))
	assert.Nil(t, err)
	assert.True(t, study.Empty())
	assert.Equal(t, FlatRecord{PIDKey: "hdl:11272.1/GONE"}, study.Record())
	assert.Nil(t, study.LatestVersion())
	files, err := study.Files()
	assert.Nil(t, err)
	assert.Equal(t, 0, len(files))
}

func TestMetadataErrors(t *testing.T) {
	doc := []byte(`{"status": "ERROR", "message": "Not authorized"}`)
	_, err := NewStudy(doc)
	assert.NotNil(t, err)
	var mdErr *MetadataError
	assert.True(t, errors.As(err, &mdErr))
	assert.Equal(t, "data", mdErr.Key)
	assert.Equal(t, doc, mdErr.Raw)
	assert.Contains(t, err.Error(), "Do you need an API key?")
	assert.Contains(t, err.Error(), "Not authorized")

	_, err = NewStudy([]byte(`not json`))
	assert.True(t, errors.As(err, &mdErr))

	// a field with the wrong shape
	_, err = NewStudy([]byte(`{"data": {"id": 1, "identifier": "X", "authority": "1", "protocol": "doi",
	  "latestVersion": {"versionState": "DRAFT", "metadataBlocks": {"citation": {"fields": [
	    {"typeName": "title", "multiple": false, "typeClass": "primitive", "value": ["a"]}]}}}}}`))
	assert.True(t, errors.As(err, &mdErr))

	// a version without a state
	_, err = NewStudy([]byte(`{"data": {"id": 1, "identifier": "X", "authority": "1", "protocol": "doi",
	  "latestVersion": {"metadataBlocks": {}}}}`))
	assert.True(t, errors.As(err, &mdErr))
	assert.Equal(t, "versionState", mdErr.Key)
}

func TestLicenseAndVersion(t *testing.T) {
	doc := []byte(`{"data": {"id": 1, "identifier": "X", "authority": "1", "protocol": "doi",
	  "latestVersion": {"versionState": "DRAFT", "termsOfUse": "Be nice",
	    "license": {"name": "CC0 1.0", "uri": "http://creativecommons.org/publicdomain/zero/1.0"},
	    "metadataBlocks": {}}}}`)
	study, err := NewStudy(doc)
	assert.Nil(t, err)
	assert.Equal(t, "CC0 1.0", study.License())
	assert.Equal(t, "http://creativecommons.org/publicdomain/zero/1.0", study.Record()[LicenceLinkKey])
	assert.Equal(t, "Be nice", study.Record()["termsOfUse"])
	assert.Equal(t, "DRAFT", study.Version())

	doc = []byte(`{"data": {"id": 1, "identifier": "X", "authority": "1", "protocol": "doi",
	  "latestVersion": {"versionState": "RELEASED", "versionNumber": 3, "versionMinorNumber": 0,
	    "license": "CC-BY", "metadataBlocks": {}}}}`)
	study, err = NewStudy(doc)
	assert.Nil(t, err)
	assert.Equal(t, "CC-BY", study.License())
	assert.Equal(t, "3.0", study.Version())
	assert.True(t, study.LatestVersion().License.Plain)
}

func TestFiles(t *testing.T) {
	study, err := NewStudy(testStudy)
	assert.Nil(t, err)
	files, err := study.Files()
	assert.Nil(t, err)
	assert.Equal(t, 2, len(files))

	assert.Equal(t, FileEntry{
		Filename:       "observations.csv",
		Label:          "observations.tab",
		Description:    "Laboratory observations",
		SizeBytes:      100,
		ChecksumType:   "MD5",
		ChecksumDigest: fmt.Sprintf("%x", md5.Sum([]byte(dvtest.ObservationsCSV))),
		ID:             11,
		Tabular:        true,
		StudyPID:       testPID,
		DirectoryLabel: "data",
		ContentType:    "text/tab-separated-values",
	}, files[0])
	assert.Equal(t, "letters.txt", files[1].Filename)
	assert.Equal(t, int64(28), files[1].SizeBytes)
	assert.Equal(t, "SHA-1", files[1].ChecksumType)
	assert.False(t, files[1].Tabular)
}

// files are computed once, even when requested concurrently
func TestFilesComputedOnce(t *testing.T) {
	study, err := NewStudy(testStudy)
	assert.Nil(t, err)
	results := make([][]FileEntry, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = study.Files()
		}(i)
	}
	wg.Wait()
	for _, files := range results {
		assert.Equal(t, 2, len(files))
		assert.Same(t, &results[0][0], &files[0])
	}
}

func TestFilesMissingDataFile(t *testing.T) {
	doc := []byte(`{"data": {"id": 1, "identifier": "X", "authority": "1", "protocol": "doi",
	  "latestVersion": {"versionState": "DRAFT", "metadataBlocks": {}, "files": [{"label": "x"}]}}}`)
	study, err := NewStudy(doc)
	assert.Nil(t, err)
	_, err = study.Files()
	var mdErr *MetadataError
	assert.True(t, errors.As(err, &mdErr))
	assert.Equal(t, "dataFile", mdErr.Key)
}

func TestVersions(t *testing.T) {
	doc := []byte(`{"status": "OK", "data": [
	  {"versionState": "DRAFT", "files": []},
	  {"versionState": "RELEASED", "versionNumber": 1, "versionMinorNumber": 0, "files": [
	    {"label": "a.txt", "dataFile": {"id": 5, "filename": "a.txt", "filesize": 3}}]}]}`)
	versions, err := Versions(doc, testPID)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(versions))
	assert.Equal(t, "DRAFT", versions[0].Number)
	assert.Equal(t, 0, len(versions[0].Files))
	assert.Equal(t, "1.0", versions[1].Number)
	assert.Equal(t, "RELEASED", versions[1].State)
	assert.Equal(t, int64(5), versions[1].Files[0].ID)
	assert.Equal(t, testPID, versions[1].Files[0].StudyPID)

	_, err = Versions([]byte(`{"status": "ERROR"}`), testPID)
	assert.NotNil(t, err)
}

func TestFieldOrder(t *testing.T) {
	study, err := NewStudy(testStudy)
	assert.Nil(t, err)
	fields := study.Fields()
	assert.Equal(t, []string{PIDKey, "title", "authorName", "authorAffiliation"}, fields[:4])
	assert.Equal(t, VersionKey, fields[len(fields)-1])
	assert.Equal(t, len(study.Record()), len(fields))
	assert.Less(t, slices.Index(fields, "seriesName"), slices.Index(fields, "westLongitude"))
	assert.Less(t, slices.Index(fields, "westLongitude"), slices.Index(fields, "termsOfUse"))
}

// values keep their own delimiters, unlike the flattened record
func TestValues(t *testing.T) {
	study, err := NewStudy(testStudy)
	assert.Nil(t, err)
	assert.Equal(t, []string{"Shelley, Mary", "Frankenstein, Victor"}, study.Values("authorName"))
	assert.Equal(t, []string{"University of Ingolstadt"}, study.Values("authorAffiliation"))
	assert.Equal(t, []string{"Medicine, Health and Life Sciences", "Other"}, study.Values("subject"))
	assert.Nil(t, study.Values("noSuchField"))

	study, err = NewStudy([]byte(`{"data": {"id": 1, "identifier": "X", "authority": "1", "protocol": "doi",
	  "latestVersion": {"versionState": "DRAFT", "metadataBlocks": {"citation": {"fields": [
	    {"typeName": "dsDescription", "multiple": true, "typeClass": "compound", "value": [
	      {"dsDescriptionValue": {"typeName": "dsDescriptionValue", "multiple": false, "typeClass": "primitive",
	        "value": "Survey of households; collected in 1971."}},
	      {"dsDescriptionValue": {"typeName": "dsDescriptionValue", "multiple": false, "typeClass": "primitive",
	        "value": "Second wave."}}]}]}}}}}`))
	assert.Nil(t, err)
	assert.Equal(t, []string{"Survey of households; collected in 1971.", "Second wave."},
		study.Values("dsDescriptionValue"))
	assert.Equal(t, "Survey of households; collected in 1971.; Second wave.",
		study.Record()["dsDescriptionValue"])

	empty, err := NewStudy([]byte(dvtest.DeaccessionedStudyJSON))
	assert.Nil(t, err)
	assert.Nil(t, empty.Values("title"))
}
