package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/frictionlessdata/datapackage-go/datapackage"
	"github.com/frictionlessdata/datapackage-go/validator"
	"github.com/stretchr/testify/assert"

	"github.com/dvutils/dvutils/config"
	"github.com/dvutils/dvutils/dataverse"
	"github.com/dvutils/dvutils/dvtest"
)

const testPID = "doi:10.5072/FK2/MANIFEST"

var server *dvtest.Server
var client *dataverse.Client

// this runs setup, runs all tests, and does breakdown
func TestMain(m *testing.M) {
	setup()
	status := m.Run()
	breakdown()
	os.Exit(status)
}

func setup() {
	dvtest.EnableDebugLogging()
	server = dvtest.NewServer()
	server.AddStudy(dvtest.StudyParams{
		PID:     testPID,
		Id:      7,
		Title:   "Frankenstein",
		FileIds: [2]int64{71, 72},
	})
	config.InitDefault(server.URL, "")
	client = dataverse.NewClient(server.URL, "")
}

func breakdown() {
	server.Close()
}

func fetch(t *testing.T) *Manifest {
	m, err := Fetch(context.Background(), client, testPID)
	assert.Nil(t, err)
	return m
}

func TestFetch(t *testing.T) {
	m := fetch(t)
	assert.Equal(t, testPID, m.PID)
	assert.Equal(t, "2.1", m.Current())
	assert.Equal(t, []string{"2.1", "1.0"}, m.VersionList())
}

func TestFetchMissingStudy(t *testing.T) {
	_, err := Fetch(context.Background(), client, "doi:10.5072/FK2/NOPE")
	var notFound *dataverse.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestFiles(t *testing.T) {
	m := fetch(t)
	current := m.Files(false)
	assert.Equal(t, 2, len(current))
	assert.Equal(t, "data/observations.csv", current[0].File)
	assert.Equal(t, "Laboratory observations", current[0].Description)
	assert.Equal(t, "2.1", current[0].Version)
	assert.Equal(t, "RELEASED", current[0].State)
	assert.Equal(t, server.URL+"/api/access/datafile/71?format=original", current[0].DownloadURL)
	assert.Equal(t, server.URL+"/file.xhtml?fileId=71", current[0].PIDURL)
	assert.Equal(t, "letters.txt", current[1].File)

	all := m.Files(true)
	assert.Equal(t, 3, len(all))
	assert.Equal(t, "1.0", all[2].Version)
	assert.Equal(t, "data/observations.csv", all[2].File)
}

func TestWriteTSV(t *testing.T) {
	m := fetch(t)
	var buf bytes.Buffer
	assert.Nil(t, m.Write(&buf, "TSV", false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, 3, len(lines))
	assert.Equal(t, strings.Join(Headers, "\t"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "data/observations.csv\tLaboratory observations\t"))
	assert.True(t, strings.HasSuffix(lines[2], "\t2.1\tRELEASED"))

	buf.Reset()
	assert.Nil(t, m.Write(&buf, "csv", true))
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, 4, len(lines))
	assert.Equal(t, strings.Join(Headers, ","), lines[0])
}

func TestWriteJSON(t *testing.T) {
	m := fetch(t)
	var buf bytes.Buffer
	assert.Nil(t, m.Write(&buf, "json", false))
	var doc jsonManifest
	assert.Nil(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2.1", doc.CurrentVersion)
	assert.Equal(t, []string{"2.1", "1.0"}, doc.VersionList)
	assert.Equal(t, Headers, doc.Headers)
	assert.Equal(t, 2, len(doc.Files["2.1"]))
	assert.Equal(t, 1, len(doc.Files["1.0"]))
}

func TestWriteUnsupportedFormat(t *testing.T) {
	m := fetch(t)
	err := m.Write(&bytes.Buffer{}, "xlsx", false)
	assert.IsType(t, &UnsupportedFormatError{}, err)
}

func TestDescribe(t *testing.T) {
	pkg := fetch(t).Describe()
	assert.Equal(t, "doi-10.5072/fk2/manifest", pkg.Name)
	assert.Equal(t, "2.1", pkg.Version)
	assert.Equal(t, 2, len(pkg.Resources))

	obs := pkg.Resources[0]
	assert.Equal(t, "observations", obs.Name)
	assert.Equal(t, "data/observations.csv", obs.Path)
	assert.Equal(t, "csv", obs.Format)
	assert.Equal(t, int64(100), obs.Bytes)
	assert.Equal(t, "md5", obs.HashAlgorithm())
	assert.Equal(t, "observations.tab", obs.Title)

	letters := pkg.Resources[1]
	assert.Equal(t, "sha1", letters.HashAlgorithm())
	assert.Equal(t, "72", letters.Id)
	assert.Equal(t, "", letters.Title)
}

func TestSaveDataPackage(t *testing.T) {
	m := fetch(t)
	filename := filepath.Join(t.TempDir(), "datapackage.json")
	assert.Nil(t, m.SaveDataPackage(filename))

	data, err := os.ReadFile(filename)
	assert.Nil(t, err)
	pkg, err := datapackage.FromString(string(data), filename, validator.InMemoryLoader())
	assert.Nil(t, err)
	assert.Equal(t, []string{"observations", "letters"}, pkg.ResourceNames())
}
