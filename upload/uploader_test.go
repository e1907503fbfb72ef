package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvutils/dvutils/config"
	"github.com/dvutils/dvutils/dataverse"
	"github.com/dvutils/dvutils/dvtest"
)

const testPID = "doi:10.5072/FK2/UPLOAD"

var server *dvtest.Server

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
	server.Key = "upload-key"
	server.AddStudy(dvtest.StudyParams{PID: testPID, Id: 3, Title: "Uploads",
		FileIds: [2]int64{31, 32}})
	config.InitDefault(server.URL, "upload-key")
}

func breakdown() {
	server.Close()
}

func newUploader() *Uploader {
	u := NewUploader(dataverse.NewClient(server.URL, "upload-key"))
	u.PollInterval = time.Millisecond
	u.MaxPolls = 5
	return u
}

func TestUpload(t *testing.T) {
	root := testTree(t)
	entries, err := Scan(root, ScanOptions{Recursive: true})
	require.Nil(t, err)
	entries[0].Description = "Codebook; all waves"

	u := newUploader()
	u.Trim = root
	u.Restrict = true
	server.Locks[testPID] = 2
	before := len(server.Uploads)
	results, err := u.Upload(context.Background(), testPID, entries)
	assert.Nil(t, err)
	require.Equal(t, 3, len(results))
	assert.Equal(t, "", results[0].DirectoryLabel)
	assert.Equal(t, "wave2", results[2].DirectoryLabel)
	assert.Equal(t, "MD5", results[2].Added.Checksum.Type)

	uploads := server.Uploads[before:]
	require.Equal(t, 3, len(uploads))
	assert.Equal(t, "codebook.pdf", uploads[0].Filename)
	assert.Equal(t, []byte("codebook.pdf"), uploads[0].Content)
	assert.JSONEq(t, `{"label": "codebook.pdf", "description": "Codebook; all waves",
	  "categories": ["Data"], "restrict": true}`, uploads[0].JsonData)
	assert.JSONEq(t, `{"label": "survey.tab", "description": "survey", "directoryLabel": "wave2",
	  "categories": ["Data"], "restrict": true}`, uploads[2].JsonData)
}

func TestUploadWithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.Nil(t, os.WriteFile(path, []byte("notes"), 0644))
	results, err := newUploader().Upload(context.Background(), testPID,
		[]Entry{{File: path, Path: "docs/notes"}})
	assert.Nil(t, err)
	require.Equal(t, 1, len(results))
	assert.Equal(t, "docs/notes", results[0].DirectoryLabel)
	assert.Contains(t, server.Uploads[len(server.Uploads)-1].JsonData, `"directoryLabel":"docs/notes"`)
}

func TestUploadStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.txt")
	require.Nil(t, os.WriteFile(first, []byte("first"), 0644))
	entries := []Entry{{File: first}, {File: filepath.Join(dir, "missing.txt")}, {File: first}}
	results, err := newUploader().Upload(context.Background(), testPID, entries)
	assert.NotNil(t, err)
	assert.Equal(t, 1, len(results))
}

func TestUploadLockedStudy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.Nil(t, os.WriteFile(path, []byte("notes"), 0644))
	server.Locks[testPID] = 100
	defer delete(server.Locks, testPID)

	before := len(server.Uploads)
	_, err := newUploader().Upload(context.Background(), testPID, []Entry{{File: path}})
	var locked *dataverse.LockedError
	assert.True(t, errors.As(err, &locked))
	assert.Equal(t, before, len(server.Uploads))
}

func TestUploadWrongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.Nil(t, os.WriteFile(path, []byte("notes"), 0644))
	u := newUploader()
	u.Client = dataverse.NewClient(server.URL, "wrong")
	_, err := u.Upload(context.Background(), testPID, []Entry{{File: path}})
	var unauthorized *dataverse.UnauthorizedError
	assert.True(t, errors.As(err, &unauthorized))
}

func TestChecksumMismatchError(t *testing.T) {
	err := ChecksumMismatchError{File: "a.csv", Type: "MD5", Expected: "ab", Actual: "cd"}
	assert.Equal(t, "Checksum mismatch after uploading a.csv: local MD5 ab, server cd", err.Error())
}
