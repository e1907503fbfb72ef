package dataverse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvutils/dvutils/config"
	"github.com/dvutils/dvutils/dvtest"
)

var server *dvtest.Server

const testPID = "doi:10.5072/FK2/ABCDEF"

// returns a client for the fake server that retries quickly
func testClient(key string) *Client {
	c := NewClient(server.URL, key)
	c.requests = RetryingHttpClient(5*time.Second, 3, time.Millisecond, 5*time.Millisecond)
	c.transfers = c.requests
	return c
}

func TestNewClient(t *testing.T) {
	c := NewClient("demo.dataverse.org/", "abc")
	assert.Equal(t, "https://demo.dataverse.org", c.URL)
	assert.Equal(t, "abc", c.Key)
	assert.Equal(t, "dvutils-test", c.UserAgent)
	assert.Equal(t, 10, c.requests.RetryMax)
}

func TestVersion(t *testing.T) {
	c := testClient("")
	server.Version = "v5.13.9-SP"
	defer func() { server.Version = "6.2" }()
	s, err := c.VersionString(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "v5.13.9-SP", s)
	v, err := c.Version(context.Background())
	assert.Nil(t, err)
	assert.InDelta(t, 5.013009, v, 1e-9)
}

func TestContents(t *testing.T) {
	c := testClient("")
	items, err := c.Contents(context.Background(), "root")
	assert.Nil(t, err)
	require.Equal(t, 2, len(items))
	assert.Equal(t, CollectionType, items[0].Type)
	assert.Equal(t, int64(2), items[0].Id)
	assert.Equal(t, "Child", items[0].Title)
	assert.Equal(t, StudyType, items[1].Type)
	assert.Equal(t, testPID, items[1].PID())

	alias, err := c.CollectionAlias(context.Background(), 2)
	assert.Nil(t, err)
	assert.Equal(t, "child", alias)

	_, err = c.Contents(context.Background(), "nope")
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestStudyRequiresKey(t *testing.T) {
	server.Key = "sekrit"
	defer func() { server.Key = "" }()

	_, err := testClient("").Study(context.Background(), testPID)
	var unauthorized *UnauthorizedError
	assert.True(t, errors.As(err, &unauthorized))

	body, err := testClient("sekrit").Study(context.Background(), testPID)
	assert.Nil(t, err)
	assert.True(t, json.Valid(body))
}

func TestRequestsCarryUserAgent(t *testing.T) {
	_, err := testClient("").VersionString(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "dvutils-test", server.UserAgents[len(server.UserAgents)-1])
}

func TestRetriesTransientFailures(t *testing.T) {
	c := testClient("")
	server.FailNext("/api/info/version", 503, 429, 502)
	before := server.Count("/api/info/version")
	_, err := c.VersionString(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, 4, server.Count("/api/info/version")-before)
}

func TestGivesUpAfterRetryMax(t *testing.T) {
	c := testClient("")
	server.FailNext("/api/info/version", 503, 503, 503, 503)
	_, err := c.VersionString(context.Background())
	var unavailable *UnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	c := testClient("")
	server.FailNext("/api/info/version", 400)
	before := server.Count("/api/info/version")
	_, err := c.VersionString(context.Background())
	var status *StatusError
	assert.True(t, errors.As(err, &status))
	assert.Equal(t, 400, status.Status)
	assert.Equal(t, "scheduled failure", status.Message)
	assert.Equal(t, 1, server.Count("/api/info/version")-before)
}

func TestDownloadFile(t *testing.T) {
	var buf bytes.Buffer
	n, err := testClient("").DownloadFile(context.Background(), 11, &buf)
	assert.Nil(t, err)
	assert.Equal(t, int64(len(dvtest.ObservationsCSV)), n)
	assert.Equal(t, dvtest.ObservationsCSV, buf.String())
}

func TestCreateUpdateDelete(t *testing.T) {
	c := testClient("")
	ctx := context.Background()
	pid, err := c.CreateStudy(ctx, "child", []byte(`{"datasetVersion": {}}`))
	assert.Nil(t, err)
	assert.Equal(t, "doi:10.5072/FK2/NEW001", pid)
	assert.Equal(t, 1, len(server.Created["child"]))

	err = c.UpdateDraft(ctx, testPID, []byte(`{"citation": {"fields": []}}`))
	assert.Nil(t, err)
	assert.JSONEq(t, `{"metadataBlocks": {"citation": {"fields": []}}}`,
		string(server.Updated[testPID]))

	err = c.DeleteDraft(ctx, testPID)
	assert.Nil(t, err)
	assert.Equal(t, []string{testPID}, server.Deleted)

	size, err := c.StorageSize(ctx, testPID)
	assert.Nil(t, err)
	assert.Contains(t, size, "148 bytes")

	locked, err := c.Locked(ctx, testPID)
	assert.Nil(t, err)
	assert.False(t, locked)
}

func TestAddFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "letters.txt")
	require.Nil(t, os.WriteFile(path, []byte(dvtest.LettersTXT), 0644))

	added, err := testClient("").AddFile(context.Background(), testPID, path, "text/plain",
		FileMetadata{Label: "letters.txt", Description: "Letters", DirectoryLabel: "docs"})
	assert.Nil(t, err)
	assert.Equal(t, "letters.txt", added.Filename)
	assert.Equal(t, "MD5", added.Checksum.Type)
	assert.Equal(t, 32, len(added.Checksum.Value))
	require.Equal(t, 1, len(server.Uploads))
	upload := server.Uploads[0]
	assert.Equal(t, testPID, upload.PID)
	assert.Equal(t, dvtest.LettersTXT, string(upload.Content))
	assert.JSONEq(t, `{"label": "letters.txt", "description": "Letters", "directoryLabel": "docs"}`,
		upload.JsonData)
}

func TestWaitUnlocked(t *testing.T) {
	c := testClient("")
	ctx := context.Background()
	server.Locks[testPID] = 2
	before := server.Count("/api/datasets/:persistentId/locks")
	assert.Nil(t, c.WaitUnlocked(ctx, testPID, time.Millisecond, 5))
	assert.Equal(t, 3, server.Count("/api/datasets/:persistentId/locks")-before)

	server.Locks[testPID] = 10
	defer delete(server.Locks, testPID)
	err := c.WaitUnlocked(ctx, testPID, time.Millisecond, 3)
	var locked *LockedError
	assert.True(t, errors.As(err, &locked))
	assert.Equal(t, testPID, locked.PID)
}

func TestReplaceTermsAndRepublish(t *testing.T) {
	c := testClient("")
	ctx := context.Background()
	assert.Nil(t, c.ReplaceTerms(ctx, testPID, "<p>CC0</p>"))
	assert.Equal(t, "<p>CC0</p>", server.Terms[testPID])
	assert.Nil(t, c.Republish(ctx, testPID))
	assert.Equal(t, []string{testPID}, server.Republished)

	err := c.ReplaceTerms(ctx, "doi:10.5072/FK2/NOPE", "<p>CC0</p>")
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

// this function gets called at the begіnning of a test session
func setup() {
	dvtest.EnableDebugLogging()
	config.InitDefault("https://example.com", "")
	config.HTTP.UserAgent = "dvutils-test"

	server = dvtest.NewServer()
	server.AddCollection(dvtest.Collection{
		Id: 1, Alias: "root", Title: "Root", Children: []string{"child"}, Studies: []string{testPID},
	})
	server.AddCollection(dvtest.Collection{Id: 2, Alias: "child", Title: "Child"})
	server.AddStudy(dvtest.StudyParams{
		PID: testPID, Id: 7, Title: "Frankenstein", FileIds: [2]int64{11, 12},
	})
}

// this function gets called after all tests have been run
func breakdown() {
	server.Close()
}

// this runs setup, runs all tests, and does breakdown
func TestMain(m *testing.M) {
	setup()
	status := m.Run()
	breakdown()
	os.Exit(status)
}
