package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dvutils/dvutils/dvtest"
)

var server *dvtest.Server

const testPID = "doi:10.5072/FK2/CLI001"

// this runs setup, runs all tests, and does breakdown
func TestMain(m *testing.M) {
	setup()
	status := m.Run()
	breakdown()
	os.Exit(status)
}

func setup() {
	server = dvtest.NewServer()
	server.AddCollection(dvtest.Collection{Id: 1, Alias: "root", Title: "Root",
		Studies: []string{testPID}})
	server.AddStudy(dvtest.StudyParams{PID: testPID, Id: 5, Title: "Command Line Study",
		FileIds: [2]int64{51, 52}})
}

func breakdown() {
	server.Close()
}

// runs the command line with the given arguments against the test server
func run(args ...string) error {
	rootCmd.SetArgs(append([]string{"--url", server.URL}, args...))
	return rootCmd.Execute()
}

func TestReadmeCommand(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "README.md")
	assert.Nil(t, run("readme", testPID, "--output", filename))
	data, err := os.ReadFile(filename)
	assert.Nil(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Command Line Study\n"))
}

func TestListFilesCommand(t *testing.T) {
	dir := t.TempDir()
	listing := filepath.Join(dir, "files.tsv")
	pkg := filepath.Join(dir, "datapackage.json")
	assert.Nil(t, run("list-files", testPID, "--all", "--output", listing, "--datapackage", pkg))
	data, err := os.ReadFile(listing)
	assert.Nil(t, err)
	assert.Equal(t, 4, len(strings.Split(strings.TrimSpace(string(data)), "\n")))
	_, err = os.Stat(pkg)
	assert.Nil(t, err)
}

func TestCollectionInfoCommand(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "info.csv")
	assert.Nil(t, run("collection-info", "root", "--fields", "pid,title",
		"--delimiter", ",", "--output", filename))
	data, err := os.ReadFile(filename)
	assert.Nil(t, err)
	assert.Equal(t, "pid,title\n"+testPID+",Command Line Study\n", string(data))
}

func TestMissingServer(t *testing.T) {
	rootCmd.SetArgs([]string{"readme", testPID})
	serverURL = ""
	assert.NotNil(t, rootCmd.Execute())
}

func TestConfirm(t *testing.T) {
	var prompts bytes.Buffer
	ask := confirm(bufio.NewReader(strings.NewReader("y\nno\nYES\n")), &prompts)
	assert.True(t, ask("doi:1"))
	assert.False(t, ask("doi:2"))
	assert.True(t, ask("doi:3"))
	assert.False(t, ask("doi:4"))
	assert.Contains(t, prompts.String(), "Delete draft of doi:1? [y/N] ")
}

func TestManifestCommand(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x\n1\n"), 0644))
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("notes"), 0644))
	assert.Nil(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("?"), 0644))

	filename := filepath.Join(t.TempDir(), "manifest.tsv")
	assert.Nil(t, run("manifest", dir, "--recursive", "--tag", "Data,2016", "--output", filename))
	data, err := os.ReadFile(filename)
	assert.Nil(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		"file\tdescription\ttags",
		filepath.Join(dir, "a.csv") + "\ta\tData, 2016",
		filepath.Join(dir, "sub", "b.txt") + "\tb\tData, 2016",
	}, lines)
}

func TestUploadCommand(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, os.MkdirAll(filepath.Join(dir, "docs"), 0755))
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "data.csv"), []byte("x\n1\n"), 0644))
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "docs", "guide.txt"), []byte("read me"), 0644))

	tsv := filepath.Join(t.TempDir(), "upload.tsv")
	assert.Nil(t, os.WriteFile(tsv, []byte("file\tdescription\ttags\n"+
		filepath.Join(dir, "data.csv")+"\tThe data\tData\n"+
		filepath.Join(dir, "docs", "guide.txt")+"\tA guide\tDocumentation, Guides\n"), 0644))

	before := len(server.Uploads)
	assert.Nil(t, run("upload", testPID, tsv, "--trim", dir))
	uploads := server.Uploads[before:]
	assert.Equal(t, 2, len(uploads))
	assert.Equal(t, "data.csv", uploads[0].Filename)
	assert.Equal(t, []byte("read me"), uploads[1].Content)
	assert.Contains(t, uploads[1].JsonData, `"directoryLabel":"docs"`)
	assert.Contains(t, uploads[1].JsonData, `"categories":["Documentation","Guides"]`)
	assert.NotContains(t, uploads[0].JsonData, "directoryLabel")
}

func TestReplaceTermsCommand(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "terms.html")
	assert.Nil(t, os.WriteFile(filename, []byte("<p>Use freely.</p>\n"), 0644))
	assert.Nil(t, run("replace-terms", testPID, "--file", filename, "--republish"))
	assert.Equal(t, "<p>Use freely.</p>", server.Terms[testPID])
	assert.Contains(t, server.Republished, testPID)
}
