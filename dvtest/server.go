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

// This package contains testing utilities for the Dataverse utilities: a fake
// Dataverse server and canned study documents.
package dvtest

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// Enables DEBUG log messages for the structured log (slog).
func EnableDebugLogging() {
	logLevel := new(slog.LevelVar)
	logLevel.Set(slog.LevelDebug)
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// a collection served by the fake server
type Collection struct {
	Id    int64
	Alias string
	Title string
	// aliases of sub-collections, in listing order
	Children []string
	// persistent IDs of studies, in listing order
	Studies []string
	// if set, looking up the collection's alias fails with 403
	HideAlias bool
}

// a file upload received by the fake server
type Upload struct {
	PID      string
	Filename string
	JsonData string
	Content  []byte
}

// A fake Dataverse installation. Tests populate Collections, Studies and
// Files before issuing requests, then inspect the recorded requests.
type Server struct {
	*httptest.Server
	// version string reported by /api/info/version
	Version string
	// collections by alias
	Collections map[string]*Collection
	// raw study documents by persistent ID
	Studies map[string][]byte
	// raw version listings by persistent ID
	Versions map[string][]byte
	// file contents by file ID
	Files map[int64][]byte
	// if non-empty, the API key required for dataset requests
	Key string
	// number of lock checks that report a study as locked, by persistent ID
	Locks map[string]int

	mu sync.Mutex
	// statuses to return (in order) before serving a path normally
	failures map[string][]int
	// paths of requests received, in order
	Requests []string
	// user agents of requests received, in order
	UserAgents []string
	// payloads of studies created, by collection alias
	Created map[string][][]byte
	// draft metadata updates, by persistent ID
	Updated map[string][]byte
	// persistent IDs of deleted drafts
	Deleted []string
	// uploaded files
	Uploads []Upload
	// terms of use set through the semantic metadata API, by persistent ID
	Terms map[string]string
	// persistent IDs of studies republished without a version increment
	Republished []string
}

// creates and starts a fake Dataverse server
func NewServer() *Server {
	s := &Server{
		Version:     "6.2",
		Collections: make(map[string]*Collection),
		Studies:     make(map[string][]byte),
		Versions:    make(map[string][]byte),
		Files:       make(map[int64][]byte),
		Locks:       make(map[string]int),
		Terms:       make(map[string]string),
		failures:    make(map[string][]int),
		Created:     make(map[string][][]byte),
		Updated:     make(map[string][]byte),
	}
	router := mux.NewRouter()
	router.Use(s.record)
	router.HandleFunc("/api/info/version", s.getVersion).Methods(http.MethodGet)
	router.HandleFunc("/api/dataverses/{id}/contents", s.getContents).Methods(http.MethodGet)
	router.HandleFunc("/api/dataverses/{id}/datasets", s.createStudy).Methods(http.MethodPost)
	router.HandleFunc("/api/dataverses/{id}", s.getCollection).Methods(http.MethodGet)
	router.HandleFunc("/api/datasets/:persistentId/versions/:draft", s.updateDraft).Methods(http.MethodPut)
	router.HandleFunc("/api/datasets/:persistentId/versions/:draft", s.deleteDraft).Methods(http.MethodDelete)
	router.HandleFunc("/api/datasets/:persistentId/versions", s.getVersions).Methods(http.MethodGet)
	router.HandleFunc("/api/datasets/:persistentId/storagesize", s.getStorageSize).Methods(http.MethodGet)
	router.HandleFunc("/api/datasets/:persistentId/locks", s.getLocks).Methods(http.MethodGet)
	router.HandleFunc("/api/datasets/:persistentId/add", s.addFile).Methods(http.MethodPost)
	router.HandleFunc("/api/datasets/:persistentId/metadata", s.replaceMetadata).Methods(http.MethodPut)
	router.HandleFunc("/api/datasets/:persistentId/actions/:publish", s.publish).Methods(http.MethodPost)
	router.HandleFunc("/api/datasets/:persistentId", s.getStudy).Methods(http.MethodGet)
	router.HandleFunc("/api/access/datafile/{id}", s.getFile).Methods(http.MethodGet)
	s.Server = httptest.NewServer(router)
	return s
}

// adds a collection to the server
func (s *Server) AddCollection(c Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Collections[c.Alias] = &c
}

// arranges for the next requests to the given path to fail with the given
// statuses (in order) before the path is served normally
func (s *Server) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// returns the number of requests received for the given path
func (s *Server) Count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.Requests {
		if p == path {
			n++
		}
	}
	return n
}

// middleware that records requests and injects any scheduled failures
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.Requests = append(s.Requests, r.URL.Path)
		s.UserAgents = append(s.UserAgents, r.Header.Get("User-Agent"))
		var status int
		if pending := s.failures[r.URL.Path]; len(pending) > 0 {
			status = pending[0]
			s.failures[r.URL.Path] = pending[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			writeError(w, status, "scheduled failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "OK",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ERROR",
		"message": message,
	})
}

// checks the API key of a dataset request, writing a 401 if it's wrong
func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if s.Key != "" && r.Header.Get("X-Dataverse-key") != s.Key {
		writeError(w, http.StatusUnauthorized, "Bad API key")
		return false
	}
	return true
}

// finds a collection by alias or numeric ID
func (s *Server) collection(id string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, found := s.Collections[id]; found {
		return c
	}
	for _, c := range s.Collections {
		if itoa(c.Id) == id {
			return c
		}
	}
	return nil
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]any{"version": s.Version, "build": "test"})
}

func (s *Server) getContents(w http.ResponseWriter, r *http.Request) {
	c := s.collection(mux.Vars(r)["id"])
	if c == nil {
		writeError(w, http.StatusNotFound, "Can't find dataverse")
		return
	}
	contents := make([]map[string]any, 0)
	for _, alias := range c.Children {
		child := s.collection(alias)
		if child == nil {
			continue
		}
		// the contents listing reports children by ID and title only
		contents = append(contents, map[string]any{
			"type":  "dataverse",
			"id":    child.Id,
			"title": child.Title,
		})
	}
	for i, pid := range c.Studies {
		protocol, authority, identifier := splitPID(pid)
		contents = append(contents, map[string]any{
			"type":          "dataset",
			"id":            1000*c.Id + int64(i),
			"protocol":      protocol,
			"authority":     authority,
			"identifier":    identifier,
			"persistentUrl": fmt.Sprintf("https://hdl.handle.net/%s/%s", authority, identifier),
		})
	}
	writeData(w, contents)
}

func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	c := s.collection(mux.Vars(r)["id"])
	if c == nil {
		writeError(w, http.StatusNotFound, "Can't find dataverse")
		return
	}
	if c.HideAlias {
		writeError(w, http.StatusForbidden, "Not authorized")
		return
	}
	writeData(w, map[string]any{"id": c.Id, "alias": c.Alias, "name": c.Title})
}

func (s *Server) getStudy(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	doc, found := s.Studies[r.URL.Query().Get("persistentId")]
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(doc)
}

func (s *Server) getVersions(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	doc, found := s.Versions[r.URL.Query().Get("persistentId")]
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(doc)
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	s.mu.Lock()
	content, found := s.Files[id]
	s.mu.Unlock()
	if err != nil || !found {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(content)
}

func (s *Server) createStudy(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	alias := mux.Vars(r)["id"]
	body, _ := io.ReadAll(r.Body)
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	s.mu.Lock()
	s.Created[alias] = append(s.Created[alias], body)
	n := len(s.Created[alias])
	s.mu.Unlock()
	writeData(w, map[string]any{
		"id":           5000 + n,
		"persistentId": fmt.Sprintf("doi:10.5072/FK2/NEW%03d", n),
	})
}

func (s *Server) updateDraft(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.Updated[r.URL.Query().Get("persistentId")] = body
	s.mu.Unlock()
	writeData(w, map[string]any{"versionState": "DRAFT"})
}

func (s *Server) deleteDraft(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	pid := r.URL.Query().Get("persistentId")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.Studies[pid]; !found {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	s.Deleted = append(s.Deleted, pid)
	writeData(w, map[string]any{"message": "Draft version of dataset deleted"})
}

func (s *Server) getStorageSize(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]any{"message": "Total size of the files stored in this dataset: 148 bytes"})
}

func (s *Server) getLocks(w http.ResponseWriter, r *http.Request) {
	pid := r.URL.Query().Get("persistentId")
	s.mu.Lock()
	locked := s.Locks[pid] > 0
	if locked {
		s.Locks[pid]--
	}
	s.mu.Unlock()
	if locked {
		writeData(w, []any{map[string]any{"lockType": "Ingest", "dataset": pid}})
		return
	}
	writeData(w, []any{})
}

func (s *Server) replaceMetadata(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if r.URL.Query().Get("replace") != "true" ||
		r.Header.Get("Content-Type") != "application/ld+json" {
		writeError(w, http.StatusBadRequest, "Expected JSON-LD replacing existing values")
		return
	}
	var doc struct {
		Terms   string            `json:"dvcore:termsOfUse"`
		Context map[string]string `json:"@context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || doc.Context["dvcore"] == "" {
		writeError(w, http.StatusBadRequest, "Invalid JSON-LD")
		return
	}
	pid := r.URL.Query().Get("persistentId")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.Studies[pid]; !found {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	s.Terms[pid] = doc.Terms
	writeData(w, map[string]any{"id": 1, "persistentId": pid})
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if r.URL.Query().Get("type") != "updatecurrent" {
		writeError(w, http.StatusBadRequest, "Only updatecurrent is supported")
		return
	}
	s.mu.Lock()
	s.Republished = append(s.Republished, r.URL.Query().Get("persistentId"))
	s.mu.Unlock()
	writeData(w, map[string]any{"versionState": "RELEASED"})
}

func (s *Server) addFile(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)
	upload := Upload{
		PID:      r.URL.Query().Get("persistentId"),
		Filename: header.Filename,
		JsonData: r.FormValue("jsonData"),
		Content:  content,
	}
	s.mu.Lock()
	s.Uploads = append(s.Uploads, upload)
	id := 9000 + len(s.Uploads)
	s.mu.Unlock()
	writeData(w, map[string]any{
		"files": []any{
			map[string]any{
				"label": header.Filename,
				"dataFile": map[string]any{
					"id":       id,
					"filename": header.Filename,
					"checksum": map[string]any{
						"type":  "MD5",
						"value": fmt.Sprintf("%x", md5.Sum(content)),
					},
				},
			},
		},
	})
}

// splits a persistent ID into its protocol, authority and identifier
func splitPID(pid string) (string, string, string) {
	protocol, rest, _ := strings.Cut(pid, ":")
	authority, identifier, _ := strings.Cut(rest, "/")
	return protocol, authority, identifier
}
