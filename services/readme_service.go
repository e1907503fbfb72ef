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

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"

	"github.com/dvutils/dvutils/collections"
	"github.com/dvutils/dvutils/config"
	"github.com/dvutils/dvutils/credentials"
	"github.com/dvutils/dvutils/dataverse"
	"github.com/dvutils/dvutils/metadata"
	"github.com/dvutils/dvutils/readme"
)

// Version numbers
var majorVersion = 0
var minorVersion = 4
var patchVersion = 0

// Version string
var Version = fmt.Sprintf("%d.%d.%d", majorVersion, minorVersion, patchVersion)

// This type implements the Service interface, serving study metadata,
// readmes and collection listings read from a single Dataverse installation.
type readmeService struct {
	// name of the service
	Name string
	// service version identifier
	Version string
	// time which the service was started
	StartTime time.Time
	// port on which the service currently runs
	Port int
	// client for the Dataverse installation
	Client *dataverse.Client
	// router for REST endpoints
	Router *mux.Router
	// API wrapper
	API huma.API
	// HTTP server.
	Server *http.Server
}

// converts an error from the Dataverse installation to an HTTP error
func statusError(err error) error {
	var notFound *dataverse.NotFoundError
	var unauthorized *dataverse.UnauthorizedError
	var unavailable *dataverse.UnavailableError
	var mdErr *metadata.MetadataError
	switch {
	case errors.As(err, &notFound):
		return huma.Error404NotFound(err.Error())
	case errors.As(err, &unauthorized):
		return huma.Error403Forbidden(err.Error())
	case errors.As(err, &unavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.As(err, &mdErr):
		return huma.Error502BadGateway(err.Error())
	}
	return huma.Error502BadGateway(err.Error())
}

// persistent IDs contain slashes, so they arrive URL-encoded
func pidParam(pid string) (string, error) {
	decoded, err := url.PathUnescape(pid)
	if err != nil {
		return "", huma.Error400BadRequest(fmt.Sprintf("Invalid persistent ID: %s", pid))
	}
	return decoded, nil
}

// fetches and flattens a study
func (service *readmeService) study(ctx context.Context, pid string) (*metadata.Study, error) {
	pid, err := pidParam(pid)
	if err != nil {
		return nil, err
	}
	raw, err := service.Client.Study(ctx, pid)
	if err != nil {
		return nil, statusError(err)
	}
	study, err := metadata.NewStudy(raw, metadata.WithPID(pid))
	if err != nil {
		return nil, statusError(err)
	}
	return study, nil
}

type ServiceInfoOutput struct {
	Body ServiceInfoResponse `doc:"information about the service itself"`
}

// handler method for root
func (service *readmeService) getRoot(ctx context.Context,
	input *struct{}) (*ServiceInfoOutput, error) {

	slog.Info("Querying root endpoint...")
	return &ServiceInfoOutput{
		Body: ServiceInfoResponse{
			Name:          service.Name,
			Version:       service.Version,
			Uptime:        int(service.uptime()),
			Documentation: "/docs",
			Server:        service.Client.URL,
		},
	}, nil
}

type StudyOutput struct {
	Body StudyResponse `doc:"the flattened metadata of the requested study"`
}

// handler method for a study's flattened metadata
func (service *readmeService) getStudy(ctx context.Context,
	input *struct {
		Pid string `path:"pid" example:"doi:10.5072%2FFK2%2FABCDEF" doc:"the study's (URL-encoded) persistent identifier"`
	}) (*StudyOutput, error) {

	slog.Info(fmt.Sprintf("Querying study %s...", input.Pid))
	study, err := service.study(ctx, input.Pid)
	if err != nil {
		return nil, err
	}
	files, err := study.Files()
	if err != nil {
		return nil, statusError(err)
	}
	output := &StudyOutput{
		Body: StudyResponse{
			Pid:     study.PID(),
			Version: study.Version(),
			Licence: study.License(),
			Fields:  make([]FieldResponse, 0),
			Files:   len(files),
		},
	}
	for _, key := range study.Fields() {
		value, _ := study.Get(key)
		output.Body.Fields = append(output.Body.Fields, FieldResponse{
			Key:   key,
			Label: readme.RenameField(key),
			Value: value,
		})
	}
	return output, nil
}

type ReadmeOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// handler method for a study's readme (Markdown or PDF)
func (service *readmeService) getReadme(ctx context.Context,
	input *struct {
		Pid          string `path:"pid" example:"doi:10.5072%2FFK2%2FABCDEF" doc:"the study's (URL-encoded) persistent identifier"`
		Format       string `query:"format" enum:"markdown,pdf" default:"markdown" doc:"the format of the readme"`
		Dictionaries bool   `query:"dictionaries" doc:"if true, data dictionaries are included for delimited text files"`
	}) (*ReadmeOutput, error) {

	slog.Info(fmt.Sprintf("Creating readme for study %s...", input.Pid))
	study, err := service.study(ctx, input.Pid)
	if err != nil {
		return nil, err
	}
	var options []readme.Option
	if len(config.Readme.Groups) > 0 {
		options = append(options, readme.WithGroups(readme.GroupsFromPrefixes(config.Readme.Groups)))
	}
	if input.Dictionaries {
		options = append(options, readme.WithDescriber(readme.Downloads(service.Client, "")))
	}
	doc, err := readme.New(ctx, study, options...)
	if err != nil {
		return nil, statusError(err)
	}
	if input.Format == "pdf" {
		data, err := doc.PDF()
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		return &ReadmeOutput{ContentType: "application/pdf", Body: data}, nil
	}
	return &ReadmeOutput{
		ContentType: "text/markdown; charset=utf-8",
		Body:        []byte(doc.Markdown()),
	}, nil
}

type CollectionOutput struct {
	Body CollectionResponse `doc:"the collections and studies within the requested collection"`
}

// handler method for a collection's contents
func (service *readmeService) getCollection(ctx context.Context,
	input *struct {
		Alias string `path:"alias" example:"ubc" doc:"the collection's short name or numeric ID"`
	}) (*CollectionOutput, error) {

	slog.Info(fmt.Sprintf("Walking collection %s...", input.Alias))
	walker := collections.NewWalker(service.Client, input.Alias)
	nodes, err := walker.Collections(ctx, "")
	if err != nil {
		return nil, statusError(err)
	}
	pids, err := walker.StudyIDs(ctx, input.Alias)
	if err != nil {
		return nil, statusError(err)
	}
	return &CollectionOutput{
		Body: CollectionResponse{
			Alias:       input.Alias,
			Collections: nodes,
			Studies:     pids,
		},
	}, nil
}

// returns the uptime for the service in seconds
func (service *readmeService) uptime() float64 {
	return time.Since(service.StartTime).Seconds()
}

// tags each request with an ID, logged and returned in the X-Request-Id
// header
func requestIds(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		slog.Debug(fmt.Sprintf("%s %s (request %s)", r.Method, r.URL.EscapedPath(), id))
		next.ServeHTTP(w, r)
	})
}

// constructs a readme service given our configuration
func NewReadmeService() (Service, error) {

	// validate our configuration
	if config.Service.Server == "" {
		return nil, fmt.Errorf("No service server was specified.")
	}
	server, found := config.Servers[config.Service.Server]
	if !found {
		return nil, fmt.Errorf("Service server '%s' is not configured.", config.Service.Server)
	}
	key, err := credentials.ServerKey(config.Service.Server)
	if err != nil {
		return nil, err
	}

	service := new(readmeService)
	service.Name = "dvutils readme service"
	service.Version = Version
	service.Port = -1
	service.Client = dataverse.NewClient(server.URL, key)

	// set up routing (persistent IDs are matched in their encoded form)
	service.Router = mux.NewRouter()
	service.Router.UseEncodedPath()
	service.Router.Use(requestIds)
	service.API = humamux.New(service.Router, huma.DefaultConfig(service.Name, service.Version))
	huma.Get(service.API, "/", service.getRoot)

	// API v1
	huma.Get(service.API, "/api/v1/studies/{pid}", service.getStudy)
	huma.Get(service.API, "/api/v1/studies/{pid}/readme", service.getReadme)
	huma.Get(service.API, "/api/v1/collections/{alias}", service.getCollection)

	return service, nil
}

// starts the readme service
func (service *readmeService) Start(port int) error {
	slog.Info(fmt.Sprintf("Starting %s on port %d...", service.Name, port))
	slog.Info(fmt.Sprintf("(Accepting up to %d connections)", config.Service.MaxConnections))

	service.StartTime = time.Now()

	// create a listener that limits the number of incoming connections
	service.Port = port
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	defer listener.Close()
	listener = netutil.LimitListener(listener, config.Service.MaxConnections)

	// start the server
	service.Server = &http.Server{
		Handler: service.Router}
	err = service.Server.Serve(listener)

	// we don't report the server closing as an error
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// gracefully shuts down the service without interrupting active connections
func (service *readmeService) Shutdown(ctx context.Context) error {
	if service.Server != nil {
		return service.Server.Shutdown(ctx)
	}
	return nil
}

// closes down the service abruptly, freeing all resources
func (service *readmeService) Close() {
	if service.Server != nil {
		service.Server.Close()
	}
}
