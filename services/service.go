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

	"github.com/dvutils/dvutils/collections"
)

type ServiceInfoResponse struct {
	Name          string `json:"name" example:"dvutils readme service" doc:"The name of the service API"`
	Version       string `json:"version" example:"1.0.0" doc:"The version string (major.minor.patch)"`
	Uptime        int    `json:"uptime" example:"345600" doc:"The time the service has been up (seconds)"`
	Documentation string `json:"documentation" example:"/docs" doc:"The OpenAPI documentation endpoint"`
	Server        string `json:"server" example:"https://borealisdata.ca" doc:"The Dataverse installation the service reads from"`
}

type FieldResponse struct {
	Key   string `json:"key" example:"title" doc:"the flattened field name"`
	Label string `json:"label" example:"Title" doc:"the field's readme label"`
	Value string `json:"value" doc:"the field's value (repeated values are joined by '; ')"`
}

type StudyResponse struct {
	// persistent ID of the study
	Pid string `json:"pid" example:"doi:10.5072/FK2/ABCDEF" doc:"the study's persistent identifier"`
	// "major.minor" or version state
	Version string `json:"version" example:"2.1" doc:"the study's latest version"`
	Licence string `json:"licence,omitempty" doc:"the study's licence"`
	// flattened metadata in document order
	Fields []FieldResponse `json:"fields" doc:"the study's flattened metadata, in document order"`
	Files  int             `json:"num_files" doc:"the number of files in the study's latest version"`
}

type CollectionResponse struct {
	// short name of the collection
	Alias string `json:"alias" example:"ubc" doc:"the collection's short name"`
	// every collection below this one, children before their descendants
	Collections []collections.Node `json:"collections" doc:"the collections below this one"`
	// persistent IDs of the studies directly inside the collection
	Studies []string `json:"studies" doc:"persistent IDs of the studies in this collection"`
}

type Service interface {
	// Starts the service on the selected port, returning an error that indicates
	// success or failure.
	Start(port int) error
	// Gracefully shuts down the service without interrupting active connections.
	Shutdown(ctx context.Context) error
	// Closes down the service, freeing all resources.
	Close()
}
