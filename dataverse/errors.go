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

package dataverse

import (
	"fmt"
)

// this error type is returned when a Dataverse server responds with a status
// that doesn't fall into one of the more specific categories below
type StatusError struct {
	Method, URL string
	Status      int
	Message     string
}

func (e StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s failed with status %d", e.Method, e.URL, e.Status)
}

// indicates that the API key (or lack of one) doesn't grant access to the
// requested resource
type UnauthorizedError struct {
	Server, Resource string
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("Not authorized to access '%s' on %s (do you need an API key?)",
		e.Resource, e.Server)
}

// this error type is returned when a resource is requested and is not found
type NotFoundError struct {
	Server, Resource string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("Can't access '%s' on %s: not found", e.Resource, e.Server)
}

// indicates that a server exists but is currently unavailable
type UnavailableError struct {
	Server string
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("Cannot reach Dataverse server %s: unavailable", e.Server)
}

// this error type is returned when a server reports a version string that
// can't be interpreted
type InvalidVersionError struct {
	Version string
}

func (e InvalidVersionError) Error() string {
	return fmt.Sprintf("Invalid Dataverse version string: '%s'", e.Version)
}

// this error type is returned when a response body isn't the JSON we expect
type InvalidResponseError struct {
	URL, Message string
}

func (e InvalidResponseError) Error() string {
	return fmt.Sprintf("Invalid response from %s: %s", e.URL, e.Message)
}

// this error type is emitted if an endpoint redirects an HTTPS request to an
// HTTP endpoint (it's NUTS that this can happen!)
type DowngradedRedirectError struct {
	Endpoint string
}

func (e DowngradedRedirectError) Error() string {
	return fmt.Sprintf("The endpoint %s is attempting to downgrade an HTTPS request to HTTP",
		e.Endpoint)
}

// indicates that a study stayed locked (e.g. by file ingest) for too long to
// continue
type LockedError struct {
	PID string
}

func (e LockedError) Error() string {
	return fmt.Sprintf("Study %s remained locked", e.PID)
}
