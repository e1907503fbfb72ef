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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/dvutils/dvutils/config"
)

// A Client talks to a single Dataverse installation. Every request carries a
// User-Agent header and, if a key is given, an X-Dataverse-key header. Calls
// are synchronous: each blocks until a response (or error) arrives.
type Client struct {
	// base URL of the installation, e.g. https://borealisdata.ca
	URL string
	// API key (may be empty for public material)
	Key string
	// value of the User-Agent header
	UserAgent string
	// client for ordinary API requests
	requests *retryablehttp.Client
	// client for file uploads and downloads (longer timeout)
	transfers *retryablehttp.Client
}

// creates a client for the Dataverse installation at the given URL, using the
// configured HTTP policy
func NewClient(baseURL, apiKey string) *Client {
	waitMin := time.Duration(config.HTTP.RetryWaitMin) * time.Second
	waitMax := time.Duration(config.HTTP.RetryWaitMax) * time.Second
	userAgent := config.HTTP.UserAgent
	if userAgent == "" {
		userAgent = "dvutils"
	}
	return &Client{
		URL:       config.NormalizeURL(baseURL),
		Key:       apiKey,
		UserAgent: userAgent,
		requests: RetryingHttpClient(config.HTTP.RequestTimeout(), config.HTTP.RetryMax,
			waitMin, waitMax),
		transfers: RetryingHttpClient(config.HTTP.TransferTimeout(), config.HTTP.RetryMax,
			waitMin, waitMax),
	}
}

// the standard Dataverse response envelope
type envelope struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// extracts a human-readable message from an error response body
func errorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Message) > 0 {
		var message string
		if json.Unmarshal(env.Message, &message) == nil {
			return message
		}
		return string(env.Message)
	}
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}

// builds the full URL for the given API resource and query values
func (c Client) resourceURL(resource string, values url.Values) (string, error) {
	res, err := url.Parse(c.URL)
	if err != nil {
		return "", err
	}
	res.Path = strings.TrimSuffix(res.Path, "/") + "/" + strings.TrimPrefix(resource, "/")
	if values != nil {
		res.RawQuery = values.Encode()
	}
	return res.String(), nil
}

// adds our identifying and authorization headers to the given request
func (c Client) addHeaders(req *retryablehttp.Request) {
	req.Header.Set("User-Agent", c.UserAgent)
	if c.Key != "" {
		req.Header.Set("X-Dataverse-key", c.Key)
	}
}

// performs a request, returning the response on success (2xx) or an
// appropriate error otherwise; the caller closes the response body
func (c Client) do(client *retryablehttp.Client, req *retryablehttp.Request,
	resource string) (*http.Response, error) {
	c.addHeaders(req)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case 200, 201, 202, 204:
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	switch resp.StatusCode {
	case 401, 403:
		return nil, &UnauthorizedError{Server: c.URL, Resource: resource}
	case 404:
		return nil, &NotFoundError{Server: c.URL, Resource: resource}
	case 503:
		return nil, &UnavailableError{Server: c.URL}
	default:
		return nil, &StatusError{
			Method:  req.Method,
			URL:     req.URL.String(),
			Status:  resp.StatusCode,
			Message: errorMessage(body),
		}
	}
}

// performs a request with the given method and body, returning the response
// body and/or error
func (c Client) send(ctx context.Context, method, resource string, values url.Values,
	body any, contentType string) ([]byte, error) {
	u, err := c.resourceURL(resource, values)
	if err != nil {
		return nil, err
	}
	slog.Debug(fmt.Sprintf("%s: %s", method, u))
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(c.requests, req, resource)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// performs a GET request on the given resource, returning the resulting
// response body and/or error
func (c Client) Get(ctx context.Context, resource string, values url.Values) ([]byte, error) {
	return c.send(ctx, http.MethodGet, resource, values, nil, "")
}

// performs a POST request with a JSON body on the given resource
func (c Client) Post(ctx context.Context, resource string, values url.Values,
	body []byte) ([]byte, error) {
	return c.send(ctx, http.MethodPost, resource, values, body, "application/json")
}

// performs a PUT request with a JSON body on the given resource
func (c Client) Put(ctx context.Context, resource string, values url.Values,
	body []byte) ([]byte, error) {
	return c.send(ctx, http.MethodPut, resource, values, body, "application/json")
}

// performs a DELETE request on the given resource
func (c Client) Delete(ctx context.Context, resource string, values url.Values) ([]byte, error) {
	return c.send(ctx, http.MethodDelete, resource, values, nil, "")
}

// unwraps the data field of a standard response envelope
func data(u string, body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &InvalidResponseError{URL: u, Message: err.Error()}
	}
	if env.Status != "" && env.Status != "OK" {
		return nil, &InvalidResponseError{URL: u, Message: errorMessage(body)}
	}
	return env.Data, nil
}

// fetches the given resource and decodes the data field of its envelope into v
func (c Client) getData(ctx context.Context, resource string, values url.Values, v any) error {
	body, err := c.Get(ctx, resource, values)
	if err != nil {
		return err
	}
	d, err := data(resource, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(d, v); err != nil {
		return &InvalidResponseError{URL: resource, Message: err.Error()}
	}
	return nil
}

// streams the given resource into w, returning the number of bytes written;
// downloads use the (longer) transfer timeout
func (c Client) Download(ctx context.Context, resource string, values url.Values,
	w io.Writer) (int64, error) {
	u, err := c.resourceURL(resource, values)
	if err != nil {
		return 0, err
	}
	slog.Debug(fmt.Sprintf("GET: %s", u))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(c.transfers, req, resource)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// uploads a multipart body produced by the given function (called again for
// each retry) to the given resource
func (c Client) Upload(ctx context.Context, resource string, values url.Values,
	body func() (io.Reader, error), contentType string) ([]byte, error) {
	u, err := c.resourceURL(resource, values)
	if err != nil {
		return nil, err
	}
	slog.Debug(fmt.Sprintf("POST: %s", u))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u,
		retryablehttp.ReaderFunc(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.do(c.transfers, req, resource)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, resp.Body)
	return buf.Bytes(), err
}
