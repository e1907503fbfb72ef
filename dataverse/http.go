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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/StalkR/hsts"
	"github.com/hashicorp/go-retryablehttp"
)

// statuses for which a request is retried with exponential backoff
var retryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Here's a secure HTTP client that can be used to connect to Dataverse
// servers. It sets the given timeout and enables HTTP Strict Transport
// Security (HSTS).
func SecureHttpClient(timeout time.Duration) http.Client {
	client := http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Scheme == "http" && len(via) > 0 && via[0].URL.Scheme == "https" {
				return &DowngradedRedirectError{
					Endpoint: fmt.Sprintf("%s%s", req.URL.Host, req.URL.Path),
				}
			}
			if len(via) >= 10 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
	client.Transport = hsts.New(client.Transport) // enable HSTS
	return client
}

// returns a client that wraps a secure HTTP client, transparently retrying
// requests that fail with one of the retry statuses (or a connection error)
func RetryingHttpClient(timeout time.Duration, retryMax int,
	waitMin, waitMax time.Duration) *retryablehttp.Client {
	httpClient := SecureHttpClient(timeout)
	client := retryablehttp.NewClient()
	client.HTTPClient = &httpClient
	client.RetryMax = retryMax
	client.RetryWaitMin = waitMin
	client.RetryWaitMax = waitMax
	client.CheckRetry = retryPolicy
	client.Backoff = retryablehttp.DefaultBackoff
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = slog.Default()
	return client
}

// retries on connection failures and on the fixed set of retry statuses only
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		var downgrade *DowngradedRedirectError
		if errors.As(err, &downgrade) {
			return false, err
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return slices.Contains(retryStatuses, resp.StatusCode), nil
}
