package dataverse

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSecureHttpClient(t *testing.T) {
	client := SecureHttpClient(time.Second * 10)
	assert.Equal(t, time.Second*10, client.Timeout)
	assert.NotNil(t, client.Transport)

	secure_original_request := &http.Request{
		URL: &url.URL{
			Scheme: "https",
			Host:   "example.com",
			Path:   "/",
		},
	}
	insecure_original_request := &http.Request{
		URL: &url.URL{
			Scheme: "http",
			Host:   "example.com",
			Path:   "/",
		},
	}
	secure_redirect_target := &http.Request{
		URL: &url.URL{
			Scheme: "https",
			Host:   "redirect.com",
			Path:   "/",
		},
	}
	insecure_redirect_target := &http.Request{
		URL: &url.URL{
			Scheme: "http",
			Host:   "redirect.com",
			Path:   "/",
		},
	}

	// test secure to secure redirect
	err := client.CheckRedirect(secure_redirect_target, []*http.Request{secure_original_request})
	assert.Nil(t, err)

	// test insecure to secure redirect
	err = client.CheckRedirect(secure_redirect_target, []*http.Request{insecure_original_request})
	assert.Nil(t, err)

	// test secure to insecure redirect
	err = client.CheckRedirect(insecure_redirect_target, []*http.Request{secure_original_request})
	assert.IsType(t, &DowngradedRedirectError{}, err)
	dre := err.(*DowngradedRedirectError)
	assert.Equal(t, "redirect.com/", dre.Endpoint)

	// test insecure to insecure redirect (local test servers)
	err = client.CheckRedirect(insecure_redirect_target, []*http.Request{insecure_original_request})
	assert.Nil(t, err)
}

func TestRetryPolicy(t *testing.T) {
	ctx := context.Background()
	for _, status := range []int{429, 500, 502, 503, 504} {
		retry, err := retryPolicy(ctx, &http.Response{StatusCode: status}, nil)
		assert.True(t, retry, "status %d should be retried", status)
		assert.Nil(t, err)
	}
	for _, status := range []int{200, 400, 401, 403, 404, 501} {
		retry, err := retryPolicy(ctx, &http.Response{StatusCode: status}, nil)
		assert.False(t, retry, "status %d should not be retried", status)
		assert.Nil(t, err)
	}

	// downgraded redirects are never retried
	retry, err := retryPolicy(ctx, nil, &url.Error{
		Op:  "Get",
		URL: "https://example.com",
		Err: &DowngradedRedirectError{Endpoint: "example.com/"},
	})
	assert.False(t, retry)
	assert.NotNil(t, err)

	// nor is anything once the context is done
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err = retryPolicy(canceled, &http.Response{StatusCode: 503}, nil)
	assert.False(t, retry)
	assert.Equal(t, context.Canceled, err)
}

func TestRetryingHttpClient(t *testing.T) {
	client := RetryingHttpClient(5*time.Second, 10, time.Millisecond, time.Second)
	assert.Equal(t, 10, client.RetryMax)
	assert.Equal(t, time.Millisecond, client.RetryWaitMin)
	assert.Equal(t, time.Second, client.RetryWaitMax)
	assert.Equal(t, 5*time.Second, client.HTTPClient.Timeout)
}
