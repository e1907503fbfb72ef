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

package config

import (
	"fmt"
	"time"
)

// a Dataverse installation that the utilities talk to
type serverConfig struct {
	// base URL of the installation (e.g. https://borealisdata.ca)
	URL string `yaml:"url"`
	// API key (optional; required for drafts and restricted material)
	Key string `yaml:"key"`
	// path to a fernet-encrypted credentials file holding the API key, used
	// when no key is given directly
	KeyFile string `yaml:"key_file"`
}

func (s serverConfig) validate(name string) error {
	if s.URL == "" {
		return fmt.Errorf("No URL was given for server '%s'", name)
	}
	if !validURL(s.URL) {
		return fmt.Errorf("Invalid URL for server '%s': %s", name, s.URL)
	}
	return nil
}

// HTTP transport parameters for all requests to Dataverse servers
type httpConfig struct {
	// ceiling for an ordinary request (seconds)
	Timeout int `yaml:"timeout"`
	// ceiling for a file upload or download (seconds)
	UploadTimeout int `yaml:"upload_timeout"`
	// maximum number of retries for 429/5xx responses
	RetryMax int `yaml:"retry_max"`
	// bounds on the exponential backoff between retries (seconds)
	RetryWaitMin int `yaml:"retry_wait_min"`
	RetryWaitMax int `yaml:"retry_wait_max"`
	// value for the User-Agent header sent with every request
	UserAgent string `yaml:"user_agent"`
}

func defaultHTTPConfig() httpConfig {
	return httpConfig{
		Timeout:       100,
		UploadTimeout: 1000,
		RetryMax:      10,
		RetryWaitMin:  1,
		RetryWaitMax:  30,
		UserAgent:     "dvutils",
	}
}

func (h httpConfig) validate() error {
	if h.Timeout <= 0 || h.UploadTimeout <= 0 {
		return fmt.Errorf("Invalid HTTP timeouts: %d/%d (must be positive)",
			h.Timeout, h.UploadTimeout)
	}
	if h.RetryMax < 0 {
		return fmt.Errorf("Invalid retry_max: %d (must be non-negative)", h.RetryMax)
	}
	if h.RetryWaitMin < 0 || h.RetryWaitMax < h.RetryWaitMin {
		return fmt.Errorf("Invalid retry wait bounds: %d-%d", h.RetryWaitMin, h.RetryWaitMax)
	}
	return nil
}

// returns the request timeout as a duration
func (h httpConfig) RequestTimeout() time.Duration {
	return time.Duration(h.Timeout) * time.Second
}

// returns the upload/download timeout as a duration
func (h httpConfig) TransferTimeout() time.Duration {
	return time.Duration(h.UploadTimeout) * time.Second
}

// readme rendering overrides
type readmeConfig struct {
	// field name prefixes treated as repeatable groups (replaces the defaults
	// if non-empty)
	Groups []string `yaml:"groups"`
}
