package config

// These tests verify that we can properly configure the utilities with YAML
// input.
import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// a valid service config entry
const VALID_SERVICE string = `
service:
  port: 8080
  max_connections: 100
  server: borealis
`

// a valid HTTP config entry
const VALID_HTTP string = `
http:
  timeout: 50
  upload_timeout: 500
  retry_max: 3
  user_agent: dvutils-test
`

// a valid servers config entry
const VALID_SERVERS string = `
servers:
  borealis:
    url: borealisdata.ca/
    key: ${DVUTILS_TEST_KEY}
  demo:
    url: https://demo.dataverse.org
`

// tests whether config.Init reports an error for blank input
func TestInitRejectsBlankInput(t *testing.T) {
	b := []byte("")
	err := Init(b)
	assert.NotNil(t, err, "Blank config didn't trigger an error.")
}

// tests whether config.Init reports an error for an invalid port
func TestInitRejectsBadPort(t *testing.T) {
	yaml := "service:\n  port: -1\n\n" + VALID_SERVERS
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with bad port didn't trigger an error.")
	yaml = "service:\n  port: 1000000\n\n" + VALID_SERVERS
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with bad port didn't trigger an error.")
}

// tests whether config.Init reports an error for an invalid max number of
// connections
func TestInitRejectsBadMaxConnections(t *testing.T) {
	yaml := "service:\n  max_connections: 0\n\n" + VALID_SERVERS
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with bad max_connections didn't trigger an error.")
}

// tests whether config.Init rejects a configuration with no servers
func TestInitRejectsNoServersDefined(t *testing.T) {
	yaml := VALID_HTTP
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with no servers didn't trigger an error.")
}

// tests whether config.Init rejects a service that refers to an unknown server
func TestInitRejectsUnknownServiceServer(t *testing.T) {
	yaml := "service:\n  server: nope\n\n" + VALID_SERVERS
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with unknown service server didn't trigger an error.")
}

// tests whether config.Init rejects a server with no URL or a bad one
func TestInitRejectsBadServerURL(t *testing.T) {
	yaml := "servers:\n  ohaicorp:\n    key: abc\n"
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with missing server URL didn't trigger an error.")

	yaml = "servers:\n  ohaicorp:\n    url: haha hahaha\n"
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with bad server URL didn't trigger an error.")
}

// tests whether config.Init rejects nonsensical HTTP parameters
func TestInitRejectsBadHTTPParameters(t *testing.T) {
	yaml := "http:\n  timeout: 0\n" + VALID_SERVERS
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with zero timeout didn't trigger an error.")

	yaml = "http:\n  retry_max: -2\n" + VALID_SERVERS
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with negative retry_max didn't trigger an error.")

	yaml = "http:\n  retry_wait_min: 10\n  retry_wait_max: 2\n" + VALID_SERVERS
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with inverted retry waits didn't trigger an error.")
}

// Tests whether config.Init returns no error for a configuration that is
// (ostensibly) valid.
func TestInitAcceptsValidInput(t *testing.T) {
	yaml := VALID_SERVICE + VALID_HTTP + VALID_SERVERS
	err := Init([]byte(yaml))
	assert.Nil(t, err, fmt.Sprintf("Valid YAML input produced an error: %s", err))
}

// Tests whether config.Init properly initializes its globals for valid input.
func TestInitProperlySetsGlobals(t *testing.T) {
	os.Setenv("DVUTILS_TEST_KEY", "xyzzy")
	yaml := VALID_SERVICE + VALID_HTTP + VALID_SERVERS
	err := Init([]byte(yaml))
	assert.Nil(t, err, fmt.Sprintf("Valid YAML input produced an error: %s", err))

	assert.Equal(t, 8080, Service.Port)
	assert.Equal(t, 100, Service.MaxConnections)
	assert.Equal(t, 2, len(Servers))
	assert.Equal(t, "https://borealisdata.ca", Servers["borealis"].URL)
	assert.Equal(t, "xyzzy", Servers["borealis"].Key)
	assert.Equal(t, 50*time.Second, HTTP.RequestTimeout())
	assert.Equal(t, 500*time.Second, HTTP.TransferTimeout())
	assert.Equal(t, 3, HTTP.RetryMax)
	assert.Equal(t, "dvutils-test", HTTP.UserAgent)

	// unspecified parameters keep their defaults
	assert.Equal(t, 1, HTTP.RetryWaitMin)
	assert.Equal(t, 30, HTTP.RetryWaitMax)
}

func TestInitDefault(t *testing.T) {
	err := InitDefault(" demo.dataverse.org/ ", "abc")
	assert.Nil(t, err)
	assert.Equal(t, "https://demo.dataverse.org", Servers["default"].URL)
	assert.Equal(t, "default", Service.Server)
	assert.Equal(t, 10, HTTP.RetryMax)

	err = InitDefault("", "")
	assert.NotNil(t, err, "Default config with no URL didn't trigger an error.")
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://borealisdata.ca", NormalizeURL("borealisdata.ca"))
	assert.Equal(t, "https://borealisdata.ca", NormalizeURL("https://borealisdata.ca/"))
	assert.Equal(t, "http://localhost:8080", NormalizeURL("http://localhost:8080"))
	assert.Equal(t, "", NormalizeURL("  "))
}

// this function gets called at the begіnning of a test session
func setup() {
}

// this function gets called after all tests have been run
func breakdown() {
}

// This runs setup, runs all tests, and does breakdown.
func TestMain(m *testing.M) {
	var status int
	setup()
	status = m.Run()
	breakdown()
	os.Exit(status)
}
