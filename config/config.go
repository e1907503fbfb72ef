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
	"log/slog"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// a type with service configuration parameters
type serviceConfig struct {
	// port on which the service listens
	Port int `yaml:"port"`
	// maximum number of allowed incoming connections
	MaxConnections int `yaml:"max_connections"`
	// name of the configured server from which the service reads
	Server string `yaml:"server"`
}

// global config variables
var Service serviceConfig
var HTTP httpConfig
var Servers map[string]serverConfig
var Readme readmeConfig

// This struct performs the unmarshalling from the YAML config file and then
// copies its fields to the globals above.
type configFile struct {
	Service serviceConfig           `yaml:"service"`
	HTTP    httpConfig              `yaml:"http"`
	Servers map[string]serverConfig `yaml:"servers"`
	Readme  readmeConfig            `yaml:"readme"`
}

// This helper reads configuration data, returning an error indicating success
// or failure. All environment variables of the form ${ENV_VAR} are expanded.
func readConfig(bytes []byte) error {
	// before we do anything else, expand any provided environment variables
	bytes = []byte(os.ExpandEnv(string(bytes)))

	var conf configFile
	conf.Service.Port = 8080
	conf.Service.MaxConnections = 100
	conf.HTTP = defaultHTTPConfig()
	err := yaml.Unmarshal(bytes, &conf)
	if err != nil {
		slog.Error(fmt.Sprintf("Couldn't parse configuration data: %s", err))
		return err
	}

	// normalize server URLs
	for name, server := range conf.Servers {
		server.URL = NormalizeURL(server.URL)
		conf.Servers[name] = server
	}

	// copy the config data into place
	Service = conf.Service
	HTTP = conf.HTTP
	Servers = conf.Servers
	Readme = conf.Readme

	return err
}

// This helper validates the given service parameters, returning an
// error indicating success or failure.
func validateServiceParameters(params serviceConfig) error {
	if params.Port < 0 || params.Port > 65535 {
		return fmt.Errorf("Invalid port: %d (must be 0-65535)", params.Port)
	}
	if params.MaxConnections <= 0 {
		return fmt.Errorf("Invalid max_connections: %d (must be positive)",
			params.MaxConnections)
	}
	if params.Server != "" {
		if _, found := Servers[params.Server]; !found {
			return fmt.Errorf("Invalid service server: '%s' is not a configured server",
				params.Server)
		}
	}
	return nil
}

// This helper validates the configuration globals, returning an error that
// indicates success or failure.
func validateConfig() error {
	// were we given any servers?
	if len(Servers) == 0 {
		return fmt.Errorf("No servers were provided!")
	}
	for name, server := range Servers {
		if err := server.validate(name); err != nil {
			return err
		}
	}
	if err := HTTP.validate(); err != nil {
		return err
	}
	return validateServiceParameters(Service)
}

// Initializes the configuration using the given YAML byte data.
func Init(yamlData []byte) error {
	err := readConfig(yamlData)
	if err != nil {
		return err
	}
	return validateConfig()
}

// Initializes the configuration with a single server named "default" and
// default HTTP/service parameters. Used when no configuration file is given.
func InitDefault(serverURL, apiKey string) error {
	Service = serviceConfig{Port: 8080, MaxConnections: 100, Server: "default"}
	HTTP = defaultHTTPConfig()
	Readme = readmeConfig{}
	Servers = map[string]serverConfig{
		"default": {
			URL: NormalizeURL(serverURL),
			Key: apiKey,
		},
	}
	return validateConfig()
}

// Returns a cleaned-up Dataverse base URL: surrounding whitespace and slashes
// are removed and an https:// scheme is added if no scheme is present.
func NormalizeURL(rawURL string) string {
	clean := strings.Trim(strings.TrimSpace(rawURL), "/")
	if clean == "" {
		return clean
	}
	if !strings.HasPrefix(clean, "https://") && !strings.HasPrefix(clean, "http://") {
		clean = "https://" + clean
	}
	return clean
}

// checks that the given string is an absolute URL with a host
func validURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != "" && !strings.ContainsAny(u.Host, " ")
}
