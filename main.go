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

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dvutils/dvutils/config"
	"github.com/dvutils/dvutils/credentials"
	"github.com/dvutils/dvutils/dataverse"
)

// global command line options
var (
	configFile string
	serverName string
	serverURL  string
	apiKey     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "dvutils",
	Short: "Utilities for Dataverse installations",
	Long: `dvutils reads studies and collections from Dataverse installations: it
renders readmes, lists files, uploads files, inventories collections,
replaces terms of use, deletes drafts and migrates studies between
installations.

Servers come from a YAML configuration file (--config), or from --url and
--key for a single installation.`,
	SilenceUsage:      true,
	PersistentPreRunE: initialize,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&serverName, "server", "s", "", "name of a configured server")
	flags.StringVarP(&serverURL, "url", "u", "", "Dataverse installation base URL")
	flags.StringVarP(&apiKey, "key", "k", "", "API key (required for drafts and restricted material)")
	flags.BoolVar(&verbose, "verbose", false, "log debugging messages")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectionInfoCmd)
	rootCmd.AddCommand(readmeCmd)
	rootCmd.AddCommand(listFilesCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(replaceTermsCmd)
	rootCmd.AddCommand(serveCmd)
}

// sets up logging and reads the configuration
func initialize(cmd *cobra.Command, args []string) error {
	logLevel := new(slog.LevelVar)
	if verbose {
		logLevel.Set(slog.LevelDebug)
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))

	if cmd == versionCmd || cmd == manifestCmd {
		return nil
	}
	if configFile != "" {
		slog.Debug(fmt.Sprintf("Reading configuration from '%s'...", configFile))
		b, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("Couldn't read configuration data: %s", err.Error())
		}
		return config.Init(b)
	}
	if serverURL == "" {
		return fmt.Errorf("Either --config or --url must be given")
	}
	return config.InitDefault(serverURL, apiKey)
}

// returns a client for the installation selected by --url or --server
func sourceClient() (*dataverse.Client, error) {
	if serverURL != "" {
		return dataverse.NewClient(serverURL, apiKey), nil
	}
	name := serverName
	if name == "" {
		name = config.Service.Server
	}
	return serverClient(name, apiKey)
}

// returns a client for the configured server with the given name, using the
// given key if it isn't empty
func serverClient(name, key string) (*dataverse.Client, error) {
	if name == "" {
		return nil, fmt.Errorf("No server selected (use --server or --url)")
	}
	server, found := config.Servers[name]
	if !found {
		return nil, fmt.Errorf("Unknown server: '%s'", name)
	}
	if key == "" {
		var err error
		if key, err = credentials.ServerKey(name); err != nil {
			return nil, err
		}
	}
	return dataverse.NewClient(server.URL, key), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
