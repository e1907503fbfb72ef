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
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvutils/dvutils/collections"
	"github.com/dvutils/dvutils/config"
	"github.com/dvutils/dvutils/dataverse"
	"github.com/dvutils/dvutils/inventory"
	"github.com/dvutils/dvutils/manifest"
	"github.com/dvutils/dvutils/metadata"
	"github.com/dvutils/dvutils/migrate"
	"github.com/dvutils/dvutils/readme"
	"github.com/dvutils/dvutils/services"
	"github.com/dvutils/dvutils/terms"
	"github.com/dvutils/dvutils/upload"
)

// returns the named file for writing, or standard output if the name is
// empty
func output(filename string) (io.WriteCloser, error) {
	if filename == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(filename)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dvutils version: %s\n", services.Version)
	},
}

// collection-info options
var (
	infoFields    []string
	infoDelimiter string
	infoOutput    string
	infoDatabase  string
)

var collectionInfoCmd = &cobra.Command{
	Use:   "collection-info <collection>",
	Short: "Export the metadata of every study in a collection tree",
	Long: `Walks a collection and every collection below it, writing the selected
fields of each study's latest version as a delimited spreadsheet. Use
--fields all for every field found. With --sqlite, the full inventory is
also saved to an SQLite database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := sourceClient()
		if err != nil {
			return err
		}
		walker := collections.NewWalker(client, args[0])
		inv, err := inventory.Collect(cmd.Context(), walker, "")
		if err != nil {
			return err
		}
		if infoDatabase != "" {
			if err := inv.SaveSQLite(infoDatabase); err != nil {
				return err
			}
		}
		delimiter := []rune(strings.ReplaceAll(infoDelimiter, `\t`, "\t"))
		if len(delimiter) != 1 {
			return fmt.Errorf("Invalid delimiter: '%s'", infoDelimiter)
		}
		out, err := output(infoOutput)
		if err != nil {
			return err
		}
		defer out.Close()
		return inv.WriteDelimited(out, delimiter[0], infoFields)
	},
}

// readme options
var (
	readmeOutput       string
	readmeDictionaries bool
	readmeLocalDir     string
)

var readmeCmd = &cobra.Command{
	Use:   "readme <pid>",
	Short: "Create a readme for a study",
	Long: `Renders the metadata and file list of a study's latest version as a
readme. The output file's extension selects Markdown (.md, .txt) or PDF
(.pdf); without --output, Markdown is written to standard output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := sourceClient()
		if err != nil {
			return err
		}
		raw, err := client.Study(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		study, err := metadata.NewStudy(raw, metadata.WithPID(args[0]))
		if err != nil {
			return err
		}
		var options []readme.Option
		if len(config.Readme.Groups) > 0 {
			options = append(options, readme.WithGroups(readme.GroupsFromPrefixes(config.Readme.Groups)))
		}
		if readmeLocalDir != "" {
			options = append(options, readme.WithDescriber(readme.LocalFiles(readmeLocalDir)))
		} else if readmeDictionaries {
			options = append(options, readme.WithDescriber(readme.Downloads(client, "")))
		}
		doc, err := readme.New(cmd.Context(), study, options...)
		if err != nil {
			return err
		}
		if readmeOutput == "" {
			_, err = fmt.Print(doc.Markdown())
			return err
		}
		return doc.WriteFile(readmeOutput)
	},
}

// list-files options
var (
	listFormat      string
	listAll         bool
	listOutput      string
	listDataPackage string
)

var listFilesCmd = &cobra.Command{
	Use:   "list-files <pid>",
	Short: "List the files of a study",
	Long: `Lists the path, description, landing page and download link of each file
in a study's current version (or all versions with --all), as TSV, CSV or
JSON. With --datapackage, the current version's files are also described in
a Frictionless data package.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := sourceClient()
		if err != nil {
			return err
		}
		m, err := manifest.Fetch(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}
		if listDataPackage != "" {
			if err := m.SaveDataPackage(listDataPackage); err != nil {
				return err
			}
		}
		out, err := output(listOutput)
		if err != nil {
			return err
		}
		defer out.Close()
		return m.Write(out, listFormat, listAll)
	},
}

// delete options
var (
	deleteYes   bool
	deleteBatch int
	deletePause int
)

var deleteCmd = &cobra.Command{
	Use:   "delete <collection | pid...>",
	Short: "Delete draft studies",
	Long: `Deletes the draft versions of the given studies, or of every study in
the given collection tree. Each deletion is confirmed unless --yes is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := sourceClient()
		if err != nil {
			return err
		}
		pids := args
		if len(args) == 1 && !strings.Contains(args[0], ":") {
			pids, err = collectionPIDs(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
		}
		deleter := collections.Deleter{
			Store: client,
			Batch: deleteBatch,
			Pause: time.Duration(deletePause) * time.Second,
		}
		if !deleteYes {
			deleter.Confirm = confirm(bufio.NewReader(os.Stdin), os.Stderr)
		}
		var failed int
		for _, deletion := range deleter.Delete(cmd.Context(), pids) {
			switch {
			case deletion.Err != nil:
				failed++
				fmt.Printf("%s\tfailed\t%s\n", deletion.PID, deletion.Err)
			case deletion.Deleted:
				fmt.Printf("%s\tdeleted\t%d bytes\n", deletion.PID, deletion.Size)
			default:
				fmt.Printf("%s\tskipped\n", deletion.PID)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d drafts couldn't be deleted", failed, len(pids))
		}
		return nil
	},
}

// returns the persistent IDs of the studies in a collection tree
func collectionPIDs(ctx context.Context, client *dataverse.Client, collection string) ([]string, error) {
	walker := collections.NewWalker(client, collection)
	pids, err := walker.StudyIDs(ctx, collection)
	if err != nil {
		return nil, err
	}
	nodes, err := walker.Collections(ctx, collection)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		ids, err := walker.StudyIDs(ctx, node.Alias)
		if err != nil {
			return nil, err
		}
		pids = append(pids, ids...)
	}
	return pids, nil
}

// returns a confirmation prompt reading answers from r
func confirm(r *bufio.Reader, w io.Writer) func(string) bool {
	return func(pid string) bool {
		fmt.Fprintf(w, "Delete draft of %s? [y/N] ", pid)
		answer, _ := r.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

// migrate options
var (
	migrateTarget     string
	migrateTargetURL  string
	migrateTargetKey  string
	migrateCollection string
	migrateReplace    string
	migrateFiles      bool
	migrateTempDir    string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <pid>...",
	Short: "Copy studies to another installation",
	Long: `Copies the metadata of each study's latest version to a new study in a
target collection (--collection), or into the draft of an existing study
(--replace, one study only). The metadata is rewritten for the target's
version. With --files, each file is downloaded, checked against its
checksum and uploaded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (migrateCollection == "") == (migrateReplace == "") {
			return fmt.Errorf("Exactly one of --collection and --replace must be given")
		}
		if migrateReplace != "" && len(args) > 1 {
			return fmt.Errorf("--replace takes a single study")
		}
		source, err := sourceClient()
		if err != nil {
			return err
		}
		var target *dataverse.Client
		if migrateTargetURL != "" {
			target = dataverse.NewClient(migrateTargetURL, migrateTargetKey)
		} else if target, err = serverClient(migrateTarget, migrateTargetKey); err != nil {
			return err
		}
		migrator := migrate.NewMigrator(source, target)
		migrator.TempDir = migrateTempDir

		if version, err := target.Version(cmd.Context()); err == nil {
			for _, rule := range migrate.Describe(version) {
				fmt.Fprintf(os.Stderr, "Applying metadata fix: %s\n", rule)
			}
		}
		for _, pid := range args {
			var result migrate.Result
			if migrateReplace != "" {
				result, err = migrator.Replace(cmd.Context(), pid, migrateReplace, migrateFiles)
			} else {
				result, err = migrator.Create(cmd.Context(), pid, migrateCollection, migrateFiles)
			}
			if err != nil {
				return fmt.Errorf("migrating %s: %s", pid, err.Error())
			}
			fmt.Printf("%s\t%s\t%d files\n", result.SourcePID, result.TargetPID, len(result.Files))
		}
		return nil
	},
}

// manifest options
var (
	manifestOutput    string
	manifestTags      []string
	manifestRecursive bool
	manifestHidden    bool
	manifestNoHeader  bool
	manifestMimeTypes bool
	manifestPaths     bool
)

var manifestCmd = &cobra.Command{
	Use:   "manifest <dir | file...>",
	Short: "Write an upload manifest for local files",
	Long: `Writes a tab-separated upload manifest (file, description, tags) for the
given files, or for the files in the given directory. Each file is described
by its name without extension. Edit the manifest, then pass it to upload.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []upload.Entry
		for _, arg := range args {
			info, err := os.Stat(arg)
			if err != nil {
				return err
			}
			opts := upload.ScanOptions{
				Recursive: manifestRecursive,
				Hidden:    manifestHidden,
				Tags:      manifestTags,
				MimeTypes: manifestMimeTypes,
			}
			if !info.IsDir() {
				entries = append(entries, upload.Entry{
					File:        arg,
					Description: strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg)),
					Tags:        manifestTags,
				})
				if manifestMimeTypes {
					entries[len(entries)-1].MimeType = upload.MimeType(arg)
				}
				continue
			}
			scanned, err := upload.Scan(arg, opts)
			if err != nil {
				return err
			}
			entries = append(entries, scanned...)
		}
		out, err := output(manifestOutput)
		if err != nil {
			return err
		}
		defer out.Close()
		return upload.WriteTSV(out, entries, upload.WriteOptions{
			NoHeader:  manifestNoHeader,
			MimeTypes: manifestMimeTypes,
			Paths:     manifestPaths,
		})
	},
}

// upload options
var (
	uploadTrim     string
	uploadRestrict bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <pid> <manifest.tsv>",
	Short: "Upload files listed in a manifest to a study",
	Long: `Uploads each file listed in a tab-separated upload manifest to the given
study, with its description and tags. Local directories become study folders
after removing the --trim prefix. Each upload is checked against the
server's checksum.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		entries, err := upload.ReadTSV(f)
		if err != nil {
			return err
		}
		client, err := sourceClient()
		if err != nil {
			return err
		}
		uploader := upload.NewUploader(client)
		uploader.Trim = uploadTrim
		uploader.Restrict = uploadRestrict
		results, err := uploader.Upload(cmd.Context(), args[0], entries)
		for _, result := range results {
			fmt.Printf("%s\t%d\t%s\n", result.Entry.File, result.Added.Id, result.DirectoryLabel)
		}
		return err
	},
}

// replace-terms options
var (
	termsFile      string
	termsRepublish bool
)

var replaceTermsCmd = &cobra.Command{
	Use:   "replace-terms <pid>...",
	Short: "Replace the terms of use of studies",
	Long: `Replaces the terms of use of each study with the contents of a file,
optionally republishing it without incrementing its version (superusers
only). Requires Dataverse 5.6 or later.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(termsFile)
		if err != nil {
			return err
		}
		client, err := sourceClient()
		if err != nil {
			return err
		}
		replacer := terms.Replacer{Store: client, Republish: termsRepublish}
		replacements, err := replacer.Replace(cmd.Context(), args, string(text))
		if err != nil {
			return err
		}
		var failed int
		for _, replacement := range replacements {
			switch {
			case replacement.Err != nil:
				failed++
				fmt.Printf("%s\tfailed\t%s\n", replacement.PID, replacement.Err)
			case replacement.Republished:
				fmt.Printf("%s\treplaced\trepublished\n", replacement.PID)
			default:
				fmt.Printf("%s\treplaced\n", replacement.PID)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d studies couldn't be updated", failed, len(args))
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the readme service",
	Long: `Serves study metadata, readmes and collection listings from the
configured service server over a REST API until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := services.NewReadmeService()
		if err != nil {
			return err
		}

		// Start the service in a goroutine so it doesn't block.
		go func() {
			err := service.Start(config.Service.Port)
			if err != nil {
				log.Println(err.Error())
			}
		}()

		// Intercept the SIGINT, SIGHUP, SIGTERM, and SIGQUIT signals, shutting
		// down the service as gracefully as possible if they are encountered.
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan,
			syscall.SIGINT,
			syscall.SIGHUP,
			syscall.SIGTERM,
			syscall.SIGQUIT)

		// Block till we receive one of the above signals.
		<-sigChan

		// Create a deadline to wait for.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Wait for connections to close until the deadline elapses.
		log.Println("Shutting down")
		return service.Shutdown(ctx)
	},
}

func init() {
	flags := collectionInfoCmd.Flags()
	flags.StringSliceVarP(&infoFields, "fields", "f", inventory.DefaultFields,
		`fields to export ("all" for every field)`)
	flags.StringVarP(&infoDelimiter, "delimiter", "d", `\t`, "output delimiter")
	flags.StringVarP(&infoOutput, "output", "o", "", "output file (default: standard output)")
	flags.StringVar(&infoDatabase, "sqlite", "", "also save the inventory to this SQLite database")

	flags = readmeCmd.Flags()
	flags.StringVarP(&readmeOutput, "output", "o", "", "output file (.md, .txt or .pdf)")
	flags.BoolVar(&readmeDictionaries, "dictionaries", false,
		"download delimited text files and add data dictionaries")
	flags.StringVar(&readmeLocalDir, "local-dir", "",
		"add data dictionaries for files found in this directory")

	flags = listFilesCmd.Flags()
	flags.StringVarP(&listFormat, "format", "F", "tsv", "output format: tsv, csv or json")
	flags.BoolVarP(&listAll, "all", "a", false, "list the files of all versions")
	flags.StringVarP(&listOutput, "output", "o", "", "output file (default: standard output)")
	flags.StringVar(&listDataPackage, "datapackage", "",
		"also write a Frictionless data package descriptor to this file")

	flags = deleteCmd.Flags()
	flags.BoolVarP(&deleteYes, "yes", "y", false, "delete without confirmation")
	flags.IntVar(&deleteBatch, "batch", 10, "number of deletions between pauses")
	flags.IntVar(&deletePause, "pause", 1, "pause between batches (seconds)")

	flags = manifestCmd.Flags()
	flags.StringVarP(&manifestOutput, "output", "o", "", "output file (default: standard output)")
	flags.StringSliceVarP(&manifestTags, "tag", "t", upload.DefaultTags, "tags for every file")
	flags.BoolVarP(&manifestRecursive, "recursive", "r", false, "include subdirectories")
	flags.BoolVarP(&manifestHidden, "show-hidden", "a", false, "include hidden files")
	flags.BoolVarP(&manifestNoHeader, "no-header", "x", false, "leave out the header row")
	flags.BoolVarP(&manifestMimeTypes, "mime", "m", false, "add a column of MIME types")
	flags.BoolVarP(&manifestPaths, "path", "p", false, "add an empty column for study folders")

	flags = uploadCmd.Flags()
	flags.StringVar(&uploadTrim, "trim", "", "prefix removed from local directories")
	flags.BoolVar(&uploadRestrict, "restrict", false, "restrict the uploaded files")

	flags = replaceTermsCmd.Flags()
	flags.StringVarP(&termsFile, "file", "f", "", "file holding the new terms of use")
	replaceTermsCmd.MarkFlagRequired("file")
	flags.BoolVarP(&termsRepublish, "republish", "r", false,
		"republish each study without incrementing its version")

	flags = migrateCmd.Flags()
	flags.StringVarP(&migrateTarget, "target", "t", "", "name of the configured target server")
	flags.StringVar(&migrateTargetURL, "target-url", "", "target installation base URL")
	flags.StringVar(&migrateTargetKey, "target-key", "", "target installation API key")
	flags.StringVar(&migrateCollection, "collection", "", "target collection for new studies")
	flags.StringVar(&migrateReplace, "replace", "", "persistent ID of a target study whose draft is replaced")
	flags.BoolVar(&migrateFiles, "files", false, "copy the studies' files as well")
	flags.StringVar(&migrateTempDir, "temp-dir", "", "directory for downloaded files")
}
