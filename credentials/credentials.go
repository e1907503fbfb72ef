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

// This package reads and writes API keys for Dataverse installations kept in
// a fernet-encrypted, tab-delimited file.
package credentials

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/fernet/fernet-go"

	"github.com/dvutils/dvutils/config"
)

// the environment variable holding the (base64-encoded) fernet secret for
// encrypted key files
const SecretVariable = "DVUTILS_SECRET"

// indicates that an encrypted key file was configured but no secret was
// available to decrypt it
type MissingSecretError struct {
	File string
}

func (e MissingSecretError) Error() string {
	return fmt.Sprintf("Can't decrypt %s: %s is not set", e.File, SecretVariable)
}

// indicates that a key file couldn't be decrypted with the given secret
type DecryptionError struct {
	File string
}

func (e DecryptionError) Error() string {
	return fmt.Sprintf("Can't decrypt %s: invalid secret or corrupt file", e.File)
}

// A Store maps Dataverse installations (by configured name or base URL) to
// API keys.
type Store struct {
	KeyForServer map[string]string
}

// Reads the encrypted key file at the given path. The plaintext content is a
// tab-delimited file with records like so:
// server\tkey
// where server is a configured server name or a base URL. Lines beginning
// with '#' are ignored.
func ReadKeyFile(keyFilePath, secret string) (*Store, error) {
	keys, err := fernet.DecodeKeys(secret)
	if err != nil {
		return nil, err
	}
	encryptedText, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	plainText := fernet.VerifyAndDecrypt(bytes.TrimSpace(encryptedText), -1, keys)
	if plainText == nil {
		return nil, &DecryptionError{File: keyFilePath}
	}

	reader := csv.NewReader(bytes.NewReader(plainText))
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = 2

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	store := Store{KeyForServer: make(map[string]string)}
	for _, record := range records {
		store.KeyForServer[serverKey(record[0])] = strings.TrimSpace(record[1])
	}
	return &store, nil
}

// Encrypts the store with the given secret and writes it to the given path.
func (s Store) WriteKeyFile(keyFilePath, secret string) error {
	key, err := fernet.DecodeKey(secret)
	if err != nil {
		return err
	}
	var plainText bytes.Buffer
	writer := csv.NewWriter(&plainText)
	writer.Comma = '\t'
	servers := make([]string, 0, len(s.KeyForServer))
	for server := range s.KeyForServer {
		servers = append(servers, server)
	}
	slices.Sort(servers)
	for _, server := range servers {
		if err := writer.Write([]string{server, s.KeyForServer[server]}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	token, err := fernet.EncryptAndSign(plainText.Bytes(), key)
	if err != nil {
		return err
	}
	return os.WriteFile(keyFilePath, token, 0600)
}

// given a server name or base URL, returns its API key
func (s Store) Key(server string) (string, bool) {
	key, found := s.KeyForServer[serverKey(server)]
	return key, found
}

// server names are used as given; anything that looks like a URL is
// normalized
func serverKey(server string) string {
	server = strings.TrimSpace(server)
	if strings.Contains(server, ".") || strings.Contains(server, "://") {
		return config.NormalizeURL(server)
	}
	return server
}

// Returns the API key for the configured server with the given name: its key
// if given, otherwise the key found under its name or URL in its encrypted
// key file (decrypted with the secret in $DVUTILS_SECRET). Servers with
// neither have no key, which is fine for public material.
func ServerKey(name string) (string, error) {
	server, found := config.Servers[name]
	if !found {
		return "", fmt.Errorf("Unknown server: '%s'", name)
	}
	if server.Key != "" || server.KeyFile == "" {
		return server.Key, nil
	}
	secret := os.Getenv(SecretVariable)
	if secret == "" {
		return "", &MissingSecretError{File: server.KeyFile}
	}
	store, err := ReadKeyFile(server.KeyFile, secret)
	if err != nil {
		return "", err
	}
	if key, found := store.Key(name); found {
		return key, nil
	}
	key, _ := store.Key(server.URL)
	return key, nil
}
