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

// This package computes file digests using the checksum algorithms Dataverse
// reports for its files.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
)

// indicates that a checksum algorithm isn't supported
type UnsupportedHashError struct {
	Algorithm string
}

func (e UnsupportedHashError) Error() string {
	return fmt.Sprintf("Unsupported checksum algorithm: %s", e.Algorithm)
}

// hash constructors by normalized algorithm name
var algorithms = map[string]func() hash.Hash{
	"md5":     md5.New,
	"sha1":    sha1.New,
	"sha224":  sha256.New224,
	"sha256":  sha256.New,
	"sha384":  sha512.New384,
	"sha512":  sha512.New,
	"blake2b": newBlake2b,
	"blake2s": newBlake2s,
}

func newBlake2b() hash.Hash {
	h, _ := blake2b.New512(nil)
	return h
}

func newBlake2s() hash.Hash {
	h, _ := blake2s.New256(nil)
	return h
}

// normalizes an algorithm name as reported by Dataverse ("MD5", "SHA-1",
// "SHA-256", ...) to one of our keys ("md5", "sha1", "sha256", ...)
func normalize(algorithm string) string {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	return strings.NewReplacer("-", "", "_", "").Replace(name)
}

// returns true if the given algorithm is supported
func Supported(algorithm string) bool {
	_, found := algorithms[normalize(algorithm)]
	return found
}

// creates a hash for the given algorithm
func New(algorithm string) (hash.Hash, error) {
	newHash, found := algorithms[normalize(algorithm)]
	if !found {
		return nil, &UnsupportedHashError{Algorithm: algorithm}
	}
	return newHash(), nil
}

// returns the hex digest of everything read from r
func Digest(r io.Reader, algorithm string) (string, error) {
	h, err := New(algorithm)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// returns the hex digest of the file at the given path
func File(path, algorithm string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Digest(f, algorithm)
}

// returns true if the digests match, ignoring case
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
