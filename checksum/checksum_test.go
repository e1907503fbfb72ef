package checksum

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigests(t *testing.T) {
	// digests of "abc"
	expected := map[string]string{
		"MD5":     "900150983cd24fb0d6963f7d28e17f72",
		"SHA-1":   "a9993e364706816aba3e25717850c26c9cd0d89d",
		"SHA-256": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		"sha512": "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a" +
			"2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f",
	}
	for algorithm, digest := range expected {
		d, err := Digest(strings.NewReader("abc"), algorithm)
		assert.Nil(t, err)
		assert.Equal(t, digest, d, algorithm)
	}
}

func TestBlake2(t *testing.T) {
	d, err := Digest(strings.NewReader("abc"), "blake2b")
	assert.Nil(t, err)
	assert.Equal(t, 128, len(d))
	d, err = Digest(strings.NewReader("abc"), "BLAKE2s")
	assert.Nil(t, err)
	assert.Equal(t, 64, len(d))
}

func TestUnsupported(t *testing.T) {
	assert.False(t, Supported("crc32"))
	assert.True(t, Supported("SHA-384"))
	_, err := Digest(strings.NewReader("abc"), "crc32")
	var hashErr *UnsupportedHashError
	assert.True(t, errors.As(err, &hashErr))
	assert.Equal(t, "Unsupported checksum algorithm: crc32", err.Error())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc.txt")
	assert.Nil(t, os.WriteFile(path, []byte("abc"), 0644))
	d, err := File(path, "MD5")
	assert.Nil(t, err)
	assert.True(t, Equal("900150983CD24FB0D6963F7D28E17F72", d))

	_, err = File(filepath.Join(t.TempDir(), "missing"), "MD5")
	assert.NotNil(t, err)
}
