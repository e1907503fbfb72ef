// These tests verify that API keys can be read from (and written to) an
// encrypted tab-separated variable (TSV) file.
package credentials

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"

	"github.com/dvutils/dvutils/config"
	"github.com/dvutils/dvutils/dvtest"
)

// runs setup, runs all tests, and does breakdown
func TestMain(m *testing.M) {
	setup()
	status := m.Run()
	breakdown()
	os.Exit(status)
}

// Fernet encryption/decryption key
var testKey fernet.Key

// temporary testing directory
var testDir string

// path of the encrypted key file
var keyFile string

func setup() {
	dvtest.EnableDebugLogging()

	var err error
	testDir, err = os.MkdirTemp(os.TempDir(), "dvutils-credentials-tests-")
	if err != nil {
		log.Panicf("Couldn't create testing directory: %s", err.Error())
	}
	if err = testKey.Generate(); err != nil {
		log.Panicf("Couldn't generate encryption key: %s", err.Error())
	}

	plaintext := "# server | key\n" +
		"borealis\tb0r3a1is-key\n" +
		"https://demo.dataverse.org/\tdemo-key\n"
	token, err := fernet.EncryptAndSign([]byte(plaintext), &testKey)
	if err != nil {
		log.Panicf("Couldn't encrypt test keys: %s", err.Error())
	}
	keyFile = filepath.Join(testDir, "keys.dat")
	if err = os.WriteFile(keyFile, token, 0600); err != nil {
		log.Panicf("Couldn't write test key file: %s", err.Error())
	}

	yaml := fmt.Sprintf(`
servers:
  borealis:
    url: borealisdata.ca
    key_file: %s
  demo:
    url: https://demo.dataverse.org
    key_file: %s
  direct:
    url: https://dataverse.harvard.edu
    key: direct-key
  public:
    url: https://data.example.org
`, keyFile, keyFile)
	if err = config.Init([]byte(yaml)); err != nil {
		log.Panicf("Couldn't initialize configuration: %s", err.Error())
	}
}

func breakdown() {
	if testDir != "" {
		os.RemoveAll(testDir)
	}
}

func TestReadKeyFile(t *testing.T) {
	store, err := ReadKeyFile(keyFile, testKey.Encode())
	assert.Nil(t, err)
	key, found := store.Key("borealis")
	assert.True(t, found)
	assert.Equal(t, "b0r3a1is-key", key)
	key, found = store.Key("demo.dataverse.org")
	assert.True(t, found)
	assert.Equal(t, "demo-key", key)
	_, found = store.Key("elsewhere")
	assert.False(t, found)
}

func TestReadKeyFileWithWrongSecret(t *testing.T) {
	var other fernet.Key
	assert.Nil(t, other.Generate())
	_, err := ReadKeyFile(keyFile, other.Encode())
	assert.IsType(t, &DecryptionError{}, err)

	_, err = ReadKeyFile(keyFile, "not a key")
	assert.NotNil(t, err)

	_, err = ReadKeyFile(filepath.Join(testDir, "missing.dat"), testKey.Encode())
	assert.NotNil(t, err)
}

func TestWriteKeyFile(t *testing.T) {
	store := Store{KeyForServer: map[string]string{
		"local":       "local-key",
		"https://x.y": "xy-key",
	}}
	path := filepath.Join(testDir, "written.dat")
	assert.Nil(t, store.WriteKeyFile(path, testKey.Encode()))

	read, err := ReadKeyFile(path, testKey.Encode())
	assert.Nil(t, err)
	assert.Equal(t, store.KeyForServer, read.KeyForServer)
}

func TestServerKey(t *testing.T) {
	t.Setenv(SecretVariable, testKey.Encode())

	key, err := ServerKey("borealis")
	assert.Nil(t, err)
	assert.Equal(t, "b0r3a1is-key", key)

	key, err = ServerKey("demo")
	assert.Nil(t, err)
	assert.Equal(t, "demo-key", key)

	key, err = ServerKey("direct")
	assert.Nil(t, err)
	assert.Equal(t, "direct-key", key)

	key, err = ServerKey("public")
	assert.Nil(t, err)
	assert.Equal(t, "", key)

	_, err = ServerKey("nowhere")
	assert.NotNil(t, err)
}

func TestServerKeyWithoutSecret(t *testing.T) {
	t.Setenv(SecretVariable, "")
	_, err := ServerKey("borealis")
	assert.IsType(t, &MissingSecretError{}, err)
}
