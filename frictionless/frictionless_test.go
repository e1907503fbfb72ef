package frictionless

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dvutils/dvutils/metadata"
)

func TestHash(t *testing.T) {
	assert.Equal(t, "abc123", Hash("MD5", "abc123"))
	assert.Equal(t, "sha1:abc123", Hash("SHA-1", "abc123"))
	assert.Equal(t, "sha256:abc123", Hash("SHA-256", "abc123"))
	assert.Equal(t, "", Hash("MD5", ""))
}

func TestName(t *testing.T) {
	assert.Equal(t, "doi-10.5072/fk2/abc", Name("doi:10.5072/FK2/ABC"))
	assert.Equal(t, "my-data_file", Name("My Data_File"))
	assert.Equal(t, "-", Name(""))
}

func TestNewDataResource(t *testing.T) {
	res := NewDataResource(metadata.FileEntry{
		Filename:       "Survey Results.CSV",
		Label:          "Survey Results.tab",
		SizeBytes:      2048,
		ChecksumType:   "SHA-256",
		ChecksumDigest: "ff00",
		ID:             9,
		PID:            "doi:10.5072/FK2/FILE9",
		DirectoryLabel: "raw",
		ContentType:    "text/csv",
	})
	assert.Equal(t, "survey-results", res.Name)
	assert.Equal(t, "raw/Survey Results.CSV", res.Path)
	assert.Equal(t, "csv", res.Format)
	assert.Equal(t, "sha256:ff00", res.Hash)
	assert.Equal(t, "sha256", res.HashAlgorithm())
	assert.Equal(t, "doi:10.5072/FK2/FILE9", res.Id)
	assert.Equal(t, "Survey Results.tab", res.Title)
	assert.Equal(t, int64(2048), res.Bytes)
}

func TestDescriptor(t *testing.T) {
	pkg := DataPackage{
		Name:      "study",
		Resources: []DataResource{{Name: "a", Path: "a.txt", Bytes: 3}},
	}
	descriptor, err := pkg.Descriptor()
	assert.Nil(t, err)
	assert.Equal(t, "study", descriptor["name"])
	resources := descriptor["resources"].([]any)
	assert.Equal(t, 1, len(resources))
	assert.Equal(t, float64(3), resources[0].(map[string]any)["bytes"])
	_, found := descriptor["keywords"]
	assert.False(t, found)
}
