package collections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dvutils/dvutils/dataverse"
)

func TestParseStorageSize(t *testing.T) {
	size, err := ParseStorageSize("Total size of the files stored in this dataset: 1,234,567 bytes")
	assert.Nil(t, err)
	assert.Equal(t, int64(1234567), size)

	size, err = ParseStorageSize("Total size of the files stored in this dataset: 148 bytes")
	assert.Nil(t, err)
	assert.Equal(t, int64(148), size)

	_, err = ParseStorageSize("nothing to see")
	assert.NotNil(t, err)
}

func TestDeleteDrafts(t *testing.T) {
	deleter := Deleter{
		Store: dataverse.NewClient(server.URL, ""),
		Batch: 1,
		Pause: time.Millisecond,
	}
	deletions := deleter.Delete(context.Background(),
		[]string{childStudy, "doi:10.5072/FK2/MISSING"})
	assert.Equal(t, 2, len(deletions))
	assert.True(t, deletions[0].Deleted)
	assert.Equal(t, int64(148), deletions[0].Size)
	assert.False(t, deletions[1].Deleted)
	assert.NotNil(t, deletions[1].Err)
	assert.Contains(t, server.Deleted, childStudy)
}

func TestDeleteWithConfirmation(t *testing.T) {
	deleter := Deleter{
		Store:   dataverse.NewClient(server.URL, ""),
		Confirm: func(pid string) bool { return pid == rootStudy },
	}
	deletions := deleter.Delete(context.Background(), []string{grandchildStudy, rootStudy})
	assert.False(t, deletions[0].Deleted)
	assert.Nil(t, deletions[0].Err)
	assert.True(t, deletions[1].Deleted)
}
