package readme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenameField(t *testing.T) {
	cases := map[string]string{
		"versionMinorNumber":     "Version Minor Number",
		"testOfTheThing":         "Test of the Thing",
		"aFieldOfThePeople":      "A Field of the People",
		"termsOfUse":             "Terms of Use",
		"title":                  "Title",
		"alternativeURL":         "Alternative URL",
		"otherIdValue":           "Other Id Value",
		"publicationIDType":      "Publication ID Type",
		"datasetDOI":             "Dataset DOI",
		"study_version":          "Study Version",
		"timePeriodCoveredStart": "Time Period Covered Start",
		"dateOfCollection":       "Date of Collection",
	}
	for name, label := range cases {
		assert.Equal(t, label, RenameField(name), name)
	}
}

// renaming depends only on its input
func TestRenameFieldIsPure(t *testing.T) {
	first := RenameField("versionMinorNumber")
	RenameField("somethingElseEntirely")
	assert.Equal(t, first, RenameField("versionMinorNumber"))
}

// astrophysics fields use dotted names
func TestRenameDottedField(t *testing.T) {
	assert.Equal(t, "Coverage Spectral Bandpass", RenameField("coverage.Spectral.Bandpass"))
	assert.Equal(t, "Resolution Temporal", RenameField("resolution.Temporal"))
}
