package metadata

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func decodeField(t *testing.T, doc string) Field {
	var field Field
	err := json.Unmarshal([]byte(doc), &field)
	assert.Nil(t, err)
	return field
}

// checks that each combination of typeClass and multiple decodes into the
// right kind of field
func TestFieldKinds(t *testing.T) {
	field := decodeField(t, `{"typeName": "title", "multiple": false, "typeClass": "primitive", "value": "x"}`)
	assert.Equal(t, KindPrimitive, field.Kind)
	assert.Equal(t, "x", field.Value)

	field = decodeField(t, `{"typeName": "kindOfData", "multiple": true, "typeClass": "primitive", "value": ["a", "b"]}`)
	assert.Equal(t, KindPrimitiveList, field.Kind)
	assert.Equal(t, []string{"a", "b"}, field.Values)
	assert.True(t, field.IsList())

	field = decodeField(t, `{"typeName": "subject", "multiple": true, "typeClass": "controlledVocabulary", "value": ["Other"]}`)
	assert.Equal(t, KindVocabulary, field.Kind)
	assert.Equal(t, []string{"Other"}, field.Values)

	field = decodeField(t, `{"typeName": "language", "multiple": false, "typeClass": "controlledVocabulary", "value": "French"}`)
	assert.Equal(t, KindVocabulary, field.Kind)
	assert.Equal(t, "French", field.Value)
	assert.False(t, field.IsList())

	field = decodeField(t, `{"typeName": "series", "multiple": false, "typeClass": "compound", "value": {
	  "seriesName": {"typeName": "seriesName", "multiple": false, "typeClass": "primitive", "value": "S"},
	  "seriesInformation": {"typeName": "seriesInformation", "multiple": false, "typeClass": "primitive", "value": "I"}}}`)
	assert.Equal(t, KindCompound, field.Kind)
	assert.Equal(t, 2, len(field.Subfields))
	assert.Equal(t, "seriesName", field.Subfields[0].TypeName)
	assert.Equal(t, "seriesInformation", field.Subfields[1].TypeName)

	field = decodeField(t, `{"typeName": "author", "multiple": true, "typeClass": "compound", "value": [
	  {"authorName": {"typeName": "authorName", "multiple": false, "typeClass": "primitive", "value": "A"}},
	  {"authorName": {"typeName": "authorName", "multiple": false, "typeClass": "primitive", "value": "B"}}]}`)
	assert.Equal(t, KindCompoundList, field.Kind)
	assert.Equal(t, 2, len(field.Entries))
}

func TestFieldMissingKeys(t *testing.T) {
	var field Field
	err := json.Unmarshal([]byte(`{"typeClass": "primitive", "value": "x"}`), &field)
	assert.NotNil(t, err)
	err = json.Unmarshal([]byte(`{"typeName": "x", "value": "x"}`), &field)
	assert.NotNil(t, err)
	err = json.Unmarshal([]byte(`{"typeName": "x", "typeClass": "bogus", "value": "x"}`), &field)
	assert.NotNil(t, err)
}

// a field missing its value is treated as empty
func TestFieldMissingValue(t *testing.T) {
	field := decodeField(t, `{"typeName": "kindOfData", "multiple": true, "typeClass": "primitive"}`)
	assert.Equal(t, []string{}, field.Values)
	record := make(FlatRecord)
	extractField(record, field)
	assert.Equal(t, "", record["kindOfData"])

	field = decodeField(t, `{"typeName": "author", "multiple": true, "typeClass": "compound", "value": null}`)
	assert.Equal(t, 0, len(field.Entries))
}

func TestExtractPrimitives(t *testing.T) {
	record := make(FlatRecord)
	extractField(record, decodeField(t,
		`{"typeName": "kindOfData", "multiple": true, "typeClass": "primitive", "value": ["b", "a", "c"]}`))
	assert.Equal(t, "b; a; c", record["kindOfData"])
	assert.Equal(t, []string{"b", "a", "c"}, record.Split("kindOfData"))
	assert.Nil(t, record.Split("nothing"))

	// last write wins
	extractField(record, decodeField(t,
		`{"typeName": "kindOfData", "multiple": false, "typeClass": "primitive", "value": "z"}`))
	assert.Equal(t, "z", record["kindOfData"])
}

// every group produced from a multiple compound field has one value per
// entry, even when entries lack sub-fields that others carry
func TestExtractCompoundListPadding(t *testing.T) {
	field := decodeField(t, `{"typeName": "author", "multiple": true, "typeClass": "compound", "value": [
	  {"authorName": {"typeName": "authorName", "multiple": false, "typeClass": "primitive", "value": "A"}},
	  {"authorName": {"typeName": "authorName", "multiple": false, "typeClass": "primitive", "value": "B"},
	   "authorAffiliation": {"typeName": "authorAffiliation", "multiple": false, "typeClass": "primitive", "value": "U"}},
	  {"authorIdentifier": {"typeName": "authorIdentifier", "multiple": false, "typeClass": "primitive", "value": "0000"}}]}`)
	record := make(FlatRecord)
	extractField(record, field)
	assert.Equal(t, []string{"A", "B", ""}, record.Split("authorName"))
	assert.Equal(t, []string{"", "U", ""}, record.Split("authorAffiliation"))
	assert.Equal(t, []string{"", "", "0000"}, record.Split("authorIdentifier"))

	names, groups := groupEntries(field.Entries)
	assert.Equal(t, []string{"authorName", "authorAffiliation", "authorIdentifier"}, names)
	for _, name := range names {
		assert.Equal(t, len(field.Entries), len(groups[name]))
	}
}

func TestExtractCompound(t *testing.T) {
	record := make(FlatRecord)
	extractField(record, decodeField(t, `{"typeName": "series", "multiple": false, "typeClass": "compound", "value": {
	  "seriesName": {"typeName": "seriesName", "multiple": false, "typeClass": "primitive", "value": "S"},
	  "seriesInformation": {"typeName": "seriesInformation", "multiple": false, "typeClass": "primitive"}}}`))
	assert.Equal(t, FlatRecord{"seriesName": "S", "seriesInformation": ""}, record)
	assert.Equal(t, []string{"seriesInformation", "seriesName"}, record.Keys())
}

// fields keep their order and shape when re-encoded
func TestFieldRoundTrip(t *testing.T) {
	doc := `{"typeName":"author","multiple":true,"typeClass":"compound","value":[` +
		`{"authorName":{"typeName":"authorName","multiple":false,"typeClass":"primitive","value":"Z"},` +
		`"authorAffiliation":{"typeName":"authorAffiliation","multiple":false,"typeClass":"primitive","value":"A"}}]}`
	field := decodeField(t, doc)
	encoded, err := json.Marshal(field)
	assert.Nil(t, err)
	assert.JSONEq(t, doc, string(encoded))
	assert.Less(t, strings.Index(string(encoded), "authorName"), strings.Index(string(encoded), "authorAffiliation"))
}

func TestFieldClone(t *testing.T) {
	field := decodeField(t, `{"typeName": "author", "multiple": true, "typeClass": "compound", "value": [
	  {"authorName": {"typeName": "authorName", "multiple": false, "typeClass": "primitive", "value": "A"}}]}`)
	clone := field.Clone()
	clone.Entries[0][0].Value = "changed"
	clone.Entries[0] = append(clone.Entries[0], Field{TypeName: "extra"})
	assert.Equal(t, "A", field.Entries[0][0].Value)
	assert.Equal(t, 1, len(field.Entries[0]))

	sub, found := Subfield(field.Entries[0], "authorName")
	assert.True(t, found)
	assert.Equal(t, "A", sub.Value)
	_, found = Subfield(field.Entries[0], "authorAffiliation")
	assert.False(t, found)
}

func TestBlocksOrder(t *testing.T) {
	doc := `{"geospatial": {"displayName": "Geo", "fields": []}, "citation": {"name": "citation", "fields": []}}`
	var blocks Blocks
	err := json.Unmarshal([]byte(doc), &blocks)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(blocks))
	assert.Equal(t, "geospatial", blocks[0].Name)
	assert.Equal(t, "citation", blocks[1].Name)

	encoded, err := json.Marshal(blocks)
	assert.Nil(t, err)
	assert.Less(t, strings.Index(string(encoded), "geospatial"), strings.Index(string(encoded), "citation"))
}
