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

package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// the typeClass values used by Dataverse
const (
	Primitive            = "primitive"
	Compound             = "compound"
	ControlledVocabulary = "controlledVocabulary"
)

// Kind identifies the shape of a field's value, determined by its typeClass
// and multiple flag
type Kind int

const (
	// primitive, not multiple: a single string
	KindPrimitive Kind = iota
	// primitive, multiple: a list of strings
	KindPrimitiveList
	// compound, not multiple: one set of sub-fields
	KindCompound
	// compound, multiple: a list of sets of sub-fields
	KindCompoundList
	// controlled vocabulary: a single string or a list of strings
	KindVocabulary
)

// A Field is one node of a study's metadata: a named value whose shape is
// given by its Kind. Fields are decoded once from Dataverse JSON; sub-fields of
// compound values keep the order in which they appear in the document.
type Field struct {
	TypeName  string
	TypeClass string
	Multiple  bool
	Kind      Kind
	// KindPrimitive, and KindVocabulary given as a string
	Value string
	// KindPrimitiveList, and KindVocabulary given as a list
	Values []string
	// KindCompound
	Subfields []Field
	// KindCompoundList
	Entries [][]Field
}

// returns true for a controlled vocabulary field whose value is a list
func (f Field) IsList() bool {
	return f.Kind == KindPrimitiveList || (f.Kind == KindVocabulary && f.Values != nil)
}

// the JSON layout of a field
type rawField struct {
	TypeName  *string         `json:"typeName"`
	TypeClass *string         `json:"typeClass"`
	Multiple  bool            `json:"multiple"`
	Value     json.RawMessage `json:"value"`
}

func (f *Field) UnmarshalJSON(data []byte) error {
	var raw rawField
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.TypeName == nil {
		return &missingKeyError{Key: "typeName"}
	}
	if raw.TypeClass == nil {
		return &missingKeyError{Key: "typeClass"}
	}
	*f = Field{
		TypeName:  *raw.TypeName,
		TypeClass: *raw.TypeClass,
		Multiple:  raw.Multiple,
	}

	// the API sometimes omits (or nulls) the value of an unset sub-field; we
	// treat that as empty
	value := raw.Value
	if isNull(value) {
		value = nil
	}

	switch f.TypeClass {
	case Primitive:
		if f.Multiple {
			f.Kind = KindPrimitiveList
			return decodeStrings(f.TypeName, value, &f.Values)
		}
		f.Kind = KindPrimitive
		return decodeString(f.TypeName, value, &f.Value)
	case ControlledVocabulary:
		f.Kind = KindVocabulary
		if bytes.HasPrefix(bytes.TrimSpace(value), []byte("[")) || (value == nil && f.Multiple) {
			return decodeStrings(f.TypeName, value, &f.Values)
		}
		return decodeString(f.TypeName, value, &f.Value)
	case Compound:
		if f.Multiple {
			f.Kind = KindCompoundList
			var entries []json.RawMessage
			if value != nil {
				if err := json.Unmarshal(value, &entries); err != nil {
					return fmt.Errorf("field '%s': %w", f.TypeName, err)
				}
			}
			f.Entries = make([][]Field, len(entries))
			for i, entry := range entries {
				subfields, err := decodeSubfields(f.TypeName, entry)
				if err != nil {
					return err
				}
				f.Entries[i] = subfields
			}
			return nil
		}
		f.Kind = KindCompound
		subfields, err := decodeSubfields(f.TypeName, value)
		f.Subfields = subfields
		return err
	default:
		return fmt.Errorf("field '%s' has unknown typeClass '%s'", f.TypeName, f.TypeClass)
	}
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeString(name string, data json.RawMessage, s *string) error {
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("field '%s': %w", name, err)
	}
	return nil
}

func decodeStrings(name string, data json.RawMessage, s *[]string) error {
	*s = []string{}
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("field '%s': %w", name, err)
	}
	return nil
}

// decodes the sub-fields of a compound value (a JSON object keyed by sub-field
// name), preserving their order
func decodeSubfields(name string, data json.RawMessage) ([]Field, error) {
	subfields := []Field{}
	if data == nil {
		return subfields, nil
	}
	values, err := orderedValues(data)
	if err != nil {
		return nil, fmt.Errorf("field '%s': %w", name, err)
	}
	for _, value := range values {
		var subfield Field
		if err := json.Unmarshal(value, &subfield); err != nil {
			return nil, err
		}
		subfields = append(subfields, subfield)
	}
	return subfields, nil
}

// returns the values of the given JSON object in document order
func orderedValues(data json.RawMessage) ([]json.RawMessage, error) {
	_, values, err := orderedObject(data)
	return values, err
}

// returns the keys and values of the given JSON object in document order
func orderedObject(data json.RawMessage) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	token, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}
	var keys []string
	var values []json.RawMessage
	for dec.More() {
		token, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := token.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, value)
	}
	return keys, values, nil
}

func (f Field) MarshalJSON() ([]byte, error) {
	var value any
	switch f.Kind {
	case KindPrimitive:
		value = f.Value
	case KindPrimitiveList:
		value = nonNil(f.Values)
	case KindVocabulary:
		if f.Values != nil {
			value = f.Values
		} else {
			value = f.Value
		}
	case KindCompound:
		value = subfieldObject(f.Subfields)
	case KindCompoundList:
		entries := make([]json.RawMessage, len(f.Entries))
		for i, entry := range f.Entries {
			entries[i] = subfieldObject(entry)
		}
		value = entries
	}
	encodedValue, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		TypeName  string          `json:"typeName"`
		Multiple  bool            `json:"multiple"`
		TypeClass string          `json:"typeClass"`
		Value     json.RawMessage `json:"value"`
	}{f.TypeName, f.Multiple, f.TypeClass, encodedValue})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// encodes sub-fields as a JSON object keyed by sub-field name, in order
func subfieldObject(subfields []Field) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, subfield := range subfields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(subfield.TypeName)
		value, _ := json.Marshal(subfield)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// returns a deep copy of the field
func (f Field) Clone() Field {
	clone := f
	clone.Values = slices.Clone(f.Values)
	if f.Subfields != nil {
		clone.Subfields = cloneFields(f.Subfields)
	}
	if f.Entries != nil {
		clone.Entries = make([][]Field, len(f.Entries))
		for i, entry := range f.Entries {
			clone.Entries[i] = cloneFields(entry)
		}
	}
	return clone
}

func cloneFields(fields []Field) []Field {
	clone := make([]Field, len(fields))
	for i, field := range fields {
		clone[i] = field.Clone()
	}
	return clone
}

// returns the sub-field with the given name, if present
func Subfield(subfields []Field, typeName string) (Field, bool) {
	for _, subfield := range subfields {
		if subfield.TypeName == typeName {
			return subfield, true
		}
	}
	return Field{}, false
}

// a named group of fields, e.g. "citation"
type Block struct {
	Name        string  `json:"name,omitempty"`
	DisplayName string  `json:"displayName,omitempty"`
	Fields      []Field `json:"fields"`
}

// returns a deep copy of the block
func (b Block) Clone() Block {
	clone := b
	clone.Fields = cloneFields(b.Fields)
	return clone
}

// A study version's metadata blocks, kept in document order. Encoded as a
// JSON object keyed by block name.
type Blocks []Block

func (b *Blocks) UnmarshalJSON(data []byte) error {
	*b = Blocks{}
	if isNull(data) {
		return nil
	}
	keys, values, err := orderedObject(data)
	if err != nil {
		return err
	}
	for i, value := range values {
		var block Block
		if err := json.Unmarshal(value, &block); err != nil {
			return err
		}
		if block.Name == "" {
			block.Name = keys[i]
		}
		*b = append(*b, block)
	}
	return nil
}

func (b Blocks) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, block := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(block.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(block)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// returns a deep copy of the blocks
func (b Blocks) Clone() Blocks {
	clone := make(Blocks, len(b))
	for i, block := range b {
		clone[i] = block.Clone()
	}
	return clone
}
