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

package migrate

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dvutils/dvutils/dataverse"
	"github.com/dvutils/dvutils/metadata"
)

// placeholder values inserted into payloads
const (
	SuppressedEmail   = "suppressed_value@test.invalid"
	MissingTermsOfUse = "Not available"
	contactField      = "datasetContact"
	contactEmailField = "datasetContactEmail"
	productionPlace   = "productionPlace"
	noLicense         = "NONE"
)

// A Payload is the metadata of a study prepared for upload to a (possibly
// different) Dataverse installation. Payloads own their data: rewriting one
// never modifies the study or payload it came from.
type Payload struct {
	// nil encodes as a null licence
	License        *metadata.License
	TermsOfUse     string
	MetadataBlocks metadata.Blocks
}

// Creates a payload from the latest version of the given study, completing
// missing contact emails.
func NewPayload(study *metadata.Study) (Payload, error) {
	version := study.LatestVersion()
	if version == nil {
		return Payload{}, &EmptyStudyError{PID: study.PID()}
	}
	return CompleteContacts(FromVersion(version)), nil
}

// Creates a payload holding a copy of the given version's licence, terms of
// use and metadata blocks.
func FromVersion(version *metadata.DatasetVersion) Payload {
	p := Payload{
		TermsOfUse:     version.TermsOfUse,
		MetadataBlocks: version.MetadataBlocks.Clone(),
	}
	if version.License != nil {
		license := *version.License
		p.License = &license
	}
	return p
}

// returns a deep copy of the payload
func (p Payload) Clone() Payload {
	clone := Payload{
		TermsOfUse:     p.TermsOfUse,
		MetadataBlocks: p.MetadataBlocks.Clone(),
	}
	if p.License != nil {
		license := *p.License
		clone.License = &license
	}
	return clone
}

// the upload document layout
type payloadDocument struct {
	DatasetVersion struct {
		License        *metadata.License `json:"license"`
		TermsOfUse     string            `json:"termsOfUse"`
		MetadataBlocks metadata.Blocks   `json:"metadataBlocks"`
	} `json:"datasetVersion"`
}

// encodes the payload as a Dataverse upload document:
// {"datasetVersion": {"license": ..., "termsOfUse": ..., "metadataBlocks": ...}}
func (p Payload) MarshalJSON() ([]byte, error) {
	var doc payloadDocument
	doc.DatasetVersion.License = p.License
	doc.DatasetVersion.TermsOfUse = p.TermsOfUse
	doc.DatasetVersion.MetadataBlocks = p.MetadataBlocks
	if doc.DatasetVersion.MetadataBlocks == nil {
		doc.DatasetVersion.MetadataBlocks = metadata.Blocks{}
	}
	return json.Marshal(doc)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var doc payloadDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	p.License = doc.DatasetVersion.License
	p.TermsOfUse = doc.DatasetVersion.TermsOfUse
	p.MetadataBlocks = doc.DatasetVersion.MetadataBlocks
	return nil
}

// returns the first field with the given name in any block, with the
// indices locating it
func (p Payload) find(typeName string) (block, field int, found bool) {
	for b, blk := range p.MetadataBlocks {
		for f, fld := range blk.Fields {
			if fld.TypeName == typeName {
				return b, f, true
			}
		}
	}
	return 0, 0, false
}

// Returns a copy of the payload in which every dataset contact lacking an
// email address has a placeholder one. The placeholder uses a reserved domain,
// so it can never reach anyone.
func CompleteContacts(p Payload) Payload {
	out := p.Clone()
	b, f, found := out.find(contactField)
	if !found {
		return out
	}
	contact := &out.MetadataBlocks[b].Fields[f]
	email := metadata.Field{
		TypeName:  contactEmailField,
		TypeClass: metadata.Primitive,
		Kind:      metadata.KindPrimitive,
		Value:     SuppressedEmail,
	}
	switch contact.Kind {
	case metadata.KindCompoundList:
		for i, entry := range contact.Entries {
			if !hasValue(entry, contactEmailField) {
				contact.Entries[i] = withSubfield(entry, email)
			}
		}
	case metadata.KindCompound:
		if !hasValue(contact.Subfields, contactEmailField) {
			contact.Subfields = withSubfield(contact.Subfields, email)
		}
	}
	return out
}

// returns true if the named sub-field is present with a non-empty value
func hasValue(subfields []metadata.Field, typeName string) bool {
	subfield, found := metadata.Subfield(subfields, typeName)
	return found && (subfield.Value != "" || len(subfield.Values) > 0)
}

// replaces the named sub-field, or appends it if absent
func withSubfield(subfields []metadata.Field, subfield metadata.Field) []metadata.Field {
	i := slices.IndexFunc(subfields, func(f metadata.Field) bool {
		return f.TypeName == subfield.TypeName
	})
	if i >= 0 {
		subfields[i] = subfield
		return subfields
	}
	return append(subfields, subfield)
}

// A Rule is a schema change that applies to uploads to servers at or above
// a given version.
type Rule struct {
	// encoded server version (see dataverse.EncodeVersion) at which the rule
	// takes effect
	Threshold float64
	Name      string
	// returns the rewritten payload; must not modify its argument and must be
	// idempotent
	Apply func(Payload) Payload
}

// schema changes in order of the server versions that introduced them
var Rules = []Rule{
	{Threshold: 5.010, Name: "licence", Apply: FixLicense},
	{Threshold: 5.013, Name: "productionPlace", Apply: FixProductionPlace},
}

// Returns a copy of the payload rewritten for a server with the given encoded
// version. All rules whose threshold the version meets are applied, in
// threshold order.
func Rewrite(p Payload, target float64) Payload {
	rules := slices.Clone(Rules)
	slices.SortStableFunc(rules, func(a, b Rule) int {
		switch {
		case a.Threshold < b.Threshold:
			return -1
		case a.Threshold > b.Threshold:
			return 1
		}
		return 0
	})
	out := p.Clone()
	for _, rule := range rules {
		if dataverse.AtLeast(target, rule.Threshold) {
			out = rule.Apply(out)
		}
	}
	return out
}

// Rewrites the payload for a server with the given version string.
func RewriteFor(p Payload, version string) (Payload, error) {
	target, err := dataverse.EncodeVersion(version)
	if err != nil {
		return Payload{}, err
	}
	return Rewrite(p, target), nil
}

// Servers from 5.10 reject the "NONE" licence and require terms of use.
func FixLicense(p Payload) Payload {
	out := p.Clone()
	if out.License != nil && out.License.Plain && out.License.Name == noLicense {
		out.License = nil
	}
	if out.TermsOfUse == "" {
		out.TermsOfUse = MissingTermsOfUse
	}
	return out
}

// Servers from 5.13 treat productionPlace as a multiple field. A singular
// productionPlace becomes a one-element list; one that's already multiple is
// left alone.
func FixProductionPlace(p Payload) Payload {
	out := p.Clone()
	b, f, found := out.find(productionPlace)
	if !found {
		return out
	}
	field := &out.MetadataBlocks[b].Fields[f]
	if field.Multiple {
		return out
	}
	field.Multiple = true
	switch field.Kind {
	case metadata.KindPrimitive:
		field.Kind = metadata.KindPrimitiveList
		field.Values = []string{field.Value}
		field.Value = ""
	case metadata.KindVocabulary:
		if field.Values == nil {
			field.Values = []string{field.Value}
			field.Value = ""
		}
	}
	return out
}

// returns a short description of the rules that apply to the given version
func Describe(target float64) []string {
	var applied []string
	for _, rule := range Rules {
		if dataverse.AtLeast(target, rule.Threshold) {
			applied = append(applied, fmt.Sprintf("%s (>= %.3f)", rule.Name, rule.Threshold))
		}
	}
	return applied
}
