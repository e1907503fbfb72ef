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

package readme

import (
	"strings"
	"unicode"
)

// words kept in lower case unless they begin a label
var minorWords = map[string]bool{
	"of":  true,
	"the": true,
	"a":   true,
	"and": true,
	"in":  true,
	"for": true,
	"to":  true,
	"by":  true,
}

// spelled-out abbreviations produced by splitting on capitals
var abbreviations = strings.NewReplacer(
	"D O I", "DOI",
	"U R L", "URL",
	"U R I", "URI",
	"I D", "ID",
)

// Converts a raw field name into a label: camelCase (or snake_case, or
// dotted) words are split apart and capitalized, minor words after the first
// are lower-cased and common abbreviations are rejoined, so "termsOfUse" becomes "Terms of
// Use" and "alternativeURL" becomes "Alternative URL".
func RenameField(name string) string {
	var spaced strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case isSeparator(r):
			spaced.WriteRune(' ')
			continue
		case i > 0 && unicode.IsUpper(r) && !isSeparator(runes[i-1]):
			spaced.WriteRune(' ')
		}
		spaced.WriteRune(r)
	}

	words := strings.Fields(spaced.String())
	for i, word := range words {
		lower := strings.ToLower(word)
		if i > 0 && minorWords[lower] {
			words[i] = lower
			continue
		}
		first := []rune(word)
		first[0] = unicode.ToUpper(first[0])
		words[i] = string(first)
	}
	return abbreviations.Replace(strings.Join(words, " "))
}

// word separators in field names other than capitals
func isSeparator(r rune) bool {
	return r == '_' || r == '.' || r == ' '
}
