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

package dataverse

import (
	"math"
	"strconv"
	"strings"
)

// Encodes a Dataverse version string as a number that orders correctly under
// ordinary comparison: major + minor/1000 + patch/1000000 (so 5.13.9 becomes
// 5.013009 and 5.9.2 becomes 5.009002). Leading "v"s and spaces are ignored,
// as are suffixes like "-SP" (v5.13.9-SP -> 5.013009).
func EncodeVersion(version string) (float64, error) {
	trimmed := strings.Trim(version, "v ")
	if trimmed == "" {
		return 0, &InvalidVersionError{Version: version}
	}
	var encoded float64
	for i, part := range strings.Split(trimmed, ".") {
		part, _, _ = strings.Cut(part, "-")
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, &InvalidVersionError{Version: version}
		}
		encoded += float64(n) / math.Pow10(3*i)
	}
	return encoded, nil
}

// tolerance for comparisons of encoded versions, well below the smallest
// difference between two versions (a patch level, 1e-6)
const versionTolerance = 1e-9

// returns true if the encoded version is at least the given encoded threshold
func AtLeast(version, threshold float64) bool {
	return version >= threshold-versionTolerance
}
