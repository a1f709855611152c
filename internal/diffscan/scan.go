// Copyright 2026 The Variantguard Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package diffscan finds the files a patch would newly create.
//
// It is a bounded, line-oriented heuristic rather than a diff parser. For
// every "diff --git a/X b/Y" header it looks a few lines ahead for a
// "new file mode" or "--- /dev/null" marker and then for the "+++ b/PATH"
// line naming the new file. Paths git quotes (core.quotePath) are decoded.
// Empty and binary new files carry no "+++" line; for those the b/ path of
// the header is used once a "new file mode" marker has been seen. Patch
// envelopes of the form "*** Add File: PATH" are recognized as well.
//
// Known limitations: renames and copies are not reported, and diff dialects
// without "diff --git" headers (plain diff -u output) yield nothing.
// Malformed or truncated input produces a partial or empty result, never an
// error.
package diffscan

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// markerWindow is how many lines after a file header are searched for
	// a new-file marker.
	markerWindow = 8

	// pathWindow is how many lines after the marker are searched for the
	// "+++ b/" line.
	pathWindow = 6
)

var (
	fileHeader     = regexp.MustCompile(`^diff --git "?a/.+ "?b/.+$`)
	quotedHeader   = regexp.MustCompile(`^diff --git "a/(?:[^"\\]|\\.)*" ("b/(?:[^"\\]|\\.)*")$`)
	newFileMarker  = regexp.MustCompile(`^new file mode\b`)
	oldSideDevNull = regexp.MustCompile(`^---\s+/dev/null\s*$`)
	quotedNewSide  = regexp.MustCompile(`^\+{3,}\s+("b/(?:[^"\\]|\\.)*")\s*$`)
	bareNewSide    = regexp.MustCompile(`^\+{3,}\s+b/(.+?)\s*$`)
	addFileLine    = regexp.MustCompile(`^\*\*\* Add File:\s*(.+?)\s*$`)
)

// ExtractAddedFiles returns the paths of files created by diff, in the
// order they first appear, without duplicates.
func ExtractAddedFiles(diff string) []string {
	if diff == "" {
		return nil
	}

	lines := strings.Split(diff, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	var s pathSet
	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := addFileLine.FindStringSubmatch(line); m != nil {
			s.add(m[1])
			continue
		}
		if !fileHeader.MatchString(line) {
			continue
		}

		marker := findWithin(lines, i+1, markerWindow, func(l string) bool {
			return newFileMarker.MatchString(l) || oldSideDevNull.MatchString(l)
		})
		if marker < 0 {
			continue
		}

		plus := findWithin(lines, marker+1, pathWindow, func(l string) bool {
			_, ok := newSideName(l)
			return ok
		})
		if plus < 0 {
			if newFileMarker.MatchString(lines[marker]) {
				s.add(headerName(line))
			}
			continue
		}
		name, _ := newSideName(lines[plus])
		s.add(name)
		i = plus
	}

	return s.items
}

// newSideName extracts the path from a "+++ b/PATH" or "+++ "b/PATH"" line.
func newSideName(line string) (string, bool) {
	if m := quotedNewSide.FindStringSubmatch(line); m != nil {
		return unquoteSide(m[1])
	}
	if m := bareNewSide.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}

// headerName returns the b/ path of a file header, or "" when it cannot be
// recovered. Unquoted headers are split by requiring both sides to name the
// same path, which always holds for a newly created file.
func headerName(line string) string {
	if m := quotedHeader.FindStringSubmatch(line); m != nil {
		name, _ := unquoteSide(m[1])
		return name
	}
	rest := strings.TrimPrefix(line, "diff --git ")
	if len(rest) < 5 || len(rest)%2 == 0 {
		return ""
	}
	n := (len(rest) - 5) / 2
	a, b := rest[:2+n], rest[2+n:]
	if a[2:] != b[3:] || !strings.HasPrefix(a, "a/") || !strings.HasPrefix(b, " b/") {
		return ""
	}
	return b[3:]
}

// unquoteSide decodes a C-style quoted "b/PATH" as written by git.
func unquoteSide(quoted string) (string, bool) {
	s, err := strconv.Unquote(quoted)
	if err != nil || !strings.HasPrefix(s, "b/") {
		return "", false
	}
	return strings.TrimPrefix(s, "b/"), true
}

// findWithin returns the index of the first line in lines[start:start+n]
// accepted by match, or -1. The search stops early at the next file
// header so markers are never attributed to a neighbouring file.
func findWithin(lines []string, start, n int, match func(string) bool) int {
	end := start + n
	if end > len(lines) {
		end = len(lines)
	}
	for j := start; j < end; j++ {
		if fileHeader.MatchString(lines[j]) {
			return -1
		}
		if match(lines[j]) {
			return j
		}
	}
	return -1
}

// pathSet is an insertion-ordered set of paths.
type pathSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *pathSet) add(path string) {
	if path == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[path]; ok {
		return
	}
	s.seen[path] = struct{}{}
	s.items = append(s.items, path)
}
