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

// Package variant decides whether a file name signals a near-duplicate
// "variant" of an existing file, such as enhanced_parser.go, parser_v2.go
// or parser.backup.go.
//
// Classification looks only at the basename with its final extension
// stripped. The name is split into lowercase tokens on camelCase
// boundaries and non-alphanumeric runs, and each token is compared against
// a fixed banned set and the version rule (v followed by digits).
// It performs no I/O and never looks at file contents.
package variant

import (
	"regexp"
	"strings"
)

// defaultBannedTokens is the built-in list of words that mark a file as a
// variant of another. Matching is exact per token and case-insensitive.
var defaultBannedTokens = []string{
	"enhanced", "enhance",
	"simple", "simplified",
	"refactored", "refactor",
	"optimized", "optimize",
	"alternate", "alternative", "alt",
	"new", "final", "updated", "rewrite",
	"copy", "backup", "bak",
	"temp", "tmp",
	"legacy", "old",
}

var (
	extensionPattern = regexp.MustCompile(`\.[^.]+$`)
	camelBoundary    = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	separatorPattern = regexp.MustCompile(`[^a-z0-9]+`)
	versionToken     = regexp.MustCompile(`^v[0-9]+$`)
)

// DefaultBannedTokens returns a copy of the built-in banned token list.
func DefaultBannedTokens() []string {
	out := make([]string, len(defaultBannedTokens))
	copy(out, defaultBannedTokens)
	return out
}

// Classifier flags variant file names. A Classifier is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	banned map[string]struct{}
}

// New creates a classifier that bans the given tokens. Tokens are trimmed
// and lowercased; empty entries are ignored. The version rule is always
// active.
func New(banned ...string) *Classifier {
	set := make(map[string]struct{}, len(banned))
	for _, tok := range banned {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		set[tok] = struct{}{}
	}
	return &Classifier{banned: set}
}

var defaultClassifier = New(defaultBannedTokens...)

// Default returns the classifier built from DefaultBannedTokens.
func Default() *Classifier {
	return defaultClassifier
}

// IsVariantPath reports whether path names a variant file according to
// the default banned token list.
func IsVariantPath(path string) bool {
	return defaultClassifier.IsVariant(path)
}

// Classification is the detailed result of classifying one path.
type Classification struct {
	// Path is the input path, unchanged.
	Path string

	// Basename is the final path segment.
	Basename string

	// Stem is the basename with its final extension removed.
	Stem string

	// Tokens are the normalized tokens of Stem, in order.
	Tokens []string

	// Matched lists the tokens that triggered the variant verdict.
	Matched []string
}

// IsVariant reports whether any token matched.
func (c Classification) IsVariant() bool {
	return len(c.Matched) > 0
}

// IsVariant reports whether path names a variant file.
func (c *Classifier) IsVariant(path string) bool {
	for _, tok := range Tokenize(path) {
		if c.bansToken(tok) {
			return true
		}
	}
	return false
}

// Classify returns the full classification of path, for diagnostics.
func (c *Classifier) Classify(path string) Classification {
	base := Basename(path)
	stem := stripExtension(base)
	tokens := tokenizeStem(stem)

	var matched []string
	for _, tok := range tokens {
		if c.bansToken(tok) {
			matched = append(matched, tok)
		}
	}

	return Classification{
		Path:     path,
		Basename: base,
		Stem:     stem,
		Tokens:   tokens,
		Matched:  matched,
	}
}

// Contains reports whether tok is in the banned set. The version rule is
// not consulted.
func (c *Classifier) Contains(tok string) bool {
	_, ok := c.banned[strings.ToLower(tok)]
	return ok
}

// Size returns the number of banned tokens.
func (c *Classifier) Size() int {
	return len(c.banned)
}

func (c *Classifier) bansToken(tok string) bool {
	if _, ok := c.banned[tok]; ok {
		return true
	}
	return versionToken.MatchString(tok)
}

// Tokenize returns the normalized tokens of path's basename with the final
// extension stripped.
func Tokenize(path string) []string {
	return tokenizeStem(stripExtension(Basename(path)))
}

// Basename returns the text after the last '/' or '\'. Both separators are
// honoured regardless of the host OS, since agents on any platform may
// send either form.
func Basename(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// stripExtension removes the final ".ext". A name that is nothing but an
// extension (".env", ".gitignore") is returned unchanged so it still
// yields a token.
func stripExtension(base string) string {
	loc := extensionPattern.FindStringIndex(base)
	if loc == nil || loc[0] == 0 {
		return base
	}
	return base[:loc[0]]
}

func tokenizeStem(stem string) []string {
	split := camelBoundary.ReplaceAllString(stem, "${1}_${2}")
	parts := separatorPattern.Split(strings.ToLower(split), -1)

	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
