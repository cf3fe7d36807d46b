// Copyright 2021 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package regex implements the GiST Predicate Strategy for regex search
// described in spec §4.5: predicates carry a pattern plus literal
// prefix/suffix/required-substrings and a length window, so most
// candidates are rejected by cheap string checks before the regex engine
// ever runs. Grounded on storage/index/strategies/regex.py, with Python's
// re module replaced by github.com/dlclark/regexp2 (needed for the
// lookahead groups Compress emits, which Go's native regexp/RE2 cannot
// express).
package regex

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/datapunk/indexengine/index/gist"
)

// Pattern is the regex predicate (§4.5).
type Pattern struct {
	Source          string
	Prefix          string
	Suffix          string
	Literals        map[string]struct{}
	CaseSensitive   bool
	MinLength       int
	MaxLength       int // -1 means unbounded
	compiled        *regexp2.Regexp
}

var literalRunRe = regexp.MustCompile(`[a-zA-Z0-9]+`)
var leadingLiteralRe = regexp.MustCompile(`^[a-zA-Z0-9]+`)
var trailingLiteralRe = regexp.MustCompile(`[a-zA-Z0-9]+$`)
var repeatSplitRe = regexp.MustCompile(`[*+?{}]`)

// FromRegex analyzes pattern and derives the cheap-filter metadata
// (§4.5). It mirrors RegexPattern.from_regex's heuristics: a literal
// prefix/suffix, the set of required literal runs, and a length window
// that stays unbounded once the pattern contains unbounded repetition.
func FromRegex(pattern string, caseSensitive bool) Pattern {
	prefix := ""
	if m := leadingLiteralRe.FindString(pattern); m != "" {
		prefix = m
	}
	suffix := ""
	if m := trailingLiteralRe.FindString(pattern); m != "" {
		suffix = m
	}

	literals := map[string]struct{}{}
	for _, m := range literalRunRe.FindAllString(pattern, -1) {
		literals[m] = struct{}{}
	}

	minLen := 0
	for _, part := range repeatSplitRe.Split(pattern, -1) {
		if strings.ContainsAny(part, "()|[]") {
			continue
		}
		// ^ and $ match positions, not characters
		minLen += len(part) - strings.Count(part, "^") - strings.Count(part, "$")
	}

	maxLen := -1
	if !strings.ContainsAny(pattern, "*+") {
		maxLen = len(pattern)
	}

	re, err := regexp2.Compile(pattern, regexpOptions(caseSensitive))
	var compiled *regexp2.Regexp
	if err == nil {
		compiled = re
	}

	return Pattern{
		Source:        pattern,
		Prefix:        prefix,
		Suffix:        suffix,
		Literals:      literals,
		CaseSensitive: caseSensitive,
		MinLength:     minLen,
		MaxLength:     maxLen,
		compiled:      compiled,
	}
}

func regexpOptions(caseSensitive bool) regexp2.RegexOptions {
	if caseSensitive {
		return regexp2.None
	}
	return regexp2.IgnoreCase
}

// Matches runs the cheap filters before the full regex match (§4.5).
func (p Pattern) Matches(text string) bool {
	if len(text) < p.MinLength {
		return false
	}
	if p.MaxLength >= 0 && len(text) > p.MaxLength {
		return false
	}

	cmpText, cmpPrefix, cmpSuffix := text, p.Prefix, p.Suffix
	if !p.CaseSensitive {
		cmpText = strings.ToLower(text)
		cmpPrefix = strings.ToLower(cmpPrefix)
		cmpSuffix = strings.ToLower(cmpSuffix)
	}
	if p.Prefix != "" && !strings.HasPrefix(cmpText, cmpPrefix) {
		return false
	}
	if p.Suffix != "" && !strings.HasSuffix(cmpText, cmpSuffix) {
		return false
	}
	for lit := range p.Literals {
		l := lit
		if !p.CaseSensitive {
			l = strings.ToLower(l)
		}
		if !strings.Contains(cmpText, l) {
			return false
		}
	}

	if p.compiled == nil {
		return false
	}
	ok, err := p.compiled.MatchString(text)
	return err == nil && ok
}

// CouldMatch is a conservative intersection test between two patterns,
// used when the query itself is a Pattern (e.g. a range predicate from
// the optimizer) rather than a literal string (§4.5).
func (p Pattern) CouldMatch(other Pattern) bool {
	if p.MaxLength >= 0 && other.MinLength > p.MaxLength {
		return false
	}
	if other.MaxLength >= 0 && p.MinLength > other.MaxLength {
		return false
	}
	if p.Prefix != "" && other.Prefix != "" {
		a, b := p.Prefix, other.Prefix
		if !p.CaseSensitive || !other.CaseSensitive {
			a, b = strings.ToLower(a), strings.ToLower(b)
		}
		if !strings.HasPrefix(a, b) && !strings.HasPrefix(b, a) {
			return false
		}
	}
	if p.Suffix != "" && other.Suffix != "" {
		a, b := p.Suffix, other.Suffix
		if !p.CaseSensitive || !other.CaseSensitive {
			a, b = strings.ToLower(a), strings.ToLower(b)
		}
		if !strings.HasSuffix(a, b) && !strings.HasSuffix(b, a) {
			return false
		}
	}
	return true
}

// Strategy is the GiST Predicate Strategy over Pattern (§4.5).
type Strategy struct {
	CompressionThreshold int
}

// New creates a regex strategy; the Python original defaults
// compressionThreshold to 100.
func New(compressionThreshold int) Strategy {
	return Strategy{CompressionThreshold: compressionThreshold}
}

var _ gist.Strategy[Pattern] = Strategy{}

func (s Strategy) Consistent(entry Pattern, query any) bool {
	switch q := query.(type) {
	case string:
		return entry.Matches(q)
	case Pattern:
		return entry.CouldMatch(q)
	default:
		return false
	}
}

// Union keeps the longest common prefix/suffix and the intersection of
// required literals, yielding an alternation of every source pattern
// (§4.5).
func (s Strategy) Union(entries []Pattern) Pattern {
	if len(entries) == 0 {
		return FromRegex(".*", true)
	}

	prefix := entries[0].Prefix
	suffix := entries[0].Suffix
	literals := cloneSet(entries[0].Literals)
	minLen := entries[0].MinLength
	maxLen := entries[0].MaxLength
	caseSensitive := entries[0].CaseSensitive

	for _, e := range entries[1:] {
		for prefix != "" && !strings.HasPrefix(e.Prefix, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
		for suffix != "" && !strings.HasSuffix(e.Suffix, suffix) {
			suffix = suffix[1:]
		}
		literals = intersectSet(literals, e.Literals)
		if e.MinLength < minLen {
			minLen = e.MinLength
		}
		if maxLen >= 0 {
			if e.MaxLength < 0 {
				maxLen = -1
			} else if e.MaxLength > maxLen {
				maxLen = e.MaxLength
			}
		}
		caseSensitive = caseSensitive && e.CaseSensitive
	}

	sources := make([]string, len(entries))
	for i, e := range entries {
		sources[i] = e.Source
	}
	combined := "(" + strings.Join(sources, "|") + ")"

	re, err := regexp2.Compile(combined, regexpOptions(caseSensitive))
	var compiled *regexp2.Regexp
	if err == nil {
		compiled = re
	}

	return Pattern{
		Source:        combined,
		Prefix:        prefix,
		Suffix:        suffix,
		Literals:      literals,
		CaseSensitive: caseSensitive,
		MinLength:     minLen,
		MaxLength:     maxLen,
		compiled:      compiled,
	}
}

// Compress replaces the raw pattern with a bounded skeleton once it
// exceeds CompressionThreshold characters, trading exactness for a
// cheap-to-store predicate (§4.5).
func (s Strategy) Compress(entry Pattern) Pattern {
	if len(entry.Source) <= s.CompressionThreshold {
		return entry
	}

	var b strings.Builder
	if entry.Prefix != "" {
		b.WriteString(regexp.QuoteMeta(entry.Prefix))
		b.WriteString(".*")
	}

	extra := excludingSet(entry.Literals, entry.Prefix, entry.Suffix)
	sorted := make([]string, 0, len(extra))
	for l := range extra {
		sorted = append(sorted, l)
	}
	sort.Strings(sorted)
	if len(sorted) > 3 {
		sorted = sorted[:3]
	}
	for _, lit := range sorted {
		b.WriteString("(?=.*")
		b.WriteString(regexp.QuoteMeta(lit))
		b.WriteString(")")
	}

	if entry.Suffix != "" {
		b.WriteString(".*")
		b.WriteString(regexp.QuoteMeta(entry.Suffix))
	}

	skeleton := b.String()
	if skeleton == "" {
		skeleton = ".*"
	}

	re, err := regexp2.Compile(skeleton, regexpOptions(entry.CaseSensitive))
	var compiled *regexp2.Regexp
	if err == nil {
		compiled = re
	}

	return Pattern{
		Source:        skeleton,
		Prefix:        entry.Prefix,
		Suffix:        entry.Suffix,
		Literals:      entry.Literals,
		CaseSensitive: entry.CaseSensitive,
		MinLength:     entry.MinLength,
		MaxLength:     -1, // compression loses the max-length bound
		compiled:      compiled,
	}
}

func (s Strategy) Decompress(entry Pattern) Pattern { return entry }

// Penalty sums prefix/suffix mismatch length, a Jaccard-like term over
// literals, and a length-window term (§4.5).
func (s Strategy) Penalty(a, b Pattern) float64 {
	penalty := 0.0
	if a.Prefix != "" && !strings.HasPrefix(b.Prefix, a.Prefix) {
		penalty += float64(len(a.Prefix))
	}
	if a.Suffix != "" && !strings.HasSuffix(b.Suffix, a.Suffix) {
		penalty += float64(len(a.Suffix))
	}

	common := intersectSet(a.Literals, b.Literals)
	all := unionSet(a.Literals, b.Literals)
	if len(all) > 0 {
		penalty += float64(len(all)-len(common)) / float64(len(all))
	}

	if a.MaxLength >= 0 && b.MinLength > a.MaxLength {
		penalty += float64(b.MinLength - a.MaxLength)
	}
	return penalty
}

// PickSplit mirrors trigram.Strategy.PickSplit's two-seed scheme, using
// Penalty as the (asymmetric, but good enough for seed selection)
// distance measure (§4.5).
func (s Strategy) PickSplit(entries []Pattern) ([]Pattern, []Pattern) {
	if len(entries) <= 2 {
		if len(entries) == 0 {
			return nil, nil
		}
		return entries[:1], entries[1:]
	}

	maxPenalty := -1.0
	seedI, seedJ := 0, 1
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			p := s.Penalty(entries[i], entries[j])
			if p > maxPenalty {
				maxPenalty = p
				seedI, seedJ = i, j
			}
		}
	}

	group1 := []Pattern{entries[seedI]}
	group2 := []Pattern{entries[seedJ]}

	for i, e := range entries {
		if i == seedI || i == seedJ {
			continue
		}
		p1 := s.Penalty(group1[0], e)
		p2 := s.Penalty(group2[0], e)
		if p1 < p2 {
			group1 = append(group1, e)
		} else {
			group2 = append(group2, e)
		}
	}

	for len(group1) < 2 && len(group2) > 0 {
		group1 = append(group1, group2[len(group2)-1])
		group2 = group2[:len(group2)-1]
	}
	for len(group2) < 2 && len(group1) > 0 {
		group2 = append(group2, group1[len(group1)-1])
		group1 = group1[:len(group1)-1]
	}

	return group1, group2
}

func cloneSet(m map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func intersectSet(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func unionSet(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func excludingSet(m map[string]struct{}, exclude ...string) map[string]struct{} {
	out := cloneSet(m)
	for _, e := range exclude {
		delete(out, e)
	}
	return out
}
