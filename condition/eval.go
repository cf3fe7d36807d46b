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

package condition

import (
	"reflect"
	"regexp"
	"strings"
	"time"
)

// evalSimple dispatches a single comparison the way
// storage/index/partial.py's op_map does, except the "exception means
// false" rule is structural here: every branch that would have raised
// TypeError/ValueError in Python instead sets ok=false directly.
func evalSimple(op Operator, columnValue, target any, caseSensitive bool) (ok bool, result bool) {
	switch op {
	case OpEq:
		c, match := compareAny(columnValue, target)
		return match, c == 0
	case OpNe:
		c, match := compareAny(columnValue, target)
		return match, c != 0
	case OpLt:
		c, match := compareAny(columnValue, target)
		return match, match && c < 0
	case OpLe:
		c, match := compareAny(columnValue, target)
		return match, match && c <= 0
	case OpGt:
		c, match := compareAny(columnValue, target)
		return match, match && c > 0
	case OpGe:
		c, match := compareAny(columnValue, target)
		return match, match && c >= 0
	case OpIn:
		return true, memberOf(columnValue, target)
	case OpNotIn:
		return true, !memberOf(columnValue, target)
	case OpLike:
		return likeMatch(columnValue, target, caseSensitive)
	case OpNotLike:
		ok, matched := likeMatch(columnValue, target, caseSensitive)
		return ok, !matched
	case OpBetween:
		return betweenMatch(columnValue, target)
	default:
		return false, false
	}
}

// compareAny returns (sign, ok); ok is false when the two values have no
// common comparable representation, the equivalent of Python's
// TypeError falling through to "return False".
func compareAny(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0, true
			}
			if !av {
				return -1, true
			}
			return 1, true
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1, true
			case av.After(bv):
				return 1, true
			default:
				return 0, true
			}
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// memberOf reports whether v equals an element of collection, where
// collection is any slice (IN/NOT IN's right-hand side). A non-slice
// target never matches, mirroring Python's TypeError on `x in y` for a
// non-iterable y.
func memberOf(v, collection any) bool {
	rv := reflect.ValueOf(collection)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if c, ok := compareAny(v, rv.Index(i).Interface()); ok && c == 0 {
			return true
		}
	}
	return false
}

// betweenMatch expects target as a two-element slice [lo, hi], inclusive
// both ends (§3.3's BETWEEN).
func betweenMatch(v, target any) (ok bool, matched bool) {
	rv := reflect.ValueOf(target)
	if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() != 2 {
		return false, false
	}
	lo := rv.Index(0).Interface()
	hi := rv.Index(1).Interface()
	cLo, okLo := compareAny(v, lo)
	cHi, okHi := compareAny(v, hi)
	if !okLo || !okHi {
		return false, false
	}
	return true, cLo >= 0 && cHi <= 0
}

// likeMatch translates a SQL LIKE pattern ('%' any run, '_' one char,
// '[' ']' literal) to a regular expression, the same translation
// storage/index/partial.py's _like_match performs.
func likeMatch(v, pattern any, caseSensitive bool) (ok bool, matched bool) {
	value, vok := v.(string)
	pat, pok := pattern.(string)
	if !vok || !pok {
		return false, false
	}

	re, err := regexp.Compile(likeToRegex(pat, caseSensitive))
	if err != nil {
		return false, false
	}
	return true, re.MatchString(value)
}

func likeToRegex(pattern string, caseSensitive bool) string {
	var b strings.Builder
	b.WriteString("^")
	if !caseSensitive {
		b.WriteString("(?i)")
	}
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		case '[':
			b.WriteString(`\[`)
		case ']':
			b.WriteString(`\]`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
