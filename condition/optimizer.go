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
	"math"
	"regexp"
	"sort"
	"strconv"
)

// Counters reports what the optimizer's four passes changed (§4.9).
type Counters struct {
	RemovedRedundant      int
	SimplifiedExpressions int
	MergedConditions      int
	OriginalDepth         int
	OptimizedDepth        int
}

// defaultMaxMergeBreadth mirrors §6.3's partial-optimizer
// max_merge_breadth default: above this many children, pass 3's
// pairwise merge scan stops being exhaustive (it would cost O(n²) per
// composite) and is skipped for that composite, falling through to
// pass 4's reorder unmerged.
const defaultMaxMergeBreadth = 64

// Optimize runs the four passes of §4.9 in order — remove redundant,
// simplify expressions, merge, reorder — and returns an equivalent
// condition with the same boolean value on every row. A second call on
// the result is idempotent: each pass is already a fixed point on its
// own output shape. Uses the default max-merge-breadth; see
// OptimizeWithBreadth to override it from configuration.
func Optimize(c Condition) (Condition, Counters) {
	return OptimizeWithBreadth(c, defaultMaxMergeBreadth)
}

// OptimizeWithBreadth is Optimize with an explicit cap on how many
// children of a single AND/OR pass 3 will exhaustively pairwise-scan
// for mergeable conditions, mirroring the configurable
// max_merge_breadth (§6.3).
func OptimizeWithBreadth(c Condition, maxMergeBreadth int) (Condition, Counters) {
	if maxMergeBreadth <= 0 {
		maxMergeBreadth = defaultMaxMergeBreadth
	}
	counters := Counters{OriginalDepth: depthOf(c)}

	c = removeRedundant(c, &counters)
	c = simplifyExpressions(c, &counters)
	c = merge(c, &counters, maxMergeBreadth)
	c = reorder(c)

	counters.OptimizedDepth = depthOf(c)
	return c, counters
}

func depthOf(c Condition) int {
	comp, ok := c.(Composite)
	if !ok {
		return 1
	}
	max := 0
	for _, child := range comp.Children {
		if d := depthOf(child); d > max {
			max = d
		}
	}
	return 1 + max
}

// isSelfReference recognizes the "col = col" tautology shape (§4.9 pass
// 1): a Simple equality whose right-hand side is itself a reference to
// the same column, represented as the column name stored as the value.
func isSelfReference(s Simple) bool {
	if s.Op != OpEq {
		return false
	}
	v, ok := s.Value.(string)
	return ok && v == s.Column
}

func isTautology(c Condition) bool {
	s, ok := c.(Simple)
	return ok && isSelfReference(s)
}

// removeRedundant implements §4.9 pass 1: dedupe children by canonical
// string, drop tautologies, flatten nested AND-in-AND / OR-in-OR,
// collapse a composite with one remaining child into that child.
func removeRedundant(c Condition, counters *Counters) Condition {
	comp, ok := c.(Composite)
	if !ok {
		return c
	}

	var flat []Condition
	for _, child := range comp.Children {
		child = removeRedundant(child, counters)

		if isTautology(child) {
			counters.RemovedRedundant++
			continue
		}
		if inner, ok := child.(Composite); ok && inner.Op == comp.Op {
			flat = append(flat, inner.Children...)
			continue
		}
		flat = append(flat, child)
	}

	seen := make(map[string]bool, len(flat))
	deduped := flat[:0]
	for _, child := range flat {
		key := canonicalize(child)
		if seen[key] {
			counters.RemovedRedundant++
			continue
		}
		seen[key] = true
		deduped = append(deduped, child)
	}

	switch len(deduped) {
	case 0:
		return Literal(comp.Op == LogicAnd)
	case 1:
		return deduped[0]
	default:
		return Composite{Op: comp.Op, Children: deduped}
	}
}

var singleComparisonRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(==|!=|<=|>=|<|>)\s*(.+?)\s*$`)

// simplifyExpressions implements §4.9 pass 2: an Expression whose source
// is a single "column OP literal" comparison becomes the equivalent
// Simple, which evaluates without invoking the CEL runtime.
func simplifyExpressions(c Condition, counters *Counters) Condition {
	switch v := c.(type) {
	case Composite:
		children := make([]Condition, len(v.Children))
		for i, child := range v.Children {
			children[i] = simplifyExpressions(child, counters)
		}
		return Composite{Op: v.Op, Children: children}
	case *Expression:
		if simple, ok := trySimplifyExpression(v); ok {
			counters.SimplifiedExpressions++
			return simple
		}
		return v
	default:
		return v
	}
}

func trySimplifyExpression(e *Expression) (Simple, bool) {
	if len(e.Columns()) != 1 {
		return Simple{}, false
	}
	m := singleComparisonRe.FindStringSubmatch(e.source)
	if m == nil {
		return Simple{}, false
	}
	column, celOp, literal := m[1], m[2], m[3]
	if column != e.Columns()[0] {
		return Simple{}, false
	}

	value, ok := parseLiteral(literal)
	if !ok {
		return Simple{}, false
	}

	var op Operator
	switch celOp {
	case "==":
		op = OpEq
	case "!=":
		op = OpNe
	case "<":
		op = OpLt
	case "<=":
		op = OpLe
	case ">":
		op = OpGt
	case ">=":
		op = OpGe
	default:
		return Simple{}, false
	}
	return NewSimple(column, op, value), true
}

func parseLiteral(s string) (any, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, true
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return nil, false
}

// merge implements §4.9 pass 3: within an AND, {col>a, col<b} collapses
// to col BETWEEN; {col=v, col IN S} collapses to col=v (or falsifies the
// parent when v∉S). The symmetric OR case merges a run of col=v
// equalities into a single col IN [...].
func merge(c Condition, counters *Counters, maxMergeBreadth int) Condition {
	comp, ok := c.(Composite)
	if !ok {
		return c
	}

	children := make([]Condition, len(comp.Children))
	for i, child := range comp.Children {
		children[i] = merge(child, counters, maxMergeBreadth)
	}

	if len(children) > maxMergeBreadth {
		return Composite{Op: comp.Op, Children: children}
	}

	if comp.Op == LogicAnd {
		children, counters.MergedConditions = mergeAnd(children, counters.MergedConditions)
		for _, child := range children {
			if lit, ok := child.(Literal); ok && !bool(lit) {
				return Literal(false)
			}
		}
	} else {
		children, counters.MergedConditions = mergeOr(children, counters.MergedConditions)
	}

	switch len(children) {
	case 0:
		return Literal(comp.Op == LogicAnd)
	case 1:
		return children[0]
	default:
		return Composite{Op: comp.Op, Children: children}
	}
}

func mergeAnd(children []Condition, merged int) ([]Condition, int) {
	used := make([]bool, len(children))
	var out []Condition

	for i := 0; i < len(children); i++ {
		if used[i] {
			continue
		}
		si, isSimple := children[i].(Simple)
		if !isSimple {
			out = append(out, children[i])
			continue
		}

		matched := false
		for j := i + 1; j < len(children); j++ {
			if used[j] {
				continue
			}
			sj, ok := children[j].(Simple)
			if !ok || sj.Column != si.Column {
				continue
			}

			if between, ok := tryMergeRange(si, sj); ok {
				out = append(out, between)
				used[j] = true
				matched = true
				merged++
				break
			}
			if eqIn, ok := tryMergeEqIn(si, sj); ok {
				out = append(out, eqIn)
				used[j] = true
				matched = true
				merged++
				break
			}
		}
		if !matched {
			out = append(out, si)
		}
	}
	return out, merged
}

// tryMergeRange merges a strict/non-strict lower bound with an upper
// bound on the same column into a single BETWEEN, adjusting strict
// bounds by the smallest representable step for the operand's kind.
func tryMergeRange(a, b Simple) (Simple, bool) {
	// value, strict, isLower, valid
	boundOf := func(s Simple) (float64, bool, bool, bool) {
		f, ok := toFloat(s.Value)
		if !ok {
			return 0, false, false, false
		}
		switch s.Op {
		case OpGt:
			return f, true, true, true
		case OpGe:
			return f, false, true, true
		case OpLt:
			return f, true, false, true
		case OpLe:
			return f, false, false, true
		default:
			return 0, false, false, false
		}
	}

	av, aStrict, aIsLower, aValid := boundOf(a)
	bv, bStrict, bIsLower, bValid := boundOf(b)
	if !aValid || !bValid {
		return Simple{}, false
	}
	if aIsLower == bIsLower {
		return Simple{}, false // both lower or both upper bounds, nothing to merge
	}

	lo, hi := av, bv
	loStrict, hiStrict := aStrict, bStrict
	if !aIsLower {
		lo, hi = bv, av
		loStrict, hiStrict = bStrict, aStrict
	}
	if loStrict {
		lo += step(lo)
	}
	if hiStrict {
		hi -= step(hi)
	}
	return NewSimple(a.Column, OpBetween, []any{lo, hi}), true
}

// step returns the adjustment applied to a strict bound turning it into
// an inclusive one: a unit step for values that look integral, a small
// epsilon otherwise.
func step(v float64) float64 {
	if v == math.Trunc(v) {
		return 1
	}
	return 1e-9
}

// tryMergeEqIn collapses {col=v, col IN S} (in either order) to col=v
// when v∈S, or to Literal(false) falsifying the parent AND when v∉S.
func tryMergeEqIn(a, b Simple) (Condition, bool) {
	eq, in := a, b
	if a.Op == OpIn && b.Op == OpEq {
		eq, in = b, a
	} else if a.Op != OpEq || b.Op != OpIn {
		return nil, false
	}
	if memberOf(eq.Value, in.Value) {
		return eq, true
	}
	return Literal(false), true
}

func mergeOr(children []Condition, merged int) ([]Condition, int) {
	byColumn := make(map[string][]any)
	order := make([]string, 0)
	var rest []Condition

	for _, child := range children {
		s, ok := child.(Simple)
		if !ok || s.Op != OpEq {
			rest = append(rest, child)
			continue
		}
		if _, seen := byColumn[s.Column]; !seen {
			order = append(order, s.Column)
		}
		byColumn[s.Column] = append(byColumn[s.Column], s.Value)
	}

	out := append([]Condition(nil), rest...)
	for _, col := range order {
		values := byColumn[col]
		if len(values) == 1 {
			out = append(out, NewSimple(col, OpEq, values[0]))
			continue
		}
		out = append(out, NewSimple(col, OpIn, values))
		merged += len(values) - 1
	}
	return out, merged
}

// selectivity estimates, fallback when no stats store is consulted
// (§4.9 pass 4).
const (
	selEq      = 0.1
	selIn      = 0.3
	selBetween = 0.4
	selRange   = 0.5
	selNe      = 0.9
	selLike    = 0.7
	selNotLike = 0.8
	selExpr    = 0.8
	selDefault = 0.5
)

func estimateSelectivity(c Condition) float64 {
	switch v := c.(type) {
	case Simple:
		switch v.Op {
		case OpEq:
			return selEq
		case OpIn:
			return selIn
		case OpBetween:
			return selBetween
		case OpLt, OpLe, OpGt, OpGe:
			return selRange
		case OpNe, OpNotIn:
			return selNe
		case OpLike:
			return selLike
		case OpNotLike:
			return selNotLike
		default:
			return selDefault
		}
	case *Expression:
		return selExpr
	case Composite:
		if len(v.Children) == 0 {
			return selDefault
		}
		if v.Op == LogicAnd {
			product := 1.0
			for _, child := range v.Children {
				product *= estimateSelectivity(child)
			}
			return product
		}
		sum := 0.0
		for _, child := range v.Children {
			sum += estimateSelectivity(child)
		}
		return sum / float64(len(v.Children))
	case Literal:
		if v {
			return 1.0
		}
		return 0.0
	default:
		return selDefault
	}
}

// reorder implements §4.9 pass 4: sort each composite's children by
// estimated selectivity ascending, most selective first.
func reorder(c Condition) Condition {
	comp, ok := c.(Composite)
	if !ok {
		return c
	}
	children := make([]Condition, len(comp.Children))
	for i, child := range comp.Children {
		children[i] = reorder(child)
	}
	sort.SliceStable(children, func(i, j int) bool {
		return estimateSelectivity(children[i]) < estimateSelectivity(children[j])
	})
	return Composite{Op: comp.Op, Children: children}
}
