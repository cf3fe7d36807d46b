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

// Package condition implements the predicate tree partial indexes are
// built from (§3.3): Simple column comparisons, n-ary AND/OR Composites,
// and sandboxed boolean Expressions. Grounded on
// storage/index/partial.py's BaseCondition/SimpleCondition/
// CompositeCondition/ExpressionCondition, generalized from Python's
// dynamic operator dispatch to a typed Operator enum and from Python's
// eval() to a google/cel-go sandboxed program (see expression.go).
package condition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datapunk/indexengine/indexerr"
)

// Row is the evaluation context every Condition reads from: column name
// to stored value. Missing columns and evaluation errors both resolve to
// false (§3.3), never to a panic or returned error.
type Row map[string]any

// Operator names the comparison kinds a Simple condition supports (§3.3).
type Operator string

const (
	OpEq        Operator = "="
	OpNe        Operator = "!="
	OpLt        Operator = "<"
	OpLe        Operator = "<="
	OpGt        Operator = ">"
	OpGe        Operator = ">="
	OpIn        Operator = "IN"
	OpNotIn     Operator = "NOT IN"
	OpLike      Operator = "LIKE"
	OpNotLike   Operator = "NOT LIKE"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
	OpBetween   Operator = "BETWEEN"
)

// Condition is one of Simple, Composite, or Expression (§3.3). Evaluate
// never panics and never returns an error to the caller: a missing
// column or an internal evaluation fault both yield false.
type Condition interface {
	Evaluate(row Row) bool
	String() string
}

// LogicOp is the n-ary combinator a Composite applies to its children.
type LogicOp string

const (
	LogicAnd LogicOp = "AND"
	LogicOr  LogicOp = "OR"
)

// Simple is a single column comparison (§3.3).
type Simple struct {
	Column        string
	Op            Operator
	Value         any
	CaseSensitive bool
}

// NewSimple builds a Simple condition, case-sensitive by default.
func NewSimple(column string, op Operator, value any) Simple {
	return Simple{Column: column, Op: op, Value: value, CaseSensitive: true}
}

func (s Simple) Evaluate(row Row) bool {
	columnValue, ok := row[s.Column]
	if !ok {
		return false
	}

	switch s.Op {
	case OpIsNull:
		return columnValue == nil
	case OpIsNotNull:
		return columnValue != nil
	}
	if columnValue == nil {
		return false
	}

	ok, result := evalSimple(s.Op, columnValue, s.Value, s.CaseSensitive)
	if !ok {
		return false
	}
	return result
}

func (s Simple) String() string {
	if s.Op == OpIsNull || s.Op == OpIsNotNull {
		return fmt.Sprintf("%s %s", s.Column, s.Op)
	}
	return fmt.Sprintf("%s %s %v", s.Column, s.Op, s.Value)
}

// Composite combines n children with AND/OR (§3.3); an empty child list
// is invalid and rejected at construction rather than at evaluation.
type Composite struct {
	Op       LogicOp
	Children []Condition
}

// NewComposite validates op and the non-empty child list up front,
// mirroring storage/index/partial.py's CompositeCondition.__init__
// raising ValueError for the same misuse.
func NewComposite(op LogicOp, children []Condition) (Composite, error) {
	if op != LogicAnd && op != LogicOr {
		return Composite{}, indexerr.New(indexerr.KindUnsupported, "", "composite operator must be AND or OR")
	}
	if len(children) == 0 {
		return Composite{}, indexerr.New(indexerr.KindUnsupported, "", "composite condition requires at least one child")
	}
	return Composite{Op: op, Children: children}, nil
}

func (c Composite) Evaluate(row Row) bool {
	switch c.Op {
	case LogicAnd:
		for _, child := range c.Children {
			if !child.Evaluate(row) {
				return false
			}
		}
		return true
	default: // LogicOr
		for _, child := range c.Children {
			if child.Evaluate(row) {
				return true
			}
		}
		return false
	}
}

func (c Composite) String() string {
	parts := make([]string, len(c.Children))
	for i, child := range c.Children {
		parts[i] = "(" + child.String() + ")"
	}
	return strings.Join(parts, " "+string(c.Op)+" ")
}

// Literal is a constant condition, used by the optimizer (§4.9) to
// collapse a composite whose children were all removed as redundant:
// an empty AND degenerates to true, an empty OR to false.
type Literal bool

func (l Literal) Evaluate(Row) bool { return bool(l) }
func (l Literal) String() string {
	if l {
		return "TRUE"
	}
	return "FALSE"
}

// Columns returns the distinct column names c reads from, sorted, used
// by the index-aware optimizer (§4.11) to check whether an index's
// columns cover a query's predicate.
func Columns(c Condition) []string {
	seen := make(map[string]struct{})
	collectColumns(c, seen)
	out := make([]string, 0, len(seen))
	for col := range seen {
		out = append(out, col)
	}
	sort.Strings(out)
	return out
}

func collectColumns(c Condition, seen map[string]struct{}) {
	switch v := c.(type) {
	case Simple:
		seen[v.Column] = struct{}{}
	case Composite:
		for _, child := range v.Children {
			collectColumns(child, seen)
		}
	case *Expression:
		for _, col := range v.Columns() {
			seen[col] = struct{}{}
		}
	}
}

// IsRangeOperator reports whether op denotes an ordered-range
// comparison (§4.11's "is_range_scan" classification), as opposed to
// an equality-shaped lookup.
func IsRangeOperator(op Operator) bool {
	switch op {
	case OpLt, OpLe, OpGt, OpGe, OpBetween:
		return true
	default:
		return false
	}
}

// HasRangeOperator reports whether any Simple leaf of c uses a range
// operator.
func HasRangeOperator(c Condition) bool {
	switch v := c.(type) {
	case Simple:
		return IsRangeOperator(v.Op)
	case Composite:
		for _, child := range v.Children {
			if HasRangeOperator(child) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// canonicalize returns a string any two structurally-equivalent
// conditions share, used by the optimizer's redundant-child dedup (§4.9
// pass 1). Sorting children's canonical forms makes commutative
// AND/OR dedup order-independent.
func canonicalize(c Condition) string {
	comp, ok := c.(Composite)
	if !ok {
		return c.String()
	}
	parts := make([]string, len(comp.Children))
	for i, child := range comp.Children {
		parts[i] = canonicalize(child)
	}
	sort.Strings(parts)
	return string(comp.Op) + "(" + strings.Join(parts, ",") + ")"
}
