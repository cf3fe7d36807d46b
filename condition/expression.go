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
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/datapunk/indexengine/indexerr"
)

// Expression is a safe, side-effect-free boolean expression over a
// declared set of columns (§3.3), backed by a google/cel-go program. CEL
// exposes no process state, filesystem, or clock to the expression by
// construction: the only identifiers bound into its environment are the
// declared column names, generalizing storage/index/partial.py's
// ExpressionCondition, which sandboxed Python's eval() by stripping
// __builtins__.
type Expression struct {
	source  string
	columns []string
	program cel.Program
}

// NewExpression compiles expr once against an environment declaring one
// dyn-typed variable per column, failing fast the way
// ExpressionCondition.__init__ compiles its code object eagerly.
func NewExpression(expr string, columns []string) (*Expression, error) {
	opts := make([]cel.EnvOption, 0, len(columns))
	for _, col := range columns {
		opts = append(opts, cel.Variable(col, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, indexerr.Wrap(indexerr.KindEvaluationError, "", "failed to build expression environment", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, indexerr.Wrap(indexerr.KindEvaluationError, "", fmt.Sprintf("failed to compile expression %q", expr), iss.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, indexerr.Wrap(indexerr.KindEvaluationError, "", "failed to plan expression program", err)
	}

	return &Expression{source: expr, columns: append([]string(nil), columns...), program: prg}, nil
}

// Columns reports the column set this expression reads.
func (e *Expression) Columns() []string { return e.columns }

func (e *Expression) Evaluate(row Row) bool {
	vars := make(map[string]any, len(e.columns))
	for _, col := range e.columns {
		v, ok := row[col]
		if !ok {
			return false
		}
		vars[col] = v
	}

	out, _, err := e.program.Eval(vars)
	if err != nil {
		return false
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false
	}
	return result
}

func (e *Expression) String() string {
	return fmt.Sprintf("EXPR(%s)", e.source)
}
