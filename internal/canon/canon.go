// Copyright 2025 Google LLC
//
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

// Package canon renders expressions in a canonical prefix form so
// that equal values compare equal as strings.
//
// Scalar sums and products are flattened and their operands sorted,
// with differences and quotients folded in as negations and
// reciprocals. Products keep their operand order as soon as two
// operands are not scalars. Loop variables are numbered by their
// distance to the binding reduction, so renaming a loop variable
// does not change the key.
package canon

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/build/syntax"
)

// Key returns the canonical form of an expression. Two expressions
// with the same key evaluate to the same value.
func Key(e ir.Expr) string {
	return render(e, &state{})
}

// FamilyKey returns the canonical form with the literal element
// indices of equivalence-marked symbols erased. The expressions of
// one family are identical up to those indices.
func FamilyKey(e ir.Expr) string {
	return render(e, &state{family: true})
}

type state struct {
	family bool
	loops  []*ir.Symbol
}

// loopIndex returns the number of reductions between a loop variable
// use and its binding reduction.
func (s *state) loopIndex(sym *ir.Symbol) (int, bool) {
	for i := len(s.loops) - 1; i >= 0; i-- {
		if s.loops[i] == sym {
			return len(s.loops) - 1 - i, true
		}
	}
	return 0, false
}

func render(e ir.Expr, s *state) string {
	switch x := e.(type) {
	case *ir.Number:
		return x.Val.Text('g', -1)
	case *ir.Zero:
		if x.Shape().IsScalar() {
			return "0"
		}
		return fmt.Sprintf("(zero %s)", x.Shape())
	case *ir.Unit:
		return fmt.Sprintf("(unit %s %d)", x.Shape(), x.At)
	case *ir.Ref:
		if at, ok := s.loopIndex(x.Sym); ok {
			return fmt.Sprintf("@%d", at)
		}
		return x.Sym.Name
	case *ir.Unary:
		return "(~ " + render(x.X, s) + ")"
	case *ir.Binary:
		return renderBinary(x, s)
	case *ir.Call:
		return fmt.Sprintf("(%s %s)", x.Fun, render(x.Arg, s))
	case *ir.Index:
		return renderIndex(x, s)
	case *ir.Transpose:
		return "(' " + render(x.X, s) + ")"
	case *ir.VectorLit:
		parts := make([]string, len(x.Elts))
		for i, elt := range x.Elts {
			parts[i] = render(elt, s)
		}
		return "(vec " + strings.Join(parts, " ") + ")"
	case *ir.Reduce:
		lo, hi := render(x.Lo, s), render(x.Hi, s)
		s.loops = append(s.loops, x.Sym)
		body := render(x.Body, s)
		s.loops = s.loops[:len(s.loops)-1]
		return fmt.Sprintf("(%s %s %s %s)", x.Op, lo, hi, body)
	}
	return fmt.Sprintf("(? %v)", e)
}

func renderBinary(x *ir.Binary, s *state) string {
	switch x.Op {
	case syntax.ADD, syntax.SUB:
		terms := sumTerms(x, s, false, nil)
		slices.Sort(terms)
		return "(+ " + strings.Join(terms, " ") + ")"
	case syntax.MUL, syntax.QUO:
		nonScalar := 0
		factors := mulFactors(x, s, false, nil, &nonScalar)
		if nonScalar <= 1 {
			slices.Sort(factors)
		}
		return "(* " + strings.Join(factors, " ") + ")"
	case syntax.DOT:
		xs, ys := render(x.X, s), render(x.Y, s)
		if ys < xs {
			xs, ys = ys, xs
		}
		return "(. " + xs + " " + ys + ")"
	}
	return fmt.Sprintf("(%s %s %s)", x.Op, render(x.X, s), render(x.Y, s))
}

func sumTerms(e ir.Expr, s *state, neg bool, terms []string) []string {
	if x, ok := e.(*ir.Binary); ok {
		switch x.Op {
		case syntax.ADD:
			terms = sumTerms(x.X, s, neg, terms)
			return sumTerms(x.Y, s, neg, terms)
		case syntax.SUB:
			terms = sumTerms(x.X, s, neg, terms)
			return sumTerms(x.Y, s, !neg, terms)
		}
	}
	str := render(e, s)
	if neg {
		str = "(~ " + str + ")"
	}
	return append(terms, str)
}

func mulFactors(e ir.Expr, s *state, inv bool, factors []string, nonScalar *int) []string {
	if x, ok := e.(*ir.Binary); ok {
		switch x.Op {
		case syntax.MUL:
			factors = mulFactors(x.X, s, inv, factors, nonScalar)
			return mulFactors(x.Y, s, inv, factors, nonScalar)
		case syntax.QUO:
			factors = mulFactors(x.X, s, inv, factors, nonScalar)
			return mulFactors(x.Y, s, !inv, factors, nonScalar)
		}
	}
	if !e.Shape().IsScalar() {
		*nonScalar++
	}
	str := render(e, s)
	if inv {
		str = "(inv " + str + ")"
	}
	return append(factors, str)
}

func renderIndex(x *ir.Index, s *state) string {
	at := render(x.At, s)
	if s.family {
		if ref, ok := x.X.(*ir.Ref); ok && ref.Sym.Equivalent {
			if _, ok := ir.IntValue(x.At); ok {
				at = "_"
			}
		}
	}
	return fmt.Sprintf("([] %s %s)", render(x.X, s), at)
}
