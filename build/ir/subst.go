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

package ir

import (
	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/syntax"
)

// Subst returns the expression with every reference to a symbol
// replaced by another expression. Unchanged subtrees are shared:
// expression trees are immutable.
//
// Substituting a literal for a loop variable can surface errors that
// were not decidable before, such as a literal index moving out of a
// literal range.
func Subst(e Expr, sym *Symbol, with Expr) (Expr, error) {
	switch x := e.(type) {
	case *Number, *Zero, *Unit:
		return e, nil
	case *Ref:
		if x.Sym == sym {
			return with, nil
		}
		return e, nil
	case *Unary:
		nx, err := Subst(x.X, sym, with)
		if err != nil {
			return nil, err
		}
		if nx == x.X {
			return e, nil
		}
		return NewNeg(x.pos, nx), nil
	case *Binary:
		nx, err := Subst(x.X, sym, with)
		if err != nil {
			return nil, err
		}
		ny, err := Subst(x.Y, sym, with)
		if err != nil {
			return nil, err
		}
		if nx == x.X && ny == x.Y {
			return e, nil
		}
		return NewBinary(x.pos, x.Op, nx, ny)
	case *Call:
		arg, err := Subst(x.Arg, sym, with)
		if err != nil {
			return nil, err
		}
		if arg == x.Arg {
			return e, nil
		}
		return NewCall(x.pos, x.Fun, arg)
	case *Index:
		nx, err := Subst(x.X, sym, with)
		if err != nil {
			return nil, err
		}
		at, err := Subst(x.At, sym, with)
		if err != nil {
			return nil, err
		}
		if nx == x.X && at == x.At {
			return e, nil
		}
		return NewIndex(x.pos, nx, at)
	case *Transpose:
		nx, err := Subst(x.X, sym, with)
		if err != nil {
			return nil, err
		}
		if nx == x.X {
			return e, nil
		}
		return NewTranspose(x.pos, nx), nil
	case *VectorLit:
		changed := false
		elts := make([]Expr, len(x.Elts))
		for i, elt := range x.Elts {
			nelt, err := Subst(elt, sym, with)
			if err != nil {
				return nil, err
			}
			elts[i] = nelt
			changed = changed || nelt != elt
		}
		if !changed {
			return e, nil
		}
		return NewVectorLit(x.pos, elts)
	case *Reduce:
		lo, err := Subst(x.Lo, sym, with)
		if err != nil {
			return nil, err
		}
		hi, err := Subst(x.Hi, sym, with)
		if err != nil {
			return nil, err
		}
		body, err := Subst(x.Body, sym, with)
		if err != nil {
			return nil, err
		}
		if lo == x.Lo && hi == x.Hi && body == x.Body {
			return e, nil
		}
		return NewReduce(x.pos, x.Op, x.Sym, lo, hi, body)
	}
	return nil, fmterr.Internalf(e.Pos(), "cannot substitute in %T", e)
}

// Instantiate returns the body of a reduction with the loop variable
// replaced by a literal value.
func Instantiate(red *Reduce, value int) (Expr, error) {
	return Subst(red.Body, red.Sym, NewFloat(red.pos, float64(value)))
}

// Unroll expands a reduction with literal bounds into a chain of
// additions or multiplications, one term per loop value. It reports
// false when a bound is not literal.
func Unroll(red *Reduce) (Expr, bool, error) {
	lo, loOk := IntValue(red.Lo)
	hi, hiOk := IntValue(red.Hi)
	if !loOk || !hiOk {
		return nil, false, nil
	}
	op := syntax.ADD
	if red.Op == syntax.PRODUCT {
		op = syntax.MUL
	}
	var acc Expr
	for i := lo; i <= hi; i++ {
		term, err := Instantiate(red, i)
		if err != nil {
			return nil, true, err
		}
		if acc == nil {
			acc = term
			continue
		}
		if acc, err = NewBinary(red.pos, op, acc, term); err != nil {
			return nil, true, err
		}
	}
	return acc, true, nil
}
