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

// Package exprdeps extracts symbol dependencies from expressions.
//
// Uses are recorded per element where the element is known: v[2]
// reads only element 2 of v, while v and v[i] may read any element.
// Loop variables are bound inside their reduction body and do not
// count as dependencies.
package exprdeps

import (
	"slices"

	"github.com/gx-org/gradgen/base/ordered"
	"github.com/gx-org/gradgen/build/ir"
)

type symUse struct {
	// whole is set by a use that may read any element.
	whole bool
	elems map[int]bool
}

func (u *symUse) elem(at int) {
	if u.elems == nil {
		u.elems = make(map[int]bool)
	}
	u.elems[at] = true
}

// Set records which symbols an expression reads, with the element
// indices when they are literal.
type Set struct {
	uses  *ordered.Map[*ir.Symbol, *symUse]
	bound []*ir.Symbol
}

// Collect returns the symbol uses of one or more expressions.
func Collect(exprs ...ir.Expr) *Set {
	s := &Set{uses: ordered.NewMap[*ir.Symbol, *symUse]()}
	for _, expr := range exprs {
		s.walk(expr)
	}
	return s
}

func (s *Set) use(sym *ir.Symbol) *symUse {
	if use, ok := s.uses.Load(sym); ok {
		return use
	}
	use := &symUse{}
	s.uses.Store(sym, use)
	return use
}

func (s *Set) isBound(sym *ir.Symbol) bool {
	return slices.Contains(s.bound, sym)
}

func (s *Set) walk(expr ir.Expr) {
	switch x := expr.(type) {
	case *ir.Number, *ir.Zero, *ir.Unit:
	case *ir.Ref:
		if s.isBound(x.Sym) {
			return
		}
		s.use(x.Sym).whole = true
	case *ir.Index:
		if ref, ok := x.X.(*ir.Ref); ok {
			if at, ok := ir.IntValue(x.At); ok {
				s.use(ref.Sym).elem(at)
			} else {
				s.use(ref.Sym).whole = true
			}
			s.walk(x.At)
			return
		}
		s.walk(x.X)
		s.walk(x.At)
	case *ir.Unary:
		s.walk(x.X)
	case *ir.Binary:
		s.walk(x.X)
		s.walk(x.Y)
	case *ir.Call:
		s.walk(x.Arg)
	case *ir.Transpose:
		s.walk(x.X)
	case *ir.VectorLit:
		for _, elt := range x.Elts {
			s.walk(elt)
		}
	case *ir.Reduce:
		s.walk(x.Lo)
		s.walk(x.Hi)
		s.bound = append(s.bound, x.Sym)
		s.walk(x.Body)
		s.bound = s.bound[:len(s.bound)-1]
	}
}

// DependsOn reports if a collected use may read the given element of
// a symbol. A negative element stands for any element.
func (s *Set) DependsOn(sym *ir.Symbol, elem int) bool {
	use, ok := s.uses.Load(sym)
	if !ok {
		return false
	}
	if elem < 0 || use.whole {
		return true
	}
	return use.elems[elem]
}

// Symbols returns the referenced symbols in first-use order.
func (s *Set) Symbols() []*ir.Symbol {
	return slices.Collect(s.uses.Keys())
}
