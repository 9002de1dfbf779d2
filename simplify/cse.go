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

package simplify

import (
	"fmt"
	"slices"

	"github.com/gx-org/gradgen/base/ordered"
	"github.com/gx-org/gradgen/base/uname"
	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/internal/canon"
)

// Binding names a subexpression shared by several expressions.
type Binding struct {
	Sym  *ir.Symbol
	Expr ir.Expr
}

// Bind rewrites a set of expressions so that repeated non-trivial
// subexpressions are computed once through named bindings. Bindings
// come out in dependency order: a binding only references declared
// symbols and bindings before it. Subexpressions reading a loop
// variable stay inline, as do index and bound positions, which must
// remain integer arithmetic. Symbols marked equivalent make sharing
// eager: once a family of index-erased keys repeats, every member of
// the family is bound. names supplies fresh binding names; reserve
// the declared symbol names on it first.
func Bind(names *uname.Unique, exprs []ir.Expr) ([]Binding, []ir.Expr, error) {
	p := &pool{occ: ordered.NewMap[string, *occurrence](), fam: make(map[string]*famInfo)}
	for _, expr := range exprs {
		p.count(expr)
	}
	b := &binder{
		names:  names,
		chosen: p.chosen(),
		made:   make(map[string]*ir.Symbol),
	}
	roots := make([]ir.Expr, len(exprs))
	for i, expr := range exprs {
		root, err := b.rewrite(expr)
		if err != nil {
			return nil, nil, err
		}
		roots[i] = root
	}
	return b.out, roots, nil
}

type (
	occurrence struct {
		n      int
		family string
		// loops is set when the subexpression reads a loop
		// variable and cannot move out of its reduction.
		loops bool
	}

	famInfo struct {
		n    int
		keys int
	}

	pool struct {
		occ *ordered.Map[string, *occurrence]
		fam map[string]*famInfo
	}
)

// trivial reports if an expression is too cheap to name: loads,
// literals and element reads.
func trivial(e ir.Expr) bool {
	switch x := e.(type) {
	case *ir.Number, *ir.Ref, *ir.Zero, *ir.Unit:
		return true
	case *ir.Unary:
		return trivial(x.X)
	case *ir.Index:
		return trivial(x.X) && trivial(x.At)
	case *ir.Transpose:
		return trivial(x.X)
	}
	return false
}

// count registers every non-trivial subexpression, returning the
// loop variables the expression reads.
func (p *pool) count(e ir.Expr) []*ir.Symbol {
	var free []*ir.Symbol
	switch x := e.(type) {
	case *ir.Number, *ir.Zero, *ir.Unit:
		return nil
	case *ir.Ref:
		if x.Sym.Kind == ir.LoopSymbol {
			return []*ir.Symbol{x.Sym}
		}
		return nil
	case *ir.Unary:
		free = p.count(x.X)
	case *ir.Binary:
		free = merge(p.count(x.X), p.count(x.Y))
	case *ir.Call:
		free = p.count(x.Arg)
	case *ir.Index:
		free = merge(p.count(x.X), p.count(x.At))
	case *ir.Transpose:
		free = p.count(x.X)
	case *ir.VectorLit:
		for _, elt := range x.Elts {
			free = merge(free, p.count(elt))
		}
	case *ir.Reduce:
		body := p.count(x.Body)
		body = slices.DeleteFunc(body, func(s *ir.Symbol) bool { return s == x.Sym })
		free = merge(merge(p.count(x.Lo), p.count(x.Hi)), body)
	}
	if trivial(e) {
		return free
	}
	key := canon.Key(e)
	occ, ok := p.occ.Load(key)
	if !ok {
		occ = &occurrence{family: canon.FamilyKey(e), loops: len(free) > 0}
		p.occ.Store(key, occ)
		f := p.fam[occ.family]
		if f == nil {
			f = &famInfo{}
			p.fam[occ.family] = f
		}
		f.keys++
	}
	occ.n++
	p.fam[occ.family].n++
	return free
}

func merge(a, b []*ir.Symbol) []*ir.Symbol {
	for _, s := range b {
		if !slices.Contains(a, s) {
			a = append(a, s)
		}
	}
	return a
}

// chosen returns the keys to bind: repeated subexpressions, plus
// every member of an equivalence family that repeats as a whole.
func (p *pool) chosen() map[string]bool {
	out := make(map[string]bool)
	for key, occ := range p.occ.Iter() {
		if occ.loops {
			continue
		}
		f := p.fam[occ.family]
		if occ.n >= 2 || (f.n >= 2 && f.keys >= 2) {
			out[key] = true
		}
	}
	return out
}

type binder struct {
	names  *uname.Unique
	chosen map[string]bool
	made   map[string]*ir.Symbol
	out    []Binding
}

func (b *binder) rewrite(e ir.Expr) (ir.Expr, error) {
	key := ""
	if !trivial(e) {
		key = canon.Key(e)
		if sym := b.made[key]; sym != nil {
			return ir.NewRef(e.Pos(), sym), nil
		}
	}
	ne, err := b.rewriteChildren(e)
	if err != nil {
		return nil, err
	}
	if key == "" || !b.chosen[key] {
		return ne, nil
	}
	sym := &ir.Symbol{
		Name:  b.names.Name(fmt.Sprintf("t%d", len(b.out))),
		Kind:  ir.SubexprSymbol,
		Shp:   e.Shape(),
		Value: ne,
	}
	b.made[key] = sym
	b.out = append(b.out, Binding{Sym: sym, Expr: ne})
	return ir.NewRef(e.Pos(), sym), nil
}

func (b *binder) rewriteChildren(e ir.Expr) (ir.Expr, error) {
	switch x := e.(type) {
	case *ir.Number, *ir.Ref, *ir.Zero, *ir.Unit:
		return e, nil
	case *ir.Unary:
		nx, err := b.rewrite(x.X)
		if err != nil || nx == x.X {
			return e, err
		}
		return ir.NewNeg(x.Pos(), nx), nil
	case *ir.Binary:
		nx, err := b.rewrite(x.X)
		if err != nil {
			return nil, err
		}
		ny, err := b.rewrite(x.Y)
		if err != nil {
			return nil, err
		}
		if nx == x.X && ny == x.Y {
			return e, nil
		}
		bin, err := ir.NewBinary(x.Pos(), x.Op, nx, ny)
		if err != nil {
			return nil, fmterr.Internal(err)
		}
		return bin, nil
	case *ir.Call:
		arg, err := b.rewrite(x.Arg)
		if err != nil || arg == x.Arg {
			return e, err
		}
		call, err := ir.NewCall(x.Pos(), x.Fun, arg)
		if err != nil {
			return nil, fmterr.Internal(err)
		}
		return call, nil
	case *ir.Index:
		// The index stays inline: it is integer arithmetic.
		nx, err := b.rewrite(x.X)
		if err != nil || nx == x.X {
			return e, err
		}
		idx, err := ir.NewIndex(x.Pos(), nx, x.At)
		if err != nil {
			return nil, fmterr.Internal(err)
		}
		return idx, nil
	case *ir.Transpose:
		nx, err := b.rewrite(x.X)
		if err != nil || nx == x.X {
			return e, err
		}
		return ir.NewTranspose(x.Pos(), nx), nil
	case *ir.VectorLit:
		changed := false
		elts := make([]ir.Expr, len(x.Elts))
		for i, elt := range x.Elts {
			nelt, err := b.rewrite(elt)
			if err != nil {
				return nil, err
			}
			if nelt != elt {
				changed = true
			}
			elts[i] = nelt
		}
		if !changed {
			return e, nil
		}
		lit, err := ir.NewVectorLit(x.Pos(), elts)
		if err != nil {
			return nil, fmterr.Internal(err)
		}
		return lit, nil
	case *ir.Reduce:
		// Bounds stay inline: they remain integer arithmetic.
		body, err := b.rewrite(x.Body)
		if err != nil || body == x.Body {
			return e, err
		}
		red, err := ir.NewReduce(x.Pos(), x.Op, x.Sym, x.Lo, x.Hi, body)
		if err != nil {
			return nil, fmterr.Internal(err)
		}
		return red, nil
	}
	return nil, fmterr.Internalf(e.Pos(), "cannot rewrite %T", e)
}
